package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunOnPoolReturnsResult(t *testing.T) {
	t.Parallel()

	p := New(2)
	defer p.Close()

	got, err := Run(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestRunPropagatesError(t *testing.T) {
	t.Parallel()

	p := New(1)
	defer p.Close()

	wantErr := errors.New("boom")
	_, err := Run(context.Background(), p, func() (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestRunOnNilPoolRunsSynchronously(t *testing.T) {
	t.Parallel()

	got, err := Run[string](context.Background(), nil, func() (string, error) {
		return "direct", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "direct" {
		t.Fatalf("got %q, want %q", got, "direct")
	}
}

func TestDirectPoolRunsOnCallerGoroutine(t *testing.T) {
	t.Parallel()

	var ran atomic.Bool
	got, err := Run(context.Background(), DirectPool{}, func() (int, error) {
		ran.Store(true)
		return 7, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran.Load() || got != 7 {
		t.Fatalf("expected direct execution with result 7, got %d (ran=%v)", got, ran.Load())
	}
}

func TestPoolDistributesConcurrentWork(t *testing.T) {
	t.Parallel()

	p := New(4)
	defer p.Close()

	var counter atomic.Int64
	done := make(chan struct{})
	for range 8 {
		go func() {
			_, _ = Run(context.Background(), p, func() (struct{}, error) {
				counter.Add(1)
				return struct{}{}, nil
			})
			done <- struct{}{}
		}()
	}
	for range 8 {
		<-done
	}
	if got := counter.Load(); got != 8 {
		t.Fatalf("got %d completions, want 8", got)
	}
}

func TestSubmitRespectsCancellation(t *testing.T) {
	t.Parallel()

	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	unblock := make(chan struct{})
	_ = p.Submit(context.Background(), func() {
		close(block)
		<-unblock
	})
	<-block
	defer close(unblock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}
