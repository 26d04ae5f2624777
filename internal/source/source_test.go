package source

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/epcisconv/internal/chunk"
)

func drain(t *testing.T, src *Source) ([]byte, error) {
	t.Helper()
	ctx := context.Background()
	seq := src.AsByteSequence(ctx)
	var out bytes.Buffer
	for {
		c, err, ok := seq.Next(ctx)
		if err != nil {
			return out.Bytes(), err
		}
		if !ok {
			return out.Bytes(), nil
		}
		out.Write(c.Data)
	}
}

func TestFromBytesRoundTripsAndRetries(t *testing.T) {
	t.Parallel()

	src := FromBytes([]byte("hello epcis"))
	got, err := drain(t, src)
	if err != nil || string(got) != "hello epcis" {
		t.Fatalf("got %q, err %v", got, err)
	}

	retrySeq, ok := src.RetrySequence(context.Background())
	if !ok {
		t.Fatal("expected retry support for FromBytes")
	}
	c, err, ok := retrySeq.Next(context.Background())
	if err != nil || !ok || string(c.Data) != "hello epcis" {
		t.Fatalf("retry produced %q, err %v, ok %v", c.Data, err, ok)
	}
}

func TestFromBytesNoRetryHasNoRetry(t *testing.T) {
	t.Parallel()

	src := FromBytesNoRetry([]byte("x"))
	if _, ok := src.RetrySequence(context.Background()); ok {
		t.Fatal("expected no retry support")
	}
}

func TestFromReaderObeysDemandAndCompletes(t *testing.T) {
	t.Parallel()

	r := strings.NewReader("abcdefghij")
	src := FromReader(r, 4)
	got, err := drain(t, src)
	if err != nil || string(got) != "abcdefghij" {
		t.Fatalf("got %q, err %v", got, err)
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestFromReaderPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	src := FromReader(errReader{boom}, 16)
	_, err := drain(t, src)
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestFromPublisherDeliversAndCompletes(t *testing.T) {
	t.Parallel()

	pub := PublisherFunc(func(ctx context.Context, out chan<- []byte, errc chan<- error) {
		defer close(out)
		for _, part := range []string{"ab", "cd", "ef"} {
			select {
			case out <- []byte(part):
			case <-ctx.Done():
				return
			}
		}
	})

	src := FromPublisher(pub)
	got, err := drain(t, src)
	if err != nil || string(got) != "abcdef" {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestFromPublisherPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream exploded")
	pub := PublisherFunc(func(ctx context.Context, out chan<- []byte, errc chan<- error) {
		errc <- boom
	})

	src := FromPublisher(pub)
	_, err := drain(t, src)
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestFromPublisherWithRetryRestarts(t *testing.T) {
	t.Parallel()

	newPub := func() Publisher {
		return PublisherFunc(func(ctx context.Context, out chan<- []byte, errc chan<- error) {
			defer close(out)
			out <- []byte("restarted")
		})
	}

	src := FromPublisherWithRetry(newPub(), newPub)
	seq, ok := src.RetrySequence(context.Background())
	if !ok {
		t.Fatal("expected retry support")
	}
	c, err, ok := seq.Next(context.Background())
	if err != nil || !ok || string(c.Data) != "restarted" {
		t.Fatalf("got %q err %v ok %v", c.Data, err, ok)
	}
}

func TestFromReaderCancellationClosesQuietly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := FromReader(strings.NewReader("data"), 4)
	_, err, ok := src.AsByteSequence(ctx).Next(ctx)
	if err != nil || ok {
		t.Fatalf("expected quiet close, got err=%v ok=%v", err, ok)
	}
}

func TestFromPublisherCancellationAfterPartialDrainIsTerminalOnce(t *testing.T) {
	t.Parallel()

	pub := PublisherFunc(func(ctx context.Context, out chan<- []byte, errc chan<- error) {
		defer close(out)
		for i := 0; i < 100; i++ {
			select {
			case out <- []byte{byte(i)}:
			case <-ctx.Done():
				return
			}
		}
	})

	src := FromPublisher(pub)
	ctx, cancel := context.WithCancel(context.Background())
	seq := src.AsByteSequence(ctx)

	const n = 3
	for i := 0; i < n; i++ {
		c, err, ok := seq.Next(ctx)
		if err != nil || !ok {
			t.Fatalf("chunk %d: expected a value, got data=%v err=%v ok=%v", i, c.Data, err, ok)
		}
	}

	cancel()

	if _, err, ok := seq.Next(ctx); err != nil || ok {
		t.Fatalf("expected a quiet terminal signal after cancellation, got err=%v ok=%v", err, ok)
	}

	// A second Next past the terminal signal must not surface another
	// value or error — the sequence stays quietly done, so the caller
	// received exactly one terminal signal, not one per subsequent call.
	if _, err, ok := seq.Next(ctx); err != nil || ok {
		t.Fatalf("expected the sequence to stay terminally done, got err=%v ok=%v", err, ok)
	}
}

func TestRechunkInterop(t *testing.T) {
	t.Parallel()

	src := FromReader(strings.NewReader("0123456789"), 3)
	seq := src.AsByteSequence(context.Background())
	rechunked, err := chunk.Rechunk(seq, chunk.Config{Size: 4})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ctx := context.Background()
	for {
		c, err, ok := rechunked.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		out.Write(c.Data)
	}
	if out.String() != "0123456789" {
		t.Fatalf("got %q", out.String())
	}
}
