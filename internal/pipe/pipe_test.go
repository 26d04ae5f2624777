package pipe

import (
	"context"
	"io"
	"testing"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/stream"
)

func TestChainStreamsProducerOutput(t *testing.T) {
	t.Parallel()

	seq := Chain(context.Background(), nil, func(ctx context.Context, w io.Writer) error {
		_, err := w.Write([]byte("hello world"))
		return err
	})

	got, err := drain(seq)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestChainPropagatesProducerError(t *testing.T) {
	t.Parallel()

	boom := io.ErrUnexpectedEOF
	seq := Chain(context.Background(), nil, func(ctx context.Context, w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})

	_, err := drain(seq)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestChainHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	seq := Chain(ctx, nil, func(ctx context.Context, w io.Writer) error {
		_, _ = w.Write([]byte("x"))
		<-ctx.Done()
		close(block)
		return ctx.Err()
	})

	_, _, ok := seq.Next(ctx)
	if !ok {
		t.Fatal("expected at least one chunk before cancellation")
	}
	cancel()
	<-block
}

func drain(seq stream.Seq[chunk.Chunk]) ([]byte, error) {
	ctx := context.Background()
	var out []byte
	for {
		c, err, ok := seq.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, c.Data...)
	}
}
