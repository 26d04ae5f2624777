// Package pipe chains two byte-to-byte pipeline stages through a bounded
// in-memory buffer, so the upstream stage never outruns the downstream
// stage and every resource is released deterministically on completion,
// error, or downstream cancellation.
package pipe

import (
	"context"
	"io"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/stream"
	"github.com/flemzord/epcisconv/internal/workerpool"
)

// Chain runs produce (a function that writes a complete byte-to-byte
// stage's output through w) as one task on pool, and returns a demand-
// driven byte sequence reading what produce wrote. The router uses
// it to run a stage on the pool (e.g. object→tag ahead of the 2.0→1.2
// revision transform) and collects the whole sequence before the next
// stage starts.
func Chain(ctx context.Context, pool workerpool.Submitter, produce func(ctx context.Context, w io.Writer) error) stream.Seq[chunk.Chunk] {
	pr, pw := io.Pipe()

	runCtx, cancel := context.WithCancel(ctx)

	submitErr := make(chan error, 1)
	fn := func() {
		err := produce(runCtx, pw)
		_ = pw.CloseWithError(err)
	}
	if pool != nil {
		if err := pool.Submit(runCtx, fn); err != nil {
			submitErr <- err
			_ = pr.CloseWithError(err)
		}
	} else {
		go fn()
	}

	buf := make([]byte, chunk.DefaultSize)
	closed := false

	return stream.New(func(ctx context.Context) (chunk.Chunk, error, bool) {
		select {
		case err := <-submitErr:
			closed = true
			cancel()
			return chunk.Chunk{}, err, false
		default:
		}
		if closed {
			return chunk.Chunk{}, nil, false
		}
		if err := ctx.Err(); err != nil {
			closed = true
			cancel()
			_ = pr.CloseWithError(err)
			return chunk.Chunk{}, nil, false
		}

		n, err := pr.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err != nil && err != io.EOF {
				closed = true
				cancel()
				return chunk.Chunk{}, err, false
			}
			if err == io.EOF {
				closed = true
				cancel()
			}
			return chunk.Chunk{Data: data}, nil, true
		}
		closed = true
		cancel()
		if err != nil && err != io.EOF {
			return chunk.Chunk{}, err, false
		}
		return chunk.Chunk{}, nil, false
	})
}

// WriteSeq drains seq, writing each chunk's bytes to w in order. It is
// the inverse operation produce callbacks use when their own upstream is
// itself a stream.Seq[chunk.Chunk] rather than something that writes
// directly (e.g. the object→tag converter's output).
func WriteSeq(ctx context.Context, w io.Writer, seq stream.Seq[chunk.Chunk]) error {
	for {
		c, err, ok := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
	}
}
