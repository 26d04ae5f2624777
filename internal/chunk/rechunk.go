package chunk

import (
	"context"

	"github.com/flemzord/epcisconv/internal/stream"
)

// Rechunk re-frames upstream, whose chunks may be of arbitrary size, into
// a sequence of exactly cfg.Size bytes per chunk (the final chunk may
// carry the 1..Size-1 residual bytes). Upstream completion triggers a
// final flush; an upstream failure is propagated unchanged without a
// flush.
func Rechunk(upstream stream.Seq[Chunk], cfg Config) (stream.Seq[Chunk], error) {
	acc, err := New(cfg)
	if err != nil {
		return stream.Seq[Chunk]{}, err
	}

	var pending []Chunk
	flushed := false
	done := false

	return stream.New(func(ctx context.Context) (Chunk, error, bool) {
		for {
			if len(pending) > 0 {
				c := pending[0]
				pending = pending[1:]
				return c, nil, true
			}
			if done {
				return Chunk{}, nil, false
			}

			in, err, ok := upstream.Next(ctx)
			if err != nil {
				done = true
				return Chunk{}, err, false
			}
			if !ok {
				if !flushed {
					flushed = true
					if tail := acc.Flush(); tail != nil {
						return *tail, nil, true
					}
				}
				done = true
				return Chunk{}, nil, false
			}

			pending = acc.Push(in.Data)
		}
	}), nil
}
