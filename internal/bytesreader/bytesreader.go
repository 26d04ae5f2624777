// Package bytesreader bridges a demand-driven chunk.Chunk sequence into
// a synchronous io.Reader, for the handful of stages (the XML tokenizer,
// the JSON tokenizer) that only know how to pull bytes via Read.
package bytesreader

import (
	"context"
	"io"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/stream"
)

// Reader adapts seq, pulling exactly one upstream chunk per Read call
// once its internal buffer runs dry. This is the point where a
// synchronous tokenizer's Read calls translate into demand on the
// upstream Source: it only asks for more bytes when its own buffer is
// empty.
type Reader struct {
	ctx  context.Context
	seq  stream.Seq[chunk.Chunk]
	buf  []byte
	err  error
	done bool
}

// New creates a Reader over seq, using ctx for every upstream Next call.
func New(ctx context.Context, seq stream.Seq[chunk.Chunk]) *Reader {
	return &Reader{ctx: ctx, seq: seq}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			if r.err != nil {
				return 0, r.err
			}
			return 0, io.EOF
		}
		c, err, ok := r.seq.Next(r.ctx)
		if err != nil {
			r.done = true
			r.err = err
			continue
		}
		if !ok {
			r.done = true
			continue
		}
		r.buf = c.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
