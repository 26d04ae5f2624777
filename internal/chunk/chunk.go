// Package chunk re-frames an arbitrarily-sized byte sequence into
// fixed-size chunks, with a tail flush on upstream completion.
package chunk

import "fmt"

// DefaultSize is the chunk size used when Config.Size is zero.
const DefaultSize = 8192

// Config controls how an upstream byte sequence is re-framed.
type Config struct {
	// Size is the exact number of bytes per emitted chunk, except for the
	// final chunk which may carry 1..Size residual bytes. Zero selects
	// DefaultSize. A negative value is a construction-time error.
	Size int
}

// resolvedSize returns the effective chunk size, validating it.
func (c Config) resolvedSize() (int, error) {
	if c.Size == 0 {
		return DefaultSize, nil
	}
	if c.Size < 0 {
		return 0, fmt.Errorf("chunk: invalid size %d: %w", c.Size, ErrInvalidSize)
	}
	return c.Size, nil
}

// Chunk is an owned, contiguous byte buffer. It is never mutated after
// emission; its lifetime ends when the consumer acknowledges it via
// demand.
type Chunk struct {
	Data []byte
}

// Accumulator re-frames bytes pushed via Write into fixed-size Chunks.
// Each Accumulator holds exactly one Config.Size buffer and belongs to
// exactly one subscription — concurrent subscriptions must each build
// their own Accumulator so their outputs never share state.
type Accumulator struct {
	size int
	buf  []byte
}

// New creates an Accumulator. It returns ErrInvalidSize for a negative
// configured size.
func New(cfg Config) (*Accumulator, error) {
	size, err := cfg.resolvedSize()
	if err != nil {
		return nil, err
	}
	return &Accumulator{
		size: size,
		buf:  make([]byte, 0, size),
	}, nil
}

// Push appends p to the internal buffer and returns zero or more
// complete, Size-length chunks. Ownership of the returned chunks' byte
// slices transfers to the caller; Push never retains a reference to a
// returned chunk's backing array after returning it.
func (a *Accumulator) Push(p []byte) []Chunk {
	var out []Chunk
	a.buf = append(a.buf, p...)
	for len(a.buf) >= a.size {
		c := make([]byte, a.size)
		copy(c, a.buf[:a.size])
		out = append(out, Chunk{Data: c})
		a.buf = a.buf[a.size:]
	}
	return out
}

// Flush returns the residual 1..Size-1 buffered bytes as a final chunk,
// or nil if nothing is buffered. Called once, on upstream completion.
func (a *Accumulator) Flush() *Chunk {
	if len(a.buf) == 0 {
		return nil
	}
	c := &Chunk{Data: append([]byte(nil), a.buf...)}
	a.buf = a.buf[:0]
	return c
}
