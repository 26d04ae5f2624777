// Package source unifies byte-producing inputs — a demand-driven
// Publisher, a synchronous io.Reader, or an in-memory buffer — behind one
// demand-driven byte sequence, with optional restart support for stages
// that must re-scan an input after discovering something late in the
// stream.
package source

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/stream"
)

// state is the Source's lifecycle: Idle -> Producing -> {Completed,
// Failed, Cancelled}.
type state int

const (
	stateIdle state = iota
	stateProducing
	stateCompleted
	stateFailed
	stateCancelled
)

// Publisher is a push-style, demand-driven byte producer. Start is called
// at most once per subscription; it must send each produced buffer on
// out, then either close out (clean completion) or send exactly one
// error on errc. Start must respect ctx cancellation and stop producing
// promptly when ctx is done.
//
// The unbuffered out channel is what gives this its demand-driven
// property: Start's send blocks until the consumer's next demand unit (a
// call to Seq.Next) is ready to receive, so the producer can never
// outrun the consumer.
type Publisher interface {
	Start(ctx context.Context, out chan<- []byte, errc chan<- error)
}

// PublisherFunc adapts a plain function to a Publisher.
type PublisherFunc func(ctx context.Context, out chan<- []byte, errc chan<- error)

// Start implements Publisher.
func (f PublisherFunc) Start(ctx context.Context, out chan<- []byte, errc chan<- error) {
	f(ctx, out, errc)
}

// Source owns its underlying byte producer and, optionally, a retry
// producer that can re-open an equivalent sequence from the top.
type Source struct {
	open      func(ctx context.Context) stream.Seq[chunk.Chunk]
	retryOpen func(ctx context.Context) stream.Seq[chunk.Chunk]
	state     state
}

// AsByteSequence returns the demand-driven view of this source's bytes.
// Each call opens an independent subscription with its own state, so
// concurrent subscriptions never share an accumulator or position.
func (s *Source) AsByteSequence(ctx context.Context) stream.Seq[chunk.Chunk] {
	s.state = stateProducing
	return s.open(ctx)
}

// RetrySequence returns a fresh, equivalent byte sequence restarted from
// the top, if the underlying producer supports it. Object-form readers
// use this to recover from a document whose @context arrives after the
// event list has already started.
func (s *Source) RetrySequence(ctx context.Context) (stream.Seq[chunk.Chunk], bool) {
	if s.retryOpen == nil {
		return stream.Seq[chunk.Chunk]{}, false
	}
	return s.retryOpen(ctx), true
}

// HasRetry reports whether RetrySequence would succeed, without opening
// a sequence.
func (s *Source) HasRetry() bool {
	return s.retryOpen != nil
}

// FromBytes creates a Source over an in-memory buffer. Because the
// buffer never changes, it is always self-restartable: RetrySequence
// replays the same bytes from the top.
func FromBytes(buf []byte) *Source {
	open := func(ctx context.Context) stream.Seq[chunk.Chunk] {
		return bytesSeq(ctx, buf)
	}
	return &Source{open: open, retryOpen: open}
}

// FromBytesNoRetry creates a Source over an in-memory buffer without
// restart support, for callers that want to explicitly forbid
// re-scanning.
func FromBytesNoRetry(buf []byte) *Source {
	open := func(ctx context.Context) stream.Seq[chunk.Chunk] {
		return bytesSeq(ctx, buf)
	}
	return &Source{open: open}
}

func bytesSeq(_ context.Context, buf []byte) stream.Seq[chunk.Chunk] {
	done := false
	return stream.New(func(ctx context.Context) (chunk.Chunk, error, bool) {
		if done {
			return chunk.Chunk{}, nil, false
		}
		if err := ctx.Err(); err != nil {
			done = true
			return chunk.Chunk{}, nil, false
		}
		done = true
		if len(buf) == 0 {
			return chunk.Chunk{}, nil, false
		}
		return chunk.Chunk{Data: buf}, nil, true
	})
}

// FromPublisher creates a Source backed by a demand-driven Publisher,
// with no restart support.
func FromPublisher(pub Publisher) *Source {
	return &Source{open: func(ctx context.Context) stream.Seq[chunk.Chunk] {
		return publisherSeq(ctx, pub)
	}}
}

// FromPublisherWithRetry creates a Source backed by a demand-driven
// Publisher, where retryFn constructs a fresh, equivalent Publisher each
// time a restart is needed.
func FromPublisherWithRetry(pub Publisher, retryFn func() Publisher) *Source {
	return &Source{
		open: func(ctx context.Context) stream.Seq[chunk.Chunk] {
			return publisherSeq(ctx, pub)
		},
		retryOpen: func(ctx context.Context) stream.Seq[chunk.Chunk] {
			return publisherSeq(ctx, retryFn())
		},
	}
}

func publisherSeq(ctx context.Context, pub Publisher) stream.Seq[chunk.Chunk] {
	out := make(chan []byte)
	errc := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	go pub.Start(runCtx, out, errc)

	closed := false
	return stream.New(func(ctx context.Context) (chunk.Chunk, error, bool) {
		if closed {
			return chunk.Chunk{}, nil, false
		}
		select {
		case <-ctx.Done():
			closed = true
			cancel()
			return chunk.Chunk{}, nil, false
		case err := <-errc:
			closed = true
			cancel()
			return chunk.Chunk{}, err, false
		case b, ok := <-out:
			if !ok {
				closed = true
				cancel()
				return chunk.Chunk{}, nil, false
			}
			return chunk.Chunk{Data: b}, nil, true
		}
	})
}

// FromReader creates a Source over a synchronous io.Reader. Each demand
// unit (each call to Next) triggers at most one Read of up to bufSize
// bytes; exhaustion closes the reader (if it is an io.Closer) and
// completes cleanly, an error closes the reader and fails, and
// cancellation closes the reader quietly without reporting an error.
func FromReader(r io.Reader, bufSize int) *Source {
	return &Source{open: func(ctx context.Context) stream.Seq[chunk.Chunk] {
		return readerSeq(ctx, r, bufSize)
	}}
}

// FromReaderWithRetry creates a Source over a synchronous io.Reader,
// where retryFn re-opens an equivalent reader to restart from the top.
func FromReaderWithRetry(r io.Reader, retryFn func() (io.Reader, error), bufSize int) *Source {
	return &Source{
		open: func(ctx context.Context) stream.Seq[chunk.Chunk] {
			return readerSeq(ctx, r, bufSize)
		},
		retryOpen: func(ctx context.Context) stream.Seq[chunk.Chunk] {
			nr, err := retryFn()
			if err != nil {
				return stream.New(func(context.Context) (chunk.Chunk, error, bool) {
					return chunk.Chunk{}, err, false
				})
			}
			return readerSeq(ctx, nr, bufSize)
		},
	}
}

func readerSeq(_ context.Context, r io.Reader, bufSize int) stream.Seq[chunk.Chunk] {
	if bufSize <= 0 {
		bufSize = chunk.DefaultSize
	}
	closed := false

	closeQuiet := func() {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}

	return stream.New(func(ctx context.Context) (chunk.Chunk, error, bool) {
		if closed {
			return chunk.Chunk{}, nil, false
		}
		if err := ctx.Err(); err != nil {
			closed = true
			closeQuiet()
			return chunk.Chunk{}, nil, false
		}

		buf := make([]byte, bufSize)
		n, err := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			if err != nil && !errors.Is(err, io.EOF) {
				// Data plus a real error: emit the data first is not
				// possible in one return, so surface the error now —
				// partial reads immediately followed by a hard error are
				// treated as a failure of the whole read.
				closed = true
				closeQuiet()
				return chunk.Chunk{}, err, false
			}
			if errors.Is(err, io.EOF) {
				closed = true
				closeQuiet()
			}
			return chunk.Chunk{Data: data}, nil, true
		}
		closed = true
		closeQuiet()
		if err != nil && !errors.Is(err, io.EOF) {
			return chunk.Chunk{}, err, false
		}
		return chunk.Chunk{}, nil, false
	})
}

// BytesReader is a convenience retry function factory for
// FromReaderWithRetry over in-memory content.
func BytesReader(buf []byte) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		return bytes.NewReader(buf), nil
	}
}
