// Package stream implements the demand-driven pull sequence that every
// pipeline stage in this module composes over: each call to Next
// represents exactly one unit of downstream demand, and a stage never
// produces more than the number of units demanded.
package stream

import "context"

// Seq is a pull-based, demand-driven sequence of T. Calling Next blocks
// until the next item is ready, an error terminates the sequence, or the
// sequence is exhausted (ok == false, err == nil means a clean
// completion). Once Next returns err != nil or ok == false, the sequence
// must not be called again.
type Seq[T any] struct {
	next func(ctx context.Context) (item T, err error, ok bool)
}

// New wraps a next function as a Seq.
func New[T any](next func(ctx context.Context) (T, error, bool)) Seq[T] {
	return Seq[T]{next: next}
}

// Next requests the next item. It is the single suspension point of the
// pipeline: exactly one unit of demand per call.
func (s Seq[T]) Next(ctx context.Context) (T, error, bool) {
	return s.next(ctx)
}

// FromSlice builds a Seq that yields each element of items in order, then
// completes cleanly. Used by the in-memory Source factory and by tests.
func FromSlice[T any](items []T) Seq[T] {
	i := 0
	return New(func(ctx context.Context) (T, error, bool) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err, false
		}
		if i >= len(items) {
			return zero, nil, false
		}
		item := items[i]
		i++
		return item, nil, true
	})
}

// Map applies f to every item of s, lazily — f only runs when the
// downstream consumer calls Next.
func Map[T, U any](s Seq[T], f func(T) (U, error)) Seq[U] {
	return New(func(ctx context.Context) (U, error, bool) {
		var zero U
		item, err, ok := s.Next(ctx)
		if err != nil || !ok {
			return zero, err, ok
		}
		out, err := f(item)
		if err != nil {
			return zero, err, false
		}
		return out, nil, true
	})
}

// Collect drains s fully, returning every item in order or the first
// error encountered. Used by stages that must see the whole document
// before they can act.
func Collect[T any](ctx context.Context, s Seq[T]) ([]T, error) {
	var out []T
	for {
		item, err, ok := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}

// Take stops s after at most n items have been yielded, then reports
// completion without pulling further upstream — used to express a
// subscriber that requests at most N items then cancels.
func Take[T any](s Seq[T], n int) Seq[T] {
	taken := 0
	return New(func(ctx context.Context) (T, error, bool) {
		var zero T
		if taken >= n {
			return zero, nil, false
		}
		item, err, ok := s.Next(ctx)
		if err != nil || !ok {
			return zero, err, ok
		}
		taken++
		return item, nil, true
	})
}
