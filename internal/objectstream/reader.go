package objectstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flemzord/epcisconv/internal/bytesreader"
	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/stream"
)

// Warning is a recoverable condition surfaced alongside a conversion
// rather than failing it outright.
type Warning struct {
	Message string
}

// wrapperKeys are the object keys a reader must descend into in search
// of the event list, without fully materializing them — epcisBody for a
// regular document, queryResults/resultsBody for a query document.
var wrapperKeys = map[string]struct{}{
	"epcisBody":    {},
	"queryResults": {},
	"resultsBody":  {},
}

// Reader streams the nodes of one JSON-LD EPCIS document: the header
// node first, then one node per event, without buffering the event list.
type Reader struct {
	src      *source.Source
	warnings []Warning
}

// NewReader creates a Reader over src.
func NewReader(src *source.Source) *Reader {
	return &Reader{src: src}
}

// Warnings returns the recoverable warnings accumulated during the most
// recent call to Nodes.
func (r *Reader) Warnings() []Warning {
	return r.warnings
}

// Nodes returns a lazy sequence whose first element is the document
// header and whose remaining elements are individual event nodes. If
// the header's @context has not been seen by the time the event list
// starts and the underlying source supports a restart, Nodes silently
// re-reads the document from the top exactly once; otherwise it proceeds
// with whatever namespace bindings were discovered and records a
// Warning.
func (r *Reader) Nodes(ctx context.Context) stream.Seq[*Node] {
	r.warnings = nil
	out := make(chan *Node)
	errc := make(chan error, 1)

	go func() {
		defer close(out)

		seq := r.src.AsByteSequence(ctx)
		restart, err := r.attempt(ctx, seq, out, true)
		if err != nil {
			errc <- err
			return
		}
		if !restart {
			return
		}

		retrySeq, ok := r.src.RetrySequence(ctx)
		if !ok {
			errc <- fmt.Errorf("objectstream: restart requested but source has no retry sequence")
			return
		}
		if _, err := r.attempt(ctx, retrySeq, out, false); err != nil {
			errc <- err
		}
	}()

	return stream.New(func(ctx context.Context) (*Node, error, bool) {
		select {
		case err := <-errc:
			return nil, err, false
		case n, ok := <-out:
			if !ok {
				select {
				case err := <-errc:
					return nil, err, false
				default:
					return nil, nil, false
				}
			}
			return n, nil, true
		case <-ctx.Done():
			return nil, nil, false
		}
	})
}

// attempt runs one pass over seq. It returns (true, nil) if the event
// list started before @context was seen and a restart is still
// permitted — in which case nothing has been sent on out and the caller
// must discard this attempt and retry from the top. Otherwise it streams
// the header then every event onto out and returns (false, err).
func (r *Reader) attempt(ctx context.Context, seq stream.Seq[chunk.Chunk], out chan<- *Node, allowRestart bool) (bool, error) {
	dec := json.NewDecoder(bytesreader.New(ctx, seq))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false, fmt.Errorf("objectstream: expected a JSON object at the top level")
	}

	header := NewNode()
	contextSeen := false
	headerSent := false

	var walkObj func(dec *json.Decoder) (bool, error)
	walkObj = func(dec *json.Decoder) (bool, error) {
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return false, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return false, fmt.Errorf("objectstream: non-string object key %v", keyTok)
			}

			if key == "eventList" {
				t, err := dec.Token()
				if err != nil {
					return false, err
				}
				if d, ok := t.(json.Delim); !ok || d != '[' {
					return false, fmt.Errorf("objectstream: %q must be an array", key)
				}

				if !contextSeen && allowRestart && r.src.HasRetry() {
					return true, nil
				}
				if !contextSeen {
					r.warnings = append(r.warnings, Warning{
						Message: "document @context was not seen before the event list started; namespace bindings may be incomplete",
					})
				}
				if !headerSent {
					headerSent = true
					select {
					case out <- header:
					case <-ctx.Done():
						return false, ctx.Err()
					}
				}

				for dec.More() {
					val, err := decodeValue(dec)
					if err != nil {
						return false, err
					}
					node, ok := val.(*Node)
					if !ok {
						return false, fmt.Errorf("objectstream: event list element is not an object")
					}
					select {
					case out <- node:
					case <-ctx.Done():
						return false, ctx.Err()
					}
				}
				if _, err := dec.Token(); err != nil { // closing ']'
					return false, err
				}
				continue
			}

			if _, isWrapper := wrapperKeys[key]; isWrapper {
				t, err := dec.Token()
				if err != nil {
					return false, err
				}
				if d, ok := t.(json.Delim); ok && d == '{' {
					restart, err := walkObj(dec)
					if err != nil || restart {
						return restart, err
					}
					continue
				}
				val, err := decodeValueFromToken(dec, t)
				if err != nil {
					return false, err
				}
				header.setFoldingDuplicates(key, val)
				continue
			}

			val, err := decodeValue(dec)
			if err != nil {
				return false, err
			}
			// Once the header has been sent, later top-level fields are
			// not added to it.
			if headerSent {
				continue
			}
			if key == "@context" {
				contextSeen = true
			}
			header.setFoldingDuplicates(key, val)
		}
		_, err := dec.Token() // closing '}'
		return false, err
	}

	return walkObj(dec)
}
