package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/objectstream"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/stream"
)

// cbvmdaHint matches an @context entry that references the master-data
// namespace, either by its conventional prefix or by its URI.
const cbvmdaHint = "cbvmda"

// ObjectToTag converts an object-form document into a tag-form document.
// Unlike TagToObject, this converter is truly streaming: at most one
// event is held in memory at a time, with the underlying object-stream
// Reader driving everything (including its own retry-on-late-@context
// behavior).
type ObjectToTag struct {
	Normalizer epcisevent.Normalizer

	reader *objectstream.Reader
}

// Warnings returns the recoverable warnings recorded by the most recent
// Convert call. Callers must fully drain the returned sequence before
// calling this, since the reader is populated asynchronously.
func (c *ObjectToTag) Warnings() []objectstream.Warning {
	if c.reader == nil {
		return nil
	}
	return c.reader.Warnings()
}

// Convert implements component H.
func (c *ObjectToTag) Convert(ctx context.Context, src *source.Source) stream.Seq[chunk.Chunk] {
	out := make(chan chunk.Chunk)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		if err := c.run(ctx, src, out); err != nil {
			select {
			case errc <- err:
			default:
			}
		}
	}()

	return stream.New(func(ctx context.Context) (chunk.Chunk, error, bool) {
		select {
		case err := <-errc:
			return chunk.Chunk{}, err, false
		case ck, ok := <-out:
			if !ok {
				select {
				case err := <-errc:
					return chunk.Chunk{}, err, false
				default:
					return chunk.Chunk{}, nil, false
				}
			}
			return ck, nil, true
		case <-ctx.Done():
			return chunk.Chunk{}, nil, false
		}
	})
}

func (c *ObjectToTag) run(ctx context.Context, src *source.Source, out chan<- chunk.Chunk) error {
	reader := objectstream.NewReader(src)
	c.reader = reader
	nodes := reader.Nodes(ctx)

	node, err, ok := nodes.Next(ctx)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if !ok {
		return fmt.Errorf("convert: empty input, expected a document header")
	}
	if !node.IsHeader() {
		return fmt.Errorf("convert: first node is not a recognized document header")
	}

	docNS := nsctx.New()
	isRegular := !node.IsQueryDocument()
	declareCBVMDA := headerReferencesCBVMDA(node)
	for prefix, uri := range contextBindings(node) {
		docNS.PutDocument(prefix, uri)
	}

	schemaVersion, _ := node.GetString("schemaVersion")
	if schemaVersion == "" {
		schemaVersion = "2.0"
	}
	creationName, creationValue := "creationDate", ""
	if v, ok := node.GetString("creationDate"); ok {
		creationValue = v
	} else if v, ok := node.GetString("createdAt"); ok {
		creationName, creationValue = "createdAt", v
	}
	var subscriptionID, queryName string
	if v, ok := node.GetString("subscriptionID"); ok {
		subscriptionID = v
	}
	if v, ok := node.GetString("queryName"); ok {
		queryName = v
	}

	if err := emit(ctx, out, buildTagHeader(docNS, isRegular, declareCBVMDA, nsctx.EPCIS20URI, schemaVersion, creationName, creationValue, subscriptionID, queryName)); err != nil {
		return err
	}

	seq := 0
	for {
		node, err, ok := nodes.Next(ctx)
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq+1, err)
		}
		if !ok {
			break
		}

		seq++
		ev, err := epcisevent.ParseObject(node)
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq, err)
		}

		eventCtx := nsctx.ScopeForEvent(docNS)
		if raw, ok := node.Get("@context"); ok {
			for prefix, uri := range bindingsFromContextValue(raw) {
				eventCtx.PutEvent(prefix, uri)
			}
		}

		if c.Normalizer != nil {
			ev, err = c.Normalizer(ev, seq, eventCtx)
			if err != nil {
				return fmt.Errorf("convert: event %d: %w", seq, err)
			}
		}

		w := tagstreamWriterFor(eventCtx)
		if err := ev.WriteTag(w); err != nil {
			return fmt.Errorf("convert: event %d: %w", seq, err)
		}
		if err := emit(ctx, out, w.Bytes()); err != nil {
			return err
		}
	}

	// Recoverable warnings collected by reader (e.g. a late @context) are
	// surfaced to the caller via Warnings(), not written into the output.
	return emit(ctx, out, tagFooterBytes(isRegular))
}

func headerReferencesCBVMDA(node *objectstream.Node) bool {
	raw, ok := node.Get("@context")
	if !ok {
		return false
	}
	return containsCBVMDA(raw)
}

func containsCBVMDA(v any) bool {
	switch t := v.(type) {
	case string:
		return bytes.Contains([]byte(t), []byte(cbvmdaHint)) || bytes.Contains([]byte(t), []byte(nsctx.CBVMDAURI))
	case []any:
		for _, item := range t {
			if containsCBVMDA(item) {
				return true
			}
		}
	case *objectstream.Node:
		for _, k := range t.Keys() {
			if k == nsctx.CBVMDAPrefix {
				return true
			}
			val, _ := t.Get(k)
			if containsCBVMDA(val) {
				return true
			}
		}
	}
	return false
}

// contextBindings extracts prefix->uri pairs from a header node's
// @context value. String entries (context URLs) contribute nothing
// directly; object entries contribute their key/value pairs verbatim.
func contextBindings(node *objectstream.Node) map[string]string {
	raw, ok := node.Get("@context")
	if !ok {
		return nil
	}
	return bindingsFromContextValue(raw)
}

func bindingsFromContextValue(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			for k, u := range bindingsFromContextValue(item) {
				out[k] = u
			}
		}
	case *objectstream.Node:
		for _, k := range t.Keys() {
			if val, ok := t.Get(k); ok {
				if s, ok := val.(string); ok {
					out[k] = s
				}
			}
		}
	}
	return out
}
