package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/stream"
	"github.com/flemzord/epcisconv/internal/tagstream"
)

// TagToTag re-derives a tag-form document at a different revision by
// parsing each event through the event model and re-serializing it
// under a freshly built header for the target revision, rather than
// patching namespace/schemaVersion text in place. It covers every
// tag-to-tag revision pair the compiled revision templates don't —
// chiefly 1.1<->1.2, and 2.0->1.1.
type TagToTag struct {
	Normalizer epcisevent.Normalizer
}

// Convert implements the generic tag->tag path of the routing table.
func (c *TagToTag) Convert(ctx context.Context, input []byte, toRev string) stream.Seq[chunk.Chunk] {
	out := make(chan chunk.Chunk)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		if err := c.run(ctx, input, toRev, out); err != nil {
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

func (c *TagToTag) run(ctx context.Context, input []byte, toRev string, out chan<- chunk.Chunk) error {
	ns := nsctx.New()
	src := source.FromBytesNoRetry(input)
	r := tagstream.NewReader(ctx, src.AsByteSequence(ctx), ns)

	rootTok, err, ok := r.Next()
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if !ok || rootTok.Kind != tagstream.StartElementToken {
		return fmt.Errorf("convert: input does not begin with a root element")
	}
	isRegular := !strings.Contains(rootTok.Start.Name.Local, "Query")

	creationName, creationValue := "creationDate", attrValue(rootTok.Start, "creationDate")
	if creationValue == "" {
		creationName, creationValue = "createdAt", attrValue(rootTok.Start, "createdAt")
	}

	fields, _, err := scanUntilEventList(r)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	headerNS := nsctx.ScopeForEvent(ns)
	_, declareCBVMDA := headerNS.ResolvePrefix(nsctx.CBVMDAPrefix)

	targetRootURI := nsctx.EPCIS20URI
	if toRev == "1.1" || toRev == "1.2" {
		targetRootURI = nsctx.EPCIS1xURI
	}

	if err := emit(ctx, out, buildTagHeader(headerNS, isRegular, declareCBVMDA, targetRootURI, toRev, creationName, creationValue, fields["subscriptionID"], fields["queryName"])); err != nil {
		return err
	}

	seq := 0
	for {
		tok, err, ok := r.Next()
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq+1, err)
		}
		if !ok {
			return fmt.Errorf("convert: unexpected end of input inside the event list")
		}
		if tok.Kind == tagstream.EndElementToken {
			break
		}
		if tok.Kind != tagstream.StartElementToken {
			continue
		}

		seq++
		ev, err := epcisevent.ParseTag(r, tok)
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq, err)
		}

		eventCtx := nsctx.ScopeForEvent(headerNS)
		for _, a := range tok.Start.Attr {
			if prefix, ok := xmlnsPrefix(a.Name); ok {
				eventCtx.PutEvent(prefix, a.Value)
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

	for {
		_, err, ok := r.Next()
		if err != nil {
			return fmt.Errorf("convert: %w", err)
		}
		if !ok {
			break
		}
	}

	return emit(ctx, out, tagFooterBytes(isRegular))
}
