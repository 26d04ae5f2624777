// Package convert implements the two streaming serialization converters:
// tag-form to object-form (component G) and object-form to tag-form
// (component H). Both run under a fresh namespace context per
// conversion and stamp each event with a 1-based sequence number before
// handing it to the caller's normalizer.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/objectstream"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/stream"
	"github.com/flemzord/epcisconv/internal/tagstream"
)

// defaultContextURL is the JSON-LD context URL written as the first
// @context entry of every object-form document; custom bindings, when
// present, follow it.
const defaultContextURL = "https://ref.gs1.org/standards/epcis/2.0.0/epcis-context.jsonld"

// TagToObject converts a tag-form document into an object-form document,
// streaming one chunk per header write and one per converted event.
type TagToObject struct {
	Normalizer epcisevent.Normalizer
}

// Convert implements component G. input must be the complete tag-form
// document; the underlying XML reader cannot yield partial-document
// state to a demand-driven consumer safely, so this stage always
// collects its input fully before producing any output.
func (c *TagToObject) Convert(ctx context.Context, input []byte) stream.Seq[chunk.Chunk] {
	out := make(chan chunk.Chunk)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		if err := c.run(ctx, input, out); err != nil {
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
		case c, ok := <-out:
			if !ok {
				select {
				case err := <-errc:
					return chunk.Chunk{}, err, false
				default:
					return chunk.Chunk{}, nil, false
				}
			}
			return c, nil, true
		case <-ctx.Done():
			return chunk.Chunk{}, nil, false
		}
	})
}

func emit(ctx context.Context, out chan<- chunk.Chunk, data []byte) error {
	select {
	case out <- chunk.Chunk{Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TagToObject) run(ctx context.Context, input []byte, out chan<- chunk.Chunk) error {
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

	schemaVersion := attrValue(rootTok.Start, "schemaVersion")
	creationName, creationValue := "creationDate", attrValue(rootTok.Start, "creationDate")
	if creationValue == "" {
		creationName, creationValue = "createdAt", attrValue(rootTok.Start, "createdAt")
	}

	fields, eventListTok, err := scanUntilEventList(r)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	_ = eventListTok

	headerNS := nsctx.ScopeForEvent(ns)
	customBindings := map[string]string{}
	for prefix, uri := range headerNS.DocumentView() {
		if !nsctx.IsStandardPrefix(prefix) && !nsctx.IsKnownURI(uri) {
			customBindings[prefix] = uri
		}
	}

	docType := "EPCISDocument"
	if !isRegular {
		docType = "EPCISQueryDocument"
	}

	if err := emit(ctx, out, buildHeader(docType, schemaVersion, creationName, creationValue, fields["subscriptionID"], fields["queryName"], customBindings, isRegular)); err != nil {
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

		node, err := ev.WriteObject(eventCtx)
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq, err)
		}
		raw, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("convert: event %d: %w", seq, err)
		}

		var frag bytes.Buffer
		if seq > 1 {
			frag.WriteByte(',')
		}
		frag.Write(raw)
		if err := emit(ctx, out, frag.Bytes()); err != nil {
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

	return emit(ctx, out, footerBytes(isRegular))
}

func attrValue(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func xmlnsPrefix(name xml.Name) (string, bool) {
	if name.Space == "xmlns" {
		return name.Local, true
	}
	if name.Space == "" && name.Local == "xmlns" {
		return "", true
	}
	return "", false
}

// scanUntilEventList walks the tokens of a document's header region,
// recording the text of every leaf element by local name, until it
// reaches the EventList start element (returned, already consumed) at
// any nesting depth.
func scanUntilEventList(r *tagstream.Reader) (map[string]string, tagstream.Token, error) {
	fields := map[string]string{}
	found, tok, err := walkNamed(r, "", fields)
	if err != nil {
		return nil, tagstream.Token{}, err
	}
	if !found {
		return nil, tagstream.Token{}, fmt.Errorf("no EventList found in document")
	}
	return fields, tok, nil
}

// walkNamed walks one element's children (the element named elName has
// already had its start token consumed by the caller), recording its own
// leaf text into fields[elName] at its end tag, and returns true plus
// the consumed EventList token if it is found anywhere in the subtree.
func walkNamed(r *tagstream.Reader, elName string, fields map[string]string) (bool, tagstream.Token, error) {
	var text []byte
	for {
		tok, err, ok := r.Next()
		if err != nil {
			return false, tagstream.Token{}, err
		}
		if !ok {
			return false, tagstream.Token{}, fmt.Errorf("unexpected end of input scanning the document header")
		}
		switch tok.Kind {
		case tagstream.CharDataToken:
			text = append(text, tok.Chars...)
		case tagstream.StartElementToken:
			if tok.Start.Name.Local == "EventList" {
				return true, tok, nil
			}
			found, evTok, err := walkNamed(r, tok.Start.Name.Local, fields)
			if err != nil || found {
				return found, evTok, err
			}
		case tagstream.EndElementToken:
			if elName != "" {
				if s := strings.TrimSpace(string(text)); s != "" {
					fields[elName] = s
				}
			}
			return false, tagstream.Token{}, nil
		}
	}
}

func buildHeader(docType, schemaVersion, creationName, creationValue, subscriptionID, queryName string, customBindings map[string]string, isRegular bool) []byte {
	header := objectstream.NewNode()
	header.Set("type", docType)
	if len(customBindings) > 0 {
		ctxEntries := objectstream.NewNode()
		for prefix, uri := range customBindings {
			ctxEntries.Set(prefix, uri)
		}
		header.Set("@context", []any{defaultContextURL, ctxEntries})
	} else {
		header.Set("@context", []any{defaultContextURL})
	}
	if schemaVersion != "" {
		header.Set("schemaVersion", schemaVersion)
	}
	if creationValue != "" {
		header.Set(creationName, creationValue)
	}
	if !isRegular {
		if subscriptionID != "" {
			header.Set("subscriptionID", subscriptionID)
		}
		if queryName != "" {
			header.Set("queryName", queryName)
		}
	}

	raw, _ := json.Marshal(header)
	// raw ends in "}"; splice the open body wrapper in before it. header
	// always carries at least "type", so a separating comma is always
	// needed.
	body := raw[:len(raw)-1]
	var buf bytes.Buffer
	buf.Write(body)
	buf.WriteByte(',')
	if isRegular {
		buf.WriteString(`"epcisBody":{"eventList":[`)
	} else {
		buf.WriteString(`"queryResults":{"resultsBody":{"eventList":[`)
	}
	return buf.Bytes()
}

func footerBytes(isRegular bool) []byte {
	if isRegular {
		return []byte("]}}")
	}
	return []byte("]}}}")
}
