// Package revision implements the blocking tag-form revision transform:
// rewriting a document's EPCIS namespace and schemaVersion between
// revisions, and stripping 2.0-only constructs on a down-conversion
// unless the caller's flags ask to keep them.
package revision

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"sync"

	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/revision/templates"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/tagstream"
)

// ErrUnsupportedConversion is returned for any (fromRev, toRev) pair
// other than the two compiled templates.
var ErrUnsupportedConversion = errors.New("revision: unsupported conversion direction")

// Flags governs whether 2.0-only constructs survive a down-conversion.
// They are only consulted by the 2.0 -> 1.2 template; the 1.x -> 2.0
// template never omits anything.
type Flags struct {
	IncludeAssociationEvent      bool
	IncludePersistentDisposition bool
	IncludeSensorElementList     bool
}

func (f Flags) enabled(name string) bool {
	switch name {
	case "include_association_event":
		return f.IncludeAssociationEvent
	case "include_persistent_disposition":
		return f.IncludePersistentDisposition
	case "include_sensor_element_list":
		return f.IncludeSensorElementList
	default:
		return false
	}
}

var (
	loadOneXTo20    = sync.OnceValues(templates.OneXTo20)
	loadTwoZeroTo12 = sync.OnceValues(templates.TwoZeroTo12)
)

func selectTemplate(fromRev, toRev string) (*templates.Template, error) {
	switch {
	case isOneX(fromRev) && toRev == "2.0":
		return loadOneXTo20()
	case fromRev == "2.0" && toRev == "1.2":
		return loadTwoZeroTo12()
	default:
		return nil, fmt.Errorf("revision: %s -> %s: %w", fromRev, toRev, ErrUnsupportedConversion)
	}
}

func isOneX(rev string) bool {
	return rev == "1.1" || rev == "1.2"
}

// Transform rewrites input, a complete tag-form document, from fromRev
// to toRev. It is a blocking, CPU-bound operation: callers running
// inside a cooperative pipeline must offload it to a worker pool.
func Transform(input []byte, fromRev, toRev string, flags Flags) ([]byte, error) {
	tmpl, err := selectTemplate(fromRev, toRev)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	ns := nsctx.New()
	r := tagstream.NewReader(ctx, source.FromBytes(input).AsByteSequence(ctx), ns)
	w := tagstream.NewWriter(tagstream.IndentingPolicy, ns)

	for {
		tok, err, ok := r.Next()
		if err != nil {
			return nil, fmt.Errorf("revision: %w", err)
		}
		if !ok {
			break
		}
		switch tok.Kind {
		case tagstream.StartElementToken:
			if flagName, omit := tmpl.OmitUnlessFlag[tok.Start.Name.Local]; omit && !flags.enabled(flagName) {
				if err := skipSubtree(r); err != nil {
					return nil, err
				}
				continue
			}
			if err := w.WriteStart(rewriteStart(tok.Start, tmpl, ns)); err != nil {
				return nil, err
			}
		case tagstream.EndElementToken:
			if err := w.WriteEnd(tok.End); err != nil {
				return nil, err
			}
		case tagstream.CharDataToken:
			if err := w.WriteChars(tok.Chars); err != nil {
				return nil, err
			}
		}
	}
	return w.Bytes(), nil
}

// skipSubtree discards every token through the matching end element of
// a start element already consumed from r.
func skipSubtree(r *tagstream.Reader) error {
	depth := 1
	for depth > 0 {
		tok, err, ok := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("revision: unexpected end of input while skipping an omitted element")
		}
		switch tok.Kind {
		case tagstream.StartElementToken:
			depth++
		case tagstream.EndElementToken:
			depth--
		}
	}
	return nil
}

// rewriteStart rewrites start's own namespace and any namespace
// declaration / schemaVersion attribute matching tmpl, re-registering
// the new URI under the same prefix in ns so the writer can still
// resolve a prefix for it.
func rewriteStart(start xml.StartElement, tmpl *templates.Template, ns *nsctx.Context) xml.StartElement {
	inFromNamespace := start.Name.Space == tmpl.FromNamespaceURI
	out := start.Copy()
	if inFromNamespace {
		out.Name.Space = tmpl.ToNamespaceURI
	}
	for i, a := range out.Attr {
		switch {
		case a.Name.Space == "xmlns":
			if a.Value == tmpl.FromNamespaceURI {
				out.Attr[i].Value = tmpl.ToNamespaceURI
				ns.PutDocument(a.Name.Local, tmpl.ToNamespaceURI)
			}
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			if a.Value == tmpl.FromNamespaceURI {
				out.Attr[i].Value = tmpl.ToNamespaceURI
				ns.PutDocument("", tmpl.ToNamespaceURI)
			}
		case a.Name.Local == "schemaVersion":
			// The element's own namespace, not the attribute's literal
			// value, decides whether this is "our" schemaVersion: a 1.1
			// document declares schemaVersion="1.1", a 1.2 document
			// declares "1.2", and both must land on ToSchemaVersion.
			if inFromNamespace {
				out.Attr[i].Value = tmpl.ToSchemaVersion
			}
		}
	}
	return out
}
