package tagstream

import (
	"bytes"
	"encoding/xml"

	"github.com/flemzord/epcisconv/internal/nsctx"
)

// WritePolicy selects how a Writer formats start elements and
// indentation.
type WritePolicy int

const (
	// IndentingPolicy pretty-prints with a newline and two spaces of
	// indent per depth level — used for whole-document output.
	IndentingPolicy WritePolicy = iota
	// NonRootStrippingPolicy omits any xmlns declarations on the
	// fragment's outermost element — used when a per-event fragment is
	// being embedded into a header that already declares every
	// namespace the fragment needs.
	NonRootStrippingPolicy
)

// Writer serializes a stream of tag-form tokens into bytes, resolving
// each element and attribute's namespace URI back to a prefix via ns.
type Writer struct {
	buf    bytes.Buffer
	ns     *nsctx.Context
	policy WritePolicy
	depth  int
}

// NewWriter creates a Writer under policy, resolving qualified names
// against ns.
func NewWriter(policy WritePolicy, ns *nsctx.Context) *Writer {
	return &Writer{ns: ns, policy: policy}
}

// Bytes returns everything written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reset clears the writer for reuse, e.g. between successive event
// fragments sharing one Writer instance.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.depth = 0
}

func (w *Writer) writeIndent() {
	if w.policy != IndentingPolicy {
		return
	}
	w.buf.WriteByte('\n')
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString("  ")
	}
}

// WriteStart writes a start tag for start. At depth 0 under
// NonRootStrippingPolicy, any xmlns declarations carried on start are
// omitted.
func (w *Writer) WriteStart(start xml.StartElement) error {
	w.writeIndent()
	w.buf.WriteByte('<')
	w.buf.WriteString(w.qualifiedName(start.Name))

	attrs := start.Attr
	if w.policy == NonRootStrippingPolicy && w.depth == 0 {
		attrs = stripNamespaceDecls(attrs)
	}
	for _, a := range attrs {
		name := w.qualifiedName(a.Name)
		if a.Name.Space == "xmlns" {
			name = "xmlns:" + a.Name.Local
		}
		w.buf.WriteByte(' ')
		w.buf.WriteString(name)
		w.buf.WriteString(`="`)
		if err := xml.EscapeText(&w.buf, []byte(a.Value)); err != nil {
			return err
		}
		w.buf.WriteByte('"')
	}
	w.buf.WriteByte('>')
	w.depth++
	return nil
}

// WriteEnd writes an end tag for end.
func (w *Writer) WriteEnd(end xml.EndElement) error {
	w.depth--
	w.writeIndent()
	w.buf.WriteString("</")
	w.buf.WriteString(w.qualifiedName(end.Name))
	w.buf.WriteByte('>')
	return nil
}

// WriteChars writes escaped character data.
func (w *Writer) WriteChars(data []byte) error {
	return xml.EscapeText(&w.buf, data)
}

// qualifiedName reconstructs a "prefix:local" (or bare "local") name
// from an xml.Name whose Space field, per encoding/xml's decoding
// convention, holds the resolved namespace URI rather than the prefix
// actually used in the source document.
func (w *Writer) qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := w.ns.ResolveURI(name.Space); ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	return name.Local
}

func stripNamespaceDecls(attrs []xml.Attr) []xml.Attr {
	out := attrs[:0:0]
	for _, a := range attrs {
		if a.Name.Space == "xmlns" {
			continue
		}
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			continue
		}
		out = append(out, a)
	}
	return out
}
