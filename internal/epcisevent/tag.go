package epcisevent

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/flemzord/epcisconv/internal/tagstream"
)

// Event is the opaque carrier the core hands between pipeline stages: it
// knows nothing about sequence numbers or which conversion produced it.
type Event struct {
	Type string
	Root *Element
}

func isNSDeclAttr(name xml.Name) bool {
	if name.Space == "xmlns" {
		return true
	}
	return name.Space == "" && name.Local == "xmlns"
}

func attrsFromStart(start xml.StartElement) []Attr {
	var attrs []Attr
	for _, a := range start.Attr {
		if isNSDeclAttr(a.Name) {
			continue
		}
		attrs = append(attrs, Attr{Name: a.Name.Local, NS: a.Name.Space, Value: a.Value})
	}
	return attrs
}

// ParseTag builds an Event from start (the event's own start token,
// already consumed from r) and its descendants, consuming r up to and
// including the matching end element.
func ParseTag(r *tagstream.Reader, start tagstream.Token) (*Event, error) {
	root := &Element{
		Name:  start.Start.Name.Local,
		NS:    start.Start.Name.Space,
		Attrs: attrsFromStart(start.Start),
	}
	if err := parseTagChildren(r, root); err != nil {
		return nil, err
	}
	return &Event{Type: root.Name, Root: root}, nil
}

func parseTagChildren(r *tagstream.Reader, parent *Element) error {
	var text []byte
	for {
		tok, err, ok := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("epcisevent: unexpected end of input inside <%s>", parent.Name)
		}
		switch tok.Kind {
		case tagstream.CharDataToken:
			text = append(text, tok.Chars...)
		case tagstream.StartElementToken:
			child := &Element{
				Name:  tok.Start.Name.Local,
				NS:    tok.Start.Name.Space,
				Attrs: attrsFromStart(tok.Start),
			}
			if err := parseTagChildren(r, child); err != nil {
				return err
			}
			parent.Children = append(parent.Children, child)
		case tagstream.EndElementToken:
			parent.Text = strings.TrimSpace(string(text))
			return nil
		}
	}
}

// WriteTag serializes e to w as a tag-form fragment.
func (e *Event) WriteTag(w *tagstream.Writer) error {
	return writeElementTag(w, e.Root)
}

func writeElementTag(w *tagstream.Writer, el *Element) error {
	start := xml.StartElement{Name: xml.Name{Space: el.NS, Local: el.Name}}
	for _, a := range el.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Space: a.NS, Local: a.Name}, Value: a.Value})
	}
	if err := w.WriteStart(start); err != nil {
		return err
	}
	if len(el.Children) == 0 {
		if el.Text != "" {
			if err := w.WriteChars([]byte(el.Text)); err != nil {
				return err
			}
		}
	} else {
		for _, c := range el.Children {
			if err := writeElementTag(w, c); err != nil {
				return err
			}
		}
	}
	return w.WriteEnd(xml.EndElement{Name: start.Name})
}
