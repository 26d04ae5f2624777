package tagstream

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/flemzord/epcisconv/internal/nsctx"
)

func TestWriterIndentingPolicyResolvesPrefixes(t *testing.T) {
	t.Parallel()

	ns := nsctx.New()
	ns.PutDocument("epcis", nsctx.EPCIS20URI)

	w := NewWriter(IndentingPolicy, ns)
	root := xml.StartElement{
		Name: xml.Name{Space: nsctx.EPCIS20URI, Local: "EPCISDocument"},
		Attr: []xml.Attr{{Name: xml.Name{Space: "xmlns", Local: "epcis"}, Value: nsctx.EPCIS20URI}},
	}
	if err := w.WriteStart(root); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteEnd(xml.EndElement{Name: root.Name}); err != nil {
		t.Fatal(err)
	}

	got := string(w.Bytes())
	if !strings.Contains(got, "<epcis:EPCISDocument") {
		t.Fatalf("expected prefixed root element, got %q", got)
	}
	if !strings.Contains(got, `xmlns:epcis="urn:epcglobal:epcis:xsd:2"`) {
		t.Fatalf("expected namespace declaration preserved, got %q", got)
	}
	if !strings.Contains(got, "\n") {
		t.Fatalf("expected indenting policy to insert newlines, got %q", got)
	}
}

func TestWriterNonRootStrippingPolicyOmitsRootNamespaceDecls(t *testing.T) {
	t.Parallel()

	ns := nsctx.New()
	ns.PutDocument("epcis", nsctx.EPCIS20URI)

	w := NewWriter(NonRootStrippingPolicy, ns)
	event := xml.StartElement{
		Name: xml.Name{Space: nsctx.EPCIS20URI, Local: "ObjectEvent"},
		Attr: []xml.Attr{{Name: xml.Name{Space: "xmlns", Local: "epcis"}, Value: nsctx.EPCIS20URI}},
	}
	if err := w.WriteStart(event); err != nil {
		t.Fatal(err)
	}
	child := xml.StartElement{Name: xml.Name{Local: "eventTime"}}
	if err := w.WriteStart(child); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChars([]byte("2024-01-01T00:00:00Z")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteEnd(xml.EndElement{Name: child.Name}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteEnd(xml.EndElement{Name: event.Name}); err != nil {
		t.Fatal(err)
	}

	got := string(w.Bytes())
	if strings.Contains(got, "xmlns") {
		t.Fatalf("expected root-level xmlns declaration stripped, got %q", got)
	}
	if !strings.Contains(got, "<epcis:ObjectEvent>") {
		t.Fatalf("expected prefixed element name retained, got %q", got)
	}
}
