package epcisevent

import (
	"context"
	"strings"
	"testing"

	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/objectstream"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/tagstream"
)

func TestParseTagThenWriteObjectCollapsesCollectionWrapper(t *testing.T) {
	t.Parallel()

	doc := `<ObjectEvent>
		<eventTime>2024-01-01T00:00:00Z</eventTime>
		<epcList><epc>urn:epc:id:sgtin:a</epc><epc>urn:epc:id:sgtin:b</epc></epcList>
		<action>ADD</action>
	</ObjectEvent>`

	ns := nsctx.New()
	ctx := context.Background()
	r := tagstream.NewReader(ctx, source.FromBytes([]byte(doc)).AsByteSequence(ctx), ns)

	var start tagstream.Token
	for {
		tok, err, ok := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("never found ObjectEvent start element")
		}
		if tok.Kind == tagstream.StartElementToken && tok.Start.Name.Local == "ObjectEvent" {
			start = tok
			break
		}
	}

	ev, err := ParseTag(r, start)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != "ObjectEvent" {
		t.Fatalf("expected ObjectEvent, got %q", ev.Type)
	}

	node, err := ev.WriteObject(ns)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := node.Get("epcList")
	if !ok {
		t.Fatal("expected epcList field")
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 || arr[0] != "urn:epc:id:sgtin:a" || arr[1] != "urn:epc:id:sgtin:b" {
		t.Fatalf("expected flattened epcList array, got %#v", v)
	}
	if action, ok := node.GetString("action"); !ok || action != "ADD" {
		t.Fatalf("expected action ADD, got %q ok=%v", action, ok)
	}
}

func TestParseObjectThenWriteTagRebuildsCollectionWrapper(t *testing.T) {
	t.Parallel()

	node := objectstream.NewNode()
	node.Set("type", "ObjectEvent")
	node.Set("eventTime", "2024-01-01T00:00:00Z")
	node.Set("epcList", []any{"urn:epc:id:sgtin:a", "urn:epc:id:sgtin:b"})
	node.Set("action", "ADD")

	ev, err := ParseObject(node)
	if err != nil {
		t.Fatal(err)
	}

	ns := nsctx.New()
	w := tagstream.NewWriter(tagstream.NonRootStrippingPolicy, ns)
	if err := ev.WriteTag(w); err != nil {
		t.Fatal(err)
	}

	out := string(w.Bytes())
	if !strings.Contains(out, "<epcList><epc>urn:epc:id:sgtin:a</epc><epc>urn:epc:id:sgtin:b</epc></epcList>") {
		t.Fatalf("expected rebuilt collection wrapper, got %q", out)
	}
	if !strings.Contains(out, "<action>ADD</action>") {
		t.Fatalf("expected action field, got %q", out)
	}
}
