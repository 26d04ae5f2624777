package nsctx

import "testing"

func TestPutEventRejectsStandardPrefix(t *testing.T) {
	t.Parallel()

	c := New()
	c.PutEvent(EPCISPrefix, "https://example.com/shadow")

	uri, ok := c.ResolvePrefix(EPCISPrefix)
	if ok {
		t.Fatalf("expected standard prefix %q to remain unbound, got %q", EPCISPrefix, uri)
	}
}

func TestEventTakesPrecedenceOverDocument(t *testing.T) {
	t.Parallel()

	c := New()
	c.PutDocument("ext", "https://example.com/v1")
	c.PutEvent("ext", "https://example.com/v2")

	uri, ok := c.ResolvePrefix("ext")
	if !ok || uri != "https://example.com/v2" {
		t.Fatalf("expected event binding to win, got %q, ok=%v", uri, ok)
	}
}

func TestScopeForEventIsolatesChild(t *testing.T) {
	t.Parallel()

	parent := New()
	parent.PutDocument("ext", "https://example.com/v1")

	child := ScopeForEvent(parent)
	child.PutDocument("ext", "https://example.com/child-only")
	child.PutEvent("local", "https://example.com/local")

	if uri, _ := parent.ResolvePrefix("ext"); uri != "https://example.com/v1" {
		t.Fatalf("parent mutated by child: got %q", uri)
	}
	if _, ok := parent.ResolvePrefix("local"); ok {
		t.Fatalf("parent leaked child event binding")
	}
	if uri, _ := child.ResolvePrefix("ext"); uri != "https://example.com/child-only" {
		t.Fatalf("child lost its own document binding: got %q", uri)
	}
}

func TestResetEventClearsOnlyEventScope(t *testing.T) {
	t.Parallel()

	c := New()
	c.PutDocument("doc", "https://example.com/doc")
	c.PutEvent("ev", "https://example.com/ev")

	c.ResetEvent()

	if _, ok := c.ResolvePrefix("ev"); ok {
		t.Fatalf("event binding survived ResetEvent")
	}
	if uri, ok := c.ResolvePrefix("doc"); !ok || uri != "https://example.com/doc" {
		t.Fatalf("document binding lost after ResetEvent: %q, %v", uri, ok)
	}
}

func TestURIToPrefixViewPreservesDuplicates(t *testing.T) {
	t.Parallel()

	c := New()
	c.PutDocument("a", "https://example.com/shared")
	c.PutDocument("b", "https://example.com/shared")

	prefixes := c.URIToPrefixView()["https://example.com/shared"]
	if len(prefixes) != 2 {
		t.Fatalf("expected both prefixes preserved, got %v", prefixes)
	}
}
