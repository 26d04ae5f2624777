package tagstream

import (
	"context"
	"testing"

	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/source"
)

func TestReaderCapturesNamespaceDeclarations(t *testing.T) {
	t.Parallel()

	doc := `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:2" xmlns:ext="urn:example:ext">
		<EPCISBody><EventList><ObjectEvent ext:custom="1"><eventTime>x</eventTime></ObjectEvent></EventList></EPCISBody>
	</epcis:EPCISDocument>`

	ns := nsctx.New()
	ctx := context.Background()
	r := NewReader(ctx, source.FromBytes([]byte(doc)).AsByteSequence(ctx), ns)

	var sawRootDecl bool
	for {
		tok, err, ok := r.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		if tok.Kind == StartElementToken && tok.Start.Name.Local == "EPCISDocument" {
			if tok.NSDeclCount != 2 {
				t.Fatalf("expected 2 namespace declarations on root, got %d", tok.NSDeclCount)
			}
			sawRootDecl = true
		}
	}
	if !sawRootDecl {
		t.Fatal("never saw the root element")
	}

	if prefix, ok := ns.ResolveURI("urn:example:ext"); !ok || prefix != "ext" {
		t.Fatalf("expected ext prefix bound, got %q ok=%v", prefix, ok)
	}
}

func TestIsUsablePrefix(t *testing.T) {
	t.Parallel()

	root := map[string]struct{}{"epcis": {}}
	cases := []struct {
		prefix string
		want   bool
	}{
		{"", false},
		{"ext", true},
		{"has:colon", false},
		{"has/slash", false},
		{"xmlns", false},
		{"xmlnsfoo", false},
		{"http", false},
		{"httpfoo", false},
		{"cbvmda", false},
		{"epcis", false},
	}
	for _, c := range cases {
		if got := IsUsablePrefix(c.prefix, root); got != c.want {
			t.Errorf("IsUsablePrefix(%q) = %v, want %v", c.prefix, got, c.want)
		}
	}
}
