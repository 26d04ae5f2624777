package identifier

import (
	"testing"

	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/nsctx"
)

func eventWithEPC(epc string) *epcisevent.Event {
	return &epcisevent.Event{
		Type: "ObjectEvent",
		Root: &epcisevent.Element{
			Name: "ObjectEvent",
			Children: []*epcisevent.Element{
				{Name: "epcList", Children: []*epcisevent.Element{
					{Name: "epc", Text: epc},
				}},
			},
		},
	}
}

func epcOf(ev *epcisevent.Event) string {
	return ev.Root.Children[0].Children[0].Text
}

func TestSGTINURNToDigitalLinkRoundTrip(t *testing.T) {
	t.Parallel()

	urn := "urn:epc:id:sgtin:0614141.812345.6789"
	ev := eventWithEPC(urn)

	ev, err := ToDigitalLink(ev, 1, nsctx.New())
	if err != nil {
		t.Fatal(err)
	}
	dl := epcOf(ev)
	if dl == urn {
		t.Fatalf("expected rewritten identifier, got unchanged %q", dl)
	}

	ev, err = ToURN(ev, 1, nsctx.New())
	if err != nil {
		t.Fatal(err)
	}
	if got := epcOf(ev); got != urn {
		t.Fatalf("round trip mismatch: got %q want %q", got, urn)
	}
}

func TestSSCCURNToDigitalLinkRoundTrip(t *testing.T) {
	t.Parallel()

	urn := "urn:epc:id:sscc:0614141.1234567890"
	ev := &epcisevent.Event{
		Type: "ObjectEvent",
		Root: &epcisevent.Element{
			Name: "ObjectEvent",
			Children: []*epcisevent.Element{
				{Name: "parentID", Text: urn},
			},
		},
	}

	ev, err := ToDigitalLink(ev, 1, nsctx.New())
	if err != nil {
		t.Fatal(err)
	}
	if ev.Root.Children[0].Text == urn {
		t.Fatal("expected parentID to be rewritten")
	}

	ev, err = ToURN(ev, 1, nsctx.New())
	if err != nil {
		t.Fatal(err)
	}
	if got := ev.Root.Children[0].Text; got != urn {
		t.Fatalf("round trip mismatch: got %q want %q", got, urn)
	}
}

func TestUnrecognizedIdentifierPassesThrough(t *testing.T) {
	t.Parallel()

	ev := eventWithEPC("not-a-gs1-identifier")
	ev, err := ToDigitalLink(ev, 1, nsctx.New())
	if err != nil {
		t.Fatal(err)
	}
	if got := epcOf(ev); got != "not-a-gs1-identifier" {
		t.Fatalf("expected unchanged passthrough, got %q", got)
	}
}
