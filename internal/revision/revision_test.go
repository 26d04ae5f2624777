package revision

import (
	"errors"
	"strings"
	"testing"
)

const oneXDoc = `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="1.2">
<EPCISBody><EventList><ObjectEvent><action>ADD</action></ObjectEvent></EventList></EPCISBody>
</epcis:EPCISDocument>`

func TestTransformUpgradesOneXToTwoZero(t *testing.T) {
	t.Parallel()

	out, err := Transform([]byte(oneXDoc), "1.2", "2.0", Flags{})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.Contains(got, `urn:epcglobal:epcis:xsd:2`) {
		t.Fatalf("expected rewritten namespace, got:\n%s", got)
	}
	if strings.Contains(got, `urn:epcglobal:epcis:xsd:1`) {
		t.Fatalf("did not expect old namespace to survive, got:\n%s", got)
	}
	if !strings.Contains(got, `schemaVersion="2.0"`) {
		t.Fatalf("expected rewritten schemaVersion, got:\n%s", got)
	}
}

const oneOneDoc = `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:1" schemaVersion="1.1">
<EPCISBody><EventList><ObjectEvent><action>ADD</action></ObjectEvent></EventList></EPCISBody>
</epcis:EPCISDocument>`

func TestTransformUpgradesOneOneToTwoZero(t *testing.T) {
	t.Parallel()

	out, err := Transform([]byte(oneOneDoc), "1.1", "2.0", Flags{})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.Contains(got, `urn:epcglobal:epcis:xsd:2`) {
		t.Fatalf("expected rewritten namespace, got:\n%s", got)
	}
	if !strings.Contains(got, `schemaVersion="2.0"`) {
		t.Fatalf("expected schemaVersion rewritten from 1.1 to 2.0, got:\n%s", got)
	}
	if strings.Contains(got, `schemaVersion="1.1"`) {
		t.Fatalf("did not expect the original 1.1 schemaVersion to survive, got:\n%s", got)
	}
}

const twoZeroDoc = `<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:2" schemaVersion="2.0">
<EPCISBody><EventList>
<AssociationEvent><action>ADD</action></AssociationEvent>
<ObjectEvent><action>ADD</action><persistentDisposition><set>active</set></persistentDisposition></ObjectEvent>
</EventList></EPCISBody>
</epcis:EPCISDocument>`

func TestTransformDowngradesTwoZeroToOneTwoOmittingUnflagged(t *testing.T) {
	t.Parallel()

	out, err := Transform([]byte(twoZeroDoc), "2.0", "1.2", Flags{})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if strings.Contains(got, "AssociationEvent") {
		t.Fatalf("expected AssociationEvent to be omitted, got:\n%s", got)
	}
	if strings.Contains(got, "persistentDisposition") {
		t.Fatalf("expected persistentDisposition to be omitted, got:\n%s", got)
	}
	if !strings.Contains(got, "ObjectEvent") {
		t.Fatalf("expected ObjectEvent to survive, got:\n%s", got)
	}
	if !strings.Contains(got, `schemaVersion="1.2"`) {
		t.Fatalf("expected rewritten schemaVersion, got:\n%s", got)
	}
}

func TestTransformDowngradesTwoZeroToOneTwoKeepingFlagged(t *testing.T) {
	t.Parallel()

	out, err := Transform([]byte(twoZeroDoc), "2.0", "1.2", Flags{
		IncludeAssociationEvent:      true,
		IncludePersistentDisposition: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	if !strings.Contains(got, "AssociationEvent") {
		t.Fatalf("expected AssociationEvent to survive, got:\n%s", got)
	}
	if !strings.Contains(got, "persistentDisposition") {
		t.Fatalf("expected persistentDisposition to survive, got:\n%s", got)
	}
}

func TestTransformRejectsUnsupportedDirection(t *testing.T) {
	t.Parallel()

	_, err := Transform([]byte(oneXDoc), "1.2", "1.1", Flags{})
	if !errors.Is(err, ErrUnsupportedConversion) {
		t.Fatalf("expected ErrUnsupportedConversion, got %v", err)
	}
}
