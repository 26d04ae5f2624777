// Package identifier implements the two default event normalizers: one
// rewrites EPC identifiers to their URN form, the other to their GS1
// Digital Link form. Only the SGTIN and SSCC identifier schemes are
// handled; any other value is passed through unchanged.
package identifier

import (
	"fmt"
	"strings"

	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/nsctx"
)

// identifierFields are the leaf elements whose text carries an EPC
// identifier eligible for normalization.
var identifierFields = map[string]struct{}{
	"epc":      {},
	"parentID": {},
}

// defaultCompanyPrefixLen is assumed when splitting a GS1 Digital Link
// identifier back into company prefix and item/serial reference,
// because the identifier alone does not encode the GS1-assigned prefix
// length. A real deployment would resolve this from GS1's published
// prefix-length table; this module picks a fixed, documented length
// instead.
const defaultCompanyPrefixLen = 7

// ToURN rewrites ev's identifier fields from Digital Link form to URN
// form, leaving anything already in URN form or not recognized
// unchanged.
func ToURN(ev *epcisevent.Event, _ int, _ *nsctx.Context) (*epcisevent.Event, error) {
	epcisevent.RewriteLeaves(ev.Root, identifierFields, func(v string) string {
		if urn, ok := digitalLinkToURN(v); ok {
			return urn
		}
		return v
	})
	return ev, nil
}

// ToDigitalLink rewrites ev's identifier fields from URN form to
// Digital Link form, leaving anything already in Digital Link form or
// not recognized unchanged.
func ToDigitalLink(ev *epcisevent.Event, _ int, _ *nsctx.Context) (*epcisevent.Event, error) {
	epcisevent.RewriteLeaves(ev.Root, identifierFields, func(v string) string {
		if dl, ok := urnToDigitalLink(v); ok {
			return dl
		}
		return v
	})
	return ev, nil
}

func urnToDigitalLink(v string) (string, bool) {
	if dl, ok := sgtinURNToDL(v); ok {
		return dl, true
	}
	if dl, ok := ssccURNToDL(v); ok {
		return dl, true
	}
	return "", false
}

func digitalLinkToURN(v string) (string, bool) {
	if urn, ok := sgtinDLToURN(v); ok {
		return urn, true
	}
	if urn, ok := ssccDLToURN(v); ok {
		return urn, true
	}
	return "", false
}

// gs1CheckDigit computes the GS1 mod-10 check digit over digits (read
// right to left, weighted 3/1 alternating from the rightmost digit).
func gs1CheckDigit(digits string) (byte, bool) {
	sum := 0
	for i, pos := 0, len(digits)-1; pos >= 0; i, pos = i+1, pos-1 {
		if digits[pos] < '0' || digits[pos] > '9' {
			return 0, false
		}
		d := int(digits[pos] - '0')
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return byte('0' + (10-sum%10)%10), true
}

func sgtinURNToDL(urn string) (string, bool) {
	const prefix = "urn:epc:id:sgtin:"
	if !strings.HasPrefix(urn, prefix) {
		return "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(urn, prefix), ".", 3)
	if len(parts) != 3 {
		return "", false
	}
	companyPrefix, itemRef, serial := parts[0], parts[1], parts[2]
	if len(itemRef) < 1 {
		return "", false
	}
	digits13 := itemRef[:1] + companyPrefix + itemRef[1:]
	if len(digits13) != 13 {
		return "", false
	}
	check, ok := gs1CheckDigit(digits13)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://id.gs1.org/01/%s%c/21/%s", digits13, check, serial), true
}

func sgtinDLToURN(dl string) (string, bool) {
	gtin14, serial, ok := extractDLSegments(dl, "/01/", "/21/")
	if !ok || len(gtin14) != 14 {
		return "", false
	}
	digits13 := gtin14[:13]
	n := defaultCompanyPrefixLen
	if n+1 >= len(digits13) {
		return "", false
	}
	indicator := digits13[:1]
	companyPrefix := digits13[1 : 1+n]
	itemRefRemainder := digits13[1+n:]
	return fmt.Sprintf("urn:epc:id:sgtin:%s.%s%s.%s", companyPrefix, indicator, itemRefRemainder, serial), true
}

func ssccURNToDL(urn string) (string, bool) {
	const prefix = "urn:epc:id:sscc:"
	if !strings.HasPrefix(urn, prefix) {
		return "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(urn, prefix), ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	companyPrefix, serialField := parts[0], parts[1]
	if len(serialField) < 1 {
		return "", false
	}
	digits17 := serialField[:1] + companyPrefix + serialField[1:]
	if len(digits17) != 17 {
		return "", false
	}
	check, ok := gs1CheckDigit(digits17)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://id.gs1.org/00/%s%c", digits17, check), true
}

func ssccDLToURN(dl string) (string, bool) {
	const marker = "/00/"
	i := strings.Index(dl, marker)
	if i < 0 {
		return "", false
	}
	sscc18 := dl[i+len(marker):]
	if len(sscc18) != 18 {
		return "", false
	}
	digits17 := sscc18[:17]
	n := defaultCompanyPrefixLen
	if n+1 >= len(digits17) {
		return "", false
	}
	extension := digits17[:1]
	companyPrefix := digits17[1 : 1+n]
	serialRemainder := digits17[1+n:]
	return fmt.Sprintf("urn:epc:id:sscc:%s.%s%s", companyPrefix, extension, serialRemainder), true
}

// extractDLSegments pulls the value between startMarker and endMarker
// and the value after endMarker out of a Digital Link URL.
func extractDLSegments(dl, startMarker, endMarker string) (string, string, bool) {
	i := strings.Index(dl, startMarker)
	if i < 0 {
		return "", "", false
	}
	rest := dl[i+len(startMarker):]
	j := strings.Index(rest, endMarker)
	if j < 0 {
		return "", "", false
	}
	return rest[:j], rest[j+len(endMarker):], true
}
