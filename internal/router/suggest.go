package router

import "fmt"

// supportedPairsText is the canonical supported-pair list every
// Unsupported error message includes verbatim.
const supportedPairsText = "Supported conversion pairs: tag<->tag (any revisions), " +
	"tag 2.0<->object 2.0, tag 1.x->object 2.0, object 2.0->tag 1.2, object 2.0->object 2.0."

type pairKey struct {
	fromFmt Format
	fromRev Revision
	toFmt   Format
	toRev   Revision
}

// suggestions maps specific, commonly-attempted unsupported pairs to a
// precise hint, beyond the generic supported-pair list.
var suggestions = map[pairKey]string{
	{Object, Rev20, Tag, Rev11}: "XML 1.1 output not supported. Use XML 1.2 or XML 2.0 instead.",
	{Object, Rev11, Tag, Rev20}: "JSON-LD input is only supported at revision 2.0.",
	{Object, Rev12, Tag, Rev20}: "JSON-LD input is only supported at revision 2.0.",
}

// unsupportedError builds the Unsupported ConversionError for spec,
// including the literal substring "Supported" and, when available, a
// pair-specific hint.
func unsupportedError(spec ConversionSpec) error {
	msg := fmt.Sprintf("conversion %s/%s -> %s/%s is not supported. %s",
		spec.FromFmt, spec.FromRev, spec.ToFmt, spec.ToRev, supportedPairsText)
	if hint, ok := suggestions[pairKey{spec.FromFmt, spec.FromRev, spec.ToFmt, spec.ToRev}]; ok {
		msg += " " + hint
	}
	return newError(Unsupported, fmt.Errorf("%s", msg))
}
