package router

import "fmt"

// Format is a document serialization.
type Format string

const (
	Tag    Format = "tag"
	Object Format = "object"
)

// Revision is a schema revision, totally ordered 1.1 < 1.2 < 2.0.
type Revision string

const (
	Rev11 Revision = "1.1"
	Rev12 Revision = "1.2"
	Rev20 Revision = "2.0"
)

var validFormats = map[Format]struct{}{Tag: {}, Object: {}}
var validRevisions = map[Revision]struct{}{Rev11: {}, Rev12: {}, Rev20: {}}

// ConversionSpec describes a requested conversion. FromRev may be left
// empty to request autodetection; ToRev defaults to FromRev when empty.
type ConversionSpec struct {
	FromFmt Format
	FromRev Revision
	ToFmt   Format
	ToRev   Revision
	// NormalizeToLegacyIDs gates whether a 2.0→1.2 revision transform
	// keeps AssociationEvent, persistentDisposition, and
	// sensorElementList constructs (all default to omitted otherwise).
	NormalizeToLegacyIDs bool
}

// resolved returns spec with ToRev defaulted to FromRev when empty.
func (s ConversionSpec) resolved() ConversionSpec {
	if s.ToRev == "" {
		s.ToRev = s.FromRev
	}
	return s
}

// validate checks the fmt/rev membership invariants from the data model,
// independent of whether the resulting pair is a supported pipeline.
func (s ConversionSpec) validate() error {
	if _, ok := validFormats[s.FromFmt]; !ok {
		return newError(InvalidArgument, fmt.Errorf("from_fmt %q is not one of {tag, object}", s.FromFmt))
	}
	if _, ok := validFormats[s.ToFmt]; !ok {
		return newError(InvalidArgument, fmt.Errorf("to_fmt %q is not one of {tag, object}", s.ToFmt))
	}
	if s.FromRev != "" {
		if _, ok := validRevisions[s.FromRev]; !ok {
			return newError(InvalidArgument, fmt.Errorf("from_rev %q is not one of {1.1, 1.2, 2.0}", s.FromRev))
		}
	}
	if _, ok := validRevisions[s.ToRev]; !ok {
		return newError(InvalidArgument, fmt.Errorf("to_rev %q is not one of {1.1, 1.2, 2.0}", s.ToRev))
	}
	return nil
}

func isOneX(r Revision) bool {
	return r == Rev11 || r == Rev12
}
