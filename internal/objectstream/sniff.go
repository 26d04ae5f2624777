package objectstream

import "github.com/buger/jsonparser"

// Sniff performs a cheap, non-streaming classification of a buffered
// JSON-LD document prefix, without the allocation cost of building a
// full Node tree. Neither the Reader nor any other package in this
// module calls SniffHeader.
type Sniff struct {
	Type          string
	SchemaVersion string
}

// SniffHeader inspects raw for its top-level "type" and "schemaVersion"
// fields. raw need not be the complete document — anything from the
// opening brace through the end of those two fields is enough — but
// must be valid enough JSON for jsonparser to locate top-level keys.
func SniffHeader(raw []byte) Sniff {
	var s Sniff
	if t, err := jsonparser.GetString(raw, "type"); err == nil {
		s.Type = t
	} else if arr, _, _, err := jsonparser.Get(raw, "type"); err == nil {
		_, _ = jsonparser.ArrayEach(arr, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
			if s.Type == "" && dataType == jsonparser.String {
				s.Type = string(value)
			}
		})
	}
	if v, err := jsonparser.GetString(raw, "schemaVersion"); err == nil {
		s.SchemaVersion = v
	}
	return s
}
