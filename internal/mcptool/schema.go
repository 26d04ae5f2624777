// Package mcptool exposes the Router as an MCP tool, so an LLM agent can
// request an EPCIS conversion the same way a human operator would call
// the HTTP gateway.
package mcptool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// convertArgs mirrors router.ConversionSpec's fields plus the document
// body, with the json tags invopop/jsonschema needs to reflect a
// descriptive input schema. It is kept separate from
// router.ConversionSpec, which has no JSON tags of its own and isn't
// meant to describe wire shapes.
type convertArgs struct {
	FromFmt              string `json:"from_fmt" jsonschema:"enum=tag,enum=object,description=Source document serialization."`
	FromRev              string `json:"from_rev,omitempty" jsonschema:"enum=1.1,enum=1.2,enum=2.0,description=Source schema revision; omit to autodetect for tag input."`
	ToFmt                string `json:"to_fmt" jsonschema:"enum=tag,enum=object,description=Target document serialization."`
	ToRev                string `json:"to_rev,omitempty" jsonschema:"enum=1.1,enum=1.2,enum=2.0,description=Target schema revision; defaults to from_rev when omitted."`
	NormalizeToLegacyIDs bool   `json:"normalize_to_legacy_ids,omitempty" jsonschema:"description=Keep AssociationEvent/persistentDisposition/sensorElementList when downgrading to 1.2 instead of dropping them."`
	Document             string `json:"document" jsonschema:"description=The full EPCIS document to convert, as a UTF-8 string."`
}

// inputSchemaJSON renders the JSON Schema describing convertArgs, used
// as the tool's input schema document.
func inputSchemaJSON() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&convertArgs{})
	return json.Marshal(schema)
}
