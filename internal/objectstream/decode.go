package objectstream

import (
	"encoding/json"
	"fmt"
)

// decodeValue reads exactly one JSON value from dec — a scalar, an
// array, or an object — preserving key order and folding duplicate keys
// within objects.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeValueFromToken(dec, tok)
}

func decodeValueFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObjectBody(dec)
		case '[':
			return decodeArrayBody(dec)
		default:
			return nil, fmt.Errorf("objectstream: unexpected delimiter %q", v)
		}
	default:
		return tok, nil
	}
}

// decodeObjectBody decodes an object's members, assuming the opening '{'
// has already been consumed. It consumes the closing '}'.
func decodeObjectBody(dec *json.Decoder) (*Node, error) {
	node := NewNode()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("objectstream: non-string object key %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		node.setFoldingDuplicates(key, val)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return node, nil
}

// decodeArrayBody decodes an array's elements, assuming the opening '['
// has already been consumed. It consumes the closing ']'.
func decodeArrayBody(dec *json.Decoder) ([]any, error) {
	var out []any
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, err
	}
	return out, nil
}
