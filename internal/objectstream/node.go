// Package objectstream streams a JSON-LD EPCIS document (object form) as a
// lazy sequence of nodes: the document header first, then one node per
// event, without ever materializing the full event list in memory.
package objectstream

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalJSON renders the node as a JSON object in key declaration order.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil || n.om == nil {
		return []byte("null"), nil
	}
	return n.om.MarshalJSON()
}

// regularEventTypes are the @type values recognized as EPCIS events.
var regularEventTypes = map[string]struct{}{
	"ObjectEvent":         {},
	"AggregationEvent":    {},
	"TransactionEvent":    {},
	"TransformationEvent": {},
	"AssociationEvent":    {},
}

// Node is an ordered JSON object. Key order is preserved on read, and a
// key that occurs more than once at the same nesting level (legal in
// raw JSON, though never produced by a conforming encoder) has its
// values folded into a slice in first-seen order rather than the later
// occurrence silently winning.
type Node struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewNode creates an empty Node.
func NewNode() *Node {
	return &Node{om: orderedmap.New[string, any]()}
}

// Get returns the value bound to key, if any.
func (n *Node) Get(key string) (any, bool) {
	if n == nil || n.om == nil {
		return nil, false
	}
	return n.om.Get(key)
}

// Set binds key to value, overwriting any existing binding.
func (n *Node) Set(key string, value any) {
	n.om.Set(key, value)
}

// setFoldingDuplicates binds key to value, but if key is already bound
// it folds the prior value(s) and the new one into a slice instead of
// overwriting — so a repeated key never loses data.
func (n *Node) setFoldingDuplicates(key string, value any) {
	if existing, ok := n.om.Get(key); ok {
		if slice, ok := existing.([]any); ok {
			n.om.Set(key, append(slice, value))
			return
		}
		n.om.Set(key, []any{existing, value})
		return
	}
	n.om.Set(key, value)
}

// Fold binds key to value, folding it with any prior value(s) bound to
// key into a slice rather than overwriting. Exported for collaborators
// (the default event model) that build nodes field-by-field from a
// source that may repeat a field name.
func (n *Node) Fold(key string, value any) {
	n.setFoldingDuplicates(key, value)
}

// Keys returns the node's keys in first-seen order.
func (n *Node) Keys() []string {
	if n == nil || n.om == nil {
		return nil
	}
	out := make([]string, 0, n.om.Len())
	for pair := n.om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of keys in the node.
func (n *Node) Len() int {
	if n == nil || n.om == nil {
		return 0
	}
	return n.om.Len()
}

// GetString returns key's value coerced to a string, if it is a string.
func (n *Node) GetString(key string) (string, bool) {
	v, ok := n.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// typeValues normalizes the node's "type" field — a JSON-LD @type may be
// a bare string or an array of strings — into a slice.
func (n *Node) typeValues() []string {
	v, ok := n.Get("type")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IsHeader reports whether the node looks like a document header: its
// type names an EPCIS document, or it carries both @context and
// schemaVersion.
func (n *Node) IsHeader() bool {
	for _, t := range n.typeValues() {
		if t == "EPCISDocument" || t == "EPCISQueryDocument" {
			return true
		}
	}
	_, hasContext := n.Get("@context")
	_, hasSchema := n.Get("schemaVersion")
	return hasContext && hasSchema
}

// IsQueryDocument reports whether the header node describes a query
// document rather than a regular capture document.
func (n *Node) IsQueryDocument() bool {
	for _, t := range n.typeValues() {
		if t == "EPCISQueryDocument" {
			return true
		}
	}
	return false
}

// EventType returns the node's recognized EPCIS event type name, if any.
func (n *Node) EventType() (string, bool) {
	for _, t := range n.typeValues() {
		if _, ok := regularEventTypes[t]; ok {
			return t, true
		}
	}
	return "", false
}
