package epcisevent

import (
	"fmt"
	"strings"

	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/objectstream"
)

// singularOverrides covers the EPCIS collection elements whose singular
// child name isn't simply the collection name with its "List" suffix
// stripped.
var singularOverrides = map[string]string{
	"childEPCs":    "epc",
	"quantityList": "quantityElement",
}

// singularElementName returns the tag-form child element name used
// inside the collection element named listName (e.g. "epcList" ->
// "epc"). Unknown collection names fall back to repeating the
// collection's own name, which round-trips even if it isn't the
// standard EPCIS spelling.
func singularElementName(listName string) string {
	if s, ok := singularOverrides[listName]; ok {
		return s
	}
	if strings.HasSuffix(listName, "List") {
		return strings.TrimSuffix(listName, "List")
	}
	return listName
}

// ParseObject builds an Event from a single event node produced by an
// object-stream Reader.
func ParseObject(node *objectstream.Node) (*Event, error) {
	et, ok := node.EventType()
	if !ok {
		return nil, fmt.Errorf("epcisevent: node is not a recognized EPCIS event type")
	}
	root := &Element{Name: et}
	for _, key := range node.Keys() {
		switch key {
		case "type", "@context":
			continue
		}
		val, _ := node.Get(key)
		appendValueAsElements(root, key, val)
	}
	return &Event{Type: et, Root: root}, nil
}

// appendValueAsElements converts one object field into a sibling
// Element child of parent. A slice value is reconstructed as a
// collection wrapper element (e.g. epcList) whose repeated children use
// the collection's singular element name — the inverse of the
// collapsing valueForElement performs when reading tag form.
func appendValueAsElements(parent *Element, key string, val any) {
	switch v := val.(type) {
	case []any:
		wrapper := &Element{Name: key}
		singular := singularElementName(key)
		for _, item := range v {
			switch iv := item.(type) {
			case *objectstream.Node:
				wrapper.Children = append(wrapper.Children, nodeToElement(singular, iv))
			default:
				wrapper.Children = append(wrapper.Children, &Element{Name: singular, Text: scalarToText(iv)})
			}
		}
		parent.Children = append(parent.Children, wrapper)
	case *objectstream.Node:
		parent.Children = append(parent.Children, nodeToElement(key, v))
	default:
		parent.Children = append(parent.Children, &Element{Name: key, Text: scalarToText(v)})
	}
}

func nodeToElement(name string, node *objectstream.Node) *Element {
	el := &Element{Name: name}
	for _, key := range node.Keys() {
		val, _ := node.Get(key)
		appendValueAsElements(el, key, val)
	}
	return el
}

func scalarToText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// WriteObject serializes e to an object-form event node. If ns's event
// scope carries any bindings, a local @context is embedded.
func (e *Event) WriteObject(ns *nsctx.Context) (*objectstream.Node, error) {
	node := objectstream.NewNode()
	node.Set("type", e.Type)
	if bindings := ns.EventView(); len(bindings) > 0 {
		node.Set("@context", contextFromBindings(bindings))
	}
	for _, c := range e.Root.Children {
		node.Fold(c.Name, valueForElement(c))
	}
	return node, nil
}

// isCollectionWrapper reports whether el looks like an EPCIS collection
// wrapper element — one or more children sharing a single name, no
// attributes and no direct text — which object form flattens into a
// bare JSON array.
func isCollectionWrapper(el *Element) bool {
	if len(el.Children) == 0 || len(el.Attrs) != 0 || el.Text != "" {
		return false
	}
	name := el.Children[0].Name
	for _, c := range el.Children[1:] {
		if c.Name != name {
			return false
		}
	}
	return true
}

// valueForElement returns the object-form value el should contribute —
// a bare string for a leaf, a flattened array for a collection wrapper,
// or a nested Node otherwise.
func valueForElement(el *Element) any {
	if isCollectionWrapper(el) {
		arr := make([]any, 0, len(el.Children))
		for _, c := range el.Children {
			arr = append(arr, valueForElement(c))
		}
		return arr
	}
	if len(el.Children) == 0 && len(el.Attrs) == 0 {
		return el.Text
	}
	return elementToNode(el)
}

func elementToNode(el *Element) *objectstream.Node {
	node := objectstream.NewNode()
	for _, a := range el.Attrs {
		node.Fold(a.Name, a.Value)
	}
	for _, c := range el.Children {
		node.Fold(c.Name, valueForElement(c))
	}
	return node
}

// contextFromBindings builds a JSON-LD @context array mapping each
// event-scoped prefix to its URI, in map iteration order, which can
// differ from one call to the next.
func contextFromBindings(bindings map[string]string) []any {
	ctxObj := objectstream.NewNode()
	for prefix, uri := range bindings {
		ctxObj.Set(prefix, uri)
	}
	return []any{ctxObj}
}
