package epcisevent

import "github.com/flemzord/epcisconv/internal/nsctx"

// Normalizer rewrites one event before serialization. seq is the
// event's 1-based position in the output sequence; ns is the
// event-scoped namespace context the core attached to it.
type Normalizer func(ev *Event, seq int, ns *nsctx.Context) (*Event, error)

// RewriteLeaves applies fn to the text of every leaf element (no
// children; attributes are not checked) in the tree whose name is in names,
// mutating the tree in place. Identifier normalizers use this to find
// every "epc" or "parentID" field regardless of how deep it sits inside
// collection wrappers.
func RewriteLeaves(root *Element, names map[string]struct{}, fn func(string) string) {
	if root == nil {
		return
	}
	if _, match := names[root.Name]; match && len(root.Children) == 0 {
		root.Text = fn(root.Text)
	}
	for _, c := range root.Children {
		RewriteLeaves(c, names, fn)
	}
}
