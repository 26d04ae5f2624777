// Package tagstream streams an EPCIS tag-form (XML) document as a lazy
// sequence of start-element, characters, and end-element tokens, and
// writes tag-form fragments back out under two indentation/namespace
// policies.
package tagstream

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/epcisconv/internal/bytesreader"
	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/stream"
)

// TokenKind discriminates the three shapes of Token emitted by a Reader.
type TokenKind int

const (
	// StartElementToken carries a Start field.
	StartElementToken TokenKind = iota
	// EndElementToken carries an End field.
	EndElementToken
	// CharDataToken carries a Chars field.
	CharDataToken
)

// Token is one unit of the tag-form token stream.
type Token struct {
	Kind TokenKind
	// Start is set for StartElementToken. NSDeclCount is the number of
	// xmlns / xmlns:prefix attributes carried on this element, already
	// bound into NS before the token is emitted.
	Start       xml.StartElement
	NSDeclCount int
	End         xml.EndElement
	Chars       []byte
}

// Reader pulls tokens from an underlying byte sequence via
// encoding/xml's Decoder. External entity resolution and DTD fetching
// are never available in encoding/xml's default configuration, so no
// additional hardening is required to stream untrusted input safely.
type Reader struct {
	dec *xml.Decoder
	ns  *nsctx.Context
}

// NewReader creates a Reader over upstream, recording namespace
// declarations into ns as they are encountered.
func NewReader(ctx context.Context, upstream stream.Seq[chunk.Chunk], ns *nsctx.Context) *Reader {
	dec := xml.NewDecoder(bytesreader.New(ctx, upstream))
	dec.Strict = true
	return &Reader{dec: dec, ns: ns}
}

// Next returns the next token, or ok=false at end of input.
func (r *Reader) Next() (Token, error, bool) {
	tok, err := r.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Token{}, nil, false
		}
		return Token{}, fmt.Errorf("tagstream: %w", err), false
	}
	switch t := tok.(type) {
	case xml.StartElement:
		n := 0
		for _, attr := range t.Attr {
			if prefix, ok := declaredPrefix(attr.Name); ok {
				r.ns.PutDocument(prefix, attr.Value)
				n++
			}
		}
		return Token{Kind: StartElementToken, Start: t.Copy(), NSDeclCount: n}, nil, true
	case xml.EndElement:
		return Token{Kind: EndElementToken, End: t}, nil, true
	case xml.CharData:
		return Token{Kind: CharDataToken, Chars: t.Copy()}, nil, true
	default:
		return r.Next()
	}
}

// declaredPrefix reports whether name is an xmlns or xmlns:prefix
// attribute, and if so, which prefix it declares ("" for the default
// namespace).
func declaredPrefix(name xml.Name) (string, bool) {
	if name.Space == "xmlns" {
		return name.Local, true
	}
	if name.Space == "" && name.Local == "xmlns" {
		return "", true
	}
	return "", false
}

// IsUsablePrefix reports whether prefix could plausibly be a namespace
// prefix worth filtering into output, rejecting the empty string, any
// value containing ':' or '/', anything starting with "xmlns" or
// "http", any standard EPCIS prefix, and any prefix already declared on
// root.
func IsUsablePrefix(prefix string, rootPrefixes map[string]struct{}) bool {
	if prefix == "" {
		return false
	}
	if strings.ContainsAny(prefix, ":/") {
		return false
	}
	if strings.HasPrefix(prefix, "xmlns") || strings.HasPrefix(prefix, "http") {
		return false
	}
	if nsctx.IsStandardPrefix(prefix) {
		return false
	}
	if _, declared := rootPrefixes[prefix]; declared {
		return false
	}
	return true
}
