package convert

import (
	"bytes"
	"fmt"

	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/tagstream"
)

// tagstreamWriterFor builds a per-event tag-form writer. Event fragments
// are embedded into a header that already declares every namespace they
// need, so they use the non-root-stripping policy and never re-declare
// xmlns attributes at their own root.
func tagstreamWriterFor(ns *nsctx.Context) *tagstream.Writer {
	return tagstream.NewWriter(tagstream.NonRootStrippingPolicy, ns)
}

// buildTagHeader writes the XML declaration, root element (with its
// namespace declarations), and the opening body/event-list wrapper
// matching isRegular. regularRootURI is the EPCIS namespace URI used for
// a regular document's root (ignored for a query document, which is
// always the 2.0 query namespace).
func buildTagHeader(ns *nsctx.Context, isRegular, declareCBVMDA bool, regularRootURI, schemaVersion, creationName, creationValue, subscriptionID, queryName string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	rootPrefix := nsctx.EPCISPrefix
	rootLocal := "EPCISDocument"
	rootURI := regularRootURI
	if !isRegular {
		rootPrefix = nsctx.EPCISQPrefix
		rootLocal = "EPCISQueryDocument"
		rootURI = nsctx.EPCISQueryURI
	}

	rootPrefixes := map[string]struct{}{
		rootPrefix:         {},
		nsctx.XSIPrefix:    {},
		nsctx.CBVMDAPrefix: {},
	}

	fmt.Fprintf(&buf, `<%s:%s xmlns:%s="%s" xmlns:%s="%s"`, rootPrefix, rootLocal, rootPrefix, rootURI, nsctx.XSIPrefix, nsctx.XSIURI)
	if declareCBVMDA {
		fmt.Fprintf(&buf, ` xmlns:%s="%s"`, nsctx.CBVMDAPrefix, nsctx.CBVMDAURI)
	}
	for prefix, uri := range ns.DocumentView() {
		if tagstream.IsUsablePrefix(prefix, rootPrefixes) {
			fmt.Fprintf(&buf, ` xmlns:%s="%s"`, prefix, uri)
		}
	}
	fmt.Fprintf(&buf, ` schemaVersion="%s"`, schemaVersion)
	if creationValue != "" {
		fmt.Fprintf(&buf, ` %s="%s"`, creationName, creationValue)
	}
	buf.WriteString(">\n")

	buf.WriteString("  <EPCISBody>\n")
	if isRegular {
		buf.WriteString("    <EventList>")
	} else {
		buf.WriteString("    <QueryResults>\n")
		buf.WriteString("      <resultsBody>\n")
		if subscriptionID != "" {
			fmt.Fprintf(&buf, "        <subscriptionID>%s</subscriptionID>\n", subscriptionID)
		}
		if queryName != "" {
			fmt.Fprintf(&buf, "        <queryName>%s</queryName>\n", queryName)
		}
		buf.WriteString("        <EventList>")
	}
	return buf.Bytes()
}

// tagFooterBytes closes the wrappers opened by buildTagHeader.
func tagFooterBytes(isRegular bool) []byte {
	var buf bytes.Buffer
	if isRegular {
		buf.WriteString("\n    </EventList>\n")
		buf.WriteString("  </EPCISBody>\n")
		buf.WriteString("</" + nsctx.EPCISPrefix + ":EPCISDocument>")
	} else {
		buf.WriteString("\n        </EventList>\n")
		buf.WriteString("      </resultsBody>\n")
		buf.WriteString("    </QueryResults>\n")
		buf.WriteString("  </EPCISBody>\n")
		buf.WriteString("</" + nsctx.EPCISQPrefix + ":EPCISQueryDocument>")
	}
	return buf.Bytes()
}
