package mcptool

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/epcisconv/internal/router"
	"github.com/flemzord/epcisconv/internal/source"
)

const toolName = "convert_epcis_document"

// NewServer builds the MCP server exposing convert_epcis_document,
// backed by rt for the actual conversion work.
func NewServer(rt *router.Router) *server.MCPServer {
	s := server.NewMCPServer("epcisconv", "1.0.0")
	s.AddTool(convertTool(), convertHandler(rt))
	return s
}

// convertTool describes the tool's arguments to the calling agent.
func convertTool() mcp.Tool {
	return mcp.NewTool(toolName,
		mcp.WithDescription("Convert an EPCIS document between tag (XML) and object (JSON-LD) "+
			"serializations and across schema revisions 1.1, 1.2, and 2.0."),
		mcp.WithString("from_fmt",
			mcp.Required(),
			mcp.Description("Source serialization: \"tag\" or \"object\"."),
		),
		mcp.WithString("from_rev",
			mcp.Description("Source schema revision (1.1, 1.2, 2.0). Omit to autodetect for tag input."),
		),
		mcp.WithString("to_fmt",
			mcp.Required(),
			mcp.Description("Target serialization: \"tag\" or \"object\"."),
		),
		mcp.WithString("to_rev",
			mcp.Description("Target schema revision (1.1, 1.2, 2.0). Defaults to from_rev when omitted."),
		),
		mcp.WithBoolean("normalize_to_legacy_ids",
			mcp.Description("Keep AssociationEvent/persistentDisposition/sensorElementList when downgrading to 1.2."),
		),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("The full EPCIS document to convert, as a UTF-8 string."),
		),
	)
}

// convertHandler adapts a CallToolRequest into a router.Convert call,
// buffering the whole result since MCP tool results are single values,
// not streams.
func convertHandler(rt *router.Router) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spec := router.ConversionSpec{
			FromFmt:              router.Format(req.GetString("from_fmt", "")),
			FromRev:              router.Revision(req.GetString("from_rev", "")),
			ToFmt:                router.Format(req.GetString("to_fmt", "")),
			ToRev:                router.Revision(req.GetString("to_rev", "")),
			NormalizeToLegacyIDs: req.GetBool("normalize_to_legacy_ids", false),
		}
		document := req.GetString("document", "")
		if document == "" {
			return mcp.NewToolResultError("document must not be empty"), nil
		}

		src := source.FromBytes([]byte(document))
		result, err := rt.Convert(ctx, src, spec)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var out []byte
		for {
			c, err, ok := result.Chunks.Next(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("conversion failed mid-stream: %v", err)), nil
			}
			if !ok {
				break
			}
			out = append(out, c.Data...)
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
