package fixer

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/statusfixer/kit"
)

// RegisterMCP registers the fixer tools on an MCP server.
func (f *Fixer) RegisterMCP(srv *mcp.Server) {
	f.registerSessionsTool(srv)
	f.registerRescanTool(srv)
	f.registerCheckCaptureTool(srv)
}

func (f *Fixer) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Logging(f.logger, name)(e)
}

// --- sessions ---

func (f *Fixer) registerSessionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "statusfixer_sessions",
		Description: "List the Jira pages being patched with their last rescan outcome.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(context.Context, any) (any, error) {
		return map[string]any{"sessions": f.Sessions()}, nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, f.endpoint(tool.Name, endpoint), decode)
}

// --- rescan ---

type rescanReq struct {
	ID string `json:"id"`
}

func (f *Fixer) registerRescanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "statusfixer_rescan",
		Description: "Rescan one patched page immediately and return its updated state.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Session (page) id"},
		}, []string{"id"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*rescanReq)
		return f.Rescan(r.ID)
	}

	kit.RegisterMCPTool(srv, tool, f.endpoint(tool.Name, endpoint), kit.DecodeJSON[rescanReq]())
}

// --- check capture ---

type checkCaptureReq struct {
	HTML string `json:"html"`
	// IncludeHTML returns the patched markup alongside the result.
	IncludeHTML bool `json:"include_html"`
}

func (f *Fixer) registerCheckCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "statusfixer_check_capture",
		Description: "Run one rescan over saved issue-page HTML and report what the patcher would do.",
		InputSchema: kit.InputSchema(map[string]any{
			"html":         map[string]any{"type": "string", "description": "Saved page HTML"},
			"include_html": map[string]any{"type": "boolean", "description": "Also return the patched HTML"},
		}, []string{"html"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*checkCaptureReq)
		res, patched, err := f.CheckCapture(r.HTML)
		if err != nil {
			return nil, err
		}
		out := captureResponse{Result: res}
		if r.IncludeHTML {
			out.HTML = patched
		}
		return out, nil
	}

	kit.RegisterMCPTool(srv, tool, f.endpoint(tool.Name, endpoint), kit.DecodeJSON[checkCaptureReq]())
}
