package fixer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/statusfixer/patcher"
)

var testMCPImpl = &mcp.Implementation{Name: "statusfixer-test", Version: "0.1.0"}

func mcpSession(t *testing.T, f *Fixer) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	f.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		return "", err
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

func TestMCP_Sessions(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")
	session := mcpSession(t, f)

	text, err := mcpCall(t, session, "statusfixer_sessions", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].BadgeText != "Fixed" {
		t.Errorf("sessions: got %+v", resp.Sessions)
	}
}

func TestMCP_Rescan(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")
	session := mcpSession(t, f)

	text, err := mcpCall(t, session, "statusfixer_rescan", map[string]any{"id": "A-1"})
	if err != nil {
		t.Fatal(err)
	}
	var info SessionInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatal(err)
	}
	if info.LastTrigger != "manual" || info.Runs != 2 {
		t.Errorf("rescan: got %+v", info)
	}

	if _, err := mcpCall(t, session, "statusfixer_rescan", map[string]any{"id": "nope"}); err == nil ||
		!strings.Contains(err.Error(), "unknown session") {
		t.Errorf("unknown id: got %v, want tool error", err)
	}
}

func TestMCP_CheckCapture(t *testing.T) {
	f, _ := newTestFixer(t)
	session := mcpSession(t, f)

	text, err := mcpCall(t, session, "statusfixer_check_capture", map[string]any{
		"html": fmt.Sprintf(issuePage, "Fixed"),
	})
	if err != nil {
		t.Fatal(err)
	}
	var resp captureResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Badge != patcher.BadgeShown || resp.Result.Text != "Fixed" {
		t.Errorf("result: got %+v", resp.Result)
	}
	if resp.HTML != "" {
		t.Error("html returned without include_html")
	}

	text, err = mcpCall(t, session, "statusfixer_check_capture", map[string]any{
		"html":         fmt.Sprintf(issuePage, "Fixed"),
		"include_html": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "status-fixer-badge") {
		t.Error("include_html: patched markup missing")
	}
}
