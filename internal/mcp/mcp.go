// Package mcp provides the btcamcp MCP server, registering one tool per btca
// operation and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/btcamcp"
	"github.com/deixis/btcamcp/internal/btca"
	"github.com/deixis/btcamcp/internal/config"
	"github.com/deixis/btcamcp/internal/observe"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
// base is never modified; sessions that report a workspace root get a
// client of their own.
type handler struct {
	base *btca.Client

	mu       sync.Mutex
	sessions map[*mcp.ServerSession]*btca.Client
}

// NewServer creates an MCP server with all btca tools registered.
// client serves every session until the session's roots point it at a
// workspace with its own configuration.
func NewServer(client *btca.Client) *mcp.Server {
	h := &handler{
		base:     client,
		sessions: make(map[*mcp.ServerSession]*btca.Client),
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "btcamcp", Version: btcamcp.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "btca_ask",
		Description: `BTCA: ask about a configured resource's source code in natural language.

Pass one or more resource names (see btca_config_resources_list) and a question.
The answer is grounded in the resources' source code.`,
	}, h.askHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "btca_config_model",
		Description: "BTCA: set the model provider and model (updates BTCA config).",
	}, h.modelHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "btca_config_resources_list",
		Description: "BTCA: list configured resources.",
	}, h.listHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "btca_config_resources_add",
		Description: `BTCA: add a resource (updates BTCA config).

type is "git" (url required, branch optional) or "local" (path required).`,
		InputSchema: mustAddSchema(),
	}, h.addHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "btca_config_resources_remove",
		Description: "BTCA: remove a resource (updates BTCA config).",
	}, h.removeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "btca_clear",
		Description: "BTCA: clear all locally cached resources (destructive).",
	}, h.clearHandler)

	return s
}

// mustAddSchema infers the add tool's input schema and restricts type to
// the resource kinds btca knows.
func mustAddSchema() *jsonschema.Schema {
	schema, err := jsonschema.For[addParams](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring add schema: %v", err))
	}
	typ, ok := schema.Properties["type"]
	if !ok {
		panic("add schema has no type property")
	}
	typ.Enum = []any{string(btca.GitResource), string(btca.LocalResource)}
	return schema
}

// clientFor returns the client serving session.
func (h *handler) clientFor(session *mcp.ServerSession) *btca.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.sessions[session]; ok {
		return c
	}
	return h.base
}

// updateFromRoots queries the client for MCP roots and, if the first root is
// a local directory, gives the session a client that runs btca from there
// with that directory's config. Other sessions are unaffected. Tool calls
// that arrive before the lookup finishes use the base client.
func (h *handler) updateFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		observe.Logger(ctx).Warn("ignoring workspace config", "workspace", workspace, "err", err)
		return
	}
	client := loaded.Config.NewClient(workspace)
	client.Metrics = h.base.Metrics

	h.mu.Lock()
	h.sessions[session] = client
	h.mu.Unlock()

	go func() {
		_ = session.Wait()
		h.mu.Lock()
		delete(h.sessions, session)
		h.mu.Unlock()
	}()

	observe.Logger(ctx).Info("workspace updated from roots",
		"workspace", workspace,
		"config", loaded.Path,
		"convention", client.Convention,
	)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
