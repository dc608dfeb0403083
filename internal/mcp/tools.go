package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/btcamcp/internal/btca"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type askParams struct {
	Resources []string `json:"resources" jsonschema:"BTCA resource names (configured repos or packages)"`
	Question  string   `json:"question" jsonschema:"Question to answer using the resource source"`
}

type modelParams struct {
	Provider string `json:"provider" jsonschema:"Model provider id"`
	Model    string `json:"model" jsonschema:"Model name"`
}

type listParams struct{}

type addParams struct {
	Name        string   `json:"name" jsonschema:"BTCA resource name"`
	Type        string   `json:"type" jsonschema:"Resource type: git or local"`
	URL         string   `json:"url,omitempty" jsonschema:"Git repository URL (required for git type)"`
	Branch      string   `json:"branch,omitempty" jsonschema:"Git branch (default: main)"`
	Path        string   `json:"path,omitempty" jsonschema:"Local filesystem path (required for local type)"`
	SearchPaths []string `json:"searchPaths,omitempty" jsonschema:"Subdirectories to focus search on"`
	Notes       string   `json:"notes,omitempty" jsonschema:"Special notes/hints for the AI about this resource"`
}

type removeParams struct {
	Name string `json:"name" jsonschema:"BTCA resource name, use btca_config_resources_list to see names"`
}

type clearParams struct{}

func (h *handler) askHandler(ctx context.Context, req *mcp.CallToolRequest, params askParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).Ask(ctx, params.Resources, params.Question))
}

func (h *handler) modelHandler(ctx context.Context, req *mcp.CallToolRequest, params modelParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).SetModel(ctx, params.Provider, params.Model))
}

func (h *handler) listHandler(ctx context.Context, req *mcp.CallToolRequest, _ listParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).ListResources(ctx))
}

func (h *handler) addHandler(ctx context.Context, req *mcp.CallToolRequest, params addParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).AddResource(ctx, btca.AddRequest{
		Name:        params.Name,
		Type:        btca.ResourceType(params.Type),
		URL:         params.URL,
		Branch:      params.Branch,
		Path:        params.Path,
		SearchPaths: params.SearchPaths,
		Notes:       params.Notes,
	}))
}

func (h *handler) removeHandler(ctx context.Context, req *mcp.CallToolRequest, params removeParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).RemoveResource(ctx, params.Name))
}

func (h *handler) clearHandler(ctx context.Context, req *mcp.CallToolRequest, _ clearParams) (*mcp.CallToolResult, any, error) {
	return respond(h.clientFor(req.Session).ClearCache(ctx))
}

// respond wraps a btca outcome. Failures btca itself reported are already
// part of the text; err means btca never ran.
func respond(resp btca.Response, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return errorResult(fmt.Sprintf("btca could not be run: %v", err))
	}
	return textResult(resp.Text)
}
