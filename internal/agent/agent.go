// Package agent exposes the render engine as MCP tools so coding agents can
// preview a page's structured data and discover the available schema types
// and rule tokens.
package agent

import (
	"context"
	"fmt"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/server"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Tool names.
const (
	ToolRender    = "render_schemas"
	ToolListTypes = "list_schema_types"
	ToolListRules = "list_rule_options"
)

// Agent serves the MCP tools over a render service.
type Agent struct {
	svc server.Service
	log *zap.Logger
	mcp *mcpserver.MCPServer
}

// New builds the MCP server and registers its tools.
func New(svc server.Service, version string, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Agent{
		svc: svc,
		log: log,
		mcp: mcpserver.NewMCPServer("sitegraph", version, mcpserver.WithToolCapabilities(false)),
	}

	a.mcp.AddTool(mcp.NewTool(ToolRender,
		mcp.WithDescription("Render the JSON-LD structured data document for a page."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Canonical URL of the page")),
		mcp.WithString("kind", mcp.Description("Page kind: singular, post_type_archive, tax_archive, author, date, search, not_found, home or shop")),
		mcp.WithString("title", mcp.Description("Page title override")),
		mcp.WithNumber("post", mcp.Description("Post id on singular pages")),
		mcp.WithString("post_type", mcp.Description("Post type of the page")),
		mcp.WithNumber("term", mcp.Description("Term id on taxonomy archives")),
		mcp.WithString("taxonomy", mcp.Description("Taxonomy on taxonomy archives")),
		mcp.WithNumber("user", mcp.Description("User id on author archives")),
		mcp.WithString("search", mcp.Description("Search query on search pages")),
		mcp.WithBoolean("front", mcp.Description("The page is the site front page")),
	), a.handleRender)

	a.mcp.AddTool(mcp.NewTool(ToolListTypes,
		mcp.WithDescription("List the schema types the catalog can render, with their fields."),
	), a.handleTypes)

	a.mcp.AddTool(mcp.NewTool(ToolListRules,
		mcp.WithDescription("List the rule tokens usable in show_on and not_show_on, grouped."),
	), a.handleRules)

	return a
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects.
func (a *Agent) ServeStdio() error {
	return mcpserver.ServeStdio(a.mcp)
}

// Server returns the underlying MCP server.
func (a *Agent) Server() *mcpserver.MCPServer { return a.mcp }

func (a *Agent) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := api.ParseKind(req.GetString("kind", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page := api.Page{
		URL:         u,
		Title:       req.GetString("title", ""),
		Kind:        kind,
		PostID:      int64(req.GetInt("post", 0)),
		PostType:    req.GetString("post_type", ""),
		TermID:      int64(req.GetInt("term", 0)),
		Taxonomy:    req.GetString("taxonomy", ""),
		UserID:      int64(req.GetInt("user", 0)),
		SearchQuery: req.GetString("search", ""),
		IsFront:     req.GetBool("front", false),
	}
	if err := page.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := a.svc.Render(ctx, page)
	if err != nil {
		a.log.Warn("render tool failed", zap.String("url", u), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("render failed", err), nil
	}
	if doc.Empty() {
		return mcp.NewToolResultText("no structured data for this page"), nil
	}
	return jsonResult(doc)
}

func (a *Agent) handleTypes(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(a.svc.Types())
}

func (a *Agent) handleRules(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(a.svc.RuleOptions())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
