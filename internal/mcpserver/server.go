// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes docbridge sync tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stenmark/docbridge/internal/engine"
	"github.com/stenmark/docbridge/internal/journal"
	"github.com/stenmark/docbridge/internal/mapping"
)

// Deps are the collaborators the MCP tools operate through. SyncAll runs a
// full sync with the configured options (honoring dryRun); SyncFile and
// PullPage act on one file or page.
type Deps struct {
	SyncAll  func(ctx context.Context, dryRun bool) (*engine.Report, error)
	SyncFile func(ctx context.Context, path string) engine.Outcome
	PullPage func(ctx context.Context, pageID, outputPath string) engine.Outcome
	Mappings *mapping.Store
	Journal  *journal.DB
}

// Server wraps the MCP server with docbridge tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all docbridge tools registered.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"Docbridge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_all",
		mcp.WithDescription("Synchronize every Markdown file in the docs tree with the wiki. "+
			"Returns the per-file run report."),
		mcp.WithString("dry_run", mcp.Description("Set to \"true\" to preview actions without touching the wiki or the mapping store")),
	), s.syncAll)

	s.mcp.AddTool(mcp.NewTool("sync_file",
		mcp.WithDescription("Synchronize a single Markdown file with the wiki."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file (e.g. guides/setup.md)")),
	), s.syncFile)

	s.mcp.AddTool(mcp.NewTool("pull_page",
		mcp.WithDescription("Fetch a wiki page by id, convert it to Markdown, and write it into the docs tree. "+
			"Generated files follow the frontmatter contract; read it via the docbridge://frontmatter-format resource."),
		mcp.WithString("page_id", mcp.Required(), mcp.Description("Remote page id")),
		mcp.WithString("output_path", mcp.Required(), mcp.Description("Relative path for the Markdown file (must end with .md)")),
	), s.pullPage)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Show the mapping registry size and the most recent sync runs."),
	), s.syncStatus)

	// Resource: frontmatter contract.
	s.mcp.AddResource(
		mcp.NewResource("docbridge://frontmatter-format", "Synchronized Document Format",
			mcp.WithResourceDescription("Canonical frontmatter header format for synchronized Markdown documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) syncAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun, _ := strconv.ParseBool(req.GetString("dry_run", "false"))
	report, err := s.deps.SyncAll(ctx, dryRun)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome := s.deps.SyncFile(ctx, path)
	out, _ := json.MarshalIndent(outcome, "", "  ")
	if outcome.Status == engine.StatusFailed {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) pullPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outputPath, err := req.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome := s.deps.PullPage(ctx, pageID, outputPath)
	out, _ := json.MarshalIndent(outcome, "", "  ")
	if outcome.Status == engine.StatusFailed {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.deps.Journal.RecentRuns(5)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := map[string]any{
		"mapped_files": s.deps.Mappings.Len(),
		"recent_runs":  runs,
	}
	out, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "docbridge://frontmatter-format",
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}
