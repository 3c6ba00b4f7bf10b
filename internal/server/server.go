// Package server exposes tree editing and device runs as MCP tools.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/angelstreet/navtree/internal/editor"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/orchestrator"
	"github.com/angelstreet/navtree/internal/store"
)

// Version is reported to MCP clients.
var Version = "dev"

// Config holds MCP server configuration.
type Config struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
	// Session is the device goto and run_edge drive.
	Session orchestrator.Session
}

// TreeLister lists stored trees.
type TreeLister interface {
	List(ctx context.Context) ([]store.TreeSummary, error)
}

// HistoryReader queries past execution records.
type HistoryReader interface {
	Recent(ctx context.Context, q store.Query) ([]model.ExecutionRecord, error)
}

// Deps are the collaborators behind the tools. Trees and History are
// optional; their tools are not registered when nil.
type Deps struct {
	Editor  *editor.Service
	Trees   TreeLister
	History HistoryReader
}

// Server wraps the MCP server with the editor and tree cache.
type Server struct {
	editor  *editor.Service
	trees   TreeLister
	history HistoryReader
	cache   *TreeCache
	session orchestrator.Session
	mcp     *mcpserver.MCPServer
}

// New creates and configures an MCP server with all navtree tools.
func New(deps Deps, cfg Config) (*Server, error) {
	if deps.Editor == nil {
		return nil, fmt.Errorf("mcp server: editor is required")
	}
	s := &Server{
		editor:  deps.Editor,
		trees:   deps.Trees,
		history: deps.History,
		cache:   NewTreeCache(cfg.CacheTTL),
		session: cfg.Session,
	}
	s.mcp = mcpserver.NewMCPServer("navtree", Version)
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server with the configured transport.
func (s *Server) Serve(cfg Config) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http", "http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *Server) registerTools() {
	if s.trees != nil {
		s.mcp.AddTool(
			mcp.NewTool("list_trees",
				mcp.WithDescription("List the navigation trees stored for this team"),
			),
			s.handleListTrees,
		)
	}

	s.mcp.AddTool(
		mcp.NewTool("view_tree",
			mcp.WithDescription("Show the nodes and edges of a tree visible under a focus node and display depth"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("focus", mcp.Description("Focus node ID or label (empty = no focus)")),
			mcp.WithNumber("depth", mcp.Description("Max display depth (0 = configured default)")),
		),
		s.handleViewTree,
	)

	s.mcp.AddTool(
		mcp.NewTool("get_node",
			mcp.WithDescription("Show one node with its hierarchy, verifications and confidence"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
		),
		s.handleGetNode,
	)

	s.mcp.AddTool(
		mcp.NewTool("add_node",
			mcp.WithDescription("Add an orphan node to a tree"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("label", mcp.Description("Node label"), mcp.Required()),
			mcp.WithString("id", mcp.Description("Node ID (generated when empty)")),
			mcp.WithString("kind", mcp.Description("screen, dialog, popup, overlay, menu, or entry (default: screen)")),
			mcp.WithString("description", mcp.Description("Free-text description")),
		),
		s.handleAddNode,
	)

	s.mcp.AddTool(
		mcp.NewTool("update_node",
			mcp.WithDescription("Change the label or description of a node"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
			mcp.WithString("label", mcp.Description("New label")),
			mcp.WithString("description", mcp.Description("New description")),
		),
		s.handleUpdateNode,
	)

	s.mcp.AddTool(
		mcp.NewTool("delete_node",
			mcp.WithDescription("Delete a node and every edge touching it"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
		),
		s.handleDeleteNode,
	)

	s.mcp.AddTool(
		mcp.NewTool("reset_node",
			mcp.WithDescription("Remove all edges of a node and make it an orphan"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
		),
		s.handleResetNode,
	)

	s.mcp.AddTool(
		mcp.NewTool("connect",
			mcp.WithDescription("Draw an edge between two nodes. The active rule set decides whether it is allowed and what hierarchy it implies."),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("source", mcp.Description("Source node ID or label"), mcp.Required()),
			mcp.WithString("target", mcp.Description("Target node ID or label"), mcp.Required()),
			mcp.WithString("source_handle", mcp.Description("left, right, top, bottom (default: right)")),
			mcp.WithString("target_handle", mcp.Description("left, right, top, bottom (default: left)")),
		),
		s.handleConnect,
	)

	s.mcp.AddTool(
		mcp.NewTool("delete_edge",
			mcp.WithDescription("Delete an edge; its target becomes an orphan when no incoming edge is left"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("edge", mcp.Description("Edge ID"), mcp.Required()),
		),
		s.handleDeleteEdge,
	)

	s.mcp.AddTool(
		mcp.NewTool("add_verification",
			mcp.WithDescription("Append a verification to a node"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
			mcp.WithString("command", mcp.Description("Verification command (e.g. waitForTextToAppear)"), mcp.Required()),
			mcp.WithString("controller", mcp.Description("text, image, or adb"), mcp.Required()),
			mcp.WithObject("params", mcp.Description("Command parameters")),
			mcp.WithString("input_value", mcp.Description("Optional input value")),
		),
		s.handleAddVerification,
	)

	s.mcp.AddTool(
		mcp.NewTool("add_action",
			mcp.WithDescription("Append an action to an edge"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("edge", mcp.Description("Edge ID"), mcp.Required()),
			mcp.WithString("command", mcp.Description("Action command (e.g. press_key)"), mcp.Required()),
			mcp.WithObject("params", mcp.Description("Command parameters")),
			mcp.WithString("input_value", mcp.Description("Optional input value")),
			mcp.WithNumber("wait_ms", mcp.Description("Pause after the action in ms")),
			mcp.WithBoolean("retry", mcp.Description("Append to the retry actions instead")),
		),
		s.handleAddAction,
	)

	s.mcp.AddTool(
		mcp.NewTool("goto",
			mcp.WithDescription("Navigate the device to a node and run its verifications"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("node", mcp.Description("Node ID or label"), mcp.Required()),
		),
		s.handleGoto,
	)

	s.mcp.AddTool(
		mcp.NewTool("run_edge",
			mcp.WithDescription("Execute the actions of an edge on the device, falling back to its retry actions"),
			mcp.WithString("tree", mcp.Description("Tree ID"), mcp.Required()),
			mcp.WithString("edge", mcp.Description("Edge ID"), mcp.Required()),
		),
		s.handleRunEdge,
	)

	if s.history != nil {
		s.mcp.AddTool(
			mcp.NewTool("history",
				mcp.WithDescription("List recent execution records, newest first"),
				mcp.WithString("tree", mcp.Description("Filter by tree ID")),
				mcp.WithString("node", mcp.Description("Filter by node ID")),
				mcp.WithString("edge", mcp.Description("Filter by edge ID")),
				mcp.WithString("run", mcp.Description("Filter by run ID")),
				mcp.WithNumber("limit", mcp.Description("Max records (default: 50)")),
			),
			s.handleHistory,
		)
	}
}
