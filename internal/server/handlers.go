package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/orchestrator"
	"github.com/angelstreet/navtree/internal/store"
)

// toText serializes a result to YAML for an MCP response.
func toText(v interface{}) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) loadTree(ctx context.Context, treeID string) (model.Tree, error) {
	return s.cache.Tree(ctx, treeID, s.editor.Tree)
}

// writeHandler runs a tree mutation and invalidates the tree's cache entry,
// whether or not the mutation succeeded.
func (s *Server) writeHandler(request mcp.CallToolRequest, fn func(params map[string]interface{}, treeID string) (interface{}, error)) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	defer s.cache.Invalidate(treeID)

	result, err := fn(params, treeID)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(toText(result)), nil
}

func (s *Server) handleListTrees(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trees, err := s.trees.List(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(toText(trees)), nil
}

func (s *Server) handleViewTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	tree, err := s.loadTree(ctx, treeID)
	if err != nil {
		return errorResult(err), nil
	}
	view, err := s.editor.ViewOf(tree, stringParam(params, "focus", ""), intParam(params, "depth", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(toText(view)), nil
}

func (s *Server) handleGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	ref, err := requireString(params, "node")
	if err != nil {
		return errorResult(err), nil
	}
	tree, err := s.loadTree(ctx, treeID)
	if err != nil {
		return errorResult(err), nil
	}
	detail, err := s.editor.NodeOf(tree, ref)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(toText(detail)), nil
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		label, err := requireString(params, "label")
		if err != nil {
			return nil, err
		}
		spec := graph.NewNode{
			ID:          stringParam(params, "id", ""),
			Label:       label,
			Description: stringParam(params, "description", ""),
		}
		if k := stringParam(params, "kind", ""); k != "" {
			if spec.Kind, err = model.ParseKind(k); err != nil {
				return nil, err
			}
		}
		return s.editor.AddNode(ctx, treeID, spec)
	})
}

func (s *Server) handleUpdateNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		ref, err := requireString(params, "node")
		if err != nil {
			return nil, err
		}
		return s.editor.UpdateNode(ctx, treeID, ref, stringParam(params, "label", ""), stringParam(params, "description", ""))
	})
}

func (s *Server) handleDeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		ref, err := requireString(params, "node")
		if err != nil {
			return nil, err
		}
		return s.editor.DeleteNode(ctx, treeID, ref)
	})
}

func (s *Server) handleResetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		ref, err := requireString(params, "node")
		if err != nil {
			return nil, err
		}
		return s.editor.ResetNode(ctx, treeID, ref)
	})
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	source, err := requireString(params, "source")
	if err != nil {
		return errorResult(err), nil
	}
	target, err := requireString(params, "target")
	if err != nil {
		return errorResult(err), nil
	}
	handles, err := parseHandles(stringParam(params, "source_handle", "right"), stringParam(params, "target_handle", "left"))
	if err != nil {
		return errorResult(err), nil
	}

	defer s.cache.Invalidate(treeID)
	out, err := s.editor.Connect(ctx, treeID, source, target, handles)
	if err != nil {
		return errorResult(err), nil
	}
	if !out.Decision.Allowed {
		return mcp.NewToolResultError(toText(out)), nil
	}
	return mcp.NewToolResultText(toText(out)), nil
}

func (s *Server) handleDeleteEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		edgeID, err := requireString(params, "edge")
		if err != nil {
			return nil, err
		}
		return s.editor.DeleteEdge(ctx, treeID, edgeID)
	})
}

func (s *Server) handleAddVerification(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		ref, err := requireString(params, "node")
		if err != nil {
			return nil, err
		}
		command, err := requireString(params, "command")
		if err != nil {
			return nil, err
		}
		controller, err := model.ParseControllerClass(stringParam(params, "controller", ""))
		if err != nil {
			return nil, err
		}
		p, err := objectParam(params, "params")
		if err != nil {
			return nil, err
		}
		return s.editor.AddVerification(ctx, treeID, ref, model.Verification{
			Command:    command,
			Controller: controller,
			Params:     p,
			InputValue: stringParam(params, "input_value", ""),
		})
	})
}

func (s *Server) handleAddAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.writeHandler(request, func(params map[string]interface{}, treeID string) (interface{}, error) {
		edgeID, err := requireString(params, "edge")
		if err != nil {
			return nil, err
		}
		command, err := requireString(params, "command")
		if err != nil {
			return nil, err
		}
		p, err := objectParam(params, "params")
		if err != nil {
			return nil, err
		}
		waitMs := intParam(params, "wait_ms", 0)
		if waitMs < 0 {
			return nil, fmt.Errorf("wait_ms must be >= 0")
		}
		return s.editor.AddAction(ctx, treeID, edgeID, model.Action{
			Command:    command,
			Params:     p,
			InputValue: stringParam(params, "input_value", ""),
			WaitMs:     waitMs,
		}, boolParam(params, "retry", false))
	})
}

func (s *Server) handleGoto(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	ref, err := requireString(params, "node")
	if err != nil {
		return errorResult(err), nil
	}
	defer s.cache.Invalidate(treeID)
	res, err := s.editor.Goto(ctx, treeID, ref, s.session)
	return runResult(res, err), nil
}

func (s *Server) handleRunEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	treeID, err := requireString(params, "tree")
	if err != nil {
		return errorResult(err), nil
	}
	edgeID, err := requireString(params, "edge")
	if err != nil {
		return errorResult(err), nil
	}
	defer s.cache.Invalidate(treeID)
	res, err := s.editor.RunEdge(ctx, treeID, edgeID, s.session)
	return runResult(res, err), nil
}

// runResult renders a run as its line log. A failed run is a tool error.
func runResult(res *orchestrator.RunResult, err error) *mcp.CallToolResult {
	if err != nil {
		return errorResult(err)
	}
	text := strings.Join(res.Lines(), "\n")
	if !res.Success {
		return mcp.NewToolResultError(text)
	}
	return mcp.NewToolResultText(text)
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	records, err := s.history.Recent(ctx, store.Query{
		TreeID: stringParam(params, "tree", ""),
		NodeID: stringParam(params, "node", ""),
		EdgeID: stringParam(params, "edge", ""),
		RunID:  stringParam(params, "run", ""),
		Limit:  intParam(params, "limit", 0),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(toText(records)), nil
}

func parseHandles(source, target string) (model.HandleInfo, error) {
	sh, err := model.ParseHandle(source)
	if err != nil {
		return model.HandleInfo{}, fmt.Errorf("source handle: %w", err)
	}
	th, err := model.ParseHandle(target)
	if err != nil {
		return model.HandleInfo{}, fmt.Errorf("target handle: %w", err)
	}
	return model.HandleInfo{Source: sh, Target: th}, nil
}
