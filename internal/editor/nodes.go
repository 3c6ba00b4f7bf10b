package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelstreet/navtree/internal/confidence"
	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
)

// AddNode adds an orphan node to treeID. An empty kind means screen.
func (s *Service) AddNode(ctx context.Context, treeID string, spec graph.NewNode) (model.Node, error) {
	if spec.Kind == "" {
		spec.Kind = model.KindScreen
	}
	var out model.Node
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		n, err := m.AddNode(spec)
		out = n
		return err
	})
	return out, err
}

// UpdateNode changes the label and description of the node named by ref.
// Empty values keep the current ones.
func (s *Service) UpdateNode(ctx context.Context, treeID, ref, label, description string) (model.Node, error) {
	var out model.Node
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		n, err := ResolveNode(m.Store(), ref)
		if err != nil {
			return err
		}
		if strings.TrimSpace(label) == "" {
			label = n.Label
		}
		if description == "" {
			description = n.Description
		}
		if err := m.Store().UpdateDetails(n.ID, label, description); err != nil {
			return err
		}
		out, _ = m.Store().Node(n.ID)
		return nil
	})
	return out, err
}

// DeleteNode removes a node and every edge touching it.
func (s *Service) DeleteNode(ctx context.Context, treeID, ref string) (Report, error) {
	rep := Report{Action: "delete-node", TreeID: treeID}
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		n, err := ResolveNode(m.Store(), ref)
		if err != nil {
			return err
		}
		before := len(m.Store().Edges())
		changes, err := m.DeleteNode(n.ID)
		if err != nil {
			return err
		}
		rep.ID = n.ID
		rep.RemovedEdges = before - len(m.Store().Edges())
		rep.Changes = changes
		return nil
	})
	rep.OK = err == nil
	return rep, err
}

// ResetNode orphans a node and removes all of its edges.
func (s *Service) ResetNode(ctx context.Context, treeID, ref string) (Report, error) {
	rep := Report{Action: "reset-node", TreeID: treeID}
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		n, err := ResolveNode(m.Store(), ref)
		if err != nil {
			return err
		}
		changes, removed, err := m.ResetNode(n.ID)
		if err != nil {
			return err
		}
		rep.ID = n.ID
		rep.RemovedEdges = removed
		rep.Changes = changes
		return nil
	})
	rep.OK = err == nil
	return rep, err
}

// Connect asks the active policy to link source to target, both named by id
// or label. A rejected connection is returned with a nil error and nothing
// is saved.
func (s *Service) Connect(ctx context.Context, treeID, sourceRef, targetRef string, handles model.HandleInfo) (graph.ConnectOutcome, error) {
	if err := handles.Validate(); err != nil {
		return graph.ConnectOutcome{}, err
	}
	var out graph.ConnectOutcome
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		src, err := ResolveNode(m.Store(), sourceRef)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		tgt, err := ResolveNode(m.Store(), targetRef)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		out, err = m.Connect(src.ID, tgt.ID, handles)
		if err != nil {
			return err
		}
		if !out.Decision.Allowed {
			return errUnchanged
		}
		return nil
	})
	return out, err
}

// DeleteEdge removes an edge and orphans its target when no incoming edge
// remains.
func (s *Service) DeleteEdge(ctx context.Context, treeID, edgeID string) (Report, error) {
	rep := Report{Action: "delete-edge", TreeID: treeID, ID: edgeID}
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		changes, err := m.DeleteEdge(edgeID)
		rep.Changes = changes
		return err
	})
	rep.OK = err == nil
	return rep, err
}

// AddVerification appends a verification to the node named by ref.
func (s *Service) AddVerification(ctx context.Context, treeID, ref string, v model.Verification) (model.Node, error) {
	var out model.Node
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		n, err := ResolveNode(m.Store(), ref)
		if err != nil {
			return err
		}
		if err := m.Store().SetVerifications(n.ID, append(n.Verifications, v)); err != nil {
			return err
		}
		out, _ = m.Store().Node(n.ID)
		return nil
	})
	return out, err
}

// AddAction appends an action to an edge, or to its retry actions when retry
// is set.
func (s *Service) AddAction(ctx context.Context, treeID, edgeID string, a model.Action, retry bool) (model.Edge, error) {
	var out model.Edge
	err := s.Mutate(ctx, treeID, func(m *graph.Maintainer) error {
		e, ok := m.Store().Edge(edgeID)
		if !ok {
			return fmt.Errorf("%w: %s", graph.ErrEdgeNotFound, edgeID)
		}
		if retry {
			e.RetryActions = append(e.RetryActions, a)
		} else {
			e.Actions = append(e.Actions, a)
		}
		if err := m.Store().SetActions(edgeID, e.Actions, e.RetryActions); err != nil {
			return err
		}
		out, _ = m.Store().Edge(edgeID)
		return nil
	})
	return out, err
}

// View is the visible part of a tree under a focus.
type View struct {
	TreeID string           `yaml:"tree_id" json:"tree_id"`
	Focus  model.FocusState `yaml:"focus"   json:"focus"`
	Nodes  []model.Node     `yaml:"nodes"   json:"nodes"`
	Edges  []model.Edge     `yaml:"edges"   json:"edges"`
}

// View returns the nodes and edges visible when focusing on focusRef (id or
// label; empty for no focus). A maxDepth below 1 uses the configured depth.
func (s *Service) View(ctx context.Context, treeID, focusRef string, maxDepth int) (View, error) {
	g, err := s.load(ctx, treeID)
	if err != nil {
		return View{}, err
	}
	return s.view(g, focusRef, maxDepth)
}

// ViewOf is View over an already loaded tree.
func (s *Service) ViewOf(tree model.Tree, focusRef string, maxDepth int) (View, error) {
	g, err := graph.FromTree(tree)
	if err != nil {
		return View{}, fmt.Errorf("tree %s: %w", tree.ID, err)
	}
	return s.view(g, focusRef, maxDepth)
}

func (s *Service) view(g *graph.Store, focusRef string, maxDepth int) (View, error) {
	if maxDepth < 1 {
		maxDepth = s.maxDepth
	}
	focus := model.FocusState{MaxDisplayDepth: maxDepth}
	if focusRef != "" {
		n, err := ResolveNode(g, focusRef)
		if err != nil {
			return View{}, err
		}
		focus.FocusNodeID = n.ID
	}
	nodes, edges := model.FilterVisible(g.Nodes(), g.Edges(), focus)
	return View{TreeID: g.TreeID(), Focus: focus, Nodes: nodes, Edges: edges}, nil
}

// StepConfidence is the confidence of one verification or action.
type StepConfidence struct {
	Command    string `yaml:"command"    json:"command"`
	Confidence string `yaml:"confidence" json:"confidence"`
	Runs       int    `yaml:"runs"       json:"runs"`
}

// NodeDetail is a node with its edges and per-verification confidence.
type NodeDetail struct {
	Node       model.Node       `yaml:"node"                 json:"node"`
	Incoming   []string         `yaml:"incoming,omitempty"   json:"incoming,omitempty"`
	Outgoing   []string         `yaml:"outgoing,omitempty"   json:"outgoing,omitempty"`
	Confidence []StepConfidence `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Node returns the node named by ref with its surroundings.
func (s *Service) Node(ctx context.Context, treeID, ref string) (NodeDetail, error) {
	g, err := s.load(ctx, treeID)
	if err != nil {
		return NodeDetail{}, err
	}
	return nodeDetail(g, ref)
}

// NodeOf is Node over an already loaded tree.
func (s *Service) NodeOf(tree model.Tree, ref string) (NodeDetail, error) {
	g, err := graph.FromTree(tree)
	if err != nil {
		return NodeDetail{}, fmt.Errorf("tree %s: %w", tree.ID, err)
	}
	return nodeDetail(g, ref)
}

func nodeDetail(g *graph.Store, ref string) (NodeDetail, error) {
	n, err := ResolveNode(g, ref)
	if err != nil {
		return NodeDetail{}, err
	}
	d := NodeDetail{Node: n}
	for _, e := range g.Incoming(n.ID) {
		d.Incoming = append(d.Incoming, e.ID)
	}
	for _, e := range g.Outgoing(n.ID) {
		d.Outgoing = append(d.Outgoing, e.ID)
	}
	for _, v := range n.Verifications {
		d.Confidence = append(d.Confidence, StepConfidence{
			Command:    v.Command,
			Confidence: confidence.Compute(v.LastRunResults).String(),
			Runs:       len(v.LastRunResults),
		})
	}
	return d, nil
}
