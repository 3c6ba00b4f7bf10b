// Package editor is the load, mutate and save loop over persisted trees. It
// wires the graph maintainer to tree persistence and writes run histories
// back after goto and edge runs.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/orchestrator"
	"github.com/angelstreet/navtree/internal/platform"
	"github.com/angelstreet/navtree/internal/rules"
	"github.com/angelstreet/navtree/internal/store"
)

var (
	ErrTreeExists = errors.New("tree already exists")
	ErrNoRunner   = errors.New("no device backend configured")
)

// errUnchanged ends a Mutate callback successfully without saving.
var errUnchanged = errors.New("unchanged")

// Options configure a Service.
type Options struct {
	Policy          rules.Policy
	MaxDisplayDepth int
	// Runner is required only for Goto and RunEdge.
	Runner *orchestrator.Orchestrator
	// NewID overrides generated node and edge ids.
	NewID func() string
}

// Service edits trees held by a TreePersistence. Mutations are serialized
// within the process; every mutation is validated against the graph
// invariants before it is saved.
type Service struct {
	trees    platform.TreePersistence
	policy   rules.Policy
	maxDepth int
	runner   *orchestrator.Orchestrator
	newID    func() string

	mu sync.Mutex
}

// New returns a Service over trees. A nil policy selects the menu policy.
func New(trees platform.TreePersistence, opts Options) *Service {
	s := &Service{
		trees:    trees,
		policy:   opts.Policy,
		maxDepth: opts.MaxDisplayDepth,
		runner:   opts.Runner,
		newID:    opts.NewID,
	}
	if s.policy == nil {
		s.policy = rules.MenuPolicy{}
	}
	if s.maxDepth < 1 {
		s.maxDepth = 3
	}
	return s
}

// Policy returns the active rule set.
func (s *Service) Policy() rules.Policy { return s.policy }

// Report is the result of a tree mutation.
type Report struct {
	OK           bool               `yaml:"ok"                      json:"ok"`
	Action       string             `yaml:"action"                  json:"action"`
	TreeID       string             `yaml:"tree_id"                 json:"tree_id"`
	ID           string             `yaml:"id,omitempty"            json:"id,omitempty"`
	RemovedEdges int                `yaml:"removed_edges,omitempty" json:"removed_edges,omitempty"`
	Changes      []model.NodeChange `yaml:"changes,omitempty"       json:"changes,omitempty"`
}

// CreateTree saves a new empty tree.
func (s *Service) CreateTree(ctx context.Context, treeID, name string) (model.Tree, error) {
	if treeID == "" {
		return model.Tree{}, fmt.Errorf("tree id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.trees.LoadTree(ctx, treeID)
	if err == nil {
		return model.Tree{}, fmt.Errorf("%w: %s", ErrTreeExists, treeID)
	}
	if !errors.Is(err, store.ErrTreeNotFound) {
		return model.Tree{}, err
	}
	tree := model.Tree{ID: treeID, Name: name}
	if err := s.trees.SaveTree(ctx, tree); err != nil {
		return model.Tree{}, fmt.Errorf("save tree %s: %w", treeID, err)
	}
	return tree, nil
}

// Import replaces or creates a tree after validating it.
func (s *Service) Import(ctx context.Context, tree model.Tree) (model.Tree, error) {
	g, err := graph.FromTree(tree)
	if err != nil {
		return model.Tree{}, fmt.Errorf("tree %s: %w", tree.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := g.Tree()
	if err := s.trees.SaveTree(ctx, out); err != nil {
		return model.Tree{}, fmt.Errorf("save tree %s: %w", tree.ID, err)
	}
	return out, nil
}

// Tree loads and validates a tree.
func (s *Service) Tree(ctx context.Context, treeID string) (model.Tree, error) {
	g, err := s.load(ctx, treeID)
	if err != nil {
		return model.Tree{}, err
	}
	return g.Tree(), nil
}

// Mutate loads treeID, applies fn through a maintainer, and saves the result
// when fn succeeds and the invariants still hold. Nothing is saved otherwise.
func (s *Service) Mutate(ctx context.Context, treeID string, fn func(m *graph.Maintainer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, treeID)
	if err != nil {
		return err
	}
	m := graph.NewMaintainer(g, s.policy)
	if s.newID != nil {
		m.SetIDFunc(s.newID)
	}
	if err := fn(m); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if err := g.CheckInvariants(); err != nil {
		return fmt.Errorf("tree %s: %w", treeID, err)
	}
	if err := s.trees.SaveTree(ctx, g.Tree()); err != nil {
		return fmt.Errorf("save tree %s: %w", treeID, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, treeID string) (*graph.Store, error) {
	tree, err := s.trees.LoadTree(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", treeID, err)
	}
	g, err := graph.FromTree(tree)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", treeID, err)
	}
	return g, nil
}

// ResolveNode finds a node by id, then by label.
func ResolveNode(g *graph.Store, ref string) (model.Node, error) {
	if n, ok := g.Node(ref); ok {
		return n, nil
	}
	if n, ok := g.NodeByLabel(ref); ok {
		return n, nil
	}
	return model.Node{}, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, ref)
}
