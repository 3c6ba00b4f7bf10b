// Package graph holds the nodes and edges of one navigation tree and keeps
// their hierarchy consistent as edges are drawn and removed.
//
// Store is plain data plus mutations with no business rules. Maintainer is
// the only writer of parent chains: it consults a rules.Policy on connect and
// reverses hierarchy state on deletion. Neither is safe for concurrent use;
// callers own a Store from a single goroutine.
package graph

import (
	"errors"
	"fmt"

	"github.com/angelstreet/navtree/internal/model"
)

var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrEdgeNotFound   = errors.New("edge not found")
	ErrDuplicateNode  = errors.New("duplicate node id")
	ErrDuplicateEdge  = errors.New("duplicate edge id")
	ErrDuplicateEntry = errors.New("tree already has an entry node")
	ErrHierarchyCycle = errors.New("hierarchy cycle")
	ErrInvariant      = errors.New("graph invariant violated")
)

// Selection is the editor's current selection and dialog state.
type Selection struct {
	NodeID     string `yaml:"node_id,omitempty" json:"node_id,omitempty"`
	EdgeID     string `yaml:"edge_id,omitempty" json:"edge_id,omitempty"`
	DialogOpen bool   `yaml:"dialog_open"       json:"dialog_open"`
}

// Store is the canonical node and edge set of one tree.
type Store struct {
	treeID    string
	name      string
	nodes     map[string]*model.Node
	nodeOrder []string
	edges     map[string]*model.Edge
	edgeOrder []string
	selection Selection
}

// NewStore returns an empty store for treeID.
func NewStore(treeID string) *Store {
	return &Store{
		treeID: treeID,
		nodes:  make(map[string]*model.Node),
		edges:  make(map[string]*model.Edge),
	}
}

// FromTree builds a store from a persisted tree. Cached depths are
// recomputed from parent chains, run histories are trimmed to
// model.MaxRunHistory, and the tree must satisfy every invariant.
func FromTree(tree model.Tree) (*Store, error) {
	s := NewStore(tree.ID)
	s.name = tree.Name
	for _, n := range tree.Nodes {
		n = n.Clone()
		n.SetParentChain(n.ParentChain)
		for i := range n.Verifications {
			n.Verifications[i].LastRunResults = n.Verifications[i].LastRunResults.Trim()
		}
		if err := s.insertNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range tree.Edges {
		e = e.Clone()
		trimActions(e.Actions)
		trimActions(e.RetryActions)
		if err := s.insertEdge(e); err != nil {
			return nil, err
		}
	}
	if err := s.CheckInvariants(); err != nil {
		return nil, err
	}
	return s, nil
}

// TreeID returns the id of the tree held by the store.
func (s *Store) TreeID() string { return s.treeID }

// Tree returns a deep copy of the store contents.
func (s *Store) Tree() model.Tree {
	return model.Tree{ID: s.treeID, Name: s.name, Nodes: s.Nodes(), Edges: s.Edges()}
}

// Node returns a copy of the node with id.
func (s *Store) Node(id string) (model.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return n.Clone(), true
}

// NodeByLabel returns the first node whose label is label.
func (s *Store) NodeByLabel(label string) (model.Node, bool) {
	for _, id := range s.nodeOrder {
		if s.nodes[id].Label == label {
			return s.nodes[id].Clone(), true
		}
	}
	return model.Node{}, false
}

// Edge returns a copy of the edge with id.
func (s *Store) Edge(id string) (model.Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return model.Edge{}, false
	}
	return e.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []model.Node {
	out := make([]model.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []model.Edge {
	out := make([]model.Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, s.edges[id].Clone())
	}
	return out
}

// Incoming returns the edges whose target is nodeID.
func (s *Store) Incoming(nodeID string) []model.Edge {
	var out []model.Edge
	for _, id := range s.edgeOrder {
		if e := s.edges[id]; e.Target == nodeID {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Outgoing returns the edges whose source is nodeID.
func (s *Store) Outgoing(nodeID string) []model.Edge {
	var out []model.Edge
	for _, id := range s.edgeOrder {
		if e := s.edges[id]; e.Source == nodeID {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Entry returns the entry node, if the tree has one.
func (s *Store) Entry() (model.Node, bool) {
	for _, id := range s.nodeOrder {
		if s.nodes[id].Kind == model.KindEntry {
			return s.nodes[id].Clone(), true
		}
	}
	return model.Node{}, false
}

// UpdateDetails changes the label and description of a node.
func (s *Store) UpdateDetails(nodeID, label, description string) error {
	n, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	n.Label = label
	n.Description = description
	return nil
}

// SetVerifications replaces the verification list of a node. Run history
// written back by an executed goto arrives through here.
func (s *Store) SetVerifications(nodeID string, verifications []model.Verification) error {
	n, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	n.Verifications = cloneVerifications(verifications)
	return nil
}

// SetActions replaces the primary and retry action lists of an edge.
func (s *Store) SetActions(edgeID string, actions, retryActions []model.Action) error {
	e, ok := s.edges[edgeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	c := model.Edge{Actions: actions, RetryActions: retryActions}.Clone()
	e.Actions = c.Actions
	e.RetryActions = c.RetryActions
	return nil
}

// Select marks a node as selected, clearing any edge selection.
func (s *Store) Select(nodeID string) error {
	if _, ok := s.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	s.selection.NodeID = nodeID
	s.selection.EdgeID = ""
	return nil
}

// SelectEdge marks an edge as selected, clearing any node selection.
func (s *Store) SelectEdge(edgeID string) error {
	if _, ok := s.edges[edgeID]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	s.selection.EdgeID = edgeID
	s.selection.NodeID = ""
	return nil
}

// ClearSelection deselects everything and closes the dialog.
func (s *Store) ClearSelection() {
	s.selection = Selection{}
}

// SetDialogOpen records whether the edit dialog for the selection is open.
func (s *Store) SetDialogOpen(open bool) {
	s.selection.DialogOpen = open
}

// Selection returns the current selection state.
func (s *Store) Selection() Selection {
	return s.selection
}

// CheckInvariants verifies depth consistency, the absence of dangling edges,
// at most one entry node, that no node is its own ancestor, and that no run
// history exceeds model.MaxRunHistory.
func (s *Store) CheckInvariants() error {
	entries := 0
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if n.Depth != len(n.ParentChain) {
			return fmt.Errorf("%w: node %s has depth %d but %d ancestors", ErrInvariant, id, n.Depth, len(n.ParentChain))
		}
		if n.HasAncestor(id) {
			return fmt.Errorf("%w: node %s is its own ancestor", ErrHierarchyCycle, id)
		}
		if n.Kind == model.KindEntry {
			entries++
		}
		for _, v := range n.Verifications {
			if len(v.LastRunResults) > model.MaxRunHistory {
				return fmt.Errorf("%w: node %s verification %s keeps %d results", ErrInvariant, id, v.Command, len(v.LastRunResults))
			}
		}
	}
	if entries > 1 {
		return fmt.Errorf("%w: %d entry nodes", ErrDuplicateEntry, entries)
	}
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if _, ok := s.nodes[e.Source]; !ok {
			return fmt.Errorf("%w: edge %s has dangling source %s", ErrInvariant, id, e.Source)
		}
		if _, ok := s.nodes[e.Target]; !ok {
			return fmt.Errorf("%w: edge %s has dangling target %s", ErrInvariant, id, e.Target)
		}
		if a, ok := overlong(e.Actions, e.RetryActions); ok {
			return fmt.Errorf("%w: edge %s action %s keeps %d results", ErrInvariant, id, a.Command, len(a.LastRunResults))
		}
	}
	return nil
}

func (s *Store) insertNode(n model.Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("node %s: invalid kind %q", n.ID, n.Kind)
	}
	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if n.Kind == model.KindEntry {
		if entry, ok := s.Entry(); ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.ID)
		}
	}
	s.nodes[n.ID] = &n
	s.nodeOrder = append(s.nodeOrder, n.ID)
	return nil
}

func (s *Store) insertEdge(e model.Edge) error {
	if e.ID == "" {
		return fmt.Errorf("edge id is required")
	}
	if _, exists := s.edges[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
	}
	if _, ok := s.nodes[e.Source]; !ok {
		return fmt.Errorf("edge %s source: %w: %s", e.ID, ErrNodeNotFound, e.Source)
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return fmt.Errorf("edge %s target: %w: %s", e.ID, ErrNodeNotFound, e.Target)
	}
	s.edges[e.ID] = &e
	s.edgeOrder = append(s.edgeOrder, e.ID)
	return nil
}

func (s *Store) removeNode(id string) {
	delete(s.nodes, id)
	s.nodeOrder = removeID(s.nodeOrder, id)
	if s.selection.NodeID == id {
		s.selection = Selection{}
	}
}

func (s *Store) removeEdge(id string) {
	delete(s.edges, id)
	s.edgeOrder = removeID(s.edgeOrder, id)
	if s.selection.EdgeID == id {
		s.selection = Selection{}
	}
}

// setParentChain is the single write path for hierarchy state.
func (s *Store) setParentChain(id string, chain []string) {
	s.nodes[id].SetParentChain(chain)
}

func trimActions(actions []model.Action) {
	for i := range actions {
		actions[i].LastRunResults = actions[i].LastRunResults.Trim()
	}
}

// overlong returns the first action whose history exceeds model.MaxRunHistory.
func overlong(lists ...[]model.Action) (model.Action, bool) {
	for _, actions := range lists {
		for _, a := range actions {
			if len(a.LastRunResults) > model.MaxRunHistory {
				return a, true
			}
		}
	}
	return model.Action{}, false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneVerifications(vs []model.Verification) []model.Verification {
	if vs == nil {
		return nil
	}
	out := make([]model.Verification, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
