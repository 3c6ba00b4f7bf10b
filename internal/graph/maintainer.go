package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/rules"
)

// Maintainer applies connection decisions to a Store and reverses hierarchy
// state when edges and nodes are removed. Every operation either fully
// applies or returns before mutating anything.
type Maintainer struct {
	store  *Store
	policy rules.Policy
	newID  func() string
}

// NewMaintainer returns a maintainer writing to store under policy.
func NewMaintainer(store *Store, policy rules.Policy) *Maintainer {
	return &Maintainer{store: store, policy: policy, newID: uuid.NewString}
}

// Store returns the store the maintainer writes to.
func (m *Maintainer) Store() *Store { return m.store }

// Policy returns the active rule set.
func (m *Maintainer) Policy() rules.Policy { return m.policy }

// SetIDFunc replaces the generator used for new node and edge ids.
func (m *Maintainer) SetIDFunc(fn func() string) { m.newID = fn }

// NewNode describes a node to add. An empty ID is replaced by a generated one.
type NewNode struct {
	ID          string
	Label       string
	Description string
	Kind        model.Kind
}

// AddNode inserts an orphan node.
func (m *Maintainer) AddNode(spec NewNode) (model.Node, error) {
	if strings.TrimSpace(spec.Label) == "" {
		return model.Node{}, fmt.Errorf("node label is required")
	}
	id := spec.ID
	if id == "" {
		id = m.newID()
	}
	n := model.Node{ID: id, Label: spec.Label, Description: spec.Description, Kind: spec.Kind}
	if err := m.store.insertNode(n); err != nil {
		return model.Node{}, err
	}
	return n.Clone(), nil
}

// ConnectOutcome is the result of a connect attempt. Edge is nil when the
// rule set rejected the connection.
type ConnectOutcome struct {
	Decision model.ConnectionResult `yaml:"decision"          json:"decision"`
	Edge     *model.Edge            `yaml:"edge,omitempty"    json:"edge,omitempty"`
	Changes  []model.NodeChange     `yaml:"changes,omitempty" json:"changes,omitempty"`
}

// Connect asks the rule set whether source may link to target and, when it
// may, applies the hierarchy updates and inserts the edge. A rejection is
// returned in the outcome with a nil error and leaves the store untouched.
func (m *Maintainer) Connect(sourceID, targetID string, handles model.HandleInfo) (ConnectOutcome, error) {
	source, ok := m.store.nodes[sourceID]
	if !ok {
		return ConnectOutcome{}, fmt.Errorf("source: %w: %s", ErrNodeNotFound, sourceID)
	}
	target, ok := m.store.nodes[targetID]
	if !ok {
		return ConnectOutcome{}, fmt.Errorf("target: %w: %s", ErrNodeNotFound, targetID)
	}

	decision := m.policy.Decide(source.Clone(), target.Clone(), handles)
	out := ConnectOutcome{Decision: decision}
	if !decision.Allowed {
		return out, nil
	}

	if decision.Source != nil && containsID(decision.Source.ParentChain, sourceID) {
		return ConnectOutcome{}, fmt.Errorf("%w: %s would become its own ancestor", ErrHierarchyCycle, sourceID)
	}
	if decision.Target != nil && containsID(decision.Target.ParentChain, targetID) {
		return ConnectOutcome{}, fmt.Errorf("%w: %s would become its own ancestor", ErrHierarchyCycle, targetID)
	}

	edgeID := m.newID()
	if edgeID == "" {
		return ConnectOutcome{}, fmt.Errorf("edge id is required")
	}
	if _, exists := m.store.edges[edgeID]; exists {
		return ConnectOutcome{}, fmt.Errorf("%w: %s", ErrDuplicateEdge, edgeID)
	}

	before := m.store.Nodes()
	if decision.Source != nil {
		m.store.setParentChain(sourceID, decision.Source.ParentChain)
	}
	if decision.Target != nil {
		m.store.setParentChain(targetID, decision.Target.ParentChain)
	}

	e := model.Edge{
		ID:       edgeID,
		Source:   sourceID,
		Target:   targetID,
		Handles:  handles,
		Category: decision.Category,
	}
	if err := m.store.insertEdge(e); err != nil {
		return ConnectOutcome{}, err
	}
	out.Edge = &e
	out.Changes = model.DiffNodes(before, m.store.Nodes())
	return out, nil
}

// DeleteEdge removes an edge. The former target becomes an orphan when no
// incoming edge is left; otherwise its hierarchy is kept.
func (m *Maintainer) DeleteEdge(edgeID string) ([]model.NodeChange, error) {
	e, ok := m.store.edges[edgeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	targetID := e.Target

	before := m.store.Nodes()
	m.store.removeEdge(edgeID)
	if len(m.store.Incoming(targetID)) == 0 {
		m.store.setParentChain(targetID, nil)
	}
	return model.DiffNodes(before, m.store.Nodes()), nil
}

// DeleteNode removes a node and every edge touching it.
func (m *Maintainer) DeleteNode(nodeID string) ([]model.NodeChange, error) {
	if _, ok := m.store.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	before := m.store.Nodes()
	for _, e := range m.store.Edges() {
		if e.Touches(nodeID) {
			m.store.removeEdge(e.ID)
		}
	}
	m.store.removeNode(nodeID)
	return model.DiffNodes(before, m.store.Nodes()), nil
}

// ResetNode orphans a node and removes all of its incoming and outgoing
// edges. Other endpoints keep their hierarchy.
func (m *Maintainer) ResetNode(nodeID string) ([]model.NodeChange, int, error) {
	if _, ok := m.store.nodes[nodeID]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	before := m.store.Nodes()
	removed := 0
	for _, e := range m.store.Edges() {
		if e.Touches(nodeID) {
			m.store.removeEdge(e.ID)
			removed++
		}
	}
	m.store.setParentChain(nodeID, nil)
	return model.DiffNodes(before, m.store.Nodes()), removed, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
