package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/rules"
)

var (
	lateral  = model.HandleInfo{Source: model.HandleRight, Target: model.HandleLeft}
	vertical = model.HandleInfo{Source: model.HandleBottom, Target: model.HandleTop}
)

// newTestMaintainer returns a maintainer that hands out e1, e2, ... ids.
func newTestMaintainer(t *testing.T, policy rules.Policy) *Maintainer {
	t.Helper()
	m := NewMaintainer(NewStore("tree-1"), policy)
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("e%d", seq)
	}
	return m
}

func addNode(t *testing.T, m *Maintainer, id string, kind model.Kind) {
	t.Helper()
	_, err := m.AddNode(NewNode{ID: id, Label: id, Kind: kind})
	require.NoError(t, err)
}

func mustNode(t *testing.T, s *Store, id string) model.Node {
	t.Helper()
	n, ok := s.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n
}

func TestAddNode_GeneratesID(t *testing.T) {
	m := NewMaintainer(NewStore("t"), rules.MenuPolicy{})
	n, err := m.AddNode(NewNode{Label: "Home", Kind: model.KindScreen})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.True(t, n.IsOrphan())
}

func TestAddNode_Validation(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "root", model.KindEntry)

	_, err := m.AddNode(NewNode{ID: "root2", Label: "root2", Kind: model.KindEntry})
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	_, err = m.AddNode(NewNode{ID: "root", Label: "again", Kind: model.KindScreen})
	assert.ErrorIs(t, err, ErrDuplicateNode)

	_, err = m.AddNode(NewNode{ID: "x", Label: "x", Kind: "widget"})
	assert.Error(t, err)

	_, err = m.AddNode(NewNode{ID: "y", Kind: model.KindScreen})
	assert.Error(t, err)
}

func TestConnect_MenuAdoptsScreen(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "M", model.KindMenu)
	addNode(t, m, "S", model.KindScreen)

	out, err := m.Connect("M", "S", vertical)
	require.NoError(t, err)
	require.NotNil(t, out.Edge)
	assert.Equal(t, model.CategoryMenu, out.Edge.Category)

	s := mustNode(t, m.Store(), "S")
	assert.Equal(t, []string{"M"}, s.ParentChain)
	assert.Equal(t, 1, s.Depth)

	require.Len(t, out.Changes, 1)
	assert.Equal(t, "S", out.Changes[0].ID)
	assert.Equal(t, [2]string{"[]", "[M]"}, out.Changes[0].Changes["parent_chain"])
}

func TestConnect_RejectedLeavesStoreUntouched(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "a", model.KindScreen)
	addNode(t, m, "b", model.KindScreen)

	out, err := m.Connect("a", "b", vertical)
	require.NoError(t, err)
	assert.False(t, out.Decision.Allowed)
	assert.Equal(t, rules.ReasonVerticalNeedsMenu, out.Decision.Reason)
	assert.Nil(t, out.Edge)
	assert.Empty(t, m.Store().Edges())
}

func TestConnect_UnknownNode(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "a", model.KindScreen)

	_, err := m.Connect("a", "ghost", lateral)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = m.Connect("ghost", "a", lateral)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestConnect_ExistingHierarchyNotOverwritten(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "M1", model.KindMenu)
	addNode(t, m, "M2", model.KindMenu)
	addNode(t, m, "S", model.KindScreen)

	_, err := m.Connect("M1", "S", vertical)
	require.NoError(t, err)
	out, err := m.Connect("M2", "S", vertical)
	require.NoError(t, err)
	require.NotNil(t, out.Edge)
	assert.Empty(t, out.Changes)
	assert.Equal(t, []string{"M1"}, mustNode(t, m.Store(), "S").ParentChain)
}

// Scenario: X has parent chain [A, B] and a single incoming edge.
func TestDeleteEdge_LastIncomingOrphansTarget(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "A", model.KindMenu)
	addNode(t, m, "B", model.KindMenu)
	addNode(t, m, "X", model.KindScreen)

	_, err := m.Connect("A", "B", vertical)
	require.NoError(t, err)
	out, err := m.Connect("B", "X", vertical)
	require.NoError(t, err)
	x := mustNode(t, m.Store(), "X")
	require.Equal(t, []string{"A", "B"}, x.ParentChain)
	require.Equal(t, 2, x.Depth)

	changes, err := m.DeleteEdge(out.Edge.ID)
	require.NoError(t, err)
	x = mustNode(t, m.Store(), "X")
	assert.Empty(t, x.ParentChain)
	assert.Equal(t, 0, x.Depth)
	require.Len(t, changes, 1)
	assert.Equal(t, "X", changes[0].ID)
}

func TestDeleteEdge_OtherIncomingKeepsHierarchy(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "M", model.KindMenu)
	addNode(t, m, "S", model.KindScreen)
	addNode(t, m, "T", model.KindScreen)

	first, err := m.Connect("M", "S", vertical)
	require.NoError(t, err)
	_, err = m.Connect("T", "S", lateral)
	require.NoError(t, err)

	changes, err := m.DeleteEdge(first.Edge.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, []string{"M"}, mustNode(t, m.Store(), "S").ParentChain)
}

func TestDeleteEdge_Unknown(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	_, err := m.DeleteEdge("nope")
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestDeleteNode_Cascades(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "M", model.KindMenu)
	addNode(t, m, "S", model.KindScreen)
	addNode(t, m, "T", model.KindScreen)
	_, err := m.Connect("M", "S", vertical)
	require.NoError(t, err)
	_, err = m.Connect("S", "T", lateral)
	require.NoError(t, err)
	_, err = m.Connect("T", "M", lateral)
	require.NoError(t, err)
	require.NoError(t, m.Store().Select("S"))

	changes, err := m.DeleteNode("S")
	require.NoError(t, err)
	_, ok := m.Store().Node("S")
	assert.False(t, ok)
	require.Len(t, m.Store().Edges(), 1)
	assert.Equal(t, "T", m.Store().Edges()[0].Source)
	assert.Equal(t, Selection{}, m.Store().Selection())
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeRemoved, changes[0].Type)
	require.NoError(t, m.Store().CheckInvariants())
}

// Scenario: Y has one incoming and two outgoing edges.
func TestResetNode_RemovesAllTouchingEdges(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "M", model.KindMenu)
	addNode(t, m, "Y", model.KindScreen)
	addNode(t, m, "P", model.KindScreen)
	addNode(t, m, "Q", model.KindScreen)
	addNode(t, m, "R", model.KindScreen)

	_, err := m.Connect("M", "Y", vertical)
	require.NoError(t, err)
	_, err = m.Connect("Y", "P", lateral)
	require.NoError(t, err)
	_, err = m.Connect("Y", "Q", lateral)
	require.NoError(t, err)
	_, err = m.Connect("R", "P", lateral)
	require.NoError(t, err)
	require.Len(t, m.Store().Incoming("Y"), 1)
	require.Len(t, m.Store().Outgoing("Y"), 2)

	_, removed, err := m.ResetNode("Y")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	y := mustNode(t, m.Store(), "Y")
	assert.Empty(t, y.ParentChain)
	assert.Equal(t, 0, y.Depth)
	assert.Empty(t, m.Store().Incoming("Y"))
	assert.Empty(t, m.Store().Outgoing("Y"))
	assert.Len(t, m.Store().Edges(), 1, "unrelated edge survives")
}

func TestStore_SelectionAndDetails(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "a", model.KindScreen)
	addNode(t, m, "b", model.KindScreen)
	out, err := m.Connect("a", "b", lateral)
	require.NoError(t, err)
	s := m.Store()

	require.NoError(t, s.Select("a"))
	s.SetDialogOpen(true)
	assert.Equal(t, Selection{NodeID: "a", DialogOpen: true}, s.Selection())

	require.NoError(t, s.SelectEdge(out.Edge.ID))
	assert.Equal(t, out.Edge.ID, s.Selection().EdgeID)
	assert.Empty(t, s.Selection().NodeID)

	assert.ErrorIs(t, s.Select("zzz"), ErrNodeNotFound)
	assert.ErrorIs(t, s.SelectEdge("zzz"), ErrEdgeNotFound)

	require.NoError(t, s.UpdateDetails("a", "Home", "landing page"))
	n := mustNode(t, s, "a")
	assert.Equal(t, "Home", n.Label)
	found, ok := s.NodeByLabel("Home")
	require.True(t, ok)
	assert.Equal(t, "a", found.ID)

	s.ClearSelection()
	assert.Equal(t, Selection{}, s.Selection())
}

func TestStore_SetVerificationsCopies(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "a", model.KindScreen)
	vs := []model.Verification{{Command: "waitForElement", Controller: model.ControllerText}}

	require.NoError(t, m.Store().SetVerifications("a", vs))
	vs[0].Command = "mutated"
	assert.Equal(t, "waitForElement", mustNode(t, m.Store(), "a").Verifications[0].Command)

	assert.ErrorIs(t, m.Store().SetVerifications("zzz", vs), ErrNodeNotFound)
}

func TestFromTree_RecomputesDepthAndChecksEdges(t *testing.T) {
	tree := model.Tree{
		ID: "t",
		Nodes: []model.Node{
			{ID: "a", Label: "a", Kind: model.KindEntry},
			{ID: "b", Label: "b", Kind: model.KindScreen, ParentChain: []string{"a"}, Depth: 7},
		},
		Edges: []model.Edge{{ID: "e", Source: "a", Target: "b"}},
	}
	s, err := FromTree(tree)
	require.NoError(t, err)
	assert.Equal(t, 1, mustNode(t, s, "b").Depth)

	tree.Edges = append(tree.Edges, model.Edge{ID: "bad", Source: "a", Target: "ghost"})
	_, err = FromTree(tree)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	tree.Edges = tree.Edges[:1]
	tree.Nodes[1].ParentChain = []string{"a", "b"}
	_, err = FromTree(tree)
	assert.ErrorIs(t, err, ErrHierarchyCycle)
}

func TestFromTree_TrimsRunHistories(t *testing.T) {
	long := make(model.RunHistory, 15)
	long[0] = true
	tree := model.Tree{
		ID: "t",
		Nodes: []model.Node{
			{ID: "a", Label: "a", Kind: model.KindScreen, Verifications: []model.Verification{{Command: "check", LastRunResults: long}}},
			{ID: "b", Label: "b", Kind: model.KindScreen},
		},
		Edges: []model.Edge{{
			ID: "e", Source: "a", Target: "b",
			Actions:      []model.Action{{Command: "OK", LastRunResults: long}},
			RetryActions: []model.Action{{Command: "BACK", LastRunResults: long}},
		}},
	}
	s, err := FromTree(tree)
	require.NoError(t, err)

	h := mustNode(t, s, "a").Verifications[0].LastRunResults
	require.Len(t, h, model.MaxRunHistory)
	assert.True(t, h[0], "newest outcome kept")
	e, _ := s.Edge("e")
	assert.Len(t, e.Actions[0].LastRunResults, model.MaxRunHistory)
	assert.Len(t, e.RetryActions[0].LastRunResults, model.MaxRunHistory)
	assert.Len(t, tree.Nodes[0].Verifications[0].LastRunResults, 15, "input not modified")
}

func TestCheckInvariants_RejectsOverlongHistory(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	addNode(t, m, "a", model.KindScreen)
	addNode(t, m, "b", model.KindScreen)
	long := make(model.RunHistory, model.MaxRunHistory+1)

	require.NoError(t, m.Store().SetVerifications("a", []model.Verification{{Command: "check", LastRunResults: long}}))
	assert.ErrorIs(t, m.Store().CheckInvariants(), ErrInvariant)

	require.NoError(t, m.Store().SetVerifications("a", nil))
	out, err := m.Connect("a", "b", lateral)
	require.NoError(t, err)
	require.NotNil(t, out.Edge)
	require.NoError(t, m.Store().SetActions(out.Edge.ID, nil, []model.Action{{Command: "BACK", LastRunResults: long}}))
	assert.ErrorIs(t, m.Store().CheckInvariants(), ErrInvariant)
}

func TestConnect_DuplicateEdgeIDLeavesStoreUntouched(t *testing.T) {
	m := newTestMaintainer(t, rules.MenuPolicy{})
	m.SetIDFunc(func() string { return "dup" })
	addNode(t, m, "menu", model.KindMenu)
	addNode(t, m, "a", model.KindScreen)
	addNode(t, m, "b", model.KindScreen)

	_, err := m.Connect("menu", "a", vertical)
	require.NoError(t, err)
	before := m.Store().Tree()

	_, err = m.Connect("menu", "b", vertical)
	assert.ErrorIs(t, err, ErrDuplicateEdge)
	assert.Equal(t, before, m.Store().Tree())
	assert.True(t, mustNode(t, m.Store(), "b").IsOrphan())
}

type op struct {
	Kind   int
	A, B   int
	Handle int
}

func TestMaintainer_InvariantsHoldUnderRandomOperations(t *testing.T) {
	kinds := []model.Kind{model.KindScreen, model.KindMenu, model.KindDialog, model.KindPopup}
	handles := []model.HandleInfo{
		lateral,
		vertical,
		{Source: model.HandleTop, Target: model.HandleBottom},
		{Source: model.HandleLeft, Target: model.HandleRight},
	}

	opGen := gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.IntRange(0, 7),
		gen.IntRange(0, 7),
		gen.IntRange(0, len(handles)-1),
	).Map(func(vs []interface{}) op {
		return op{Kind: vs[0].(int), A: vs[1].(int), B: vs[2].(int), Handle: vs[3].(int)}
	})

	run := func(policy rules.Policy, ops []op) bool {
		m := NewMaintainer(NewStore("p"), policy)
		for i := 0; i < 8; i++ {
			if _, err := m.AddNode(NewNode{ID: fmt.Sprintf("n%d", i), Label: "n", Kind: kinds[i%len(kinds)]}); err != nil {
				return false
			}
		}
		for _, o := range ops {
			a, b := fmt.Sprintf("n%d", o.A), fmt.Sprintf("n%d", o.B)
			switch o.Kind {
			case 0, 1:
				_, _ = m.Connect(a, b, handles[o.Handle])
			case 2:
				if edges := m.Store().Edges(); len(edges) > 0 {
					_, _ = m.DeleteEdge(edges[o.A%len(edges)].ID)
				}
			case 3:
				_, _, _ = m.ResetNode(a)
			case 4:
				if _, err := m.DeleteNode(a); err == nil {
					_, _ = m.AddNode(NewNode{ID: a, Label: "n", Kind: kinds[o.B%len(kinds)]})
				}
			}
			if err := m.Store().CheckInvariants(); err != nil {
				t.Logf("after %+v: %v", o, err)
				return false
			}
		}
		return true
	}

	properties := gopter.NewProperties(nil)
	properties.Property("menu policy keeps depth and edge invariants", prop.ForAll(
		func(ops []op) bool { return run(rules.MenuPolicy{}, ops) },
		gen.SliceOf(opGen),
	))
	properties.Property("orphan policy keeps depth and edge invariants", prop.ForAll(
		func(ops []op) bool { return run(rules.OrphanPolicy{}, ops) },
		gen.SliceOf(opGen),
	))
	properties.TestingRun(t)
}
