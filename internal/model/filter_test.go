package model

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, chain ...string) Node {
	n := Node{ID: id, Label: id, Kind: KindScreen}
	n.SetParentChain(chain)
	return n
}

func edge(id, src, tgt string) Edge {
	return Edge{ID: id, Source: src, Target: tgt, Category: CategoryDefault}
}

func ids(nodes []Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

// buildFilterTree creates:
//
//	home (0)
//	├── menu (1)
//	│   ├── settings (2)
//	│   │   └── wifi (3)
//	│   └── guide (2)
//	└── live (1)
func buildFilterTree() ([]Node, []Edge) {
	nodes := []Node{
		node("home"),
		node("menu", "home"),
		node("live", "home"),
		node("settings", "home", "menu"),
		node("guide", "home", "menu"),
		node("wifi", "home", "menu", "settings"),
	}
	edges := []Edge{
		edge("e1", "home", "menu"),
		edge("e2", "home", "live"),
		edge("e3", "menu", "settings"),
		edge("e4", "menu", "guide"),
		edge("e5", "settings", "wifi"),
		edge("e6", "menu", "live"),
	}
	return nodes, edges
}

func TestFilterVisible_NoFocusDepthLimit(t *testing.T) {
	nodes := []Node{
		node("d0"),
		node("d1", "d0"),
		node("d2", "d0", "d1"),
		node("d3", "d0", "d1", "d2"),
	}
	edges := []Edge{edge("a", "d0", "d1"), edge("b", "d1", "d2"), edge("c", "d2", "d3")}

	visible, visibleEdges := FilterVisible(nodes, edges, FocusState{MaxDisplayDepth: 2})
	assert.Equal(t, []string{"d0", "d1", "d2"}, ids(visible))
	require.Len(t, visibleEdges, 2)
	assert.Equal(t, "a", visibleEdges[0].ID)
	assert.Equal(t, "b", visibleEdges[1].ID)
}

func TestFilterVisible_FocusDescendantsAndSiblings(t *testing.T) {
	nodes, edges := buildFilterTree()

	visible, visibleEdges := FilterVisible(nodes, edges, FocusState{FocusNodeID: "menu", MaxDisplayDepth: 1})
	assert.Equal(t, []string{"menu", "live", "settings", "guide"}, ids(visible))

	var edgeIDs []string
	for _, e := range visibleEdges {
		edgeIDs = append(edgeIDs, e.ID)
	}
	// home is hidden, so e1/e2 drop out; wifi is beyond depth so e5 drops out.
	assert.Equal(t, []string{"e3", "e4", "e6"}, edgeIDs)
}

func TestFilterVisible_FocusDeeperRange(t *testing.T) {
	nodes, edges := buildFilterTree()
	visible, _ := FilterVisible(nodes, edges, FocusState{FocusNodeID: "menu", MaxDisplayDepth: 2})
	assert.Contains(t, ids(visible), "wifi")
	assert.NotContains(t, ids(visible), "home")
}

func TestFilterVisible_SiblingsRequireIdenticalChain(t *testing.T) {
	nodes := []Node{
		node("a", "root"),
		node("b", "root"),
		node("c", "other"),
	}
	visible, _ := FilterVisible(nodes, nil, FocusState{FocusNodeID: "a", MaxDisplayDepth: 1})
	assert.Equal(t, []string{"a", "b"}, ids(visible))
}

func TestFilterVisible_UnknownFocusFallsBackToDepth(t *testing.T) {
	nodes, edges := buildFilterTree()
	visible, _ := FilterVisible(nodes, edges, FocusState{FocusNodeID: "missing", MaxDisplayDepth: 1})
	assert.Equal(t, []string{"home", "menu", "live"}, ids(visible))
}

func TestFilterVisible_DepthBelowOneIsClamped(t *testing.T) {
	nodes, edges := buildFilterTree()
	a, _ := FilterVisible(nodes, edges, FocusState{MaxDisplayDepth: 0})
	b, _ := FilterVisible(nodes, edges, FocusState{MaxDisplayDepth: 1})
	assert.Equal(t, ids(b), ids(a))
}

func TestFilterVisible_DoesNotMutateInput(t *testing.T) {
	nodes, edges := buildFilterTree()
	before := make([]Node, len(nodes))
	for i, n := range nodes {
		before[i] = n.Clone()
	}
	FilterVisible(nodes, edges, FocusState{FocusNodeID: "settings", MaxDisplayDepth: 3})
	assert.Equal(t, before, nodes)
}

// genTree builds a random forest: node i picks an earlier node as parent or
// stays a root, and edges connect random pairs.
func genTree(parents []int, pairs []int) ([]Node, []Edge) {
	nodes := make([]Node, len(parents))
	for i, p := range parents {
		n := Node{ID: string(rune('a' + i)), Kind: KindScreen}
		if i > 0 && p%(i+1) != i {
			parent := nodes[p%(i+1)]
			n.SetParentChain(parent.ChildChain())
		}
		nodes[i] = n
	}
	var edges []Edge
	for i := 0; len(nodes) > 0 && i+1 < len(pairs); i += 2 {
		src := nodes[pairs[i]%len(nodes)].ID
		tgt := nodes[pairs[i+1]%len(nodes)].ID
		edges = append(edges, Edge{ID: src + tgt + string(rune('0'+i%10)), Source: src, Target: tgt})
	}
	return nodes, edges
}

func TestFilterVisible_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	treeGen := gen.SliceOfN(12, gen.IntRange(0, 20))
	pairGen := gen.SliceOfN(16, gen.IntRange(0, 50))

	properties.Property("filter is idempotent", prop.ForAll(
		func(parents, pairs []int, focus, depth int) bool {
			nodes, edges := genTree(parents, pairs)
			fs := FocusState{MaxDisplayDepth: depth}
			if focus < len(nodes) {
				fs.FocusNodeID = nodes[focus].ID
			}
			n1, e1 := FilterVisible(nodes, edges, fs)
			n2, e2 := FilterVisible(nodes, edges, fs)
			return assert.ObjectsAreEqual(n1, n2) && assert.ObjectsAreEqual(e1, e2)
		},
		treeGen, pairGen, gen.IntRange(0, 15), gen.IntRange(1, 4),
	))

	properties.Property("visible edges have visible endpoints", prop.ForAll(
		func(parents, pairs []int, focus, depth int) bool {
			nodes, edges := genTree(parents, pairs)
			fs := FocusState{MaxDisplayDepth: depth}
			if focus < len(nodes) {
				fs.FocusNodeID = nodes[focus].ID
			}
			visible, visibleEdges := FilterVisible(nodes, edges, fs)
			seen := make(map[string]bool)
			for _, n := range visible {
				seen[n.ID] = true
			}
			for _, e := range visibleEdges {
				if !seen[e.Source] || !seen[e.Target] {
					return false
				}
			}
			return true
		},
		treeGen, pairGen, gen.IntRange(0, 15), gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
