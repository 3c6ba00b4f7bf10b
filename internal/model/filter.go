package model

// FocusState selects which part of a tree is displayed.
type FocusState struct {
	FocusNodeID     string `yaml:"focus_node_id,omitempty" json:"focus_node_id,omitempty"`
	MaxDisplayDepth int    `yaml:"max_display_depth"       json:"max_display_depth"`
}

// FilterVisible returns the nodes and edges visible under focus. Input order
// is preserved and the inputs are never modified.
//
// Without a focus node, every node with depth <= MaxDisplayDepth is visible.
// With one, the visible set is the focus node, its descendants down to
// MaxDisplayDepth levels below it, and its siblings (same depth and identical
// parent chain). A focus id that names no node is treated as no focus.
// An edge is visible only when both endpoints are.
func FilterVisible(nodes []Node, edges []Edge, focus FocusState) ([]Node, []Edge) {
	maxDepth := focus.MaxDisplayDepth
	if maxDepth < 1 {
		maxDepth = 1
	}

	var focusNode *Node
	if focus.FocusNodeID != "" {
		for i := range nodes {
			if nodes[i].ID == focus.FocusNodeID {
				focusNode = &nodes[i]
				break
			}
		}
	}

	var visible []Node
	visibleIDs := make(map[string]bool)
	for _, n := range nodes {
		var include bool
		if focusNode == nil {
			include = n.Depth <= maxDepth
		} else {
			include = isFocusRelative(n, *focusNode, maxDepth)
		}
		if include {
			visible = append(visible, n)
			visibleIDs[n.ID] = true
		}
	}

	var visibleEdges []Edge
	for _, e := range edges {
		if visibleIDs[e.Source] && visibleIDs[e.Target] {
			visibleEdges = append(visibleEdges, e)
		}
	}
	return visible, visibleEdges
}

// isFocusRelative reports whether n is the focus node, a descendant within
// range, or a sibling of it.
func isFocusRelative(n, focus Node, maxDepth int) bool {
	if n.ID == focus.ID {
		return true
	}
	if n.HasAncestor(focus.ID) && n.Depth <= focus.Depth+maxDepth {
		return true
	}
	return n.Depth == focus.Depth && SameChain(n.ParentChain, focus.ParentChain)
}
