package model

import (
	"strconv"
	"strings"
)

// ChangeType represents the kind of node change detected.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// NodeChange represents a single change between two snapshots of a tree.
type NodeChange struct {
	Type    ChangeType           `yaml:"type"              json:"type"`
	ID      string               `yaml:"id"                json:"id"`
	Label   string               `yaml:"label,omitempty"   json:"label,omitempty"`
	Changes map[string][2]string `yaml:"changes,omitempty" json:"changes,omitempty"` // For changed: field diffs
}

// DiffNodes compares two node lists and returns the changes. Nodes are
// matched by ID. Added and changed nodes follow curr order, removed nodes
// follow prev order.
func DiffNodes(prev, curr []Node) []NodeChange {
	prevMap := make(map[string]Node, len(prev))
	for _, n := range prev {
		prevMap[n.ID] = n
	}
	currMap := make(map[string]Node, len(curr))
	for _, n := range curr {
		currMap[n.ID] = n
	}

	var changes []NodeChange
	for _, n := range curr {
		prevNode, existed := prevMap[n.ID]
		if !existed {
			changes = append(changes, NodeChange{Type: ChangeAdded, ID: n.ID, Label: n.Label})
			continue
		}
		if diffs := diffProperties(prevNode, n); len(diffs) > 0 {
			changes = append(changes, NodeChange{
				Type:    ChangeChanged,
				ID:      n.ID,
				Label:   n.Label,
				Changes: diffs,
			})
		}
	}

	for _, n := range prev {
		if _, exists := currMap[n.ID]; !exists {
			changes = append(changes, NodeChange{Type: ChangeRemoved, ID: n.ID, Label: n.Label})
		}
	}
	return changes
}

// diffProperties compares the structural fields of two nodes.
func diffProperties(prev, curr Node) map[string][2]string {
	diffs := make(map[string][2]string)

	if prev.Label != curr.Label {
		diffs["label"] = [2]string{prev.Label, curr.Label}
	}
	if prev.Kind != curr.Kind {
		diffs["kind"] = [2]string{string(prev.Kind), string(curr.Kind)}
	}
	if !SameChain(prev.ParentChain, curr.ParentChain) {
		diffs["parent_chain"] = [2]string{formatChain(prev.ParentChain), formatChain(curr.ParentChain)}
	}
	if prev.Depth != curr.Depth {
		diffs["depth"] = [2]string{strconv.Itoa(prev.Depth), strconv.Itoa(curr.Depth)}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}

func formatChain(chain []string) string {
	return "[" + strings.Join(chain, " > ") + "]"
}
