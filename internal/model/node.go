package model

import (
	"fmt"
	"strings"
)

// Kind is the type of UI state a node models.
type Kind string

const (
	KindScreen  Kind = "screen"
	KindDialog  Kind = "dialog"
	KindPopup   Kind = "popup"
	KindOverlay Kind = "overlay"
	KindMenu    Kind = "menu"
	KindEntry   Kind = "entry"
)

var kinds = []Kind{KindScreen, KindDialog, KindPopup, KindOverlay, KindMenu, KindEntry}

// ParseKind converts a flag or file value to a Kind. "root" is accepted as
// an alias of entry.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "root" {
		return KindEntry, nil
	}
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown node kind: %q (expected screen, dialog, popup, overlay, menu, or entry)", s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Node is a screen or state in a navigation tree.
//
// ParentChain lists ancestor ids from the root down to the nearest parent.
// Depth always equals len(ParentChain); use SetParentChain to change either.
type Node struct {
	ID            string            `yaml:"id"                      json:"id"`
	Label         string            `yaml:"label"                   json:"label"`
	Description   string            `yaml:"description,omitempty"   json:"description,omitempty"`
	Kind          Kind              `yaml:"kind"                    json:"kind"`
	ParentChain   []string          `yaml:"parent_chain,omitempty"  json:"parent_chain,omitempty"`
	Depth         int               `yaml:"depth"                   json:"depth"`
	Verifications []Verification    `yaml:"verifications,omitempty" json:"verifications,omitempty"`
	Extra         map[string]string `yaml:"extra,omitempty"         json:"extra,omitempty"`
}

// IsOrphan reports whether the node has no ancestors.
func (n Node) IsOrphan() bool {
	return len(n.ParentChain) == 0
}

// IsMenu reports whether the node is a menu.
func (n Node) IsMenu() bool {
	return n.Kind == KindMenu
}

// HasAncestor reports whether id appears anywhere in the node's parent chain.
func (n Node) HasAncestor(id string) bool {
	for _, a := range n.ParentChain {
		if a == id {
			return true
		}
	}
	return false
}

// SetParentChain replaces the parent chain with a copy of chain and
// recomputes the depth.
func (n *Node) SetParentChain(chain []string) {
	if len(chain) == 0 {
		n.ParentChain = nil
		n.Depth = 0
		return
	}
	n.ParentChain = append([]string(nil), chain...)
	n.Depth = len(n.ParentChain)
}

// Orphan clears the node's hierarchy.
func (n *Node) Orphan() {
	n.SetParentChain(nil)
}

// ChildChain returns the parent chain a direct child of n would carry.
func (n Node) ChildChain() []string {
	chain := make([]string, 0, len(n.ParentChain)+1)
	chain = append(chain, n.ParentChain...)
	return append(chain, n.ID)
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.ParentChain != nil {
		c.ParentChain = append([]string(nil), n.ParentChain...)
	}
	if n.Verifications != nil {
		c.Verifications = make([]Verification, len(n.Verifications))
		for i, v := range n.Verifications {
			c.Verifications[i] = v.Clone()
		}
	}
	if n.Extra != nil {
		c.Extra = make(map[string]string, len(n.Extra))
		for k, v := range n.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// SameChain compares two parent chains element-wise.
func SameChain(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
