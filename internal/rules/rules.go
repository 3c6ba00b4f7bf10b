// Package rules decides whether a proposed edge between two nodes is legal and
// what hierarchy change it implies. Decisions are pure functions of their
// inputs; applying them is the graph package's job.
//
// Two rule sets exist and are never mixed within one tree:
//
//   - menu: any connection touching a menu node is allowed and makes the menu
//     the ancestor of the other endpoint. Lateral links between non-menu
//     nodes are plain siblings. Top/bottom handles need a menu endpoint.
//   - orphan: the handle axis decides. Top/bottom means parent and child,
//     left/right means siblings, and orphans adopt the hierarchy of the node
//     they are linked to.
//
// Under both, a node whose parent chain is already set is never re-parented
// by a new edge, the entry node never gains ancestors, and an adoption that
// would make a node its own ancestor is skipped.
package rules

import (
	"fmt"
	"strings"

	"github.com/angelstreet/navtree/internal/model"
)

// Policy is a connection rule set.
type Policy interface {
	// Name returns the identifier used in configuration.
	Name() string
	// Decide returns the verdict for connecting source to target.
	Decide(source, target model.Node, handles model.HandleInfo) model.ConnectionResult
}

const (
	PolicyMenu   = "menu"
	PolicyOrphan = "orphan"
)

// ForName returns the rule set registered under name.
func ForName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyMenu, "":
		return MenuPolicy{}, nil
	case PolicyOrphan:
		return OrphanPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown rule policy: %q (use menu or orphan)", name)
	}
}

// Reasons returned with rejected connections.
const (
	ReasonSelfLoop          = "a node cannot be connected to itself"
	ReasonVerticalNeedsMenu = "top/bottom handles require a menu endpoint"
	ReasonInvalidHandles    = "invalid handle"
)

// precheck applies the checks shared by every rule set.
func precheck(source, target model.Node, handles model.HandleInfo) (model.ConnectionResult, bool) {
	if source.ID == target.ID {
		return model.Reject(ReasonSelfLoop), false
	}
	if err := handles.Validate(); err != nil {
		return model.Reject(fmt.Sprintf("%s: %v", ReasonInvalidHandles, err)), false
	}
	return model.ConnectionResult{}, true
}

// adopt returns the update making parent the direct ancestor of child, or nil
// when child must not change.
func adopt(parent, child model.Node) *model.HierarchyUpdate {
	if !child.IsOrphan() || child.Kind == model.KindEntry {
		return nil
	}
	if parent.ID == child.ID || parent.HasAncestor(child.ID) {
		return nil
	}
	return &model.HierarchyUpdate{ParentChain: parent.ChildChain()}
}

// inherit returns the update giving orphan the same parent chain as sibling,
// or nil when orphan must not change.
func inherit(sibling, orphan model.Node) *model.HierarchyUpdate {
	if !orphan.IsOrphan() || orphan.Kind == model.KindEntry || sibling.IsOrphan() {
		return nil
	}
	if sibling.HasAncestor(orphan.ID) {
		return nil
	}
	return &model.HierarchyUpdate{ParentChain: append([]string(nil), sibling.ParentChain...)}
}

// place stores update on whichever side child is.
func place(res *model.ConnectionResult, update *model.HierarchyUpdate, childIsTarget bool) {
	if update == nil {
		return
	}
	if childIsTarget {
		res.Target = update
	} else {
		res.Source = update
	}
}
