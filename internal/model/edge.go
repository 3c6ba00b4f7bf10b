package model

import (
	"fmt"
	"strings"
)

// Handle is the side of a node an edge attaches to.
type Handle string

const (
	HandleLeft   Handle = "left"
	HandleRight  Handle = "right"
	HandleTop    Handle = "top"
	HandleBottom Handle = "bottom"
)

// ParseHandle converts a handle id to a Handle. Editor handle ids carry a
// direction suffix ("right-source", "top-target") which is ignored.
func ParseHandle(s string) (Handle, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "-source")
	v = strings.TrimSuffix(v, "-target")
	switch Handle(v) {
	case HandleLeft, HandleRight, HandleTop, HandleBottom:
		return Handle(v), nil
	default:
		return "", fmt.Errorf("unknown handle: %q (expected left, right, top, or bottom)", s)
	}
}

// Vertical reports whether the handle sits on the top or bottom side.
func (h Handle) Vertical() bool {
	return h == HandleTop || h == HandleBottom
}

// HandleInfo records which handle of each endpoint a connection uses.
type HandleInfo struct {
	Source Handle `yaml:"source" json:"source"`
	Target Handle `yaml:"target" json:"target"`
}

// Vertical reports whether either endpoint uses a top/bottom handle.
func (h HandleInfo) Vertical() bool {
	return h.Source.Vertical() || h.Target.Vertical()
}

// Validate checks both handles are known.
func (h HandleInfo) Validate() error {
	if _, err := ParseHandle(string(h.Source)); err != nil {
		return fmt.Errorf("source %w", err)
	}
	if _, err := ParseHandle(string(h.Target)); err != nil {
		return fmt.Errorf("target %w", err)
	}
	return nil
}

// Category is the derived classification of an edge.
type Category string

const (
	// Menu-centric rule set.
	CategoryDefault Category = "default"
	CategoryMenu    Category = "menu"

	// Orphan-adoption rule set.
	CategoryHierarchical Category = "hierarchical"
	CategorySibling      Category = "sibling"
)

// Edge is a directed transition between two nodes. Actions run in order to
// move the device from Source to Target; RetryActions are the fallback when
// any primary action fails.
type Edge struct {
	ID           string     `yaml:"id"                      json:"id"`
	Source       string     `yaml:"source"                  json:"source"`
	Target       string     `yaml:"target"                  json:"target"`
	Handles      HandleInfo `yaml:"handles"                 json:"handles"`
	Category     Category   `yaml:"category"                json:"category"`
	Actions      []Action   `yaml:"actions,omitempty"       json:"actions,omitempty"`
	RetryActions []Action   `yaml:"retry_actions,omitempty" json:"retry_actions,omitempty"`
}

// Touches reports whether the edge has id as source or target.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	c := e
	c.Actions = cloneActions(e.Actions)
	c.RetryActions = cloneActions(e.RetryActions)
	return c
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a.Clone()
	}
	return out
}

// Tree is the persisted form of one navigation tree.
type Tree struct {
	ID    string `yaml:"id"    json:"id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes []Node `yaml:"nodes" json:"nodes"`
	Edges []Edge `yaml:"edges" json:"edges"`
}
