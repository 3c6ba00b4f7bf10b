package model

// HierarchyUpdate is a replacement parent chain for one endpoint of a
// connection. The depth follows from the chain.
type HierarchyUpdate struct {
	ParentChain []string `yaml:"parent_chain" json:"parent_chain"`
}

// Depth returns the depth the node will have after the update.
func (u HierarchyUpdate) Depth() int {
	return len(u.ParentChain)
}

// ConnectionResult is a rule set's verdict on a proposed edge.
type ConnectionResult struct {
	Allowed  bool             `yaml:"allowed"          json:"allowed"`
	Reason   string           `yaml:"reason,omitempty" json:"reason,omitempty"`
	Category Category         `yaml:"category"         json:"category"`
	Source   *HierarchyUpdate `yaml:"source,omitempty" json:"source,omitempty"`
	Target   *HierarchyUpdate `yaml:"target,omitempty" json:"target,omitempty"`
}

// Reject builds a disallowed result.
func Reject(reason string) ConnectionResult {
	return ConnectionResult{Allowed: false, Reason: reason}
}

// Allow builds an allowed result with no hierarchy change.
func Allow(category Category) ConnectionResult {
	return ConnectionResult{Allowed: true, Category: category}
}
