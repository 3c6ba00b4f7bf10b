package rules

import "github.com/angelstreet/navtree/internal/model"

// OrphanPolicy is the orphan-adoption rule set.
type OrphanPolicy struct{}

// Name implements Policy.
func (OrphanPolicy) Name() string { return PolicyOrphan }

// Decide implements Policy.
func (OrphanPolicy) Decide(source, target model.Node, handles model.HandleInfo) model.ConnectionResult {
	if res, ok := precheck(source, target, handles); !ok {
		return res
	}
	if handles.Vertical() {
		return decideVertical(source, target, handles)
	}
	return decideLateral(source, target)
}

// decideVertical makes the upper endpoint the parent of the lower one. The
// source is upper unless it leaves from its top handle or the target is
// entered from its bottom handle.
func decideVertical(source, target model.Node, handles model.HandleInfo) model.ConnectionResult {
	res := model.Allow(model.CategoryHierarchical)
	if !source.IsOrphan() && !target.IsOrphan() {
		return res
	}

	sourceIsUpper := handles.Source != model.HandleTop && handles.Target != model.HandleBottom
	if sourceIsUpper {
		place(&res, adopt(source, target), true)
	} else {
		place(&res, adopt(target, source), false)
	}
	return res
}

// decideLateral treats the endpoints as siblings.
func decideLateral(source, target model.Node) model.ConnectionResult {
	res := model.Allow(model.CategorySibling)

	switch {
	case source.IsOrphan() && target.IsOrphan():
		// Two orphans: only a menu/non-menu pair is unambiguous.
		switch {
		case source.IsMenu() && !target.IsMenu():
			place(&res, adopt(source, target), true)
		case target.IsMenu() && !source.IsMenu():
			place(&res, adopt(target, source), false)
		}
	case source.IsOrphan():
		place(&res, inherit(target, source), false)
	case target.IsOrphan():
		place(&res, inherit(source, target), true)
	}
	return res
}
