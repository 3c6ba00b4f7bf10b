package rules

import "github.com/angelstreet/navtree/internal/model"

// MenuPolicy is the menu-centric rule set.
type MenuPolicy struct{}

// Name implements Policy.
func (MenuPolicy) Name() string { return PolicyMenu }

// Decide implements Policy.
//
// When both endpoints are menus the source is treated as the ancestor.
func (MenuPolicy) Decide(source, target model.Node, handles model.HandleInfo) model.ConnectionResult {
	if res, ok := precheck(source, target, handles); !ok {
		return res
	}

	if !source.IsMenu() && !target.IsMenu() {
		if handles.Vertical() {
			return model.Reject(ReasonVerticalNeedsMenu)
		}
		return model.Allow(model.CategoryDefault)
	}

	parent, child, childIsTarget := source, target, true
	if !source.IsMenu() {
		parent, child, childIsTarget = target, source, false
	}

	res := model.Allow(model.CategoryMenu)
	place(&res, adopt(parent, child), childIsTarget)
	return res
}
