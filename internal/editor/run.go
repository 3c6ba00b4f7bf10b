package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/orchestrator"
)

// Goto drives the device to the node named by ref and saves the updated
// verification histories. The tree is not locked while the device runs, so
// edits made meanwhile are kept: each outcome is added to the verification it
// ran on, matched by position and command. Histories of a node deleted
// meanwhile are dropped with a note.
func (s *Service) Goto(ctx context.Context, treeID, ref string, session orchestrator.Session) (*orchestrator.RunResult, error) {
	if s.runner == nil {
		return nil, ErrNoRunner
	}
	g, err := s.load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	node, err := ResolveNode(g, ref)
	if err != nil {
		return nil, err
	}

	res, err := s.runner.RunGoto(ctx, orchestrator.GotoRequest{TreeID: treeID, Node: node, Session: session})
	if err != nil {
		return nil, err
	}
	ran := ranSteps(res, model.RecordVerification)
	if len(ran) == 0 {
		return res, nil
	}
	s.writeBack(ctx, res, func(m *graph.Maintainer) (int, error) {
		n, ok := m.Store().Node(node.ID)
		if !ok {
			return 0, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, node.ID)
		}
		lost := 0
		for _, st := range ran {
			i := st.Index - 1
			if i >= len(n.Verifications) || n.Verifications[i].Command != st.Command {
				lost++
				continue
			}
			n.Verifications[i].RecordResult(st.OK)
		}
		return lost, m.Store().SetVerifications(node.ID, n.Verifications)
	})
	return res, nil
}

// RunEdge executes the actions of edgeID and saves the updated action
// histories the same way Goto saves verification histories.
func (s *Service) RunEdge(ctx context.Context, treeID, edgeID string, session orchestrator.Session) (*orchestrator.RunResult, error) {
	if s.runner == nil {
		return nil, ErrNoRunner
	}
	g, err := s.load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	edge, ok := g.Edge(edgeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrEdgeNotFound, edgeID)
	}

	res, err := s.runner.RunEdge(ctx, orchestrator.EdgeRequest{TreeID: treeID, Edge: edge, Session: session})
	if err != nil {
		return nil, err
	}
	primary, retry := ranSteps(res, model.RecordAction), ranSteps(res, model.RecordRetryAction)
	if len(primary) == 0 && len(retry) == 0 {
		return res, nil
	}
	s.writeBack(ctx, res, func(m *graph.Maintainer) (int, error) {
		e, ok := m.Store().Edge(edgeID)
		if !ok {
			return 0, fmt.Errorf("%w: %s", graph.ErrEdgeNotFound, edgeID)
		}
		lost := recordActions(e.Actions, primary) + recordActions(e.RetryActions, retry)
		return lost, m.Store().SetActions(edgeID, e.Actions, e.RetryActions)
	})
	return res, nil
}

// ranSteps returns the steps of kind that executed a command and so produced
// an outcome.
func ranSteps(res *orchestrator.RunResult, kind model.RecordCategory) []orchestrator.Step {
	var out []orchestrator.Step
	for _, st := range res.Steps {
		if st.Kind == kind && st.Command != "" {
			out = append(out, st)
		}
	}
	return out
}

// recordActions adds each outcome to the action it ran on and returns how
// many no longer match an action.
func recordActions(actions []model.Action, ran []orchestrator.Step) int {
	lost := 0
	for _, st := range ran {
		i := st.Index - 1
		if i >= len(actions) || actions[i].Command != st.Command {
			lost++
			continue
		}
		actions[i].RecordResult(st.OK)
	}
	return lost
}

// writeBack saves run histories. fn returns how many outcomes could not be
// matched to the current tree. A run that already happened is never turned
// into an error; a failed save or an unmatched outcome becomes a note.
func (s *Service) writeBack(ctx context.Context, res *orchestrator.RunResult, fn func(m *graph.Maintainer) (int, error)) {
	ctx = context.WithoutCancel(ctx)
	lost := 0
	err := s.Mutate(ctx, res.TreeID, func(m *graph.Maintainer) error {
		var err error
		lost, err = fn(m)
		return err
	})
	if err == nil {
		if lost > 0 {
			ctxlog.FromContext(ctx).Warn("Steps changed during the run, outcomes dropped", "run_id", res.RunID, "dropped", lost)
			res.Notes = append(res.Notes, fmt.Sprintf("%d outcome(s) not saved: step changed during the run", lost))
		}
		return
	}
	msg := "Failed to save run histories"
	if errors.Is(err, graph.ErrNodeNotFound) || errors.Is(err, graph.ErrEdgeNotFound) {
		msg = "Run target was removed during the run, histories dropped"
	}
	ctxlog.FromContext(ctx).Warn(msg, "run_id", res.RunID, "error", err)
	res.Notes = append(res.Notes, "histories not saved: "+err.Error())
}
