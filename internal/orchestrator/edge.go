package orchestrator

import (
	"context"

	"github.com/angelstreet/navtree/internal/confidence"
	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/model"
)

// EdgeRequest asks for an edge's actions to be executed on a device.
type EdgeRequest struct {
	TreeID  string
	Edge    model.Edge
	Session Session
}

// RunEdge executes the edge's actions in order, stopping at the first
// failure. When a primary action fails and the edge has retry actions, those
// run with the same semantics and decide the outcome. The error contract is
// that of RunGoto.
func (o *Orchestrator) RunEdge(ctx context.Context, req EdgeRequest) (*RunResult, error) {
	if o.actions == nil {
		return nil, ErrNoBackend
	}
	release, err := o.acquire(req.Session)
	if err != nil {
		return nil, err
	}
	defer release()

	log := ctxlog.FromContext(ctx).With("edge", req.Edge.ID, "target", req.Session.Target.Key())
	ctx = ctxlog.WithLogger(ctx, log)

	edge := req.Edge.Clone()
	r := o.newRun(ctx, RunEdge, req.TreeID, req.Session.Target)
	r.result.EdgeID = edge.ID
	r.result.Actions = edge.Actions
	r.result.RetryActions = edge.RetryActions

	if len(edge.Actions) == 0 {
		r.result.Notes = append(r.result.Notes, "edge has no actions")
		return r.finish(ctx), nil
	}
	if r.cancelled(ctx) {
		return r.finish(ctx), nil
	}

	r.enter(ctx, PhaseExecuting)
	ok := r.executeAll(ctx, model.RecordAction, edge.Actions)
	if !ok && len(edge.RetryActions) > 0 && !r.result.Cancelled {
		log.Info("Primary actions failed, running retry actions", "retry_actions", len(edge.RetryActions))
		r.result.Notes = append(r.result.Notes, "primary actions failed, running retry actions")
		r.enter(ctx, PhaseRetrying)
		ok = r.executeAll(ctx, model.RecordRetryAction, edge.RetryActions)
	}
	r.result.Success = ok && !r.result.Cancelled
	return r.finish(ctx), nil
}

// executeAll runs actions in order and stops at the first failure.
func (r *run) executeAll(ctx context.Context, kind model.RecordCategory, actions []model.Action) bool {
	for i := range actions {
		if r.cancelled(ctx) {
			return false
		}
		if !r.execute(ctx, kind, i, len(actions), &actions[i]) {
			return false
		}
		if err := r.o.sleep(ctx, actions[i].Wait()); err != nil {
			r.cancelled(ctx)
			return false
		}
	}
	return true
}

func (r *run) execute(ctx context.Context, kind model.RecordCategory, i, n int, a *model.Action) bool {
	started := r.o.now()
	step := Step{
		Step:    len(r.result.Steps) + 1,
		Kind:    kind,
		Index:   i + 1,
		Of:      n,
		Command: a.Command,
	}

	var conf *float64
	if a.Command == "" {
		step.Message = MsgNoCommand
	} else {
		res, err := r.o.actions.ExecuteAction(ctx, r.result.Target, *a)
		step.OK = err == nil && res.Success
		step.Message = res.Message
		if err != nil {
			step.Message = err.Error()
		}
		a.RecordResult(step.OK)
		score := confidence.Compute(a.LastRunResults)
		step.Confidence = score.String()
		conf = score.Ptr()
	}

	rec := r.stepRecord(kind, a.Command, a.Params, started, step.OK, step.Message, conf)
	step.Elapsed = formatElapsed(rec.Elapsed())
	r.result.Steps = append(r.result.Steps, step)
	ctxlog.FromContext(ctx).Info("Action finished",
		"kind", kind, "index", i+1, "of", n, "command", a.Command, "ok", step.OK, "confidence", step.Confidence)
	return step.OK
}
