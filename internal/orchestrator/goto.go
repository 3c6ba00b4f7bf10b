package orchestrator

import (
	"context"
	"fmt"

	"github.com/angelstreet/navtree/internal/confidence"
	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

// MsgNoCommand is the failure message of a check with no command selected.
const MsgNoCommand = "no command selected"

// GotoRequest asks for the device to be driven to Node and the node's
// verifications to be evaluated there.
type GotoRequest struct {
	TreeID  string
	Node    model.Node
	Session Session
}

// RunGoto navigates to req.Node and runs its verifications in order.
//
// The returned error is non-nil only when the run could not start (see
// CanRun). Everything that happens once it has started is reported in the
// result: Success is true when navigation succeeded and every verification
// passed.
func (o *Orchestrator) RunGoto(ctx context.Context, req GotoRequest) (*RunResult, error) {
	if o.nav == nil || o.shots == nil || o.verifier == nil {
		return nil, ErrNoBackend
	}
	release, err := o.acquire(req.Session)
	if err != nil {
		return nil, err
	}
	defer release()

	log := ctxlog.FromContext(ctx).With("node", req.Node.Label, "target", req.Session.Target.Key())
	ctx = ctxlog.WithLogger(ctx, log)

	r := o.newRun(ctx, RunGoto, req.TreeID, req.Session.Target)
	r.result.NodeID = req.Node.ID
	r.result.NodeLabel = req.Node.Label
	r.result.Verifications = cloneVerifications(req.Node.Verifications)

	if r.cancelled(ctx) {
		return r.finish(ctx), nil
	}

	r.enter(ctx, PhaseNavigating)
	if !r.navigate(ctx, req.Node.Label) {
		r.cancelled(ctx)
		r.enter(ctx, PhaseNavFailed)
		return r.finish(ctx), nil
	}
	r.enter(ctx, PhaseNavOK)

	allPassed := true
	if len(r.result.Verifications) > 0 {
		r.enter(ctx, PhaseVerifying)
		allPassed = r.verifyAll(ctx)
	}
	r.result.Success = allPassed && !r.result.Cancelled
	return r.finish(ctx), nil
}

func (r *run) navigate(ctx context.Context, label string) bool {
	started := r.o.now()
	res, err := r.o.nav.NavigateToNode(ctx, r.result.Target, r.result.TreeID, label)
	ok := err == nil && res.Success
	msg := res.Message
	if err != nil {
		msg = err.Error()
	}
	if !ok && msg == "" {
		msg = "navigation failed"
	}
	rec := r.stepRecord(model.RecordNavigation, label, nil, started, ok, msg, nil)
	r.result.Steps = append(r.result.Steps, Step{
		Step:    len(r.result.Steps) + 1,
		Kind:    model.RecordNavigation,
		Command: label,
		OK:      ok,
		Message: msg,
		Elapsed: formatElapsed(rec.Elapsed()),
	})
	ctxlog.FromContext(ctx).Info("Navigation finished", "ok", ok, "elapsed", rec.Elapsed(), "message", msg)
	return ok
}

// verifyAll runs every verification regardless of earlier outcomes and
// reports whether all of them passed. It stops early only on cancellation.
func (r *run) verifyAll(ctx context.Context) bool {
	vs := r.result.Verifications
	allPassed := true
	for i := range vs {
		if i > 0 {
			if err := r.o.sleep(ctx, r.o.stepDelay); err != nil {
				r.cancelled(ctx)
			}
		}
		if r.cancelled(ctx) {
			return false
		}
		if !r.verify(ctx, i, &vs[i]) {
			allPassed = false
		}
	}
	return allPassed
}

func (r *run) verify(ctx context.Context, i int, v *model.Verification) bool {
	started := r.o.now()
	n := len(r.result.Verifications)
	step := Step{
		Step:    len(r.result.Steps) + 1,
		Kind:    model.RecordVerification,
		Index:   i + 1,
		Of:      n,
		Command: v.Command,
	}

	var conf *float64
	if v.Command == "" {
		step.Message = MsgNoCommand
	} else {
		res, err := r.evaluate(ctx, *v)
		step.OK = err == nil && res.Success
		step.Message = res.Message
		if err != nil {
			step.Message = err.Error()
		}
		v.RecordResult(step.OK)
		score := confidence.Compute(v.LastRunResults)
		step.Confidence = score.String()
		conf = score.Ptr()
	}

	rec := r.stepRecord(model.RecordVerification, v.Command, v.Params, started, step.OK, step.Message, conf)
	step.Elapsed = formatElapsed(rec.Elapsed())
	r.result.Steps = append(r.result.Steps, step)
	ctxlog.FromContext(ctx).Info("Verification finished",
		"index", i+1, "of", n, "command", v.Command, "ok", step.OK, "confidence", step.Confidence)
	return step.OK
}

// evaluate captures a fresh screenshot and executes one verification on it.
func (r *run) evaluate(ctx context.Context, v model.Verification) (platform.StepResult, error) {
	locator, err := r.o.shots.CaptureScreenshot(ctx, r.result.Target)
	if err != nil {
		return platform.StepResult{}, fmt.Errorf("screenshot: %w", err)
	}
	name := platform.ArtifactName(locator)
	if name == "" {
		return platform.StepResult{}, fmt.Errorf("screenshot: no artifact name in %q", locator)
	}
	return r.o.verifier.ExecuteVerification(ctx, r.result.Target, v, name)
}

func cloneVerifications(vs []model.Verification) []model.Verification {
	if vs == nil {
		return nil
	}
	out := make([]model.Verification, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
