// Package orchestrator drives a device through goto-and-verify runs and edge
// action runs, one step at a time.
//
// A goto run navigates to a node, then evaluates each of the node's
// verifications against a freshly captured screenshot. An edge run executes
// the edge's actions and falls back to its retry actions when a primary
// action fails. Both record one ExecutionRecord per step, update the bounded
// run history of every executed check, and flush the records to the audit
// recorder as a single batch when the run ends. Collaborator errors become
// failed steps; they never escape as Go errors.
//
// At most one run is in flight per device. A second run for the same device
// fails fast with ErrRunInProgress.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

var (
	ErrRunInProgress   = errors.New("a run is already in progress for this device")
	ErrControlInactive = errors.New("device control is not active")
	ErrNoHost          = errors.New("no host selected")
	ErrNoBackend       = errors.New("device backend is missing a collaborator")
)

// DefaultStepDelay is the pause between consecutive verifications.
const DefaultStepDelay = time.Second

// Phase is the state of a run.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseNavigating Phase = "NAVIGATING"
	PhaseNavFailed  Phase = "NAV_FAILED"
	PhaseNavOK      Phase = "NAV_OK"
	PhaseVerifying  Phase = "VERIFYING"
	PhaseExecuting  Phase = "EXECUTING"
	PhaseRetrying   Phase = "RETRYING"
	PhaseDone       Phase = "DONE"
)

// Options tune an Orchestrator. Zero values select the defaults.
type Options struct {
	StepDelay time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs goto and edge runs against one device backend.
type Orchestrator struct {
	nav      platform.Navigator
	shots    platform.Screenshotter
	verifier platform.VerificationExecutor
	actions  platform.ActionExecutor
	audit    platform.AuditRecorder

	stepDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	guards  map[string]*semaphore.Weighted
	running map[string]bool
}

// New returns an orchestrator using the collaborators of p. verifier
// overrides p.Verifier when non-nil. audit may be nil, in which case records
// are only returned.
func New(p *platform.Provider, verifier platform.VerificationExecutor, audit platform.AuditRecorder, opts Options) *Orchestrator {
	o := &Orchestrator{
		audit:     audit,
		verifier:  verifier,
		stepDelay: opts.StepDelay,
		sleep:     opts.Sleep,
		now:       opts.Now,
		newID:     opts.NewID,
		guards:    make(map[string]*semaphore.Weighted),
		running:   make(map[string]bool),
	}
	if p != nil {
		o.nav = p.Navigator
		o.shots = p.Screenshotter
		o.actions = p.Actions
		if o.verifier == nil {
			o.verifier = p.Verifier
		}
	}
	if o.stepDelay < 0 {
		o.stepDelay = 0
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

// Session is the caller's view of the device a run targets.
type Session struct {
	Target        platform.Target
	ControlActive bool
}

// CanRun reports why a run for s could not start, or nil when it can.
func (o *Orchestrator) CanRun(s Session) error {
	if !s.ControlActive {
		return ErrControlInactive
	}
	if s.Target.Host == "" {
		return ErrNoHost
	}
	if o.Running(s.Target) {
		return ErrRunInProgress
	}
	return nil
}

// Running reports whether a run holds the device of t.
func (o *Orchestrator) Running(t platform.Target) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[t.Key()]
}

// acquire takes the single-flight guard for s and returns its release func.
func (o *Orchestrator) acquire(s Session) (func(), error) {
	if !s.ControlActive {
		return nil, ErrControlInactive
	}
	if s.Target.Host == "" {
		return nil, ErrNoHost
	}
	key := s.Target.Key()
	g := o.guard(s.Target)
	if !g.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, s.Target)
	}
	o.setRunning(key, true)
	return func() {
		o.setRunning(key, false)
		g.Release(1)
	}, nil
}

func (o *Orchestrator) setRunning(key string, on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if on {
		o.running[key] = true
	} else {
		delete(o.running, key)
	}
}

func (o *Orchestrator) guard(t platform.Target) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.guards[t.Key()]
	if !ok {
		g = semaphore.NewWeighted(1)
		o.guards[t.Key()] = g
	}
	return g
}

// run is the mutable state of one invocation.
type run struct {
	o      *Orchestrator
	result *RunResult
}

func (o *Orchestrator) newRun(ctx context.Context, kind RunKind, treeID string, target platform.Target) *run {
	r := &run{o: o, result: &RunResult{
		RunID:  o.newID(),
		Kind:   kind,
		TreeID: treeID,
		Target: target,
		Phase:  PhaseIdle,
		Trace:  []Phase{PhaseIdle},
	}}
	ctxlog.FromContext(ctx).Debug("Run started", "run_id", r.result.RunID, "kind", kind, "target", target.Key())
	return r
}

func (r *run) enter(ctx context.Context, p Phase) {
	r.result.Phase = p
	r.result.Trace = append(r.result.Trace, p)
	ctxlog.FromContext(ctx).Debug("Run phase", "run_id", r.result.RunID, "phase", p)
}

// stepRecord builds the audit record of one finished step.
func (r *run) stepRecord(category model.RecordCategory, command string, params map[string]any, started time.Time, ok bool, msg string, conf *float64) model.ExecutionRecord {
	rec := model.ExecutionRecord{
		ID:         r.o.newID(),
		RunID:      r.result.RunID,
		TreeID:     r.result.TreeID,
		NodeID:     r.result.NodeID,
		EdgeID:     r.result.EdgeID,
		DeviceID:   r.result.Target.DeviceID,
		Category:   category,
		Command:    command,
		Params:     params,
		Success:    ok,
		StartedAt:  started,
		ElapsedMs:  r.o.now().Sub(started).Milliseconds(),
		Message:    msg,
		Confidence: conf,
	}
	r.result.Records = append(r.result.Records, rec)
	return rec
}

// cancelled marks the run as cancelled if ctx is done.
func (r *run) cancelled(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	if !r.result.Cancelled {
		r.result.Cancelled = true
		r.result.Notes = append(r.result.Notes, fmt.Sprintf("cancelled: %v", context.Cause(ctx)))
	}
	return true
}

// finish flushes the audit batch and moves the run to DONE. The flush uses a
// context detached from cancellation so a cancelled run is still recorded.
func (r *run) finish(ctx context.Context) *RunResult {
	log := ctxlog.FromContext(ctx)
	if r.o.audit != nil && len(r.result.Records) > 0 {
		if err := r.o.audit.RecordExecutionBatch(context.WithoutCancel(ctx), r.result.Records); err != nil {
			log.Warn("Failed to record executions", "run_id", r.result.RunID, "records", len(r.result.Records), "error", err)
			r.result.Notes = append(r.result.Notes, fmt.Sprintf("audit: failed to record %d executions: %v", len(r.result.Records), err))
		}
	}
	r.enter(ctx, PhaseDone)
	log.Info("Run finished", "run_id", r.result.RunID, "kind", r.result.Kind, "success", r.result.Success, "steps", len(r.result.Steps))
	return r.result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
