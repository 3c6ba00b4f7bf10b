package orchestrator

import (
	"fmt"
	"time"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/platform"
)

// RunKind distinguishes goto runs from edge runs.
type RunKind string

const (
	RunGoto RunKind = "goto"
	RunEdge RunKind = "edge"
)

// Step is the outcome of one executed step.
type Step struct {
	Step       int                  `yaml:"step"                 json:"step"`
	Kind       model.RecordCategory `yaml:"kind"                 json:"kind"`
	Index      int                  `yaml:"index,omitempty"      json:"index,omitempty"`
	Of         int                  `yaml:"of,omitempty"         json:"of,omitempty"`
	Command    string               `yaml:"command"              json:"command"`
	OK         bool                 `yaml:"ok"                   json:"ok"`
	Message    string               `yaml:"message,omitempty"    json:"message,omitempty"`
	Elapsed    string               `yaml:"elapsed"              json:"elapsed"`
	Confidence string               `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// RunResult is the report of one run. Verifications, Actions and
// RetryActions carry the updated run histories the caller writes back.
type RunResult struct {
	RunID         string                  `yaml:"run_id"                  json:"run_id"`
	Kind          RunKind                 `yaml:"kind"                    json:"kind"`
	TreeID        string                  `yaml:"tree_id"                 json:"tree_id"`
	NodeID        string                  `yaml:"node_id,omitempty"       json:"node_id,omitempty"`
	NodeLabel     string                  `yaml:"node_label,omitempty"    json:"node_label,omitempty"`
	EdgeID        string                  `yaml:"edge_id,omitempty"       json:"edge_id,omitempty"`
	Target        platform.Target         `yaml:"target"                  json:"target"`
	Success       bool                    `yaml:"success"                 json:"success"`
	Cancelled     bool                    `yaml:"cancelled,omitempty"     json:"cancelled,omitempty"`
	Phase         Phase                   `yaml:"phase"                   json:"phase"`
	Trace         []Phase                 `yaml:"trace"                   json:"trace"`
	Steps         []Step                  `yaml:"steps"                   json:"steps"`
	Records       []model.ExecutionRecord `yaml:"-"                       json:"-"`
	Verifications []model.Verification    `yaml:"verifications,omitempty" json:"verifications,omitempty"`
	Actions       []model.Action          `yaml:"actions,omitempty"       json:"actions,omitempty"`
	RetryActions  []model.Action          `yaml:"retry_actions,omitempty" json:"retry_actions,omitempty"`
	Notes         []string                `yaml:"notes,omitempty"         json:"notes,omitempty"`
}

// Lines renders the run as a line-by-line log ending in PASS or FAIL.
func (r *RunResult) Lines() []string {
	lines := make([]string, 0, len(r.Steps)+len(r.Notes)+1)
	for _, s := range r.Steps {
		lines = append(lines, s.line())
	}
	for _, n := range r.Notes {
		lines = append(lines, "note: "+n)
	}
	verdict := "FAIL"
	if r.Success {
		verdict = "PASS"
	}
	return append(lines, "RESULT: "+verdict)
}

func (s Step) line() string {
	var head string
	switch s.Kind {
	case model.RecordNavigation:
		head = fmt.Sprintf("navigation to %q", s.Command)
	case model.RecordRetryAction:
		head = fmt.Sprintf("retry action %d/%d %s", s.Index, s.Of, s.Command)
	default:
		head = fmt.Sprintf("%s %d/%d %s", s.Kind, s.Index, s.Of, s.Command)
	}
	status := "PASS"
	if !s.OK {
		status = "FAIL"
	}
	if s.Kind == model.RecordNavigation {
		status = "OK"
		if !s.OK {
			status = "FAILED"
		}
	}
	line := fmt.Sprintf("%s: %s", head, status)
	if !s.OK && s.Message != "" {
		line += ": " + s.Message
	}
	if s.Confidence != "" {
		line += fmt.Sprintf(" (confidence %s, %s)", s.Confidence, s.Elapsed)
	} else {
		line += fmt.Sprintf(" (%s)", s.Elapsed)
	}
	return line
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
