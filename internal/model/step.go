package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxRunHistory is the number of past outcomes kept per action or verification.
const MaxRunHistory = 10

// RunHistory holds recent pass/fail outcomes, newest first.
type RunHistory []bool

// Record returns a new history with passed prepended and the oldest
// outcome dropped once MaxRunHistory is exceeded. The receiver is not modified.
func (h RunHistory) Record(passed bool) RunHistory {
	n := len(h) + 1
	if n > MaxRunHistory {
		n = MaxRunHistory
	}
	out := make(RunHistory, n)
	out[0] = passed
	copy(out[1:], h)
	return out
}

// Trim returns the newest MaxRunHistory outcomes.
func (h RunHistory) Trim() RunHistory {
	if len(h) <= MaxRunHistory {
		return h
	}
	return append(RunHistory(nil), h[:MaxRunHistory]...)
}

// ControllerClass selects which device controller evaluates a verification.
type ControllerClass string

const (
	ControllerText  ControllerClass = "text"
	ControllerImage ControllerClass = "image"
	ControllerADB   ControllerClass = "adb"
)

// ParseControllerClass converts a flag value to a ControllerClass.
func ParseControllerClass(s string) (ControllerClass, error) {
	switch c := ControllerClass(strings.ToLower(strings.TrimSpace(s))); c {
	case ControllerText, ControllerImage, ControllerADB:
		return c, nil
	default:
		return "", fmt.Errorf("unknown controller: %q (expected text, image, or adb)", s)
	}
}

// Action is one executable step of an edge transition.
type Action struct {
	Command        string         `yaml:"command"                    json:"command"`
	Params         map[string]any `yaml:"params,omitempty"           json:"params,omitempty"`
	InputValue     string         `yaml:"input_value,omitempty"      json:"input_value,omitempty"`
	WaitMs         int            `yaml:"wait_ms,omitempty"          json:"wait_ms,omitempty"`
	LastRunResults RunHistory     `yaml:"last_run_results,omitempty" json:"last_run_results,omitempty"`
}

// Wait returns the configured pause after the action.
func (a Action) Wait() time.Duration {
	return time.Duration(a.WaitMs) * time.Millisecond
}

// RecordResult prepends an outcome to the action's bounded history.
func (a *Action) RecordResult(passed bool) {
	a.LastRunResults = a.LastRunResults.Record(passed)
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	c := a
	c.Params = cloneParams(a.Params)
	if a.LastRunResults != nil {
		c.LastRunResults = append(RunHistory(nil), a.LastRunResults...)
	}
	return c
}

// Verification is one check asserting the device is in the state a node models.
type Verification struct {
	Command        string          `yaml:"command"                    json:"command"`
	Controller     ControllerClass `yaml:"controller"                 json:"controller"`
	Params         map[string]any  `yaml:"params,omitempty"           json:"params,omitempty"`
	InputValue     string          `yaml:"input_value,omitempty"      json:"input_value,omitempty"`
	LastRunResults RunHistory      `yaml:"last_run_results,omitempty" json:"last_run_results,omitempty"`
}

// RecordResult prepends an outcome to the verification's bounded history.
func (v *Verification) RecordResult(passed bool) {
	v.LastRunResults = v.LastRunResults.Record(passed)
}

// Clone returns a deep copy of the verification.
func (v Verification) Clone() Verification {
	c := v
	c.Params = cloneParams(v.Params)
	if v.LastRunResults != nil {
		c.LastRunResults = append(RunHistory(nil), v.LastRunResults...)
	}
	return c
}

func cloneParams(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
