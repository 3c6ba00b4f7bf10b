package model

import "time"

// RecordCategory identifies which kind of step produced an ExecutionRecord.
type RecordCategory string

const (
	RecordNavigation   RecordCategory = "navigation"
	RecordVerification RecordCategory = "verification"
	RecordAction       RecordCategory = "action"
	RecordRetryAction  RecordCategory = "retry_action"
)

// ExecutionRecord is the audit entry for one step of a run.
type ExecutionRecord struct {
	ID         string         `yaml:"id"                   json:"id"`
	RunID      string         `yaml:"run_id"               json:"run_id"`
	TreeID     string         `yaml:"tree_id,omitempty"    json:"tree_id,omitempty"`
	NodeID     string         `yaml:"node_id,omitempty"    json:"node_id,omitempty"`
	EdgeID     string         `yaml:"edge_id,omitempty"    json:"edge_id,omitempty"`
	DeviceID   string         `yaml:"device_id,omitempty"  json:"device_id,omitempty"`
	Category   RecordCategory `yaml:"category"             json:"category"`
	Command    string         `yaml:"command"              json:"command"`
	Params     map[string]any `yaml:"params,omitempty"     json:"params,omitempty"`
	Success    bool           `yaml:"success"              json:"success"`
	StartedAt  time.Time      `yaml:"started_at"           json:"started_at"`
	ElapsedMs  int64          `yaml:"elapsed_ms"           json:"elapsed_ms"`
	Message    string         `yaml:"message,omitempty"    json:"message,omitempty"`
	Confidence *float64       `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Elapsed returns the step duration.
func (r ExecutionRecord) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMs) * time.Millisecond
}
