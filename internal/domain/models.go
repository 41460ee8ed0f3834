package domain

import "time"

// Exchange is one delivered request/outcome pair.
type Exchange struct {
	TaskID     uint64        `json:"task_id"`
	PresetID   string        `json:"preset_id,omitempty"`
	Address    string        `json:"address"`
	Method     string        `json:"method"`
	Kind       string        `json:"kind"`
	StatusCode int           `json:"status_code,omitempty"`
	Body       string        `json:"body,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
}
