package sinks

import (
	"time"

	"github.com/BoxResin/HttpRequester/internal/domain"
)

// Event represents the payload forwarded downstream.
type Event struct {
	TaskID      uint64    `json:"task_id"`
	PresetID    string    `json:"preset_id,omitempty"`
	Address     string    `json:"address"`
	Method      string    `json:"method"`
	Kind        string    `json:"kind"`
	StatusCode  int       `json:"status_code,omitempty"`
	Body        string    `json:"body,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// NewEvent constructs an Event for the given exchange.
func NewEvent(ex domain.Exchange) Event {
	return Event{
		TaskID:      ex.TaskID,
		PresetID:    ex.PresetID,
		Address:     ex.Address,
		Method:      ex.Method,
		Kind:        ex.Kind,
		StatusCode:  ex.StatusCode,
		Body:        ex.Body,
		Error:       ex.Error,
		StartedAt:   ex.StartedAt.UTC(),
		ElapsedMs:   ex.Elapsed.Milliseconds(),
		DeliveredAt: time.Now().UTC(),
	}
}

// attributes are the message attributes shared by queue and topic sinks.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"kind":   e.Kind,
		"method": e.Method,
	}
	if e.PresetID != "" {
		attrs["preset_id"] = e.PresetID
	}
	return attrs
}
