// Package notify delivers user-facing pipeline events to pluggable sinks.
package notify

import (
	"context"
	"time"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventPhase     EventKind = "phase"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one notification. OriginContext routes it back to whichever
// surface requested the job.
type Event struct {
	Kind          EventKind `json:"kind"`
	JobID         string    `json:"job_id"`
	OriginContext string    `json:"origin_context,omitempty"`
	Status        string    `json:"status"`
	Badge         string    `json:"badge,omitempty"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	FitLevel      string    `json:"fit_level,omitempty"`
	TrimAttempts  int       `json:"trim_attempts,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Sink describes a destination capable of consuming events.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, ev Event) error

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, ev Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, ev)
}
