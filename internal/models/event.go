// -----------------------------------------------------------------------
// Event - Immutable notifications published on the event bus
// -----------------------------------------------------------------------

package models

import "time"

// EventKind is the closed set of event categories. Each kind has exactly
// one payload type; constructors below are the only way events are built,
// so a payload can never be published under the wrong kind.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventProgress   EventKind = "progress"
	EventMetrics    EventKind = "metrics"
	EventLog        EventKind = "log"
	EventResult     EventKind = "result"
	EventConnection EventKind = "connection" // reserved for transport status
)

// EventPayload is implemented by exactly one struct per EventKind
type EventPayload interface {
	EventKind() EventKind
}

// Event is an immutable notification. Subscribers never mutate events.
type Event struct {
	Kind      EventKind    `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   EventPayload `json:"payload"`
}

// StatusPayload carries a job lifecycle transition
type StatusPayload struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`
	Error string   `json:"error,omitempty"`
}

func (StatusPayload) EventKind() EventKind { return EventStatus }

// ProgressPayload carries a 0-100 completion percentage
type ProgressPayload struct {
	JobID   string `json:"job_id"`
	Percent int    `json:"percent"`
}

func (ProgressPayload) EventKind() EventKind { return EventProgress }

// MetricsPayload carries a resource sample taken during execution
type MetricsPayload struct {
	JobID   string     `json:"job_id"`
	Metrics JobMetrics `json:"metrics"`
}

func (MetricsPayload) EventKind() EventKind { return EventMetrics }

// LogPayload carries a single execution log line
type LogPayload struct {
	JobID   string `json:"job_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (LogPayload) EventKind() EventKind { return EventLog }

// ResultPayload carries the completed job's result
type ResultPayload struct {
	JobID  string     `json:"job_id"`
	Result *JobResult `json:"result"`
}

func (ResultPayload) EventKind() EventKind { return EventResult }

// ConnectionPayload carries transport connectivity changes
type ConnectionPayload struct {
	Status  ConnStatus `json:"status"`
	Attempt int        `json:"attempt"`
	Error   string     `json:"error,omitempty"`
}

func (ConnectionPayload) EventKind() EventKind { return EventConnection }

// NewEvent stamps a payload with its kind and emission time
func NewEvent(payload EventPayload, now time.Time) Event {
	return Event{
		Kind:      payload.EventKind(),
		Timestamp: now,
		Payload:   payload,
	}
}
