// -----------------------------------------------------------------------
// Job - Unit of orchestrated work with a bounded lifecycle
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStateIdle      JobState = "idle"
	JobStateRunning   JobState = "running"
	JobStatePaused    JobState = "paused"
	JobStateStopped   JobState = "stopped"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// IsTerminal returns true for states with no further transitions except a new Start
func (s JobState) IsTerminal() bool {
	return s == JobStateStopped || s == JobStateCompleted || s == JobStateFailed
}

// IsActive returns true while a job holds the orchestrator (Running or Paused)
func (s JobState) IsActive() bool {
	return s == JobStateRunning || s == JobStatePaused
}

// JobPayload is the input submitted with a job. Source holds the circuit
// description (QASM-style text); Shots is the number of simulated
// measurement repetitions.
type JobPayload struct {
	Name   string `json:"name" toml:"name"`
	Source string `json:"source" toml:"source" validate:"required"`
	Shots  int    `json:"shots" toml:"shots" validate:"gte=0,lte=65536"`
}

// JobResult holds the output of a completed job. Present only in the
// Completed state.
type JobResult struct {
	Counts   map[string]int `json:"counts"`
	Fidelity float64        `json:"fidelity"`
	Depth    int            `json:"depth"`
	Shots    int            `json:"shots"`
	Duration float64        `json:"duration_seconds"`
}

// JobMetrics is a point-in-time resource sample emitted during execution
type JobMetrics struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
	Throughput float64 `json:"throughput"` // shots per second
}

// Job is the orchestrator's job record. The orchestrator owns and mutates
// it exclusively; everything published on the event bus is a snapshot.
type Job struct {
	ID          string     `json:"id" badgerhold:"key"`
	Payload     JobPayload `json:"payload"`
	State       JobState   `json:"state"`
	Progress    int        `json:"progress"` // 0-100
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
}

// NewJob creates a new job in the Running state with a fresh ID
func NewJob(payload JobPayload, now time.Time) *Job {
	return &Job{
		ID:          "job_" + uuid.New().String(),
		Payload:     payload,
		State:       JobStateRunning,
		Progress:    0,
		SubmittedAt: now,
		StartedAt:   &now,
	}
}

// MarkCompleted stamps the terminal Completed state with its result
func (j *Job) MarkCompleted(result *JobResult, now time.Time) {
	j.State = JobStateCompleted
	j.Progress = 100
	j.Result = result
	j.CompletedAt = &now
}

// MarkFailed stamps the terminal Failed state with the error detail
func (j *Job) MarkFailed(errMsg string, now time.Time) {
	j.State = JobStateFailed
	j.Error = errMsg
	j.CompletedAt = &now
}

// MarkStopped stamps the terminal Stopped state. No result is produced.
func (j *Job) MarkStopped(now time.Time) {
	j.State = JobStateStopped
	j.CompletedAt = &now
}

// Snapshot returns a deep copy safe to hand to subscribers
func (j *Job) Snapshot() *Job {
	clone := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.Counts = make(map[string]int, len(j.Result.Counts))
		for k, v := range j.Result.Counts {
			r.Counts[k] = v
		}
		clone.Result = &r
	}
	return &clone
}
