package interfaces

import "github.com/ternarybob/quanta/internal/models"

// Orchestrator drives jobs through their lifecycle and publishes events.
// Control operations are synchronous and fast; they mutate state and
// signal the background task, never block on it.
type Orchestrator interface {
	// Start submits a new job. Returns ErrInvalidState while a job is
	// Running or Paused.
	Start(payload models.JobPayload) (string, error)

	// Pause suspends progress emission. Valid only while Running.
	Pause() error

	// Resume continues from the preserved progress point. Valid only while Paused.
	Resume() error

	// Stop cancels execution. Valid from Running or Paused.
	Stop() error

	// State returns the current lifecycle state.
	State() models.JobState

	// GetJob returns a snapshot of the job with the given ID.
	GetJob(id string) (*models.Job, bool)

	// ListJobs returns snapshots of all jobs in submission order.
	ListJobs() []*models.Job

	// GetLatestJob returns a snapshot of the most recently submitted job.
	GetLatestJob() *models.Job

	// Close stops any active job and releases the background task.
	Close() error
}
