package interfaces

import (
	"context"

	"github.com/ternarybob/quanta/internal/models"
)

// JobListOptions filters and pages ListJobs results
type JobListOptions struct {
	State  models.JobState
	Limit  int
	Offset int
}

// JobStorage persists job records across restarts
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	GetLatestJob(ctx context.Context) (*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	CountJobs(ctx context.Context) (int, error)
}

// StorageManager owns the database connection and storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	Close() error
}
