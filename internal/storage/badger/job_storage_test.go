package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
)

func newTestStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()

	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "quanta-test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return manager.JobStorage()
}

func storedJob(id string, state models.JobState, submitted time.Time) *models.Job {
	return &models.Job{
		ID:          id,
		Payload:     models.JobPayload{Name: "stored", Source: "h q0", Shots: 128},
		State:       state,
		Progress:    50,
		SubmittedAt: submitted,
	}
}

func TestSaveAndGetJob(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	job := storedJob("job_1", models.JobStateRunning, time.Now())
	require.NoError(t, store.SaveJob(ctx, job))

	loaded, err := store.GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, job.State, loaded.State)
	assert.Equal(t, job.Payload.Shots, loaded.Payload.Shots)
}

func TestSaveJobValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	assert.Error(t, store.SaveJob(ctx, nil))
	assert.Error(t, store.SaveJob(ctx, &models.Job{}))
}

func TestSaveJobUpserts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	job := storedJob("job_1", models.JobStateRunning, time.Now())
	require.NoError(t, store.SaveJob(ctx, job))

	job.State = models.JobStateCompleted
	job.Progress = 100
	require.NoError(t, store.SaveJob(ctx, job))

	loaded, err := store.GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, loaded.State)
	assert.Equal(t, 100, loaded.Progress)

	count, err := store.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetJob(context.Background(), "job_missing")
	assert.Error(t, err)
}

func TestListJobsOrderAndFilters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	states := []models.JobState{
		models.JobStateCompleted,
		models.JobStateFailed,
		models.JobStateCompleted,
		models.JobStateRunning,
	}
	for i, state := range states {
		job := storedJob(fmt.Sprintf("job_%d", i), state, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveJob(ctx, job))
	}

	jobs, err := store.ListJobs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	for i := 1; i < len(jobs); i++ {
		assert.True(t, !jobs[i].SubmittedAt.Before(jobs[i-1].SubmittedAt), "jobs should be in submission order")
	}

	completed, err := store.ListJobs(ctx, &interfaces.JobListOptions{State: models.JobStateCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	paged, err := store.ListJobs(ctx, &interfaces.JobListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
	assert.Equal(t, "job_1", paged[0].ID)
}

func TestGetLatestJob(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	latest, err := store.GetLatestJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store has no latest job")

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveJob(ctx, storedJob("job_old", models.JobStateCompleted, base)))
	require.NoError(t, store.SaveJob(ctx, storedJob("job_new", models.JobStateRunning, base.Add(time.Minute))))

	latest, err = store.GetLatestJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "job_new", latest.ID)
}

func TestDeleteJob(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, storedJob("job_1", models.JobStateCompleted, time.Now())))
	require.NoError(t, store.DeleteJob(ctx, "job_1"))

	_, err := store.GetJob(ctx, "job_1")
	assert.Error(t, err)

	// Deleting a missing job is not an error.
	assert.NoError(t, store.DeleteJob(ctx, "job_missing"))
}

func TestJobResultSurvivesRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	now := time.Now()
	job := storedJob("job_1", models.JobStateCompleted, now)
	job.CompletedAt = &now
	job.Result = &models.JobResult{
		Counts:   map[string]int{"00": 450, "11": 460, "01": 45, "10": 45},
		Fidelity: 0.97,
		Depth:    4,
		Shots:    1000,
		Duration: 1.25,
	}
	require.NoError(t, store.SaveJob(ctx, job))

	loaded, err := store.GetJob(ctx, "job_1")
	require.NoError(t, err)
	require.NotNil(t, loaded.Result)
	assert.Equal(t, job.Result.Counts, loaded.Result.Counts)
	assert.Equal(t, job.Result.Fidelity, loaded.Result.Fidelity)
	require.NotNil(t, loaded.CompletedAt)
}

func TestResetOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quanta-reset")
	logger := arbor.NewLogger()

	manager, err := NewManager(logger, &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, manager.JobStorage().SaveJob(context.Background(),
		storedJob("job_1", models.JobStateCompleted, time.Now())))
	require.NoError(t, manager.Close())

	manager, err = NewManager(logger, &common.BadgerConfig{Path: path, ResetOnStartup: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	count, err := manager.JobStorage().CountJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
