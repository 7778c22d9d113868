package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatePredicates(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
		active   bool
	}{
		{JobStateIdle, false, false},
		{JobStateRunning, false, true},
		{JobStatePaused, false, true},
		{JobStateStopped, true, false},
		{JobStateCompleted, true, false},
		{JobStateFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.active, tt.state.IsActive())
		})
	}
}

func TestNewJob(t *testing.T) {
	now := time.Now()
	job := NewJob(JobPayload{Name: "bell", Source: "h q0", Shots: 512}, now)

	assert.True(t, len(job.ID) > len("job_"))
	assert.Contains(t, job.ID, "job_")
	assert.Equal(t, JobStateRunning, job.State)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, now, job.SubmittedAt)
	require.NotNil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.Result)

	other := NewJob(JobPayload{}, now)
	assert.NotEqual(t, job.ID, other.ID)
}

func TestTerminalTransitions(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Second)

	completed := NewJob(JobPayload{Source: "h q0"}, now)
	completed.MarkCompleted(&JobResult{Shots: 100}, later)
	assert.Equal(t, JobStateCompleted, completed.State)
	assert.Equal(t, 100, completed.Progress)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.Result)

	failed := NewJob(JobPayload{Source: "h q0"}, now)
	failed.MarkFailed("backend exploded", later)
	assert.Equal(t, JobStateFailed, failed.State)
	assert.Equal(t, "backend exploded", failed.Error)
	assert.Nil(t, failed.Result)

	stopped := NewJob(JobPayload{Source: "h q0"}, now)
	stopped.MarkStopped(later)
	assert.Equal(t, JobStateStopped, stopped.State)
	assert.Nil(t, stopped.Result)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	now := time.Now()
	job := NewJob(JobPayload{Source: "h q0"}, now)
	job.MarkCompleted(&JobResult{Counts: map[string]int{"00": 50, "11": 50}, Shots: 100}, now)

	snap := job.Snapshot()
	snap.State = JobStateFailed
	snap.Result.Counts["00"] = 999
	*snap.CompletedAt = now.Add(time.Hour)

	assert.Equal(t, JobStateCompleted, job.State)
	assert.Equal(t, 50, job.Result.Counts["00"])
	assert.Equal(t, now, *job.CompletedAt)
}

func TestEventPayloadKinds(t *testing.T) {
	tests := []struct {
		payload EventPayload
		kind    EventKind
	}{
		{StatusPayload{}, EventStatus},
		{ProgressPayload{}, EventProgress},
		{MetricsPayload{}, EventMetrics},
		{LogPayload{}, EventLog},
		{ResultPayload{}, EventResult},
		{ConnectionPayload{}, EventConnection},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.payload.EventKind())

		event := NewEvent(tt.payload, time.Now())
		assert.Equal(t, tt.kind, event.Kind)
	}
}
