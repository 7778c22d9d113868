// Package orchestrator owns the job lifecycle state machine. A single
// job may be Running or Paused at a time; control operations are fast and
// never block on the background execution task, which checks its pause
// and cancel signals on every progress tick.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
)

// Service implements the Orchestrator interface
type Service struct {
	cfg     *common.OrchestratorConfig
	bus     interfaces.EventService
	backend Backend
	clock   Clock
	storage interfaces.JobStorage // optional, nil disables persistence
	logger  arbor.ILogger

	// mu guards job/jobs/byID/generation. emitMu serializes every event
	// publish for the active job's lifecycle: whoever holds it decides the
	// next event, so a stop observed before a completion publish wins and
	// nothing is emitted after a terminal status event. Control operations
	// must not be called from inside event handlers.
	mu     sync.Mutex
	emitMu sync.Mutex

	job        *models.Job
	jobs       []*models.Job
	byID       map[string]*models.Job
	generation uint64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewService creates an orchestrator with injected dependencies.
// storage may be nil when persistence is not wanted (tests). With
// storage, job history from earlier runs is loaded so the query surface
// survives restarts.
func NewService(cfg *common.OrchestratorConfig, bus interfaces.EventService, backend Backend, clock Clock, storage interfaces.JobStorage, logger arbor.ILogger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	s := &Service{
		cfg:     cfg,
		bus:     bus,
		backend: backend,
		clock:   clock,
		storage: storage,
		logger:  logger,
		byID:    make(map[string]*models.Job),
	}
	s.restore()
	return s
}

// restore loads persisted jobs into the in-memory history. A job that was
// still active when the previous process died has no background task
// anymore; it is marked Failed so the lifecycle stays consistent. The
// orchestrator itself boots Idle regardless of history.
func (s *Service) restore() {
	if s.storage == nil {
		return
	}

	jobs, err := s.storage.ListJobs(context.Background(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted jobs")
		return
	}

	for _, job := range jobs {
		if job.State.IsActive() {
			job.MarkFailed("interrupted by restart", s.clock.Now())
			s.persist(job)
		}
		s.jobs = append(s.jobs, job)
		s.byID[job.ID] = job
	}

	if len(jobs) > 0 {
		s.logger.Info().Int("jobs", len(jobs)).Msg("Job history restored")
	}
}

// Start submits a new job and begins asynchronous execution. It fails
// with ErrInvalidState while a job is Running or Paused; a job in any
// terminal state is superseded by the new one.
func (s *Service) Start(payload models.JobPayload) (string, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.job != nil && s.job.State.IsActive() {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: job %s is %s", ErrInvalidState, s.job.ID, s.job.State)
	}

	job := models.NewJob(payload, s.clock.Now())
	s.job = job
	s.jobs = append(s.jobs, job)
	s.byID[job.ID] = job
	s.generation++
	gen := s.generation

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	snapshot := job.Snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.StatusPayload{JobID: job.ID, State: models.JobStateRunning})

	s.logger.Info().
		Str("job_id", job.ID).
		Str("name", payload.Name).
		Msg("Job started")

	s.wg.Add(1)
	go s.run(ctx, gen, job.ID)

	return job.ID, nil
}

// Pause suspends progress emission, preserving progress already made
func (s *Service) Pause() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.job == nil || s.job.State != models.JobStateRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: pause requires a running job", ErrInvalidState)
	}
	s.job.State = models.JobStatePaused
	jobID := s.job.ID
	snapshot := s.job.Snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.StatusPayload{JobID: jobID, State: models.JobStatePaused})

	s.logger.Info().Str("job_id", jobID).Msg("Job paused")
	return nil
}

// Resume continues progress emission from the preserved point
func (s *Service) Resume() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.job == nil || s.job.State != models.JobStatePaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: resume requires a paused job", ErrInvalidState)
	}
	s.job.State = models.JobStateRunning
	jobID := s.job.ID
	snapshot := s.job.Snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.StatusPayload{JobID: jobID, State: models.JobStateRunning})

	s.logger.Info().Str("job_id", jobID).Msg("Job resumed")
	return nil
}

// Stop cancels execution from Running or Paused. status(stopped) is the
// last event for the job; the background task emits nothing afterwards.
func (s *Service) Stop() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.job == nil || !s.job.State.IsActive() {
		s.mu.Unlock()
		return fmt.Errorf("%w: stop requires a running or paused job", ErrInvalidState)
	}
	s.job.MarkStopped(s.clock.Now())
	jobID := s.job.ID
	snapshot := s.job.Snapshot()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.StatusPayload{JobID: jobID, State: models.JobStateStopped})

	s.logger.Info().Str("job_id", jobID).Msg("Job stopped")
	return nil
}

// State returns the current lifecycle state (Idle before any submission)
func (s *Service) State() models.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return models.JobStateIdle
	}
	return s.job.State
}

// GetJob returns a snapshot of the job with the given ID
func (s *Service) GetJob(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return job.Snapshot(), true
}

// ListJobs returns snapshots of all jobs in submission order
func (s *Service) ListJobs() []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Job, len(s.jobs))
	for i, job := range s.jobs {
		out[i] = job.Snapshot()
	}
	return out
}

// GetLatestJob returns a snapshot of the most recently submitted job
func (s *Service) GetLatestJob() *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil
	}
	return s.jobs[len(s.jobs)-1].Snapshot()
}

// Close stops any active job and waits for the background task to exit
func (s *Service) Close() error {
	if err := s.Stop(); err != nil && !IsInvalidState(err) {
		return err
	}
	s.wg.Wait()
	return nil
}

// IsInvalidState reports whether err is (or wraps) ErrInvalidState
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// run is the background execution task. It owns progress, metrics, log,
// result and completion events for one job generation; ownership is
// re-validated under emitMu before every publish so a concurrent stop or
// a superseding start silences it.
func (s *Service) run(ctx context.Context, gen uint64, jobID string) {
	defer s.wg.Done()

	started := s.clock.Now()

	plan, err := s.backend.Prepare(s.payloadFor(jobID))
	if err != nil {
		s.fail(gen, jobID, err)
		return
	}

	step := s.cfg.ProgressStep
	if step <= 0 || step > 100 {
		step = 5
	}
	interval := s.cfg.TickIntervalDuration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done, alive := s.tick(gen, jobID, step, plan, interval)
		if !alive {
			return
		}
		if done {
			s.complete(gen, jobID, plan, s.clock.Now().Sub(started))
			return
		}
	}
}

// tick advances progress by one step and emits progress/metrics/log.
// Returns done=true at 100%, alive=false when the job is no longer ours.
func (s *Service) tick(gen uint64, jobID string, step int, plan *ExecutionPlan, interval time.Duration) (done, alive bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.job == nil || s.job.ID != jobID {
		s.mu.Unlock()
		return false, false
	}
	if s.job.State == models.JobStatePaused {
		// Suspended: preserve progress, emit nothing, keep ticking.
		s.mu.Unlock()
		return false, true
	}
	if s.job.State != models.JobStateRunning {
		s.mu.Unlock()
		return false, false
	}

	progress := s.job.Progress + step
	if progress > 100 {
		progress = 100
	}
	s.job.Progress = progress
	s.mu.Unlock()

	s.publish(models.ProgressPayload{JobID: jobID, Percent: progress})
	s.publish(models.MetricsPayload{JobID: jobID, Metrics: s.sampleMetrics(progress, step, plan, interval)})
	s.publish(models.LogPayload{
		JobID:   jobID,
		Level:   "info",
		Message: fmt.Sprintf("executing circuit: %d%% (depth %d, %d shots)", progress, plan.Depth, plan.Shots),
	})

	return progress >= 100, true
}

// complete publishes result then status(completed). Stop wins if it was
// observed first: the ownership check fails and nothing is emitted.
func (s *Service) complete(gen uint64, jobID string, plan *ExecutionPlan, elapsed time.Duration) {
	result, err := s.backend.Finalize(plan, elapsed)
	if err != nil {
		s.fail(gen, jobID, err)
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.job == nil || s.job.ID != jobID || s.job.State != models.JobStateRunning {
		s.mu.Unlock()
		return
	}
	s.job.MarkCompleted(result, s.clock.Now())
	snapshot := s.job.Snapshot()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.ResultPayload{JobID: jobID, Result: snapshot.Result})
	s.publish(models.StatusPayload{JobID: jobID, State: models.JobStateCompleted})

	s.logger.Info().
		Str("job_id", jobID).
		Float64("fidelity", result.Fidelity).
		Int("depth", result.Depth).
		Msg("Job completed")
}

// fail transitions an active job to Failed with the error detail
func (s *Service) fail(gen uint64, jobID string, execErr error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.job == nil || s.job.ID != jobID || !s.job.State.IsActive() {
		s.mu.Unlock()
		return
	}
	s.job.MarkFailed(execErr.Error(), s.clock.Now())
	snapshot := s.job.Snapshot()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.persist(snapshot)
	s.publish(models.StatusPayload{JobID: jobID, State: models.JobStateFailed, Error: execErr.Error()})

	s.logger.Warn().Err(execErr).Str("job_id", jobID).Msg("Job failed")
}

func (s *Service) payloadFor(jobID string) models.JobPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.byID[jobID]; ok {
		return job.Payload
	}
	return models.JobPayload{}
}

// sampleMetrics takes the effective step, not the configured one, so
// throughput stays truthful when the config value was clamped.
func (s *Service) sampleMetrics(progress, step int, plan *ExecutionPlan, interval time.Duration) models.JobMetrics {
	throughput := 0.0
	if interval > 0 {
		throughput = float64(plan.Shots) / 100.0 * float64(step) / interval.Seconds()
	}
	return models.JobMetrics{
		CPUPercent: 35 + float64(progress%10),
		MemoryMB:   64 + float64(plan.Qubits)*8,
		Throughput: throughput,
	}
}

func (s *Service) publish(payload models.EventPayload) {
	s.bus.Publish(context.Background(), models.NewEvent(payload, s.clock.Now()))
}

func (s *Service) persist(job *models.Job) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SaveJob(context.Background(), job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job")
	}
}
