package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
	"github.com/ternarybob/quanta/internal/orchestrator"
)

// Service implements SchedulerService: it submits configured payloads to
// the orchestrator on cron schedules. A schedule that fires while a job
// is active is skipped, never queued.
type Service struct {
	cfg          *common.SchedulerConfig
	orchestrator interfaces.Orchestrator
	cron         *cron.Cron
	logger       arbor.ILogger
	mu           sync.Mutex
	running      bool
}

// NewService creates a new scheduler service
func NewService(cfg *common.SchedulerConfig, orch interfaces.Orchestrator, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		cfg:          cfg,
		orchestrator: orch,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start registers the configured entries and starts the cron runner
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, entry := range s.cfg.Entries {
		entry := entry
		id, err := s.cron.AddFunc(entry.Schedule, func() {
			s.submit(entry)
		})
		if err != nil {
			return fmt.Errorf("failed to register schedule %q for %s: %w", entry.Schedule, entry.Name, err)
		}

		s.logger.Info().
			Str("name", entry.Name).
			Str("schedule", entry.Schedule).
			Int("entry_id", int(id)).
			Msg("Scheduled job registered")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("entries", len(s.cfg.Entries)).Msg("Scheduler started")
	return nil
}

func (s *Service) submit(entry common.ScheduledJobConfig) {
	jobID, err := s.orchestrator.Start(models.JobPayload{
		Name:   entry.Name,
		Source: entry.Source,
		Shots:  entry.Shots,
	})
	if err != nil {
		if orchestrator.IsInvalidState(err) {
			s.logger.Debug().
				Str("name", entry.Name).
				Msg("Scheduled job skipped: a job is already active")
			return
		}
		s.logger.Warn().Err(err).Str("name", entry.Name).Msg("Scheduled job submission failed")
		return
	}

	s.logger.Info().
		Str("name", entry.Name).
		Str("job_id", jobID).
		Msg("Scheduled job submitted")
}

// Stop halts the cron runner. Safe to call when not running.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
