package interfaces

// SchedulerService submits configured jobs on cron schedules
type SchedulerService interface {
	// Start registers the configured entries and starts the cron runner.
	Start() error

	// Stop halts the cron runner. Safe to call when not running.
	Stop()

	// IsRunning reports whether the scheduler is active.
	IsRunning() bool
}
