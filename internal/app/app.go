package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/events"
	"github.com/ternarybob/quanta/internal/handlers"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/orchestrator"
	"github.com/ternarybob/quanta/internal/services/scheduler"
	"github.com/ternarybob/quanta/internal/storage"
	"github.com/ternarybob/quanta/internal/transport"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	Orchestrator     *orchestrator.Service
	SchedulerService interfaces.SchedulerService

	// Upstream transport (only when an upstream URL is configured)
	Transport interfaces.Transport

	// HTTP handlers
	JobHandler    *handlers.JobHandler
	StatusHandler *handlers.StatusHandler
	WSHandler     *handlers.WebSocketHandler
}

// New creates and wires all application components
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	// Initialize storage
	storageManager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	app.StorageManager = storageManager

	// Event bus first: everything downstream publishes through it
	app.EventService = events.NewService(logger)

	// WebSocket handler subscribes before the orchestrator can emit,
	// so connected clients never miss lifecycle events
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	// Orchestrator with the simulation backend
	backend := orchestrator.NewSimBackend(cfg.Orchestrator.DefaultShots)
	app.Orchestrator = orchestrator.NewService(
		&cfg.Orchestrator,
		app.EventService,
		backend,
		orchestrator.SystemClock(),
		storageManager.JobStorage(),
		logger,
	)

	// Upstream transport is optional: without a URL the server runs standalone
	if cfg.Transport.URL != "" {
		client := transport.NewClient(&cfg.Transport, app.EventService, logger)
		app.Transport = client
		if err := client.Connect(); err != nil {
			logger.Warn().Err(err).Str("url", cfg.Transport.URL).Msg("Initial upstream connect failed, reconnecting in background")
		}
	}

	// Scheduler submits configured jobs on cron schedules
	app.SchedulerService = scheduler.NewService(&cfg.Scheduler, app.Orchestrator, logger)
	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// HTTP handlers
	app.JobHandler = handlers.NewJobHandler(app.Orchestrator, logger)
	app.StatusHandler = handlers.NewStatusHandler(app.Orchestrator, app.Transport, logger)

	logger.Info().
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("upstream_configured", cfg.Transport.URL != "").
		Msg("Application initialization complete")

	return app, nil
}

// Close shuts down all components in reverse dependency order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.Orchestrator != nil {
		if err := a.Orchestrator.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close orchestrator")
		}
	}

	if a.Transport != nil {
		if err := a.Transport.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close transport")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.EventService != nil {
		a.EventService.Close()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
