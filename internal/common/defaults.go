package common

// NewDefaultConfig returns the built-in configuration defaults.
// Config files, environment variables, and CLI flags layer on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/quanta",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Orchestrator: OrchestratorConfig{
			TickInterval: "100ms",
			ProgressStep: 5,
			DefaultShots: 1024,
		},
		Transport: TransportConfig{
			URL:                  "",
			ReconnectInterval:    "3s",
			MaxReconnectAttempts: 5,
			Backoff:              "fixed",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents:    nil,
			ProgressInterval: "250ms",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
	}
}
