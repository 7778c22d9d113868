package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Transport    TransportConfig    `toml:"transport"`
	WebSocket    WebSocketConfig    `toml:"websocket"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// OrchestratorConfig tunes the background execution task
type OrchestratorConfig struct {
	TickInterval string `toml:"tick_interval"` // e.g. "100ms" - delay between progress increments
	ProgressStep int    `toml:"progress_step"` // percent added per tick (1-100)
	DefaultShots int    `toml:"default_shots"` // shots when a payload omits them
}

// TickIntervalDuration parses TickInterval, falling back to the default
func (c *OrchestratorConfig) TickIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.TickInterval); err == nil && d > 0 {
		return d
	}
	return 100 * time.Millisecond
}

// TransportConfig configures the reconnecting event source connection
type TransportConfig struct {
	URL                  string `toml:"url"`                    // remote event source, empty disables the transport
	ReconnectInterval    string `toml:"reconnect_interval"`     // e.g. "3s"
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"` // hard ceiling before terminal Error
	Backoff              string `toml:"backoff"`                // "fixed" or "exponential"
}

// ReconnectIntervalDuration parses ReconnectInterval, falling back to the default
func (c *TransportConfig) ReconnectIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.ReconnectInterval); err == nil && d > 0 {
		return d
	}
	return 3 * time.Second
}

// WebSocketConfig configures UI event broadcasting
type WebSocketConfig struct {
	AllowedEvents    []string `toml:"allowed_events"`    // whitelist of kinds to broadcast (empty = allow all)
	ProgressInterval string   `toml:"progress_interval"` // min interval between progress broadcasts, e.g. "250ms"
}

// SchedulerConfig configures cron-driven job submission
type SchedulerConfig struct {
	Enabled bool                 `toml:"enabled"`
	Entries []ScheduledJobConfig `toml:"entries"`
}

// ScheduledJobConfig is one cron entry submitting a fixed payload
type ScheduledJobConfig struct {
	Name     string `toml:"name"`
	Schedule string `toml:"schedule"` // cron expression
	Source   string `toml:"source"`
	Shots    int    `toml:"shots"`
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUANTA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("QUANTA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("QUANTA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("QUANTA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("QUANTA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("QUANTA_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitAndTrim(output)
	}

	if tick := os.Getenv("QUANTA_ORCHESTRATOR_TICK_INTERVAL"); tick != "" {
		config.Orchestrator.TickInterval = tick
	}
	if step := os.Getenv("QUANTA_ORCHESTRATOR_PROGRESS_STEP"); step != "" {
		if s, err := strconv.Atoi(step); err == nil {
			config.Orchestrator.ProgressStep = s
		}
	}

	if url := os.Getenv("QUANTA_TRANSPORT_URL"); url != "" {
		config.Transport.URL = url
	}
	if interval := os.Getenv("QUANTA_TRANSPORT_RECONNECT_INTERVAL"); interval != "" {
		config.Transport.ReconnectInterval = interval
	}
	if attempts := os.Getenv("QUANTA_TRANSPORT_MAX_RECONNECT_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Transport.MaxReconnectAttempts = a
		}
	}

	if allowedEvents := os.Getenv("QUANTA_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		config.WebSocket.AllowedEvents = splitAndTrim(allowedEvents)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
