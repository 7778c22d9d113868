package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quanta.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8190, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "./data/quanta", config.Storage.Badger.Path)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 100*time.Millisecond, config.Orchestrator.TickIntervalDuration())
	assert.Equal(t, 5, config.Orchestrator.ProgressStep)
	assert.Equal(t, 3*time.Second, config.Transport.ReconnectIntervalDuration())
	assert.Equal(t, 5, config.Transport.MaxReconnectAttempts)
	assert.Equal(t, "fixed", config.Transport.Backoff)
	assert.False(t, config.Scheduler.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
environment = "production"

[server]
port = 9000
host = "0.0.0.0"

[orchestrator]
tick_interval = "50ms"
progress_step = 10
default_shots = 2048

[transport]
url = "ws://upstream:9400/events"
reconnect_interval = "500ms"
max_reconnect_attempts = 10
backoff = "exponential"

[scheduler]
enabled = true

[[scheduler.entries]]
name = "nightly-ghz"
schedule = "0 2 * * *"
source = "h q0\ncx q0 q1"
shots = 4096
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 50*time.Millisecond, config.Orchestrator.TickIntervalDuration())
	assert.Equal(t, 10, config.Orchestrator.ProgressStep)
	assert.Equal(t, 2048, config.Orchestrator.DefaultShots)
	assert.Equal(t, "ws://upstream:9400/events", config.Transport.URL)
	assert.Equal(t, 500*time.Millisecond, config.Transport.ReconnectIntervalDuration())
	assert.Equal(t, 10, config.Transport.MaxReconnectAttempts)
	assert.Equal(t, "exponential", config.Transport.Backoff)

	require.True(t, config.Scheduler.Enabled)
	require.Len(t, config.Scheduler.Entries, 1)
	assert.Equal(t, "nightly-ghz", config.Scheduler.Entries[0].Name)
	assert.Equal(t, 4096, config.Scheduler.Entries[0].Shots)

	// Values absent from the file keep their defaults.
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLaterFilesOverrideEarlier(t *testing.T) {
	base := writeConfigFile(t, `
[server]
port = 9000
`)
	override := writeConfigFile(t, `
[server]
port = 9100
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidToml(t *testing.T) {
	path := writeConfigFile(t, "[server\nport = not-a-number")

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUANTA_ENV", "production")
	t.Setenv("QUANTA_SERVER_PORT", "9999")
	t.Setenv("QUANTA_SERVER_HOST", "0.0.0.0")
	t.Setenv("QUANTA_LOG_LEVEL", "debug")
	t.Setenv("QUANTA_LOG_OUTPUT", "stdout, file")
	t.Setenv("QUANTA_ORCHESTRATOR_TICK_INTERVAL", "25ms")
	t.Setenv("QUANTA_TRANSPORT_URL", "ws://env:9400/events")
	t.Setenv("QUANTA_TRANSPORT_MAX_RECONNECT_ATTEMPTS", "7")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.Equal(t, 25*time.Millisecond, config.Orchestrator.TickIntervalDuration())
	assert.Equal(t, "ws://env:9400/events", config.Transport.URL)
	assert.Equal(t, 7, config.Transport.MaxReconnectAttempts)
}

func TestEnvOverridesBeatFiles(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9000
`)
	t.Setenv("QUANTA_SERVER_PORT", "9500")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9500, config.Server.Port)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 7777, "127.0.0.1")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestDurationFallbacks(t *testing.T) {
	orch := &OrchestratorConfig{TickInterval: "garbage"}
	assert.Equal(t, 100*time.Millisecond, orch.TickIntervalDuration())

	transport := &TransportConfig{ReconnectInterval: "-5s"}
	assert.Equal(t, 3*time.Second, transport.ReconnectIntervalDuration())
}
