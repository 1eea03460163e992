package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hass.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
url: ws://hass.local:8123/api/websocket
token: secret
auto_reconnect: false
min_backoff: 500ms
max_backoff: 1m
call_timeout: 5s
max_retries: 10
retain_on_disconnect: true
mock:
  enabled: true
  user:
    id: mock-user
    name: Mock User
    is_owner: true
  states:
    - entity_id: light.kitchen
      state: "on"
      attributes:
        brightness: 128
    - entity_id: sensor.temp
      state: "21.5"
`)

	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	cfg, err := f.SessionConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "ws://hass.local:8123/api/websocket", cfg.URL)
	assert.Equal(t, "secret", cfg.Token)
	assert.True(t, cfg.DisableAutoReconnect)
	assert.Equal(t, 500*time.Millisecond, cfg.MinBackoff)
	assert.Equal(t, time.Minute, cfg.MaxBackoff)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.True(t, cfg.RetainOnDisconnect)

	assert.True(t, cfg.MockMode)
	require.Len(t, cfg.MockStates, 2)
	assert.Equal(t, "light.kitchen", cfg.MockStates[0].EntityID)
	assert.Equal(t, "on", cfg.MockStates[0].State)
	assert.Equal(t, 128, cfg.MockStates[0].Attributes["brightness"])
	require.NotNil(t, cfg.MockUser)
	assert.Equal(t, "Mock User", cfg.MockUser.Name)
	assert.True(t, cfg.MockUser.IsOwner)
}

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, "url: ws://hass.local:8123/api/websocket\ntoken: secret\n")

	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	cfg, err := f.SessionConfig(zap.NewNop())
	require.NoError(t, err)

	// Omitted durations are zero; the session applies its own defaults.
	assert.Equal(t, time.Duration(0), cfg.MinBackoff)
	assert.False(t, cfg.DisableAutoReconnect)
	assert.False(t, cfg.MockMode)
	assert.Nil(t, cfg.MockUser)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "url: [unclosed\n")
	_, err := Load(path, zap.NewNop())
	require.Error(t, err)
}

func TestSessionConfigInvalidDuration(t *testing.T) {
	path := writeConfig(t, "min_backoff: fast\n")

	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	_, err = f.SessionConfig(zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_backoff")
}

func TestAutoReconnectDefaultsOn(t *testing.T) {
	// An absent auto_reconnect key must not disable the supervisor; only an
	// explicit false does.
	path := writeConfig(t, "auto_reconnect: true\n")
	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	cfg, err := f.SessionConfig(zap.NewNop())
	require.NoError(t, err)
	assert.False(t, cfg.DisableAutoReconnect)
}
