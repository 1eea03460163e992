package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/clock"
	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/metric"
)

// Defaults for the reconnection supervisor and the per-call response bound.
const (
	DefaultMinBackoff  = time.Second
	DefaultMaxBackoff  = 30 * time.Second
	DefaultCallTimeout = ha.DefaultCallTimeout
)

// Config is the immutable per-session configuration. It is read at
// construction and never mutated afterwards.
type Config struct {
	// URL is the hub's WebSocket endpoint, e.g. ws://hass.local:8123/api/websocket.
	URL string
	// Token is the long-lived access token presented during the handshake.
	Token string

	// DisableAutoReconnect turns the reconnection supervisor off; a dropped
	// connection then moves the session to the failed state.
	DisableAutoReconnect bool
	// MinBackoff and MaxBackoff bound the exponential reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// MaxRetries caps consecutive failed reconnect attempts. Zero means
	// unlimited.
	MaxRetries int
	// CallTimeout bounds how long a service call waits for its result.
	CallTimeout time.Duration

	// RetainOnDisconnect keeps stale records in the store across a drop,
	// flagged unavailable, instead of clearing them.
	RetainOnDisconnect bool

	// MockMode substitutes a fixture-backed transport; no network activity
	// occurs. MockStates seed the store and MockUser is reported as the
	// authenticated profile.
	MockMode   bool
	MockStates []ha.State
	MockUser   *ha.User

	Logger  *zap.Logger
	Clock   clock.Clock
	Metrics *metric.Metrics

	// newTransport overrides transport construction in tests.
	newTransport func() ha.Transport
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clock.NewRealClock()
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = DefaultMinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = c.MinBackoff
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}
