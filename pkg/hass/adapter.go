package hass

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/metric"
	"github.com/dlwiest/hass-go/internal/session"
	"github.com/dlwiest/hass-go/internal/store"
)

// Config configures a session. URL and Token are required unless MockMode is
// set. Zero durations fall back to the library defaults (1s/30s backoff
// bounds, 10s call timeout).
type Config struct {
	URL   string
	Token string

	DisableAutoReconnect bool
	MinBackoff           time.Duration
	MaxBackoff           time.Duration
	MaxRetries           int
	CallTimeout          time.Duration
	RetainOnDisconnect   bool

	// MockMode substitutes a fixture-backed transport; no network activity
	// occurs.
	MockMode   bool
	MockStates []State
	MockUser   *User

	Logger *zap.Logger
	// Registerer, when set, receives the client's Prometheus collectors.
	Registerer prometheus.Registerer
}

// NewSession creates a session from cfg. It does not connect.
func NewSession(cfg Config) (Session, error) {
	internal := session.Config{
		URL:                  cfg.URL,
		Token:                cfg.Token,
		DisableAutoReconnect: cfg.DisableAutoReconnect,
		MinBackoff:           cfg.MinBackoff,
		MaxBackoff:           cfg.MaxBackoff,
		MaxRetries:           cfg.MaxRetries,
		CallTimeout:          cfg.CallTimeout,
		RetainOnDisconnect:   cfg.RetainOnDisconnect,
		MockMode:             cfg.MockMode,
		Logger:               cfg.Logger,
	}

	for _, s := range cfg.MockStates {
		internal.MockStates = append(internal.MockStates, publicToState(s))
	}
	if cfg.MockUser != nil {
		internal.MockUser = &ha.User{
			ID:      cfg.MockUser.ID,
			Name:    cfg.MockUser.Name,
			IsOwner: cfg.MockUser.IsOwner,
			IsAdmin: cfg.MockUser.IsAdmin,
		}
	}

	if cfg.Registerer != nil {
		m := metric.New()
		if err := m.Register(cfg.Registerer); err != nil {
			return nil, err
		}
		internal.Metrics = m
	}

	sess, err := session.New(internal)
	if err != nil {
		return nil, err
	}
	return WrapSession(sess), nil
}

// SessionAdapter wraps an internal session.Session to implement Session.
type SessionAdapter struct {
	internal *session.Session
}

// WrapSession wraps an internal session for public consumption.
func WrapSession(s *session.Session) Session {
	return &SessionAdapter{internal: s}
}

// UnwrapSession returns the underlying internal session, nil for foreign
// implementations.
func UnwrapSession(s Session) *session.Session {
	if a, ok := s.(*SessionAdapter); ok {
		return a.internal
	}
	return nil
}

func internalToState(s ha.State) State {
	return State{
		EntityID:    s.EntityID,
		State:       s.State,
		Attributes:  s.Attributes,
		LastChanged: s.LastChanged,
		LastUpdated: s.LastUpdated,
		Unavailable: store.IsUnavailable(s),
	}
}

func publicToState(s State) ha.State {
	return ha.State{
		EntityID:    s.EntityID,
		State:       s.State,
		Attributes:  s.Attributes,
		LastChanged: s.LastChanged,
		LastUpdated: s.LastUpdated,
	}
}

func internalToUser(u *ha.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Name: u.Name, IsOwner: u.IsOwner, IsAdmin: u.IsAdmin}
}

func (a *SessionAdapter) Connect(ctx context.Context) error { return a.internal.Connect(ctx) }
func (a *SessionAdapter) Close() error                      { return a.internal.Close() }
func (a *SessionAdapter) Connected() bool                   { return a.internal.Connected() }
func (a *SessionAdapter) Connecting() bool                  { return a.internal.Connecting() }
func (a *SessionAdapter) Err() error                        { return a.internal.Err() }

func (a *SessionAdapter) Status() Status {
	return Status(a.internal.Status().String())
}

func (a *SessionAdapter) User() *User {
	return internalToUser(a.internal.User())
}

func (a *SessionAdapter) WatchStatus(fn func(Status)) (unsubscribe func()) {
	return a.internal.WatchStatus(func(st session.Status) {
		fn(Status(st.String()))
	})
}

func (a *SessionAdapter) Get(entityID string) State {
	return internalToState(a.internal.Store().Get(entityID))
}

func (a *SessionAdapter) Watch(entityID string, fn func(State)) (unsubscribe func()) {
	return a.internal.Store().Watch(entityID, func(rec ha.State) {
		fn(internalToState(rec))
	})
}

func (a *SessionAdapter) Refresh(ctx context.Context) error {
	return a.internal.Refresh(ctx)
}

func (a *SessionAdapter) CallService(ctx context.Context, domain, service string, data map[string]any, target ...string) error {
	return a.internal.CallService(ctx, domain, service, data, target...)
}

func (a *SessionAdapter) CallServiceWithResponse(ctx context.Context, domain, service string, data map[string]any, target ...string) (map[string]json.RawMessage, error) {
	return a.internal.CallServiceWithResponse(ctx, domain, service, data, target...)
}
