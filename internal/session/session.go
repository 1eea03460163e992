// Package session ties the client together: it owns the connection lifecycle
// (the reconnection supervisor), issues the per-connection event subscription,
// routes change events into the entity store, and exposes the service-call
// facade. Construction and teardown are explicit; nothing here is process
// global, so independent sessions can coexist.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/clock"
	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/haerr"
	"github.com/dlwiest/hass-go/internal/metric"
	"github.com/dlwiest/hass-go/internal/store"
)

// Status is the supervisor's connection state. Connected and Connecting are
// distinct states of one machine, so they can never hold simultaneously.
type Status int

const (
	// StatusIdle is the initial state, and the terminal state after Close.
	StatusIdle Status = iota
	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting
	// StatusConnected means the session is live and subscribed.
	StatusConnected
	// StatusReconnecting means a retry is scheduled after a drop.
	StatusReconnecting
	// StatusFailed means the supervisor gave up: authentication was
	// rejected, auto-reconnect is disabled, or the retry budget ran out.
	StatusFailed
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusHandler observes supervisor state transitions.
type StatusHandler func(Status)

// Session is one connection to a hub plus its entity store. Create it with
// New, start it with Connect, and release it with Close.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	clk     clock.Clock
	metrics *metric.Metrics
	st      *store.Store

	newTransport func() ha.Transport

	mu          sync.Mutex
	transport   ha.Transport
	status      Status
	lastErr     error
	user        *ha.User
	closed      bool
	retryTimer  clock.Timer
	backoff     time.Duration
	retries     int
	connectedAt time.Time
	statusSubs  map[int]StatusHandler
	nextSubID   int
}

// New creates a session from cfg. It does not connect.
func New(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if !cfg.MockMode && (cfg.URL == "" || cfg.Token == "") {
		return nil, haerr.New(haerr.KindConnection, "url and token are required")
	}

	s := &Session{
		cfg:        cfg,
		logger:     cfg.Logger,
		clk:        cfg.Clock,
		metrics:    cfg.Metrics,
		st:         store.New(cfg.Logger),
		status:     StatusIdle,
		backoff:    cfg.MinBackoff,
		statusSubs: make(map[int]StatusHandler),
	}

	switch {
	case cfg.newTransport != nil:
		s.newTransport = cfg.newTransport
	case cfg.MockMode:
		// One mock shared across reconnects so fixtures keep their state.
		mock := ha.NewMockTransport(cfg.MockStates, cfg.MockUser)
		s.newTransport = func() ha.Transport { return mock }
	default:
		s.newTransport = func() ha.Transport {
			return ha.NewClient(cfg.URL, cfg.Token, cfg.Logger,
				ha.WithClock(cfg.Clock), ha.WithCallTimeout(cfg.CallTimeout))
		}
	}

	return s, nil
}

// Store returns the session's entity store.
func (s *Session) Store() *store.Store { return s.st }

// Status returns the supervisor state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connected reports whether the session is live.
func (s *Session) Connected() bool { return s.Status() == StatusConnected }

// Connecting reports whether a connection attempt is in flight.
func (s *Session) Connecting() bool { return s.Status() == StatusConnecting }

// Err returns the most recent connection-level error, nil while healthy.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// User returns the authenticated user profile, nil before the first
// successful handshake.
func (s *Session) User() *ha.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// MockTransport returns the fixture transport when the session was built in
// mock mode, nil otherwise.
func (s *Session) MockTransport() *ha.MockTransport {
	if !s.cfg.MockMode {
		return nil
	}
	if mock, ok := s.newTransport().(*ha.MockTransport); ok {
		return mock
	}
	return nil
}

// WatchStatus registers fn for supervisor transitions and returns the
// deregistration handle.
func (s *Session) WatchStatus(fn StatusHandler) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.statusSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.statusSubs, id)
	}
}

// setStatusLocked updates the state and returns the handlers to notify once
// the caller releases the lock.
func (s *Session) setStatusLocked(status Status) []StatusHandler {
	if s.status == status {
		return nil
	}
	s.status = status
	handlers := make([]StatusHandler, 0, len(s.statusSubs))
	for _, fn := range s.statusSubs {
		handlers = append(handlers, fn)
	}
	return handlers
}

func notifyStatus(handlers []StatusHandler, status Status) {
	for _, fn := range handlers {
		fn(status)
	}
}

// Connect performs the initial connection attempt. On a recoverable failure
// with auto-reconnect enabled the supervisor keeps retrying in the
// background; the error is still returned so the caller can report it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return haerr.New(haerr.KindConnection, "session is closed")
	}
	if s.status == StatusConnected || s.status == StatusConnecting {
		s.mu.Unlock()
		return haerr.New(haerr.KindConnection, "already connected")
	}
	handlers := s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()
	notifyStatus(handlers, StatusConnecting)

	err := s.attempt(ctx)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.lastErr = err
	var next Status
	if haerr.IsAuth(err) || s.cfg.DisableAutoReconnect {
		next = StatusFailed
	} else {
		next = StatusReconnecting
		s.scheduleRetryLocked()
	}
	handlers = s.setStatusLocked(next)
	s.mu.Unlock()
	notifyStatus(handlers, next)
	return err
}

// attempt runs one full connection sequence: handshake, event subscription,
// and store priming. Subscriptions do not survive a reconnect, so the
// subscribe command is reissued here after every successful handshake, and a
// subscribe failure counts as a connection failure.
func (s *Session) attempt(ctx context.Context) error {
	t := s.newTransport()
	t.SetHandlers(
		func(ev ha.StateChangedEvent) { s.handleEvent(ev) },
		func(err error) { s.handleDrop(t, err) },
	)

	user, err := t.Connect(ctx)
	if err != nil {
		return err
	}

	if _, err := t.Call(ctx, &ha.SubscribeEventsRequest{
		Type:      "subscribe_events",
		EventType: "state_changed",
	}); err != nil {
		t.Close()
		return haerr.Wrap(haerr.KindConnection, err, "failed to subscribe to state changes")
	}

	if err := s.prime(ctx, t); err != nil {
		t.Close()
		return haerr.Wrap(haerr.KindConnection, err, "failed to prime entity states")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.Close()
		return haerr.New(haerr.KindConnection, "session is closed")
	}
	s.transport = t
	s.user = user
	s.lastErr = nil
	s.retries = 0
	s.connectedAt = s.clk.Now()
	handlers := s.setStatusLocked(StatusConnected)
	s.mu.Unlock()

	s.metrics.SetConnected(true)
	s.logger.Info("Session connected", zap.String("url", s.cfg.URL))
	notifyStatus(handlers, StatusConnected)
	return nil
}

// prime fetches the full state snapshot and applies it to the store.
func (s *Session) prime(ctx context.Context, t ha.Transport) error {
	result, err := t.Call(ctx, &ha.GetStatesRequest{Type: "get_states"})
	if err != nil {
		return err
	}
	var states []ha.State
	if err := json.Unmarshal(result, &states); err != nil {
		return haerr.Wrap(haerr.KindConnection, err, "failed to decode states")
	}
	for _, st := range states {
		s.st.Apply(st)
	}
	s.logger.Debug("Store primed", zap.Int("entities", len(states)))
	return nil
}

// Refresh re-fetches the full state snapshot. The hub has no per-entity
// read, so a refresh re-primes every record.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	t := s.transport
	connected := s.status == StatusConnected
	s.mu.Unlock()
	if t == nil || !connected {
		return haerr.New(haerr.KindConnection, "not connected")
	}
	return s.prime(ctx, t)
}

// handleEvent applies one change event. The transport delivers events on a
// single goroutine, so per-entity hub emission order is preserved through
// the store.
func (s *Session) handleEvent(ev ha.StateChangedEvent) {
	s.st.ApplyEvent(ev)
	s.metrics.IncEventsApplied()
}

// handleDrop reacts to a transport-level connection loss. Stale drops from
// transports that have already been replaced are ignored.
func (s *Session) handleDrop(t ha.Transport, err error) {
	s.mu.Lock()
	if s.closed || s.transport != t {
		s.mu.Unlock()
		return
	}
	s.transport = nil
	s.lastErr = err

	// A connection that lasted longer than the current delay clears the
	// failure streak, so the next retry starts from the minimum again.
	if s.clk.Since(s.connectedAt) > s.backoff {
		s.backoff = s.cfg.MinBackoff
		s.retries = 0
	}

	var next Status
	if s.cfg.DisableAutoReconnect {
		next = StatusFailed
	} else {
		next = StatusReconnecting
		s.scheduleRetryLocked()
	}
	handlers := s.setStatusLocked(next)
	s.mu.Unlock()

	s.metrics.SetConnected(false)
	s.logger.Warn("Connection dropped", zap.Error(err))

	if s.cfg.RetainOnDisconnect {
		s.st.MarkUnavailable()
	} else {
		s.st.Reset()
	}
	notifyStatus(handlers, next)
}

func (s *Session) scheduleRetryLocked() {
	delay := s.backoff
	s.retryTimer = s.clk.AfterFunc(delay, s.retry)
	s.logger.Info("Reconnect scheduled", zap.Duration("delay", delay))
}

func (s *Session) retry() {
	s.mu.Lock()
	if s.closed || s.status != StatusReconnecting {
		s.mu.Unlock()
		return
	}
	s.retries++
	if s.cfg.MaxRetries > 0 && s.retries > s.cfg.MaxRetries {
		s.lastErr = haerr.Newf(haerr.KindConnection,
			"giving up after %d reconnect attempts", s.cfg.MaxRetries)
		handlers := s.setStatusLocked(StatusFailed)
		s.mu.Unlock()
		notifyStatus(handlers, StatusFailed)
		return
	}
	handlers := s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()
	notifyStatus(handlers, StatusConnecting)

	s.metrics.IncReconnectAttempts()
	s.logger.Info("Attempting to reconnect")

	err := s.attempt(context.Background())
	if err == nil {
		s.logger.Info("Reconnected")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	var next Status
	if haerr.IsAuth(err) {
		// Retrying with the same rejected credential cannot succeed.
		next = StatusFailed
	} else {
		s.backoff *= 2
		if s.backoff > s.cfg.MaxBackoff {
			s.backoff = s.cfg.MaxBackoff
		}
		next = StatusReconnecting
		s.scheduleRetryLocked()
	}
	handlers = s.setStatusLocked(next)
	s.mu.Unlock()

	s.logger.Warn("Reconnect attempt failed", zap.Error(err))
	notifyStatus(handlers, next)
}

// Close disposes the session: it cancels any scheduled reconnect, releases
// the connection, and clears the store. Close is terminal; the session
// cannot be reused.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	t := s.transport
	s.transport = nil
	handlers := s.setStatusLocked(StatusIdle)
	s.mu.Unlock()

	if t != nil {
		t.Close()
	}
	s.st.Reset()
	s.metrics.SetConnected(false)
	s.logger.Info("Session closed")
	notifyStatus(handlers, StatusIdle)
	return nil
}

// CallService invokes domain.service and waits for the hub's
// acknowledgement. Resolution means the command was accepted; the resulting
// state change arrives separately through the event stream, so callers must
// not assume the store already reflects it.
func (s *Session) CallService(ctx context.Context, domain, service string, data map[string]any, target ...string) error {
	_, err := s.callService(ctx, domain, service, data, target, false)
	return err
}

// CallServiceWithResponse invokes domain.service and returns the hub's typed
// response payload, keyed by entity id.
func (s *Session) CallServiceWithResponse(ctx context.Context, domain, service string, data map[string]any, target ...string) (map[string]json.RawMessage, error) {
	raw, err := s.callService(ctx, domain, service, data, target, true)
	if err != nil {
		return nil, err
	}
	var result ha.CallServiceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, haerr.Wrap(haerr.KindCallRejected, err, "failed to decode service response")
	}
	if result.Response == nil {
		return nil, haerr.Newf(haerr.KindCallRejected,
			"%s.%s returned no response payload", domain, service)
	}
	return result.Response, nil
}

func (s *Session) callService(ctx context.Context, domain, service string, data map[string]any, target []string, withResponse bool) (json.RawMessage, error) {
	s.mu.Lock()
	t := s.transport
	connected := s.status == StatusConnected
	s.mu.Unlock()
	if t == nil || !connected {
		return nil, haerr.New(haerr.KindConnection, "not connected")
	}

	req := &ha.CallServiceRequest{
		Type:           "call_service",
		Domain:         domain,
		Service:        service,
		ServiceData:    data,
		ReturnResponse: withResponse,
	}
	if len(target) > 0 {
		req.Target = &ha.ServiceTarget{EntityID: target}
	}

	start := s.clk.Now()
	raw, err := t.Call(ctx, req)

	errKind := ""
	if err != nil {
		errKind = "unknown"
		if k, ok := haerr.KindOf(err); ok {
			errKind = k.String()
		}
	}
	s.metrics.ObserveCall(domain, service, s.clk.Since(start), errKind)
	return raw, err
}
