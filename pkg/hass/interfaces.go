// Package hass is the public surface of the client. External consumers
// import only this package (plus pkg/testutil in tests); the implementation
// lives in internal packages and is wrapped here.
package hass

import (
	"context"
	"encoding/json"
	"time"
)

// State is the full record for one entity. Records are replaced wholesale on
// every update and must be treated as immutable.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Unavailable bool           `json:"-"`
}

// User is the authenticated user profile.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`
}

// Status is the connection supervisor's state.
type Status string

// Supervisor states. Connected and Connecting are mutually exclusive by
// construction.
const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusFailed       Status = "failed"
)

// TodoItem is one entry of a todo list.
type TodoItem struct {
	UID     string `json:"uid"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Due     string `json:"due,omitempty"`
}

// Session is one connection to a hub plus its entity state cache.
type Session interface {
	// Connect performs the initial connection attempt and starts the
	// reconnection supervisor.
	Connect(ctx context.Context) error
	// Close disposes the session: socket released, store cleared. Terminal.
	Close() error

	// Connected reports whether the session is live.
	Connected() bool
	// Connecting reports whether a connection attempt is in flight.
	Connecting() bool
	// Status returns the supervisor state.
	Status() Status
	// Err returns the most recent connection-level error, nil while healthy.
	Err() error
	// User returns the authenticated profile, nil before the first handshake.
	User() *User
	// WatchStatus observes supervisor transitions.
	WatchStatus(fn func(Status)) (unsubscribe func())

	// Get returns the latest record for entityID. Unknown entities yield a
	// record with Unavailable set; Get never fails and never blocks on I/O.
	Get(entityID string) State
	// Watch registers fn for changes to entityID. The caller must invoke
	// the returned function when it stops observing.
	Watch(entityID string, fn func(State)) (unsubscribe func())
	// Refresh re-fetches the full state snapshot from the hub.
	Refresh(ctx context.Context) error

	// CallService invokes domain.service and waits for the hub's
	// acknowledgement. The resulting state change arrives asynchronously
	// through the event stream; callers must not assume the store already
	// reflects it when the call returns.
	CallService(ctx context.Context, domain, service string, data map[string]any, target ...string) error
	// CallServiceWithResponse invokes domain.service and returns the hub's
	// typed response payload, keyed by entity id.
	CallServiceWithResponse(ctx context.Context, domain, service string, data map[string]any, target ...string) (map[string]json.RawMessage, error)
}
