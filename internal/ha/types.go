package ha

import (
	"encoding/json"
	"time"
)

// Message is the base WebSocket frame exchanged with Home Assistant.
type Message struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// WireError is the structured failure the hub attaches to a result frame.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage is the credential frame sent during the handshake.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// Event is an event frame pushed by the hub.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

// StateChangedEvent is the payload of a state_changed event. NewState is nil
// when the entity was removed from the hub.
type StateChangedEvent struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

// State is the full record for one entity. The hub always sends the whole
// record; it is replaced wholesale, never patched.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Context     *Context       `json:"context,omitempty"`
}

// Context carries the causality information of a state change.
type Context struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// User is the authenticated user profile reported by the hub.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`
}

// Request is an outbound command that carries a correlation id. The
// transport assigns ids; callers never set them.
type Request interface {
	setID(id int64)
}

// CallServiceRequest invokes a service on a domain. ReturnResponse asks the
// hub to attach a typed response payload to the acknowledgement.
type CallServiceRequest struct {
	ID             int64          `json:"id"`
	Type           string         `json:"type"`
	Domain         string         `json:"domain"`
	Service        string         `json:"service"`
	ServiceData    map[string]any `json:"service_data,omitempty"`
	Target         *ServiceTarget `json:"target,omitempty"`
	ReturnResponse bool           `json:"return_response,omitempty"`
}

func (r *CallServiceRequest) setID(id int64) { r.ID = id }

// ServiceTarget selects the entities a service call applies to.
type ServiceTarget struct {
	EntityID []string `json:"entity_id,omitempty"`
}

// CallServiceResult is the result payload of a call_service command issued
// with ReturnResponse. Response is keyed by entity id.
type CallServiceResult struct {
	Context  *Context                   `json:"context,omitempty"`
	Response map[string]json.RawMessage `json:"response,omitempty"`
}

// GetStatesRequest fetches a snapshot of every entity state.
type GetStatesRequest struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func (r *GetStatesRequest) setID(id int64) { r.ID = id }

// SubscribeEventsRequest subscribes to the hub's event stream, optionally
// filtered by event type.
type SubscribeEventsRequest struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

func (r *SubscribeEventsRequest) setID(id int64) { r.ID = id }

// CurrentUserRequest fetches the authenticated user profile.
type CurrentUserRequest struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func (r *CurrentUserRequest) setID(id int64) { r.ID = id }

// EventHandler receives every state_changed event, in the order the hub
// emitted them.
type EventHandler func(StateChangedEvent)

// DropHandler is invoked once when the transport loses its connection for
// any reason other than an explicit Close.
type DropHandler func(error)

// ServiceCall records one outbound service invocation, used by the mock
// transport for test assertions.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
	Target  []string
	Time    time.Time
}
