// Package testutil provides a mock Home Assistant WebSocket server for
// integration tests: scripted authentication, a seedable state table,
// pushed state_changed events, service-call recording, and canned
// call-with-response payloads.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is a WebSocket frame exchanged with the client under test.
type Message struct {
	ID             int64           `json:"id,omitempty"`
	Type           string          `json:"type"`
	AccessToken    string          `json:"access_token,omitempty"`
	EventType      string          `json:"event_type,omitempty"`
	Domain         string          `json:"domain,omitempty"`
	Service        string          `json:"service,omitempty"`
	ServiceData    map[string]any  `json:"service_data,omitempty"`
	Target         *ServiceTarget  `json:"target,omitempty"`
	ReturnResponse bool            `json:"return_response,omitempty"`
	Success        *bool           `json:"success,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *WireError      `json:"error,omitempty"`
	Event          *Event          `json:"event,omitempty"`
}

// WireError is the structured failure attached to a result frame.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is a pushed event frame.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

// ServiceTarget selects the entities a service call applies to.
type ServiceTarget struct {
	EntityID []string `json:"entity_id,omitempty"`
}

// EntityState is one row of the server's state table.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// ServiceCall records one call_service command received by the server.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
	Target  []string
	Time    time.Time
}

type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *connWrapper) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// MockHAServer simulates a Home Assistant WebSocket endpoint.
type MockHAServer struct {
	server *httptest.Server
	token  string

	mu           sync.Mutex
	states       map[string]EntityState
	conns        []*connWrapper
	serviceCalls []ServiceCall
	responses    map[string]map[string]json.RawMessage
	rejectAuth   bool
	failNextCall *WireError
	user         map[string]any
}

// NewMockHAServer starts a server accepting the given token.
func NewMockHAServer(token string) *MockHAServer {
	s := &MockHAServer{
		token:     token,
		states:    make(map[string]EntityState),
		responses: make(map[string]map[string]json.RawMessage),
		user: map[string]any{
			"id":       "mock-user",
			"name":     "Mock User",
			"is_owner": true,
			"is_admin": true,
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// endpoint for clients.
func (s *MockHAServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Close shuts the server down and closes every live connection.
func (s *MockHAServer) Close() {
	s.DropConnections()
	s.server.Close()
}

// RejectAuth makes subsequent handshakes answer auth_invalid.
func (s *MockHAServer) RejectAuth(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = reject
}

// FailNextCall makes the next call_service command fail with the given code
// and message.
func (s *MockHAServer) FailNextCall(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextCall = &WireError{Code: code, Message: message}
}

// SetState seeds or replaces an entity state and pushes a state_changed
// event to every subscribed connection.
func (s *MockHAServer) SetState(entityID, state string, attributes map[string]any) {
	if attributes == nil {
		attributes = make(map[string]any)
	}
	now := time.Now()

	s.mu.Lock()
	old, hadOld := s.states[entityID]
	st := EntityState{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	s.states[entityID] = st
	conns := append([]*connWrapper(nil), s.conns...)
	s.mu.Unlock()

	data := map[string]any{
		"entity_id": entityID,
		"new_state": st,
	}
	if hadOld {
		data["old_state"] = old
	}
	raw, _ := json.Marshal(data)

	for _, c := range conns {
		c.writeJSON(Message{
			Type: "event",
			Event: &Event{
				EventType: "state_changed",
				Data:      raw,
				Origin:    "LOCAL",
				TimeFired: now,
			},
		})
	}
}

// SetResponse configures the payload returned for domain.service calls
// issued with return_response, keyed by entity id.
func (s *MockHAServer) SetResponse(domain, service, entityID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	key := domain + "." + service
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responses[key] == nil {
		s.responses[key] = make(map[string]json.RawMessage)
	}
	s.responses[key][entityID] = raw
	return nil
}

// GetServiceCalls returns every recorded service call.
func (s *MockHAServer) GetServiceCalls() []ServiceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]ServiceCall, len(s.serviceCalls))
	copy(calls, s.serviceCalls)
	return calls
}

// ClearServiceCalls clears the recorded call history.
func (s *MockHAServer) ClearServiceCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceCalls = nil
}

// DropConnections severs every live connection without stopping the server,
// simulating a transport-level failure.
func (s *MockHAServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

func (s *MockHAServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &connWrapper{conn: conn}

	if !s.authenticate(c) {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	s.serve(c)
}

func (s *MockHAServer) authenticate(c *connWrapper) bool {
	if err := c.writeJSON(Message{Type: "auth_required"}); err != nil {
		return false
	}

	var auth Message
	if err := c.conn.ReadJSON(&auth); err != nil {
		return false
	}

	s.mu.Lock()
	reject := s.rejectAuth || auth.AccessToken != s.token
	s.mu.Unlock()

	if reject {
		c.writeJSON(Message{Type: "auth_invalid"})
		return false
	}
	return c.writeJSON(Message{Type: "auth_ok"}) == nil
}

func (s *MockHAServer) serve(c *connWrapper) {
	defer func() {
		s.mu.Lock()
		for i, cw := range s.conns {
			if cw == c {
				s.conns = append(s.conns[:i], s.conns[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		c.conn.Close()
	}()

	ok := true
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe_events":
			c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &ok})

		case "get_states":
			s.mu.Lock()
			states := make([]EntityState, 0, len(s.states))
			for _, st := range s.states {
				states = append(states, st)
			}
			s.mu.Unlock()
			raw, _ := json.Marshal(states)
			c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &ok, Result: raw})

		case "auth/current_user":
			s.mu.Lock()
			user := s.user
			s.mu.Unlock()
			raw, _ := json.Marshal(user)
			c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &ok, Result: raw})

		case "call_service":
			s.handleCallService(c, msg)

		default:
			notOK := false
			c.writeJSON(Message{
				ID: msg.ID, Type: "result", Success: &notOK,
				Error: &WireError{Code: "unknown_command", Message: "unknown command " + msg.Type},
			})
		}
	}
}

func (s *MockHAServer) handleCallService(c *connWrapper, msg Message) {
	ok := true
	notOK := false

	var target []string
	if msg.Target != nil {
		target = msg.Target.EntityID
	}

	s.mu.Lock()
	if s.failNextCall != nil {
		fail := s.failNextCall
		s.failNextCall = nil
		s.mu.Unlock()
		c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &notOK, Error: fail})
		return
	}
	s.serviceCalls = append(s.serviceCalls, ServiceCall{
		Domain:  msg.Domain,
		Service: msg.Service,
		Data:    msg.ServiceData,
		Target:  target,
		Time:    time.Now(),
	})
	resp := s.responses[msg.Domain+"."+msg.Service]
	s.mu.Unlock()

	if !msg.ReturnResponse {
		c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &ok})
		return
	}

	raw, _ := json.Marshal(map[string]any{"response": resp})
	c.writeJSON(Message{ID: msg.ID, Type: "result", Success: &ok, Result: raw})
}
