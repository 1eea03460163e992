package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dlwiest/hass-go/internal/haerr"
)

// MockTransport is a fixture-backed Transport. It substitutes the entire
// network layer: fixtures seed the initial get_states snapshot, service
// calls are recorded for assertions, and EmitStateChange pushes events
// through the same handler path a live connection uses.
type MockTransport struct {
	mu        sync.Mutex
	connected bool
	user      *User
	states    map[string]State
	responses map[string]map[string]json.RawMessage
	calls     []ServiceCall

	connectErr error
	nextID     int64

	onEvent EventHandler
	onDrop  DropHandler
}

// NewMockTransport creates a mock transport seeded with fixture states.
func NewMockTransport(fixtures []State, user *User) *MockTransport {
	states := make(map[string]State, len(fixtures))
	for _, s := range fixtures {
		states[s.EntityID] = s
	}
	return &MockTransport{
		user:      user,
		states:    states,
		responses: make(map[string]map[string]json.RawMessage),
	}
}

// SetHandlers installs the event and drop callbacks.
func (m *MockTransport) SetHandlers(onEvent EventHandler, onDrop DropHandler) {
	m.onEvent = onEvent
	m.onDrop = onDrop
}

// SetResponse configures the payload returned for a call-with-response to
// domain.service, keyed by entity id.
func (m *MockTransport) SetResponse(domain, service, entityID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	key := domain + "." + service
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responses[key] == nil {
		m.responses[key] = make(map[string]json.RawMessage)
	}
	m.responses[key][entityID] = raw
	return nil
}

// FailConnect makes the next Connect attempt fail with err.
func (m *MockTransport) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// Connect simulates the handshake and returns the configured user profile.
func (m *MockTransport) Connect(ctx context.Context) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		err := m.connectErr
		m.connectErr = nil
		return nil, err
	}
	if m.connected {
		return nil, haerr.New(haerr.KindConnection, "transport already used")
	}
	m.connected = true
	return m.user, nil
}

// Close marks the transport disconnected.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Send records a command without producing a result.
func (m *MockTransport) Send(req Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, haerr.New(haerr.KindConnection, "not connected")
	}
	m.nextID++
	req.setID(m.nextID)
	if call, ok := req.(*CallServiceRequest); ok {
		m.recordCallLocked(call)
	}
	return m.nextID, nil
}

// Call answers commands from fixture data, with no network activity.
func (m *MockTransport) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil, haerr.New(haerr.KindConnection, "not connected")
	}
	m.nextID++
	req.setID(m.nextID)

	switch r := req.(type) {
	case *SubscribeEventsRequest:
		m.mu.Unlock()
		return nil, nil
	case *GetStatesRequest:
		states := make([]State, 0, len(m.states))
		for _, s := range m.states {
			states = append(states, s)
		}
		m.mu.Unlock()
		return json.Marshal(states)
	case *CurrentUserRequest:
		user := m.user
		m.mu.Unlock()
		return json.Marshal(user)
	case *CallServiceRequest:
		m.recordCallLocked(r)
		if !r.ReturnResponse {
			m.mu.Unlock()
			return nil, nil
		}
		resp := m.responses[r.Domain+"."+r.Service]
		m.mu.Unlock()
		if resp == nil {
			return nil, haerr.Rejected("unknown_command",
				fmt.Sprintf("no mock response configured for %s.%s", r.Domain, r.Service))
		}
		return json.Marshal(CallServiceResult{Response: resp})
	default:
		m.mu.Unlock()
		return nil, haerr.New(haerr.KindCallRejected, "unsupported command")
	}
}

func (m *MockTransport) recordCallLocked(r *CallServiceRequest) {
	var target []string
	if r.Target != nil {
		target = r.Target.EntityID
	}
	m.calls = append(m.calls, ServiceCall{
		Domain:  r.Domain,
		Service: r.Service,
		Data:    r.ServiceData,
		Target:  target,
		Time:    time.Now(),
	})
}

// EmitStateChange replaces the fixture for entityID and delivers a
// state_changed event through the installed handler, exactly as a live
// connection would.
func (m *MockTransport) EmitStateChange(entityID, stateValue string, attributes map[string]any) {
	now := time.Now()
	newState := State{
		EntityID:    entityID,
		State:       stateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}

	m.mu.Lock()
	var oldState *State
	if prev, ok := m.states[entityID]; ok {
		prevCopy := prev
		oldState = &prevCopy
	}
	m.states[entityID] = newState
	onEvent := m.onEvent
	m.mu.Unlock()

	if onEvent != nil {
		onEvent(StateChangedEvent{
			EntityID: entityID,
			NewState: &newState,
			OldState: oldState,
		})
	}
}

// Drop simulates a transport-level connection loss.
func (m *MockTransport) Drop(err error) {
	m.mu.Lock()
	m.connected = false
	onDrop := m.onDrop
	m.mu.Unlock()

	if onDrop != nil {
		onDrop(haerr.Wrap(haerr.KindConnection, err, "connection lost"))
	}
}

// GetServiceCalls returns every recorded service call.
func (m *MockTransport) GetServiceCalls() []ServiceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ServiceCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// ClearServiceCalls clears the recorded call history.
func (m *MockTransport) ClearServiceCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
