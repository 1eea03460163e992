package hass

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dlwiest/hass-go/internal/entity"
)

// ErrForeignSession is returned when an entity handle is requested for a
// Session not created by NewSession.
var ErrForeignSession = errors.New("session was not created by hass.NewSession")

// View is a point-in-time projection of one entity. Its fields are derived
// only from the entity record and the connection state.
type View struct {
	EntityID    string
	State       string
	Attributes  map[string]any
	LastChanged time.Time
	LastUpdated time.Time
	Unavailable bool
	Connected   bool
}

func internalToView(v entity.View) View {
	return View{
		EntityID:    v.EntityID,
		State:       v.State,
		Attributes:  v.Attributes,
		LastChanged: v.LastChanged,
		LastUpdated: v.LastUpdated,
		Unavailable: v.Unavailable,
		Connected:   v.Connected,
	}
}

// EnsureDomain normalizes an id to <domain>.<object_id> form; bare ids get
// the given default domain.
func EnsureDomain(domain, id string) string { return entity.EnsureDomain(domain, id) }

// Entity is a live handle on one entity id.
type Entity struct {
	inner *entity.Entity
}

// NewEntity binds a handle to an already-qualified entity id.
func NewEntity(s Session, entityID string) (*Entity, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	return &Entity{inner: entity.Bind(is, entityID)}, nil
}

// ID returns the bound entity identifier.
func (e *Entity) ID() string { return e.inner.ID() }

// View returns the current projection.
func (e *Entity) View() View { return internalToView(e.inner.View()) }

// Watch registers fn for this entity's changes and returns the
// deregistration handle.
func (e *Entity) Watch(fn func(View)) (unsubscribe func()) {
	return e.inner.Watch(func(v entity.View) { fn(internalToView(v)) })
}

// Refresh forces a re-fetch of hub state.
func (e *Entity) Refresh(ctx context.Context) error { return e.inner.Refresh(ctx) }

// CallService invokes a service of the entity's domain targeted at this
// entity.
func (e *Entity) CallService(ctx context.Context, service string, data map[string]any) error {
	return e.inner.CallService(ctx, service, data)
}

// CallServiceWithResponse invokes a service with a typed response and
// returns this entity's slice of the payload.
func (e *Entity) CallServiceWithResponse(ctx context.Context, service string, data map[string]any) (json.RawMessage, error) {
	return e.inner.CallServiceWithResponse(ctx, service, data)
}

// Light is a light-domain view over an Entity.
type Light struct {
	*Entity
	inner *entity.Light
}

// NewLight binds a light handle; bare ids are normalized into the light
// domain.
func NewLight(s Session, id string) (*Light, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	l := entity.NewLight(is, id)
	return &Light{Entity: &Entity{inner: l.Entity}, inner: l}, nil
}

// IsOn reports whether the light is on.
func (l *Light) IsOn() bool { return l.inner.IsOn() }

// Brightness returns the 0-255 brightness attribute.
func (l *Light) Brightness() (int, bool) { return l.inner.Brightness() }

// TurnOn turns the light on with optional service data.
func (l *Light) TurnOn(ctx context.Context, data map[string]any) error {
	return l.inner.TurnOn(ctx, data)
}

// TurnOff turns the light off.
func (l *Light) TurnOff(ctx context.Context) error { return l.inner.TurnOff(ctx) }

// Toggle flips the light's state.
func (l *Light) Toggle(ctx context.Context) error { return l.inner.Toggle(ctx) }

// Switch is a switch-domain view over an Entity.
type Switch struct {
	*Entity
	inner *entity.Switch
}

// NewSwitch binds a switch handle.
func NewSwitch(s Session, id string) (*Switch, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	sw := entity.NewSwitch(is, id)
	return &Switch{Entity: &Entity{inner: sw.Entity}, inner: sw}, nil
}

// IsOn reports whether the switch is on.
func (s *Switch) IsOn() bool { return s.inner.IsOn() }

// TurnOn turns the switch on.
func (s *Switch) TurnOn(ctx context.Context) error { return s.inner.TurnOn(ctx) }

// TurnOff turns the switch off.
func (s *Switch) TurnOff(ctx context.Context) error { return s.inner.TurnOff(ctx) }

// Toggle flips the switch.
func (s *Switch) Toggle(ctx context.Context) error { return s.inner.Toggle(ctx) }

// Sensor is a sensor-domain view over an Entity.
type Sensor struct {
	*Entity
	inner *entity.Sensor
}

// NewSensor binds a sensor handle.
func NewSensor(s Session, id string) (*Sensor, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	se := entity.NewSensor(is, id)
	return &Sensor{Entity: &Entity{inner: se.Entity}, inner: se}, nil
}

// Value parses the sensor state as a number.
func (s *Sensor) Value() (float64, error) { return s.inner.Value() }

// Unit returns the unit_of_measurement attribute.
func (s *Sensor) Unit() string { return s.inner.Unit() }

// BinarySensor is a binary_sensor-domain view over an Entity.
type BinarySensor struct {
	*Entity
	inner *entity.BinarySensor
}

// NewBinarySensor binds a binary_sensor handle.
func NewBinarySensor(s Session, id string) (*BinarySensor, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	b := entity.NewBinarySensor(is, id)
	return &BinarySensor{Entity: &Entity{inner: b.Entity}, inner: b}, nil
}

// IsOn reports whether the sensor reads on/detected.
func (b *BinarySensor) IsOn() bool { return b.inner.IsOn() }

// Cover is a cover-domain view over an Entity with capability gating.
type Cover struct {
	*Entity
	inner *entity.Cover
}

// NewCover binds a cover handle.
func NewCover(s Session, id string) (*Cover, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	c := entity.NewCover(is, id)
	return &Cover{Entity: &Entity{inner: c.Entity}, inner: c}, nil
}

// IsOpen reports whether the cover is fully open.
func (c *Cover) IsOpen() bool { return c.inner.IsOpen() }

// IsClosed reports whether the cover is fully closed.
func (c *Cover) IsClosed() bool { return c.inner.IsClosed() }

// Position returns the current_position attribute (0 closed, 100 open).
func (c *Cover) Position() (int, bool) { return c.inner.Position() }

// Open opens the cover, failing fast when the capability is missing.
func (c *Cover) Open(ctx context.Context) error { return c.inner.Open(ctx) }

// Close closes the cover, failing fast when the capability is missing.
func (c *Cover) Close(ctx context.Context) error { return c.inner.Close(ctx) }

// Stop halts cover movement, failing fast when the capability is missing.
func (c *Cover) Stop(ctx context.Context) error { return c.inner.Stop(ctx) }

// SetPosition moves the cover, failing fast when the capability is missing.
func (c *Cover) SetPosition(ctx context.Context, position int) error {
	return c.inner.SetPosition(ctx, position)
}

// TodoList is a todo-domain view over an Entity.
type TodoList struct {
	*Entity
	inner *entity.TodoList
}

// NewTodoList binds a todo handle.
func NewTodoList(s Session, id string) (*TodoList, error) {
	is := UnwrapSession(s)
	if is == nil {
		return nil, ErrForeignSession
	}
	t := entity.NewTodoList(is, id)
	return &TodoList{Entity: &Entity{inner: t.Entity}, inner: t}, nil
}

// Items fetches the list's entries via the call-with-response path.
func (t *TodoList) Items(ctx context.Context) ([]TodoItem, error) {
	items, err := t.inner.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TodoItem, len(items))
	for i, it := range items {
		out[i] = TodoItem{UID: it.UID, Summary: it.Summary, Status: it.Status, Due: it.Due}
	}
	return out, nil
}

// AddItem appends an item, failing fast when the list does not accept new
// items.
func (t *TodoList) AddItem(ctx context.Context, summary string) error {
	return t.inner.AddItem(ctx, summary)
}

// UpdateItem changes an item's status, failing fast when updates are
// unsupported.
func (t *TodoList) UpdateItem(ctx context.Context, uid, status string) error {
	return t.inner.UpdateItem(ctx, uid, status)
}

// RemoveItem deletes an item, failing fast when the list does not support
// deletion.
func (t *TodoList) RemoveItem(ctx context.Context, uid string) error {
	return t.inner.RemoveItem(ctx, uid)
}
