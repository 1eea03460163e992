// Package entity binds consumers to single entities: each handle watches
// exactly one entity id, projects the raw store record into a stable view,
// and exposes service calls scoped to that entity. Domain types (Light,
// Cover, TodoList, ...) layer pure derived fields on top without duplicating
// any subscription logic.
package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/haerr"
	"github.com/dlwiest/hass-go/internal/store"
)

// Session is the slice of the session layer an entity handle needs. The
// concrete implementation is session.Session.
type Session interface {
	Store() *store.Store
	Connected() bool
	Err() error
	Refresh(ctx context.Context) error
	CallService(ctx context.Context, domain, service string, data map[string]any, target ...string) error
	CallServiceWithResponse(ctx context.Context, domain, service string, data map[string]any, target ...string) (map[string]json.RawMessage, error)
}

// View is a point-in-time projection of one entity record. Unavailable is a
// normal state, not an error: an entity the hub has never reported renders
// as unavailable immediately instead of blocking.
type View struct {
	EntityID    string
	State       string
	Attributes  map[string]any
	LastChanged time.Time
	LastUpdated time.Time
	Context     *ha.Context
	Unavailable bool
	Connected   bool
}

func makeView(sess Session, rec ha.State) View {
	return View{
		EntityID:    rec.EntityID,
		State:       rec.State,
		Attributes:  rec.Attributes,
		LastChanged: rec.LastChanged,
		LastUpdated: rec.LastUpdated,
		Context:     rec.Context,
		Unavailable: store.IsUnavailable(rec),
		Connected:   sess.Connected(),
	}
}

// Entity is a live handle on one entity id.
type Entity struct {
	sess Session
	id   string
}

// Bind creates a handle for entityID, which must already be in
// <domain>.<object_id> form. Domain constructors normalize bare ids first.
func Bind(sess Session, entityID string) *Entity {
	return &Entity{sess: sess, id: entityID}
}

// ID returns the entity identifier the handle is bound to.
func (e *Entity) ID() string { return e.id }

// View returns the current projection, derived only from the record and the
// connection state.
func (e *Entity) View() View {
	return makeView(e.sess, e.sess.Store().Get(e.id))
}

// Watch registers fn for changes to this entity and returns the
// deregistration handle. fn fires once per incoming event for the entity,
// never for other entities' changes.
func (e *Entity) Watch(fn func(View)) (unsubscribe func()) {
	return e.sess.Store().Watch(e.id, func(rec ha.State) {
		fn(makeView(e.sess, rec))
	})
}

// Refresh forces a re-fetch of hub state.
func (e *Entity) Refresh(ctx context.Context) error {
	return e.sess.Refresh(ctx)
}

// CallService invokes a service of the entity's own domain, targeted at this
// entity.
func (e *Entity) CallService(ctx context.Context, service string, data map[string]any) error {
	return e.sess.CallService(ctx, Domain(e.id), service, data, e.id)
}

// CallServiceWithResponse invokes a service with a typed response and
// returns this entity's slice of the payload. A response that lacks the
// entity's key is an explicit failure, never silently empty.
func (e *Entity) CallServiceWithResponse(ctx context.Context, service string, data map[string]any) (json.RawMessage, error) {
	resp, err := e.sess.CallServiceWithResponse(ctx, Domain(e.id), service, data, e.id)
	if err != nil {
		return nil, err
	}
	return ResponseFor(resp, e.id)
}

// ResponseFor indexes a call-with-response payload by entity id.
func ResponseFor(resp map[string]json.RawMessage, entityID string) (json.RawMessage, error) {
	raw, ok := resp[entityID]
	if !ok {
		return nil, haerr.Newf(haerr.KindCallRejected,
			"response has no payload for %s", entityID)
	}
	return raw, nil
}

// requireFeature fails fast, before any network call, when the entity's
// capability bitmask lacks the given feature bit.
func (e *Entity) requireFeature(bit int64, name string) error {
	if SupportedFeatures(e.View())&bit == 0 {
		return haerr.Newf(haerr.KindFeatureNotSupported,
			"%s does not support %s", e.id, name)
	}
	return nil
}
