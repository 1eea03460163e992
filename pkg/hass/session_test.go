package hass_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlwiest/hass-go/pkg/hass"
	"github.com/dlwiest/hass-go/pkg/testutil"
)

const testToken = "integration_token"

func newConnectedSession(t *testing.T, server *testutil.MockHAServer) hass.Session {
	t.Helper()
	sess, err := hass.NewSession(hass.Config{
		URL:        server.URL(),
		Token:      testToken,
		MinBackoff: 50 * time.Millisecond,
		MaxBackoff: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	require.NoError(t, sess.Connect(context.Background()))
	return sess
}

func TestSessionEndToEnd(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("light.kitchen", "off", map[string]any{"brightness": float64(0)})
	server.SetState("sensor.temp", "21.5", map[string]any{"unit_of_measurement": "°C"})

	sess := newConnectedSession(t, server)

	assert.Equal(t, hass.StatusConnected, sess.Status())
	assert.True(t, sess.Connected())
	require.NotNil(t, sess.User())
	assert.Equal(t, "Mock User", sess.User().Name)

	// The store is primed from the snapshot.
	rec := sess.Get("light.kitchen")
	assert.Equal(t, "off", rec.State)
	assert.False(t, rec.Unavailable)

	// Pushed changes reach watchers.
	var mu sync.Mutex
	var seen []string
	unsub := sess.Watch("light.kitchen", func(st hass.State) {
		mu.Lock()
		seen = append(seen, st.State)
		mu.Unlock()
	})
	defer unsub()

	server.SetState("light.kitchen", "on", map[string]any{"brightness": float64(128)})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "on"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "on", sess.Get("light.kitchen").State)

	// Service calls reach the hub with their target.
	require.NoError(t, sess.CallService(context.Background(), "light", "turn_off",
		map[string]any{"transition": float64(2)}, "light.kitchen"))
	calls := server.GetServiceCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "light", calls[0].Domain)
	assert.Equal(t, "turn_off", calls[0].Service)
	assert.Equal(t, []string{"light.kitchen"}, calls[0].Target)
}

func TestSessionRejectedCall(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()

	sess := newConnectedSession(t, server)

	server.FailNextCall("not_found", "entity light.nope does not exist")
	err := sess.CallService(context.Background(), "light", "turn_on", nil, "light.nope")
	require.Error(t, err)
	assert.True(t, hass.IsCallRejectedError(err))
	assert.Contains(t, err.Error(), "not_found")

	// The rejection does not disturb the session.
	assert.Equal(t, hass.StatusConnected, sess.Status())
}

func TestSessionAuthFailure(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.RejectAuth(true)

	sess, err := hass.NewSession(hass.Config{URL: server.URL(), Token: testToken})
	require.NoError(t, err)
	defer sess.Close()

	err = sess.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, hass.IsAuthError(err))
	assert.Equal(t, hass.StatusFailed, sess.Status())
	assert.Error(t, sess.Err())
}

func TestSessionReconnects(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("light.kitchen", "on", nil)

	sess := newConnectedSession(t, server)

	var mu sync.Mutex
	var statuses []hass.Status
	unsub := sess.WatchStatus(func(st hass.Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})
	defer unsub()

	server.DropConnections()

	require.Eventually(t, sess.Connected, 5*time.Second, 20*time.Millisecond)

	// The supervisor went through reconnecting and the store was re-primed.
	mu.Lock()
	assert.Contains(t, statuses, hass.StatusReconnecting)
	assert.Contains(t, statuses, hass.StatusConnected)
	mu.Unlock()
	assert.Equal(t, "on", sess.Get("light.kitchen").State)
}

func TestSessionCallWithResponse(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("todo.groceries", "2", map[string]any{"supported_features": float64(1)})
	require.NoError(t, server.SetResponse("todo", "get_items", "todo.groceries", map[string]any{
		"items": []map[string]any{
			{"uid": "1", "summary": "Buy milk", "status": "needs_action"},
			{"uid": "2", "summary": "Water plants", "status": "completed"},
		},
	}))

	sess := newConnectedSession(t, server)

	list, err := hass.NewTodoList(sess, "groceries")
	require.NoError(t, err)

	items, err := list.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Buy milk", items[0].Summary)
	assert.Equal(t, "needs_action", items[0].Status)
}

func TestSessionRefresh(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("sensor.temp", "20.0", nil)

	sess := newConnectedSession(t, server)
	require.Equal(t, "20.0", sess.Get("sensor.temp").State)

	// SetState pushes an event too, so clear the record's history by just
	// asserting Refresh converges on the latest server table.
	server.SetState("sensor.temp", "25.0", nil)
	require.NoError(t, sess.Refresh(context.Background()))
	assert.Equal(t, "25.0", sess.Get("sensor.temp").State)
}

func TestEntityHandlesOverLiveSession(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("light.kitchen", "on", map[string]any{"brightness": float64(200)})
	server.SetState("cover.garage_door", "closed", map[string]any{"supported_features": float64(3)})

	sess := newConnectedSession(t, server)

	light, err := hass.NewLight(sess, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "light.kitchen", light.ID())
	assert.True(t, light.IsOn())
	b, ok := light.Brightness()
	assert.True(t, ok)
	assert.Equal(t, 200, b)

	cover, err := hass.NewCover(sess, "garage_door")
	require.NoError(t, err)
	assert.True(t, cover.IsClosed())

	// The unsupported capability fails before the wire.
	err = cover.SetPosition(context.Background(), 50)
	require.Error(t, err)
	assert.True(t, hass.IsFeatureNotSupportedError(err))
	assert.Empty(t, server.GetServiceCalls())

	require.NoError(t, cover.Open(context.Background()))
	calls := server.GetServiceCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "open_cover", calls[0].Service)
}

func TestCoverStopAndTodoRemoveItem(t *testing.T) {
	server := testutil.NewMockHAServer(testToken)
	defer server.Close()
	server.SetState("cover.garage_door", "opening", map[string]any{"supported_features": float64(11)})
	server.SetState("todo.groceries", "1", map[string]any{"supported_features": float64(2)})
	server.SetState("todo.chores", "0", map[string]any{"supported_features": float64(1)})

	sess := newConnectedSession(t, server)

	cover, err := hass.NewCover(sess, "garage_door")
	require.NoError(t, err)
	require.NoError(t, cover.Stop(context.Background()))

	list, err := hass.NewTodoList(sess, "groceries")
	require.NoError(t, err)
	require.NoError(t, list.RemoveItem(context.Background(), "1"))

	calls := server.GetServiceCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "stop_cover", calls[0].Service)
	assert.Equal(t, []string{"cover.garage_door"}, calls[0].Target)
	assert.Equal(t, "remove_item", calls[1].Service)
	assert.Equal(t, map[string]any{"item": "1"}, calls[1].Data)

	// Both remain gated: a list without delete support fails locally.
	chores, err := hass.NewTodoList(sess, "chores")
	require.NoError(t, err)
	err = chores.RemoveItem(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, hass.IsFeatureNotSupportedError(err))
}

func TestMockModeNeedsNoServer(t *testing.T) {
	sess, err := hass.NewSession(hass.Config{
		MockMode: true,
		MockStates: []hass.State{{
			EntityID:   "light.kitchen",
			State:      "on",
			Attributes: map[string]any{"brightness": float64(128)},
		}},
		MockUser: &hass.User{ID: "mock", Name: "Fixture User"},
	})
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Connect(context.Background()))
	assert.Equal(t, hass.StatusConnected, sess.Status())
	assert.Equal(t, "on", sess.Get("light.kitchen").State)
	require.NotNil(t, sess.User())
	assert.Equal(t, "Fixture User", sess.User().Name)

	// Unknown entities are unavailable, not errors.
	assert.True(t, sess.Get("sensor.never_seen").Unavailable)
}

// foreignSession implements hass.Session without going through NewSession.
type foreignSession struct{ hass.Session }

func TestEntityRejectsForeignSession(t *testing.T) {
	_, err := hass.NewLight(&foreignSession{}, "kitchen")
	assert.ErrorIs(t, err, hass.ErrForeignSession)

	_, err = hass.NewEntity(&foreignSession{}, "light.kitchen")
	assert.ErrorIs(t, err, hass.ErrForeignSession)
}
