package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/ha"
)

func newState(entityID, value string) ha.State {
	now := time.Now()
	return ha.State{
		EntityID:    entityID,
		State:       value,
		Attributes:  map[string]any{},
		LastChanged: now,
		LastUpdated: now,
	}
}

func TestGetUnknownReturnsSentinel(t *testing.T) {
	s := New(zap.NewNop())

	rec := s.Get("sensor.never_seen")
	assert.Equal(t, "sensor.never_seen", rec.EntityID)
	assert.Equal(t, StateUnavailable, rec.State)
	assert.True(t, IsUnavailable(rec))
}

func TestApplyLastWriteWins(t *testing.T) {
	s := New(zap.NewNop())

	s.Apply(newState("sensor.temp", "20.0"))
	s.Apply(newState("sensor.temp", "21.0"))

	assert.Equal(t, "21.0", s.Get("sensor.temp").State)
	assert.Equal(t, 1, s.Len())

	// Applying only the later event yields the same final record value.
	s2 := New(zap.NewNop())
	s2.Apply(newState("sensor.temp", "21.0"))
	assert.Equal(t, s2.Get("sensor.temp").State, s.Get("sensor.temp").State)
}

func TestWatchNotifiesOnlyMatchingEntity(t *testing.T) {
	s := New(zap.NewNop())

	var matched, others int
	for i := 0; i < 5; i++ {
		s.Watch("light.other", func(ha.State) { others++ })
	}
	s.Watch("light.kitchen", func(ha.State) { matched++ })

	s.Apply(newState("light.kitchen", "on"))

	assert.Equal(t, 1, matched)
	assert.Equal(t, 0, others)
}

func TestWatchSeesFullyReplacedRecord(t *testing.T) {
	s := New(zap.NewNop())
	s.Apply(newState("light.kitchen", "off"))

	var observed []string
	s.Watch("light.kitchen", func(rec ha.State) {
		// The store must already hold the new record when the watcher runs.
		observed = append(observed, rec.State, s.Get("light.kitchen").State)
	})

	s.Apply(newState("light.kitchen", "on"))
	assert.Equal(t, []string{"on", "on"}, observed)
}

func TestDuplicateEventsPassThrough(t *testing.T) {
	s := New(zap.NewNop())

	fired := 0
	s.Watch("sensor.temp", func(ha.State) { fired++ })

	s.Apply(newState("sensor.temp", "21.0"))
	s.Apply(newState("sensor.temp", "21.0"))

	// One notification per incoming event; the store does not deduplicate.
	assert.Equal(t, 2, fired)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := New(zap.NewNop())

	fired := 0
	unsub := s.Watch("light.kitchen", func(ha.State) { fired++ })
	s.Apply(newState("light.kitchen", "on"))
	require.Equal(t, 1, fired)

	unsub()
	s.Apply(newState("light.kitchen", "off"))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.WatcherCount("light.kitchen"))

	// Unsubscribing twice is harmless.
	unsub()
}

func TestUnsubscribeOnlyRemovesOwnRegistration(t *testing.T) {
	s := New(zap.NewNop())

	var first, second int
	unsub1 := s.Watch("light.kitchen", func(ha.State) { first++ })
	s.Watch("light.kitchen", func(ha.State) { second++ })

	unsub1()
	s.Apply(newState("light.kitchen", "on"))

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestApplyEventNilNewStateMarksUnavailable(t *testing.T) {
	s := New(zap.NewNop())
	s.Apply(newState("light.kitchen", "on"))

	s.ApplyEvent(ha.StateChangedEvent{EntityID: "light.kitchen", NewState: nil})

	rec := s.Get("light.kitchen")
	assert.True(t, IsUnavailable(rec))
}

func TestResetClearsAndNotifies(t *testing.T) {
	s := New(zap.NewNop())
	s.Apply(newState("light.kitchen", "on"))
	s.Apply(newState("sensor.temp", "21.0"))

	var kitchen, temp []string
	s.Watch("light.kitchen", func(rec ha.State) { kitchen = append(kitchen, rec.State) })
	s.Watch("sensor.temp", func(rec ha.State) { temp = append(temp, rec.State) })

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []string{StateUnavailable}, kitchen)
	assert.Equal(t, []string{StateUnavailable}, temp)

	// Registrations survive the reset.
	s.Apply(newState("light.kitchen", "on"))
	assert.Equal(t, []string{StateUnavailable, "on"}, kitchen)
}

func TestMarkUnavailableRetainsAttributes(t *testing.T) {
	s := New(zap.NewNop())
	st := newState("light.kitchen", "on")
	st.Attributes["brightness"] = float64(128)
	s.Apply(st)

	fired := 0
	s.Watch("light.kitchen", func(ha.State) { fired++ })

	s.MarkUnavailable()

	rec := s.Get("light.kitchen")
	assert.True(t, IsUnavailable(rec))
	assert.Equal(t, float64(128), rec.Attributes["brightness"])
	assert.Equal(t, 1, fired)

	// Already-unavailable records are not re-flagged.
	s.MarkUnavailable()
	assert.Equal(t, 1, fired)
}
