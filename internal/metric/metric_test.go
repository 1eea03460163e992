package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.SetConnected(true)
	m.IncEventsApplied()
	m.IncReconnectAttempts()
	m.ObserveCall("light", "turn_on", time.Second, "timeout")
}

func TestRegisterAndObserve(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.SetConnected(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionStatus))
	m.SetConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ConnectionStatus))

	m.IncEventsApplied()
	m.IncEventsApplied()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsApplied))

	m.ObserveCall("light", "turn_on", 50*time.Millisecond, "")
	m.ObserveCall("light", "turn_on", 50*time.Millisecond, "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallErrors.WithLabelValues("timeout")))

	// Double registration is rejected by the registry.
	require.Error(t, m.Register(reg))
}
