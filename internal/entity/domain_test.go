package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureDomain(t *testing.T) {
	assert.Equal(t, "light.kitchen", EnsureDomain("light", "kitchen"))
	assert.Equal(t, "light.kitchen", EnsureDomain("light", "light.kitchen"))

	// Already-qualified ids pass through even when the domain differs.
	assert.Equal(t, "switch.kitchen", EnsureDomain("light", "switch.kitchen"))
}

func TestDomainAndObjectID(t *testing.T) {
	assert.Equal(t, "light", Domain("light.kitchen"))
	assert.Equal(t, "kitchen", ObjectID("light.kitchen"))

	assert.Equal(t, "", Domain("kitchen"))
	assert.Equal(t, "kitchen", ObjectID("kitchen"))
}

func TestSupportedFeatures(t *testing.T) {
	assert.Equal(t, int64(15), SupportedFeatures(View{
		Attributes: map[string]any{"supported_features": float64(15)},
	}))
	assert.Equal(t, int64(3), SupportedFeatures(View{
		Attributes: map[string]any{"supported_features": int64(3)},
	}))
	assert.Equal(t, int64(7), SupportedFeatures(View{
		Attributes: map[string]any{"supported_features": 7},
	}))

	// Missing or malformed bitmasks fail closed.
	assert.Equal(t, int64(0), SupportedFeatures(View{Attributes: map[string]any{}}))
	assert.Equal(t, int64(0), SupportedFeatures(View{
		Attributes: map[string]any{"supported_features": "15"},
	}))
}

func TestNumberAttr(t *testing.T) {
	v := View{Attributes: map[string]any{
		"brightness": float64(128),
		"count":      3,
		"name":       "kitchen",
	}}

	n, ok := NumberAttr(v, "brightness")
	assert.True(t, ok)
	assert.Equal(t, float64(128), n)

	n, ok = NumberAttr(v, "count")
	assert.True(t, ok)
	assert.Equal(t, float64(3), n)

	_, ok = NumberAttr(v, "name")
	assert.False(t, ok)
	_, ok = NumberAttr(v, "missing")
	assert.False(t, ok)
}

func TestStringAttr(t *testing.T) {
	v := View{Attributes: map[string]any{
		"unit_of_measurement": "°C",
		"brightness":          float64(128),
	}}

	s, ok := StringAttr(v, "unit_of_measurement")
	assert.True(t, ok)
	assert.Equal(t, "°C", s)

	_, ok = StringAttr(v, "brightness")
	assert.False(t, ok)
}
