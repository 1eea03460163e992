package entity

import "context"

// Light projects a light entity: on/off plus brightness, with turn_on,
// turn_off, and toggle bound to the entity.
type Light struct {
	*Entity
}

// NewLight binds a light handle. A bare id is normalized into the light
// domain ("kitchen" becomes "light.kitchen").
func NewLight(sess Session, id string) *Light {
	return &Light{Entity: Bind(sess, EnsureDomain("light", id))}
}

// IsOn reports whether the light is on. Derived purely from the record.
func (l *Light) IsOn() bool {
	return l.View().State == "on"
}

// Brightness returns the 0-255 brightness attribute. ok is false when the
// light is off or the attribute is absent.
func (l *Light) Brightness() (int, bool) {
	n, ok := NumberAttr(l.View(), "brightness")
	if !ok {
		return 0, false
	}
	return int(n), true
}

// TurnOn turns the light on. data carries optional service data such as
// brightness or color_temp.
func (l *Light) TurnOn(ctx context.Context, data map[string]any) error {
	return l.CallService(ctx, "turn_on", data)
}

// TurnOff turns the light off.
func (l *Light) TurnOff(ctx context.Context) error {
	return l.CallService(ctx, "turn_off", nil)
}

// Toggle flips the light's state.
func (l *Light) Toggle(ctx context.Context) error {
	return l.CallService(ctx, "toggle", nil)
}
