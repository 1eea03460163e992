package entity

import "context"

// Switch projects a switch entity.
type Switch struct {
	*Entity
}

// NewSwitch binds a switch handle, normalizing bare ids into the switch
// domain.
func NewSwitch(sess Session, id string) *Switch {
	return &Switch{Entity: Bind(sess, EnsureDomain("switch", id))}
}

// IsOn reports whether the switch is on.
func (s *Switch) IsOn() bool {
	return s.View().State == "on"
}

// TurnOn turns the switch on.
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.CallService(ctx, "turn_on", nil)
}

// TurnOff turns the switch off.
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.CallService(ctx, "turn_off", nil)
}

// Toggle flips the switch.
func (s *Switch) Toggle(ctx context.Context) error {
	return s.CallService(ctx, "toggle", nil)
}
