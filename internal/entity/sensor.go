package entity

import (
	"strconv"

	"github.com/dlwiest/hass-go/internal/haerr"
)

// Sensor projects a sensor entity into a parsed numeric value.
type Sensor struct {
	*Entity
}

// NewSensor binds a sensor handle, normalizing bare ids into the sensor
// domain.
func NewSensor(sess Session, id string) *Sensor {
	return &Sensor{Entity: Bind(sess, EnsureDomain("sensor", id))}
}

// Value parses the state as a number. Unavailable sensors and non-numeric
// states return an error rather than a zero that looks like a reading.
func (s *Sensor) Value() (float64, error) {
	v := s.View()
	if v.Unavailable {
		return 0, haerr.Newf(haerr.KindCallRejected, "%s is unavailable", s.ID())
	}
	n, err := strconv.ParseFloat(v.State, 64)
	if err != nil {
		return 0, haerr.Newf(haerr.KindCallRejected, "%s state %q is not numeric", s.ID(), v.State)
	}
	return n, nil
}

// Unit returns the unit_of_measurement attribute, "" when absent.
func (s *Sensor) Unit() string {
	u, _ := StringAttr(s.View(), "unit_of_measurement")
	return u
}
