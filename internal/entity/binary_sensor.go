package entity

// BinarySensor projects a binary_sensor entity.
type BinarySensor struct {
	*Entity
}

// NewBinarySensor binds a binary_sensor handle, normalizing bare ids into
// the binary_sensor domain.
func NewBinarySensor(sess Session, id string) *BinarySensor {
	return &BinarySensor{Entity: Bind(sess, EnsureDomain("binary_sensor", id))}
}

// IsOn reports whether the sensor reads on/detected.
func (b *BinarySensor) IsOn() bool {
	return b.View().State == "on"
}

// DeviceClass returns the device_class attribute, "" when absent.
func (b *BinarySensor) DeviceClass() string {
	c, _ := StringAttr(b.View(), "device_class")
	return c
}
