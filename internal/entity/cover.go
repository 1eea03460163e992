package entity

import "context"

// Cover capability bits, matching the hub's CoverEntityFeature bitmask.
const (
	CoverSupportsOpen        int64 = 1
	CoverSupportsClose       int64 = 2
	CoverSupportsSetPosition int64 = 4
	CoverSupportsStop        int64 = 8
)

// Cover projects a cover entity (garage door, blind, shade) with capability
// gating: unsupported operations fail locally before any command is sent.
type Cover struct {
	*Entity
}

// NewCover binds a cover handle, normalizing bare ids into the cover domain.
func NewCover(sess Session, id string) *Cover {
	return &Cover{Entity: Bind(sess, EnsureDomain("cover", id))}
}

// IsOpen reports whether the cover is fully open.
func (c *Cover) IsOpen() bool { return c.View().State == "open" }

// IsClosed reports whether the cover is fully closed.
func (c *Cover) IsClosed() bool { return c.View().State == "closed" }

// Position returns the current_position attribute (0 closed, 100 open).
func (c *Cover) Position() (int, bool) {
	n, ok := NumberAttr(c.View(), "current_position")
	if !ok {
		return 0, false
	}
	return int(n), true
}

// SupportsOpen reports whether the cover can be opened remotely.
func (c *Cover) SupportsOpen() bool {
	return SupportedFeatures(c.View())&CoverSupportsOpen != 0
}

// SupportsClose reports whether the cover can be closed remotely.
func (c *Cover) SupportsClose() bool {
	return SupportedFeatures(c.View())&CoverSupportsClose != 0
}

// SupportsSetPosition reports whether the cover accepts a target position.
func (c *Cover) SupportsSetPosition() bool {
	return SupportedFeatures(c.View())&CoverSupportsSetPosition != 0
}

// Open opens the cover, failing fast when the capability is missing.
func (c *Cover) Open(ctx context.Context) error {
	if err := c.requireFeature(CoverSupportsOpen, "open_cover"); err != nil {
		return err
	}
	return c.CallService(ctx, "open_cover", nil)
}

// Close closes the cover, failing fast when the capability is missing.
func (c *Cover) Close(ctx context.Context) error {
	if err := c.requireFeature(CoverSupportsClose, "close_cover"); err != nil {
		return err
	}
	return c.CallService(ctx, "close_cover", nil)
}

// Stop halts cover movement, failing fast when the capability is missing.
func (c *Cover) Stop(ctx context.Context) error {
	if err := c.requireFeature(CoverSupportsStop, "stop_cover"); err != nil {
		return err
	}
	return c.CallService(ctx, "stop_cover", nil)
}

// SetPosition moves the cover to position (0-100), failing fast when the
// capability is missing.
func (c *Cover) SetPosition(ctx context.Context, position int) error {
	if err := c.requireFeature(CoverSupportsSetPosition, "set_cover_position"); err != nil {
		return err
	}
	return c.CallService(ctx, "set_cover_position", map[string]any{"position": position})
}
