package ha

import (
	"context"
	"encoding/json"
)

// Transport is the boundary between the session layer and the wire. The real
// implementation is Client; MockTransport substitutes fixture data here so
// mock mode never reaches the store or subscriber layers as a special case.
//
// A Transport is single-use: once dropped or closed it is discarded and the
// supervisor builds a fresh one, which also resets the pending-call ledger
// and correlation counter as a unit.
type Transport interface {
	// Connect establishes the connection and performs the authentication
	// handshake, returning the authenticated user profile when the hub
	// reports one.
	Connect(ctx context.Context) (*User, error)

	// Close releases the connection. Pending calls fail with a connection
	// error. Close never triggers the drop handler.
	Close() error

	// Send writes a command without waiting for its result and returns the
	// correlation id it was assigned.
	Send(req Request) (int64, error)

	// Call writes a command and waits for the matching result frame. It
	// returns the hub's success payload, or a classified error: rejection,
	// timeout, or an immediate connection error when no connection exists.
	Call(ctx context.Context, req Request) (json.RawMessage, error)

	// SetHandlers installs the event and drop callbacks. Must be called
	// before Connect.
	SetHandlers(onEvent EventHandler, onDrop DropHandler)
}
