// Package ha implements the transport session: one WebSocket connection to a
// Home Assistant instance, the authentication handshake, and the correlation
// of outbound commands with inbound result frames.
package ha

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/clock"
	"github.com/dlwiest/hass-go/internal/haerr"
)

// DefaultCallTimeout bounds how long Call waits for a matching result frame.
const DefaultCallTimeout = 10 * time.Second

type pendingCall struct {
	ch     chan Message
	issued time.Time
}

// Client is the WebSocket Transport implementation.
type Client struct {
	url         string
	token       string
	logger      *zap.Logger
	clk         clock.Clock
	callTimeout time.Duration

	onEvent EventHandler
	onDrop  DropHandler

	writeMu sync.Mutex // serializes websocket writes

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	nextID    int64
	pending   map[int64]*pendingCall
	done      chan struct{}
}

// Option customizes a Client.
type Option func(*Client)

// WithClock substitutes the clock used for call timeouts.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

// WithCallTimeout overrides the per-call response bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// NewClient creates a transport session for the hub's WebSocket endpoint.
// The client is single-use; after a drop or Close, build a new one.
func NewClient(url, token string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url:         url,
		token:       token,
		logger:      logger,
		clk:         clock.NewRealClock(),
		callTimeout: DefaultCallTimeout,
		pending:     make(map[int64]*pendingCall),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHandlers installs the event and drop callbacks. Must be called before
// Connect.
func (c *Client) SetHandlers(onEvent EventHandler, onDrop DropHandler) {
	c.onEvent = onEvent
	c.onDrop = onDrop
}

// Connect dials the hub, performs the authentication handshake, and starts
// the receive loop. A rejected credential returns a KindAuth error so the
// supervisor knows not to retry with the same token.
func (c *Client) Connect(ctx context.Context) (*User, error) {
	c.mu.Lock()
	if c.connected || c.closed {
		c.mu.Unlock()
		return nil, haerr.New(haerr.KindConnection, "transport already used")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, haerr.Wrap(haerr.KindConnection, err, "failed to dial hub")
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.receiveLoop(conn)

	c.logger.Info("Connected to Home Assistant", zap.String("url", c.url))

	// The profile is informational; a hub that rejects the command still
	// leaves us with a usable session.
	user, err := c.currentUser(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch current user", zap.Error(err))
		return nil, nil
	}
	return user, nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	var required Message
	if err := conn.ReadJSON(&required); err != nil {
		return haerr.Wrap(haerr.KindConnection, err, "failed to read auth_required")
	}
	if required.Type != "auth_required" {
		return haerr.Newf(haerr.KindConnection, "expected auth_required, got %s", required.Type)
	}

	if err := conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return haerr.Wrap(haerr.KindConnection, err, "failed to send auth")
	}

	var resp Message
	if err := conn.ReadJSON(&resp); err != nil {
		return haerr.Wrap(haerr.KindConnection, err, "failed to read auth response")
	}
	switch resp.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return haerr.New(haerr.KindAuth, "hub rejected access token")
	default:
		return haerr.Newf(haerr.KindConnection, "expected auth_ok, got %s", resp.Type)
	}
}

func (c *Client) currentUser(ctx context.Context) (*User, error) {
	result, err := c.Call(ctx, &CurrentUserRequest{Type: "auth/current_user"})
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(result, &user); err != nil {
		return nil, haerr.Wrap(haerr.KindConnection, err, "failed to decode user profile")
	}
	return &user, nil
}

// Close releases the connection. It never invokes the drop handler; an
// explicit close is not a failure.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}

	c.clearPending()
	c.logger.Info("Disconnected from Home Assistant")
	return nil
}

// assignID hands out the next correlation id. Ids increase monotonically and
// are never reused within this transport's lifetime, so a late result for a
// timed-out call can never be matched to a different request.
func (c *Client) assignID(req Request) int64 {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	req.setID(id)
	return id
}

// Send writes a command without waiting for its result.
func (c *Client) Send(req Request) (int64, error) {
	c.mu.Lock()
	conn := c.conn
	ok := c.connected
	c.mu.Unlock()
	if !ok {
		return 0, haerr.New(haerr.KindConnection, "not connected")
	}

	id := c.assignID(req)
	if err := c.writeJSON(conn, req); err != nil {
		return 0, err
	}
	return id, nil
}

// Call writes a command and waits for its result frame. It fails immediately
// when no connection exists, with a KindTimeout error when the bound passes,
// or with a KindCallRejected error when the hub refuses the command.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, haerr.New(haerr.KindConnection, "not connected")
	}
	conn := c.conn
	c.nextID++
	id := c.nextID
	pc := &pendingCall{ch: make(chan Message, 1), issued: c.clk.Now()}
	c.pending[id] = pc
	c.mu.Unlock()

	req.setID(id)

	if err := c.writeJSON(conn, req); err != nil {
		c.removePending(id)
		return nil, err
	}

	select {
	case resp := <-pc.ch:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, haerr.Rejected(resp.Error.Code, resp.Error.Message)
			}
			return nil, haerr.New(haerr.KindCallRejected, "request failed")
		}
		return resp.Result, nil
	case <-c.clk.After(c.callTimeout):
		c.removePending(id)
		return nil, haerr.Newf(haerr.KindTimeout, "no response within %s (id %d)", c.callTimeout, id)
	case <-ctx.Done():
		c.removePending(id)
		return nil, haerr.Wrap(haerr.KindConnection, ctx.Err(), "call canceled")
	case <-c.done:
		return nil, haerr.New(haerr.KindConnection, "connection lost")
	}
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return haerr.Wrap(haerr.KindConnection, err, "failed to write message")
	}
	return nil
}

func (c *Client) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// clearPending empties the ledger. Waiters are released through the closed
// done channel and observe a connection error.
func (c *Client) clearPending() {
	c.mu.Lock()
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()
}

// receiveLoop reads frames until the connection fails. It runs on a single
// goroutine, so events reach the handler in the order the hub emitted them.
func (c *Client) receiveLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleReadError(err)
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		if msg.ID > 0 {
			c.mu.Lock()
			pc, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()

			if !ok {
				// A result for a call that already timed out. The id is
				// retired, so dropping the frame is safe.
				c.logger.Debug("Discarding response for expired call", zap.Int64("msg_id", msg.ID))
				continue
			}
			pc.ch <- msg
		}
	}
}

func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var ev StateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &ev); err != nil {
		c.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *Client) handleReadError(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	close(c.done)
	c.mu.Unlock()

	dropErr := haerr.Wrap(haerr.KindConnection, err, "connection lost")
	c.clearPending()
	c.logger.Warn("Connection lost", zap.Error(err))

	if c.onDrop != nil {
		c.onDrop(dropErr)
	}
}
