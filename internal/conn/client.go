// ABOUTME: Client is one live subscriber connection: identity, state, and its bounded outbound queue
// ABOUTME: Implements channel.Subscriber so the registry and broadcast engine never see the transport

package conn

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/channel"
)

// Client is one live subscriber connection accepted by the Connection
// Manager. The transport handle is unexported: nothing outside this package
// touches the websocket connection directly.
type Client struct {
	id          uuid.UUID
	channelName channel.Name
	userID      *string
	connectedAt time.Time
	conn        *websocket.Conn

	send      chan []byte
	evict     chan struct{}
	evictOnce sync.Once

	stateMu sync.RWMutex
	state   State
	closed  bool
}

// newClient constructs a Client in the Handshaking state. The outbound
// queue capacity comes from server config (outbound_queue_capacity).
func newClient(name channel.Name, userID *string, wsConn *websocket.Conn, queueCapacity int) *Client {
	return &Client{
		id:          uuid.New(),
		channelName: name,
		userID:      userID,
		connectedAt: time.Now(),
		conn:        wsConn,
		send:        make(chan []byte, queueCapacity),
		evict:       make(chan struct{}),
		state:       Handshaking,
	}
}

// ID returns the client's opaque identity. Satisfies channel.Subscriber.
func (c *Client) ID() uuid.UUID { return c.id }

// ChannelName returns the channel this client is subscribed to. Fixed for
// the client's lifetime per the "authorization decided once at subscribe
// time" invariant.
func (c *Client) ChannelName() channel.Name { return c.channelName }

// UserID returns the authenticated subject, or nil in anonymous mode.
func (c *Client) UserID() *string { return c.userID }

// ConnectedAt returns when this client was accepted.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState transitions the client to a new state.
func (c *Client) setState(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = s
}

// Enqueue attempts a non-blocking handoff onto the client's bounded
// outbound queue. Returns false if the queue is full (slow-consumer signal
// to the caller) or if the client's send side has already been closed.
// Satisfies channel.Subscriber.
func (c *Client) Enqueue(payload []byte) bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Evict signals the Connection Manager's receive loop to close this
// connection with a slow-consumer reason. Safe to call more than once or
// concurrently with itself; only the first call has an effect. Satisfies
// channel.Subscriber.
func (c *Client) Evict() {
	c.evictOnce.Do(func() { close(c.evict) })
}

// Evicted returns a channel that closes once Evict has been called.
func (c *Client) Evicted() <-chan struct{} {
	return c.evict
}

// closeSend closes the outbound queue exactly once, synchronized against
// concurrent Enqueue calls so no goroutine ever sends on a closed channel.
func (c *Client) closeSend() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
