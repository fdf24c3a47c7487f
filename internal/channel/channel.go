// ABOUTME: Channel value type and the Subscriber contract the registry fans out to
// ABOUTME: Subscriber is intentionally minimal so internal/conn can implement it without an import cycle

package channel

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is anything the registry can hold a membership slot for and the
// broadcast engine can deliver a framed payload to. internal/conn.Client
// implements this; the registry and broadcast engine never need to know
// about websocket connections, heartbeats, or send queues.
type Subscriber interface {
	// ID returns the subscriber's opaque identity.
	ID() uuid.UUID
	// Enqueue attempts a non-blocking handoff of an already-framed outbound
	// payload. It returns false if the subscriber's outbound queue is full
	// or the subscriber has already terminated; the caller must treat false
	// as "dropped", not as an error to retry.
	Enqueue(payload []byte) bool
	// Evict signals that a delivery to this subscriber was dropped because
	// its outbound queue was full. The subscriber is responsible for
	// closing its own transport with a slow-consumer reason; Evict must be
	// safe to call more than once.
	Evict()
}

// Channel is a named delivery partition. Identity is ID; Name and CreatedAt
// are fixed at construction.
type Channel struct {
	id        uuid.UUID
	name      Name
	createdAt time.Time
	ephemeral bool
}

// New constructs a Channel for the given name. Ephemeral channels are
// candidates for removal by the registry once their subscriber set is empty
// and a grace period has elapsed; non-ephemeral channels persist for the
// life of the process once created.
func New(name Name, ephemeral bool) Channel {
	return Channel{
		id:        uuid.New(),
		name:      name,
		createdAt: time.Now(),
		ephemeral: ephemeral,
	}
}

// ID returns the channel's opaque identity.
func (c Channel) ID() uuid.UUID { return c.id }

// Name returns the channel's validated name.
func (c Channel) Name() Name { return c.name }

// CreatedAt returns the channel's creation timestamp.
func (c Channel) CreatedAt() time.Time { return c.createdAt }

// Ephemeral reports whether this channel is a candidate for grace-period
// removal once its subscriber set empties.
func (c Channel) Ephemeral() bool { return c.ephemeral }
