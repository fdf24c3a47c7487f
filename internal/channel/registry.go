// ABOUTME: Channel Registry: the authoritative channel_name -> subscriber-set mapping
// ABOUTME: Two-tier RWMutex (registry-level plus per-channel) so fan-out never blocks unrelated channels

package channel

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownChannel is returned when an operation names a channel that has
// no registry entry.
var ErrUnknownChannel = errors.New("channel: unknown channel")

// ErrChannelFull is returned by Subscribe when name's subscriber set is
// already at its configured per-channel capacity.
var ErrChannelFull = errors.New("channel: channel is at capacity")

// ErrGlobalCapacityExceeded is returned by Subscribe when the registry's
// total subscriber count is already at its configured global capacity.
var ErrGlobalCapacityExceeded = errors.New("channel: global client capacity exceeded")

// Limits bounds how many subscribers the registry accepts. A zero value
// means unlimited; this is the default for tests and for any deployment
// that omits server.max_total_clients (an omitted
// server.max_clients_per_channel defaults to 100 in config).
type Limits struct {
	MaxClientsPerChannel int
	MaxTotalClients      int
}

// entry is one channel's membership set plus its own lock, so that
// subscribing to channel A never contends with a snapshot or publish on
// channel B.
type entry struct {
	mu          sync.RWMutex
	channel     Channel
	subscribers map[uuid.UUID]Subscriber
	emptiedAt   time.Time // zero value means "not empty" or "never populated"
}

// Registry holds every known channel and its live subscriber set. The
// top-level mutex guards only the name->entry map itself; membership
// mutation and snapshotting happen under the per-entry lock, mirroring the
// donor broadcaster's map-of-maps design generalized to first-class
// Channel objects with creation metadata.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *slog.Logger
	limits  Limits
	total   atomic.Int64
}

// NewRegistry constructs an empty Registry. A zero Limits means unlimited.
func NewRegistry(logger *slog.Logger, limits Limits) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
		limits:  limits,
	}
}

// EnsureChannel returns the Channel for name, creating it if this is the
// first reference. Creation is idempotent: concurrent callers racing to
// create the same channel all observe the same Channel value.
func (r *Registry) EnsureChannel(name Name) Channel {
	r.mu.RLock()
	e, ok := r.entries[name.String()]
	r.mu.RUnlock()
	if ok {
		return e.channel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name.String()]; ok {
		return e.channel
	}
	e = &entry{
		channel:     New(name, name.IsEphemeral()),
		subscribers: make(map[uuid.UUID]Subscriber),
	}
	r.entries[name.String()] = e
	r.logger.Debug("channel created", "channel", name.String(), "ephemeral", e.channel.Ephemeral())
	return e.channel
}

// Subscribe adds sub to name's subscriber set, creating the channel if
// necessary. Idempotent for the same sub.ID(): re-subscribing the same
// identity replaces its entry without changing membership count. Fails
// with ErrChannelFull or ErrGlobalCapacityExceeded if adding a new member
// would exceed the registry's configured limits; re-subscribing an
// existing member never fails on capacity.
func (r *Registry) Subscribe(name Name, sub Subscriber) (Channel, error) {
	ch := r.EnsureChannel(name)

	r.mu.RLock()
	e := r.entries[name.String()]
	r.mu.RUnlock()

	e.mu.Lock()
	_, alreadyMember := e.subscribers[sub.ID()]
	if !alreadyMember {
		if r.limits.MaxClientsPerChannel > 0 && len(e.subscribers) >= r.limits.MaxClientsPerChannel {
			e.mu.Unlock()
			return Channel{}, ErrChannelFull
		}
		if r.limits.MaxTotalClients > 0 && r.total.Load() >= int64(r.limits.MaxTotalClients) {
			e.mu.Unlock()
			return Channel{}, ErrGlobalCapacityExceeded
		}
	}
	e.subscribers[sub.ID()] = sub
	e.emptiedAt = time.Time{}
	e.mu.Unlock()

	if !alreadyMember {
		r.total.Add(1)
	}
	return ch, nil
}

// Unsubscribe removes subscriberID from name's subscriber set. A no-op if
// either the channel or the subscriber is unknown.
func (r *Registry) Unsubscribe(name Name, subscriberID uuid.UUID) {
	r.mu.RLock()
	e, ok := r.entries[name.String()]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	_, existed := e.subscribers[subscriberID]
	delete(e.subscribers, subscriberID)
	if len(e.subscribers) == 0 {
		e.emptiedAt = time.Now()
	}
	e.mu.Unlock()

	if existed {
		r.total.Add(-1)
	}
}

// SnapshotSubscribers returns a stable copy of name's current subscriber
// set, safe to iterate without holding any registry lock. Returns
// ErrUnknownChannel if the channel has never been created.
func (r *Registry) SnapshotSubscribers(name Name) ([]Subscriber, error) {
	r.mu.RLock()
	e, ok := r.entries[name.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownChannel
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make([]Subscriber, 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		snapshot = append(snapshot, sub)
	}
	return snapshot, nil
}

// ListChannels returns every channel currently in the registry, in no
// particular order.
func (r *Registry) ListChannels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.channel)
	}
	return out
}

// TotalClientCount returns the sum of subscriber-set sizes across every
// channel.
func (r *Registry) TotalClientCount() int {
	r.mu.RLock()
	names := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e)
	}
	r.mu.RUnlock()

	total := 0
	for _, e := range names {
		e.mu.RLock()
		total += len(e.subscribers)
		e.mu.RUnlock()
	}
	return total
}

// ChannelCount returns the number of channels currently in the registry.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ChannelSubscriberCounts returns the current subscriber-set size of every
// channel, keyed by channel name.
func (r *Registry) ChannelSubscriberCounts() map[string]int {
	r.mu.RLock()
	entries := make(map[string]*entry, len(r.entries))
	for name, e := range r.entries {
		entries[name] = e
	}
	r.mu.RUnlock()

	counts := make(map[string]int, len(entries))
	for name, e := range entries {
		e.mu.RLock()
		counts[name] = len(e.subscribers)
		e.mu.RUnlock()
	}
	return counts
}

// PruneEmpty removes ephemeral channels whose subscriber set has been empty
// for at least grace. Non-ephemeral channels are never pruned. Intended to
// be called periodically by the lifecycle supervisor.
func (r *Registry) PruneEmpty(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	now := time.Now()
	for name, e := range r.entries {
		if !e.channel.Ephemeral() {
			continue
		}
		e.mu.RLock()
		empty := len(e.subscribers) == 0 && !e.emptiedAt.IsZero() && now.Sub(e.emptiedAt) >= grace
		e.mu.RUnlock()
		if empty {
			delete(r.entries, name)
			pruned++
		}
	}
	if pruned > 0 {
		r.logger.Debug("pruned empty ephemeral channels", "count", pruned)
	}
	return pruned
}
