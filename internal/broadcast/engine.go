// ABOUTME: Broadcast Engine: snapshot subscribers, serialize once, enqueue non-blocking to each
// ABOUTME: Grounded directly on the donor's broadcaster.go Publish method (RLock snapshot, drop-on-full outside the lock)

package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/2389/courier/internal/channel"
)

// Engine is the Broadcast Engine component. It has no mutable state of its
// own beyond the registry it fans out through.
type Engine struct {
	registry *channel.Registry
	logger   *slog.Logger
}

// NewEngine constructs an Engine over registry.
func NewEngine(registry *channel.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Publish delivers msg to every current subscriber of name and returns the
// count of successful enqueues. If name has never been referenced before,
// it is created empty (the "dynamic channel" rule: a publish to an unknown
// channel succeeds with clients_reached = 0 rather than failing).
//
// The envelope is serialized exactly once and the resulting bytes are
// shared, unmodified, across every subscriber's enqueue.
func (e *Engine) Publish(name channel.Name, msg Message) (clientsReached int, err error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	subscribers, err := e.registry.SnapshotSubscribers(name)
	if err != nil {
		if errors.Is(err, channel.ErrUnknownChannel) {
			e.registry.EnsureChannel(name)
			return 0, nil
		}
		return 0, err
	}

	for _, sub := range subscribers {
		if sub.Enqueue(payload) {
			clientsReached++
		} else {
			sub.Evict()
		}
	}

	if clientsReached < len(subscribers) {
		e.logger.Debug("evicting slow consumers",
			"channel", name.String(),
			"reached", clientsReached,
			"subscribers", len(subscribers),
		)
	}

	return clientsReached, nil
}
