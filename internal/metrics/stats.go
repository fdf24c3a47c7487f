// ABOUTME: Counters and gauges backing the Control API Statistics endpoint
// ABOUTME: Mutex-guarded accumulation with a snapshot accessor that copies without exposing the lock, grounded on the donor-adjacent Hub's HubMetrics

package metrics

import (
	"sync"

	"github.com/2389/courier/internal/conn"
)

// Snapshot is a point-in-time, lock-free copy of every counter and gauge.
type Snapshot struct {
	TotalConnects              int64
	DisconnectsByReason        map[string]int64
	MessagesPublishedByChannel map[string]int64
	ValidationFailures         int64
	RateLimitDenials           int64
	QueueEvictions             int64
}

// Collector accumulates Statistics endpoint counters. Safe for concurrent
// use; every mutation is a brief, lock-local increment.
type Collector struct {
	mu sync.RWMutex

	totalConnects              int64
	disconnectsByReason        map[string]int64
	messagesPublishedByChannel map[string]int64
	validationFailures         int64
	rateLimitDenials           int64
	queueEvictions             int64
}

// NewCollector constructs an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		disconnectsByReason:        make(map[string]int64),
		messagesPublishedByChannel: make(map[string]int64),
	}
}

// RecordConnect increments the total-connects counter. Satisfies
// internal/conn.MetricsRecorder.
func (c *Collector) RecordConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalConnects++
}

// RecordDisconnect increments the per-reason disconnect counter. Satisfies
// internal/conn.MetricsRecorder.
func (c *Collector) RecordDisconnect(reason conn.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectsByReason[string(reason)]++
}

// RecordQueueEviction increments the slow-consumer eviction counter.
// Satisfies internal/conn.MetricsRecorder.
func (c *Collector) RecordQueueEviction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueEvictions++
}

// RecordPublish increments the per-channel published-message counter.
func (c *Collector) RecordPublish(channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesPublishedByChannel[channelName]++
}

// RecordValidationFailure increments the validation-failure counter.
func (c *Collector) RecordValidationFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validationFailures++
}

// RecordRateLimitDenial increments the rate-limit-denial counter.
func (c *Collector) RecordRateLimitDenial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitDenials++
}

// Snapshot returns a copy of every counter, safe to serialize without
// holding any lock.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	disconnects := make(map[string]int64, len(c.disconnectsByReason))
	for k, v := range c.disconnectsByReason {
		disconnects[k] = v
	}
	published := make(map[string]int64, len(c.messagesPublishedByChannel))
	for k, v := range c.messagesPublishedByChannel {
		published[k] = v
	}

	return Snapshot{
		TotalConnects:              c.totalConnects,
		DisconnectsByReason:        disconnects,
		MessagesPublishedByChannel: published,
		ValidationFailures:         c.validationFailures,
		RateLimitDenials:           c.rateLimitDenials,
		QueueEvictions:             c.queueEvictions,
	}
}
