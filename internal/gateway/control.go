// ABOUTME: Control API: read-only health and statistics endpoints
// ABOUTME: Health reflects the Lifecycle Supervisor's state; statistics mirror the metrics Collector snapshot plus live registry gauges

package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is the GET /health body.
type healthResponse struct {
	Status            string            `json:"status"`
	UptimeSeconds     float64           `json:"uptime_seconds"`
	ActiveConnections int               `json:"active_connections"`
	ActiveChannels    int               `json:"active_channels"`
	Components        map[string]string `json:"components"`
	Timestamp         time.Time         `json:"timestamp"`
}

// statsResponse is the GET /stats body.
type statsResponse struct {
	TotalConnects              int64            `json:"total_connects"`
	DisconnectsByReason        map[string]int64 `json:"disconnects_by_reason"`
	MessagesPublishedByChannel map[string]int64 `json:"messages_published_by_channel"`
	ValidationFailures         int64            `json:"validation_failures"`
	RateLimitDenials           int64            `json:"rate_limit_denials"`
	QueueEvictions             int64            `json:"queue_evictions"`
	ChannelSubscriberCounts    map[string]int   `json:"channel_subscriber_counts"`
	RateLimitBuckets           int              `json:"rate_limit_buckets"`
	Timestamp                  time.Time        `json:"timestamp"`
}

// handleHealth reports the Lifecycle Supervisor's current status. It
// returns 503 while shutting down so load balancers route traffic
// elsewhere.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := g.healthState()

	components := map[string]string{
		"registry":  "healthy",
		"broadcast": "healthy",
		"ingress":   "healthy",
	}
	status := http.StatusOK
	if state == stateShuttingDown {
		status = http.StatusServiceUnavailable
		components["ingress"] = "shutting_down"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:            state.String(),
		UptimeSeconds:     time.Since(g.startedAt).Seconds(),
		ActiveConnections: g.registry.TotalClientCount(),
		ActiveChannels:    g.registry.ChannelCount(),
		Components:        components,
		Timestamp:         time.Now(),
	})
}

// handleStats reports accumulated counters and live registry gauges.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := g.stats.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		TotalConnects:              snapshot.TotalConnects,
		DisconnectsByReason:        snapshot.DisconnectsByReason,
		MessagesPublishedByChannel: snapshot.MessagesPublishedByChannel,
		ValidationFailures:         snapshot.ValidationFailures,
		RateLimitDenials:           snapshot.RateLimitDenials,
		QueueEvictions:             snapshot.QueueEvictions,
		ChannelSubscriberCounts:    g.registry.ChannelSubscriberCounts(),
		RateLimitBuckets:           g.limiter.BucketCount(),
		Timestamp:                  time.Now(),
	})
}
