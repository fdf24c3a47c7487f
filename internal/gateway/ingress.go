// ABOUTME: Ingress API: publish-request handlers running rate limiter -> event validator -> broadcast engine
// ABOUTME: Accepts both the preferred body-form and the legacy path-form publish requests

package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/2389/courier/internal/broadcast"
	"github.com/2389/courier/internal/channel"
)

// publishRequest is the preferred POST /publish body shape.
type publishRequest struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// publishResponse is returned on every successful publish.
type publishResponse struct {
	Status         string    `json:"status"`
	Channel        string    `json:"channel"`
	EventType      string    `json:"event_type"`
	ClientsReached int       `json:"clients_reached"`
	Timestamp      time.Time `json:"timestamp"`
}

// handlePublish serves both POST /publish (body carries channel+data) and
// POST /publish/{channel} (body is the envelope itself).
func (g *Gateway) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.isShuttingDown() {
		g.writeJSONError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}

	publisherID := r.Header.Get(publisherIDHeader)
	if publisherID == "" {
		g.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("missing required header: %s", publisherIDHeader))
		return
	}

	rawName, envelope, err := g.readPublishBody(r)
	if err != nil {
		g.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := channel.Parse(rawName)
	if err != nil {
		g.writeJSONError(w, http.StatusBadRequest, "invalid channel name: "+err.Error())
		return
	}

	// A lightweight structural peek at the type field, used only to key the
	// rate-limit bucket; full validation happens below regardless.
	provisionalType := gjson.GetBytes(envelope, "type").String()

	if allowed, retryAfter := g.limiter.TryAcquire(publisherID, provisionalType); !allowed {
		g.stats.RecordRateLimitDenial()
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		g.writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	eventType, violations := g.eventValidate.ValidateEnvelope(envelope, publisherID)
	if len(violations) > 0 {
		g.stats.RecordValidationFailure()
		g.writeJSONErrorWithViolations(w, http.StatusBadRequest, "envelope validation failed", violations)
		return
	}

	var data map[string]any
	if err := json.Unmarshal(envelope, &data); err != nil {
		g.writeJSONError(w, http.StatusBadRequest, "envelope must be a JSON object")
		return
	}

	msg, err := broadcast.NewMessage(data)
	if err != nil {
		g.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	reached, err := g.engine.Publish(name, msg)
	if err != nil {
		g.writeJSONError(w, http.StatusInternalServerError, "publish failed")
		return
	}
	g.stats.RecordPublish(name.String())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(publishResponse{
		Status:         "published",
		Channel:        name.String(),
		EventType:      eventType,
		ClientsReached: reached,
		Timestamp:      msg.Timestamp(),
	})
}

// publishBodyOverhead is the extra room the body-form reader allows for the
// {"channel": ..., "data": ...} wrapper around the envelope.
const publishBodyOverhead = 4096

// readPublishBody extracts the channel name and the raw envelope bytes from
// either publish form. The body reader is capped one byte past the
// configured size limit (plus publishBodyOverhead in the body form) so an
// oversize envelope is rejected by the Event Validator's size rule rather
// than by an unbounded read. A body-form request larger than that cap is
// truncated, fails to parse, and is rejected as a malformed body.
func (g *Gateway) readPublishBody(r *http.Request) (channelName string, envelope []byte, err error) {
	limit := int64(g.config.Validation.MaxEventBytes) + 1
	if !strings.HasPrefix(r.URL.Path, "/publish/") {
		limit += publishBodyOverhead
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return "", nil, fmt.Errorf("reading request body: %w", err)
	}

	if strings.HasPrefix(r.URL.Path, "/publish/") {
		pathChannel := strings.TrimPrefix(r.URL.Path, "/publish/")
		if pathChannel == "" {
			return "", nil, fmt.Errorf("missing channel in path")
		}
		return pathChannel, body, nil
	}

	var req publishRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, fmt.Errorf("malformed request body: %w", err)
	}
	if req.Channel == "" {
		return "", nil, fmt.Errorf("missing required field: channel")
	}
	if len(req.Data) == 0 {
		return "", nil, fmt.Errorf("missing required field: data")
	}
	return req.Channel, req.Data, nil
}

// writeJSONError writes a JSON error response.
func (g *Gateway) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		g.logger.Debug("failed to encode error response", "error", err)
	}
}

// writeJSONErrorWithViolations writes a JSON error response naming every
// offending rule.
func (g *Gateway) writeJSONErrorWithViolations(w http.ResponseWriter, status int, message string, violations []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error":      message,
		"violations": violations,
	}); err != nil {
		g.logger.Debug("failed to encode error response", "error", err)
	}
}
