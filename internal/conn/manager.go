// ABOUTME: Connection Manager: heartbeat, receive loop, send loop, and backpressure for one client
// ABOUTME: readPump/writePump split and ping/pong deadline handling are grounded on the donor ws-hub example

package conn

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/channel"
	"github.com/2389/courier/internal/validate"
)

// writeWait bounds how long a single transport write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// FrameValidator checks a raw client->server frame per the Message
// Validator (size/nesting/array caps). fatal distinguishes protocol abuse
// (oversize, malformed control frame), which closes the connection, from
// ordinary offenses, which are reported back on an error frame.
type FrameValidator interface {
	ValidateFrame(payload []byte) (violations []string, fatal bool)
}

// MetricsRecorder receives Connection Manager lifecycle events. Satisfied
// by internal/metrics.Collector; declared here to avoid an import cycle.
type MetricsRecorder interface {
	RecordConnect()
	RecordDisconnect(reason CloseReason)
	RecordQueueEviction()
}

// controlFrame is the minimal shape the receive loop inspects to recognize
// control types without fully decoding application payloads.
type controlFrame struct {
	Type string `json:"type"`
}

// Manager runs the per-connection lifecycle: heartbeat, receive loop, send
// loop. One Manager serves every connection in the process; per-connection
// state lives on the Client.
type Manager struct {
	registry          *channel.Registry
	validator         FrameValidator
	metrics           MetricsRecorder
	logger            *slog.Logger
	heartbeatInterval time.Duration
	allowLegacyPing   bool
}

// NewManager constructs a Manager. heartbeatInterval must be positive; the
// read deadline is set to 2x this interval per the heartbeat contract.
func NewManager(registry *channel.Registry, validator FrameValidator, metrics MetricsRecorder, logger *slog.Logger, heartbeatInterval time.Duration, allowLegacyPing bool) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:          registry,
		validator:         validator,
		metrics:           metrics,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		allowLegacyPing:   allowLegacyPing,
	}
}

// Accept constructs a Client around an already-upgraded websocket
// connection. The caller (the Ingress subscribe handler) is responsible
// for running the Token Verifier and Channel Authorizer before calling
// this; Accept assumes the handshake already succeeded.
func (m *Manager) Accept(name channel.Name, userID *string, wsConn *websocket.Conn, queueCapacity int) *Client {
	return newClient(name, userID, wsConn, queueCapacity)
}

// Serve subscribes the client into the registry and runs its receive and
// send loops until the connection terminates, then unsubscribes it. It
// blocks until the connection is fully closed. ctx cancellation (shutdown)
// transitions the client to Closing with a "going away" reason. If the
// registry rejects the subscribe for capacity reasons, the connection is
// closed with a policy violation and never counted as connected.
func (m *Manager) Serve(ctx context.Context, c *Client) {
	if _, err := m.registry.Subscribe(c.channelName, c); err != nil {
		m.logger.Debug("subscribe rejected", "channel", c.channelName.String(), "error", err)
		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), deadline)
		_ = c.conn.Close()
		return
	}
	c.setState(Subscribed)
	if m.metrics != nil {
		m.metrics.RecordConnect()
	}

	done := make(chan struct{})
	go m.writePump(c, done)

	reason := m.readPump(ctx, c)

	m.registry.Unsubscribe(c.channelName, c.ID())
	c.setState(Closing)
	close(done)
	c.closeSend()
	c.setState(Closed)

	if m.metrics != nil {
		m.metrics.RecordDisconnect(reason)
		if reason == ReasonSlowConsumer {
			m.metrics.RecordQueueEviction()
		}
	}

	code := closeCodeForReason(reason)
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, string(reason)), deadline)
	_ = c.conn.Close()
}

// closeCodeForReason maps an internal close reason to the RFC6455 status
// code named in the external interface contract.
func closeCodeForReason(reason CloseReason) int {
	switch reason {
	case ReasonShutdown:
		return websocket.CloseGoingAway
	case ReasonPeerClosed:
		return websocket.CloseNormalClosure
	default:
		return websocket.ClosePolicyViolation
	}
}

// readPump drains client->server frames, enforces the heartbeat deadline,
// and handles control frames locally. It returns the reason the connection
// ended.
func (m *Manager) readPump(ctx context.Context, c *Client) CloseReason {
	deadline := 2 * m.heartbeatInterval
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	readResult := make(chan readOutcome, 1)
	go m.readLoop(c, readResult)

	for {
		select {
		case <-ctx.Done():
			return ReasonShutdown
		case <-c.Evicted():
			return ReasonSlowConsumer
		case outcome := <-readResult:
			if outcome.reason != "" {
				return outcome.reason
			}
			// Re-arm the read deadline: any inbound frame counts as
			// activity per the heartbeat contract.
			c.conn.SetReadDeadline(time.Now().Add(deadline))
			if fatal := m.handleFrame(c, outcome.payload); fatal {
				return ReasonPolicyViolation
			}
			go m.readLoop(c, readResult)
		}
	}
}

type readOutcome struct {
	payload []byte
	reason  CloseReason
}

// readLoop issues exactly one blocking ReadMessage call and reports its
// outcome. It runs on its own goroutine so the outer select can also
// observe context cancellation during a blocked read.
func (m *Manager) readLoop(c *Client, out chan<- readOutcome) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			out <- readOutcome{reason: ReasonTransportError}
			return
		}
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			out <- readOutcome{reason: ReasonHeartbeatTimeout}
			return
		}
		out <- readOutcome{reason: ReasonPeerClosed}
		return
	}
	out <- readOutcome{payload: payload}
}

// handleFrame runs the Message Validator and dispatches control frames
// locally. Non-fatal validation failures are reported back without closing
// the connection; fatal ones (protocol abuse) close it: handleFrame returns
// true and readPump ends the connection with a policy-violation reason.
func (m *Manager) handleFrame(c *Client, payload []byte) (fatal bool) {
	if m.allowLegacyPing && string(payload) == "ping" {
		c.Enqueue([]byte("pong"))
		return false
	}

	if m.validator != nil {
		violations, fatal := m.validator.ValidateFrame(payload)
		if len(violations) > 0 {
			errFrame, _ := json.Marshal(map[string]any{
				"type":       "error",
				"violations": violations,
			})
			c.Enqueue(errFrame)
			if fatal {
				return true
			}
		}
	}

	var ctrl controlFrame
	if err := json.Unmarshal(payload, &ctrl); err == nil && validate.IsControlType(ctrl.Type) {
		if ctrl.Type == "ping" {
			pong, _ := json.Marshal(map[string]any{"type": "pong"})
			c.Enqueue(pong)
		}
		// "pong", "subscribe", "unsubscribe" are acknowledged implicitly;
		// Courier does not route client->broker data to other subscribers.
		return false
	}
	return false
}

// writePump serializes outbound writes in enqueue order and sends periodic
// ping frames. It exits when the client's send channel is closed or a
// write fails.
func (m *Manager) writePump(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
