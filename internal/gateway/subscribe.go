// ABOUTME: WebSocket upgrade handler for the subscribe transport path
// ABOUTME: Wires Token Verifier -> Channel Authorizer -> Connection Manager; rejections close post-handshake with RFC6455 codes

package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/channel"
)

const subscribeRejectWriteWait = 2 * time.Second

// handleSubscribe upgrades the connection and runs the subscribe transport
// path: /subscribe/<channel>?token=<bearer>. The handshake always completes
// first; token/authorization/shutdown rejections are reported by closing
// the freshly-opened stream with a close code rather than an HTTP status,
// per the external interface contract.
func (g *Gateway) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	rawName := strings.TrimPrefix(r.URL.Path, "/subscribe/")
	name, nameErr := channel.Parse(rawName)

	token := r.URL.Query().Get("token")

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if g.isShuttingDown() {
		closeSubscribe(wsConn, websocket.CloseGoingAway, "shutting down")
		return
	}

	if nameErr != nil {
		closeSubscribe(wsConn, websocket.ClosePolicyViolation, "invalid channel name")
		return
	}

	var userID *string
	if g.tokenVerifier != nil {
		if g.config.Auth.Required && token == "" {
			closeSubscribe(wsConn, websocket.ClosePolicyViolation, "missing token")
			return
		}
		if token != "" {
			payload, err := g.tokenVerifier.Verify(token)
			if err != nil {
				closeSubscribe(wsConn, websocket.ClosePolicyViolation, "invalid token")
				return
			}
			id := payload.UserID
			userID = &id
		}
	}

	if userID != nil && !g.authorizer.Allow(*userID, name) {
		closeSubscribe(wsConn, websocket.ClosePolicyViolation, "unauthorized channel")
		return
	}

	client := g.connManager.Accept(name, userID, wsConn, g.config.Server.OutboundQueueCapacity)

	g.connWG.Add(1)
	go func() {
		defer g.connWG.Done()
		g.connManager.Serve(g.shutdownCtx, client)
	}()
}

// closeSubscribe rejects a just-upgraded connection before it is ever
// registered, so no channel membership is created for it.
func closeSubscribe(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(subscribeRejectWriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
