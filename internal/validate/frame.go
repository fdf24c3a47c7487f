// ABOUTME: Message Validator: structural validation of client-to-server frames on the subscriber stream
// ABOUTME: Recognizes control types without further policy; malformed or oversize frames are fatal (protocol abuse)

package validate

import "github.com/tidwall/gjson"

// controlTypes are frame types the Connection Manager handles locally.
// Recognizing them here is purely informational — the Message Validator
// imposes no extra policy on control frames beyond the shared structural
// limits.
var controlTypes = map[string]struct{}{
	"ping":        {},
	"pong":        {},
	"subscribe":   {},
	"unsubscribe": {},
}

// FrameValidator is the Message Validator component for subscriber-stream
// frames. It satisfies internal/conn.FrameValidator.
type FrameValidator struct {
	limits Limits
}

// NewFrameValidator constructs a FrameValidator from the same structural
// limits used for publish envelopes.
func NewFrameValidator(limits Limits) *FrameValidator {
	return &FrameValidator{limits: limits}
}

// ValidateFrame checks a raw inbound frame and reports every violation
// found. fatal is true for protocol abuse — malformed JSON or a frame that
// exceeds the size cap — which the Connection Manager treats as grounds to
// close the connection rather than merely reporting an error frame.
func (v *FrameValidator) ValidateFrame(payload []byte) (violations []string, fatal bool) {
	if v.limits.MaxBytes > 0 && len(payload) > v.limits.MaxBytes {
		return []string{"frame exceeds maximum size"}, true
	}

	if !gjson.ValidBytes(payload) {
		// The Connection Manager separately tolerates the legacy bare-text
		// "ping" convention; that check happens before ValidateFrame would
		// be consulted for routing, so a non-JSON frame here is a genuine
		// malformed control frame.
		return []string{"frame is not valid JSON"}, true
	}

	violations = structuralViolations(payload, v.limits)
	return violations, false
}

// IsControlType reports whether t is one of the recognized control frame
// types (ping, pong, subscribe, unsubscribe).
func IsControlType(t string) bool {
	_, ok := controlTypes[t]
	return ok
}
