// ABOUTME: Event Validator: structural validation of inbound Publish Request envelopes
// ABOUTME: Checks object shape, type whitelist, size/string/array/depth caps, and source header match, in order

package validate

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// EventConfig configures the Event Validator.
type EventConfig struct {
	Limits             Limits
	AllowedTypes       []string
	RequireSourceMatch bool
}

// EventValidator is the Event Validator component: given a raw publish
// body and the publisher header supplied on the ingress request, it
// returns every violation found. An empty result means the envelope is
// accepted.
type EventValidator struct {
	limits             Limits
	allowedTypes       map[string]struct{}
	requireSourceMatch bool
}

// NewEventValidator constructs an EventValidator from config. An empty
// AllowedTypes list means no type is accepted; callers must configure
// validation.allowed_event_types for any event to pass.
func NewEventValidator(cfg EventConfig) *EventValidator {
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = struct{}{}
	}
	return &EventValidator{
		limits:             cfg.Limits,
		allowedTypes:       allowed,
		requireSourceMatch: cfg.RequireSourceMatch,
	}
}

// ValidateEnvelope checks payload against every rule in order and returns
// the extracted event type alongside any violations. publisherHeader is the
// required publisher-service-identifier header value from the ingress
// request, compared against the envelope's optional `source` field.
func (v *EventValidator) ValidateEnvelope(payload []byte, publisherHeader string) (eventType string, violations []string) {
	if !gjson.ValidBytes(payload) {
		return "", []string{"payload is not valid JSON"}
	}

	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return "", []string{"payload must be a JSON object"}
	}

	typeResult := root.Get("type")
	eventType = typeResult.String()
	if !typeResult.Exists() || eventType == "" {
		violations = append(violations, "missing required field: type")
	} else if _, ok := v.allowedTypes[eventType]; !ok {
		violations = append(violations, fmt.Sprintf("event type %q is not in the allowed list", eventType))
	}

	violations = append(violations, structuralViolations(payload, v.limits)...)

	if v.requireSourceMatch {
		source := root.Get("source").String()
		if source != "" && source != publisherHeader {
			violations = append(violations, fmt.Sprintf("source %q does not match publisher header %q", source, publisherHeader))
		}
	}

	return eventType, violations
}
