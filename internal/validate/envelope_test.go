// ABOUTME: Tests for the Event Validator: type whitelist, structural limits, and source matching

package validate

import "testing"

func newTestEventValidator() *EventValidator {
	return NewEventValidator(EventConfig{
		Limits: Limits{
			MaxBytes:        1024,
			MaxStringLength: 20,
			MaxArrayLength:  3,
			MaxNestingDepth: 4,
		},
		AllowedTypes:       []string{"trade.executed", "ping"},
		RequireSourceMatch: true,
	})
}

func TestEventValidator_AcceptsWellFormedEnvelope(t *testing.T) {
	v := newTestEventValidator()
	payload := []byte(`{"type":"trade.executed","source":"orders-svc","data":{"id":1}}`)

	eventType, violations := v.ValidateEnvelope(payload, "orders-svc")
	if eventType != "trade.executed" {
		t.Errorf("eventType = %q, want trade.executed", eventType)
	}
	if len(violations) != 0 {
		t.Errorf("violations = %v, want none", violations)
	}
}

func TestEventValidator_RejectsInvalidJSON(t *testing.T) {
	v := newTestEventValidator()
	_, violations := v.ValidateEnvelope([]byte(`not json`), "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for invalid JSON")
	}
}

func TestEventValidator_RejectsNonObject(t *testing.T) {
	v := newTestEventValidator()
	_, violations := v.ValidateEnvelope([]byte(`["type","trade.executed"]`), "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for a non-object payload")
	}
}

func TestEventValidator_RejectsMissingType(t *testing.T) {
	v := newTestEventValidator()
	_, violations := v.ValidateEnvelope([]byte(`{"source":"orders-svc"}`), "orders-svc")
	found := false
	for _, violation := range violations {
		if violation == "missing required field: type" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %v, want missing type violation", violations)
	}
}

func TestEventValidator_RejectsUnknownType(t *testing.T) {
	v := newTestEventValidator()
	_, violations := v.ValidateEnvelope([]byte(`{"type":"unknown.thing"}`), "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for an unlisted type")
	}
}

func TestEventValidator_RejectsOversizeString(t *testing.T) {
	v := newTestEventValidator()
	payload := []byte(`{"type":"ping","data":{"note":"this string is definitely way too long for the cap"}}`)
	_, violations := v.ValidateEnvelope(payload, "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for an oversize string")
	}
}

func TestEventValidator_RejectsOversizeArray(t *testing.T) {
	v := newTestEventValidator()
	payload := []byte(`{"type":"ping","data":{"items":[1,2,3,4,5]}}`)
	_, violations := v.ValidateEnvelope(payload, "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for an oversize array")
	}
}

func TestEventValidator_RejectsSourceMismatch(t *testing.T) {
	v := newTestEventValidator()
	payload := []byte(`{"type":"ping","source":"untrusted-svc"}`)
	_, violations := v.ValidateEnvelope(payload, "orders-svc")
	if len(violations) == 0 {
		t.Error("expected a violation for source/header mismatch")
	}
}

func TestEventValidator_ExactlyAtByteCapIsAccepted(t *testing.T) {
	limits := Limits{MaxBytes: 64}
	v := NewEventValidator(EventConfig{Limits: limits, AllowedTypes: []string{"ping"}})

	base := []byte(`{"type":"ping","pad":"`)
	suffix := []byte(`"}`)
	padLen := 64 - len(base) - len(suffix)
	payload := append(append(base, make([]byte, padLen)...), suffix...)
	for i := len(base); i < len(base)+padLen; i++ {
		payload[i] = 'a'
	}

	if len(payload) != 64 {
		t.Fatalf("test setup error: payload is %d bytes, want 64", len(payload))
	}

	_, violations := v.ValidateEnvelope(payload, "")
	for _, violation := range violations {
		if violation == "payload exceeds 64 bytes" {
			t.Errorf("payload exactly at cap should be accepted, got %v", violations)
		}
	}
}

func TestEventValidator_OneByteOverCapIsRejected(t *testing.T) {
	limits := Limits{MaxBytes: 22}
	v := NewEventValidator(EventConfig{Limits: limits, AllowedTypes: []string{"ping"}})

	payload := []byte(`{"type":"pingpingping"}`)
	if len(payload) != 23 {
		t.Fatalf("test setup error: payload is %d bytes, want 23", len(payload))
	}
	_, violations := v.ValidateEnvelope(payload, "")
	found := false
	for _, violation := range violations {
		if violation == "payload exceeds 22 bytes" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %v, want a size-cap violation", violations)
	}
}
