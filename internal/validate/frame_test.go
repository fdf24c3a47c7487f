// ABOUTME: Tests for the Message Validator: structural limits and fatal-vs-reported violations

package validate

import "testing"

func TestFrameValidator_AcceptsControlFrame(t *testing.T) {
	v := NewFrameValidator(Limits{MaxBytes: 256, MaxStringLength: 50, MaxArrayLength: 10, MaxNestingDepth: 5})

	violations, fatal := v.ValidateFrame([]byte(`{"type":"ping"}`))
	if len(violations) != 0 || fatal {
		t.Errorf("violations = %v, fatal = %v, want none/false", violations, fatal)
	}
}

func TestFrameValidator_MalformedJSONIsFatal(t *testing.T) {
	v := NewFrameValidator(Limits{MaxBytes: 256})

	violations, fatal := v.ValidateFrame([]byte(`{not json`))
	if len(violations) == 0 || !fatal {
		t.Errorf("violations = %v, fatal = %v, want violations and fatal=true", violations, fatal)
	}
}

func TestFrameValidator_OversizeIsFatal(t *testing.T) {
	v := NewFrameValidator(Limits{MaxBytes: 8})

	violations, fatal := v.ValidateFrame([]byte(`{"type":"ping","extra":"padding"}`))
	if len(violations) == 0 || !fatal {
		t.Error("expected a fatal violation for an oversize frame")
	}
}

func TestFrameValidator_StructuralViolationIsNotFatal(t *testing.T) {
	v := NewFrameValidator(Limits{MaxBytes: 1024, MaxStringLength: 4})

	violations, fatal := v.ValidateFrame([]byte(`{"type":"ping","note":"too long for the cap"}`))
	if len(violations) == 0 {
		t.Error("expected a structural violation")
	}
	if fatal {
		t.Error("an oversize string within an otherwise valid frame should not be fatal")
	}
}

func TestIsControlType(t *testing.T) {
	for _, ctrlType := range []string{"ping", "pong", "subscribe", "unsubscribe"} {
		if !IsControlType(ctrlType) {
			t.Errorf("IsControlType(%q) = false, want true", ctrlType)
		}
	}
	if IsControlType("trade.executed") {
		t.Error("IsControlType(trade.executed) = true, want false")
	}
}
