// ABOUTME: Shared structural JSON limits and the gjson-based walk enforcing them without a full unmarshal
// ABOUTME: Used by both the Event Validator (publish envelopes) and the Message Validator (subscriber frames)

package validate

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Limits bounds the shape of a JSON document: serialized size, string
// length, array length, and object/array nesting depth.
type Limits struct {
	MaxBytes        int
	MaxStringLength int
	MaxArrayLength  int
	MaxNestingDepth int
}

// structuralViolations walks payload with gjson (no full unmarshal into a
// Go value) and reports every limit it exceeds. An invalid-JSON payload
// yields a single violation and skips the walk.
func structuralViolations(payload []byte, limits Limits) []string {
	var violations []string

	if limits.MaxBytes > 0 && len(payload) > limits.MaxBytes {
		violations = append(violations, fmt.Sprintf("payload exceeds %d bytes", limits.MaxBytes))
	}

	if !gjson.ValidBytes(payload) {
		violations = append(violations, "payload is not valid JSON")
		return violations
	}

	root := gjson.ParseBytes(payload)
	walkValue(root, 0, limits, &violations)
	return violations
}

// walkValue recurses into objects and arrays, checking string length,
// array length, and nesting depth at every level.
func walkValue(v gjson.Result, depth int, limits Limits, violations *[]string) {
	if limits.MaxNestingDepth > 0 && depth > limits.MaxNestingDepth {
		*violations = append(*violations, fmt.Sprintf("nesting depth exceeds %d", limits.MaxNestingDepth))
		return
	}

	switch {
	case v.IsArray():
		elements := v.Array()
		if limits.MaxArrayLength > 0 && len(elements) > limits.MaxArrayLength {
			*violations = append(*violations, fmt.Sprintf("array exceeds %d elements", limits.MaxArrayLength))
		}
		for _, el := range elements {
			walkValue(el, depth+1, limits, violations)
		}
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			if limits.MaxStringLength > 0 && len(key.String()) > limits.MaxStringLength {
				*violations = append(*violations, fmt.Sprintf("object key exceeds %d characters", limits.MaxStringLength))
			}
			walkValue(value, depth+1, limits, violations)
			return true
		})
	case v.Type == gjson.String:
		if limits.MaxStringLength > 0 && len(v.Str) > limits.MaxStringLength {
			*violations = append(*violations, fmt.Sprintf("string exceeds %d characters", limits.MaxStringLength))
		}
	}
}
