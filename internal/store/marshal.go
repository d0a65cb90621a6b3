package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/plcscan/internal/ir"
)

// marshalValue converts a tag value to JSON TEXT for storage. Booleans
// stay booleans so a BOOL tag reads back as a BOOL value.
func marshalValue(v ir.Value) (string, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses JSON TEXT written by marshalValue.
func unmarshalValue(data string) (ir.Value, error) {
	var v ir.Value
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return ir.Value{}, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
