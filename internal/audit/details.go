package audit

import (
	"encoding/json"
	"fmt"
)

// Change is the before/after value of one field
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Changes maps field names to their before/after values
type Changes map[string]Change

// Set records a field transition
func (c Changes) Set(field string, before, after any) Changes {
	c[field] = Change{Before: before, After: after}
	return c
}

// Diff wraps a changes map in the update payload shape. Extra keys identify
// the record and sit next to "changed_fields".
func Diff(changes Changes, extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out["changed_fields"] = changes
	return out
}

// EncodeDetails serialises a details payload. Strings are stored verbatim, nil
// as empty, anything else as JSON. Maps encode with sorted keys.
func EncodeDetails(details any) (string, error) {
	switch d := details.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	case []byte:
		return string(d), nil
	}

	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit details: %w", err)
	}
	return string(data), nil
}
