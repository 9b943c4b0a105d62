package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// marshalArgs serializes bound argument strings to a JSON array.
// A nil or empty slice marshals to "[]" so the column is never NULL.
// Slice order is preserved, which keeps the encoding deterministic.
func marshalArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs deserializes a JSON array column back to argument strings.
// An empty column is tolerated and decodes to an empty slice.
func unmarshalArgs(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if args == nil {
		args = []string{}
	}
	return args, nil
}

// encodeTime formats a timestamp for storage.
// RFC 3339 in UTC collates chronologically as text.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeTime parses a stored timestamp.
func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %q: %w", s, err)
	}
	return t, nil
}
