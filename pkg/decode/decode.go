// Package decode holds the tolerant primitives used by every API model to
// read timestamps and tri-state flags.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Now supplies the substitute value for unparseable dates.
var Now = time.Now

// dateLayouts are tried in order. The zone-less layouts cover servers that
// serialise LocalDateTime values.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Date parses an ISO-8601 timestamp with or without fractional seconds.
// It never fails: an unparseable value is replaced with Now() so that one bad
// field does not discard the whole entity.
func Date(raw string) time.Time {
	t, ok := ParseDate(raw)
	if !ok {
		return Now()
	}
	return t
}

// ParseDate is Date without the substitution.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OptionalBool decodes an absent/null value as nil and true/false as a
// pointer. Quoted booleans are accepted as well.
func OptionalBool(raw json.RawMessage) (*bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var value bool
	switch string(trimmed) {
	case "true", `"true"`:
		value = true
	case "false", `"false"`:
		value = false
	default:
		return nil, fmt.Errorf("decode optional bool: unexpected value %s", trimmed)
	}
	return &value, nil
}
