package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/noah-isme/pass-request-client/pkg/decode"
)

// Timestamp decodes any of the ISO-8601 variants the API emits. Unparseable
// values decode to the current time instead of failing the enclosing entity.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Time = decode.Now()
		return nil
	}
	t.Time = decode.Date(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Acceptance is the tri-state review outcome: nil means pending.
type Acceptance struct {
	value *bool
}

// AcceptanceOf builds an Acceptance from an optional flag.
func AcceptanceOf(v *bool) Acceptance {
	if v == nil {
		return Acceptance{}
	}
	copied := *v
	return Acceptance{value: &copied}
}

// Accepted returns the accepted state.
func Accepted() Acceptance {
	v := true
	return Acceptance{value: &v}
}

// Rejected returns the rejected state.
func Rejected() Acceptance {
	v := false
	return Acceptance{value: &v}
}

// Bool exposes the underlying optional flag.
func (a Acceptance) Bool() *bool {
	if a.value == nil {
		return nil
	}
	v := *a.value
	return &v
}

func (a Acceptance) IsPending() bool  { return a.value == nil }
func (a Acceptance) IsAccepted() bool { return a.value != nil && *a.value }
func (a Acceptance) IsRejected() bool { return a.value != nil && !*a.value }

func (a Acceptance) String() string {
	switch {
	case a.IsAccepted():
		return "accepted"
	case a.IsRejected():
		return "rejected"
	default:
		return "pending"
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Acceptance) UnmarshalJSON(data []byte) error {
	v, err := decode.OptionalBool(data)
	if err != nil {
		return err
	}
	a.value = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Acceptance) MarshalJSON() ([]byte, error) {
	if a.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*a.value)
}
