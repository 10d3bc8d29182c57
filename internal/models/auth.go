package models

import (
	"bytes"
	"encoding/json"
)

// TokenResponse is returned by login and registration.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorEnvelope is the body the API returns for non-2xx responses.
type ErrorEnvelope struct {
	Timestamp    string            `json:"timestamp"`
	Status       int               `json:"status"`
	Error        string            `json:"error"`
	Message      string            `json:"message"`
	ErrorDetails map[string]string `json:"errorDetails,omitempty"`
	Path         string            `json:"path"`
}

// GroupList accepts both {"groups": [...]} and a bare array.
type GroupList struct {
	Groups []Group `json:"groups"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &g.Groups)
	}
	type alias GroupList
	var wrapped alias
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	g.Groups = wrapped.Groups
	return nil
}

// Active drops deleted groups.
func (g GroupList) Active() []Group {
	active := make([]Group, 0, len(g.Groups))
	for _, group := range g.Groups {
		if !group.IsDeleted {
			active = append(active, group)
		}
	}
	return active
}
