package models

import "time"

// ConflictRecord captures one detected divergence between a client
// snapshot and a server snapshot, kept in a bounded in-memory list for
// user-facing display. Never persisted.
type ConflictRecord struct {
	ResourceType  string    `json:"resource_type"`
	ResourceID    string    `json:"resource_id"`
	DetectedAt    time.Time `json:"detected_at"`
	ClientVersion string    `json:"client_version,omitempty"`
	ServerVersion string    `json:"server_version,omitempty"`
	Strategy      string    `json:"strategy"`
	Fields        []string  `json:"fields"`
}
