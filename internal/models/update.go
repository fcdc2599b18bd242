package models

import "time"

type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "pending"
	UpdateConfirmed  UpdateStatus = "confirmed"
	UpdateRolledBack UpdateStatus = "rolled_back"
)

// OptimisticUpdate tracks one local mutation applied ahead of server
// confirmation. Status moves one-way: pending -> confirmed or
// rolled_back; a record is never reused after leaving pending.
type OptimisticUpdate struct {
	ID           string       `json:"id"`
	ResourceType string       `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Original     Resource     `json:"original,omitempty"` // nil for creates
	Optimistic   Resource     `json:"optimistic"`
	ServerData   Resource     `json:"server_data,omitempty"`
	Status       UpdateStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	RegisteredAt time.Time    `json:"registered_at"`
}
