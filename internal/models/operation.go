package models

import "time"

type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// PendingOperation is a mutation that could not reach the server and is
// held in the durable queue until a drain succeeds or the attempt cap
// is hit. Owned exclusively by the queue; the store only reads, appends
// and removes through the queue interface.
type PendingOperation struct {
	ID           string        `json:"id"`
	Type         OperationType `json:"type"`
	ResourceType string        `json:"resource_type"`
	Endpoint     string        `json:"endpoint"`
	Method       string        `json:"method"`
	ResourceID   string        `json:"resource_id,omitempty"`
	Payload      Resource      `json:"payload,omitempty"`

	// TempID and UpdateID tie a queued create back to its optimistic
	// placeholder and ledger entry for reconciliation after the drain.
	TempID   string `json:"temp_id,omitempty"`
	UpdateID string `json:"update_id,omitempty"`

	QueuedAt    time.Time  `json:"queued_at"`
	Attempts    int        `json:"attempts"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Clone returns a copy safe to hand to callers.
func (op *PendingOperation) Clone() *PendingOperation {
	if op == nil {
		return nil
	}
	out := *op
	out.Payload = op.Payload.Clone()
	if op.LastAttempt != nil {
		t := *op.LastAttempt
		out.LastAttempt = &t
	}
	return &out
}
