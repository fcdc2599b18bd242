package models

import (
	"encoding/json"
	"time"
)

// Field names shared by every resource that participates in sync.
const (
	FieldID         = "id"
	FieldVersion    = "version"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
	FieldTimestamp  = "timestamp"
	FieldOptimistic = "_isOptimistic"
	FieldDeleted    = "_deleted"
)

// Resource type tags used by the community application.
const (
	TypeMessage     = "message"
	TypeNotice      = "notice"
	TypeReport      = "report"
	TypeChatGroup   = "chat_group"
	TypePrivateChat = "private_chat"
	TypeUser        = "user"
)

// Resource is a single synced domain record. Every resource carries an
// "id"; "version" and "updatedAt" are optional and drive conflict
// detection. Everything else is an open key/value record owned by the
// application.
type Resource map[string]any

// ID returns the resource identifier, or "" when absent.
func (r Resource) ID() string {
	if s, ok := r[FieldID].(string); ok {
		return s
	}
	return ""
}

// Version returns the numeric version field if present.
func (r Resource) Version() (int64, bool) {
	return coerceInt(r[FieldVersion])
}

// UpdatedAt returns the updatedAt field if present. Accepts time.Time,
// RFC3339 strings and unix-millisecond numbers since resources cross a
// JSON boundary.
func (r Resource) UpdatedAt() (time.Time, bool) {
	return TimeValue(r[FieldUpdatedAt])
}

// IsOptimistic reports whether the record is a client-synthesized
// snapshot not yet confirmed by the server.
func (r Resource) IsOptimistic() bool {
	b, ok := r[FieldOptimistic].(bool)
	return ok && b
}

// IsDeleted reports whether the record is a deletion tombstone.
func (r Resource) IsDeleted() bool {
	b, ok := r[FieldDeleted].(bool)
	return ok && b
}

// Clone returns a deep copy of the resource.
func (r Resource) Clone() Resource {
	if r == nil {
		return nil
	}
	out := make(Resource, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a resource field value. Nested maps and slices
// are copied; scalars are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case Resource:
		return map[string]any(t.Clone())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}

func coerceInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// TimeValue coerces a resource field into a timestamp. Accepts
// time.Time, RFC3339 strings and unix-millisecond numbers.
func TimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case int:
		return time.UnixMilli(int64(t)), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.UnixMilli(n), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
