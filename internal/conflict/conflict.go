// Package conflict decides whether a client snapshot and a server
// snapshot of the same resource genuinely diverge, and resolves the
// divergence under a configurable strategy.
package conflict

import (
	"context"
	"sort"
	"time"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

type Strategy string

const (
	ClientWins    Strategy = "client_wins"
	ServerWins    Strategy = "server_wins"
	LastWriteWins Strategy = "last_write_wins"
	Merge         Strategy = "merge"
	Manual        Strategy = "manual"
)

// Options customizes detection and resolution. The zero value gives the
// default behavior everywhere.
type Options struct {
	// Comparator, when set, fully replaces the built-in detection
	// chain. It returns true when the snapshots conflict.
	Comparator func(client, server models.Resource) bool

	// IgnoreFields replaces the default identifier/timestamp ignore
	// list for structural comparison and metadata.
	IgnoreFields []string

	// Merge overrides the default field-by-field merge.
	Merge func(client, server models.Resource) (models.Resource, error)

	// Manual resolves a conflict out of band, e.g. by asking the user.
	Manual func(ctx context.Context, client, server models.Resource) (models.Resource, error)
}

// Fields excluded from structural comparison: identifiers, timestamps
// and the client-only optimistic marker.
var defaultIgnoreFields = []string{
	models.FieldID,
	"_id",
	models.FieldCreatedAt,
	models.FieldUpdatedAt,
	models.FieldVersion,
	models.FieldOptimistic,
}

// Fields the merge strategy never takes from the client side.
var mergeSkipFields = map[string]bool{
	models.FieldID:         true,
	"_id":                  true,
	models.FieldCreatedAt:  true,
	models.FieldUpdatedAt:  true,
	models.FieldVersion:    true,
	models.FieldOptimistic: true,
}

// DefaultStrategy returns the resolution strategy used for a resource
// type when the caller does not specify one.
func DefaultStrategy(resourceType string) Strategy {
	switch resourceType {
	case models.TypeMessage, models.TypeNotice, models.TypePrivateChat:
		return LastWriteWins
	case models.TypeReport, models.TypeChatGroup, models.TypeUser:
		return Merge
	default:
		return ServerWins
	}
}

// Detect reports whether the two snapshots diverge meaningfully.
// Precedence: custom comparator, version fields, updatedAt timestamps
// (millisecond resolution), then structural deep equality over all
// non-ignored fields.
func Detect(client, server models.Resource, opts *Options) bool {
	if client == nil && server == nil {
		return false
	}
	if client == nil || server == nil {
		return true
	}
	if opts != nil && opts.Comparator != nil {
		return opts.Comparator(client, server)
	}

	if cv, cok := client.Version(); cok {
		if sv, sok := server.Version(); sok {
			return cv != sv
		}
	}

	if ct, cok := client.UpdatedAt(); cok {
		if st, sok := server.UpdatedAt(); sok {
			return ct.UnixMilli() != st.UnixMilli()
		}
	}

	return len(diffFields(client, server, ignoreSet(opts), "")) > 0
}

// Resolve picks or constructs the winning snapshot. Only the manual
// strategy can block on the context.
func Resolve(ctx context.Context, client, server models.Resource, resourceType string, strategy Strategy, opts *Options) (models.Resource, error) {
	if strategy == "" {
		strategy = DefaultStrategy(resourceType)
	}

	switch strategy {
	case ClientWins:
		return client.Clone(), nil

	case LastWriteWins:
		// Absent timestamps favor the client: it defaults to now, the
		// server to the epoch. The client also wins an exact tie.
		clientTime := effectiveTime(client, time.Now())
		serverTime := effectiveTime(server, time.Unix(0, 0))
		if !clientTime.Before(serverTime) {
			return client.Clone(), nil
		}
		return server.Clone(), nil

	case Merge:
		if opts != nil && opts.Merge != nil {
			return opts.Merge(client, server)
		}
		return defaultMerge(client, server), nil

	case Manual:
		if opts != nil && opts.Manual != nil {
			return opts.Manual(ctx, client, server)
		}
		return server.Clone(), nil

	default: // ServerWins and anything unrecognized
		return server.Clone(), nil
	}
}

// Metadata lists the paths of all differing fields, recursing into
// nested objects, with identifier/timestamp fields excluded. Arrays are
// compared as a whole. Paths are sorted for stable display.
func Metadata(client, server models.Resource, opts *Options) []string {
	fields := diffFields(client, server, ignoreSet(opts), "")
	sort.Strings(fields)
	return fields
}

// effectiveTime is the write time used by last_write_wins: updatedAt,
// then timestamp, then the supplied default.
func effectiveTime(r models.Resource, def time.Time) time.Time {
	if t, ok := r.UpdatedAt(); ok {
		return t
	}
	if t, ok := models.TimeValue(r[models.FieldTimestamp]); ok {
		return t
	}
	return def
}

func ignoreSet(opts *Options) map[string]bool {
	fields := defaultIgnoreFields
	if opts != nil && opts.IgnoreFields != nil {
		fields = opts.IgnoreFields
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
