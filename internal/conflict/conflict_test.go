package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// TestDetect_VersionFields tests that version fields take precedence
// over everything else
func TestDetect_VersionFields(t *testing.T) {
	client := models.Resource{"id": "1", "version": 2, "title": "same"}
	server := models.Resource{"id": "1", "version": 3, "title": "same"}

	assert.True(t, Detect(client, server, nil), "differing versions should conflict")

	server["version"] = 2
	server["title"] = "different"
	// Same version wins even though a field differs
	assert.False(t, Detect(client, server, nil), "equal versions should not conflict")
}

// TestDetect_UpdatedAt tests millisecond-resolution timestamp comparison
func TestDetect_UpdatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	client := models.Resource{"id": "1", "updatedAt": base}
	server := models.Resource{"id": "1", "updatedAt": base.Add(time.Millisecond)}
	assert.True(t, Detect(client, server, nil))

	// Sub-millisecond difference is not a conflict
	server["updatedAt"] = base.Add(100 * time.Microsecond)
	assert.False(t, Detect(client, server, nil))

	// RFC3339 string and time.Time representing the same instant agree
	server["updatedAt"] = base.Format(time.RFC3339Nano)
	assert.False(t, Detect(client, server, nil))
}

// TestDetect_Structural tests the deep-equality fallback with the
// default ignore list
func TestDetect_Structural(t *testing.T) {
	client := models.Resource{
		"id":        "1",
		"updatedAt": "not-a-timestamp",
		"title":     "hello",
		"tags":      []any{"a", "b"},
	}
	server := models.Resource{
		"id":    "2", // ignored
		"title": "hello",
		"tags":  []any{"a", "b"},
	}
	assert.False(t, Detect(client, server, nil), "only ignored fields differ")

	server["tags"] = []any{"a", "c"}
	assert.True(t, Detect(client, server, nil))
}

// TestDetect_Symmetry verifies detectConflict(A,B) == detectConflict(B,A)
// for the default comparators
func TestDetect_Symmetry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a, b models.Resource
	}{
		{"versions", models.Resource{"version": 1}, models.Resource{"version": 2}},
		{"timestamps", models.Resource{"updatedAt": base}, models.Resource{"updatedAt": base.Add(time.Second)}},
		{"structural", models.Resource{"title": "x"}, models.Resource{"title": "y"}},
		{"equal", models.Resource{"title": "x", "n": 1}, models.Resource{"title": "x", "n": 1.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, Detect(tc.a, tc.b, nil), Detect(tc.b, tc.a, nil))
		})
	}
}

// TestDetect_CustomComparator tests that a supplied comparator fully
// replaces the built-in chain
func TestDetect_CustomComparator(t *testing.T) {
	opts := &Options{Comparator: func(client, server models.Resource) bool { return false }}
	client := models.Resource{"version": 1}
	server := models.Resource{"version": 99}
	assert.False(t, Detect(client, server, opts))
}

// TestResolve_LastWriteWins tests the determinism property: the client
// wins iff its timestamp is >= the server's
func TestResolve_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		clientTime any
		serverTime any
		wantClient bool
	}{
		{"client newer", t1.Add(time.Second), t1, true},
		{"server newer", t1, t1.Add(time.Second), false},
		{"exact tie favors client", t1, t1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := models.Resource{"id": "1", "title": "local", "updatedAt": tc.clientTime}
			server := models.Resource{"id": "1", "title": "remote", "updatedAt": tc.serverTime}

			resolved, err := Resolve(ctx, client, server, models.TypeMessage, LastWriteWins, nil)
			require.NoError(t, err)
			if tc.wantClient {
				assert.Equal(t, "local", resolved["title"])
			} else {
				assert.Equal(t, "remote", resolved["title"])
			}
		})
	}
}

// TestResolve_LastWriteWins_MissingTimestamps tests the defaults:
// client -> now, server -> epoch
func TestResolve_LastWriteWins_MissingTimestamps(t *testing.T) {
	client := models.Resource{"id": "1", "title": "local"}
	server := models.Resource{"id": "1", "title": "remote"}

	resolved, err := Resolve(context.Background(), client, server, models.TypeMessage, LastWriteWins, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", resolved["title"], "client defaults to now and beats the epoch")
}

// TestResolve_ClientAndServerWins tests the trivial strategies return
// the snapshots unchanged
func TestResolve_ClientAndServerWins(t *testing.T) {
	ctx := context.Background()
	client := models.Resource{"id": "1", "title": "local"}
	server := models.Resource{"id": "1", "title": "remote"}

	resolved, err := Resolve(ctx, client, server, models.TypeNotice, ClientWins, nil)
	require.NoError(t, err)
	assert.Equal(t, client, resolved)

	resolved, err = Resolve(ctx, client, server, models.TypeNotice, ServerWins, nil)
	require.NoError(t, err)
	assert.Equal(t, server, resolved)
}

// TestResolve_Merge_KeepsClientOnlyFields tests that a field present
// only on the client survives the merge
func TestResolve_Merge_KeepsClientOnlyFields(t *testing.T) {
	client := models.Resource{
		"id":       "1",
		"title":    "local",
		"draft":    true,
		"priority": 2,
	}
	server := models.Resource{
		"id":      "1",
		"title":   "remote",
		"status":  "open",
		"version": 7,
	}

	resolved, err := Resolve(context.Background(), client, server, models.TypeReport, Merge, nil)
	require.NoError(t, err)

	assert.Equal(t, true, resolved["draft"], "client-only field must survive")
	assert.Equal(t, 2, resolved["priority"])
	assert.Equal(t, "local", resolved["title"], "differing scalar prefers client")
	assert.Equal(t, "open", resolved["status"], "server-only field kept")
	assert.Equal(t, 7, resolved["version"], "version never taken from client")
	assert.Equal(t, "1", resolved["id"])
}

// TestResolve_Merge_NestedAndArrays tests recursive object merge and
// the array preference rule
func TestResolve_Merge_NestedAndArrays(t *testing.T) {
	client := models.Resource{
		"id": "1",
		"meta": map[string]any{
			"color": "red",
			"size":  "L",
		},
		"tags": []any{"a", "b"},
		"same": []any{"x"},
	}
	server := models.Resource{
		"id": "1",
		"meta": map[string]any{
			"color": "blue",
			"owner": "bob",
		},
		"tags": []any{"a"},
		"same": []any{"x"},
	}

	resolved, err := Resolve(context.Background(), client, server, models.TypeChatGroup, Merge, nil)
	require.NoError(t, err)

	meta, ok := resolved["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "red", meta["color"], "nested scalar prefers client")
	assert.Equal(t, "L", meta["size"], "nested client-only field kept")
	assert.Equal(t, "bob", meta["owner"], "nested server-only field kept")

	assert.Equal(t, []any{"a", "b"}, resolved["tags"], "differing array prefers client")
	assert.Equal(t, []any{"x"}, resolved["same"], "equal array kept from server")
}

// TestResolve_Manual tests the async callback path and its
// server-wins default
func TestResolve_Manual(t *testing.T) {
	ctx := context.Background()
	client := models.Resource{"id": "1", "title": "local"}
	server := models.Resource{"id": "1", "title": "remote"}

	// Without a callback, manual falls back to server truth
	resolved, err := Resolve(ctx, client, server, models.TypeUser, Manual, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote", resolved["title"])

	// The callback decides
	opts := &Options{
		Manual: func(ctx context.Context, client, server models.Resource) (models.Resource, error) {
			return models.Resource{"id": "1", "title": "picked"}, nil
		},
	}
	resolved, err = Resolve(ctx, client, server, models.TypeUser, Manual, opts)
	require.NoError(t, err)
	assert.Equal(t, "picked", resolved["title"])

	// Callback errors propagate
	opts.Manual = func(ctx context.Context, client, server models.Resource) (models.Resource, error) {
		return nil, errors.New("user dismissed dialog")
	}
	_, err = Resolve(ctx, client, server, models.TypeUser, Manual, opts)
	assert.Error(t, err)
}

// TestDefaultStrategy tests the per-type strategy table
func TestDefaultStrategy(t *testing.T) {
	assert.Equal(t, LastWriteWins, DefaultStrategy(models.TypeMessage))
	assert.Equal(t, LastWriteWins, DefaultStrategy(models.TypeNotice))
	assert.Equal(t, LastWriteWins, DefaultStrategy(models.TypePrivateChat))
	assert.Equal(t, Merge, DefaultStrategy(models.TypeReport))
	assert.Equal(t, Merge, DefaultStrategy(models.TypeChatGroup))
	assert.Equal(t, Merge, DefaultStrategy(models.TypeUser))
	assert.Equal(t, ServerWins, DefaultStrategy("something_else"))
}

// TestMetadata tests the conflicting-field-path listing
func TestMetadata(t *testing.T) {
	client := models.Resource{
		"id":        "1",
		"updatedAt": time.Now(),
		"title":     "local",
		"meta":      map[string]any{"color": "red", "size": "L"},
		"tags":      []any{"a"},
		"count":     3,
	}
	server := models.Resource{
		"id":        "2",
		"updatedAt": time.Now().Add(time.Hour),
		"title":     "remote",
		"meta":      map[string]any{"color": "blue", "size": "L"},
		"tags":      []any{"b"},
		"count":     3,
	}

	fields := Metadata(client, server, nil)
	assert.Equal(t, []string{"meta.color", "tags", "title"}, fields)
}
