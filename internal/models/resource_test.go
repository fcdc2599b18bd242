package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResource_Accessors tests the typed field accessors over the open
// record
func TestResource_Accessors(t *testing.T) {
	r := Resource{
		"id":            "n1",
		"version":       float64(3), // as decoded from JSON
		"updatedAt":     "2026-03-01T12:00:00Z",
		"_isOptimistic": true,
	}

	assert.Equal(t, "n1", r.ID())

	v, ok := r.Version()
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	ts, ok := r.UpdatedAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ts.UTC())

	assert.True(t, r.IsOptimistic())
	assert.False(t, r.IsDeleted())

	empty := Resource{}
	assert.Equal(t, "", empty.ID())
	_, ok = empty.Version()
	assert.False(t, ok)
	_, ok = empty.UpdatedAt()
	assert.False(t, ok)
}

// TestTimeValue tests the accepted timestamp representations
func TestTimeValue(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ts, ok := TimeValue(want)
	require.True(t, ok)
	assert.Equal(t, want, ts)

	ts, ok = TimeValue("2026-03-01T12:00:00Z")
	require.True(t, ok)
	assert.True(t, ts.Equal(want))

	ts, ok = TimeValue(float64(want.UnixMilli()))
	require.True(t, ok)
	assert.True(t, ts.Equal(want))

	_, ok = TimeValue("yesterday-ish")
	assert.False(t, ok)
	_, ok = TimeValue(nil)
	assert.False(t, ok)
	_, ok = TimeValue(true)
	assert.False(t, ok)
}

// TestResource_CloneIsDeep tests that nested maps and slices are copied
func TestResource_CloneIsDeep(t *testing.T) {
	r := Resource{
		"id":   "n1",
		"meta": map[string]any{"color": "red"},
		"tags": []any{"a", "b"},
	}

	c := r.Clone()
	c["meta"].(map[string]any)["color"] = "blue"
	c["tags"].([]any)[0] = "z"

	assert.Equal(t, "red", r["meta"].(map[string]any)["color"])
	assert.Equal(t, "a", r["tags"].([]any)[0])

	var nilResource Resource
	assert.Nil(t, nilResource.Clone())
}

// TestIDs tests the generated id shapes and the temp-id predicate
func TestIDs(t *testing.T) {
	opID := NewOperationID()
	assert.True(t, strings.HasPrefix(opID, "op_"))
	assert.NotEqual(t, opID, NewOperationID())

	tempID := NewTempID()
	assert.True(t, IsTempID(tempID))
	assert.False(t, IsTempID("n1"))
	assert.False(t, IsTempID(opID))
	assert.False(t, IsTempID("temp_"), "bare prefix is not an id")
}
