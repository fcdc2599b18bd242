package conflict

import (
	"encoding/json"
	"fmt"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// diffFields walks the union of both snapshots' keys and returns the
// paths of fields whose values differ. Nested objects recurse with
// dotted paths; arrays and any remaining composites are compared by
// their JSON encoding. Top-level ignored fields are skipped.
func diffFields(client, server map[string]any, ignore map[string]bool, prefix string) []string {
	keys := make(map[string]bool, len(client)+len(server))
	for k := range client {
		keys[k] = true
	}
	for k := range server {
		keys[k] = true
	}

	var diffs []string
	for k := range keys {
		if prefix == "" && ignore[k] {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		cv, cok := client[k]
		sv, sok := server[k]
		if cok != sok {
			diffs = append(diffs, path)
			continue
		}

		cm, cIsMap := asMap(cv)
		sm, sIsMap := asMap(sv)
		if cIsMap && sIsMap {
			diffs = append(diffs, diffFields(cm, sm, nil, path)...)
			continue
		}

		if !equalValue(cv, sv) {
			diffs = append(diffs, path)
		}
	}
	return diffs
}

// defaultMerge builds the merged snapshot starting from the server
// copy. For every client field outside the skip set: nested objects
// merge recursively, arrays take the client side when they differ, and
// scalars take the client value when it differs from the server's.
func defaultMerge(client, server models.Resource) models.Resource {
	merged := mergeMaps(map[string]any(client), map[string]any(server), true)
	return models.Resource(merged)
}

func mergeMaps(client, server map[string]any, top bool) map[string]any {
	out := make(map[string]any, len(server))
	for k, v := range server {
		out[k] = models.CloneValue(v)
	}

	for k, cv := range client {
		if top && mergeSkipFields[k] {
			continue
		}
		sv, exists := out[k]
		if !exists {
			out[k] = models.CloneValue(cv)
			continue
		}

		cm, cIsMap := asMap(cv)
		sm, sIsMap := asMap(sv)
		if cIsMap && sIsMap {
			out[k] = mergeMaps(cm, sm, false)
			continue
		}

		if _, cIsArr := asSlice(cv); cIsArr {
			if _, sIsArr := asSlice(sv); sIsArr {
				if !equalValue(cv, sv) {
					out[k] = models.CloneValue(cv)
				}
				continue
			}
		}

		if !equalValue(cv, sv) {
			out[k] = models.CloneValue(cv)
		}
	}
	return out
}

// equalValue compares two field values structurally. Numeric types are
// normalized first since snapshots that crossed a JSON boundary carry
// float64 where in-memory ones carry int. Composite values fall back to
// their canonical JSON encoding.
func equalValue(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if an, aok := numValue(a); aok {
		bn, bok := numValue(b)
		return bok && an == bn
	}

	am, aIsMap := asMap(a)
	bm, bIsMap := asMap(b)
	if aIsMap && bIsMap {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !equalValue(av, bv) {
				return false
			}
		}
		return true
	}

	as, aIsSlice := asSlice(a)
	bs, bIsSlice := asSlice(b)
	if aIsSlice && bIsSlice {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValue(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if aIsMap || bIsMap || aIsSlice || bIsSlice {
		return false
	}

	if a == b {
		return true
	}
	return stringify(a) == stringify(b)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case models.Resource:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func numValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(raw)
}
