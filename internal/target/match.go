package target

import (
	"math"
	"strconv"

	"datasync/internal/transform"
)

// KeyMatches checks a looked-up entity's key against the searched value:
// strict equality, then textual equality, then numeric equality when both
// sides are numeric.
func KeyMatches(found, searched any) bool {
	if found == nil || searched == nil {
		return false
	}
	if transform.StrictEqual(found, searched) {
		return true
	}
	if transform.Stringify(found) == transform.Stringify(searched) {
		return true
	}
	a, okA := transform.Number(found)
	b, okB := transform.Number(searched)
	return okA && okB && a == b
}

// KeyCandidates expands a key into the representations a store may hold it as.
func KeyCandidates(value any) []any {
	candidates := []any{value}
	seen := map[string]bool{keyOf(value): true}
	add := func(v any) {
		if k := keyOf(v); !seen[k] {
			seen[k] = true
			candidates = append(candidates, v)
		}
	}

	if _, isString := value.(string); !isString {
		add(transform.Stringify(value))
	}
	if f, ok := transform.Number(value); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			add(int64(f))
			if f >= math.MinInt32 && f <= math.MaxInt32 {
				add(int32(f))
			}
			add(strconv.FormatInt(int64(f), 10))
		}
		add(f)
	}
	return candidates
}

func keyOf(v any) string {
	return transform.Stringify(v) + "|" + typeName(v)
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32:
		return "int32"
	case int64:
		return "int64"
	case float64:
		return "float64"
	}
	return "other"
}
