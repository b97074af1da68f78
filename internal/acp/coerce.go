package acp

import (
	"math"
	"strconv"
)

// The helpers below are the only places that inspect untyped JSON. Constructors
// use them to validate and normalize fields; nothing else looks at raw maps.

func asRecord(value any) (map[string]any, bool) {
	rec, ok := value.(map[string]any)
	return rec, ok
}

func asString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

func asBool(value any) bool {
	b, ok := value.(bool)
	return ok && b
}

// asID accepts string ids as well as numeric JSON-RPC style ids.
func asID(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Int64 rounds a JSON number to an int64. Non-numbers, NaN, infinities and
// values outside the int64 range yield 0.
func Int64(value any) int64 {
	f, ok := value.(float64)
	if !ok || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0
	}
	return int64(math.Round(f))
}

// asArgs returns value when it is an object and an empty map otherwise.
func asArgs(value any) map[string]any {
	if rec, ok := asRecord(value); ok {
		return rec
	}
	return map[string]any{}
}

// coalesce returns the first non-null value among keys, mirroring a chain of
// `a ?? b ?? c` lookups.
func coalesce(rec map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := rec[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
