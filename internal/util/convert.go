package util

import (
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
)

// AsNumber reports whether v holds a number and returns it as float64.
// Strings are not numbers here, even when they parse as one.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt64 converts v to int64, rounding floats to the nearest integer.
// Returns 0 for nil or unsupported types.
func ToInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	case sql.NullInt64:
		if n.Valid {
			return n.Int64
		}
		return 0
	case sql.NullFloat64:
		if n.Valid {
			return int64(math.Round(n.Float64))
		}
		return 0
	}
	if f, ok := AsNumber(v); ok {
		return int64(math.Round(f))
	}
	return 0
}
