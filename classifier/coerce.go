package classifier

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric coercion happens only at this boundary; downstream code sees float64.

// toNumber accepts numbers and numeric strings. Booleans, objects,
// unparseable strings and non-finite values count as absent.
func toNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && finite(f)
	case float64:
		return v, finite(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// getString returns a string field. Numeric ids are rendered as strings.
func getString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// getBool returns a flag field, false when absent. Non-zero numbers and the
// strings "true"/"1" count as set.
func getBool(obj map[string]any, key string) bool {
	switch v := obj[key].(type) {
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

func getObject(obj map[string]any, key string) (map[string]any, bool) {
	m, ok := obj[key].(map[string]any)
	return m, ok
}
