package query

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// Type ranks used to order values of different kinds when sorting.
const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankArray
	rankBool
	rankTime
	rankOther
)

// normalize folds all numeric kinds into float64 and nested Documents into
// plain maps so that values decoded from JSON, YAML or Go literals compare equal.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case Document:
		return map[string]any(v)
	case Filter:
		return map[string]any(v)
	case []string:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return items
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	default:
		return value
	}
}

func rank(value any) int {
	switch value.(type) {
	case nil:
		return rankNull
	case float64:
		return rankNumber
	case string:
		return rankString
	case map[string]any:
		return rankObject
	case []any:
		return rankArray
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	default:
		return rankOther
	}
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceTimes converts a string operand into a time when compared against a time.
func coerceTimes(a, b any) (any, any) {
	if ta, ok := a.(time.Time); ok {
		if sb, ok := b.(string); ok {
			if tb, ok := parseTime(sb); ok {
				return ta, tb
			}
		}
	}
	if tb, ok := b.(time.Time); ok {
		if sa, ok := a.(string); ok {
			if ta, ok := parseTime(sa); ok {
				return ta, tb
			}
		}
	}
	return a, b
}

// Equal reports whether two values are equal after normalization.
func Equal(a, b any) bool {
	a, b = coerceTimes(normalize(a), normalize(b))

	switch va := a.(type) {
	case nil:
		return b == nil
	case float64:
		vb, ok := b.(float64)
		return ok && va == vb
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case time.Time:
		vb, ok := b.(time.Time)
		return ok && va.Equal(vb)
	case []any:
		vb, ok := b.([]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for key, value := range va {
			other, exists := vb[key]
			if !exists || !Equal(value, other) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Compare orders two values. The boolean is false when the values are of
// kinds that have no natural order between them.
func Compare(a, b any) (int, bool) {
	a, b = coerceTimes(normalize(a), normalize(b))

	switch va := a.(type) {
	case float64:
		if vb, ok := b.(float64); ok {
			switch {
			case va < vb:
				return -1, true
			case va > vb:
				return 1, true
			}
			return 0, true
		}
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb), true
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb), true
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0, true
			case !va:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// sortCompare orders any two values, falling back to type rank.
func sortCompare(a, b any) int {
	if c, ok := Compare(a, b); ok {
		return c
	}
	ra, rb := rank(normalize(a)), rank(normalize(b))
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}
