package query

import (
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Document is an open record: field name to value. Nested objects are
// map[string]any, arrays are []any.
type Document map[string]any

// Filter is a MongoDB-style filter expression.
type Filter map[string]any

// Lookup resolves a field path. Dotted paths descend into nested objects,
// numeric segments index into arrays.
func (d Document) Lookup(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		value, exists := d[path]
		return value, exists
	}

	results := fieldExpr(path).Get(map[string]any(d))
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// Clone returns a deep copy of nested objects and arrays.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	clone := make(Document, len(d))
	for key, value := range d {
		clone[key] = cloneValue(value)
	}
	return clone
}

func fieldExpr(path string) jp.Expr {
	var x jp.Expr
	for _, segment := range strings.Split(path, ".") {
		if index, err := strconv.Atoi(segment); err == nil && index >= 0 {
			x = x.N(index)
			continue
		}
		x = x.C(segment)
	}
	return x
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case Document:
		return v.Clone()
	case map[string]any:
		return map[string]any(Document(v).Clone())
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = cloneValue(item)
		}
		return clone
	default:
		return value
	}
}

// setPath assigns value at a dotted path, creating intermediate objects.
func setPath(d Document, path string, value any) {
	segments := strings.Split(path, ".")
	current := map[string]any(d)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
