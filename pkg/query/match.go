package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnknownOperator = errors.New("query: unknown operator")
	ErrInvalidOperand  = errors.New("query: invalid operand")
)

// Match reports whether doc satisfies filter. An empty filter matches every document.
func Match(doc Document, filter Filter) (bool, error) {
	for key, condition := range filter {
		var ok bool
		var err error

		switch key {
		case "$and":
			ok, err = matchLogical(doc, condition, key, func(results []bool) bool {
				for _, r := range results {
					if !r {
						return false
					}
				}
				return true
			})
		case "$or":
			ok, err = matchLogical(doc, condition, key, func(results []bool) bool {
				for _, r := range results {
					if r {
						return true
					}
				}
				return false
			})
		case "$nor":
			ok, err = matchLogical(doc, condition, key, func(results []bool) bool {
				for _, r := range results {
					if r {
						return false
					}
				}
				return true
			})
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
			}
			value, exists := doc.Lookup(key)
			ok, err = matchCondition(value, exists, condition)
		}

		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchLogical(doc Document, condition any, op string, combine func([]bool) bool) (bool, error) {
	clauses, ok := normalize(condition).([]any)
	if !ok {
		if filters, isFilters := condition.([]Filter); isFilters {
			clauses = make([]any, len(filters))
			for i, f := range filters {
				clauses[i] = f
			}
		} else {
			return false, fmt.Errorf("%w: %s expects an array", ErrInvalidOperand, op)
		}
	}
	if len(clauses) == 0 {
		return false, fmt.Errorf("%w: %s expects a non-empty array", ErrInvalidOperand, op)
	}

	results := make([]bool, 0, len(clauses))
	for _, clause := range clauses {
		sub, ok := asFilter(clause)
		if !ok {
			return false, fmt.Errorf("%w: %s clause must be an object", ErrInvalidOperand, op)
		}
		matched, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		results = append(results, matched)
	}
	return combine(results), nil
}

func asFilter(value any) (Filter, bool) {
	switch v := value.(type) {
	case Filter:
		return v, true
	case Document:
		return Filter(v), true
	case map[string]any:
		return Filter(v), true
	}
	return nil, false
}

// operatorExpression returns the map when every key is an operator.
func operatorExpression(condition any) (map[string]any, bool) {
	m, ok := normalize(condition).(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchCondition(value any, exists bool, condition any) (bool, error) {
	if ops, ok := operatorExpression(condition); ok {
		for op, operand := range ops {
			if op == "$options" {
				continue
			}
			matched, err := matchOperator(value, exists, op, operand, ops)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	}

	if re, ok := condition.(*regexp.Regexp); ok {
		return matchRegexp(value, re), nil
	}
	return matchEqual(value, exists, condition), nil
}

func matchOperator(value any, exists bool, op string, operand any, ops map[string]any) (bool, error) {
	switch op {
	case "$eq":
		return matchEqual(value, exists, operand), nil
	case "$ne":
		return !matchEqual(value, exists, operand), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		return matchAny(value, func(v any) bool {
			c, ok := Compare(v, operand)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			}
			return c <= 0
		}), nil
	case "$in", "$nin":
		candidates, ok := normalize(operand).([]any)
		if !ok {
			return false, fmt.Errorf("%w: %s expects an array", ErrInvalidOperand, op)
		}
		found := false
		for _, candidate := range candidates {
			if re, isRegexp := candidate.(*regexp.Regexp); isRegexp {
				found = matchRegexp(value, re)
			} else {
				found = matchEqual(value, exists, candidate)
			}
			if found {
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, ok := operand.(bool)
		if !ok {
			return false, fmt.Errorf("%w: $exists expects a boolean", ErrInvalidOperand)
		}
		return exists == want, nil
	case "$regex":
		re, err := compileRegexp(operand, ops["$options"])
		if err != nil {
			return false, err
		}
		return matchRegexp(value, re), nil
	case "$not":
		matched, err := matchCondition(value, exists, operand)
		if err != nil {
			return false, err
		}
		return !matched, nil
	case "$size":
		size, ok := normalize(operand).(float64)
		if !ok {
			return false, fmt.Errorf("%w: $size expects a number", ErrInvalidOperand)
		}
		items, isArray := normalize(value).([]any)
		return isArray && float64(len(items)) == size, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

// matchEqual follows the document-store convention that a null operand
// matches missing fields and a scalar operand matches array members.
func matchEqual(value any, exists bool, operand any) bool {
	if operand == nil {
		return !exists || value == nil
	}
	if !exists {
		return false
	}
	if Equal(value, operand) {
		return true
	}
	if items, ok := normalize(value).([]any); ok {
		for _, item := range items {
			if Equal(item, operand) {
				return true
			}
		}
	}
	return false
}

func matchAny(value any, predicate func(any) bool) bool {
	if items, ok := normalize(value).([]any); ok {
		for _, item := range items {
			if predicate(item) {
				return true
			}
		}
		return false
	}
	return predicate(value)
}

func compileRegexp(pattern, options any) (*regexp.Regexp, error) {
	if re, ok := pattern.(*regexp.Regexp); ok {
		return re, nil
	}
	expr, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $regex expects a string", ErrInvalidOperand)
	}
	if flags, ok := options.(string); ok && flags != "" {
		expr = "(?" + flags + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperand, err)
	}
	return re, nil
}

func matchRegexp(value any, re *regexp.Regexp) bool {
	return matchAny(value, func(v any) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	})
}
