package query

import (
	"fmt"
	"slices"
	"strings"
)

type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

type SortKey struct {
	Field string
	Order SortOrder
}

// Query describes a find operation: filter, then sort, then skip/limit, then projection.
type Query struct {
	Filter     Filter
	Properties []string
	Sort       []SortKey
	Skip       int
	Limit      int
}

// ParseSort reads a comma separated list of fields, a leading '-' sorts descending.
func ParseSort(value string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key := SortKey{Field: part, Order: Ascending}
		switch part[0] {
		case '-':
			key = SortKey{Field: part[1:], Order: Descending}
		case '+':
			key.Field = part[1:]
		}
		if key.Field == "" {
			return nil, fmt.Errorf("invalid sort key '%s'", part)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Filtered returns the documents matching filter, in their original order.
func Filtered(docs []Document, filter Filter) ([]Document, error) {
	if len(filter) == 0 {
		return slices.Clone(docs), nil
	}

	result := make([]Document, 0, len(docs))
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, doc)
		}
	}
	return result, nil
}

// SortDocuments sorts in place. The sort is stable and missing values order first.
func SortDocuments(docs []Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b Document) int {
		for _, key := range keys {
			va, _ := a.Lookup(key.Field)
			vb, _ := b.Lookup(key.Field)
			if c := sortCompare(va, vb); c != 0 {
				if key.Order == Descending {
					return -c
				}
				return c
			}
		}
		return 0
	})
}

// Paginate applies skip and limit. A limit of zero means no limit.
func Paginate(docs []Document, skip, limit int) []Document {
	if skip > 0 {
		if skip >= len(docs) {
			return []Document{}
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// Apply runs the full find pipeline over docs.
func Apply(docs []Document, q *Query) ([]Document, error) {
	if q == nil {
		q = &Query{}
	}

	result, err := Filtered(docs, q.Filter)
	if err != nil {
		return nil, err
	}
	SortDocuments(result, q.Sort)
	result = Paginate(result, q.Skip, q.Limit)

	if len(q.Properties) == 0 {
		return result, nil
	}
	projected := make([]Document, len(result))
	for i, doc := range result {
		projected[i] = Project(doc, q.Properties)
	}
	return projected, nil
}

// Project keeps only the listed properties. An empty list keeps everything.
func Project(doc Document, properties []string) Document {
	if len(properties) == 0 {
		return doc.Clone()
	}

	projected := make(Document, len(properties))
	for _, property := range properties {
		if value, exists := doc.Lookup(property); exists {
			setPath(projected, property, cloneValue(value))
		}
	}
	return projected
}

// Includes reports whether a projection selects field.
func Includes(properties []string, field string) bool {
	if len(properties) == 0 {
		return true
	}
	for _, property := range properties {
		if property == field || strings.HasPrefix(property, field+".") {
			return true
		}
	}
	return false
}

// Distinct collects the unique values of field, flattening arrays, in first-seen order.
func Distinct(docs []Document, field string) []any {
	var values []any
	add := func(v any) {
		for _, existing := range values {
			if Equal(existing, v) {
				return
			}
		}
		values = append(values, v)
	}

	for _, doc := range docs {
		value, exists := doc.Lookup(field)
		if !exists {
			continue
		}
		if items, ok := normalize(value).([]any); ok {
			for _, item := range items {
				add(item)
			}
			continue
		}
		add(value)
	}
	return values
}

type Group struct {
	Key       Document
	Documents []Document
}

// GroupBy partitions docs by the values of keys. Documents missing any key
// are dropped. Groups are ordered by their key values.
func GroupBy(docs []Document, keys []string) []Group {
	var groups []Group

	for _, doc := range docs {
		key := make(Document, len(keys))
		complete := true
		for _, k := range keys {
			value, exists := doc.Lookup(k)
			if !exists {
				complete = false
				break
			}
			setPath(key, k, value)
		}
		if !complete {
			continue
		}

		found := false
		for i := range groups {
			if Equal(groups[i].Key, key) {
				groups[i].Documents = append(groups[i].Documents, doc)
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, Group{Key: key, Documents: []Document{doc}})
		}
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		for _, k := range keys {
			va, _ := a.Key.Lookup(k)
			vb, _ := b.Key.Lookup(k)
			if c := sortCompare(va, vb); c != 0 {
				return c
			}
		}
		return 0
	})
	return groups
}
