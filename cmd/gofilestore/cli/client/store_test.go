package client

import (
	"testing"

	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, filter)

	filter, err = parseFilter([]string{`{"size": {"$gt": 10}}`})
	require.NoError(t, err)
	assert.Equal(t, query.Filter{"size": map[string]any{"$gt": float64(10)}}, filter)

	_, err = parseFilter([]string{`{"size":`})
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{"experiment=e1", "count=3", `tags=["a","b"]`, "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, query.Document{
		"experiment": "e1",
		"count":      float64(3),
		"tags":       []any{"a", "b"},
		"note":       "a=b",
		"empty":      "",
	}, fields)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=value"})
	assert.Error(t, err)
}

func TestDateFromName(t *testing.T) {
	fields, err := dateFromName(query.Document{"name": "2022-05-07_experiment.csv"})
	require.NoError(t, err)
	assert.Equal(t, query.Document{"date": "2022-05-07"}, fields)

	fields, err = dateFromName(query.Document{"name": "README.md"})
	require.NoError(t, err)
	assert.Nil(t, fields)
}
