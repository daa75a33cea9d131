package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory struct {
	name   string
	create func(t *testing.T) RecordStore
}

func factories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			create: func(t *testing.T) RecordStore {
				return NewMemoryStore()
			},
		},
		{
			name: "sqlite",
			create: func(t *testing.T) RecordStore {
				s, err := NewSQLiteStore(SQLiteConfig{
					Path: filepath.Join(t.TempDir(), "records.db"),
				})
				require.NoError(t, err)
				return s
			},
		},
	}
}

func fixtures() []query.Document {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []query.Document{
		{
			"id": "1", "file_id": "a", "path": "/root/a/input.in", "parent": "a", "name": "input.in",
			"size": int64(10), "hash": "h1", "last_updated": modified, "orphan": false,
			"tag": "x",
		},
		{
			"id": "2", "file_id": "b", "path": "/root/b/input.in", "parent": "b", "name": "input.in",
			"size": int64(20), "hash": "h2", "last_updated": modified.Add(time.Hour), "orphan": false,
			"metadata": map[string]any{"date": "2022-01-18"},
		},
		{
			"id": "3", "file_id": "c", "path": "/root/c/gone.txt", "parent": "c", "name": "gone.txt",
			"orphan": true, "tag": "y",
		},
	}
}

func connected(t *testing.T, f storeFactory) RecordStore {
	t.Helper()

	s := f.create(t)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Replace(context.Background(), fixtures()))
	return s
}

func TestRecordStore_Find(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)

			docs, err := s.Find(ctx, &query.Query{
				Filter: query.Filter{"name": "input.in", "orphan": false},
				Sort:   []query.SortKey{{Field: "size", Order: query.Descending}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "b", docs[0]["file_id"])
			assert.Equal(t, "a", docs[1]["file_id"])

			docs, err = s.Find(ctx, &query.Query{Filter: query.Filter{"metadata.date": "2022-01-18"}})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "b", docs[0]["file_id"])

			docs, err = s.Find(ctx, &query.Query{Filter: query.Filter{"size": map[string]any{"$gte": 15}}})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "b", docs[0]["file_id"])

			docs, err = s.Find(ctx, &query.Query{
				Filter:     query.Filter{"file_id": "a"},
				Properties: []string{"name", "tag"},
			})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, query.Document{"name": "input.in", "tag": "x"}, docs[0])
		})
	}
}

func TestRecordStore_OrphanFields(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)

			docs, err := s.Find(ctx, &query.Query{Filter: query.Filter{"orphan": true}})
			require.NoError(t, err)
			require.Len(t, docs, 1)

			orphan := docs[0]
			assert.Equal(t, "gone.txt", orphan["name"])
			assert.Equal(t, "y", orphan["tag"])
			assert.NotContains(t, orphan, "size")
			assert.NotContains(t, orphan, "hash")
			assert.NotContains(t, orphan, "last_updated")
		})
	}
}

func TestRecordStore_Count(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)

			count, err := s.Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			count, err = s.Count(ctx, query.Filter{"tag": map[string]any{"$exists": true}})
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		})
	}
}

func TestRecordStore_UpsertDelete(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)

			updated := fixtures()[0]
			delete(updated, "tag")
			updated["experiment"] = "e1"
			require.NoError(t, s.Upsert(ctx, []query.Document{updated}))

			docs, err := s.Find(ctx, &query.Query{Filter: query.Filter{"file_id": "a"}})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "e1", docs[0]["experiment"])
			assert.NotContains(t, docs[0], "tag")

			require.NoError(t, s.Delete(ctx, []string{"a", "c"}))
			count, err := s.Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			require.NoError(t, s.Replace(ctx, nil))
			count, err = s.Count(ctx, nil)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestRecordStore_FindReturnsCopies(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)

			docs, err := s.Find(ctx, &query.Query{Filter: query.Filter{"file_id": "a"}})
			require.NoError(t, err)
			docs[0]["contents"] = "changed"

			docs, err = s.Find(ctx, &query.Query{Filter: query.Filter{"file_id": "a"}})
			require.NoError(t, err)
			assert.NotContains(t, docs[0], "contents")
		})
	}
}

func TestRecordStore_RejectsMissingFileID(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := connected(t, f)
			assert.Error(t, s.Upsert(ctx, []query.Document{{"name": "x"}}))
		})
	}
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(SQLiteConfig{})
	assert.Error(t, err)
}
