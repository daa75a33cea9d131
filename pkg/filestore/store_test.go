package filestore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/gofilestore/pkg/db/store"
	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, root string, options ...FileStoreOption) *FileStore {
	t.Helper()

	fs, err := New(root, options...)
	require.NoError(t, err)
	require.NoError(t, fs.Connect(context.Background()))
	t.Cleanup(func() { fs.Close() })
	return fs
}

func readSidecar(t *testing.T, fs *FileStore) map[string]MetadataEntry {
	t.Helper()

	entries, err := fs.Sidecar().Load()
	require.NoError(t, err)
	return entries
}

func TestFileStore_ConnectCountsFiles(t *testing.T) {
	root := newTestDir(t)
	fs := connect(t, root)

	docs, err := fs.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, docs, len(testTree))

	count, err := fs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, len(testTree), count)
}

func TestFileStore_MaxDepth(t *testing.T) {
	root := newTestDir(t)

	for depth, expected := range map[int]int{-1: 6, 0: 1, 1: 5, 2: 6} {
		fs := connect(t, root, WithMaxDepth(depth))
		count, err := fs.Count(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, expected, count, "max depth %d", depth)
	}
}

func TestFileStore_TrackFiles(t *testing.T) {
	root := newTestDir(t)
	fs := connect(t, root, WithReadOnly(false), WithTrackFiles("*.in", "*.json"))

	exists, err := fs.Sidecar().Exists()
	require.NoError(t, err)
	require.True(t, exists)

	count, err := fs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFileStore_SidecarName(t *testing.T) {
	root := newTestDir(t)
	connect(t, root, WithReadOnly(false), WithSidecarName("random.json"))

	_, err := os.Stat(filepath.Join(root, "random.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, DefaultSidecarName))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_ReadOnlyLeavesRootUntouched(t *testing.T) {
	root := newTestDir(t)
	fs := connect(t, root)
	ctx := context.Background()

	_, err := os.Stat(filepath.Join(root, DefaultSidecarName))
	assert.True(t, os.IsNotExist(err))

	var readOnly *ReadOnlyError
	assert.ErrorAs(t, fs.Update(ctx, []query.Document{{"file_id": "x"}}), &readOnly)
	assert.ErrorIs(t, fs.AddMetadata(ctx, nil, query.Document{"k": "v"}, nil), ErrReadOnly)
	assert.ErrorIs(t, fs.RemoveDocs(ctx, nil, true), ErrReadOnly)
}

func TestFileStore_NotConnected(t *testing.T) {
	fs, err := New(newTestDir(t), WithReadOnly(false))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = fs.Query(ctx, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = fs.Count(ctx, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, fs.Update(ctx, nil), ErrNotConnected)

	require.NoError(t, fs.Connect(ctx))
	require.NoError(t, fs.Close())
	assert.False(t, fs.Connected())

	_, err = fs.Query(ctx, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestFileStore_Metadata(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	doc, err := fs.QueryOne(ctx, query.Filter{"name": "input.in", "parent": "calculation1"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	fileID := doc[FieldFileID].(string)

	require.NoError(t, fs.Update(ctx, []query.Document{{
		"file_id":  fileID,
		"metadata": map[string]any{"experiment date": "2022-01-18"},
	}}))
	require.NoError(t, fs.Close())

	entries := readSidecar(t, fs)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"experiment date": "2022-01-18"}, entries[fileID].Fields["metadata"])
	assert.Equal(t, "calculation1/input.in", entries[fileID].Path)

	fs2 := connect(t, root, WithReadOnly(false))
	doc, err = fs2.QueryOne(ctx, query.Filter{"file_id": fileID})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"experiment date": "2022-01-18"}, doc["metadata"])
}

func TestFileStore_UpdateProtectedField(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	doc, err := fs.QueryOne(ctx, query.Filter{"name": "README.md"})
	require.NoError(t, err)
	require.NoError(t, fs.Update(ctx, []query.Document{{"file_id": doc["file_id"], "k": "v"}}))

	before, err := os.ReadFile(fs.Sidecar().Path())
	require.NoError(t, err)

	doc["name"] = "renamed.md"
	err = fs.Update(ctx, []query.Document{doc})

	var protected *ProtectedFieldError
	require.ErrorAs(t, err, &protected)
	assert.Equal(t, []string{FieldName}, protected.Fields)
	assert.ErrorIs(t, err, ErrProtectedField)

	after, err := os.ReadFile(fs.Sidecar().Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStore_UpdateAcceptsQueriedRecord(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	doc, err := fs.QueryOne(ctx, query.Filter{"name": "README.md"})
	require.NoError(t, err)
	require.Contains(t, doc, FieldContents)

	doc["reviewed"] = true
	doc["id"] = "ignored"
	require.NoError(t, fs.Update(ctx, []query.Document{doc}))

	entries := readSidecar(t, fs)
	fileID := doc[FieldFileID].(string)
	require.Contains(t, entries, fileID)
	assert.Equal(t, query.Document{"reviewed": true}, entries[fileID].Fields)
}

func TestFileStore_UpdateUnknownRecord(t *testing.T) {
	fs := connect(t, newTestDir(t), WithReadOnly(false))

	err := fs.Update(context.Background(), []query.Document{{"file_id": "unknown", "k": "v"}})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	err = fs.Update(context.Background(), []query.Document{{"k": "v"}})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFileStore_UpdateRemovesEmptyEntries(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	doc, err := fs.QueryOne(ctx, query.Filter{"name": "README.md"})
	require.NoError(t, err)
	fileID := doc[FieldFileID]

	require.NoError(t, fs.Update(ctx, []query.Document{{"file_id": fileID, "k": "v"}}))
	assert.Len(t, readSidecar(t, fs), 1)

	require.NoError(t, fs.Update(ctx, []query.Document{{"file_id": fileID}}))
	assert.Empty(t, readSidecar(t, fs))
}

func TestFileStore_PersistsOnlyAnnotatedRecords(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 10; i++ {
		files[filepath.ToSlash(filepath.Join("set", string(rune('a'+i))+".txt"))] = "x"
	}
	writeTree(t, root, files)

	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	docs, err := fs.Query(ctx, &query.Query{
		Filter:     query.Filter{"name": map[string]any{"$in": []any{"a.txt", "b.txt"}}},
		Properties: []string{"file_id"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	updates := make([]query.Document, len(docs))
	for i, doc := range docs {
		updates[i] = query.Document{"file_id": doc["file_id"], "label": "selected"}
	}
	require.NoError(t, fs.Update(ctx, updates))

	data, err := os.ReadFile(fs.Sidecar().Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"size"`)
	assert.NotContains(t, string(data), `"hash"`)

	entries := readSidecar(t, fs)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, query.Document{"label": "selected"}, entry.Fields)
		assert.True(t, strings.HasPrefix(entry.Path, "set/"))
	}
}

func TestFileStore_AddMetadataAuto(t *testing.T) {
	root := newTestDir(t)
	writeTree(t, root, map[string]string{"2022-05-07_experiment.csv": "a,b\n1,2\n"})
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	pattern := regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	auto := func(record query.Document) (query.Document, error) {
		name, _ := record[FieldName].(string)
		if date := pattern.FindString(name); date != "" {
			return query.Document{"date": date}, nil
		}
		return nil, nil
	}

	require.NoError(t, fs.AddMetadata(ctx, query.Filter{}, query.Document{}, auto))

	entries := readSidecar(t, fs)
	require.Len(t, entries, 1)
	for _, entry := range entries {
		assert.Equal(t, "2022-05-07_experiment.csv", entry.Path)
		assert.Equal(t, query.Document{"date": "2022-05-07"}, entry.Fields)
	}

	doc, err := fs.QueryOne(ctx, query.Filter{"date": "2022-05-07"}, "name")
	require.NoError(t, err)
	assert.Equal(t, query.Document{"name": "2022-05-07_experiment.csv"}, doc)
}

func TestFileStore_AddMetadataMerges(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	filter := query.Filter{"name": "input.in"}
	require.NoError(t, fs.AddMetadata(ctx, filter, query.Document{"a": 1}, nil))
	require.NoError(t, fs.AddMetadata(ctx, filter, query.Document{"b": 2}, nil))

	entries := readSidecar(t, fs)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.True(t, query.Equal(entry.Fields["a"], 1))
		assert.True(t, query.Equal(entry.Fields["b"], 2))
	}

	err := fs.AddMetadata(ctx, filter, query.Document{"size": 1}, nil)
	assert.ErrorIs(t, err, ErrProtectedField)
}

func TestFileStore_Orphans(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	require.NoError(t, fs.AddMetadata(ctx, query.Filter{"name": "output.out"}, query.Document{"k": "v"}, nil))
	require.NoError(t, fs.Close())
	require.NoError(t, os.Remove(filepath.Join(root, "calculation1", "output.out")))

	fs = connect(t, root, WithReadOnly(false))
	count, err := fs.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	orphans, err := fs.Orphans()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "output.out", orphans[0].Name)
	assert.Equal(t, "calculation1", orphans[0].Parent)

	docs, err := fs.Query(ctx, &query.Query{Filter: query.Filter{"orphan": true}})
	require.NoError(t, err)
	assert.Empty(t, docs)

	withOrphans := connect(t, root, WithReadOnly(false), WithIncludeOrphans(true))
	docs, err = withOrphans.Query(ctx, &query.Query{Filter: query.Filter{"orphan": true}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v", docs[0]["k"])
	assert.True(t, strings.HasPrefix(docs[0][FieldContents].(string), UnreadablePrefix))

	count, err = withOrphans.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestFileStore_OrphanDropsWithoutFields(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	require.NoError(t, fs.AddMetadata(ctx, query.Filter{"name": "README.md"}, query.Document{"k": "v"}, nil))
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))
	require.NoError(t, fs.Connect(ctx))

	orphans, err := fs.Orphans()
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	require.NoError(t, fs.Update(ctx, []query.Document{{"file_id": orphans[0].FileID}}))

	orphans, err = fs.Orphans()
	require.NoError(t, err)
	assert.Empty(t, orphans)
	assert.Empty(t, readSidecar(t, fs))
}

func TestFileStore_NarrowingScopeOrphans(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	require.NoError(t, fs.AddMetadata(ctx, query.Filter{"name": "output.out"}, query.Document{"k": "v"}, nil))
	require.NoError(t, fs.Close())

	narrowed := connect(t, root, WithReadOnly(false), WithTrackFiles("*.in"))
	orphans, err := narrowed.Orphans()
	require.NoError(t, err)
	assert.Len(t, orphans, 2)

	entries := readSidecar(t, narrowed)
	assert.Len(t, entries, 2)

	count, err := narrowed.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFileStore_RemoveDocs(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	filter := query.Filter{"name": "output.out"}
	require.NoError(t, fs.AddMetadata(ctx, filter, query.Document{"k": "v"}, nil))

	err := fs.RemoveDocs(ctx, filter, false)
	var confirmation *ConfirmationRequiredError
	require.ErrorAs(t, err, &confirmation)
	assert.Equal(t, 2, confirmation.Count)
	assert.FileExists(t, filepath.Join(root, "calculation1", "output.out"))
	assert.Len(t, readSidecar(t, fs), 2)

	require.NoError(t, fs.RemoveDocs(ctx, filter, true))
	assert.NoFileExists(t, filepath.Join(root, "calculation1", "output.out"))
	assert.NoFileExists(t, filepath.Join(root, "calculation2", "output.out"))
	assert.Empty(t, readSidecar(t, fs))

	count, err := fs.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, fs.Connect(ctx))
	orphans, err := fs.Orphans()
	require.NoError(t, err)
	assert.Empty(t, orphans)

	count, err = fs.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestFileStore_RemoveDocsPartialFailure(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	stuck := filepath.Join(root, "calculation2", "output.out")
	fsys := &failingFs{Fs: afero.NewOsFs(), path: stuck}

	fs, err := New(root, WithReadOnly(false), WithFs(fsys), WithContentSizeLimit(0))
	require.NoError(t, err)
	require.NoError(t, fs.Connect(ctx))
	defer fs.Close()

	filter := query.Filter{"name": "output.out"}
	require.NoError(t, fs.AddMetadata(ctx, filter, query.Document{"k": "v"}, nil))

	err = fs.RemoveDocs(ctx, filter, true)
	var removeErr *RemoveError
	require.ErrorAs(t, err, &removeErr)
	assert.Len(t, removeErr.Removed, 1)
	assert.Len(t, removeErr.Failed, 1)
	assert.ErrorIs(t, err, os.ErrPermission)

	assert.NoFileExists(t, filepath.Join(root, "calculation1", "output.out"))
	assert.FileExists(t, stuck)

	entries := readSidecar(t, fs)
	require.Len(t, entries, 1)
	for _, entry := range entries {
		assert.Equal(t, "calculation2/output.out", entry.Path)
	}
}

func TestFileStore_ReconnectKeepsIDs(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root)

	before, err := fs.QueryOne(ctx, query.Filter{"name": "README.md"}, "id")
	require.NoError(t, err)

	require.NoError(t, fs.Connect(ctx))
	after, err := fs.QueryOne(ctx, query.Filter{"name": "README.md"}, "id")
	require.NoError(t, err)
	assert.Equal(t, before["id"], after["id"])
}

func TestFileStore_CancelledConnectKeepsState(t *testing.T) {
	root := newTestDir(t)
	fs := connect(t, root)

	writeTree(t, root, map[string]string{"new.txt": "new"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fs.Connect(ctx), context.Canceled)

	count, err := fs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestFileStore_ConsistencyAbortsConnect(t *testing.T) {
	root := newTestDir(t)
	writeTree(t, root, map[string]string{DefaultSidecarName: "not json"})

	fs, err := New(root)
	require.NoError(t, err)
	assert.ErrorIs(t, fs.Connect(context.Background()), ErrConsistency)
	assert.False(t, fs.Connected())
}

func TestFileStore_QueryContents(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithContentSizeLimit(8))

	doc, err := fs.QueryOne(ctx, query.Filter{"name": "input.in", "parent": "calculation2"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc[FieldContents].(string), UnreadablePrefix))

	doc, err = fs.QueryOne(ctx, query.Filter{"name": "input.in", "parent": "calculation1"}, "name", "contents")
	require.NoError(t, err)
	assert.Equal(t, query.Document{"name": "input.in", "contents": ""}, doc)

	doc, err = fs.QueryOne(ctx, query.Filter{"name": "README.md"}, "name")
	require.NoError(t, err)
	assert.NotContains(t, doc, FieldContents)

	disabled := connect(t, root, WithContentSizeLimit(0))
	doc, err = disabled.QueryOne(ctx, query.Filter{"name": "README.md"})
	require.NoError(t, err)
	assert.NotContains(t, doc, FieldContents)
}

func TestFileStore_DistinctGroupBy(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root)

	parents, err := fs.Distinct(ctx, FieldParent, query.Filter{"name": "input.in"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"calculation1", "calculation2"}, parents)

	groups, err := fs.GroupBy(ctx, []string{FieldName}, nil)
	require.NoError(t, err)
	require.Len(t, groups, 4)

	sizes := make(map[string]int)
	for _, group := range groups {
		sizes[group.Key[FieldName].(string)] = len(group.Documents)
	}
	assert.Equal(t, map[string]int{
		"README.md":               1,
		"input.in":                2,
		"output.out":              2,
		"file_2_levels_deep.json": 1,
	}, sizes)
}

func TestFileStore_NewerIn(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root, WithReadOnly(false))

	target := filepath.Join(root, "calculation1", "input.in")
	require.NoError(t, os.WriteFile(target, []byte("modified"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(target, future, future))

	fs2 := connect(t, root, WithReadOnly(false))

	first, err := fs.LastUpdated()
	require.NoError(t, err)
	second, err := fs2.LastUpdated()
	require.NoError(t, err)
	assert.True(t, second.After(first))

	newer, err := fs.NewerIn(ctx, fs2)
	require.NoError(t, err)
	require.Len(t, newer, 1)

	fileID, err := FileID(fs.Root(), target)
	require.NoError(t, err)
	assert.Equal(t, fileID, newer[0])

	newer, err = fs2.NewerIn(ctx, fs)
	require.NoError(t, err)
	assert.Empty(t, newer)
}

func TestFileStore_Stats(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()
	fs := connect(t, root)

	stats, err := fs.Stats()
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Added: 6, Total: 6}, stats)

	writeTree(t, root, map[string]string{"added.txt": "new"})
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))
	require.NoError(t, fs.Connect(ctx))

	stats, err = fs.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 6, stats.Total)
}

func TestFileStore_SQLiteRecordStore(t *testing.T) {
	root := newTestDir(t)
	ctx := context.Background()

	records, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "records.db"),
	})
	require.NoError(t, err)

	fs := connect(t, root, WithReadOnly(false), WithRecordStore(records))

	count, err := fs.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	require.NoError(t, fs.AddMetadata(ctx, query.Filter{"parent": "calculation2"}, query.Document{"batch": 2}, nil))

	docs, err := fs.Query(ctx, &query.Query{
		Filter:     query.Filter{"batch": 2},
		Properties: []string{"name"},
		Sort:       []query.SortKey{{Field: "name", Order: query.Ascending}},
	})
	require.NoError(t, err)
	assert.Equal(t, []query.Document{{"name": "input.in"}, {"name": "output.out"}}, docs)
}
