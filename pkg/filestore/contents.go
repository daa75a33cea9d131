package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// UnreadablePrefix marks a contents value that describes why a file could not be read.
const UnreadablePrefix = "Unable to read: "

// ReadContents returns the text of the file at path, or a sentinel string
// starting with UnreadablePrefix when it is too large, binary or unreadable.
func ReadContents(fsys afero.Fs, path string, size, sizeLimit int64) string {
	if size > sizeLimit {
		return fmt.Sprintf("%sfile size %d exceeds limit of %d bytes", UnreadablePrefix, size, sizeLimit)
	}

	file, err := fsys.Open(path)
	if err != nil {
		return UnreadablePrefix + err.Error()
	}
	defer file.Close()

	// The file may have grown since it was scanned.
	data, err := io.ReadAll(io.LimitReader(file, sizeLimit+1))
	if err != nil {
		return UnreadablePrefix + err.Error()
	}
	if int64(len(data)) > sizeLimit {
		return fmt.Sprintf("%sfile exceeds limit of %d bytes", UnreadablePrefix, sizeLimit)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return UnreadablePrefix + "binary content"
	}
	return string(data)
}

func readRecordContents(fsys afero.Fs, record *FileRecord, sizeLimit int64) string {
	if record.Orphan {
		return UnreadablePrefix + "file no longer exists"
	}
	return ReadContents(fsys, record.Path, record.Size, sizeLimit)
}

// attachContents sets the contents field of every document concurrently.
// Documents are matched to records by file_id.
func (s *FileStore) attachContents(ctx context.Context, state *StoreState, docs []query.Document) error {
	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(s.opts.Workers)

	for _, doc := range docs {
		fileID, _ := doc[FieldFileID].(string)
		record, exists := state.Get(fileID)
		if !exists {
			continue
		}

		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Each goroutine writes into its own document only.
			doc[FieldContents] = readRecordContents(s.fsys, record, s.opts.ContentSizeLimit)
			return nil
		})
	}
	return p.Wait()
}
