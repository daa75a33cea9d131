package store

import (
	"context"

	"github.com/mwantia/gofilestore/pkg/query"
)

// RecordStore holds the reconciled records and answers queries over them.
// Documents are keyed by their "file_id" field.
type RecordStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error

	// Write operations
	Replace(ctx context.Context, docs []query.Document) error
	Upsert(ctx context.Context, docs []query.Document) error
	Delete(ctx context.Context, fileIDs []string) error

	// Read operations
	Find(ctx context.Context, q *query.Query) ([]query.Document, error)
	Count(ctx context.Context, filter query.Filter) (int, error)
}

func fileIDOf(doc query.Document) (string, bool) {
	fileID, ok := doc["file_id"].(string)
	return fileID, ok && fileID != ""
}
