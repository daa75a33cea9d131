package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/tidwall/btree"
)

// MemoryStore keeps records in an ordered in-memory index
type MemoryStore struct {
	mu   sync.RWMutex
	docs *btree.Map[string, query.Document]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: btree.NewMap[string, query.Document](0),
	}
}

func (s *MemoryStore) Connect(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs.Clear()
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, docs []query.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	index := btree.NewMap[string, query.Document](0)
	for _, doc := range docs {
		fileID, ok := fileIDOf(doc)
		if !ok {
			return fmt.Errorf("document without file_id")
		}
		index.Set(fileID, doc.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = index
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []query.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		fileID, ok := fileIDOf(doc)
		if !ok {
			return fmt.Errorf("document without file_id")
		}
		s.docs.Set(fileID, doc.Clone())
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, fileIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fileID := range fileIDs {
		s.docs.Delete(fileID)
	}
	return nil
}

func (s *MemoryStore) snapshot() []query.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]query.Document, 0, s.docs.Len())
	s.docs.Scan(func(_ string, doc query.Document) bool {
		docs = append(docs, doc)
		return true
	})
	return docs
}

// Find returns copies, callers may modify the result.
func (s *MemoryStore) Find(ctx context.Context, q *query.Query) ([]query.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := query.Apply(s.snapshot(), q)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		docs[i] = doc.Clone()
	}
	return docs, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	docs, err := query.Filtered(s.snapshot(), filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
