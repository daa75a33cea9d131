package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/mwantia/gofilestore/pkg/query"
)

// AutoMetadataFunc derives additional user fields from a record.
type AutoMetadataFunc func(record query.Document) (query.Document, error)

// Update replaces the user fields of the given records. Each record is
// identified by its file_id. Protected fields may be present but must equal
// their current value. Ids and contents are ignored.
func (s *FileStore) Update(ctx context.Context, records []query.Document) error {
	if s.opts.ReadOnly {
		return &ReadOnlyError{Op: "update"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	state, err := s.current()
	if err != nil {
		return err
	}
	return s.update(ctx, state, records)
}

func (s *FileStore) update(ctx context.Context, state *StoreState, records []query.Document) error {
	replaced := make(map[string]*FileRecord, len(records))
	dropped := make(map[string]bool)

	for _, doc := range records {
		fileID, _ := doc[FieldFileID].(string)
		if fileID == "" {
			return fmt.Errorf("%w: record without file_id", ErrRecordNotFound)
		}

		current, exists := state.Get(fileID)
		if !exists {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, fileID)
		}
		if fields := protectedChanges(current, doc); len(fields) > 0 {
			return &ProtectedFieldError{
				FileID: fileID,
				Fields: fields,
			}
		}

		next := current.withFields(userFields(doc))
		if next.Orphan && len(next.Fields) == 0 {
			dropped[fileID] = true
			delete(replaced, fileID)
			continue
		}
		delete(dropped, fileID)
		replaced[fileID] = next
	}

	removed := make([]string, 0, len(dropped))
	for fileID := range dropped {
		removed = append(removed, fileID)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	next := state.with(replaced, removed)
	if err := s.sidecar.Save(next.Entries()); err != nil {
		return fmt.Errorf("failed to persist metadata: %w", err)
	}
	s.publish(next)

	upserts := make([]query.Document, 0, len(replaced))
	for _, record := range replaced {
		upserts = append(upserts, record.Document())
	}
	if err := s.records.Upsert(ctx, upserts); err != nil {
		return fmt.Errorf("failed to update record store: %w", err)
	}
	if err := s.records.Delete(ctx, removed); err != nil {
		return fmt.Errorf("failed to update record store: %w", err)
	}

	s.log.Debug("Updated %d record(s), dropped %d orphan(s)", len(replaced), len(removed))
	return nil
}

func (s *FileStore) publish(state *StoreState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = state
}

// protectedChanges lists the protected fields of doc that differ from record.
func protectedChanges(record *FileRecord, doc query.Document) []string {
	current := record.Document()

	var changed []string
	for _, field := range ProtectedFields {
		value, present := doc[field]
		if !present {
			continue
		}
		if !query.Equal(value, current[field]) {
			changed = append(changed, field)
		}
	}
	return changed
}

// AddMetadata merges fields and the result of auto into every record matching filter.
func (s *FileStore) AddMetadata(ctx context.Context, filter query.Filter, fields query.Document, auto AutoMetadataFunc) error {
	if s.opts.ReadOnly {
		return &ReadOnlyError{Op: "add metadata"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	state, err := s.current()
	if err != nil {
		return err
	}

	matches, err := s.records.Find(ctx, &query.Query{Filter: s.visible(filter)})
	if err != nil {
		return fmt.Errorf("failed to resolve records: %w", err)
	}

	updates := make([]query.Document, 0, len(matches))
	for _, match := range matches {
		fileID, _ := match[FieldFileID].(string)
		record, exists := state.Get(fileID)
		if !exists {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, fileID)
		}

		doc := record.Document()
		for key, value := range fields {
			doc[key] = value
		}
		if auto != nil {
			extra, err := auto(record.Document())
			if err != nil {
				return fmt.Errorf("failed to derive metadata for '%s': %w", record.Path, err)
			}
			for key, value := range extra {
				doc[key] = value
			}
		}
		updates = append(updates, doc)
	}

	if len(updates) == 0 {
		return nil
	}
	return s.update(ctx, state, updates)
}

// RemoveDocs deletes the files of all matching records together with their
// metadata. Nothing happens unless confirm is set. Files that are already
// gone count as removed.
func (s *FileStore) RemoveDocs(ctx context.Context, filter query.Filter, confirm bool) error {
	if s.opts.ReadOnly {
		return &ReadOnlyError{Op: "remove"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	state, err := s.current()
	if err != nil {
		return err
	}

	matches, err := s.records.Find(ctx, &query.Query{Filter: s.visible(filter)})
	if err != nil {
		return fmt.Errorf("failed to resolve records: %w", err)
	}
	if !confirm {
		return &ConfirmationRequiredError{Count: len(matches)}
	}

	var removed []string
	failed := make(map[string]error)
	for _, match := range matches {
		fileID, _ := match[FieldFileID].(string)
		record, exists := state.Get(fileID)
		if !exists {
			continue
		}
		if err := ctx.Err(); err != nil {
			failed[fileID] = err
			continue
		}

		if !record.Orphan {
			if err := s.fsys.Remove(record.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn("Unable to remove '%s': %v", record.Path, err)
				failed[fileID] = err
				continue
			}
		}
		removed = append(removed, fileID)
	}

	if len(removed) > 0 {
		next := state.with(nil, removed)
		if err := s.sidecar.Save(next.Entries()); err != nil {
			return fmt.Errorf("failed to persist metadata: %w", err)
		}
		s.publish(next)

		if err := s.records.Delete(ctx, removed); err != nil {
			return fmt.Errorf("failed to update record store: %w", err)
		}
		s.log.Info("Removed %d record(s)", len(removed))
	}

	if len(failed) > 0 {
		return &RemoveError{
			Removed: removed,
			Failed:  failed,
		}
	}
	return nil
}
