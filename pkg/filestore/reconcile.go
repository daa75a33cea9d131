package filestore

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// ReconcileStats compares a reconciled state against the previous one.
type ReconcileStats struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Orphaned int `json:"orphaned"`
	Total    int `json:"total"`
}

// Reconcile merges scanned files with the persisted side-car entries into a
// new state. Persisted entries without a scanned file become orphans. The
// previous state is only read: surviving records keep their id and it is the
// baseline for the returned stats.
func Reconcile(root string, scanned []RawDescriptor, persisted map[string]MetadataEntry, previous *StoreState) (*StoreState, ReconcileStats, error) {
	root = filepath.Clean(root)
	records := make(map[string]*FileRecord, len(scanned)+len(persisted))

	for _, desc := range scanned {
		rel, err := RelativePath(root, desc.Path)
		if err != nil {
			return nil, ReconcileStats{}, fmt.Errorf("failed to identify '%s': %w", desc.Path, err)
		}

		record := newDerivedRecord(desc, rel)
		if existing, exists := records[record.FileID]; exists {
			return nil, ReconcileStats{}, &ConsistencyError{
				Reason: "file_id collision between scanned files",
				FileID: record.FileID,
				Paths:  []string{existing.Path, desc.Path},
			}
		}

		record.Fields = make(map[string]any)
		if entry, exists := persisted[record.FileID]; exists {
			if entry.Path != "" && !filepath.IsAbs(filepath.FromSlash(entry.Path)) && entry.Path != rel {
				return nil, ReconcileStats{}, &ConsistencyError{
					Reason: "file_id collision between scanned file and side-car entry",
					FileID: record.FileID,
					Paths:  []string{entry.Path, rel},
				}
			}
			record.Fields = userFields(entry.Fields)
		}

		records[record.FileID] = record
	}

	for id, entry := range persisted {
		if _, exists := records[id]; exists {
			continue
		}
		records[id] = newOrphanRecord(root, entry)
	}

	stats := ReconcileStats{Total: len(records)}
	for id, record := range records {
		prior, existed := previous.Get(id)
		if existed {
			record.ID = prior.ID
		} else {
			record.ID = uuid.Must(uuid.NewV7()).String()
		}

		switch {
		case record.Orphan:
			stats.Orphaned++
		case !existed || prior.Orphan:
			stats.Added++
		case prior.Hash != record.Hash || prior.Size != record.Size || !prior.LastUpdated.Equal(record.LastUpdated):
			stats.Modified++
		}
	}
	if previous != nil {
		for id := range previous.Records {
			if _, exists := records[id]; !exists {
				stats.Removed++
			}
		}
	}

	return &StoreState{
		Root:    root,
		Records: records,
	}, stats, nil
}
