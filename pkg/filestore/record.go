package filestore

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/mwantia/gofilestore/pkg/query"
)

const (
	FieldID          = "id"
	FieldFileID      = "file_id"
	FieldPath        = "path"
	FieldParent      = "parent"
	FieldName        = "name"
	FieldSize        = "size"
	FieldLastUpdated = "last_updated"
	FieldHash        = "hash"
	FieldOrphan      = "orphan"
	FieldContents    = "contents"
)

// ProtectedFields are derived from the filesystem and can not be changed by callers.
var ProtectedFields = []string{
	FieldPath,
	FieldParent,
	FieldName,
	FieldSize,
	FieldLastUpdated,
	FieldHash,
	FieldOrphan,
}

// IsReserved reports whether field is owned by the store rather than the user.
func IsReserved(field string) bool {
	switch field {
	case FieldID, FieldFileID, FieldContents:
		return true
	}
	for _, protected := range ProtectedFields {
		if field == protected {
			return true
		}
	}
	return false
}

// FileRecord is one file of the collection, or an orphan left behind by the side-car.
type FileRecord struct {
	ID          string
	FileID      string
	Path        string
	Parent      string
	Name        string
	Size        int64
	LastUpdated time.Time
	Hash        string
	Orphan      bool
	// Fields holds user metadata only.
	Fields query.Document

	rel string
}

// RelPath is the slash separated path below the store root.
func (r *FileRecord) RelPath() string {
	return r.rel
}

// Document renders the record as it is exposed to queries. Orphans carry no
// size, hash or timestamp.
func (r *FileRecord) Document() query.Document {
	doc := make(query.Document, len(r.Fields)+9)
	for key, value := range r.Fields {
		doc[key] = value
	}

	doc[FieldID] = r.ID
	doc[FieldFileID] = r.FileID
	doc[FieldPath] = r.Path
	doc[FieldParent] = r.Parent
	doc[FieldName] = r.Name
	doc[FieldOrphan] = r.Orphan
	if !r.Orphan {
		doc[FieldSize] = r.Size
		doc[FieldLastUpdated] = r.LastUpdated
		doc[FieldHash] = r.Hash
	}
	return doc
}

// Entry returns the side-car form of the record and whether it has anything to persist.
func (r *FileRecord) Entry() (MetadataEntry, bool) {
	if len(r.Fields) == 0 {
		return MetadataEntry{}, false
	}
	return MetadataEntry{
		FileID: r.FileID,
		Path:   r.rel,
		Fields: r.Fields.Clone(),
	}, true
}

func (r *FileRecord) withFields(fields query.Document) *FileRecord {
	clone := *r
	clone.Fields = fields
	return &clone
}

func newDerivedRecord(desc RawDescriptor, rel string) *FileRecord {
	return &FileRecord{
		FileID:      fileIDFromRel(rel),
		Path:        desc.Path,
		Parent:      filepath.Base(filepath.Dir(desc.Path)),
		Name:        filepath.Base(desc.Path),
		Size:        desc.Size,
		LastUpdated: desc.LastUpdated,
		Hash:        desc.Hash,
		rel:         rel,
	}
}

func newOrphanRecord(root string, entry MetadataEntry) *FileRecord {
	path := filepath.FromSlash(entry.Path)
	rel := entry.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	record := &FileRecord{
		FileID: entry.FileID,
		Path:   path,
		Orphan: true,
		Fields: userFields(entry.Fields),
		rel:    rel,
	}
	if path != "" {
		record.Name = filepath.Base(path)
		record.Parent = filepath.Base(filepath.Dir(path))
	}
	return record
}

// userFields copies fields without any reserved keys.
func userFields(fields query.Document) query.Document {
	result := make(query.Document, len(fields))
	for key, value := range fields {
		if IsReserved(key) {
			continue
		}
		result[key] = value
	}
	return result.Clone()
}

// StoreState is the reconciled collection. It is never mutated once published.
type StoreState struct {
	Root    string
	Records map[string]*FileRecord
}

func (s *StoreState) Get(fileID string) (*FileRecord, bool) {
	if s == nil {
		return nil, false
	}
	record, exists := s.Records[fileID]
	return record, exists
}

func (s *StoreState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Sorted returns the records ordered by relative path.
func (s *StoreState) Sorted() []*FileRecord {
	if s == nil {
		return nil
	}
	records := make([]*FileRecord, 0, len(s.Records))
	for _, record := range s.Records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].rel != records[j].rel {
			return records[i].rel < records[j].rel
		}
		return records[i].FileID < records[j].FileID
	})
	return records
}

// Entries builds the side-car overlay of the state.
func (s *StoreState) Entries() map[string]MetadataEntry {
	entries := make(map[string]MetadataEntry)
	if s == nil {
		return entries
	}
	for id, record := range s.Records {
		if entry, ok := record.Entry(); ok {
			entries[id] = entry
		}
	}
	return entries
}

// with returns a copy of the state where the given records are replaced and
// the given file_ids removed.
func (s *StoreState) with(replaced map[string]*FileRecord, removed []string) *StoreState {
	records := make(map[string]*FileRecord, len(s.Records))
	for id, record := range s.Records {
		records[id] = record
	}
	for id, record := range replaced {
		records[id] = record
	}
	for _, id := range removed {
		delete(records, id)
	}
	return &StoreState{
		Root:    s.Root,
		Records: records,
	}
}
