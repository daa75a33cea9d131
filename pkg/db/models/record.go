package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwantia/gofilestore/pkg/query"
)

// Record is the persisted form of a single file record
type Record struct {
	FileID   string `gorm:"primaryKey;type:text"`
	RecordID string `gorm:"type:text;not null;uniqueIndex"`
	Path     string `gorm:"type:text;not null;index"`
	Parent   string `gorm:"type:text;index"`
	Name     string `gorm:"type:text;not null;index"`

	// Derived file metadata, unset for orphans
	Size        int64
	Hash        string `gorm:"type:text;index"`
	LastUpdated *time.Time
	Orphan      bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Fields []Field `gorm:"foreignKey:RecordFileID;references:FileID;constraint:OnDelete:CASCADE"`
}

// Columns maps document fields onto indexed record columns
var Columns = map[string]string{
	"id":      "record_id",
	"file_id": "file_id",
	"path":    "path",
	"parent":  "parent",
	"name":    "name",
	"hash":    "hash",
	"orphan":  "orphan",
}

var derived = map[string]bool{
	"id":           true,
	"file_id":      true,
	"path":         true,
	"parent":       true,
	"name":         true,
	"size":         true,
	"last_updated": true,
	"hash":         true,
	"orphan":       true,
	"contents":     true,
}

// NewRecord converts a document into a record and its user fields
func NewRecord(doc query.Document) (*Record, error) {
	fileID, ok := doc["file_id"].(string)
	if !ok || fileID == "" {
		return nil, fmt.Errorf("document without file_id")
	}

	record := &Record{FileID: fileID}
	record.RecordID, _ = doc["id"].(string)
	record.Path, _ = doc["path"].(string)
	record.Parent, _ = doc["parent"].(string)
	record.Name, _ = doc["name"].(string)
	record.Hash, _ = doc["hash"].(string)
	record.Orphan, _ = doc["orphan"].(bool)

	switch size := doc["size"].(type) {
	case int64:
		record.Size = size
	case int:
		record.Size = int64(size)
	case float64:
		record.Size = int64(size)
	}

	switch updated := doc["last_updated"].(type) {
	case time.Time:
		utc := updated.UTC()
		record.LastUpdated = &utc
	case *time.Time:
		if updated != nil {
			utc := updated.UTC()
			record.LastUpdated = &utc
		}
	}

	for key, value := range doc {
		if derived[key] {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field '%s' of '%s': %w", key, fileID, err)
		}
		record.Fields = append(record.Fields, Field{
			RecordFileID: fileID,
			Key:          key,
			Value:        string(data),
		})
	}

	return record, nil
}

// Document converts the record back into its query form
func (r *Record) Document() (query.Document, error) {
	doc := make(query.Document, len(r.Fields)+9)
	for _, field := range r.Fields {
		var value any
		if err := json.Unmarshal([]byte(field.Value), &value); err != nil {
			return nil, fmt.Errorf("failed to decode field '%s' of '%s': %w", field.Key, r.FileID, err)
		}
		doc[field.Key] = value
	}

	doc["id"] = r.RecordID
	doc["file_id"] = r.FileID
	doc["path"] = r.Path
	doc["parent"] = r.Parent
	doc["name"] = r.Name
	doc["orphan"] = r.Orphan
	if !r.Orphan {
		doc["size"] = r.Size
		doc["hash"] = r.Hash
		if r.LastUpdated != nil {
			doc["last_updated"] = r.LastUpdated.UTC()
		}
	}
	return doc, nil
}
