package models

import "time"

// Field represents a user metadata key attached to a record, the value is JSON encoded
type Field struct {
	ID           uint   `gorm:"primaryKey"`
	RecordFileID string `gorm:"type:text;not null;index:idx_record_fields"`
	Key          string `gorm:"type:text;not null;index:idx_field_key"`
	Value        string `gorm:"type:text;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
