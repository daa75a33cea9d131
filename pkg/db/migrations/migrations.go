package migrations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mwantia/gofilestore/pkg/db/models"
	"gorm.io/gorm"
)

// Migration is one versioned schema change of the record database.
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

// schemaMigration is a row of the applied migration history.
type schemaMigration struct {
	Version     int    `gorm:"primaryKey;autoIncrement:false"`
	Description string `gorm:"type:text"`
	AppliedAt   time.Time
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   time.Time
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return newMigrator(db, recordMigrations())
}

func newMigrator(db *gorm.DB, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return &Migrator{
		db:         db,
		migrations: sorted,
	}
}

// Latest is the schema version after every migration ran.
func (m *Migrator) Latest() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

func (m *Migrator) history(ctx context.Context) (map[int]schemaMigration, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return nil, fmt.Errorf("failed to create migration history table: %w", err)
	}

	var rows []schemaMigration
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}

	applied := make(map[int]schemaMigration, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

// Migrate applies every pending migration in version order and returns the
// versions it applied.
func (m *Migrator) Migrate(ctx context.Context) ([]int, error) {
	applied, err := m.history(ctx)
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, migration := range m.migrations {
		if _, done := applied[migration.Version]; done {
			continue
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:     migration.Version,
				Description: migration.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return versions, fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
		versions = append(versions, migration.Version)
	}
	return versions, nil
}

// Rollback reverts applied migrations newer than version, newest first.
func (m *Migrator) Rollback(ctx context.Context, version int) error {
	applied, err := m.history(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version <= version {
			break
		}
		if _, done := applied[migration.Version]; !done {
			continue
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&schemaMigration{}, migration.Version).Error
		})
		if err != nil {
			return fmt.Errorf("rollback of migration %d failed: %w", migration.Version, err)
		}
	}
	return nil
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.history(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		row, done := applied[migration.Version]
		statuses = append(statuses, MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     done,
			AppliedAt:   row.AppliedAt,
		})
	}
	return statuses, nil
}

func recordMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Records and user fields",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.Record{}, &models.Field{})
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(&models.Field{}, &models.Record{})
			},
		},
		{
			Version:     2,
			Description: "Unique field keys per record",
			Up: func(db *gorm.DB) error {
				return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_record_field_key ON fields (record_file_id, key)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Exec("DROP INDEX IF EXISTS idx_record_field_key").Error
			},
		},
	}
}
