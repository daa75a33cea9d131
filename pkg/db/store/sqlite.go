package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/gofilestore/pkg/db/migrations"
	"github.com/mwantia/gofilestore/pkg/db/models"
	"github.com/mwantia/gofilestore/pkg/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements RecordStore using SQLite
type SQLiteStore struct {
	mu  sync.Mutex
	db  *gorm.DB
	cfg SQLiteConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed record store, the database is opened on Connect
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db
}

// Connect opens the database and runs pending migrations
func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.ping(ctx)
	}

	db, err := gorm.Open(sqlite.Open(s.cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(s.cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := migrations.NewMigrator(db).Migrate(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	s.db = nil
	return sqlDB.Close()
}

func (s *SQLiteStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, fmt.Errorf("sqlite store is not connected")
	}
	return s.db.WithContext(ctx), nil
}

func toRecords(docs []query.Document) ([]*models.Record, error) {
	records := make([]*models.Record, 0, len(docs))
	for _, doc := range docs {
		record, err := models.NewRecord(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func writeRecords(tx *gorm.DB, records []*models.Record) error {
	for _, record := range records {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(record).Error; err != nil {
			return fmt.Errorf("failed to write record '%s': %w", record.FileID, err)
		}

		if err := tx.Where("record_file_id = ?", record.FileID).Delete(&models.Field{}).Error; err != nil {
			return fmt.Errorf("failed to clear fields of '%s': %w", record.FileID, err)
		}
		if len(record.Fields) > 0 {
			if err := tx.Create(&record.Fields).Error; err != nil {
				return fmt.Errorf("failed to write fields of '%s': %w", record.FileID, err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) Replace(ctx context.Context, docs []query.Document) error {
	records, err := toRecords(docs)
	if err != nil {
		return err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Field{}).Error; err != nil {
			return fmt.Errorf("failed to clear fields: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.Record{}).Error; err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		return writeRecords(tx, records)
	})
}

func (s *SQLiteStore) Upsert(ctx context.Context, docs []query.Document) error {
	if len(docs) == 0 {
		return nil
	}

	records, err := toRecords(docs)
	if err != nil {
		return err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		return writeRecords(tx, records)
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_file_id IN ?", fileIDs).Delete(&models.Field{}).Error; err != nil {
			return err
		}
		return tx.Where("file_id IN ?", fileIDs).Delete(&models.Record{}).Error
	})
}

// candidates loads the records that can match filter. Top-level equality on
// indexed columns is evaluated by SQLite, everything else by query.Match.
func (s *SQLiteStore) candidates(ctx context.Context, filter query.Filter) ([]query.Document, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	tx := db.Model(&models.Record{}).Preload("Fields").Order("path")
	for field, value := range filter {
		column, indexed := models.Columns[field]
		if !indexed {
			continue
		}
		switch v := value.(type) {
		case string, bool:
			tx = tx.Where(fmt.Sprintf("%s = ?", column), v)
		}
	}

	var records []models.Record
	if err := tx.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	docs := make([]query.Document, 0, len(records))
	for _, record := range records {
		doc, err := record.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SQLiteStore) Find(ctx context.Context, q *query.Query) ([]query.Document, error) {
	if q == nil {
		q = &query.Query{}
	}

	docs, err := s.candidates(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	return query.Apply(docs, q)
}

func (s *SQLiteStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	docs, err := s.candidates(ctx, filter)
	if err != nil {
		return 0, err
	}

	matched, err := query.Filtered(docs, filter)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}
