package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/raykavin/alertnrun/pkg/core"
)

// SQLStore implements core.DocumentStore on a SQL database via GORM.
// The dialector is provided by the caller.
type SQLStore struct {
	db *gorm.DB
}

// documentRecord is the row shape for the documents table.
type documentRecord struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Version   int64     `gorm:"column:version"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string { return "documents" }

// FromSQL creates a new SQL store instance. Error translation must stay
// enabled: the create path relies on gorm.ErrDuplicatedKey to turn a
// key collision into a version conflict.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStore, error) {
	if len(opts) == 0 {
		opts = append(opts, &gorm.Config{TranslateError: true})
	}

	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pooling parameters
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Load retrieves a document by key
func (s *SQLStore) Load(ctx context.Context, key string) (core.Document, error) {
	var record documentRecord

	result := s.db.WithContext(ctx).First(&record, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return core.Document{}, fmt.Errorf("document %s: %w", key, core.ErrNotFound)
		}
		return core.Document{}, fmt.Errorf("failed to load document: %w", result.Error)
	}

	return core.Document{
		Key:       record.Key,
		Version:   record.Version,
		Data:      record.Data,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Save stores a document with an optimistic version check. A conditional
// update keyed on the expected version makes the check atomic per key.
func (s *SQLStore) Save(ctx context.Context, doc core.Document, expectedVersion int64) (int64, error) {
	newVersion := expectedVersion + 1
	record := documentRecord{
		Key:       doc.Key,
		Version:   newVersion,
		Data:      doc.Data,
		UpdatedAt: time.Now().UTC(),
	}

	if expectedVersion == 0 {
		result := s.db.WithContext(ctx).Create(&record)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return 0, fmt.Errorf("document %s already exists: %w", doc.Key, core.ErrVersionConflict)
			}
			return 0, fmt.Errorf("failed to create document: %w", result.Error)
		}
		return newVersion, nil
	}

	result := s.db.WithContext(ctx).
		Model(&documentRecord{}).
		Where("key = ? AND version = ?", doc.Key, expectedVersion).
		Updates(map[string]any{
			"version":    newVersion,
			"data":       record.Data,
			"updated_at": record.UpdatedAt,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update document: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("document %s: expected version %d: %w",
			doc.Key, expectedVersion, core.ErrVersionConflict)
	}

	return newVersion, nil
}

// List returns all documents whose keys begin with prefix
func (s *SQLStore) List(ctx context.Context, prefix string) ([]core.Document, error) {
	var records []documentRecord

	result := s.db.WithContext(ctx).
		Where("key LIKE ?", prefix+"%").
		Order("updated_at").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}

	docs := make([]core.Document, 0, len(records))
	for _, record := range records {
		docs = append(docs, core.Document{
			Key:       record.Key,
			Version:   record.Version,
			Data:      record.Data,
			UpdatedAt: record.UpdatedAt,
		})
	}

	return docs, nil
}

// Delete removes a document by key. Deleting a missing key is not an error.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Delete(&documentRecord{}, "key = ?", key)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
