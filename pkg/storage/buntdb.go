// Package storage provides DocumentStore backends for the persistence
// gateway: an embedded BuntDB file, a SQL database via GORM, and
// Firestore for service-account based deployments.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/alertnrun/pkg/core"
)

// BuntStore implements core.DocumentStore using BuntDB
type BuntStore struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory store
func FromMemory() (*BuntStore, error) {
	return NewBuntStore(":memory:")
}

// FromFile creates a file-based store
func FromFile(file string) (*BuntStore, error) {
	return NewBuntStore(file)
}

// NewBuntStore creates a new BuntDB store instance
func NewBuntStore(sourceFile string) (*BuntStore, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex("update_index", "*", buntdb.IndexJSON("updated_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStore{db: db}, nil
}

// Load retrieves a document by key
func (b *BuntStore) Load(_ context.Context, key string) (core.Document, error) {
	var doc core.Document

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(key)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return fmt.Errorf("document %s: %w", key, core.ErrNotFound)
			}
			return err
		}

		return json.Unmarshal([]byte(value), &doc)
	})
	if err != nil {
		return core.Document{}, err
	}

	return doc, nil
}

// Save stores a document, guarded by the optimistic version check. The
// whole check-and-set runs inside a single BuntDB update transaction so
// it is atomic per key.
func (b *BuntStore) Save(_ context.Context, doc core.Document, expectedVersion int64) (int64, error) {
	var newVersion int64

	err := b.db.Update(func(tx *buntdb.Tx) error {
		current, err := tx.Get(doc.Key)
		switch err {
		case nil:
			var existing core.Document
			if err := json.Unmarshal([]byte(current), &existing); err != nil {
				return fmt.Errorf("failed to unmarshal document %s: %w", doc.Key, err)
			}
			if existing.Version != expectedVersion {
				return fmt.Errorf("document %s: expected version %d, have %d: %w",
					doc.Key, expectedVersion, existing.Version, core.ErrVersionConflict)
			}
		case buntdb.ErrNotFound:
			if expectedVersion != 0 {
				return fmt.Errorf("document %s: expected version %d, not found: %w",
					doc.Key, expectedVersion, core.ErrVersionConflict)
			}
		default:
			return err
		}

		newVersion = expectedVersion + 1
		doc.Version = newVersion
		doc.UpdatedAt = time.Now().UTC()

		content, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, _, err = tx.Set(doc.Key, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newVersion, nil
}

// List returns all documents whose keys begin with prefix, ordered by
// update time.
func (b *BuntStore) List(_ context.Context, prefix string) ([]core.Document, error) {
	docs := make([]core.Document, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("update_index", func(key, value string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}

			var doc core.Document
			if err := json.Unmarshal([]byte(value), &doc); err != nil {
				return true // skip unreadable entries
			}

			docs = append(docs, doc)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over documents: %w", err)
	}

	return docs, nil
}

// Delete removes a document by key. Deleting a missing key is not an error.
func (b *BuntStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// Close closes the database connection
func (b *BuntStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
