package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raykavin/alertnrun/pkg/core"
)

const firestoreCollection = "documents"

// FirestoreStore implements core.DocumentStore on Cloud Firestore,
// authenticated with a service-account credential file. The client is
// acquired once at startup and released through Close.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// encodeKey turns a store key into a legal Firestore document ID. Keys
// carry slashes ("rules/<id>"), which Firestore treats as path separators,
// so they are percent-escaped. The escape is character-wise, which keeps
// prefix ordering intact for the List range query.
func encodeKey(key string) string {
	return url.PathEscape(key)
}

// decodeKey reverses encodeKey.
func decodeKey(id string) (string, error) {
	key, err := url.PathUnescape(id)
	if err != nil {
		return "", fmt.Errorf("invalid document id %q: %w", id, err)
	}
	return key, nil
}

// firestoreDoc is the stored document shape. The key is the Firestore
// document ID.
type firestoreDoc struct {
	Version   int64     `firestore:"version"`
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// FromServiceAccount opens a Firestore-backed store using the given
// credential file.
func FromServiceAccount(ctx context.Context, credentialsFile, projectID string) (*FirestoreStore, error) {
	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: projectID},
		option.WithCredentialsFile(credentialsFile),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: firestore client: %v", core.ErrAuthentication, err)
	}

	return &FirestoreStore{
		client:     client,
		collection: firestoreCollection,
	}, nil
}

// Load retrieves a document by key
func (f *FirestoreStore) Load(ctx context.Context, key string) (core.Document, error) {
	snapshot, err := f.client.Collection(f.collection).Doc(encodeKey(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return core.Document{}, fmt.Errorf("document %s: %w", key, core.ErrNotFound)
		}
		return core.Document{}, fmt.Errorf("failed to load document: %w", err)
	}

	var stored firestoreDoc
	if err := snapshot.DataTo(&stored); err != nil {
		return core.Document{}, fmt.Errorf("failed to decode document %s: %w", key, err)
	}

	return core.Document{
		Key:       key,
		Version:   stored.Version,
		Data:      stored.Data,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// Save stores a document with an optimistic version check, performed
// inside a Firestore transaction so the check is atomic per key.
func (f *FirestoreStore) Save(ctx context.Context, doc core.Document, expectedVersion int64) (int64, error) {
	newVersion := expectedVersion + 1
	ref := f.client.Collection(f.collection).Doc(encodeKey(doc.Key))

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		switch {
		case err == nil:
			var stored firestoreDoc
			if err := snapshot.DataTo(&stored); err != nil {
				return fmt.Errorf("failed to decode document %s: %w", doc.Key, err)
			}
			if stored.Version != expectedVersion {
				return fmt.Errorf("document %s: expected version %d, have %d: %w",
					doc.Key, expectedVersion, stored.Version, core.ErrVersionConflict)
			}
		case status.Code(err) == codes.NotFound:
			if expectedVersion != 0 {
				return fmt.Errorf("document %s: expected version %d, not found: %w",
					doc.Key, expectedVersion, core.ErrVersionConflict)
			}
		default:
			return err
		}

		return tx.Set(ref, firestoreDoc{
			Version:   newVersion,
			Data:      doc.Data,
			UpdatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return 0, err
	}

	return newVersion, nil
}

// List returns all documents whose keys begin with prefix, using the
// document-ID range trick for prefix queries.
func (f *FirestoreStore) List(ctx context.Context, prefix string) ([]core.Document, error) {
	encodedPrefix := encodeKey(prefix)
	query := f.client.Collection(f.collection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(encodedPrefix).
		EndAt(encodedPrefix + "\uf8ff")

	iter := query.Documents(ctx)
	defer iter.Stop()

	docs := make([]core.Document, 0)
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		var stored firestoreDoc
		if err := snapshot.DataTo(&stored); err != nil {
			continue // skip unreadable entries
		}

		key, err := decodeKey(snapshot.Ref.ID)
		if err != nil {
			continue // skip unreadable entries
		}

		docs = append(docs, core.Document{
			Key:       key,
			Version:   stored.Version,
			Data:      stored.Data,
			UpdatedAt: stored.UpdatedAt,
		})
	}

	return docs, nil
}

// Delete removes a document by key. Deleting a missing key is not an error.
func (f *FirestoreStore) Delete(ctx context.Context, key string) error {
	_, err := f.client.Collection(f.collection).Doc(encodeKey(key)).Delete(ctx)
	return err
}

// Close releases the Firestore client
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
