package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/login-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps login state in a Firestore collection, one document
// per key. Swap runs in a Firestore transaction, so concurrent contexts
// racing on the code lock are serialised by the server.
type FirestoreStore struct {
	client     *firestore.Client
	projectID  string
	collection string
}

var _ Store = (*FirestoreStore)(nil)
var _ Purger = (*FirestoreStore)(nil)

// kvDoc represents a key document in Firestore
type kvDoc struct {
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expires_at,omitempty"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (d kvDoc) live(now time.Time) bool {
	return d.ExpiresAt.IsZero() || !now.After(d.ExpiresAt)
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = "login_front_state"
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStore{
		client:     client,
		projectID:  projectID,
		collection: collection,
	}, nil
}

// docID maps a store key to a valid document ID
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func (s *FirestoreStore) ref(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.ref(key).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %s from Firestore: %w", key, err)
	}

	var doc kvDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if !doc.live(time.Now()) {
		return "", ErrNotFound
	}
	return doc.Value, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	doc := kvDoc{Value: value, ExpiresAt: expiry(ttl), UpdatedAt: time.Now().UTC()}
	if _, err := s.ref(key).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to set %s in Firestore: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.ref(k).Delete(ctx); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete %s from Firestore: %w", k, err)
		}
	}
	return nil
}

// readTx reads key inside a transaction; missing and expired keys report false
func readTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (string, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	var doc kvDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", false, err
	}
	if !doc.live(time.Now()) {
		return "", false, nil
	}
	return doc.Value, true, nil
}

func (s *FirestoreStore) Swap(ctx context.Context, key, value string) (string, bool, error) {
	ref := s.ref(key)
	var prev string
	var existed bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		prev, existed, err = readTx(tx, ref)
		if err != nil {
			return err
		}
		return tx.Set(ref, kvDoc{Value: value, UpdatedAt: time.Now().UTC()})
	})
	if err != nil {
		return "", false, fmt.Errorf("firestore swap %s: %w", key, err)
	}
	return prev, existed, nil
}

func (s *FirestoreStore) SetIfAbsent(ctx context.Context, key, value string) (string, bool, error) {
	ref := s.ref(key)
	var actual string
	var created bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, existed, err := readTx(tx, ref)
		if err != nil {
			return err
		}
		if existed {
			actual, created = current, false
			return nil
		}
		actual, created = value, true
		return tx.Set(ref, kvDoc{Value: value, UpdatedAt: time.Now().UTC()})
	})
	if err != nil {
		return "", false, fmt.Errorf("firestore set-if-absent %s: %w", key, err)
	}
	return actual, created, nil
}

// PurgeExpired deletes documents whose expires_at has passed. Firestore TTL
// policies do the same eventually; this makes it deterministic.
func (s *FirestoreStore) PurgeExpired(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("expires_at", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("error iterating Firestore documents: %w", err)
		}

		var doc kvDoc
		if err := snap.DataTo(&doc); err != nil || doc.ExpiresAt.IsZero() {
			continue
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogWarnWithFields("storage", "Failed to delete expired document", map[string]any{
				"id":    snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		count++
	}
	return count, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
