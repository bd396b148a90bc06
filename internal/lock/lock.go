package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrLockHeld is returned by Acquire when another owner holds a live lease.
var ErrLockHeld = errors.New("lock is held by another owner")

// Manager is a lease-based distributed lock over a MongoDB collection. One
// document per key; an expired lease may be stolen atomically, so a crashed
// holder never wedges the schedulers.
type Manager struct {
	collection *mongo.Collection
}

// NewManager creates a lock Manager backed by the "locks" collection
func NewManager(db *mongo.Database) *Manager {
	return &Manager{collection: db.Collection("locks")}
}

// Lease is a held lock. Release it when the protected work is done.
type Lease struct {
	manager *Manager
	Key     string
	Owner   string
}

// Acquire takes the lock for key with the given ttl. It returns ErrLockHeld
// if another owner's lease has not yet expired.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	owner, err := randomOwnerToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()

	// Matches only an expired lease; if the document exists with a live
	// lease the filter misses and the upsert insert collides on _id.
	filter := bson.M{
		"_id":       key,
		"expiresAt": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"owner":      owner,
			"acquiredAt": now,
			"expiresAt":  now.Add(ttl),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err = m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return &Lease{manager: m, Key: key, Owner: owner}, nil
}

// Release frees the lease. Only the owner that acquired it can release it;
// releasing an already-expired (stolen) lease is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.manager.collection.DeleteOne(ctx, bson.M{
		"_id":   l.Key,
		"owner": l.Owner,
	})
	if err != nil {
		return fmt.Errorf("failed to release lock %q: %w", l.Key, err)
	}
	return nil
}

func randomOwnerToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock owner token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
