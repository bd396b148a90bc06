package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// TicketCounterRepository implements the repositories.TicketCounterRepository
// interface on top of a single-document atomic increment
type TicketCounterRepository struct {
	collection *mongo.Collection
}

// NewTicketCounterRepository creates a new TicketCounterRepository
func NewTicketCounterRepository(db *mongo.Database) repositories.TicketCounterRepository {
	return &TicketCounterRepository{
		collection: db.Collection("ticket_counters"),
	}
}

// NextTicketNumber atomically increments and returns the counter for a
// campaign. The counter document is created lazily on first call, so the
// first number issued is 1. No two calls ever return the same value for the
// same campaign, regardless of concurrency.
func (r *TicketCounterRepository) NextTicketNumber(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	filter := bson.M{"_id": campaignID}
	update := bson.M{
		"$inc": bson.M{"seq": int64(1)},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter models.TicketCounter
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		// A concurrent upsert of the same campaign can race on insert; the
		// retry hits the now-existing document and increments it.
		if mongo.IsDuplicateKeyError(err) {
			err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to increment ticket counter: %w", err)
		}
	}
	return counter.Seq, nil
}
