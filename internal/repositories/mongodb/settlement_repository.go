package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// SettlementRepository implements the repositories.SettlementRepository interface
type SettlementRepository struct {
	collection *mongo.Collection
}

// NewSettlementRepository creates a new SettlementRepository
func NewSettlementRepository(db *mongo.Database) repositories.SettlementRepository {
	return &SettlementRepository{
		collection: db.Collection("settlements"),
	}
}

// Create creates a settlement audit record
func (r *SettlementRepository) Create(ctx context.Context, settlement *models.Settlement) error {
	settlement.CreatedAt = time.Now()
	res, err := r.collection.InsertOne(ctx, settlement)
	if err != nil {
		return err
	}
	settlement.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByCampaignID finds the settlement record of a campaign
func (r *SettlementRepository) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.collection.FindOne(ctx, bson.M{"campaignId": campaignID}).Decode(&settlement)
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}
