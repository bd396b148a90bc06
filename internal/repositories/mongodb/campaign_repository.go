package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// CampaignRepository implements the repositories.CampaignRepository interface
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) repositories.CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection("campaigns"),
	}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()
	res, err := r.collection.InsertOne(ctx, campaign)
	if err != nil {
		return err
	}
	campaign.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// FindByEventID finds a campaign by its oracle-facing event ID
func (r *CampaignRepository) FindByEventID(ctx context.Context, eventID string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"eventId": eventID}).Decode(&campaign)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// Update replaces a campaign document
func (r *CampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	campaign.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": campaign.ID}, campaign)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// FindEndedLive finds live campaigns whose end time has passed
func (r *CampaignRepository) FindEndedLive(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	filter := bson.M{
		"status":  models.CampaignStatusLive,
		"endTime": bson.M{"$lt": now},
	}
	return r.find(ctx, filter)
}

// FindDrawingInProgress finds campaigns waiting on oracle fulfillment
func (r *CampaignRepository) FindDrawingInProgress(ctx context.Context) ([]*models.Campaign, error) {
	filter := bson.M{
		"status":     models.CampaignStatusDrawing,
		"vrf.status": models.VRFStatusInProgress,
	}
	return r.find(ctx, filter)
}

func (r *CampaignRepository) find(ctx context.Context, filter bson.M) ([]*models.Campaign, error) {
	opts := options.Find().SetSort(bson.M{"endTime": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}
