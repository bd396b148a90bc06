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

// TicketRepository implements the repositories.TicketRepository interface
type TicketRepository struct {
	collection *mongo.Collection
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *mongo.Database) repositories.TicketRepository {
	return &TicketRepository{
		collection: db.Collection("tickets"),
	}
}

// EnsureIndexes creates the unique (campaignId, ticketNumber) index. Called
// once at startup.
func EnsureTicketIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("tickets").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "campaignId", Value: 1},
			{Key: "ticketNumber", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Create creates a new ticket
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.PurchasedAt.IsZero() {
		ticket.PurchasedAt = time.Now()
	}
	res, err := r.collection.InsertOne(ctx, ticket)
	if err != nil {
		return err
	}
	ticket.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByCampaignID returns every ticket of a campaign, ordered by ticket number
func (r *TicketRepository) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) ([]*models.Ticket, error) {
	filter := bson.M{"campaignId": campaignID}
	opts := options.Find().SetSort(bson.M{"ticketNumber": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tickets []*models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	return tickets, nil
}

// CountByCampaignID counts the entries of a campaign
func (r *TicketRepository) CountByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"campaignId": campaignID})
}

// FindByCampaignAndNumbers returns the tickets matching the given numbers,
// ordered by ticket number
func (r *TicketRepository) FindByCampaignAndNumbers(ctx context.Context, campaignID primitive.ObjectID, numbers []int64) ([]*models.Ticket, error) {
	filter := bson.M{
		"campaignId":   campaignID,
		"ticketNumber": bson.M{"$in": numbers},
	}
	opts := options.Find().SetSort(bson.M{"ticketNumber": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tickets []*models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}
