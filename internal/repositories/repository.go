package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/models"
)

// CampaignRepository defines the interface for campaign data operations
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	FindByEventID(ctx context.Context, eventID string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	// FindEndedLive returns live campaigns whose end time has passed.
	FindEndedLive(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	// FindDrawingInProgress returns campaigns waiting on oracle fulfillment.
	FindDrawingInProgress(ctx context.Context) ([]*models.Campaign, error)
}

// TicketRepository defines the interface for ticket data operations
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) ([]*models.Ticket, error)
	CountByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (int64, error)
	FindByCampaignAndNumbers(ctx context.Context, campaignID primitive.ObjectID, numbers []int64) ([]*models.Ticket, error)
}

// TicketCounterRepository issues strictly increasing ticket numbers per
// campaign, starting at 1, via a single atomic increment-and-return.
type TicketCounterRepository interface {
	NextTicketNumber(ctx context.Context, campaignID primitive.ObjectID) (int64, error)
}

// SettlementRepository defines the interface for settlement audit records
type SettlementRepository interface {
	Create(ctx context.Context, settlement *models.Settlement) error
	FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (*models.Settlement, error)
}

// TxRunner executes fn inside one atomic transaction. Every repository or
// ledger call made with the context passed to fn joins that transaction; if
// fn returns an error the whole transaction is rolled back.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
