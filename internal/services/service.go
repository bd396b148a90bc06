package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// CampaignService handles campaign lifecycle and ticket purchases
type CampaignService interface {
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	UpdatePaymentTerms(ctx context.Context, id primitive.ObjectID, update PaymentTermsUpdate) (*models.Campaign, error)
	PurchaseTicket(ctx context.Context, campaignID primitive.ObjectID, userID, walletAddress string) (*models.Ticket, error)
	GetWinners(ctx context.Context, campaignID primitive.ObjectID) ([]*models.Ticket, error)
}

// PaymentTermsUpdate carries the mutable payment fields of a live campaign.
type PaymentTermsUpdate struct {
	MintPrice           money.Amount
	ReserveStakeBps     int64
	ProfitGuaranteeBps  int64
	RefundLosingEntries bool
}

// DrawService drives campaigns from end-of-sale to settlement: the ended
// campaign decision table, the VRF coordination protocol with the oracle,
// and the manual operator transitions.
type DrawService interface {
	ProcessEndedCampaigns(ctx context.Context) error
	PollDrawingCampaigns(ctx context.Context) error
	CancelDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error)
	ExpireDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error)
	FailDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error)
	GetDrawingCampaigns(ctx context.Context) ([]*models.Campaign, error)
}

// SettlementService computes and applies the monetary settlement of an
// ended campaign. winners is the explicit winning ticket-number set, or nil
// when every entry wins.
type SettlementService interface {
	Settle(ctx context.Context, campaign *models.Campaign, tickets []*models.Ticket, winners []int64) error
}
