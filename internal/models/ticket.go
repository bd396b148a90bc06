package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ticket represents one purchased numbered entry in a campaign. Ticket
// numbers are unique within a campaign and assigned by the TicketCounter.
type Ticket struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID    primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	TicketNumber  int64              `bson:"ticketNumber" json:"ticketNumber"`
	UserID        string             `bson:"userId" json:"userId"`
	WalletAddress string             `bson:"walletAddress" json:"walletAddress"`
	PurchasedAt   time.Time          `bson:"purchasedAt" json:"purchasedAt"`
}

// TicketCounter holds the last-issued ticket number for one campaign. It is
// mutated only through an atomic increment-and-return, so concurrent
// purchases never collide.
type TicketCounter struct {
	CampaignID primitive.ObjectID `bson:"_id" json:"campaignId"`
	Seq        int64              `bson:"seq" json:"seq"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
