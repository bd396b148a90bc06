package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// TransferType classifies a single ledger credit within a settlement
type TransferType string

const (
	TransferCreatorRevenue TransferType = "CREATOR_REVENUE"
	TransferLoserRefund    TransferType = "LOSER_REFUND"
	TransferStakeRefund    TransferType = "STAKE_REFUND"
	// TransferRemainder is the undistributed floor-division remainder of the
	// profit-guarantee pool, credited to the creator as its own line item so
	// it is never silently lost.
	TransferRemainder TransferType = "REMAINDER"
)

// Transfer is one ledger credit applied during settlement.
type Transfer struct {
	Type   TransferType `bson:"type" json:"type"`
	UserID string       `bson:"userId" json:"userId"`
	Token  string       `bson:"token" json:"token"`
	Amount money.Amount `bson:"amount" json:"amount"`
}

// Settlement is the audit record of a completed campaign settlement. It is
// written in the same transaction as the ledger transfers and the campaign
// update; exactly one exists per settled paid campaign.
type Settlement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID  primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	Entries     int                `bson:"entries" json:"entries"`
	WinnerCount int                `bson:"winnerCount" json:"winnerCount"`
	LoserCount  int                `bson:"loserCount" json:"loserCount"`
	Transfers   []Transfer         `bson:"transfers" json:"transfers"`
	Remainder   money.Amount       `bson:"remainder" json:"remainder"`
	// TotalPaid is the sum of all transfers; always equal to
	// totalTicketPrice × entries.
	TotalPaid money.Amount `bson:"totalPaid" json:"totalPaid"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
}
