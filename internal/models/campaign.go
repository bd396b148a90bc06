package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// CampaignStatus represents the lifecycle status of an allowlist campaign
type CampaignStatus string

const (
	CampaignStatusLive                 CampaignStatus = "LIVE"
	CampaignStatusDrawing              CampaignStatus = "DRAWING"
	CampaignStatusEnded                CampaignStatus = "ENDED"
	CampaignStatusCancelled            CampaignStatus = "CANCELLED"
	CampaignStatusCancelledZeroEntries CampaignStatus = "CANCELLED_ZERO_ENTRIES"
)

// VRFStatus represents the state of the randomness draw for a campaign
type VRFStatus string

const (
	VRFStatusPending    VRFStatus = "PENDING"
	VRFStatusInProgress VRFStatus = "IN_PROGRESS"
	VRFStatusFulfilled  VRFStatus = "FULFILLED"
	VRFStatusFailed     VRFStatus = "FAILED"
	VRFStatusCancelled  VRFStatus = "CANCELLED"
	VRFStatusExpired    VRFStatus = "EXPIRED"
)

// ValidReserveStakeBps are the allowed reserve-stake multipliers, in basis
// points of the mint price: 0x, 0.5x, 1x, 2x.
var ValidReserveStakeBps = []int64{0, 5000, 10000, 20000}

// PaymentTerms holds the payment configuration of a paid campaign. Free
// campaigns carry no payment terms. All rates are integer basis points so
// derived amounts stay exact.
type PaymentTerms struct {
	Enabled             bool         `bson:"enabled" json:"enabled"`
	Token               string       `bson:"token" json:"token"`
	MintPrice           money.Amount `bson:"mintPrice" json:"mintPrice"`
	ReserveStakeBps     int64        `bson:"reserveStakeBps" json:"reserveStakeBps"`
	ProfitGuaranteeBps  int64        `bson:"profitGuaranteeBps" json:"profitGuaranteeBps"`
	RefundLosingEntries bool         `bson:"refundLosingEntries" json:"refundLosingEntries"`

	// Derived fields, recomputed via RecomputeDerived whenever mintPrice,
	// reserveStakeBps or profitGuaranteeBps change while the campaign is
	// still LIVE. Immutable afterwards.
	TotalTicketPrice         money.Amount `bson:"totalTicketPrice" json:"totalTicketPrice"`
	TotalProfitGuaranteePool money.Amount `bson:"totalProfitGuaranteePool" json:"totalProfitGuaranteePool"`
}

// Validate checks the payment configuration.
func (p *PaymentTerms) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Token == "" {
		return errors.New("payment terms require a settlement token")
	}
	if p.MintPrice.Sign() <= 0 {
		return errors.New("mint price must be positive")
	}
	valid := false
	for _, bps := range ValidReserveStakeBps {
		if p.ReserveStakeBps == bps {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("reserve stake multiplier %d bps is not one of 0, 5000, 10000, 20000", p.ReserveStakeBps)
	}
	if p.ProfitGuaranteeBps < 0 || p.ProfitGuaranteeBps > money.BpsDenominator {
		return fmt.Errorf("profit guarantee fraction %d bps is outside [0, 10000]", p.ProfitGuaranteeBps)
	}
	return nil
}

// StakePerTicket returns the always-refundable reserve stake collected with
// each ticket: mintPrice × reserveStakeMultiplier.
func (p *PaymentTerms) StakePerTicket() money.Amount {
	return p.MintPrice.MulBps(p.ReserveStakeBps)
}

// RecomputeDerived refreshes the derived payment fields:
// totalTicketPrice = mintPrice + stake, and
// totalProfitGuaranteePool = mintPrice × guaranteeFraction × winnerCount.
func (p *PaymentTerms) RecomputeDerived(winnerCount int) {
	p.TotalTicketPrice = p.MintPrice.Add(p.StakePerTicket())
	p.TotalProfitGuaranteePool = p.MintPrice.MulInt64(int64(winnerCount)).MulBps(p.ProfitGuaranteeBps)
}

// VRFState tracks the coordination protocol with the randomness oracle.
type VRFState struct {
	Status      VRFStatus `bson:"status" json:"status"`
	RequestID   string    `bson:"requestId,omitempty" json:"requestId,omitempty"`
	RandomWords []string  `bson:"randomWords,omitempty" json:"randomWords,omitempty"`
	RequestedAt time.Time `bson:"requestedAt,omitempty" json:"requestedAt,omitempty"`
	FulfilledAt time.Time `bson:"fulfilledAt,omitempty" json:"fulfilledAt,omitempty"`
}

// Campaign represents a time-boxed allowlist lottery campaign
type Campaign struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	EventID   string             `bson:"eventId" json:"eventId"` // correlates with the randomness oracle
	Name      string             `bson:"name" json:"name"`
	CreatorID string             `bson:"creatorId" json:"creatorId"`

	WinnerCount  int       `bson:"winnerCount" json:"winnerCount"` // 0 means everyone wins
	EveryoneWins bool      `bson:"everyoneWins" json:"everyoneWins"`
	StartTime    time.Time `bson:"startTime" json:"startTime"`
	EndTime      time.Time `bson:"endTime" json:"endTime"`

	Payment *PaymentTerms `bson:"payment,omitempty" json:"payment,omitempty"`

	Status CampaignStatus `bson:"status" json:"status"`
	VRF    VRFState       `bson:"vrf" json:"vrf"`

	WinningTicketNumbers []int64 `bson:"winningTicketNumbers,omitempty" json:"winningTicketNumbers,omitempty"`
	WinnersFileKey       string  `bson:"winnersFileKey,omitempty" json:"winnersFileKey,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Paid reports whether the campaign has payment terms enabled.
func (c *Campaign) Paid() bool {
	return c.Payment != nil && c.Payment.Enabled
}

// Unlimited reports whether every entry wins without a draw.
func (c *Campaign) Unlimited() bool {
	return c.EveryoneWins || c.WinnerCount == 0
}

// Settled reports whether the campaign has reached a terminal status.
func (c *Campaign) Settled() bool {
	switch c.Status {
	case CampaignStatusEnded, CampaignStatusCancelled, CampaignStatusCancelledZeroEntries:
		return true
	}
	return false
}
