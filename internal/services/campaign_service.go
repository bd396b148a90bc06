package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/ledger"
	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// Compile-time check to ensure CampaignServiceImpl implements CampaignService
var _ CampaignService = (*CampaignServiceImpl)(nil)

var (
	// ErrCampaignNotLive is returned when a mutation requires a live campaign.
	ErrCampaignNotLive = errors.New("campaign is not live")
	// ErrSalesClosed is returned for purchases outside the sales window.
	ErrSalesClosed = errors.New("campaign is not selling tickets")
)

// CampaignServiceImpl handles campaign-related business logic
type CampaignServiceImpl struct {
	campaignRepo repositories.CampaignRepository
	ticketRepo   repositories.TicketRepository
	counterRepo  repositories.TicketCounterRepository
	ledger       ledger.Ledger
	txRunner     repositories.TxRunner
}

// NewCampaignService creates a new CampaignServiceImpl
func NewCampaignService(
	campaignRepo repositories.CampaignRepository,
	ticketRepo repositories.TicketRepository,
	counterRepo repositories.TicketCounterRepository,
	ldgr ledger.Ledger,
	txRunner repositories.TxRunner,
) *CampaignServiceImpl {
	return &CampaignServiceImpl{
		campaignRepo: campaignRepo,
		ticketRepo:   ticketRepo,
		counterRepo:  counterRepo,
		ledger:       ldgr,
		txRunner:     txRunner,
	}
}

// CreateCampaign validates and persists a new live campaign
func (s *CampaignServiceImpl) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.EventID == "" {
		return errors.New("campaign requires an event ID")
	}
	if campaign.WinnerCount < 0 {
		return errors.New("winner count must not be negative")
	}
	if !campaign.EndTime.After(campaign.StartTime) {
		return errors.New("campaign end time must be after start time")
	}
	if campaign.Payment != nil {
		if err := campaign.Payment.Validate(); err != nil {
			return fmt.Errorf("invalid payment terms: %w", err)
		}
		campaign.Payment.RecomputeDerived(campaign.WinnerCount)
	}

	campaign.Status = models.CampaignStatusLive
	campaign.VRF = models.VRFState{Status: models.VRFStatusPending}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		slog.Error("Failed to create campaign", "error", err, "eventId", campaign.EventID)
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	slog.Info("Campaign created", "campaignId", campaign.ID, "eventId", campaign.EventID, "winnerCount", campaign.WinnerCount, "paid", campaign.Paid())
	return nil
}

// GetCampaign retrieves a campaign by ID
func (s *CampaignServiceImpl) GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return s.campaignRepo.FindByID(ctx, id)
}

// UpdatePaymentTerms changes the payment configuration of a live campaign
// and recomputes the derived fields. Once the campaign has left LIVE the
// terms are immutable.
func (s *CampaignServiceImpl) UpdatePaymentTerms(ctx context.Context, id primitive.ObjectID, update PaymentTermsUpdate) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}
	if campaign.Status != models.CampaignStatusLive {
		return nil, ErrCampaignNotLive
	}
	if campaign.Payment == nil || !campaign.Payment.Enabled {
		return nil, errors.New("campaign has no payment terms")
	}

	campaign.Payment.MintPrice = update.MintPrice
	campaign.Payment.ReserveStakeBps = update.ReserveStakeBps
	campaign.Payment.ProfitGuaranteeBps = update.ProfitGuaranteeBps
	campaign.Payment.RefundLosingEntries = update.RefundLosingEntries
	if err := campaign.Payment.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment terms: %w", err)
	}
	campaign.Payment.RecomputeDerived(campaign.WinnerCount)

	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		slog.Error("Failed to update payment terms", "error", err, "campaignId", id)
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return campaign, nil
}

// PurchaseTicket debits the entrant and issues the next ticket number, all
// inside one transaction. Admission rules (wallet, social tasks, captcha)
// are enforced upstream; this path only checks lifecycle and payment.
func (s *CampaignServiceImpl) PurchaseTicket(ctx context.Context, campaignID primitive.ObjectID, userID, walletAddress string) (*models.Ticket, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}

	now := time.Now()
	if campaign.Status != models.CampaignStatusLive || now.Before(campaign.StartTime) || !now.Before(campaign.EndTime) {
		return nil, ErrSalesClosed
	}

	var ticket *models.Ticket
	err = s.txRunner.WithTransaction(ctx, func(txCtx context.Context) error {
		if campaign.Paid() {
			if err := s.ledger.Debit(txCtx, userID, campaign.Payment.Token, campaign.Payment.TotalTicketPrice); err != nil {
				return fmt.Errorf("failed to debit ticket price: %w", err)
			}
		}

		number, err := s.counterRepo.NextTicketNumber(txCtx, campaignID)
		if err != nil {
			return err
		}

		ticket = &models.Ticket{
			CampaignID:    campaignID,
			TicketNumber:  number,
			UserID:        userID,
			WalletAddress: walletAddress,
			PurchasedAt:   now,
		}
		return s.ticketRepo.Create(txCtx, ticket)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Ticket purchased", "campaignId", campaignID, "ticketNumber", ticket.TicketNumber, "userId", userID)
	return ticket, nil
}

// GetWinners returns the winning tickets of a settled campaign, ordered by
// ticket number
func (s *CampaignServiceImpl) GetWinners(ctx context.Context, campaignID primitive.ObjectID) ([]*models.Ticket, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}
	if campaign.Status != models.CampaignStatusEnded {
		return nil, errors.New("campaign has no winner set yet")
	}
	return s.ticketRepo.FindByCampaignAndNumbers(ctx, campaignID, campaign.WinningTicketNumbers)
}
