package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/oracle"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
)

// Compile-time check to ensure DrawServiceImpl implements DrawService
var _ DrawService = (*DrawServiceImpl)(nil)

// ErrDrawNotPending guards re-entrancy: a campaign whose draw has already
// been submitted to the oracle must never be submitted again, even if the
// scheduler lock is bypassed.
var ErrDrawNotPending = errors.New("draw has already been submitted to the oracle")

// ErrDrawNotActive is returned by the manual operator transitions when the
// draw has already reached a terminal state.
var ErrDrawNotActive = errors.New("draw is not pending or in progress")

// DrawServiceImpl drives ended campaigns through the decision table and the
// VRF coordination protocol
type DrawServiceImpl struct {
	campaignRepo repositories.CampaignRepository
	ticketRepo   repositories.TicketRepository
	settlement   SettlementService
	oracle       oracle.Client
}

// NewDrawService creates a new DrawServiceImpl
func NewDrawService(
	campaignRepo repositories.CampaignRepository,
	ticketRepo repositories.TicketRepository,
	settlement SettlementService,
	oracleClient oracle.Client,
) *DrawServiceImpl {
	return &DrawServiceImpl{
		campaignRepo: campaignRepo,
		ticketRepo:   ticketRepo,
		settlement:   settlement,
		oracle:       oracleClient,
	}
}

// ProcessEndedCampaigns routes every live campaign whose end time has
// passed to cancellation, direct settlement, or the oracle draw. A failure
// in one campaign never blocks the others.
func (s *DrawServiceImpl) ProcessEndedCampaigns(ctx context.Context) error {
	campaigns, err := s.campaignRepo.FindEndedLive(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list ended campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		if err := s.processEndedCampaign(ctx, campaign); err != nil {
			slog.Error("Failed to process ended campaign", "error", err, "campaignId", campaign.ID, "eventId", campaign.EventID)
		}
	}
	return nil
}

func (s *DrawServiceImpl) processEndedCampaign(ctx context.Context, campaign *models.Campaign) error {
	entries, err := s.ticketRepo.CountByCampaignID(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	switch {
	case entries == 0:
		campaign.Status = models.CampaignStatusCancelledZeroEntries
		if err := s.campaignRepo.Update(ctx, campaign); err != nil {
			return fmt.Errorf("failed to cancel zero-entry campaign: %w", err)
		}
		slog.Info("Campaign cancelled with zero entries", "campaignId", campaign.ID)
		return nil

	case campaign.Unlimited() || entries <= int64(campaign.WinnerCount):
		// No scarcity: every entry wins without a draw.
		tickets, err := s.ticketRepo.FindByCampaignID(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("failed to load tickets: %w", err)
		}
		return s.settlement.Settle(ctx, campaign, tickets, nil)

	default:
		return s.beginDraw(ctx, campaign)
	}
}

// beginDraw submits the randomness request and moves the campaign into
// DRAWING. The stored VRF status is the idempotency guard.
func (s *DrawServiceImpl) beginDraw(ctx context.Context, campaign *models.Campaign) error {
	if campaign.VRF.Status != models.VRFStatusPending {
		return fmt.Errorf("%w: campaign %s is %s", ErrDrawNotPending, campaign.ID.Hex(), campaign.VRF.Status)
	}

	requestID, err := s.oracle.RequestRandomness(ctx, campaign.EventID)
	if err != nil {
		return fmt.Errorf("failed to request randomness: %w", err)
	}

	campaign.Status = models.CampaignStatusDrawing
	campaign.VRF.Status = models.VRFStatusInProgress
	campaign.VRF.RequestID = requestID
	campaign.VRF.RequestedAt = time.Now()

	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return fmt.Errorf("failed to record randomness request: %w", err)
	}
	slog.Info("Randomness requested", "campaignId", campaign.ID, "eventId", campaign.EventID, "requestId", requestID)
	return nil
}

// PollDrawingCampaigns checks the oracle for every campaign waiting on
// fulfillment and settles the ones whose randomness has arrived.
func (s *DrawServiceImpl) PollDrawingCampaigns(ctx context.Context) error {
	campaigns, err := s.campaignRepo.FindDrawingInProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to list drawing campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		if err := s.pollCampaign(ctx, campaign); err != nil {
			slog.Error("Failed to poll draw", "error", err, "campaignId", campaign.ID, "requestId", campaign.VRF.RequestID)
		}
	}
	return nil
}

func (s *DrawServiceImpl) pollCampaign(ctx context.Context, campaign *models.Campaign) error {
	randomWords, fulfilled, err := s.oracle.PollFulfillment(ctx, campaign.VRF.RequestID)
	if err != nil {
		return fmt.Errorf("oracle poll failed: %w", err)
	}
	if !fulfilled {
		return nil
	}

	tickets, err := s.ticketRepo.FindByCampaignID(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to load tickets: %w", err)
	}

	winners, err := DeriveWinners(randomWords, campaign.WinnerCount, int64(len(tickets)))
	if err != nil {
		// Derivation errors are retried on the next poll with the same
		// randomness; the campaign stays IN_PROGRESS. A draw that never
		// converges stalls here, which is why these log at ERROR.
		return fmt.Errorf("winner derivation failed: %w", err)
	}

	campaign.VRF.RandomWords = randomWords
	campaign.VRF.FulfilledAt = time.Now()

	if err := s.settlement.Settle(ctx, campaign, tickets, winners); err != nil {
		return fmt.Errorf("settlement failed: %w", err)
	}
	slog.Info("Draw fulfilled and settled", "campaignId", campaign.ID, "winners", len(winners))
	return nil
}

// CancelDraw is the manual operator transition to VRF CANCELLED.
func (s *DrawServiceImpl) CancelDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error) {
	return s.terminateDraw(ctx, campaignID, models.VRFStatusCancelled)
}

// ExpireDraw is the manual operator transition to VRF EXPIRED.
func (s *DrawServiceImpl) ExpireDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error) {
	return s.terminateDraw(ctx, campaignID, models.VRFStatusExpired)
}

// FailDraw records an oracle-side failure signal.
func (s *DrawServiceImpl) FailDraw(ctx context.Context, campaignID primitive.ObjectID) (*models.Campaign, error) {
	return s.terminateDraw(ctx, campaignID, models.VRFStatusFailed)
}

func (s *DrawServiceImpl) terminateDraw(ctx context.Context, campaignID primitive.ObjectID, status models.VRFStatus) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}
	if campaign.VRF.Status != models.VRFStatusPending && campaign.VRF.Status != models.VRFStatusInProgress {
		return nil, fmt.Errorf("%w: campaign %s is %s", ErrDrawNotActive, campaignID.Hex(), campaign.VRF.Status)
	}

	campaign.VRF.Status = status
	campaign.Status = models.CampaignStatusCancelled
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to terminate draw: %w", err)
	}
	slog.Warn("Draw terminated by operator", "campaignId", campaignID, "vrfStatus", status)
	return campaign, nil
}

// GetDrawingCampaigns lists campaigns currently waiting on the oracle.
func (s *DrawServiceImpl) GetDrawingCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	return s.campaignRepo.FindDrawingInProgress(ctx)
}
