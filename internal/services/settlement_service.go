package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/naffle-labs/allowlist-engine/internal/ledger"
	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/money"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
	"github.com/naffle-labs/allowlist-engine/internal/storage"
)

// Compile-time check to ensure SettlementServiceImpl implements SettlementService
var _ SettlementService = (*SettlementServiceImpl)(nil)

// ErrAlreadySettled is returned when settlement is invoked on a campaign
// that has already reached a terminal status. Settlement is terminal: paying
// out twice is never acceptable.
var ErrAlreadySettled = errors.New("campaign is already settled")

// SettlementServiceImpl computes and applies campaign settlements
type SettlementServiceImpl struct {
	campaignRepo   repositories.CampaignRepository
	settlementRepo repositories.SettlementRepository
	ledger         ledger.Ledger
	storage        storage.ObjectStorage
	txRunner       repositories.TxRunner
}

// NewSettlementService creates a new SettlementServiceImpl
func NewSettlementService(
	campaignRepo repositories.CampaignRepository,
	settlementRepo repositories.SettlementRepository,
	ldgr ledger.Ledger,
	store storage.ObjectStorage,
	txRunner repositories.TxRunner,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		campaignRepo:   campaignRepo,
		settlementRepo: settlementRepo,
		ledger:         ldgr,
		storage:        store,
		txRunner:       txRunner,
	}
}

// Settle applies the full settlement of an ended campaign: winner set,
// ledger transfers, audit record, winners export and the terminal campaign
// update. winners is the explicit winning ticket-number set from a draw, or
// nil when every entry wins. All persistent effects commit in one
// transaction; on any error the campaign is left unsettled for retry.
func (s *SettlementServiceImpl) Settle(ctx context.Context, campaign *models.Campaign, tickets []*models.Ticket, winners []int64) error {
	if campaign.Settled() {
		return ErrAlreadySettled
	}

	winnerTickets, err := selectWinnerTickets(tickets, winners)
	if err != nil {
		return err
	}

	campaign.WinningTicketNumbers = make([]int64, len(winnerTickets))
	for i, t := range winnerTickets {
		campaign.WinningTicketNumbers[i] = t.TicketNumber
	}
	if winners != nil {
		campaign.VRF.Status = models.VRFStatusFulfilled
		if campaign.VRF.FulfilledAt.IsZero() {
			campaign.VRF.FulfilledAt = time.Now()
		}
	}
	campaign.Status = models.CampaignStatusEnded

	// Free campaigns record only status and winner set: no transfers, no
	// audit record, no export.
	if !campaign.Paid() {
		if err := s.campaignRepo.Update(ctx, campaign); err != nil {
			return fmt.Errorf("failed to record free settlement: %w", err)
		}
		slog.Info("Free campaign settled", "campaignId", campaign.ID, "entries", len(tickets), "winners", len(winnerTickets))
		return nil
	}

	if existing, err := s.settlementRepo.FindByCampaignID(ctx, campaign.ID); err == nil && existing != nil {
		return ErrAlreadySettled
	}

	settlement, err := buildSettlement(campaign, tickets, winnerTickets)
	if err != nil {
		return err
	}

	// The export cannot join the transaction; it is uploaded first and
	// overwritten on retry if the transaction below aborts.
	fileKey, err := s.uploadWinnersExport(ctx, campaign, winnerTickets)
	if err != nil {
		return err
	}
	campaign.WinnersFileKey = fileKey

	err = s.txRunner.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, transfer := range settlement.Transfers {
			if err := s.ledger.Credit(txCtx, transfer.UserID, transfer.Token, transfer.Amount); err != nil {
				return fmt.Errorf("failed to apply %s transfer to %s: %w", transfer.Type, transfer.UserID, err)
			}
		}
		if err := s.settlementRepo.Create(txCtx, settlement); err != nil {
			return fmt.Errorf("failed to create settlement record: %w", err)
		}
		if err := s.campaignRepo.Update(txCtx, campaign); err != nil {
			return fmt.Errorf("failed to update campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("Settlement transaction aborted", "error", err, "campaignId", campaign.ID)
		return err
	}

	slog.Info("Campaign settled",
		"campaignId", campaign.ID,
		"entries", settlement.Entries,
		"winners", settlement.WinnerCount,
		"losers", settlement.LoserCount,
		"totalPaid", settlement.TotalPaid,
		"remainder", settlement.Remainder,
	)
	return nil
}

// selectWinnerTickets resolves the winning tickets, ordered by ticket
// number. A nil winner set means every entry wins.
func selectWinnerTickets(tickets []*models.Ticket, winners []int64) ([]*models.Ticket, error) {
	if winners == nil {
		return tickets, nil
	}
	byNumber := make(map[int64]*models.Ticket, len(tickets))
	for _, t := range tickets {
		byNumber[t.TicketNumber] = t
	}
	selected := make([]*models.Ticket, 0, len(winners))
	for _, n := range winners {
		t, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("winning ticket number %d has no matching ticket", n)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// buildSettlement computes the full transfer plan in exact integer
// arithmetic and verifies money conservation before anything is applied.
func buildSettlement(campaign *models.Campaign, tickets, winnerTickets []*models.Ticket) (*models.Settlement, error) {
	payment := campaign.Payment
	entries := len(tickets)
	winnerCount := len(winnerTickets)
	loserCount := entries - winnerCount

	winnerNumbers := make(map[int64]struct{}, winnerCount)
	for _, t := range winnerTickets {
		winnerNumbers[t.TicketNumber] = struct{}{}
	}

	var transfers []models.Transfer
	add := func(typ models.TransferType, userID string, amount money.Amount) {
		if amount.IsZero() {
			return
		}
		transfers = append(transfers, models.Transfer{
			Type:   typ,
			UserID: userID,
			Token:  payment.Token,
			Amount: amount,
		})
	}

	// The reserve stake was never at risk: every entrant gets it back
	// regardless of outcome.
	stake := payment.StakePerTicket()
	for _, t := range tickets {
		add(models.TransferStakeRefund, t.UserID, stake)
	}

	remainder := money.New(0)
	switch {
	case loserCount == 0:
		// No losers: the creator takes the full ticket revenue and no
		// profit-guarantee pool exists.
		add(models.TransferCreatorRevenue, campaign.CreatorID, payment.MintPrice.MulInt64(int64(entries)))

	case !payment.RefundLosingEntries:
		// Losing entries are not refunded, so no refunds are owed and the
		// creator keeps the full pool.
		add(models.TransferCreatorRevenue, campaign.CreatorID, payment.MintPrice.MulInt64(int64(entries)))

	default:
		pool := payment.TotalProfitGuaranteePool
		creatorRevenue := payment.MintPrice.MulInt64(int64(winnerCount)).Sub(pool)
		if creatorRevenue.Sign() < 0 {
			return nil, fmt.Errorf("profit guarantee pool %s exceeds winning revenue", pool)
		}
		add(models.TransferCreatorRevenue, campaign.CreatorID, creatorRevenue)

		share, rem := pool.DivMod(int64(loserCount))
		remainder = rem
		loserRefund := payment.MintPrice.Add(share)
		for _, t := range tickets {
			if _, won := winnerNumbers[t.TicketNumber]; won {
				continue
			}
			add(models.TransferLoserRefund, t.UserID, loserRefund)
		}
		// The floor-division remainder is credited to the creator as its
		// own line item rather than being silently dropped.
		add(models.TransferRemainder, campaign.CreatorID, remainder)
	}

	total := money.New(0)
	for _, transfer := range transfers {
		total = total.Add(transfer.Amount)
	}
	expected := payment.TotalTicketPrice.MulInt64(int64(entries))
	if total.Cmp(expected) != 0 {
		return nil, fmt.Errorf("settlement does not conserve money: transfers sum to %s, collected %s", total, expected)
	}

	return &models.Settlement{
		CampaignID:  campaign.ID,
		Entries:     entries,
		WinnerCount: winnerCount,
		LoserCount:  loserCount,
		Transfers:   transfers,
		Remainder:   remainder,
		TotalPaid:   total,
	}, nil
}

// uploadWinnersExport writes the winner wallet addresses as CSV, one row per
// winner ordered by ticket number, at a path derived from campaign identity.
func (s *SettlementServiceImpl) uploadWinnersExport(ctx context.Context, campaign *models.Campaign, winnerTickets []*models.Ticket) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"walletAddress"}); err != nil {
		return "", err
	}
	for _, t := range winnerTickets {
		if err := w.Write([]string{t.WalletAddress}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	path := fmt.Sprintf("exports/allowlists/%s-winners.csv", campaign.ID.Hex())
	fileKey, err := s.storage.Upload(ctx, buf.Bytes(), path)
	if err != nil {
		return "", fmt.Errorf("failed to upload winners export: %w", err)
	}
	return fileKey, nil
}
