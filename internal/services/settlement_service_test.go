package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/money"
)

type settlementFixture struct {
	campaignRepo   *fakeCampaignRepo
	settlementRepo *fakeSettlementRepo
	ledger         *fakeLedger
	storage        *fakeStorage
	service        *SettlementServiceImpl
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		campaignRepo:   newFakeCampaignRepo(),
		settlementRepo: newFakeSettlementRepo(),
		ledger:         newFakeLedger(),
		storage:        newFakeStorage(),
	}
	f.service = NewSettlementService(f.campaignRepo, f.settlementRepo, f.ledger, f.storage, fakeTxRunner{})
	return f
}

func paidCampaign(winnerCount int, mintPrice int64, stakeBps, guaranteeBps int64, refundLosers bool) *models.Campaign {
	c := &models.Campaign{
		ID:          primitive.NewObjectID(),
		EventID:     "evt-test",
		Name:        "test allowlist",
		CreatorID:   "creator",
		WinnerCount: winnerCount,
		StartTime:   time.Now().Add(-2 * time.Hour),
		EndTime:     time.Now().Add(-time.Hour),
		Status:      models.CampaignStatusLive,
		VRF:         models.VRFState{Status: models.VRFStatusPending},
		Payment: &models.PaymentTerms{
			Enabled:             true,
			Token:               "USDC",
			MintPrice:           money.New(mintPrice),
			ReserveStakeBps:     stakeBps,
			ProfitGuaranteeBps:  guaranteeBps,
			RefundLosingEntries: refundLosers,
		},
	}
	c.Payment.RecomputeDerived(winnerCount)
	return c
}

func makeTickets(campaignID primitive.ObjectID, n int) []*models.Ticket {
	tickets := make([]*models.Ticket, n)
	for i := 0; i < n; i++ {
		tickets[i] = &models.Ticket{
			ID:            primitive.NewObjectID(),
			CampaignID:    campaignID,
			TicketNumber:  int64(i + 1),
			UserID:        fmt.Sprintf("user-%d", i+1),
			WalletAddress: fmt.Sprintf("0xwallet%d", i+1),
			PurchasedAt:   time.Now().Add(-90 * time.Minute),
		}
	}
	return tickets
}

func TestSettleEveryoneWins(t *testing.T) {
	// winnerCount=0, entries=10, mintPrice=100, stake 1x: every entrant is
	// refunded a 100 stake and the creator receives the full 1000 revenue.
	f := newSettlementFixture()
	campaign := paidCampaign(0, 100, 10000, 0, false)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 10)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, nil))

	require.Equal(t, "1000", f.ledger.balance("creator", "USDC").String())
	for i := 1; i <= 10; i++ {
		require.Equal(t, "100", f.ledger.balance(fmt.Sprintf("user-%d", i), "USDC").String())
	}

	settlement, err := f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, 10, settlement.Entries)
	require.Equal(t, 10, settlement.WinnerCount)
	require.Equal(t, 0, settlement.LoserCount)
	require.True(t, settlement.Remainder.IsZero())
	require.Equal(t, "2000", settlement.TotalPaid.String())

	stored, err := f.campaignRepo.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignStatusEnded, stored.Status)
	require.Len(t, stored.WinningTicketNumbers, 10)
}

func TestSettleProfitGuarantee(t *testing.T) {
	// winnerCount=3, entries=10, mintPrice=100, guarantee 20%, refund
	// losers, no stake: pool=60, creator=240, each of 7 losers gets 108,
	// remainder 60 mod 7 = 4 goes to the creator as its own line item.
	f := newSettlementFixture()
	campaign := paidCampaign(3, 100, 0, 2000, true)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 10)
	winners := []int64{2, 5, 9}

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, winners))

	// 240 revenue + 4 remainder
	require.Equal(t, "244", f.ledger.balance("creator", "USDC").String())
	winnerSet := map[int64]bool{2: true, 5: true, 9: true}
	for i := 1; i <= 10; i++ {
		bal := f.ledger.balance(fmt.Sprintf("user-%d", i), "USDC")
		if winnerSet[int64(i)] {
			require.True(t, bal.IsZero(), "winner %d should receive nothing", i)
		} else {
			require.Equal(t, "108", bal.String(), "loser %d refund", i)
		}
	}

	settlement, err := f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, "4", settlement.Remainder.String())
	require.Equal(t, "1000", settlement.TotalPaid.String())
	require.Equal(t, 7, settlement.LoserCount)

	var sawRemainder bool
	for _, transfer := range settlement.Transfers {
		if transfer.Type == models.TransferRemainder {
			sawRemainder = true
			require.Equal(t, "creator", transfer.UserID)
			require.Equal(t, "4", transfer.Amount.String())
		}
	}
	require.True(t, sawRemainder, "remainder must be an explicit transfer")
}

func TestSettleNoRefundForLosers(t *testing.T) {
	// refundLosingEntries=false: the creator keeps the full pool, losers
	// get only their stake back.
	f := newSettlementFixture()
	campaign := paidCampaign(3, 100, 5000, 2000, false)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 10)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, []int64{1, 2, 3}))

	require.Equal(t, "1000", f.ledger.balance("creator", "USDC").String())
	for i := 1; i <= 10; i++ {
		// 0.5x stake on a 100 mint price
		require.Equal(t, "50", f.ledger.balance(fmt.Sprintf("user-%d", i), "USDC").String())
	}
}

func TestSettleAllEntriesWinWithScarcityConfigured(t *testing.T) {
	// entries=5, winnerCount=5: no draw, no losers, no guarantee pool.
	f := newSettlementFixture()
	campaign := paidCampaign(5, 100, 0, 2000, true)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 5)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, nil))

	require.Equal(t, "500", f.ledger.balance("creator", "USDC").String())
	settlement, err := f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, 0, settlement.LoserCount)
	require.True(t, settlement.Remainder.IsZero())
}

func TestSettleConservesMoney(t *testing.T) {
	// creator + Σloser + Σstake + remainder == totalTicketPrice × entries,
	// exactly, across configurations.
	cases := []struct {
		name         string
		winnerCount  int
		entries      int
		mintPrice    int64
		stakeBps     int64
		guaranteeBps int64
		refundLosers bool
		winners      []int64
	}{
		{"draw with stake and guarantee", 3, 11, 997, 10000, 3333, true, []int64{1, 6, 11}},
		{"draw without refunds", 2, 9, 250, 20000, 5000, false, []int64{4, 5}},
		{"awkward division", 4, 13, 101, 5000, 9999, true, []int64{2, 3, 5, 7}},
		{"full guarantee", 1, 7, 1000, 0, 10000, true, []int64{7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSettlementFixture()
			campaign := paidCampaign(tc.winnerCount, tc.mintPrice, tc.stakeBps, tc.guaranteeBps, tc.refundLosers)
			require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
			tickets := makeTickets(campaign.ID, tc.entries)

			require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, tc.winners))

			settlement, err := f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
			require.NoError(t, err)

			expected := campaign.Payment.TotalTicketPrice.MulInt64(int64(tc.entries))
			total := money.New(0)
			for _, transfer := range settlement.Transfers {
				total = total.Add(transfer.Amount)
			}
			require.Equal(t, expected.String(), total.String())
			require.Equal(t, expected.String(), settlement.TotalPaid.String())
		})
	}
}

func TestSettleIsTerminal(t *testing.T) {
	f := newSettlementFixture()
	campaign := paidCampaign(0, 100, 0, 0, false)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 4)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, nil))
	creatorBalance := f.ledger.balance("creator", "USDC")

	// The campaign object now carries a terminal status; settling again
	// must not double-pay.
	err := f.service.Settle(context.Background(), campaign, tickets, nil)
	require.ErrorIs(t, err, ErrAlreadySettled)
	require.Equal(t, creatorBalance.String(), f.ledger.balance("creator", "USDC").String())

	// Same for a fresh copy loaded from the store.
	stored, err := f.campaignRepo.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	err = f.service.Settle(context.Background(), stored, tickets, nil)
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestSettleFreeCampaign(t *testing.T) {
	f := newSettlementFixture()
	campaign := &models.Campaign{
		ID:          primitive.NewObjectID(),
		EventID:     "evt-free",
		CreatorID:   "creator",
		WinnerCount: 2,
		StartTime:   time.Now().Add(-2 * time.Hour),
		EndTime:     time.Now().Add(-time.Hour),
		Status:      models.CampaignStatusDrawing,
		VRF:         models.VRFState{Status: models.VRFStatusInProgress, RequestID: "req-1"},
	}
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 5)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, []int64{1, 4}))

	require.Zero(t, f.ledger.calls(), "free settlement must not touch the ledger")
	_, err := f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
	require.Error(t, err, "free settlement keeps no audit record")
	require.Empty(t, f.storage.uploads, "free settlement keeps no export")

	stored, err := f.campaignRepo.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignStatusEnded, stored.Status)
	require.Equal(t, models.VRFStatusFulfilled, stored.VRF.Status)
	require.Equal(t, []int64{1, 4}, stored.WinningTicketNumbers)
}

func TestSettleRollsBackOnLedgerFailure(t *testing.T) {
	f := newSettlementFixture()
	f.ledger.failCredit = true
	campaign := paidCampaign(0, 100, 0, 0, false)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 3)

	err := f.service.Settle(context.Background(), campaign, tickets, nil)
	require.Error(t, err)

	stored, findErr := f.campaignRepo.FindByID(context.Background(), campaign.ID)
	require.NoError(t, findErr)
	require.Equal(t, models.CampaignStatusLive, stored.Status, "campaign must stay unsettled for retry")
	_, findErr = f.settlementRepo.FindByCampaignID(context.Background(), campaign.ID)
	require.Error(t, findErr)
}

func TestSettleWritesWinnersExport(t *testing.T) {
	f := newSettlementFixture()
	campaign := paidCampaign(2, 100, 0, 0, false)
	require.NoError(t, f.campaignRepo.Create(context.Background(), campaign))
	tickets := makeTickets(campaign.ID, 5)

	require.NoError(t, f.service.Settle(context.Background(), campaign, tickets, []int64{3, 5}))

	stored, err := f.campaignRepo.FindByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.WinnersFileKey)

	data, ok := f.storage.uploads[stored.WinnersFileKey]
	require.True(t, ok)
	require.Equal(t, "walletAddress\n0xwallet3\n0xwallet5\n", string(data))
}
