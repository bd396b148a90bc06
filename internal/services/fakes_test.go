package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/money"
)

// In-memory fakes implementing the repository and collaborator interfaces.

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]*models.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[primitive.ObjectID]*models.Campaign)}
}

func cloneCampaign(c *models.Campaign) *models.Campaign {
	cp := *c
	if c.Payment != nil {
		payment := *c.Payment
		cp.Payment = &payment
	}
	cp.WinningTicketNumbers = append([]int64(nil), c.WinningTicketNumbers...)
	cp.VRF.RandomWords = append([]string(nil), c.VRF.RandomWords...)
	return &cp
}

func (r *fakeCampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *fakeCampaignRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return cloneCampaign(c), nil
}

func (r *fakeCampaignRepo) FindByEventID(ctx context.Context, eventID string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.EventID == eventID {
			return cloneCampaign(c), nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	c.UpdatedAt = time.Now()
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *fakeCampaignRepo) FindEndedLive(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusLive && c.EndTime.Before(now) {
			out = append(out, cloneCampaign(c))
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) FindDrawingInProgress(ctx context.Context) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusDrawing && c.VRF.Status == models.VRFStatusInProgress {
			out = append(out, cloneCampaign(c))
		}
	}
	return out, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets []*models.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{}
}

func (r *fakeTicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tickets {
		if existing.CampaignID == t.CampaignID && existing.TicketNumber == t.TicketNumber {
			return fmt.Errorf("duplicate ticket number %d", t.TicketNumber)
		}
	}
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	cp := *t
	r.tickets = append(r.tickets, &cp)
	return nil
}

func (r *fakeTicketRepo) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) ([]*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ticket
	for _, t := range r.tickets {
		if t.CampaignID == campaignID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out, nil
}

func (r *fakeTicketRepo) CountByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tickets {
		if t.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (r *fakeTicketRepo) FindByCampaignAndNumbers(ctx context.Context, campaignID primitive.ObjectID, numbers []int64) ([]*models.Ticket, error) {
	wanted := make(map[int64]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}
	all, _ := r.FindByCampaignID(ctx, campaignID)
	var out []*models.Ticket
	for _, t := range all {
		if wanted[t.TicketNumber] {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeCounterRepo struct {
	mu       sync.Mutex
	counters map[primitive.ObjectID]int64
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counters: make(map[primitive.ObjectID]int64)}
}

func (r *fakeCounterRepo) NextTicketNumber(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[campaignID]++
	return r.counters[campaignID], nil
}

type fakeSettlementRepo struct {
	mu          sync.Mutex
	settlements map[primitive.ObjectID]*models.Settlement
}

func newFakeSettlementRepo() *fakeSettlementRepo {
	return &fakeSettlementRepo{settlements: make(map[primitive.ObjectID]*models.Settlement)}
}

func (r *fakeSettlementRepo) Create(ctx context.Context, s *models.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settlements[s.CampaignID]; ok {
		return fmt.Errorf("settlement already exists for campaign %s", s.CampaignID.Hex())
	}
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	r.settlements[s.CampaignID] = s
	return nil
}

func (r *fakeSettlementRepo) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (*models.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[campaignID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return s, nil
}

type fakeLedger struct {
	mu         sync.Mutex
	balances   map[string]money.Amount // key: userID "/" token
	credits    int
	debits     int
	failCredit bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]money.Amount)}
}

func ledgerKey(userID, token string) string { return userID + "/" + token }

func (l *fakeLedger) fund(userID, token string, amount money.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(userID, token)
	l.balances[key] = l.balances[key].Add(amount)
}

func (l *fakeLedger) balance(userID, token string) money.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ledgerKey(userID, token)]
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credits + l.debits
}

func (l *fakeLedger) Debit(ctx context.Context, userID, token string, amount money.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debits++
	key := ledgerKey(userID, token)
	if l.balances[key].Cmp(amount) < 0 {
		return fmt.Errorf("insufficient funds for %s", userID)
	}
	l.balances[key] = l.balances[key].Sub(amount)
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID, token string, amount money.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit {
		return fmt.Errorf("ledger unavailable")
	}
	l.credits++
	key := ledgerKey(userID, token)
	l.balances[key] = l.balances[key].Add(amount)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(ctx context.Context, data []byte, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[path] = data
	return path, nil
}

type fakeOracle struct {
	mu        sync.Mutex
	requests  []string
	fulfilled map[string][]string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{fulfilled: make(map[string][]string)}
}

func (o *fakeOracle) fulfill(requestID string, words []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfilled[requestID] = words
}

func (o *fakeOracle) requestCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

func (o *fakeOracle) RequestRandomness(ctx context.Context, eventID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, eventID)
	return "req-" + eventID, nil
}

func (o *fakeOracle) PollFulfillment(ctx context.Context, requestID string) ([]string, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	words, ok := o.fulfilled[requestID]
	if !ok {
		return nil, false, nil
	}
	return words, true, nil
}

// fakeTxRunner runs the callback directly; the fakes themselves are the
// unit of persistence.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
