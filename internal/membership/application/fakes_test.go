package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
)

// fakeBackend stands in for the platform API and counts every request.
type fakeBackend struct {
	mu sync.Mutex

	plans      []domain.Plan
	membership *domain.Membership

	checkoutURL string
	checkoutErr error
	verify      *domain.CheckoutVerification
	verifyErr   error
	cancelErr   error
	readErr     error

	planReads       int
	membershipReads int
	checkoutCalls   int
	verifyCalls     int
	cancelCalls     int
	reactivateCalls int

	checkoutRequests []domain.CheckoutRequest
	cancelArgs       []bool

	// When set, the matching call signals entered and waits for release.
	checkoutEntered, checkoutRelease chan struct{}
	cancelEntered, cancelRelease     chan struct{}
	readEntered, readRelease         chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		plans:       samplePlans(),
		checkoutURL: "https://pay.example/cs_test",
	}
}

func samplePlans() []domain.Plan {
	return []domain.Plan{
		{ID: "bronze-monthly", Name: "Bronze", Tier: domain.TierBronze, BillingCycle: domain.BillingMonthly,
			Amount: domain.MustAmount("10", "USD"), IsActive: true},
		{ID: "gold-monthly", Name: "Gold", Tier: domain.TierGold, BillingCycle: domain.BillingMonthly,
			Amount: domain.MustAmount("100", "USD"), IsActive: true},
		{ID: "gold-annual", Name: "Gold", Tier: domain.TierGold, BillingCycle: domain.BillingAnnual,
			Amount: domain.MustAmount("1000", "USD"), IsActive: true},
		{ID: "legacy", Name: "Legacy", Tier: domain.TierSilver, BillingCycle: domain.BillingMonthly,
			Amount: domain.MustAmount("5", "USD"), IsActive: false},
	}
}

func (f *fakeBackend) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planReads++
	return append([]domain.Plan(nil), f.plans...), nil
}

func (f *fakeBackend) CurrentMembership(ctx context.Context) (*domain.Membership, error) {
	f.mu.Lock()
	f.membershipReads++
	entered, release := f.readEntered, f.readRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.membership.Clone(), nil
}

func (f *fakeBackend) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	f.checkoutCalls++
	f.checkoutRequests = append(f.checkoutRequests, req)
	entered, release := f.checkoutEntered, f.checkoutRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &domain.CheckoutSession{SessionID: "cs_test", URL: f.checkoutURL}, nil
}

func (f *fakeBackend) VerifyCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verify, nil
}

// CancelMembership applies the change server-side, as the real backend would.
func (f *fakeBackend) CancelMembership(ctx context.Context, atPeriodEnd bool) error {
	f.mu.Lock()
	f.cancelCalls++
	f.cancelArgs = append(f.cancelArgs, atPeriodEnd)
	entered, release := f.cancelEntered, f.cancelRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if f.membership != nil {
		if atPeriodEnd {
			f.membership.CancelAtPeriodEnd = true
		} else {
			f.membership.Status = domain.StatusCancelled
			now := time.Now()
			f.membership.CancelledAt = &now
		}
	}
	return nil
}

func (f *fakeBackend) ReactivateMembership(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactivateCalls++
	if f.membership != nil {
		f.membership.CancelAtPeriodEnd = false
	}
	return nil
}

func (f *fakeBackend) setMembership(m *domain.Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.membership = m
}

// requests is the total number of calls of any kind.
func (f *fakeBackend) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planReads + f.membershipReads + f.checkoutCalls + f.verifyCalls + f.cancelCalls + f.reactivateCalls
}

// mutations counts the subscription-changing calls only.
func (f *fakeBackend) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkoutCalls + f.cancelCalls + f.reactivateCalls
}

func (f *fakeBackend) checkouts() []domain.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CheckoutRequest(nil), f.checkoutRequests...)
}

func (f *fakeBackend) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membershipReads
}

// recordingPublisher captures routing keys.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// mapCache is a minimal MembershipCache for tests.
type mapCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*domain.Membership
	invalidated int
	failGet     bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uuid.UUID]*domain.Membership)}
}

func (c *mapCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Membership, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	m, ok := c.entries[userID]
	return m.Clone(), ok, nil
}

func (c *mapCache) Set(ctx context.Context, userID uuid.UUID, m *domain.Membership, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = m.Clone()
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated++
	return nil
}

func (c *mapCache) has(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[userID]
	return ok
}

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func activeMembership(planID string) *domain.Membership {
	return &domain.Membership{
		ID:                 "m-1",
		PlanID:             planID,
		Status:             domain.StatusActive,
		CurrentPeriodStart: fixedNow.AddDate(0, 0, -13),
		CurrentPeriodEnd:   fixedNow.AddDate(0, 0, 17),
	}
}

type harness struct {
	svc       *Service
	backend   *fakeBackend
	cache     *mapCache
	inbox     *Inbox
	publisher *recordingPublisher
	navigated []string
	navMu     sync.Mutex
	userID    uuid.UUID
}

func newHarness(current *domain.Membership) *harness {
	h := &harness{
		backend:   newFakeBackend(),
		cache:     newMapCache(),
		inbox:     NewInbox(),
		publisher: &recordingPublisher{},
		userID:    uuid.New(),
	}
	h.backend.membership = current

	session := NewSession()
	session.Start(h.userID, "token")

	h.svc = NewService(Deps{
		Session:     session,
		Catalog:     h.backend,
		Memberships: h.backend,
		Checkout:    h.backend,
		Lifecycle:   h.backend,
		Cache:       h.cache,
		Notifier:    h.inbox,
		Navigator: NavigatorFunc(func(ctx context.Context, url string) error {
			h.navMu.Lock()
			defer h.navMu.Unlock()
			h.navigated = append(h.navigated, url)
			return nil
		}),
		Publisher: h.publisher,
	}, Options{
		SuccessURL:     "https://donora.org/membership/success",
		CancelURL:      "https://donora.org/membership",
		SupportContact: "support@donora.org",
		CacheTTL:       time.Minute,
		Now:            func() time.Time { return fixedNow },
	})
	return h
}

// prime loads the catalog and the membership so later calls can be
// measured against a warm session.
func (h *harness) prime() {
	ctx := context.Background()
	_, _ = h.svc.Plans(ctx, domain.PlanFilter{})
	_, _ = h.svc.CurrentMembership(ctx)
	h.inbox.Drain()
}

func (h *harness) urls() []string {
	h.navMu.Lock()
	defer h.navMu.Unlock()
	return append([]string(nil), h.navigated...)
}
