// Package application drives the membership lifecycle: plan selection, the
// subscription guard, switch confirmation, cancellation, reactivation and
// post-checkout verification.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	sharedDomain "github.com/felixgeelhaar/donora/internal/shared/domain"
	"github.com/felixgeelhaar/donora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/google/uuid"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Session     *Session
	Catalog     domain.Catalog
	Memberships domain.MembershipReader
	Checkout    domain.CheckoutGateway
	Lifecycle   domain.LifecycleGateway
	Cache       domain.MembershipCache
	Notifier    Notifier
	Navigator   Navigator
	Publisher   eventbus.Publisher
	Metrics     observability.Metrics
	Logger      *slog.Logger
}

// Options tune a Service.
type Options struct {
	SuccessURL     string
	CancelURL      string
	SupportContact string
	CacheTTL       time.Duration
	Now            func() time.Time
}

// Service is the membership lifecycle controller. Every command is
// followed by a fresh read; the displayed membership only changes when
// that read resolves.
type Service struct {
	session     *Session
	catalog     domain.Catalog
	memberships domain.MembershipReader
	checkout    domain.CheckoutGateway
	lifecycle   domain.LifecycleGateway
	cache       domain.MembershipCache
	notifier    Notifier
	navigator   Navigator
	publisher   eventbus.Publisher
	metrics     observability.Metrics
	logger      *slog.Logger
	opts        Options
}

// NewService creates a Service. Missing optional collaborators fall back
// to no-op implementations.
func NewService(deps Deps, opts Options) *Service {
	if deps.Session == nil {
		deps.Session = NewSession()
	}
	if deps.Cache == nil {
		deps.Cache = noCache{}
	}
	if deps.Notifier == nil {
		deps.Notifier = discardNotifier{}
	}
	if deps.Navigator == nil {
		deps.Navigator = discardNavigator{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = eventbus.NewNoopPublisher(deps.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SupportContact == "" {
		opts.SupportContact = "support"
	}
	return &Service{
		session:     deps.Session,
		catalog:     deps.Catalog,
		memberships: deps.Memberships,
		checkout:    deps.Checkout,
		lifecycle:   deps.Lifecycle,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		navigator:   deps.Navigator,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		opts:        opts,
	}
}

// Session returns the state container the service operates on.
func (s *Service) Session() *Session {
	return s.session
}

// SubscribeOutcome reports what AttemptSubscribe decided and did.
type SubscribeOutcome struct {
	Decision    domain.Decision
	Plan        domain.Plan
	Current     *domain.Membership
	Pending     *PendingSwitch
	CheckoutURL string
	SessionID   string
}

// Plans reads the catalog and returns it narrowed by filter. The listing
// is kept in the session for plan lookups by AttemptSubscribe.
func (s *Service) Plans(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, error) {
	plans, err := s.loadPlans(ctx)
	if err != nil {
		return nil, s.fail(ctx, "plans", err)
	}
	return domain.FilterPlans(plans, filter), nil
}

func (s *Service) loadPlans(ctx context.Context) ([]domain.Plan, error) {
	gen := s.session.currentGeneration()
	plans, err := s.catalog.ListPlans(ctx)
	if err != nil {
		return nil, s.classify(err, domain.KindUnknown)
	}
	s.session.storePlans(gen, plans)
	return plans, nil
}

// catalogPlans prefers the listing already read in this session.
func (s *Service) catalogPlans(ctx context.Context) ([]domain.Plan, error) {
	if plans, ok := s.session.Plans(); ok {
		return plans, nil
	}
	return s.loadPlans(ctx)
}

// CurrentMembership returns the membership, reading the cache first.
func (s *Service) CurrentMembership(ctx context.Context) (*domain.Membership, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "status", err)
	}
	m, err := s.read(ctx, userID, true)
	if err != nil {
		return nil, s.fail(ctx, "status", err)
	}
	return m, nil
}

// Refresh drops the cached membership and reads it again.
func (s *Service) Refresh(ctx context.Context) (*domain.Membership, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}
	m, err := s.refetch(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}
	return m, nil
}

// AttemptSubscribe runs the subscription guard for planID. It issues a
// checkout request only when the decision is proceed.
func (s *Service) AttemptSubscribe(ctx context.Context, planID string) (*SubscribeOutcome, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "subscribe", err)
	}
	gen := s.session.currentGeneration()
	release, ok := s.session.begin(OpCheckout)
	if !ok {
		return nil, s.fail(ctx, "subscribe", s.reject(domain.KindRequestInFlight, ""))
	}
	defer release()

	plans, err := s.catalogPlans(ctx)
	if err != nil {
		return nil, s.fail(ctx, "subscribe", err)
	}
	plan, found := domain.FindPlan(plans, planID)
	if !found || !plan.IsActive {
		return nil, s.fail(ctx, "subscribe", s.reject(domain.KindPlanUnavailable, ""))
	}

	current, err := s.read(ctx, userID, true)
	if err != nil {
		return nil, s.fail(ctx, "subscribe", err)
	}

	decision := domain.Decide(plan, current)
	pending := s.session.Pending()
	if pending != nil && decision == domain.DecisionProceed {
		// A pending switch is only resolved by ConfirmSwitch or AbandonSwitch.
		decision = domain.DecisionConfirmSwitch
	}

	outcome := &SubscribeOutcome{Decision: decision, Plan: plan, Current: current}
	log := observability.LogOperation(s.logger, "subscribe", "plan_id", plan.ID, "decision", string(decision))

	switch decision {
	case domain.DecisionAlreadySubscribed:
		if s.session.clearPending() {
			log.DebugContext(ctx, "pending switch discarded by reselecting current plan")
		}
		s.notify(ctx, LevelInfo, domain.KindAlreadySubscribed, s.messageFor(domain.KindAlreadySubscribed))
		s.count("subscribe", "already_subscribed")
		log.InfoContext(ctx, "subscription guard blocked resubscription")
		return outcome, nil

	case domain.DecisionConfirmSwitch:
		p := &PendingSwitch{
			Target:    plan,
			CreatedAt: s.opts.Now(),
		}
		if current != nil {
			p.FromPlanID = current.PlanID
		} else if pending != nil {
			p.FromPlanID = pending.FromPlanID
		}
		if from, ok := domain.FindPlan(plans, p.FromPlanID); ok {
			p.FromPlan = &from
			p.Direction = from.DirectionTo(plan)
		}
		if !s.session.setPending(gen, p) {
			log.WarnContext(ctx, "session ended before the plan switch was recorded")
			return nil, s.fail(ctx, "subscribe", s.reject(domain.KindUnauthenticated, ""))
		}
		outcome.Pending = p
		s.notify(ctx, LevelInfo, domain.KindConflictingActiveMembership, switchPrompt(p))
		s.count("subscribe", "confirm_switch")
		log.InfoContext(ctx, "plan switch awaiting confirmation", "from_plan_id", p.FromPlanID)
		return outcome, nil
	}

	session, err := s.startCheckout(ctx, userID, plan, "")
	if err != nil {
		return nil, s.fail(ctx, "subscribe", err)
	}
	outcome.CheckoutURL = session.URL
	outcome.SessionID = session.SessionID
	return outcome, nil
}

// PendingSwitch returns the switch waiting for confirmation, if any.
func (s *Service) PendingSwitch() *PendingSwitch {
	return s.session.Pending()
}

// ConfirmSwitch consumes the pending switch for planID and requests the
// checkout. An empty planID confirms whatever is pending.
func (s *Service) ConfirmSwitch(ctx context.Context, planID string) (*SubscribeOutcome, error) {
	release, ok := s.session.begin(OpCheckout)
	if !ok {
		return nil, s.fail(ctx, "confirm_switch", s.reject(domain.KindRequestInFlight, ""))
	}
	defer release()

	pending, ok := s.session.takePending(planID)
	if !ok {
		return nil, s.fail(ctx, "confirm_switch", s.reject(domain.KindNoPendingSwitch, ""))
	}
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "confirm_switch", err)
	}

	session, err := s.startCheckout(ctx, userID, pending.Target, pending.FromPlanID)
	if err != nil {
		return nil, s.fail(ctx, "confirm_switch", err)
	}
	current, _ := s.session.Snapshot()
	return &SubscribeOutcome{
		Decision:    domain.DecisionProceed,
		Plan:        pending.Target,
		Current:     current,
		CheckoutURL: session.URL,
		SessionID:   session.SessionID,
	}, nil
}

// AbandonSwitch discards the pending switch. It never touches the network.
func (s *Service) AbandonSwitch(ctx context.Context) bool {
	if !s.session.clearPending() {
		return false
	}
	s.count("abandon_switch", "ok")
	s.notify(ctx, LevelInfo, "", "Plan switch cancelled. Your current membership is unchanged.")
	return true
}

// startCheckout issues the single checkout request and hands the URL to
// the navigator.
func (s *Service) startCheckout(ctx context.Context, userID uuid.UUID, plan domain.Plan, switchFrom string) (*domain.CheckoutSession, error) {
	session, err := s.checkout.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		PlanID:           plan.ID,
		SuccessURL:       s.opts.SuccessURL,
		CancelURL:        s.opts.CancelURL,
		SwitchFromPlanID: switchFrom,
	})
	if err != nil {
		return nil, s.classify(err, domain.KindCheckoutCreationFailed)
	}
	// The payment may complete at any point from here, so the next
	// guard decision must come from the server.
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate membership cache", "error", err)
	}

	s.publish(ctx, userID, domain.NewCheckoutRequested(userID, plan.ID, session.SessionID, switchFrom))
	s.count("checkout", "ok")
	s.logger.InfoContext(ctx, "checkout session created",
		"plan_id", plan.ID, "session_id", session.SessionID, "switch_from", switchFrom)

	if err := s.navigator.Navigate(ctx, session.URL); err != nil {
		s.logger.WarnContext(ctx, "navigator rejected checkout url", "error", err)
	}
	s.notify(ctx, LevelInfo, "", "Continue to the payment page to complete your "+plan.Label()+" membership.")
	return session, nil
}

// CancelMembership asks the server to cancel, then re-reads the record.
// The displayed membership keeps its pre-request value until that read resolves.
func (s *Service) CancelMembership(ctx context.Context, atPeriodEnd bool) (*domain.Membership, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "cancel", err)
	}
	release, ok := s.session.begin(OpCancel)
	if !ok {
		return nil, s.fail(ctx, "cancel", s.reject(domain.KindRequestInFlight, ""))
	}
	defer release()

	if s.session.Pending() != nil {
		return nil, s.fail(ctx, "cancel", s.reject(domain.KindInvalidTransition,
			"Confirm or abandon the pending plan switch first."))
	}
	current, err := s.displayed(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "cancel", err)
	}
	if !current.CanCancel(atPeriodEnd) {
		return nil, s.fail(ctx, "cancel", s.reject(domain.KindInvalidTransition, cancelRefusal(current)))
	}

	if err := s.lifecycle.CancelMembership(ctx, atPeriodEnd); err != nil {
		return nil, s.fail(ctx, "cancel", s.classify(err, domain.KindUnknown))
	}
	s.publish(ctx, userID, domain.NewCancelRequested(userID, current.ID, atPeriodEnd))
	s.count("cancel", "ok")

	refreshed, err := s.refetch(ctx, userID)
	if err != nil {
		s.notify(ctx, LevelWarning, domain.KindOf(err), "Cancellation was submitted, but the latest membership status could not be loaded.")
		return nil, err
	}
	s.notify(ctx, LevelSuccess, "", cancelConfirmation(refreshed, atPeriodEnd))
	return refreshed, nil
}

// ReactivateMembership undoes a pending cancellation, then re-reads.
func (s *Service) ReactivateMembership(ctx context.Context) (*domain.Membership, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "reactivate", err)
	}
	release, ok := s.session.begin(OpReactivate)
	if !ok {
		return nil, s.fail(ctx, "reactivate", s.reject(domain.KindRequestInFlight, ""))
	}
	defer release()

	current, err := s.displayed(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "reactivate", err)
	}
	if !current.CanReactivate(s.opts.Now()) {
		return nil, s.fail(ctx, "reactivate", s.reject(domain.KindInvalidTransition,
			"Only a membership scheduled to cancel can be reactivated before its period ends."))
	}

	if err := s.lifecycle.ReactivateMembership(ctx); err != nil {
		return nil, s.fail(ctx, "reactivate", s.classify(err, domain.KindUnknown))
	}
	s.publish(ctx, userID, domain.NewReactivateRequested(userID, current.ID))
	s.count("reactivate", "ok")

	refreshed, err := s.refetch(ctx, userID)
	if err != nil {
		s.notify(ctx, LevelWarning, domain.KindOf(err), "Reactivation was submitted, but the latest membership status could not be loaded.")
		return nil, err
	}
	s.notify(ctx, LevelSuccess, "", "Your membership has been reactivated.")
	return refreshed, nil
}

// VerifyResult is the outcome of a successful verification.
type VerifyResult struct {
	Verification *domain.CheckoutVerification
	Membership   *domain.Membership
}

// VerifyCheckout confirms a checkout session after the payment redirect.
// Failures point the user at support and are never retried.
func (s *Service) VerifyCheckout(ctx context.Context, sessionID string) (*VerifyResult, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, s.fail(ctx, "verify", err)
	}
	release, ok := s.session.begin(OpVerify)
	if !ok {
		return nil, s.fail(ctx, "verify", s.reject(domain.KindRequestInFlight, ""))
	}
	defer release()

	v, err := s.checkout.VerifyCheckoutSession(ctx, sessionID)
	if err != nil {
		classified := s.classify(err, domain.KindVerificationFailed)
		if classified.Kind != domain.KindUnauthenticated {
			classified = domain.NewError(domain.KindVerificationFailed, s.messageFor(domain.KindVerificationFailed), err)
		}
		s.publish(ctx, userID, domain.NewCheckoutVerified(userID, sessionID, "error", false))
		return nil, s.fail(ctx, "verify", classified)
	}
	if !v.Confirmed {
		s.publish(ctx, userID, domain.NewCheckoutVerified(userID, sessionID, v.Status, false))
		return nil, s.fail(ctx, "verify", domain.NewError(domain.KindVerificationFailed,
			s.messageFor(domain.KindVerificationFailed), domain.ErrVerificationFailed))
	}
	s.publish(ctx, userID, domain.NewCheckoutVerified(userID, sessionID, v.Status, true))
	s.count("verify", "ok")

	refreshed, err := s.refetch(ctx, userID)
	if err != nil {
		s.notify(ctx, LevelWarning, domain.KindOf(err), "Payment confirmed, but the latest membership status could not be loaded.")
		return nil, err
	}
	s.notify(ctx, LevelSuccess, "", "Payment confirmed. Welcome aboard!")
	return &VerifyResult{Verification: v, Membership: refreshed}, nil
}

// EndSession signs the user out: the cached record is invalidated and the
// session state discarded.
func (s *Service) EndSession(ctx context.Context) {
	if userID, ok := s.session.UserID(); ok {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate membership cache", "error", err)
		}
	}
	s.session.End()
}

func (s *Service) requireUser() (uuid.UUID, error) {
	userID, ok := s.session.UserID()
	if !ok {
		return uuid.Nil, s.reject(domain.KindUnauthenticated, "")
	}
	return userID, nil
}

// displayed returns the membership a lifecycle command is checked against.
// The snapshot is display state only; the cache TTL bounds its age.
func (s *Service) displayed(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	return s.read(ctx, userID, true)
}

// refetch invalidates the cache before reading so the record comes from the server.
func (s *Service) refetch(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate membership cache", "error", err)
	}
	return s.read(ctx, userID, false)
}

func (s *Service) read(ctx context.Context, userID uuid.UUID, useCache bool) (*domain.Membership, error) {
	gen := s.session.currentGeneration()

	if useCache {
		m, ok, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "membership cache read failed", "error", err)
		case ok:
			s.metrics.Counter(observability.MetricCacheHits, 1)
			s.session.storeSnapshot(gen, m)
			return m, nil
		}
		s.metrics.Counter(observability.MetricCacheMisses, 1)
	}

	m, err := s.memberships.CurrentMembership(ctx)
	if err != nil {
		return nil, s.classify(err, domain.KindUnknown)
	}
	if err := s.cache.Set(ctx, userID, m, s.opts.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "membership cache write failed", "error", err)
	}
	s.session.storeSnapshot(gen, m)
	return m, nil
}

// fail notifies about err and returns it.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	de := s.classify(err, domain.KindUnknown)
	level := LevelError
	switch de.Kind {
	case domain.KindRequestInFlight, domain.KindNoPendingSwitch, domain.KindAlreadySubscribed:
		level = LevelWarning
	}
	s.notify(ctx, level, de.Kind, de.Message)
	s.metrics.Counter(observability.MetricCommandRejected, 1,
		observability.T("operation", op), observability.T("kind", string(de.Kind)))
	s.logger.WarnContext(ctx, "membership operation failed",
		observability.OperationKey, op, "kind", string(de.Kind), observability.ErrorKey, de.Error())
	return de
}

func (s *Service) notify(ctx context.Context, level Level, kind domain.ErrorKind, message string) {
	s.notifier.Notify(ctx, Notification{Level: level, Kind: kind, Message: message})
}

func (s *Service) count(op, result string) {
	s.metrics.Counter(observability.MetricCommands, 1,
		observability.T("operation", op), observability.T("result", result))
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, event interface {
	sharedDomain.DomainEvent
	SetMetadata(sharedDomain.EventMetadata)
}) {
	event.SetMetadata(sharedDomain.EventMetadata{
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		UserID:        userID,
	})
	if err := eventbus.PublishEvent(ctx, s.publisher, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish membership event",
			"routing_key", event.RoutingKey(), "error", err)
	}
}

// noCache is used when no MembershipCache is configured.
type noCache struct{}

func (noCache) Get(context.Context, uuid.UUID) (*domain.Membership, bool, error) {
	return nil, false, nil
}
func (noCache) Set(context.Context, uuid.UUID, *domain.Membership, time.Duration) error {
	return nil
}
func (noCache) Invalidate(context.Context, uuid.UUID) error { return nil }
