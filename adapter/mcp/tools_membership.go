package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/donora/adapter/cli"
	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/felixgeelhaar/mcp-go"
)

var errNotConfigured = errors.New("membership tools require a configured platform API connection")

type plansInput struct {
	Tier            string `json:"tier,omitempty"`          // bronze, silver, gold, platinum
	BillingCycle    string `json:"billing_cycle,omitempty"` // monthly, annual
	IncludeInactive bool   `json:"include_inactive,omitempty"`
}

type statusInput struct {
	Refresh bool `json:"refresh,omitempty"`
}

type subscribeInput struct {
	PlanID string `json:"plan_id" jsonschema:"required"`
}

type confirmSwitchInput struct {
	PlanID string `json:"plan_id,omitempty"`
}

type cancelInput struct {
	Immediately bool `json:"immediately,omitempty"`
}

type verifyInput struct {
	SessionID string `json:"session_id" jsonschema:"required"`
}

type plansResult struct {
	Plans []planView `json:"plans"`
}

type membershipResult struct {
	Membership    *membershipView              `json:"membership"`
	Pending       *pendingView                 `json:"pending_switch,omitempty"`
	Notifications []membershipApp.Notification `json:"notifications,omitempty"`
}

type subscribeResult struct {
	Decision      string                       `json:"decision"`
	Plan          planView                     `json:"plan"`
	Current       *membershipView              `json:"current,omitempty"`
	Pending       *pendingView                 `json:"pending_switch,omitempty"`
	CheckoutURL   string                       `json:"checkout_url,omitempty"`
	SessionID     string                       `json:"session_id,omitempty"`
	Notifications []membershipApp.Notification `json:"notifications,omitempty"`
}

type abandonResult struct {
	Abandoned     bool                         `json:"abandoned"`
	Notifications []membershipApp.Notification `json:"notifications,omitempty"`
}

// membershipTools backs the membership.* tools. The server owns a single
// session, so a pending switch survives between tool calls.
type membershipTools struct {
	app *cli.App
}

func registerMembershipTools(srv *mcp.Server, deps ToolDependencies) error {
	t := &membershipTools{app: deps.App}

	srv.Tool("membership.plans").
		Description("List membership plans, optionally filtered by tier or billing cycle").
		Handler(t.plans)

	srv.Tool("membership.status").
		Description("Show the current membership and any plan switch awaiting confirmation").
		Handler(t.status)

	srv.Tool("membership.subscribe").
		Description("Subscribe to a plan. Returns a checkout URL, or asks for confirmation when another plan is active").
		Handler(t.subscribe)

	srv.Tool("membership.pending").
		Description("Show the plan switch awaiting confirmation, if any").
		Handler(t.pending)

	srv.Tool("membership.confirm_switch").
		Description("Confirm the pending plan switch and start its checkout").
		Handler(t.confirmSwitch)

	srv.Tool("membership.abandon_switch").
		Description("Discard the pending plan switch without contacting the platform").
		Handler(t.abandonSwitch)

	srv.Tool("membership.cancel").
		Description("Cancel the membership at period end, or immediately").
		Handler(t.cancel)

	srv.Tool("membership.reactivate").
		Description("Undo a scheduled cancellation before the period ends").
		Handler(t.reactivate)

	srv.Tool("membership.verify").
		Description("Confirm a checkout session after payment").
		Handler(t.verify)

	return nil
}

func (t *membershipTools) service() (*membershipApp.Service, error) {
	if t.app == nil || t.app.MembershipService == nil {
		return nil, errNotConfigured
	}
	return t.app.MembershipService, nil
}

// begin tags a tool call the way the CLI root tags a command: a correlation id
// shared with outbound API calls and events, and a fresh request id.
func (t *membershipTools) begin(ctx context.Context) (context.Context, *membershipApp.Service, error) {
	svc, err := t.service()
	if err != nil {
		return ctx, nil, err
	}
	ctx = observability.WithCorrelationID(ctx, observability.CorrelationIDFromContext(ctx))
	ctx = observability.WithRequestID(ctx, "")
	return ctx, svc, nil
}

func (t *membershipTools) drain() []membershipApp.Notification {
	if t.app == nil || t.app.Inbox == nil {
		return nil
	}
	return t.app.Inbox.Drain()
}

// toolError drains the inbox and reports err with its kind so agents can
// branch on it.
func (t *membershipTools) toolError(err error) error {
	t.drain()
	return fmt.Errorf("%s: %s", domain.KindOf(err), domain.UserMessage(err))
}

func (t *membershipTools) plans(ctx context.Context, input plansInput) (*plansResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := parsePlanFilter(input.Tier, input.BillingCycle, input.IncludeInactive)
	if err != nil {
		return nil, err
	}
	plans, err := svc.Plans(ctx, filter)
	if err != nil {
		return nil, t.toolError(err)
	}
	t.drain()

	out := &plansResult{Plans: make([]planView, 0, len(plans))}
	for _, p := range plans {
		out.Plans = append(out.Plans, toPlanView(p))
	}
	return out, nil
}

func (t *membershipTools) status(ctx context.Context, input statusInput) (*membershipResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	read := svc.CurrentMembership
	if input.Refresh {
		read = svc.Refresh
	}
	m, err := read(ctx)
	if err != nil {
		return nil, t.toolError(err)
	}
	return &membershipResult{
		Membership:    toMembershipView(m),
		Pending:       toPendingView(svc.PendingSwitch()),
		Notifications: t.drain(),
	}, nil
}

func (t *membershipTools) subscribe(ctx context.Context, input subscribeInput) (*subscribeResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	planID := strings.TrimSpace(input.PlanID)
	if planID == "" {
		return nil, errors.New("plan_id is required")
	}
	outcome, err := svc.AttemptSubscribe(ctx, planID)
	if err != nil {
		return nil, t.toolError(err)
	}
	return t.outcome(outcome), nil
}

func (t *membershipTools) pending(_ context.Context, _ struct{}) (*pendingView, error) {
	svc, err := t.service()
	if err != nil {
		return nil, err
	}
	p := svc.PendingSwitch()
	if p == nil {
		return nil, errors.New(string(domain.KindNoPendingSwitch) + ": there is no plan switch waiting for confirmation")
	}
	return toPendingView(p), nil
}

func (t *membershipTools) confirmSwitch(ctx context.Context, input confirmSwitchInput) (*subscribeResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	outcome, err := svc.ConfirmSwitch(ctx, strings.TrimSpace(input.PlanID))
	if err != nil {
		return nil, t.toolError(err)
	}
	return t.outcome(outcome), nil
}

func (t *membershipTools) abandonSwitch(ctx context.Context, input struct{}) (*abandonResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	abandoned := svc.AbandonSwitch(ctx)
	return &abandonResult{Abandoned: abandoned, Notifications: t.drain()}, nil
}

func (t *membershipTools) cancel(ctx context.Context, input cancelInput) (*membershipResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	m, err := svc.CancelMembership(ctx, !input.Immediately)
	if err != nil {
		return nil, t.toolError(err)
	}
	return &membershipResult{Membership: toMembershipView(m), Notifications: t.drain()}, nil
}

func (t *membershipTools) reactivate(ctx context.Context, input struct{}) (*membershipResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	m, err := svc.ReactivateMembership(ctx)
	if err != nil {
		return nil, t.toolError(err)
	}
	return &membershipResult{Membership: toMembershipView(m), Notifications: t.drain()}, nil
}

func (t *membershipTools) verify(ctx context.Context, input verifyInput) (*membershipResult, error) {
	ctx, svc, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	result, err := svc.VerifyCheckout(ctx, strings.TrimSpace(input.SessionID))
	if err != nil {
		return nil, t.toolError(err)
	}
	return &membershipResult{Membership: toMembershipView(result.Membership), Notifications: t.drain()}, nil
}

func (t *membershipTools) outcome(o *membershipApp.SubscribeOutcome) *subscribeResult {
	return &subscribeResult{
		Decision:      string(o.Decision),
		Plan:          toPlanView(o.Plan),
		Current:       toMembershipView(o.Current),
		Pending:       toPendingView(o.Pending),
		CheckoutURL:   o.CheckoutURL,
		SessionID:     o.SessionID,
		Notifications: t.drain(),
	}
}
