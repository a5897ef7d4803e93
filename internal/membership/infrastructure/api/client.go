// Package api is the HTTP client for the donation platform's membership
// and payment endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
)

const (
	pathPlans           = "/membership-plans"
	pathUserMembership  = "/user-membership"
	pathCheckoutSession = "/payments/checkout-session"
	pathCancel          = "/memberships/cancel"
	pathReactivate      = "/memberships/reactivate"

	maxBodyBytes = 1 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// Token returns the current access token. An empty token sends the
	// request unauthenticated.
	Token     func() string
	Transport http.RoundTripper
	Metrics   observability.Metrics
	Logger    *slog.Logger
}

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	metrics observability.Metrics
	logger  *slog.Logger
}

type response struct {
	status int
	body   []byte
}

// NewClient creates an API client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NoopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &bearerTransport{base: opts.Transport, token: opts.Token},
		},
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}

	failures := opts.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "membership-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListPlans implements domain.Catalog.
func (c *Client) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	resp, err := c.do(ctx, "plans", http.MethodGet, pathPlans, nil)
	if err != nil {
		return nil, err
	}
	return decodePlans(resp.body)
}

// CurrentMembership implements domain.MembershipReader.
func (c *Client) CurrentMembership(ctx context.Context) (*domain.Membership, error) {
	resp, err := c.do(ctx, "user_membership", http.MethodGet, pathUserMembership, nil)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if resp.status == http.StatusNoContent {
		return nil, nil
	}
	return decodeMembership(resp.body)
}

// CreateCheckoutSession implements domain.CheckoutGateway.
func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	body := checkoutRequestDTO{
		PlanID:     req.PlanID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	if req.SwitchFromPlanID != "" {
		body.Metadata = map[string]string{"switch_from_plan_id": req.SwitchFromPlanID}
	}

	resp, err := c.do(ctx, "checkout_create", http.MethodPost, pathCheckoutSession, body)
	if err != nil {
		return nil, err
	}

	var dto checkoutSessionDTO
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, &dto); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
	}
	session := &domain.CheckoutSession{URL: dto.URL, SessionID: dto.SessionID}
	if session.URL == "" {
		session.URL = dto.CheckoutURL
	}
	if session.SessionID == "" {
		session.SessionID = dto.ID
	}
	if session.URL == "" {
		return nil, ErrMissingCheckoutURL
	}
	return session, nil
}

// VerifyCheckoutSession implements domain.CheckoutGateway.
func (c *Client) VerifyCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutVerification, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required: %w", domain.ErrVerificationFailed)
	}
	path := pathCheckoutSession + "/" + url.PathEscape(sessionID)
	resp, err := c.do(ctx, "checkout_verify", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var dto verificationDTO
	if err := json.Unmarshal(resp.body, &dto); err != nil {
		return nil, fmt.Errorf("decode checkout verification: %w", err)
	}
	membership, err := decodeMembership(dto.Membership)
	if err != nil {
		return nil, err
	}
	return &domain.CheckoutVerification{
		SessionID:     sessionID,
		Status:        dto.Status,
		PaymentStatus: dto.PaymentStatus,
		Confirmed:     checkoutConfirmed(dto.Status, dto.PaymentStatus),
		Membership:    membership,
	}, nil
}

// checkoutConfirmed treats a completed session as confirmed unless the
// processor reports the payment as still outstanding.
func checkoutConfirmed(status, paymentStatus string) bool {
	if !strings.EqualFold(status, "complete") && !strings.EqualFold(status, "completed") {
		return false
	}
	switch strings.ToLower(paymentStatus) {
	case "", "paid", "no_payment_required":
		return true
	default:
		return false
	}
}

// CancelMembership implements domain.LifecycleGateway.
func (c *Client) CancelMembership(ctx context.Context, atPeriodEnd bool) error {
	_, err := c.do(ctx, "cancel", http.MethodPost, pathCancel, cancelRequestDTO{CancelAtPeriodEnd: atPeriodEnd})
	return err
}

// ReactivateMembership implements domain.LifecycleGateway.
func (c *Client) ReactivateMembership(ctx context.Context) error {
	_, err := c.do(ctx, "reactivate", http.MethodPost, pathReactivate, struct{}{})
	return err
}

// Ping checks that the plan catalog endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, pathPlans, nil)
	return err
}

// do runs one request through the breaker. It never retries.
func (c *Client) do(ctx context.Context, endpoint, method, path string, payload any) (*response, error) {
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, payload)
	})

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.status)
	} else {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			status = strconv.Itoa(apiErr.StatusCode)
		}
	}
	c.metrics.Counter(observability.MetricAPIRequests, 1,
		observability.T("endpoint", endpoint), observability.T("status", status))
	c.metrics.Timing(observability.MetricAPIRequestDuration, time.Since(start),
		observability.T("endpoint", endpoint))

	if err != nil {
		c.metrics.Counter(observability.MetricAPIErrors, 1, observability.T("endpoint", endpoint))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.Counter(observability.MetricBreakerOpen, 1, observability.T("endpoint", endpoint))
			return nil, ErrCircuitOpen
		}
		c.logger.DebugContext(ctx, "membership api call failed",
			"endpoint", endpoint, "status", status, "error", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set(observability.CorrelationHeader, corrID)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork,
			"Could not reach the membership service. Check your connection and try again.", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork,
			"The membership service response was interrupted. Please try again.", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, newError(httpResp.StatusCode, data)
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}

// bearerTransport attaches the current access token through oauth2.
type bearerTransport struct {
	base  http.RoundTripper
	token func() string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == nil {
		return t.base.RoundTrip(req)
	}
	tok := t.token()
	if tok == "" {
		return t.base.RoundTrip(req)
	}
	authed := &oauth2.Transport{
		Base:   t.base,
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}),
	}
	return authed.RoundTrip(req)
}
