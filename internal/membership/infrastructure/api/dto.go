package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
)

// flexID decodes identifiers the backend sends either as strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type planDTO struct {
	ID           flexID          `json:"id"`
	Name         string          `json:"name"`
	Tier         string          `json:"tier"`
	BillingCycle string          `json:"billing_cycle"`
	Amount       json.RawMessage `json:"amount"`
	Currency     string          `json:"currency"`
	Benefits     []string        `json:"benefits"`
	IsActive     *bool           `json:"is_active"`
}

// plansEnvelope is the paginated form of the plan listing.
type plansEnvelope struct {
	Results []planDTO `json:"results"`
}

func (d planDTO) toDomain() (domain.Plan, error) {
	tier, err := domain.ParseTier(d.Tier)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan %s: %w", d.ID, err)
	}
	cycle, err := domain.ParseBillingCycle(d.BillingCycle)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan %s: %w", d.ID, err)
	}
	amount, err := domain.ParseAmount(d.Amount, d.Currency)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan %s: %w", d.ID, err)
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	return domain.Plan{
		ID:           string(d.ID),
		Name:         d.Name,
		Tier:         tier,
		BillingCycle: cycle,
		Amount:       amount,
		Benefits:     d.Benefits,
		IsActive:     active,
	}, nil
}

// decodePlans accepts a bare array or a {"results": [...]} page.
func decodePlans(body []byte) ([]domain.Plan, error) {
	body = bytes.TrimSpace(body)
	var dtos []planDTO
	if len(body) > 0 && body[0] == '{' {
		var env plansEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode plans: %w", err)
		}
		dtos = env.Results
	} else if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	plans := make([]domain.Plan, 0, len(dtos))
	for _, d := range dtos {
		p, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

type membershipDTO struct {
	ID                 flexID          `json:"id"`
	UserID             string          `json:"user_id"`
	PlanID             flexID          `json:"membership_plan_id"`
	Plan               json.RawMessage `json:"membership_plan"`
	Status             string          `json:"status"`
	CurrentPeriodStart string          `json:"current_period_start"`
	CurrentPeriodEnd   string          `json:"current_period_end"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	CancelledAt        string          `json:"cancelled_at"`
}

// planID prefers membership_plan_id and falls back to membership_plan,
// which some endpoints send as an id and others as a nested plan object.
func (d membershipDTO) planID() (string, error) {
	if d.PlanID != "" {
		return string(d.PlanID), nil
	}
	raw := bytes.TrimSpace(d.Plan)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '{' {
		var nested struct {
			ID flexID `json:"id"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return "", err
		}
		return string(nested.ID), nil
	}
	var id flexID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", err
	}
	return string(id), nil
}

func (d membershipDTO) toDomain() (*domain.Membership, error) {
	planID, err := d.planID()
	if err != nil {
		return nil, fmt.Errorf("membership plan: %w", err)
	}
	start, err := parseTime(d.CurrentPeriodStart)
	if err != nil {
		return nil, fmt.Errorf("current_period_start: %w", err)
	}
	end, err := parseTime(d.CurrentPeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("current_period_end: %w", err)
	}
	m := &domain.Membership{
		ID:                 string(d.ID),
		PlanID:             planID,
		Status:             domain.MembershipStatus(strings.ToLower(d.Status)),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		CancelAtPeriodEnd:  d.CancelAtPeriodEnd,
	}
	if uid, err := uuid.Parse(d.UserID); err == nil {
		m.UserID = uid
	}
	if d.CancelledAt != "" {
		at, err := parseTime(d.CancelledAt)
		if err != nil {
			return nil, fmt.Errorf("cancelled_at: %w", err)
		}
		m.CancelledAt = &at
	}
	return m, nil
}

// decodeMembership returns nil for an empty body or JSON null.
func decodeMembership(body []byte) (*domain.Membership, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	var dto membershipDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decode membership: %w", err)
	}
	if dto.ID == "" && dto.Status == "" {
		return nil, nil
	}
	return dto.toDomain()
}

type checkoutRequestDTO struct {
	PlanID     string            `json:"plan_id"`
	SuccessURL string            `json:"success_url,omitempty"`
	CancelURL  string            `json:"cancel_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type checkoutSessionDTO struct {
	URL         string `json:"url"`
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
	ID          string `json:"id"`
}

type verificationDTO struct {
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Membership    json.RawMessage `json:"membership"`
}

type cancelRequestDTO struct {
	CancelAtPeriodEnd bool `json:"cancel_at_period_end"`
}

type errorDTO struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// parseTime accepts RFC3339 timestamps with or without fractional seconds
// and bare dates. Empty input yields the zero time.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
