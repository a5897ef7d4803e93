// Package apitest provides an in-memory platform API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// CheckoutCall records one checkout-session request.
type CheckoutCall struct {
	PlanID     string
	SwitchFrom string
}

// Platform is a stateful stand-in for the membership endpoints of the
// platform API. Cancel, reactivate and verify change its membership the
// way the real backend does.
type Platform struct {
	server *httptest.Server

	mu         sync.Mutex
	plans      []map[string]any
	membership map[string]any
	checkouts  []CheckoutCall
	cancels    []bool
	reactivate int
	requests   int

	verifyStatus  string
	verifyPayment string
}

// NewPlatform starts a platform server closed at test cleanup.
func NewPlatform(t testing.TB) *Platform {
	t.Helper()
	p := &Platform{
		plans: []map[string]any{
			{"id": "bronze-monthly", "name": "Bronze", "tier": "bronze", "billing_cycle": "monthly", "amount": "10.00", "currency": "USD", "benefits": []string{"Newsletter"}},
			{"id": "gold-monthly", "name": "Gold", "tier": "gold", "billing_cycle": "monthly", "amount": "25.00", "currency": "USD", "benefits": []string{"Newsletter", "Events"}},
			{"id": "gold-annual", "name": "Gold", "tier": "gold", "billing_cycle": "annual", "amount": 250, "currency": "USD"},
			{"id": "silver-legacy", "name": "Silver", "tier": "silver", "billing_cycle": "monthly", "amount": "5.00", "currency": "USD", "is_active": false},
		},
		verifyStatus:  "complete",
		verifyPayment: "paid",
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

// URL is the API base URL, including the /api prefix.
func (p *Platform) URL() string {
	return p.server.URL + "/api"
}

// SetMembership installs the user's membership record.
func (p *Platform) SetMembership(planID, status string, cancelAtPeriodEnd bool, periodEnd time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.membership = map[string]any{
		"id":                   "m-1",
		"membership_plan_id":   planID,
		"status":               status,
		"current_period_start": periodEnd.AddDate(0, -1, 0).Format(time.RFC3339),
		"current_period_end":   periodEnd.Format(time.RFC3339),
		"cancel_at_period_end": cancelAtPeriodEnd,
	}
}

// SetVerification controls the next checkout verification answer.
func (p *Platform) SetVerification(status, paymentStatus string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyStatus, p.verifyPayment = status, paymentStatus
}

// Checkouts returns the checkout requests received so far.
func (p *Platform) Checkouts() []CheckoutCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CheckoutCall(nil), p.checkouts...)
}

// Cancels returns the cancel_at_period_end flag of each cancel request.
func (p *Platform) Cancels() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.cancels...)
}

// Reactivations counts reactivate requests.
func (p *Platform) Reactivations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reactivate
}

// Requests counts every request received.
func (p *Platform) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *Platform) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++

	path := strings.TrimPrefix(r.URL.Path, "/api")
	switch {
	case r.Method == http.MethodGet && path == "/membership-plans":
		writeJSON(w, http.StatusOK, p.plans)

	case r.Method == http.MethodGet && path == "/user-membership":
		if p.membership == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, p.membership)

	case r.Method == http.MethodPost && path == "/payments/checkout-session":
		var body struct {
			PlanID   string            `json:"plan_id"`
			Metadata map[string]string `json:"metadata"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		p.checkouts = append(p.checkouts, CheckoutCall{PlanID: body.PlanID, SwitchFrom: body.Metadata["switch_from_plan_id"]})
		id := fmt.Sprintf("cs_%d", len(p.checkouts))
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://pay.example/" + id, "session_id": id})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/payments/checkout-session/"):
		resp := map[string]any{"status": p.verifyStatus, "payment_status": p.verifyPayment}
		if p.verifyStatus == "complete" && len(p.checkouts) > 0 {
			last := p.checkouts[len(p.checkouts)-1]
			p.membership = map[string]any{
				"id":                   "m-2",
				"membership_plan_id":   last.PlanID,
				"status":               "active",
				"current_period_end":   time.Now().AddDate(0, 1, 0).UTC().Format(time.RFC3339),
				"cancel_at_period_end": false,
			}
			resp["membership"] = p.membership
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodPost && path == "/memberships/cancel":
		var body struct {
			CancelAtPeriodEnd bool `json:"cancel_at_period_end"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		if p.membership == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No active membership."})
			return
		}
		p.cancels = append(p.cancels, body.CancelAtPeriodEnd)
		if body.CancelAtPeriodEnd {
			p.membership["cancel_at_period_end"] = true
		} else {
			p.membership["status"] = "cancelled"
			p.membership["cancelled_at"] = time.Now().UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})

	case r.Method == http.MethodPost && path == "/memberships/reactivate":
		p.reactivate++
		if p.membership != nil {
			p.membership["cancel_at_period_end"] = false
		}
		writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(r.Body)
	if err == nil && len(data) > 0 {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
