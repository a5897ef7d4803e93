package application

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
)

// OpKind groups operations that share an in-flight guard.
type OpKind string

const (
	// OpCheckout covers both a direct subscribe and a confirmed switch.
	OpCheckout   OpKind = "checkout"
	OpCancel     OpKind = "cancel"
	OpReactivate OpKind = "reactivate"
	OpVerify     OpKind = "verify"
)

// PendingSwitch is a plan switch waiting for the user's explicit consent.
type PendingSwitch struct {
	FromPlanID string
	// FromPlan is set when the current plan is still in the catalog.
	FromPlan  *domain.Plan
	Target    domain.Plan
	Direction domain.SwitchDirection
	CreatedAt time.Time
}

// Session is the state container for one signed-in user: the access token,
// the displayed membership snapshot, the pending switch and the in-flight
// flags. It is created on sign-in and torn down on sign-out.
type Session struct {
	mu sync.Mutex

	started bool
	userID  uuid.UUID
	token   string

	snapshot    *domain.Membership
	hasSnapshot bool

	plans    []domain.Plan
	hasPlans bool

	pending  *PendingSwitch
	inFlight map[OpKind]bool

	// generation changes on every Start and End so reads that resolve
	// after a teardown are dropped.
	generation uint64
}

// NewSession returns a session that has not been started.
func NewSession() *Session {
	return &Session{inFlight: make(map[OpKind]bool)}
}

// Start binds the session to a user. Any previous state is discarded.
func (s *Session) Start(userID uuid.UUID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.started = true
	s.userID = userID
	s.token = token
}

// End discards everything the session holds.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.started = false
	s.userID = uuid.Nil
	s.token = ""
	s.snapshot = nil
	s.hasSnapshot = false
	s.plans = nil
	s.hasPlans = false
	s.pending = nil
	s.inFlight = make(map[OpKind]bool)
	s.generation++
}

// Active reports whether a user is signed in.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// UserID returns the signed-in user.
func (s *Session) UserID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.started
}

// AccessToken returns the bearer token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Snapshot returns a copy of the displayed membership and whether a read
// has resolved since the session started.
func (s *Session) Snapshot() (*domain.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone(), s.hasSnapshot
}

// Pending returns a copy of the pending switch, or nil.
func (s *Session) Pending() *PendingSwitch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// InFlight reports whether an operation of kind is outstanding.
func (s *Session) InFlight(kind OpKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[kind]
}

func (s *Session) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// storeSnapshot records a resolved read. It is the only way the displayed
// membership changes.
func (s *Session) storeSnapshot(gen uint64, m *domain.Membership) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.snapshot = m.Clone()
	s.hasSnapshot = true
	return true
}

// Plans returns the last catalog listing read in this session.
func (s *Session) Plans() ([]domain.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPlans {
		return nil, false
	}
	out := make([]domain.Plan, len(s.plans))
	copy(out, s.plans)
	return out, true
}

func (s *Session) storePlans(gen uint64, plans []domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.plans = make([]domain.Plan, len(plans))
	copy(s.plans, plans)
	s.hasPlans = true
}

// setPending records p unless the session has restarted since gen.
func (s *Session) setPending(gen uint64, p *PendingSwitch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.pending = p
	return true
}

// takePending removes and returns the pending switch if it targets planID.
// An empty planID matches any pending target.
func (s *Session) takePending(planID string) (*PendingSwitch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, false
	}
	if planID != "" && s.pending.Target.ID != planID {
		return nil, false
	}
	p := s.pending
	s.pending = nil
	return p, true
}

func (s *Session) clearPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.pending != nil
	s.pending = nil
	return had
}

// begin marks kind as in flight. The returned release is safe to call
// after End; it only clears the flag it set.
func (s *Session) begin(kind OpKind) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[kind] {
		return nil, false
	}
	s.inFlight[kind] = true
	gen := s.generation
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen {
			delete(s.inFlight, kind)
		}
	}, true
}
