package checkout

import (
	"context"
	"sync"
	"time"

	"checkout-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionTTL = 2 * time.Hour

// Session holds one user's checkout attempt. The cart and shipping
// selection are inputs fixed at creation (the cart itself lives on the
// client); State is the single tagged-union flow state, and AttemptKey
// is the idempotency token for order creation, rotated whenever the
// flow falls back to the shipping step.
type Session struct {
	ID       string
	UserID   int
	Cart     []models.CartLine
	Shipping *models.ShippingSelection
	Coupon   *models.Coupon
	Form     models.ShippingForm

	PaymentMethod string
	BillingType   string

	ExpiresAt time.Time

	mu         sync.Mutex
	state      models.CheckoutState
	attemptKey string
	inFlight   bool
	pollCancel context.CancelFunc
}

func newSession(userID int, cart []models.CartLine, shipping *models.ShippingSelection, coupon *models.Coupon) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Cart:       cart,
		Shipping:   shipping,
		Coupon:     coupon,
		ExpiresAt:  time.Now().Add(sessionTTL),
		state:      models.ShippingState(),
		attemptKey: uuid.NewString(),
	}
}

func (s *Session) State() models.CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) AttemptKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptKey
}

func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// tryBeginSubmit marks a saga as in flight. It refuses while another
// submission is outstanding (the server-side equivalent of disabling
// the checkout button) and once the flow has left the shipping and
// processing steps.
func (s *Session) tryBeginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	if s.state.Step != models.StepShipping {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Session) finishSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// setState replaces the flow state. Any scheduled poll is cancelled
// first so a stale callback cannot fire into the new state.
func (s *Session) setState(state models.CheckoutState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
}

func (s *Session) setStateLocked(state models.CheckoutState) {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.state = state
	if state.Step == models.StepShipping {
		// A fresh shipping step is a fresh attempt: the previous order
		// (if any) was compensated or abandoned, so order creation must
		// not be deduplicated against it.
		s.attemptKey = uuid.NewString()
	}
}

// transitionFrom applies the state only if the flow is still at the
// expected step. Late poll results use it so they cannot clobber a
// state the user has already moved past.
func (s *Session) transitionFrom(expected models.CheckoutStep, state models.CheckoutState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != expected {
		return false
	}
	s.setStateLocked(state)
	return true
}

// registerPollCancel attaches the watcher's cancel func to the session.
// Returns false when the flow already left the given step, in which
// case the watcher must not start.
func (s *Session) registerPollCancel(step models.CheckoutStep, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != step {
		return false
	}
	s.pollCancel = cancel
	return true
}

func (s *Session) clearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cart = nil
}

// CancelWatch stops any scheduled poll, e.g. when the user navigates
// away from the awaiting screen.
func (s *Session) CancelWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// SessionStore keeps live checkout sessions in memory. A lost session
// never strands an order, only a form.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (st *SessionStore) Create(userID int, cart []models.CartLine, shipping *models.ShippingSelection, coupon *models.Coupon) *Session {
	session := newSession(userID, cart, shipping, coupon)
	st.mu.Lock()
	st.sessions[session.ID] = session
	st.mu.Unlock()
	return session
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[id]
	return session, ok
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if session, ok := st.sessions[id]; ok {
		session.CancelWatch()
		delete(st.sessions, id)
	}
}

// SweepExpired drops expired sessions; run periodically from main.
func (st *SessionStore) SweepExpired(logger *zap.Logger) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, session := range st.sessions {
		if session.Expired() {
			session.CancelWatch()
			delete(st.sessions, id)
			logger.Info("Expired checkout session removed", zap.String("session_id", id))
		}
	}
}
