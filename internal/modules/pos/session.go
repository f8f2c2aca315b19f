package pos

import (
	"sync"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/cart"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/google/uuid"
)

// Session is one cashier's till: a cart and at most one payment in flight.
// The poll goroutine and HTTP requests both reach it, so every field is
// guarded by mu.
type Session struct {
	mu sync.Mutex

	cashier auth.Cashier
	cart    *cart.Cart
	intent  *payment.Intent
	poll    *payment.PollHandle
	// pollGen identifies the current poll loop so a stale callback is ignored.
	pollGen int
	// confirmed is set once a sale exists for intent.
	confirmed bool
	lastSale  *sale.Sale
	last      *Result
}

func (s *Session) state() *State {
	st := &State{
		CashierID: s.cashier.ID,
		Cart:      s.cart.Snapshot(),
		Intent:    s.intent,
		Polling:   s.poll != nil,
		LastSale:  s.lastSale,
		Last:      s.last,
	}
	return st
}

// holdsPayment reports whether the cart is pinned to an intent that may still
// turn into a sale.
func (s *Session) holdsPayment() bool {
	if s.intent == nil || s.confirmed {
		return false
	}
	return s.intent.Status != payment.StatusRejected
}

// stopPolling cancels the loop without waiting for it. Safe under mu: the
// callback re-checks pollGen before touching the session.
func (s *Session) stopPolling() {
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
	s.pollGen++
}

func (s *Session) resetPayment() {
	s.stopPolling()
	s.intent = nil
	s.confirmed = false
}

// Sessions is the registry of open tills keyed by cashier.
type Sessions struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Session
	lookup cart.ProductLookup
}

func NewSessions(lookup cart.ProductLookup) *Sessions {
	return &Sessions{byID: map[uuid.UUID]*Session{}, lookup: lookup}
}

// Begin returns the cashier's session, creating it on first sign-in.
func (r *Sessions) Begin(c auth.Cashier) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[c.ID]; ok {
		return s
	}
	s := &Session{cashier: c, cart: cart.New(r.lookup)}
	r.byID[c.ID] = s
	return s
}

// End tears the session down: polling stops, cart and intent are dropped.
func (r *Sessions) End(cashierID uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.byID[cashierID]
	delete(r.byID, cashierID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.resetPayment()
	s.cart.Clear()
	s.mu.Unlock()
	return true
}

func (r *Sessions) Get(cashierID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[cashierID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "no till session, sign in again")
	}
	return s, nil
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
