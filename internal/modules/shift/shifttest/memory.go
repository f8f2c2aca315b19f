// Package shifttest provides an in-memory shift repository for tests.
package shifttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/shift"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository enforces one open shift per cashier like the partial unique index.
type Repository struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]*shift.Shift
	// Creates counts successful inserts.
	Creates int
}

func NewRepository() *Repository {
	return &Repository{shifts: map[uuid.UUID]*shift.Shift{}}
}

func (r *Repository) Create(_ context.Context, s *shift.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.shifts {
		if existing.CashierID == s.CashierID && existing.Status == shift.StatusOpen {
			return shift.ErrAlreadyOpen
		}
	}
	s.Status = shift.StatusOpen
	cp := *s
	r.shifts[s.ID] = &cp
	r.Creates++
	return nil
}

func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return nil, shift.ErrShiftNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) GetOpen(_ context.Context, cashierID uuid.UUID) (*shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shifts {
		if s.CashierID == cashierID && s.Status == shift.StatusOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, shift.ErrShiftNotFound
}

func (r *Repository) Close(_ context.Context, id uuid.UUID, counted decimal.Decimal, at time.Time) (*shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return nil, shift.ErrShiftNotFound
	}
	if s.Status != shift.StatusOpen {
		return nil, shift.ErrNotOpen
	}
	s.Status = shift.StatusClosed
	s.ClosedAt = &at
	s.CountedCash = &counted
	cp := *s
	return &cp, nil
}

func (r *Repository) List(_ context.Context, f shift.Filter) ([]*shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shift.Shift
	for _, s := range r.shifts {
		if f.CashierID != nil && s.CashierID != *f.CashierID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Put stores a shift as-is.
func (r *Repository) Put(s *shift.Shift) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.shifts[s.ID] = &cp
}
