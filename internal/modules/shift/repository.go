package shift

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrShiftNotFound = errors.New("shift not found")
	// ErrAlreadyOpen is returned by Create when the cashier already has an open shift.
	ErrAlreadyOpen = errors.New("cashier already has an open shift")
	// ErrNotOpen is returned by Close when the shift was already closed.
	ErrNotOpen = errors.New("shift is not open")
)

// Repository defines the data access interface for shifts.
type Repository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	// GetOpen returns ErrShiftNotFound when the cashier has no open shift.
	GetOpen(ctx context.Context, cashierID uuid.UUID) (*Shift, error)
	Close(ctx context.Context, id uuid.UUID, counted decimal.Decimal, at time.Time) (*Shift, error)
	List(ctx context.Context, f Filter) ([]*Shift, error)
}
