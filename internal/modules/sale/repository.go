package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSaleNotFound  = errors.New("sale not found")
	ErrAlreadyVoided = errors.New("sale already voided")
)

// StockError reports the first product that could not cover its quantity.
type StockError struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// Repository defines data access for sales.
type Repository interface {
	// Register atomically decrements stock and stores the sale. When a sale
	// already exists for the payment it is returned with created=false and
	// nothing changes.
	Register(ctx context.Context, s *Sale) (stored *Sale, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	// Void marks the sale voided and restocks its items in one transaction.
	Void(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Sale, error)
	List(ctx context.Context, f Filter) ([]*Sale, error)
	// TotalsByMethod sums sales of a cashier created in [from, to).
	TotalsByMethod(ctx context.Context, cashierID uuid.UUID, from, to time.Time) (*Totals, error)
	// QuantitiesSold sums non-voided item quantities per product in [from, to).
	QuantitiesSold(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error)
}
