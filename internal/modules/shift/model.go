package shift

import (
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a cash shift.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// validTransitions defines the only legal move. A closed shift is immutable.
var validTransitions = map[Status][]Status{
	StatusOpen:   {StatusClosed},
	StatusClosed: {},
}

func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Shift is one cashier's working period with a cash drawer.
type Shift struct {
	ID           uuid.UUID        `json:"id"`
	CashierID    uuid.UUID        `json:"cashier_id"`
	CashierName  string           `json:"cashier_name,omitempty"`
	OpenedAt     time.Time        `json:"opened_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	OpeningFloat decimal.Decimal  `json:"opening_float"`
	CountedCash  *decimal.Decimal `json:"counted_cash,omitempty"`
	Status       Status           `json:"status"`
}

// Summary is the cash reconciliation of a shift over [From, To).
// CountedCash and Variance are nil until cash has been counted.
type Summary struct {
	ShiftID        uuid.UUID                          `json:"shift_id"`
	CashierID      uuid.UUID                          `json:"cashier_id"`
	From           time.Time                          `json:"from"`
	To             time.Time                          `json:"to"`
	OpeningFloat   decimal.Decimal                    `json:"opening_float"`
	TotalsByMethod map[payment.Method]decimal.Decimal `json:"totals_by_method"`
	CashSales      decimal.Decimal                    `json:"cash_sales"`
	ExpectedCash   decimal.Decimal                    `json:"expected_cash"`
	CountedCash    *decimal.Decimal                   `json:"counted_cash,omitempty"`
	Variance       *decimal.Decimal                   `json:"variance,omitempty"`
	Balanced       bool                               `json:"balanced"`
	SalesCount     int                                `json:"sales_count"`
	VoidedCount    int                                `json:"voided_count"`
}

// Reconcile computes expected = float + cash sales and variance = counted - expected.
func Reconcile(s *Shift, totals *sale.Totals, counted *decimal.Decimal, from, to time.Time) *Summary {
	sum := &Summary{
		ShiftID:        s.ID,
		CashierID:      s.CashierID,
		From:           from,
		To:             to,
		OpeningFloat:   s.OpeningFloat,
		TotalsByMethod: totals.ByMethod,
		CashSales:      totals.Cash(),
		ExpectedCash:   s.OpeningFloat.Add(totals.Cash()),
		SalesCount:     totals.Count,
		VoidedCount:    totals.VoidedCount,
	}
	if counted != nil {
		c := *counted
		v := c.Sub(sum.ExpectedCash)
		sum.CountedCash = &c
		sum.Variance = &v
		sum.Balanced = v.IsZero()
	}
	return sum
}

// ── Request DTOs ─────────────────────────────────────────────────────────────

type OpenRequest struct {
	OpeningFloat *decimal.Decimal `json:"opening_float" validate:"required"`
}

type CloseRequest struct {
	CountedCash *decimal.Decimal `json:"counted_cash" validate:"required"`
}

// Filter narrows shift listings. Zero values mean no restriction.
type Filter struct {
	CashierID *uuid.UUID
	Status    Status
	Limit     int
}
