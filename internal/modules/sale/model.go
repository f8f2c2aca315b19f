package sale

import (
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a registered sale.
type Status string

const (
	StatusRegistered Status = "REGISTERED"
	StatusVoided     Status = "VOIDED"
)

// LineItem is the immutable snapshot of one cart line at confirmation.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Barcode     string          `json:"barcode,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Sale is a confirmed sale. Voided sales are kept for audit.
type Sale struct {
	ID          uuid.UUID       `json:"id"`
	CashierID   uuid.UUID       `json:"cashier_id"`
	CashierName string          `json:"cashier_name,omitempty"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	Items       []LineItem      `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Method      payment.Method  `json:"method"`
	Status      Status          `json:"status"`
	VoidReason  string          `json:"void_reason,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ── Request/Response DTOs ─────────────────────────────────────────────────────

// ConfirmRequest turns an approved payment and the cart lines into a sale.
type ConfirmRequest struct {
	PaymentID   uuid.UUID
	CashierID   uuid.UUID
	CashierName string
	Items       []LineItem
	Total       decimal.Decimal
}

type VoidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Filter narrows sale listings. Zero values mean no restriction.
type Filter struct {
	CashierID   *uuid.UUID
	CashierName string
	From        time.Time
	To          time.Time
	Status      Status
	Limit       int
}

// Totals aggregates non-voided sales by payment method.
type Totals struct {
	ByMethod    map[payment.Method]decimal.Decimal `json:"by_method"`
	Count       int                                `json:"count"`
	VoidedCount int                                `json:"voided_count"`
}

func NewTotals() *Totals {
	return &Totals{ByMethod: map[payment.Method]decimal.Decimal{
		payment.MethodCash:        decimal.Zero,
		payment.MethodCard:        decimal.Zero,
		payment.MethodAsyncWallet: decimal.Zero,
	}}
}

func (t *Totals) Cash() decimal.Decimal { return t.ByMethod[payment.MethodCash] }

// Grand is the sum over every method.
func (t *Totals) Grand() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.ByMethod {
		sum = sum.Add(v)
	}
	return sum
}
