package pos

import (
	"github.com/georgemunganga/printa-pos/internal/modules/cart"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is what the till shows after a payment step.
type Outcome string

const (
	OutcomeApproved         Outcome = "APPROVED"
	OutcomeAwaitingApproval Outcome = "AWAITING_APPROVAL"
	OutcomeRejected         Outcome = "REJECTED"
	OutcomeFailed           Outcome = "FAILED"
)

// Result is the single discriminated answer of every checkout step.
// Sale is set only when Outcome is APPROVED; Kind and Message only when FAILED.
type Result struct {
	Outcome  Outcome          `json:"outcome"`
	Intent   *payment.Intent  `json:"intent,omitempty"`
	Sale     *sale.Sale       `json:"sale,omitempty"`
	Change   *decimal.Decimal `json:"change,omitempty"`
	QRCode   string           `json:"qr_payload,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Kind     apperr.Kind      `json:"error_kind,omitempty"`
	Message  string           `json:"message,omitempty"`
	Retry    bool             `json:"retryable,omitempty"`
	Snapshot *cart.Snapshot   `json:"cart,omitempty"`
}

// PayParams carries method-specific input. AmountReceived is required for cash.
type PayParams struct {
	AmountReceived *decimal.Decimal
}

// State is a read-only view of a session.
type State struct {
	CashierID uuid.UUID       `json:"cashier_id"`
	Cart      cart.Snapshot   `json:"cart"`
	Intent    *payment.Intent `json:"intent,omitempty"`
	Polling   bool            `json:"polling"`
	LastSale  *sale.Sale      `json:"last_sale,omitempty"`
	Last      *Result         `json:"last_result,omitempty"`
}

// ── Request DTOs ─────────────────────────────────────────────────────────────

// AddItemRequest adds one unit either by scanned code or by a product picked from search.
type AddItemRequest struct {
	Code      string `json:"code" validate:"required_without=ProductID"`
	ProductID string `json:"product_id" validate:"omitempty,uuid"`
}

type SetQuantityRequest struct {
	Quantity float64 `json:"quantity"`
}

type PayRequest struct {
	Method         string           `json:"method" validate:"required"`
	AmountReceived *decimal.Decimal `json:"amount_received"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
