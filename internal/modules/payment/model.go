package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method is how the customer settles the sale.
type Method string

const (
	MethodCash        Method = "CASH"
	MethodCard        Method = "CARD"
	MethodAsyncWallet Method = "ASYNC_WALLET"
)

// ParseMethod accepts the canonical names plus the legacy front-end labels.
func ParseMethod(raw string) (Method, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CASH", "EFECTIVO":
		return MethodCash, true
	case "CARD", "TARJETA":
		return MethodCard, true
	case "ASYNC_WALLET", "WALLET", "QR", "MERCADOPAGO":
		return MethodAsyncWallet, true
	}
	return "", false
}

// Status is the lifecycle of a payment intent.
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
)

func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// validTransitions defines allowed intent status transitions.
var validTransitions = map[Status][]Status{
	StatusCreated:          {StatusAwaitingApproval, StatusApproved, StatusRejected},
	StatusAwaitingApproval: {StatusApproved, StatusRejected},
	StatusApproved:         {},
	StatusRejected:         {},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Intent is one attempt to collect the amount of a sale.
type Intent struct {
	ID             uuid.UUID        `json:"id"`
	Amount         decimal.Decimal  `json:"amount"`
	Method         Method           `json:"method"`
	Status         Status           `json:"status"`
	ProviderRef    string           `json:"provider_ref,omitempty"`
	QRPayload      string           `json:"qr_payload,omitempty"`
	AmountReceived *decimal.Decimal `json:"amount_received,omitempty"`
	Change         *decimal.Decimal `json:"change,omitempty"`
	RejectReason   string           `json:"reject_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CashTender is the counted-amount step of a cash payment.
type CashTender struct {
	Total    decimal.Decimal `json:"total"`
	Received decimal.Decimal `json:"received"`
	Change   decimal.Decimal `json:"change"`
}

// ── Gateway DTOs ─────────────────────────────────────────────────────────────

// CreateResponse is what a gateway answers when a payment is created.
type CreateResponse struct {
	ProviderRef    string
	ProviderStatus string
	QRPayload      string
	Message        string
}
