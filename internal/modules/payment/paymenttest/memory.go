// Package paymenttest provides in-memory payment doubles for tests.
package paymenttest

import (
	"context"
	"sync"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is a goroutine-safe in-memory payment.Repository.
type Repository struct {
	mu      sync.Mutex
	intents map[uuid.UUID]payment.Intent
}

func NewRepository() *Repository {
	return &Repository{intents: map[uuid.UUID]payment.Intent{}}
}

func (r *Repository) Create(_ context.Context, in *payment.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	in.CreatedAt, in.UpdatedAt = now, now
	r.intents[in.ID] = *in
	return nil
}

func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	return &in, nil
}

func (r *Repository) UpdateStatus(_ context.Context, id uuid.UUID, from, to payment.Status, reason string) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	if in.Status != from {
		return nil, payment.ErrStaleStatus
	}
	in.Status = to
	in.RejectReason = reason
	in.UpdatedAt = time.Now()
	r.intents[id] = in
	return &in, nil
}

func (r *Repository) SaveTender(_ context.Context, id uuid.UUID, t payment.CashTender) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	if !ok || in.Status != payment.StatusCreated {
		return nil, payment.ErrStaleStatus
	}
	received, change := t.Received, t.Change
	in.AmountReceived, in.Change = &received, &change
	r.intents[id] = in
	return &in, nil
}

func (r *Repository) ClearTender(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[id]
	if !ok || in.Status != payment.StatusCreated {
		return payment.ErrStaleStatus
	}
	in.AmountReceived, in.Change = nil, nil
	r.intents[id] = in
	return nil
}

// Put stores an intent as-is.
func (r *Repository) Put(in payment.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[in.ID] = in
}

// Wallet is a scriptable wallet gateway.
type Wallet struct {
	mu        sync.Mutex
	CreateErr error
	// CreateStatus is what the provider answers on creation; empty means pending.
	CreateStatus string
	Statuses     map[string]string
	Calls        int
}

func NewWallet() *Wallet { return &Wallet{Statuses: map[string]string{}} }

func (w *Wallet) CreatePayment(_ context.Context, intentID uuid.UUID, _ decimal.Decimal) (*payment.CreateResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.CreateErr != nil {
		return nil, w.CreateErr
	}
	status := w.CreateStatus
	if status == "" {
		status = "pending"
	}
	ref := "wallet-" + intentID.String()
	w.Statuses[ref] = status
	return &payment.CreateResponse{ProviderRef: ref, ProviderStatus: status, QRPayload: "qr:" + ref}, nil
}

func (w *Wallet) GetPaymentStatus(_ context.Context, ref string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls++
	return w.Statuses[ref], nil
}

// Set changes the status the provider reports for ref.
func (w *Wallet) Set(ref, status string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Statuses[ref] = status
}

// Registry returns till gateways for cash and card plus w for the wallet.
func Registry(w payment.Gateway) payment.GatewayRegistry {
	return payment.GatewayRegistry{
		payment.MethodCash:        payment.NewTillGateway(payment.MethodCash),
		payment.MethodCard:        payment.NewTillGateway(payment.MethodCard),
		payment.MethodAsyncWallet: w,
	}
}
