package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// ErrStaleStatus means the row was no longer in the expected status.
var ErrStaleStatus = errors.New("payment intent status changed concurrently")

// Repository defines data access for payment intents.
type Repository interface {
	Create(ctx context.Context, in *Intent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Intent, error)
	// UpdateStatus moves an intent from one status to another and fails with
	// ErrStaleStatus when the stored status is not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, rejectReason string) (*Intent, error)
	SaveTender(ctx context.Context, id uuid.UUID, t CashTender) (*Intent, error)
	// ClearTender forgets a recorded tender while the intent is still CREATED.
	ClearTender(ctx context.Context, id uuid.UUID) error
}
