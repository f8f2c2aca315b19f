package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("product not found")

// Repository defines the interface for product reads.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
}
