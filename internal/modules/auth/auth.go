package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cashier is the identity carried by a verified bearer token.
type Cashier struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// Roles carried in tokens. Admins supervise shifts, sales and stock.
const (
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

// HasRole reports whether c holds any of roles.
func (c *Cashier) HasRole(roles ...string) bool {
	if c == nil {
		return false
	}
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// Service defines the interface for token issuing and verification.
type Service interface {
	Issue(c Cashier, ttl time.Duration) (string, error)
	Verify(token string) (*Cashier, error)
}

type ctxKey struct{}

func WithCashier(ctx context.Context, c *Cashier) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CashierFromContext returns the cashier set by Middleware, or nil.
func CashierFromContext(ctx context.Context) *Cashier {
	c, _ := ctx.Value(ctxKey{}).(*Cashier)
	return c
}
