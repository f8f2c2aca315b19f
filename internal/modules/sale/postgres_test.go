package sale

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/platform/database/dbtest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	coffeeID = "6f1c2a4e-0000-4000-8000-000000000001"
	teaID    = "6f1c2a4e-0000-4000-8000-000000000002"
)

func stockOf(t *testing.T, db *sql.DB, id string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT stock FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func newSale(cashier uuid.UUID, paymentID string, total string, items ...LineItem) *Sale {
	return &Sale{
		ID:        uuid.New(),
		CashierID: cashier,
		PaymentID: uuid.MustParse(paymentID),
		Items:     items,
		Total:     decimal.RequireFromString(total),
		Method:    payment.MethodCash,
	}
}

func item(id, name, price string, qty int) LineItem {
	return LineItem{ProductID: uuid.MustParse(id), ProductName: name, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestPostgresRepository_Register(t *testing.T) {
	db := dbtest.Start(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	cashier := uuid.New()

	dbtest.SeedProduct(t, db, coffeeID, "Coffee", "7790001", "100.00", 10)
	dbtest.SeedProduct(t, db, teaID, "Tea", "7790002", "50.00", 1)

	pay1 := uuid.NewString()
	dbtest.SeedApprovedIntent(t, db, pay1, "250.00", "CASH")
	stored, created, err := repo.Register(ctx, newSale(cashier, pay1, "250", item(coffeeID, "Coffee", "100", 2), item(teaID, "Tea", "50", 1)))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 8, stockOf(t, db, coffeeID))
	assert.Equal(t, 0, stockOf(t, db, teaID))

	again, created, err := repo.Register(ctx, newSale(cashier, pay1, "250", item(coffeeID, "Coffee", "100", 2)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)
	assert.Len(t, again.Items, 2)
	assert.Equal(t, 8, stockOf(t, db, coffeeID))

	pay2 := uuid.NewString()
	dbtest.SeedApprovedIntent(t, db, pay2, "150.00", "CASH")
	_, _, err = repo.Register(ctx, newSale(cashier, pay2, "150", item(coffeeID, "Coffee", "100", 1), item(teaID, "Tea", "50", 1)))
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, uuid.MustParse(teaID), stockErr.ProductID)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 8, stockOf(t, db, coffeeID), "a short line must not decrement the others")
	_, err = repo.(*postgresRepo).getByPaymentID(ctx, uuid.MustParse(pay2))
	assert.ErrorIs(t, err, ErrSaleNotFound)

	from := stored.CreatedAt.Add(-time.Minute)
	to := stored.CreatedAt.Add(time.Minute)
	totals, err := repo.TotalsByMethod(ctx, cashier, from, to)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(totals.Cash()))
	assert.Equal(t, 1, totals.Count)

	voided, err := repo.Void(ctx, stored.ID, "wrong customer", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusVoided, voided.Status)
	assert.Equal(t, 10, stockOf(t, db, coffeeID))
	assert.Equal(t, 1, stockOf(t, db, teaID))

	_, err = repo.Void(ctx, stored.ID, "twice", time.Now())
	assert.ErrorIs(t, err, ErrAlreadyVoided)

	totals, err = repo.TotalsByMethod(ctx, cashier, from, to)
	require.NoError(t, err)
	assert.True(t, totals.Cash().IsZero())
	assert.Equal(t, 1, totals.VoidedCount)

	sold, err := repo.QuantitiesSold(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, sold)

	list, err := repo.List(ctx, Filter{CashierID: &cashier, Status: StatusVoided})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "wrong customer", list[0].VoidReason)
}
