package shift

import (
	"context"
	"testing"
	"time"

	"github.com/georgemunganga/printa-pos/internal/platform/database/dbtest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_OneOpenShiftPerCashier(t *testing.T) {
	db := dbtest.Start(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	cashier := uuid.New()

	first := &Shift{ID: uuid.New(), CashierID: cashier, CashierName: "Ana", OpenedAt: time.Now().UTC(), OpeningFloat: decimal.NewFromInt(15000)}
	require.NoError(t, repo.Create(ctx, first))

	second := &Shift{ID: uuid.New(), CashierID: cashier, OpenedAt: time.Now().UTC(), OpeningFloat: decimal.Zero}
	assert.ErrorIs(t, repo.Create(ctx, second), ErrAlreadyOpen)

	open, err := repo.GetOpen(ctx, cashier)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)
	assert.Nil(t, open.CountedCash)

	closed, err := repo.Close(ctx, first.ID, decimal.NewFromInt(18700), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.CountedCash)
	assert.True(t, decimal.NewFromInt(18700).Equal(*closed.CountedCash))

	_, err = repo.Close(ctx, first.ID, decimal.NewFromInt(1), time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = repo.Close(ctx, uuid.New(), decimal.NewFromInt(1), time.Now().UTC())
	assert.ErrorIs(t, err, ErrShiftNotFound)

	_, err = repo.GetOpen(ctx, cashier)
	assert.ErrorIs(t, err, ErrShiftNotFound)
	require.NoError(t, repo.Create(ctx, second), "a closed shift frees the cashier")

	all, err := repo.List(ctx, Filter{CashierID: &cashier})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	onlyClosed, err := repo.List(ctx, Filter{CashierID: &cashier, Status: StatusClosed, Limit: 5})
	require.NoError(t, err)
	require.Len(t, onlyClosed, 1)
	assert.Equal(t, first.ID, onlyClosed[0].ID)
}
