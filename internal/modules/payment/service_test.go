package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/payment/paymenttest"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (payment.Service, *paymenttest.Repository, *paymenttest.Wallet) {
	repo := paymenttest.NewRepository()
	wallet := paymenttest.NewWallet()
	return payment.NewService(repo, paymenttest.Registry(wallet), logging.Discard()), repo, wallet
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateIntent_StatusPerMethod(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	cash, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCreated, cash.Status)
	assert.NotEmpty(t, cash.ProviderRef)

	card, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusAwaitingApproval, card.Status)

	wallet, err := svc.CreateIntent(ctx, dec("200"), payment.MethodAsyncWallet)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusAwaitingApproval, wallet.Status)
	assert.NotEmpty(t, wallet.QRPayload)
}

func TestCreateIntent_Validation(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	_, err := svc.CreateIntent(ctx, decimal.Zero, payment.MethodCash)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateIntent(ctx, dec("10"), payment.Method("CHEQUE"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateIntent_GatewayFailure(t *testing.T) {
	svc, _, wallet := setup()
	wallet.CreateErr = errors.New("dial tcp: connection refused")

	_, err := svc.CreateIntent(context.Background(), dec("200"), payment.MethodAsyncWallet)
	assert.True(t, apperr.Is(err, apperr.KindPaymentCreationFailed))
}

func TestCash_TwoPhase(t *testing.T) {
	cases := []struct {
		name     string
		received string
		change   string
		kind     apperr.Kind
	}{
		{name: "short", received: "199.99", kind: apperr.KindInsufficientPayment},
		{name: "exact", received: "200", change: "0"},
		{name: "plus 500", received: "700", change: "500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := setup()
			ctx := context.Background()
			in, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCash)
			require.NoError(t, err)

			tender, err := svc.PrepareCash(ctx, in.ID, dec(tc.received))
			if tc.kind != "" {
				assert.True(t, apperr.Is(err, tc.kind))
				stored, _ := svc.GetIntent(ctx, in.ID)
				assert.Equal(t, payment.StatusCreated, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tc.change).Equal(tender.Change), "change %s", tender.Change)

			// preparing never approves
			stored, err := svc.GetIntent(ctx, in.ID)
			require.NoError(t, err)
			assert.Equal(t, payment.StatusCreated, stored.Status)

			approved, err := svc.ConfirmCash(ctx, in.ID)
			require.NoError(t, err)
			assert.Equal(t, payment.StatusApproved, approved.Status)
		})
	}
}

func TestConfirmCash_RequiresTender(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCash)
	require.NoError(t, err)

	_, err = svc.ConfirmCash(ctx, in.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestPrepareCash_ShortReentryClearsTender(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCash)
	require.NoError(t, err)

	_, err = svc.PrepareCash(ctx, in.ID, dec("250"))
	require.NoError(t, err)
	_, err = svc.PrepareCash(ctx, in.ID, dec("150"))
	assert.True(t, apperr.Is(err, apperr.KindInsufficientPayment))

	stored, err := svc.GetIntent(ctx, in.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AmountReceived)
	assert.Nil(t, stored.Change)

	_, err = svc.ConfirmCash(ctx, in.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestPrepareCash_WrongMethod(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("200"), payment.MethodCard)
	require.NoError(t, err)

	_, err = svc.PrepareCash(ctx, in.ID, dec("300"))
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestConfirmCard(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("80"), payment.MethodCard)
	require.NoError(t, err)

	approved, err := svc.ConfirmCard(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, approved.Status)

	// confirming again is a no-op
	again, err := svc.ConfirmCard(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, again.Status)

	_, err = svc.Reject(ctx, in.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestRefresh_Wallet(t *testing.T) {
	svc, _, wallet := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("80"), payment.MethodAsyncWallet)
	require.NoError(t, err)

	pending, err := svc.Refresh(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusAwaitingApproval, pending.Status)

	wallet.Set(in.ProviderRef, "completado")
	approved, err := svc.Refresh(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, approved.Status)

	calls := wallet.Calls
	_, err = svc.Refresh(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, wallet.Calls, "terminal intents are not re-queried")
}

func TestRefresh_WalletRejected(t *testing.T) {
	svc, _, wallet := setup()
	ctx := context.Background()
	in, err := svc.CreateIntent(ctx, dec("80"), payment.MethodAsyncWallet)
	require.NoError(t, err)

	wallet.Set(in.ProviderRef, "rejected")
	rejected, err := svc.Refresh(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, rejected.Status)
	assert.Contains(t, rejected.RejectReason, "rejected")
}

func TestGetIntent_NotFound(t *testing.T) {
	svc, _, _ := setup()
	_, err := svc.GetIntent(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, payment.CanTransition(payment.StatusCreated, payment.StatusApproved))
	assert.True(t, payment.CanTransition(payment.StatusAwaitingApproval, payment.StatusRejected))
	assert.False(t, payment.CanTransition(payment.StatusApproved, payment.StatusRejected))
	assert.False(t, payment.CanTransition(payment.StatusRejected, payment.StatusApproved))
	assert.False(t, payment.CanTransition(payment.StatusAwaitingApproval, payment.StatusCreated))
}

func TestNormaliseStatus(t *testing.T) {
	assert.Equal(t, payment.StatusApproved, payment.NormaliseStatus("approved"))
	assert.Equal(t, payment.StatusApproved, payment.NormaliseStatus("Completado"))
	assert.Equal(t, payment.StatusRejected, payment.NormaliseStatus("expired"))
	assert.Equal(t, payment.StatusAwaitingApproval, payment.NormaliseStatus("in_process"))
	assert.Equal(t, payment.StatusAwaitingApproval, payment.NormaliseStatus(""))
}

func TestParseMethod(t *testing.T) {
	m, ok := payment.ParseMethod("efectivo")
	assert.True(t, ok)
	assert.Equal(t, payment.MethodCash, m)

	m, ok = payment.ParseMethod("QR")
	assert.True(t, ok)
	assert.Equal(t, payment.MethodAsyncWallet, m)

	_, ok = payment.ParseMethod("cheque")
	assert.False(t, ok)
}
