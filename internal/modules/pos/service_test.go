package pos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/payment/paymenttest"
	"github.com/georgemunganga/printa-pos/internal/modules/pos"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/sale/saletest"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/events"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     pos.Service
	store   *saletest.Store
	wallet  *paymenttest.Wallet
	events  *events.Recorder
	cashier auth.Cashier
	coffee  *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()
	base, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		store:   saletest.NewStore(),
		wallet:  paymenttest.NewWallet(),
		events:  events.NewRecorder(),
		cashier: auth.Cashier{ID: uuid.New(), Name: "Ana", Role: "cashier"},
	}
	f.coffee = f.store.AddProduct("Coffee", "7790001", dec("100"), 10)

	products := catalog.NewService(f.store.Catalog(), logger)
	payments := payment.NewService(paymenttest.NewRepository(), paymenttest.Registry(f.wallet), logger)
	sales := sale.NewService(f.store, payments, f.events, products, logger)
	poller := payment.NewPoller(payments, 5*time.Millisecond, logger)

	f.svc = pos.NewService(base, pos.NewSessions(products), products, payments, poller, sales, logger)
	f.svc.Begin(f.cashier)
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func (f *fixture) scan(t *testing.T, code string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := f.svc.AddByCode(context.Background(), f.cashier.ID, code)
		require.NoError(t, err)
	}
}

func (f *fixture) state(t *testing.T) *pos.State {
	t.Helper()
	st, err := f.svc.State(f.cashier.ID)
	require.NoError(t, err)
	return st
}

func TestCashSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 2)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("250"))})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome, res.Message)
	require.NotNil(t, res.Change)
	assert.Equal(t, "50", res.Change.String())

	res = f.svc.ConfirmPayment(ctx, f.cashier.ID)
	require.Equal(t, pos.OutcomeApproved, res.Outcome, res.Message)
	require.NotNil(t, res.Sale)
	assert.Equal(t, "200", res.Sale.Total.String())
	assert.Equal(t, payment.MethodCash, res.Sale.Method)
	assert.Equal(t, "50", res.Change.String())
	assert.Equal(t, 8, f.store.Stock(f.coffee.ID))

	st := f.state(t)
	assert.Zero(t, st.Cart.Count)
	assert.Nil(t, st.Intent)
	assert.Equal(t, res.Sale.ID, st.LastSale.ID)
	assert.Contains(t, f.events.Types(), events.SaleRegistered)

	// a double tap replays the sale instead of registering another one
	again := f.svc.ConfirmPayment(ctx, f.cashier.ID)
	assert.Equal(t, pos.OutcomeApproved, again.Outcome)
	assert.Equal(t, res.Sale.ID, again.Sale.ID)
	assert.Len(t, f.store.Sales(), 1)
}

func TestCashSale_ShortAmountKeepsIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 2)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("150"))})
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInsufficientPayment, res.Kind)
	assert.True(t, res.Retry)
	require.NotNil(t, res.Intent)
	first := res.Intent.ID

	res = f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("200"))})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome, res.Message)
	assert.Equal(t, first, res.Intent.ID, "the pending intent is reused")
	assert.True(t, res.Change.IsZero())
}

func TestCashSale_ShortReentryVoidsEarlierTender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 2)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("250"))})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome, res.Message)
	assert.Equal(t, "50", res.Change.String())

	res = f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("150"))})
	require.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInsufficientPayment, res.Kind)

	res = f.svc.ConfirmPayment(ctx, f.cashier.ID)
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInvalidState, res.Kind)
	assert.Empty(t, f.store.Sales())
	assert.Equal(t, 10, f.store.Stock(f.coffee.ID))

	res = f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("300"))})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome, res.Message)
	res = f.svc.ConfirmPayment(ctx, f.cashier.ID)
	require.Equal(t, pos.OutcomeApproved, res.Outcome, res.Message)
	assert.Equal(t, "100", res.Change.String())
	assert.Len(t, f.store.Sales(), 1)
}

func TestCashSale_AmountRequired(t *testing.T) {
	f := newFixture(t)
	f.scan(t, "7790001", 1)

	res := f.svc.Pay(context.Background(), f.cashier.ID, payment.MethodCash, pos.PayParams{})
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindValidation, res.Kind)
}

func TestPay_EmptyCart(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Pay(context.Background(), f.cashier.ID, payment.MethodCard, pos.PayParams{})
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInvalidState, res.Kind)
	assert.Nil(t, res.Intent)
}

func TestPay_WithoutSession(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Pay(context.Background(), uuid.New(), payment.MethodCard, pos.PayParams{})
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindNotFound, res.Kind)
}

func TestPay_GatewayDown(t *testing.T) {
	f := newFixture(t)
	f.scan(t, "7790001", 1)
	f.wallet.CreateErr = errors.New("connection refused")

	res := f.svc.Pay(context.Background(), f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindPaymentCreationFailed, res.Kind)
	assert.True(t, res.Retry)

	// nothing is pinned, the cart stays editable
	_, err := f.svc.AddByCode(context.Background(), f.cashier.ID, "7790001")
	assert.NoError(t, err)
}

func TestCardPayment_LocksCartUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodCard, pos.PayParams{})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)
	assert.Equal(t, payment.CardTerminalAdvice, res.Message)

	_, err := f.svc.AddByCode(ctx, f.cashier.ID, "7790001")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	other := f.svc.Pay(ctx, f.cashier.ID, payment.MethodCash, pos.PayParams{AmountReceived: ptr(dec("100"))})
	assert.Equal(t, pos.OutcomeFailed, other.Outcome)
	assert.Equal(t, apperr.KindInvalidState, other.Kind)

	cancelled := f.svc.CancelPayment(ctx, f.cashier.ID, "customer changed their mind")
	assert.Equal(t, pos.OutcomeRejected, cancelled.Outcome)
	assert.Equal(t, "customer changed their mind", cancelled.Reason)

	snap, err := f.svc.AddByCode(ctx, f.cashier.ID, "7790001")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, 10, f.store.Stock(f.coffee.ID))
}

func TestCardPayment_Confirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 3)

	require.Equal(t, pos.OutcomeAwaitingApproval, f.svc.Pay(ctx, f.cashier.ID, payment.MethodCard, pos.PayParams{}).Outcome)
	res := f.svc.ConfirmPayment(ctx, f.cashier.ID)
	require.Equal(t, pos.OutcomeApproved, res.Outcome, res.Message)
	assert.Equal(t, "300", res.Sale.Total.String())
	assert.Equal(t, 7, f.store.Stock(f.coffee.ID))
}

func TestWalletPayment_ApprovedByPoller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 2)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome, res.Message)
	assert.NotEmpty(t, res.QRCode)
	assert.True(t, f.state(t).Polling)

	f.wallet.Set(res.Intent.ProviderRef, "approved")

	require.Eventually(t, func() bool {
		return f.state(t).LastSale != nil
	}, 2*time.Second, 10*time.Millisecond)

	st := f.state(t)
	assert.False(t, st.Polling)
	assert.Zero(t, st.Cart.Count)
	assert.Equal(t, pos.OutcomeApproved, st.Last.Outcome)
	assert.Equal(t, 8, f.store.Stock(f.coffee.ID))
}

func TestWalletPayment_RejectedKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)
	f.wallet.Set(res.Intent.ProviderRef, "rejected")

	require.Eventually(t, func() bool {
		last := f.state(t).Last
		return last != nil && last.Outcome == pos.OutcomeRejected
	}, 2*time.Second, 10*time.Millisecond)

	st := f.state(t)
	assert.Equal(t, 1, st.Cart.Count)
	assert.Nil(t, st.LastSale)
	assert.Contains(t, st.Last.Reason, "rejected")

	// a rejected payment releases the cart
	_, err := f.svc.AddByCode(ctx, f.cashier.ID, "7790001")
	assert.NoError(t, err)
}

func TestWalletPayment_RejectedOnCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)
	f.wallet.CreateStatus = "rejected"

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	require.Equal(t, pos.OutcomeRejected, res.Outcome, res.Message)
	assert.Contains(t, res.Reason, "rejected")
	assert.Empty(t, res.QRCode)

	st := f.state(t)
	assert.False(t, st.Polling)
	assert.Equal(t, 1, st.Cart.Count)

	// the cashier can pick another method straight away
	f.wallet.CreateStatus = ""
	res = f.svc.Pay(ctx, f.cashier.ID, payment.MethodCard, pos.PayParams{})
	assert.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)
}

func TestWalletPayment_LeaveThenCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)

	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)
	require.NoError(t, f.svc.LeavePayment(f.cashier.ID))
	assert.False(t, f.state(t).Polling)

	pending := f.svc.CheckPayment(ctx, f.cashier.ID)
	assert.Equal(t, pos.OutcomeAwaitingApproval, pending.Outcome)

	f.wallet.Set(res.Intent.ProviderRef, "approved")
	done := f.svc.CheckPayment(ctx, f.cashier.ID)
	require.Equal(t, pos.OutcomeApproved, done.Outcome, done.Message)
	assert.Equal(t, 9, f.store.Stock(f.coffee.ID))
}

func TestWalletPayment_ConfirmIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)

	require.Equal(t, pos.OutcomeAwaitingApproval, f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{}).Outcome)
	res := f.svc.ConfirmPayment(ctx, f.cashier.ID)
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInvalidState, res.Kind)
}

func TestInsufficientStock_KeepsCartAndPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scarce := f.store.AddProduct("Saffron", "7790009", dec("40"), 1)
	snap, err := f.svc.AddByCode(ctx, f.cashier.ID, "7790009")
	require.NoError(t, err)
	_, err = f.svc.SetQuantity(f.cashier.ID, snap.Items[0].ProductID, 3)
	require.NoError(t, err)

	require.Equal(t, pos.OutcomeAwaitingApproval, f.svc.Pay(ctx, f.cashier.ID, payment.MethodCard, pos.PayParams{}).Outcome)
	res := f.svc.ConfirmPayment(ctx, f.cashier.ID)
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInsufficientStock, res.Kind)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, 3, res.Snapshot.Count)
	assert.Equal(t, 1, f.store.Stock(scarce.ID))
	assert.Empty(t, f.store.Sales())

	st := f.state(t)
	require.NotNil(t, st.Intent)
	assert.Equal(t, payment.StatusApproved, st.Intent.Status)

	// the approved payment is released explicitly and has to be refunded
	released := f.svc.CancelPayment(ctx, f.cashier.ID, "")
	assert.Equal(t, pos.OutcomeRejected, released.Outcome)
	assert.Contains(t, released.Reason, "refund")

	_, err = f.svc.SetQuantity(f.cashier.ID, scarce.ID, 1)
	require.NoError(t, err)
	require.Equal(t, pos.OutcomeAwaitingApproval, f.svc.Pay(ctx, f.cashier.ID, payment.MethodCard, pos.PayParams{}).Outcome)
	assert.Equal(t, pos.OutcomeApproved, f.svc.ConfirmPayment(ctx, f.cashier.ID).Outcome)
	assert.Equal(t, 0, f.store.Stock(scarce.ID))
}

func TestConfirm_NoPayment(t *testing.T) {
	f := newFixture(t)

	res := f.svc.ConfirmPayment(context.Background(), f.cashier.ID)
	assert.Equal(t, pos.OutcomeFailed, res.Outcome)
	assert.Equal(t, apperr.KindInvalidState, res.Kind)
}

func TestEnd_StopsPollingAndDropsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scan(t, "7790001", 1)
	res := f.svc.Pay(ctx, f.cashier.ID, payment.MethodAsyncWallet, pos.PayParams{})
	require.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)

	f.svc.End(f.cashier.ID)
	_, err := f.svc.State(f.cashier.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	f.wallet.Set(res.Intent.ProviderRef, "approved")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, f.store.Sales(), "an ended session never registers a sale")

	st := f.svc.Begin(f.cashier)
	assert.Zero(t, st.Cart.Count)
}
