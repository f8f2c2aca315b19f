package pos

import (
	"context"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/cart"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const moduleName = "pos"

// genericInvalidState replaces internal precondition details in cashier-facing results.
const genericInvalidState = "This action is not available right now. Start the sale again or ask a supervisor."

// Service drives the till: cart edits, payment and sale confirmation. Every
// payment step answers with a Result; errors never escape this boundary.
type Service interface {
	Begin(cashier auth.Cashier) *State
	End(cashierID uuid.UUID)
	State(cashierID uuid.UUID) (*State, error)

	Cart(cashierID uuid.UUID) (cart.Snapshot, error)
	AddByCode(ctx context.Context, cashierID uuid.UUID, code string) (cart.Snapshot, error)
	AddProduct(ctx context.Context, cashierID uuid.UUID, productID string) (cart.Snapshot, error)
	SetQuantity(cashierID, productID uuid.UUID, qty float64) (cart.Snapshot, error)
	RemoveItem(cashierID, productID uuid.UUID) (cart.Snapshot, error)
	ClearCart(cashierID uuid.UUID) (cart.Snapshot, error)
	Search(ctx context.Context, query string, limit int) ([]*catalog.Product, error)

	Pay(ctx context.Context, cashierID uuid.UUID, method payment.Method, params PayParams) Result
	// ConfirmPayment approves a pending cash or card intent and registers the sale.
	ConfirmPayment(ctx context.Context, cashierID uuid.UUID) Result
	// CancelPayment rejects the pending intent and stops polling. The cart is kept.
	CancelPayment(ctx context.Context, cashierID uuid.UUID, reason string) Result
	// LeavePayment only stops polling; the intent stays pending.
	LeavePayment(cashierID uuid.UUID) error
	// CheckPayment asks for the intent status once and confirms when approved.
	CheckPayment(ctx context.Context, cashierID uuid.UUID) Result
}

// Catalog is the product side of the till.
type Catalog interface {
	LookupByCode(ctx context.Context, code string) (*catalog.Product, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	Search(ctx context.Context, query string, limit int) ([]*catalog.Product, error)
}

type SaleConfirmer interface {
	Confirm(ctx context.Context, req sale.ConfirmRequest) (*sale.Sale, error)
}

type Poller interface {
	Start(parent context.Context, intentID uuid.UUID, onTerminal func(context.Context, *payment.Intent)) *payment.PollHandle
}

type service struct {
	base     context.Context
	sessions *Sessions
	catalog  Catalog
	payments payment.Service
	poller   Poller
	sales    SaleConfirmer
	logger   logrus.FieldLogger
}

// NewService builds the till service. base outlives requests and bounds the
// wallet poll loops; cancel it on shutdown.
func NewService(base context.Context, sessions *Sessions, catalog Catalog, payments payment.Service, poller Poller, sales SaleConfirmer, logger logrus.FieldLogger) Service {
	return &service{
		base:     base,
		sessions: sessions,
		catalog:  catalog,
		payments: payments,
		poller:   poller,
		sales:    sales,
		logger:   logger,
	}
}

// ── session ──────────────────────────────────────────────────────────────────

func (s *service) Begin(cashier auth.Cashier) *State {
	sess := s.sessions.Begin(cashier)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state()
}

func (s *service) End(cashierID uuid.UUID) {
	if s.sessions.End(cashierID) {
		s.logger.WithField("cashier_id", cashierID).Info("till session ended")
	}
}

func (s *service) State(cashierID uuid.UUID) (*State, error) {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// ── cart ─────────────────────────────────────────────────────────────────────

func (s *service) Cart(cashierID uuid.UUID) (cart.Snapshot, error) {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cart.Snapshot(), nil
}

func (s *service) AddByCode(ctx context.Context, cashierID uuid.UUID, code string) (cart.Snapshot, error) {
	return s.editCart(cashierID, func(c *cart.Cart) (cart.Snapshot, error) {
		return c.AddByCode(ctx, code)
	})
}

func (s *service) AddProduct(ctx context.Context, cashierID uuid.UUID, productID string) (cart.Snapshot, error) {
	return s.editCart(cashierID, func(c *cart.Cart) (cart.Snapshot, error) {
		p, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return c.Snapshot(), err
		}
		return c.AddByLookup(p), nil
	})
}

func (s *service) SetQuantity(cashierID, productID uuid.UUID, qty float64) (cart.Snapshot, error) {
	return s.editCart(cashierID, func(c *cart.Cart) (cart.Snapshot, error) {
		return c.SetQuantity(productID, qty)
	})
}

func (s *service) RemoveItem(cashierID, productID uuid.UUID) (cart.Snapshot, error) {
	return s.editCart(cashierID, func(c *cart.Cart) (cart.Snapshot, error) {
		return c.Remove(productID), nil
	})
}

func (s *service) ClearCart(cashierID uuid.UUID) (cart.Snapshot, error) {
	return s.editCart(cashierID, func(c *cart.Cart) (cart.Snapshot, error) {
		return c.Clear(), nil
	})
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]*catalog.Product, error) {
	return s.catalog.Search(ctx, query, limit)
}

// editCart refuses changes while the cart total is pinned to a live payment.
func (s *service) editCart(cashierID uuid.UUID, fn func(c *cart.Cart) (cart.Snapshot, error)) (cart.Snapshot, error) {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.holdsPayment() {
		return sess.cart.Snapshot(), apperr.New(apperr.KindInvalidState,
			"a %s payment is in progress; finish or cancel it before changing the cart", sess.intent.Method)
	}
	return fn(sess.cart)
}

// ── payment ──────────────────────────────────────────────────────────────────

func (s *service) Pay(ctx context.Context, cashierID uuid.UUID, method payment.Method, params PayParams) Result {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return s.failed(err, nil)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.record(sess, s.pay(ctx, sess, method, params))
}

func (s *service) pay(ctx context.Context, sess *Session, method payment.Method, params PayParams) Result {
	if sess.cart.IsEmpty() {
		return s.refuse("the cart is empty", nil)
	}

	in := sess.intent
	switch {
	case in != nil && in.Status == payment.StatusApproved && !sess.confirmed:
		// the payment went through but the sale did not; retry only the sale
		return s.confirmSale(ctx, sess)
	case in != nil && !in.Status.Terminal() && !sess.confirmed:
		if in.Method != method {
			return s.refuse("a "+string(in.Method)+" payment is in progress; cancel the current payment first", in)
		}
	default:
		created, err := s.payments.CreateIntent(ctx, sess.cart.Total(), method)
		if err != nil {
			return s.failed(err, nil)
		}
		sess.stopPolling()
		sess.intent, sess.confirmed = created, false
		if created.Status.Terminal() {
			// the provider can refuse a wallet payment outright
			return s.settle(ctx, sess)
		}
		in = created
	}

	switch in.Method {
	case payment.MethodCash:
		if params.AmountReceived == nil {
			return s.failed(apperr.New(apperr.KindValidation, "enter the amount received"), in)
		}
		tender, err := s.payments.PrepareCash(ctx, in.ID, *params.AmountReceived)
		if err != nil {
			return s.failed(err, in)
		}
		change := tender.Change
		return Result{Outcome: OutcomeAwaitingApproval, Intent: in, Change: &change}
	case payment.MethodCard:
		return Result{Outcome: OutcomeAwaitingApproval, Intent: in, Message: payment.CardTerminalAdvice}
	default:
		if sess.poll == nil {
			s.startPolling(sess)
		}
		return Result{Outcome: OutcomeAwaitingApproval, Intent: in, QRCode: in.QRPayload}
	}
}

func (s *service) ConfirmPayment(ctx context.Context, cashierID uuid.UUID) Result {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return s.failed(err, nil)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if res, done := s.noPayment(sess); done {
		return res
	}

	in := sess.intent
	switch in.Status {
	case payment.StatusApproved:
		return s.record(sess, s.confirmSale(ctx, sess))
	case payment.StatusRejected:
		return s.record(sess, s.refuse("the payment was rejected; start a new payment", in))
	}

	switch in.Method {
	case payment.MethodCash:
		in, err = s.payments.ConfirmCash(ctx, in.ID)
	case payment.MethodCard:
		in, err = s.payments.ConfirmCard(ctx, in.ID)
	default:
		return s.record(sess, s.refuse("wallet payments are approved by the provider; check the payment instead", in))
	}
	if err != nil {
		return s.record(sess, s.failed(err, sess.intent))
	}
	sess.intent = in
	return s.record(sess, s.confirmSale(ctx, sess))
}

func (s *service) CancelPayment(ctx context.Context, cashierID uuid.UUID, reason string) Result {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return s.failed(err, nil)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.intent == nil || sess.confirmed {
		return s.refuse("there is no payment to cancel", nil)
	}
	if reason == "" {
		reason = "cancelled by cashier"
	}
	sess.stopPolling()

	in := sess.intent
	switch in.Status {
	case payment.StatusApproved:
		s.logger.WithFields(logrus.Fields{
			"payment_id": in.ID,
			"cashier_id": cashierID,
			"amount":     in.Amount.StringFixed(2),
		}).Warn("approved payment released without a sale, it must be refunded")
		sess.intent = nil
		return s.record(sess, Result{Outcome: OutcomeRejected, Intent: in,
			Reason: "the approved payment was released without a sale; refund it to the customer"})
	case payment.StatusRejected:
		return s.record(sess, Result{Outcome: OutcomeRejected, Intent: in, Reason: in.RejectReason})
	}

	rejected, err := s.payments.Reject(ctx, in.ID, reason)
	if err != nil {
		return s.record(sess, s.failed(err, in))
	}
	sess.intent = rejected
	return s.record(sess, Result{Outcome: OutcomeRejected, Intent: rejected, Reason: rejected.RejectReason})
}

func (s *service) LeavePayment(cashierID uuid.UUID) error {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.stopPolling()
	return nil
}

func (s *service) CheckPayment(ctx context.Context, cashierID uuid.UUID) Result {
	sess, err := s.sessions.Get(cashierID)
	if err != nil {
		return s.failed(err, nil)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if res, done := s.noPayment(sess); done {
		return res
	}

	if in := sess.intent; !in.Status.Terminal() {
		// cash and card intents come back unchanged; only the wallet asks its provider
		fresh, err := s.payments.Refresh(ctx, in.ID)
		if err != nil {
			return s.record(sess, s.failed(err, in))
		}
		sess.intent = fresh
	}
	return s.record(sess, s.settle(ctx, sess))
}

// ── helpers ──────────────────────────────────────────────────────────────────

// settle maps the session intent to a result, confirming the sale when approved.
func (s *service) settle(ctx context.Context, sess *Session) Result {
	in := sess.intent
	switch in.Status {
	case payment.StatusApproved:
		sess.stopPolling()
		return s.confirmSale(ctx, sess)
	case payment.StatusRejected:
		sess.stopPolling()
		return Result{Outcome: OutcomeRejected, Intent: in, Reason: in.RejectReason}
	default:
		return Result{Outcome: OutcomeAwaitingApproval, Intent: in, QRCode: in.QRPayload}
	}
}

// confirmSale registers the sale for the approved session intent. Callers hold sess.mu.
// On success the cart and the intent are cleared; on failure both are kept.
func (s *service) confirmSale(ctx context.Context, sess *Session) Result {
	in := sess.intent
	if sess.confirmed {
		return Result{Outcome: OutcomeApproved, Intent: in, Sale: sess.lastSale}
	}

	items := sess.cart.Items()
	lines := make([]sale.LineItem, 0, len(items))
	for _, li := range items {
		lines = append(lines, sale.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.Name,
			Barcode:     li.Barcode,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
		})
	}
	registered, err := s.sales.Confirm(ctx, sale.ConfirmRequest{
		PaymentID:   in.ID,
		CashierID:   sess.cashier.ID,
		CashierName: sess.cashier.Name,
		Items:       lines,
		Total:       sess.cart.Total(),
	})
	if err != nil {
		snap := sess.cart.Snapshot()
		res := s.failed(err, in)
		res.Snapshot = &snap
		return res
	}

	sess.confirmed = true
	sess.lastSale = registered
	sess.intent = nil
	sess.cart.Clear()
	res := Result{Outcome: OutcomeApproved, Intent: in, Sale: registered}
	if in.Change != nil {
		change := *in.Change
		res.Change = &change
	}
	return res
}

func (s *service) startPolling(sess *Session) {
	sess.stopPolling()
	gen := sess.pollGen
	intentID := sess.intent.ID
	sess.poll = s.poller.Start(s.base, intentID, func(ctx context.Context, in *payment.Intent) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.pollGen != gen || sess.intent == nil || sess.intent.ID != in.ID {
			return
		}
		sess.poll = nil
		sess.intent = in
		res := s.settle(ctx, sess)
		s.record(sess, res)
		s.logger.WithFields(logrus.Fields{
			"payment_id": in.ID,
			"cashier_id": sess.cashier.ID,
			"outcome":    res.Outcome,
		}).Info("wallet payment settled")
	})
}

// noPayment answers steps that need an intent when there is none. A sale that
// was just confirmed is replayed so a double tap stays harmless.
func (s *service) noPayment(sess *Session) (Result, bool) {
	if sess.intent != nil {
		return Result{}, false
	}
	if sess.confirmed && sess.last != nil && sess.last.Outcome == OutcomeApproved {
		return *sess.last, true
	}
	return s.refuse("there is no payment in progress", nil), true
}

func (s *service) record(sess *Session, res Result) Result {
	sess.last = &res
	return res
}

// refuse is an InvalidState result whose message is already cashier-safe.
func (s *service) refuse(message string, in *payment.Intent) Result {
	res := s.failed(apperr.New(apperr.KindInvalidState, "%s", message), in)
	res.Message = message
	return res
}

func (s *service) failed(err error, in *payment.Intent) Result {
	kind := apperr.KindOf(err)
	res := Result{
		Outcome: OutcomeFailed,
		Intent:  in,
		Kind:    kind,
		Message: apperr.Message(err),
		Retry:   apperr.Retryable(kind),
	}
	if kind == apperr.KindInvalidState {
		var data interface{}
		if in != nil {
			data = in.ID.String()
		}
		logging.LogError(s.logger, moduleName, "checkout", "precondition violated", data, err)
		res.Message = genericInvalidState
	}
	return res
}
