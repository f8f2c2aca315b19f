package sale

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/events"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const moduleName = "sale"

var tracer = otel.Tracer("github.com/georgemunganga/printa-pos/internal/modules/sale")

// Service defines sale registration and the read side used by shifts and reports.
type Service interface {
	// Confirm registers the sale for an approved payment. Confirming the same
	// payment twice returns the sale registered the first time.
	Confirm(ctx context.Context, req ConfirmRequest) (*Sale, error)

	// Void soft-cancels a sale and puts its items back in stock.
	Void(ctx context.Context, id uuid.UUID, reason string) (*Sale, error)

	Get(ctx context.Context, id uuid.UUID) (*Sale, error)
	List(ctx context.Context, f Filter) ([]*Sale, error)
	ListForCashierBetween(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]*Sale, error)
	TotalsByMethod(ctx context.Context, cashierID uuid.UUID, from, to time.Time) (*Totals, error)
	QuantitiesSold(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error)
}

// PaymentReader is the part of the payment orchestrator a sale needs.
type PaymentReader interface {
	GetIntent(ctx context.Context, id uuid.UUID) (*payment.Intent, error)
}

// StockObserver is told which products changed stock after a commit.
type StockObserver interface {
	StockChanged(ctx context.Context, productIDs ...uuid.UUID)
}

type service struct {
	repo      Repository
	payments  PaymentReader
	publisher events.Publisher
	stock     StockObserver
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewService(repo Repository, payments PaymentReader, publisher events.Publisher, stock StockObserver, logger logrus.FieldLogger) Service {
	return &service{
		repo:      repo,
		payments:  payments,
		publisher: publisher,
		stock:     stock,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Confirm(ctx context.Context, req ConfirmRequest) (*Sale, error) {
	ctx, span := tracer.Start(ctx, "sale.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", req.PaymentID.String()))

	intent, err := s.payments.GetIntent(ctx, req.PaymentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, s.invalid("sale confirmed for unknown payment %s", req.PaymentID)
		}
		return nil, apperr.Wrap(apperr.KindRegistrationFailed, err, "could not register the sale, try again")
	}
	if intent.Status != payment.StatusApproved {
		return nil, s.invalid("payment %s is %s, not approved", intent.ID, intent.Status)
	}
	if err := validateLines(req, intent); err != nil {
		return nil, s.invalid("%s", err.Error())
	}

	sale := &Sale{
		ID:          uuid.New(),
		CashierID:   req.CashierID,
		CashierName: req.CashierName,
		PaymentID:   intent.ID,
		Items:       append([]LineItem(nil), req.Items...),
		Total:       req.Total,
		Method:      intent.Method,
		Status:      StatusRegistered,
	}

	stored, created, err := s.repo.Register(ctx, sale)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register failed")
		var stockErr *StockError
		if errors.As(err, &stockErr) {
			s.logger.WithFields(logrus.Fields{
				"payment_id": intent.ID,
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			}).Warn("sale rejected for insufficient stock")
			return nil, apperr.Wrap(apperr.KindInsufficientStock, err,
				"not enough stock of %s (requested %d, available %d); check the inventory before trying again",
				stockErr.Name, stockErr.Requested, stockErr.Available)
		}
		logging.LogError(s.logger, moduleName, "Confirm", "register sale", intent.ID.String(), err)
		return nil, apperr.Wrap(apperr.KindRegistrationFailed, err, "could not register the sale, try again")
	}

	if !created {
		s.logger.WithFields(logrus.Fields{"payment_id": intent.ID, "sale_id": stored.ID}).
			Info("payment already has a sale, returning it")
		return stored, nil
	}

	s.afterCommit(ctx, events.SaleRegistered, stored)
	return stored, nil
}

func (s *service) Void(ctx context.Context, id uuid.UUID, reason string) (*Sale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.KindValidation, "a reason is required to void a sale")
	}
	voided, err := s.repo.Void(ctx, id, reason, s.now())
	switch {
	case errors.Is(err, ErrSaleNotFound):
		return nil, apperr.Wrap(apperr.KindNotFound, err, "sale %s not found", id)
	case errors.Is(err, ErrAlreadyVoided):
		return nil, apperr.Wrap(apperr.KindInvalidState, err, "sale %s is already voided", id)
	case err != nil:
		logging.LogError(s.logger, moduleName, "Void", "void sale", id.String(), err)
		return nil, fmt.Errorf("void sale: %w", err)
	}
	s.afterCommit(ctx, events.SaleVoided, voided)
	return voided, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	found, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrSaleNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "sale %s not found", id)
	}
	return found, err
}

func (s *service) List(ctx context.Context, f Filter) ([]*Sale, error) {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, apperr.New(apperr.KindValidation, "from must be before to")
	}
	return s.repo.List(ctx, f)
}

func (s *service) ListForCashierBetween(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]*Sale, error) {
	return s.List(ctx, Filter{CashierID: &cashierID, From: from, To: to})
}

func (s *service) TotalsByMethod(ctx context.Context, cashierID uuid.UUID, from, to time.Time) (*Totals, error) {
	return s.repo.TotalsByMethod(ctx, cashierID, from, to)
}

func (s *service) QuantitiesSold(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error) {
	return s.repo.QuantitiesSold(ctx, from, to)
}

func (s *service) invalid(format string, args ...interface{}) error {
	err := apperr.New(apperr.KindInvalidState, format, args...)
	logging.LogError(s.logger, moduleName, "Confirm", "precondition violated", nil, err)
	return err
}

// afterCommit publishes the event and refreshes stock readers. Both are best
// effort: the sale is already committed.
func (s *service) afterCommit(ctx context.Context, eventType string, sl *Sale) {
	ids := make([]uuid.UUID, 0, len(sl.Items))
	for _, item := range sl.Items {
		ids = append(ids, item.ProductID)
	}
	if s.stock != nil {
		s.stock.StockChanged(ctx, ids...)
	}
	err := s.publisher.Publish(ctx, events.Event{
		Type:        eventType,
		AggregateID: sl.ID.String(),
		OccurredAt:  s.now().UTC(),
		Payload:     sl,
	})
	if err != nil {
		logging.LogError(s.logger, moduleName, "afterCommit", "publish "+eventType, sl.ID.String(), err)
	}
}

func validateLines(req ConfirmRequest, intent *payment.Intent) error {
	if req.CashierID == uuid.Nil {
		return errors.New("cashier is required")
	}
	if len(req.Items) == 0 {
		return errors.New("a sale needs at least one item")
	}
	sum := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("quantity of %s must be at least 1", item.ProductName)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("price of %s cannot be negative", item.ProductName)
		}
		sum = sum.Add(item.LineTotal())
	}
	if !sum.Equal(req.Total) {
		return fmt.Errorf("total %s does not match the items (%s)", req.Total.StringFixed(2), sum.StringFixed(2))
	}
	if !req.Total.Equal(intent.Amount) {
		return fmt.Errorf("total %s does not match the approved payment %s", req.Total.StringFixed(2), intent.Amount.StringFixed(2))
	}
	return nil
}
