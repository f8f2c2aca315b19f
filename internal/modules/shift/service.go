package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/events"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const moduleName = "shift"

// Service defines the shift ledger.
type Service interface {
	// Open starts a shift. When the cashier already has one, the existing
	// shift is returned together with an AlreadyOpen error.
	Open(ctx context.Context, cashierID uuid.UUID, cashierName string, openingFloat decimal.Decimal) (*Shift, error)

	// PrepareClose computes the reconciliation without changing anything.
	// Only the cashier who opened the shift may close it.
	PrepareClose(ctx context.Context, id, cashierID uuid.UUID, countedCash decimal.Decimal) (*Summary, error)

	// CommitClose closes the shift and returns the summary over [openedAt, closedAt).
	CommitClose(ctx context.Context, id, cashierID uuid.UUID, countedCash decimal.Decimal) (*Shift, *Summary, error)

	Current(ctx context.Context, cashierID uuid.UUID) (*Shift, error)
	Get(ctx context.Context, id uuid.UUID) (*Shift, error)
	List(ctx context.Context, f Filter) ([]*Shift, error)

	// Summarize reconciles a shift as persisted: up to now while open, with
	// the counted cash once closed.
	Summarize(ctx context.Context, s *Shift) (*Summary, error)
}

// SalesTotals is the read side of the sale service used for reconciliation.
type SalesTotals interface {
	TotalsByMethod(ctx context.Context, cashierID uuid.UUID, from, to time.Time) (*sale.Totals, error)
}

type service struct {
	repo      Repository
	sales     SalesTotals
	locker    Locker
	publisher events.Publisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewService(repo Repository, sales SalesTotals, locker Locker, publisher events.Publisher, logger logrus.FieldLogger) Service {
	if locker == nil {
		locker = NoopLocker()
	}
	return &service{
		repo:      repo,
		sales:     sales,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Open(ctx context.Context, cashierID uuid.UUID, cashierName string, openingFloat decimal.Decimal) (*Shift, error) {
	if cashierID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "cashier is required")
	}
	if openingFloat.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "opening float cannot be negative")
	}

	release, err := s.locker.Acquire(ctx, lockKey(cashierID))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.GetOpen(ctx, cashierID)
	switch {
	case err == nil:
		return existing, alreadyOpen(existing)
	case !errors.Is(err, ErrShiftNotFound):
		return nil, fmt.Errorf("find open shift: %w", err)
	}

	sh := &Shift{
		ID:           uuid.New(),
		CashierID:    cashierID,
		CashierName:  cashierName,
		OpenedAt:     s.now().UTC(),
		OpeningFloat: openingFloat,
		Status:       StatusOpen,
	}
	if err := s.repo.Create(ctx, sh); err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			existing, getErr := s.repo.GetOpen(ctx, cashierID)
			if getErr != nil {
				return nil, apperr.Wrap(apperr.KindAlreadyOpen, err, "cashier already has an open shift")
			}
			return existing, alreadyOpen(existing)
		}
		logging.LogError(s.logger, moduleName, "Open", "create shift", cashierID.String(), err)
		return nil, fmt.Errorf("open shift: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":      sh.ID,
		"cashier_id":    cashierID,
		"opening_float": openingFloat.StringFixed(2),
	}).Info("shift opened")
	s.publish(ctx, events.ShiftOpened, sh.ID, sh)
	return sh, nil
}

func (s *service) PrepareClose(ctx context.Context, id, cashierID uuid.UUID, countedCash decimal.Decimal) (*Summary, error) {
	if countedCash.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "counted cash cannot be negative")
	}
	sh, err := s.owned(ctx, id, cashierID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sh.Status, StatusClosed) {
		return nil, apperr.New(apperr.KindInvalidState, "shift %s is already closed", id)
	}
	return s.reconcile(ctx, sh, &countedCash, s.now().UTC())
}

func (s *service) CommitClose(ctx context.Context, id, cashierID uuid.UUID, countedCash decimal.Decimal) (*Shift, *Summary, error) {
	if countedCash.IsNegative() {
		return nil, nil, apperr.New(apperr.KindValidation, "counted cash cannot be negative")
	}
	if _, err := s.owned(ctx, id, cashierID); err != nil {
		return nil, nil, err
	}
	closed, err := s.repo.Close(ctx, id, countedCash, s.now().UTC())
	switch {
	case errors.Is(err, ErrShiftNotFound):
		return nil, nil, apperr.Wrap(apperr.KindNotFound, err, "shift %s not found", id)
	case errors.Is(err, ErrNotOpen):
		return nil, nil, apperr.Wrap(apperr.KindInvalidState, err, "shift %s is already closed", id)
	case err != nil:
		logging.LogError(s.logger, moduleName, "CommitClose", "close shift", id.String(), err)
		return nil, nil, fmt.Errorf("close shift: %w", err)
	}

	summary, err := s.reconcile(ctx, closed, closed.CountedCash, *closed.ClosedAt)
	if err != nil {
		return closed, nil, err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"shift_id":   closed.ID,
		"cashier_id": closed.CashierID,
		"expected":   summary.ExpectedCash.StringFixed(2),
		"counted":    countedCash.StringFixed(2),
		"variance":   summary.Variance.StringFixed(2),
	})
	if summary.Balanced {
		entry.Info("shift closed")
	} else {
		entry.Warn("shift closed with cash variance")
	}
	s.publish(ctx, events.ShiftClosed, closed.ID, summary)
	return closed, summary, nil
}

func (s *service) Current(ctx context.Context, cashierID uuid.UUID) (*Shift, error) {
	sh, err := s.repo.GetOpen(ctx, cashierID)
	if errors.Is(err, ErrShiftNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "no open shift")
	}
	return sh, err
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Shift, error) {
	sh, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrShiftNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "shift %s not found", id)
	}
	return sh, err
}

// owned loads a shift that cashierID opened.
func (s *service) owned(ctx context.Context, id, cashierID uuid.UUID) (*Shift, error) {
	sh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.CashierID != cashierID {
		s.logger.WithFields(logrus.Fields{
			"shift_id":   id,
			"owner_id":   sh.CashierID,
			"cashier_id": cashierID,
		}).Warn("close attempted on another cashier's shift")
		return nil, apperr.New(apperr.KindForbidden, "shift %s belongs to another cashier", id)
	}
	return sh, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]*Shift, error) {
	switch f.Status {
	case "", StatusOpen, StatusClosed:
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

func (s *service) Summarize(ctx context.Context, sh *Shift) (*Summary, error) {
	if sh.Status == StatusClosed && sh.ClosedAt != nil {
		return s.reconcile(ctx, sh, sh.CountedCash, *sh.ClosedAt)
	}
	return s.reconcile(ctx, sh, nil, s.now().UTC())
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *service) reconcile(ctx context.Context, sh *Shift, counted *decimal.Decimal, to time.Time) (*Summary, error) {
	totals, err := s.sales.TotalsByMethod(ctx, sh.CashierID, sh.OpenedAt, to)
	if err != nil {
		logging.LogError(s.logger, moduleName, "reconcile", "sum sales", sh.ID.String(), err)
		return nil, fmt.Errorf("sum shift sales: %w", err)
	}
	return Reconcile(sh, totals, counted, sh.OpenedAt, to), nil
}

func (s *service) publish(ctx context.Context, eventType string, id uuid.UUID, payload interface{}) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:        eventType,
		AggregateID: id.String(),
		OccurredAt:  s.now().UTC(),
		Payload:     payload,
	})
	if err != nil {
		logging.LogError(s.logger, moduleName, "publish", eventType, id.String(), err)
	}
}

func alreadyOpen(existing *Shift) error {
	return apperr.Wrap(apperr.KindAlreadyOpen, ErrAlreadyOpen,
		"cashier already has a shift open since %s", existing.OpenedAt.Format(time.RFC3339))
}
