package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const moduleName = "payment"

var tracer = otel.Tracer("github.com/georgemunganga/printa-pos/internal/modules/payment")

// CardTerminalAdvice is shown while a card intent waits for the cashier.
const CardTerminalAdvice = "Complete the payment on the card terminal, then confirm it here."

// Service orchestrates payment intents from creation to a terminal status.
type Service interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, method Method) (*Intent, error)
	GetIntent(ctx context.Context, id uuid.UUID) (*Intent, error)
	// PrepareCash records the counted amount and computes change without approving.
	PrepareCash(ctx context.Context, id uuid.UUID, received decimal.Decimal) (*CashTender, error)
	ConfirmCash(ctx context.Context, id uuid.UUID) (*Intent, error)
	ConfirmCard(ctx context.Context, id uuid.UUID) (*Intent, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*Intent, error)
	// Refresh queries the provider once for a pending wallet intent.
	Refresh(ctx context.Context, id uuid.UUID) (*Intent, error)
}

type service struct {
	repo     Repository
	gateways GatewayRegistry
	logger   logrus.FieldLogger
}

func NewService(repo Repository, gateways GatewayRegistry, logger logrus.FieldLogger) Service {
	return &service{repo: repo, gateways: gateways, logger: logger}
}

func (s *service) CreateIntent(ctx context.Context, amount decimal.Decimal, method Method) (*Intent, error) {
	ctx, span := tracer.Start(ctx, "payment.CreateIntent")
	defer span.End()
	span.SetAttributes(attribute.String("payment.method", string(method)), attribute.String("payment.amount", amount.StringFixed(2)))

	if !amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "amount must be greater than 0")
	}
	gw, ok := s.gateways[method]
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "unsupported payment method: %s", method)
	}

	in := &Intent{
		ID:     uuid.New(),
		Amount: amount.Round(2),
		Method: method,
		Status: StatusCreated,
	}

	resp, err := gw.CreatePayment(ctx, in.ID, in.Amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway create failed")
		logging.LogError(s.logger, moduleName, "CreateIntent", "gateway create failed", map[string]string{"method": string(method)}, err)
		return nil, apperr.Wrap(apperr.KindPaymentCreationFailed, err, "could not create the payment, try again")
	}
	in.ProviderRef = resp.ProviderRef
	in.QRPayload = resp.QRPayload

	switch method {
	case MethodCard:
		in.Status = StatusAwaitingApproval
	case MethodAsyncWallet:
		// the provider may already report a terminal status
		if st := NormaliseStatus(resp.ProviderStatus); st == StatusRejected {
			in.Status = StatusRejected
			in.RejectReason = "rejected by provider: " + resp.ProviderStatus
		} else {
			in.Status = StatusAwaitingApproval
		}
	}

	if err := s.repo.Create(ctx, in); err != nil {
		span.RecordError(err)
		logging.LogError(s.logger, moduleName, "CreateIntent", "persist intent", in.ID.String(), err)
		return nil, apperr.Wrap(apperr.KindPaymentCreationFailed, err, "could not create the payment, try again")
	}
	return in, nil
}

func (s *service) GetIntent(ctx context.Context, id uuid.UUID) (*Intent, error) {
	in, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrIntentNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "payment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return in, nil
}

func (s *service) PrepareCash(ctx context.Context, id uuid.UUID, received decimal.Decimal) (*CashTender, error) {
	in, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Method != MethodCash || in.Status != StatusCreated {
		return nil, apperr.New(apperr.KindInvalidState, "payment %s cannot take a cash tender in status %s", id, in.Status)
	}

	tender, err := ComputeChange(in.Amount, received)
	if err != nil {
		// a short re-entry voids any tender counted earlier
		if clearErr := s.repo.ClearTender(ctx, id); clearErr != nil && !errors.Is(clearErr, ErrStaleStatus) {
			return nil, fmt.Errorf("clear cash tender: %w", clearErr)
		}
		return nil, err
	}
	if _, err := s.repo.SaveTender(ctx, id, *tender); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, apperr.Wrap(apperr.KindInvalidState, err, "payment %s is no longer awaiting cash", id)
		}
		return nil, fmt.Errorf("save cash tender: %w", err)
	}
	return tender, nil
}

func (s *service) ConfirmCash(ctx context.Context, id uuid.UUID) (*Intent, error) {
	in, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Method != MethodCash {
		return nil, apperr.New(apperr.KindInvalidState, "payment %s is not a cash payment", id)
	}
	if in.AmountReceived == nil {
		return nil, apperr.New(apperr.KindInvalidState, "enter the amount received before confirming")
	}
	return s.transition(ctx, in, StatusApproved, "")
}

func (s *service) ConfirmCard(ctx context.Context, id uuid.UUID) (*Intent, error) {
	in, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Method != MethodCard {
		return nil, apperr.New(apperr.KindInvalidState, "payment %s is not a card payment", id)
	}
	return s.transition(ctx, in, StatusApproved, "")
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Intent, error) {
	in, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by cashier"
	}
	return s.transition(ctx, in, StatusRejected, reason)
}

func (s *service) Refresh(ctx context.Context, id uuid.UUID) (*Intent, error) {
	ctx, span := tracer.Start(ctx, "payment.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", id.String()))

	in, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status.Terminal() {
		return in, nil
	}
	if in.Method != MethodAsyncWallet {
		return in, nil
	}

	gw, ok := s.gateways[in.Method]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidState, "no gateway registered for %s", in.Method)
	}
	raw, err := gw.GetPaymentStatus(ctx, in.ProviderRef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query wallet status: %w", err)
	}

	next := NormaliseStatus(raw)
	span.SetAttributes(attribute.String("payment.provider_status", raw))
	if next == in.Status {
		return in, nil
	}
	reason := ""
	if next == StatusRejected {
		reason = "rejected by provider: " + raw
	}
	return s.transition(ctx, in, next, reason)
}

func (s *service) transition(ctx context.Context, in *Intent, to Status, reason string) (*Intent, error) {
	if in.Status == to {
		return in, nil
	}
	if !CanTransition(in.Status, to) {
		return nil, apperr.New(apperr.KindInvalidState, "payment %s cannot move from %s to %s", in.ID, in.Status, to)
	}
	updated, err := s.repo.UpdateStatus(ctx, in.ID, in.Status, to, reason)
	if errors.Is(err, ErrStaleStatus) {
		// another caller got there first; report what is stored now
		current, getErr := s.GetIntent(ctx, in.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == to {
			return current, nil
		}
		return nil, apperr.New(apperr.KindInvalidState, "payment %s is already %s", in.ID, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"payment_id": in.ID,
		"method":     in.Method,
		"from":       in.Status,
		"to":         to,
	}).Info("payment status changed")
	return updated, nil
}

// ComputeChange validates a cash tender. Received equal to total is exact
// change; anything less fails with InsufficientPayment.
func ComputeChange(total, received decimal.Decimal) (*CashTender, error) {
	received = received.Round(2)
	if received.LessThan(total) {
		return nil, apperr.New(apperr.KindInsufficientPayment,
			"amount received %s is less than the total %s", received.StringFixed(2), total.StringFixed(2))
	}
	return &CashTender{Total: total, Received: received, Change: received.Sub(total)}, nil
}
