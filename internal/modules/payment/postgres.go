package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectSQL = `
	SELECT id, amount, method, status, provider_ref, qr_payload,
	       amount_received, change_due, reject_reason, created_at, updated_at
	FROM payment_intents`

func (r *postgresRepo) Create(ctx context.Context, in *Intent) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_intents (id, amount, method, status, provider_ref, qr_payload)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		in.ID, in.Amount, in.Method, in.Status, in.ProviderRef, nilIfEmpty(in.QRPayload),
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Intent, error) {
	in, err := scanIntent(r.db.QueryRowContext(ctx, selectSQL+" WHERE id=$1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	return in, err
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, rejectReason string) (*Intent, error) {
	in, err := scanIntent(r.db.QueryRowContext(ctx, `
		UPDATE payment_intents
		SET status=$1, reject_reason=$2, updated_at=NOW()
		WHERE id=$3 AND status=$4
		RETURNING id, amount, method, status, provider_ref, qr_payload,
		          amount_received, change_due, reject_reason, created_at, updated_at`,
		to, nilIfEmpty(rejectReason), id, from))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleStatus
	}
	return in, err
}

func (r *postgresRepo) SaveTender(ctx context.Context, id uuid.UUID, t CashTender) (*Intent, error) {
	in, err := scanIntent(r.db.QueryRowContext(ctx, `
		UPDATE payment_intents
		SET amount_received=$1, change_due=$2, updated_at=NOW()
		WHERE id=$3 AND status=$4
		RETURNING id, amount, method, status, provider_ref, qr_payload,
		          amount_received, change_due, reject_reason, created_at, updated_at`,
		t.Received, t.Change, id, StatusCreated))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaleStatus
	}
	return in, err
}

func (r *postgresRepo) ClearTender(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET amount_received=NULL, change_due=NULL, updated_at=NOW()
		WHERE id=$1 AND status=$2`, id, StatusCreated)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanIntent(row rowScanner) (*Intent, error) {
	in := &Intent{}
	var qr, reason sql.NullString
	var received, change decimal.NullDecimal
	err := row.Scan(&in.ID, &in.Amount, &in.Method, &in.Status, &in.ProviderRef, &qr,
		&received, &change, &reason, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	in.QRPayload = qr.String
	in.RejectReason = reason.String
	if received.Valid {
		in.AmountReceived = &received.Decimal
	}
	if change.Valid {
		in.Change = &change.Decimal
	}
	return in, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
