package shift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const openShiftIndex = "shifts_one_open_per_cashier"

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectShift = `
	SELECT id, cashier_id, cashier_name, opened_at, closed_at, opening_float, counted_cash, status
	FROM shifts`

func (r *postgresRepo) Create(ctx context.Context, s *Shift) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shifts (id, cashier_id, cashier_name, opened_at, opening_float, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.CashierID, s.CashierName, s.OpenedAt, s.OpeningFloat, StatusOpen)
	if database.IsUniqueViolation(err, openShiftIndex) {
		return ErrAlreadyOpen
	}
	if err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	s.Status = StatusOpen
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return r.getOne(ctx, selectShift+` WHERE id=$1`, id)
}

func (r *postgresRepo) GetOpen(ctx context.Context, cashierID uuid.UUID) (*Shift, error) {
	return r.getOne(ctx, selectShift+` WHERE cashier_id=$1 AND status='OPEN'`, cashierID)
}

// Close flips OPEN to CLOSED in one statement so two concurrent closes cannot both win.
func (r *postgresRepo) Close(ctx context.Context, id uuid.UUID, counted decimal.Decimal, at time.Time) (*Shift, error) {
	s, err := scanShift(r.db.QueryRowContext(ctx, `
		UPDATE shifts SET status=$1, closed_at=$2, counted_cash=$3
		WHERE id=$4 AND status='OPEN'
		RETURNING id, cashier_id, cashier_name, opened_at, closed_at, opening_float, counted_cash, status`,
		StatusClosed, at, counted, id))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("close shift: %w", err)
	}
	return s, nil
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]*Shift, error) {
	query := selectShift + ` WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CashierID != nil {
		query += ` AND cashier_id=` + arg(*f.CashierID)
	}
	if f.Status != "" {
		query += ` AND status=` + arg(f.Status)
	}
	query += ` ORDER BY opened_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) getOne(ctx context.Context, query string, arg interface{}) (*Shift, error) {
	s, err := scanShift(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShiftNotFound
	}
	return s, err
}

func scanShift(row rowScanner) (*Shift, error) {
	s := &Shift{}
	var closedAt sql.NullTime
	var counted decimal.NullDecimal
	err := row.Scan(&s.ID, &s.CashierID, &s.CashierName, &s.OpenedAt, &closedAt,
		&s.OpeningFloat, &counted, &s.Status)
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		s.ClosedAt = &t
	}
	if counted.Valid {
		c := counted.Decimal
		s.CountedCash = &c
	}
	return s, nil
}
