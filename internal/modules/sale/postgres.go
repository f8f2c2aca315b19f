package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const paymentUniqueConstraint = "sales_payment_id_key"

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectSale = `
	SELECT id, cashier_id, cashier_name, payment_id, total, method, status,
	       void_reason, voided_at, created_at
	FROM sales`

// Register inserts the sale, its items and the stock decrements inside a single transaction.
func (r *postgresRepo) Register(ctx context.Context, s *Sale) (*Sale, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// a duplicate payment blocks here until the first confirmation commits
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (id, cashier_id, cashier_name, payment_id, total, method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		s.ID, s.CashierID, s.CashierName, s.PaymentID, s.Total, s.Method, StatusRegistered,
	).Scan(&s.CreatedAt)
	if database.IsUniqueViolation(err, paymentUniqueConstraint) {
		tx.Rollback()
		existing, getErr := r.getByPaymentID(ctx, s.PaymentID)
		if getErr != nil {
			return nil, false, fmt.Errorf("load existing sale: %w", getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert sale: %w", err)
	}

	if err := decrementStock(ctx, tx, s.Items); err != nil {
		return nil, false, err
	}

	for i := range s.Items {
		item := &s.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, barcode, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, s.ID, item.ProductID, item.ProductName, item.Barcode, item.UnitPrice, item.Quantity)
		if err != nil {
			return nil, false, fmt.Errorf("insert sale_item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	s.Status = StatusRegistered
	return s, true, nil
}

// decrementStock locks every product row in id order, checks all of them,
// then applies the decrements. Nothing is written if any product is short.
func decrementStock(ctx context.Context, tx *sql.Tx, items []LineItem) error {
	wanted := map[uuid.UUID]int{}
	names := map[uuid.UUID]string{}
	for _, item := range items {
		wanted[item.ProductID] += item.Quantity
		names[item.ProductID] = item.ProductName
	}
	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, stock FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("lock stock: %w", err)
	}
	available := map[uuid.UUID]int{}
	for rows.Next() {
		var id uuid.UUID
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			rows.Close()
			return err
		}
		available[id] = stock
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, raw := range ids {
		id := uuid.MustParse(raw)
		if available[id] < wanted[id] {
			return &StockError{ProductID: id, Name: names[id], Requested: wanted[id], Available: available[id]}
		}
	}
	for _, raw := range ids {
		id := uuid.MustParse(raw)
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2`,
			wanted[id], id)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx, selectSale+` WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Items, err = r.listItems(ctx, s.ID)
	return s, err
}

func (r *postgresRepo) getByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx, selectSale+` WHERE payment_id=$1`, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Items, err = r.listItems(ctx, s.ID)
	return s, err
}

func (r *postgresRepo) Void(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Sale, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id=$1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	if status == StatusVoided {
		return nil, ErrAlreadyVoided
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET status=$1, void_reason=$2, voided_at=$3 WHERE id=$4`,
		StatusVoided, reason, at, id)
	if err != nil {
		return nil, fmt.Errorf("void sale: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + si.qty, updated_at = NOW()
		FROM (SELECT product_id, SUM(quantity) AS qty FROM sale_items WHERE sale_id=$1 GROUP BY product_id) si
		WHERE p.id = si.product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("restock voided sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]*Sale, error) {
	query := selectSale + ` WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CashierID != nil {
		query += ` AND cashier_id=` + arg(*f.CashierID)
	}
	if f.CashierName != "" {
		query += ` AND cashier_name ILIKE ` + arg("%"+f.CashierName+"%")
	}
	if !f.From.IsZero() {
		query += ` AND created_at >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		query += ` AND created_at < ` + arg(f.To)
	}
	if f.Status != "" {
		query += ` AND status=` + arg(f.Status)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []*Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range sales {
		if s.Items, err = r.listItems(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (r *postgresRepo) TotalsByMethod(ctx context.Context, cashierID uuid.UUID, from, to time.Time) (*Totals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT method, status, COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE cashier_id=$1 AND created_at >= $2 AND created_at < $3
		GROUP BY method, status`, cashierID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum sales: %w", err)
	}
	defer rows.Close()

	totals := NewTotals()
	for rows.Next() {
		var method payment.Method
		var status Status
		var count int
		var sum decimal.Decimal
		if err := rows.Scan(&method, &status, &count, &sum); err != nil {
			return nil, err
		}
		if status == StatusVoided {
			totals.VoidedCount += count
			continue
		}
		totals.Count += count
		totals.ByMethod[method] = totals.ByMethod[method].Add(sum)
	}
	return totals, rows.Err()
}

func (r *postgresRepo) QuantitiesSold(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT si.product_id, SUM(si.quantity)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.status = $1 AND s.created_at >= $2 AND s.created_at < $3
		GROUP BY si.product_id`, StatusRegistered, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum sold quantities: %w", err)
	}
	defer rows.Close()

	sold := map[uuid.UUID]int{}
	for rows.Next() {
		var id uuid.UUID
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		sold[id] = qty
	}
	return sold, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanSale(row rowScanner) (*Sale, error) {
	s := &Sale{}
	var reason sql.NullString
	var voidedAt sql.NullTime
	err := row.Scan(&s.ID, &s.CashierID, &s.CashierName, &s.PaymentID, &s.Total,
		&s.Method, &s.Status, &reason, &voidedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.VoidReason = reason.String
	if voidedAt.Valid {
		t := voidedAt.Time
		s.VoidedAt = &t
	}
	return s, nil
}

func (r *postgresRepo) listItems(ctx context.Context, saleID uuid.UUID) ([]LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, barcode, unit_price, quantity
		FROM sale_items WHERE sale_id=$1 ORDER BY product_name`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LineItem{}
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Barcode,
			&item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
