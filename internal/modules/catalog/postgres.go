package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectProduct = `
	SELECT p.id, p.name, p.description, p.price, p.stock, COALESCE(p.barcode, ''),
	       p.category_id, COALESCE(c.name, ''), p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.getOne(ctx, selectProduct+` WHERE p.id=$1`, id)
}

func (r *postgresRepo) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return r.getOne(ctx, selectProduct+` WHERE p.barcode=$1`, barcode)
}

func (r *postgresRepo) List(ctx context.Context) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, selectProduct+` ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *postgresRepo) getOne(ctx context.Context, query string, arg interface{}) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanProduct(row rowScanner) (*Product, error) {
	p := &Product{}
	var categoryID uuid.NullUUID
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Barcode,
		&categoryID, &p.CategoryName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.UUID
		p.CategoryID = &id
	}
	return p, nil
}
