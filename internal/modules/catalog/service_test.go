package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	products []*Product
	err      error
	calls    int
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrProductNotFound
}

func (m *memRepo) GetByBarcode(_ context.Context, barcode string) (*Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrProductNotFound
}

func (m *memRepo) List(_ context.Context) ([]*Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func sampleProducts() []*Product {
	return []*Product{
		{ID: uuid.New(), Name: "Yerba Mate 1kg", Description: "Suave", Price: decimal.NewFromInt(2500), Stock: 12, Barcode: "7790001", CategoryName: "Almacén"},
		{ID: uuid.New(), Name: "Alfajor", Description: "Triple chocolate", Price: decimal.NewFromInt(800), Stock: 40, Barcode: "7790002", CategoryName: "Golosinas"},
		{ID: uuid.New(), Name: "Agua 500ml", Description: "Sin gas", Price: decimal.NewFromInt(600), Stock: 0, Barcode: "7790003", CategoryName: "Bebidas"},
	}
}

func TestLookupByCode(t *testing.T) {
	repo := &memRepo{products: sampleProducts()}
	svc := NewService(repo, logging.Discard())

	p, err := svc.LookupByCode(context.Background(), " 7790002 ")
	require.NoError(t, err)
	assert.Equal(t, "Alfajor", p.Name)
}

func TestLookupByCode_NotFound(t *testing.T) {
	svc := NewService(&memRepo{products: sampleProducts()}, logging.Discard())

	_, err := svc.LookupByCode(context.Background(), "000")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLookupByCode_Empty(t *testing.T) {
	svc := NewService(&memRepo{}, logging.Discard())

	_, err := svc.LookupByCode(context.Background(), "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLookupByCode_BackendError(t *testing.T) {
	svc := NewService(&memRepo{err: errors.New("connection refused")}, logging.Discard())

	_, err := svc.LookupByCode(context.Background(), "7790001")
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
}

func TestSearch_MatchesEveryField(t *testing.T) {
	svc := NewService(&memRepo{products: sampleProducts()}, logging.Discard())
	ctx := context.Background()

	cases := map[string]string{
		"yerba":     "Yerba Mate 1kg",
		"CHOCOLATE": "Alfajor",
		"7790003":   "Agua 500ml",
		"golosinas": "Alfajor",
	}
	for query, want := range cases {
		got, err := svc.Search(ctx, query, 0)
		require.NoError(t, err, query)
		require.Len(t, got, 1, query)
		assert.Equal(t, want, got[0].Name, query)
	}
}

func TestSearch_EmptyQueryAndLimit(t *testing.T) {
	svc := NewService(&memRepo{products: sampleProducts()}, logging.Discard())
	ctx := context.Background()

	got, err := svc.Search(ctx, "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.Search(ctx, "779", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetProduct_InvalidID(t *testing.T) {
	svc := NewService(&memRepo{}, logging.Discard())

	_, err := svc.GetProduct(context.Background(), "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
