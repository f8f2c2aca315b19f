// Package saletest provides an in-memory sales and stock backend for tests.
package saletest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps products and sales in memory with the same all-or-nothing
// stock semantics as the postgres repository.
type Store struct {
	mu       sync.Mutex
	products map[uuid.UUID]*catalog.Product
	sales    []*sale.Sale
	// Now stamps new sales. Defaults to time.Now.
	Now func() time.Time
	// FailRegister, when set, is returned by Register without changing anything.
	FailRegister error
}

func NewStore() *Store {
	return &Store{products: map[uuid.UUID]*catalog.Product{}, Now: time.Now}
}

// AddProduct stores a product and returns it.
func (s *Store) AddProduct(name, barcode string, price decimal.Decimal, stock int) *catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &catalog.Product{ID: uuid.New(), Name: name, Barcode: barcode, Price: price, Stock: stock}
	s.products[p.ID] = p
	cp := *p
	return &cp
}

func (s *Store) Stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

// Catalog exposes the products as a catalog.Repository.
func (s *Store) Catalog() catalog.Repository { return catalogView{s} }

// Sales returns every stored sale, voided ones included.
func (s *Store) Sales() []*sale.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*sale.Sale, 0, len(s.sales))
	for _, sl := range s.sales {
		cp := *sl
		out = append(out, &cp)
	}
	return out
}

// PutSale stores a sale as-is without touching stock.
func (s *Store) PutSale(sl *sale.Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sl
	s.sales = append(s.sales, &cp)
}

func (s *Store) Register(_ context.Context, sl *sale.Sale) (*sale.Sale, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRegister != nil {
		return nil, false, s.FailRegister
	}
	for _, existing := range s.sales {
		if existing.PaymentID == sl.PaymentID {
			cp := *existing
			return &cp, false, nil
		}
	}
	wanted := map[uuid.UUID]int{}
	for _, item := range sl.Items {
		wanted[item.ProductID] += item.Quantity
	}
	for _, item := range sl.Items {
		p, ok := s.products[item.ProductID]
		available := 0
		if ok {
			available = p.Stock
		}
		if available < wanted[item.ProductID] {
			return nil, false, &sale.StockError{ProductID: item.ProductID, Name: item.ProductName, Requested: wanted[item.ProductID], Available: available}
		}
	}
	for id, qty := range wanted {
		s.products[id].Stock -= qty
	}
	stored := *sl
	stored.Items = append([]sale.LineItem(nil), sl.Items...)
	for i := range stored.Items {
		if stored.Items[i].ID == uuid.Nil {
			stored.Items[i].ID = uuid.New()
		}
	}
	stored.Status = sale.StatusRegistered
	stored.CreatedAt = s.Now()
	s.sales = append(s.sales, &stored)
	cp := stored
	return &cp, true, nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.sales {
		if sl.ID == id {
			cp := *sl
			return &cp, nil
		}
	}
	return nil, sale.ErrSaleNotFound
}

func (s *Store) Void(_ context.Context, id uuid.UUID, reason string, at time.Time) (*sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.sales {
		if sl.ID != id {
			continue
		}
		if sl.Status == sale.StatusVoided {
			return nil, sale.ErrAlreadyVoided
		}
		sl.Status = sale.StatusVoided
		sl.VoidReason = reason
		sl.VoidedAt = &at
		for _, item := range sl.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.Stock += item.Quantity
			}
		}
		cp := *sl
		return &cp, nil
	}
	return nil, sale.ErrSaleNotFound
}

func (s *Store) List(_ context.Context, f sale.Filter) ([]*sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*sale.Sale
	for _, sl := range s.sales {
		if !matches(sl, f) {
			continue
		}
		cp := *sl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) TotalsByMethod(_ context.Context, cashierID uuid.UUID, from, to time.Time) (*sale.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := sale.NewTotals()
	for _, sl := range s.sales {
		if sl.CashierID != cashierID || sl.CreatedAt.Before(from) || !sl.CreatedAt.Before(to) {
			continue
		}
		if sl.Status == sale.StatusVoided {
			totals.VoidedCount++
			continue
		}
		totals.Count++
		totals.ByMethod[sl.Method] = totals.ByMethod[sl.Method].Add(sl.Total)
	}
	return totals, nil
}

func (s *Store) QuantitiesSold(_ context.Context, from, to time.Time) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sold := map[uuid.UUID]int{}
	for _, sl := range s.sales {
		if sl.Status == sale.StatusVoided || sl.CreatedAt.Before(from) || !sl.CreatedAt.Before(to) {
			continue
		}
		for _, item := range sl.Items {
			sold[item.ProductID] += item.Quantity
		}
	}
	return sold, nil
}

func matches(sl *sale.Sale, f sale.Filter) bool {
	if f.CashierID != nil && sl.CashierID != *f.CashierID {
		return false
	}
	if f.CashierName != "" && !strings.Contains(strings.ToLower(sl.CashierName), strings.ToLower(f.CashierName)) {
		return false
	}
	if !f.From.IsZero() && sl.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !sl.CreatedAt.Before(f.To) {
		return false
	}
	if f.Status != "" && sl.Status != f.Status {
		return false
	}
	return true
}

type catalogView struct{ s *Store }

func (v catalogView) GetByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (v catalogView) GetByBarcode(_ context.Context, barcode string) (*catalog.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, p := range v.s.products {
		if p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (v catalogView) List(_ context.Context) ([]*catalog.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*catalog.Product, 0, len(v.s.products))
	for _, p := range v.s.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Sale builds a registered sale for seeding reports and shift tests.
func Sale(cashierID uuid.UUID, method payment.Method, total string, at time.Time) *sale.Sale {
	amount := decimal.RequireFromString(total)
	return &sale.Sale{
		ID:        uuid.New(),
		CashierID: cashierID,
		PaymentID: uuid.New(),
		Total:     amount,
		Method:    method,
		Status:    sale.StatusRegistered,
		CreatedAt: at,
		Items: []sale.LineItem{{
			ID: uuid.New(), ProductID: uuid.New(), ProductName: "item", UnitPrice: amount, Quantity: 1,
		}},
	}
}
