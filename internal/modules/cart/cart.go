// Package cart accumulates line items for the sale in progress.
//
// A Cart performs no stock checks and no network writes. Stock is validated
// when the sale is registered, so two tills may over-commit the same product
// and one of them will fail at confirmation.
package cart

import (
	"context"
	"math"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductLookup resolves a scanned code into a product.
type ProductLookup interface {
	LookupByCode(ctx context.Context, code string) (*catalog.Product, error)
}

type LineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Snapshot is an immutable view of the cart returned by every mutation.
type Snapshot struct {
	Items []SnapshotItem  `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type SnapshotItem struct {
	LineItem
	LineTotal decimal.Decimal `json:"line_total"`
}

// Cart is owned by a single session and is not safe for concurrent use.
type Cart struct {
	lookup ProductLookup
	items  []LineItem
}

func New(lookup ProductLookup) *Cart {
	return &Cart{lookup: lookup}
}

// AddByCode looks up code and adds one unit of the product.
func (c *Cart) AddByCode(ctx context.Context, code string) (Snapshot, error) {
	p, err := c.lookup.LookupByCode(ctx, code)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.AddByLookup(p), nil
}

// AddByLookup adds one unit of a product chosen from search results.
func (c *Cart) AddByLookup(p *catalog.Product) Snapshot {
	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity++
			return c.Snapshot()
		}
	}
	c.items = append(c.items, LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   p.Barcode,
		UnitPrice: p.Price.Round(2),
		Quantity:  1,
	})
	return c.Snapshot()
}

// SetQuantity replaces the quantity of a line. Values that are not a number
// or below one become one.
func (c *Cart) SetQuantity(productID uuid.UUID, qty float64) (Snapshot, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return c.Snapshot(), apperr.New(apperr.KindNotFound, "product %s is not in the cart", productID)
	}
	c.items[i].Quantity = NormalizeQuantity(qty)
	return c.Snapshot(), nil
}

func (c *Cart) Remove(productID uuid.UUID) Snapshot {
	if i := c.indexOf(productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	return c.Snapshot()
}

func (c *Cart) Clear() Snapshot {
	c.items = nil
	return c.Snapshot()
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []LineItem {
	return append([]LineItem(nil), c.items...)
}

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Total is recomputed from the lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.items {
		total = total.Add(li.LineTotal())
	}
	return total
}

func (c *Cart) Snapshot() Snapshot {
	s := Snapshot{Items: make([]SnapshotItem, 0, len(c.items)), Total: c.Total()}
	for _, li := range c.items {
		s.Items = append(s.Items, SnapshotItem{LineItem: li, LineTotal: li.LineTotal()})
		s.Count += li.Quantity
	}
	return s
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// NormalizeQuantity floors qty to an integer of at least one.
func NormalizeQuantity(qty float64) int {
	if math.IsNaN(qty) || qty < 1 {
		return 1
	}
	if qty > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(qty))
}
