package report

import (
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/shift"
	"github.com/google/uuid"
)

// ShiftReport is a shift reconciliation recomputed from persisted sales.
type ShiftReport struct {
	Shift       *shift.Shift   `json:"shift"`
	Summary     *shift.Summary `json:"summary"`
	Sales       []*sale.Sale   `json:"sales"`
	VoidedCount int            `json:"voided_count"`
}

// ShiftHeadline is one row of the shift history.
type ShiftHeadline struct {
	Shift   *shift.Shift   `json:"shift"`
	Summary *shift.Summary `json:"summary"`
}

// StockLine compares a product's current stock with what it should have been
// before the day's non-voided sales.
type StockLine struct {
	ProductID           uuid.UUID `json:"product_id"`
	Name                string    `json:"name"`
	Barcode             string    `json:"barcode,omitempty"`
	CurrentStock        int       `json:"current_stock"`
	SoldToday           int       `json:"sold_today"`
	ExpectedStockBefore int       `json:"expected_stock_before"`
	Discrepancy         int       `json:"discrepancy"`
	Flagged             bool      `json:"flagged"`
}

type StockReport struct {
	Date         string      `json:"date"`
	From         time.Time   `json:"from"`
	To           time.Time   `json:"to"`
	Lines        []StockLine `json:"lines"`
	FlaggedCount int         `json:"flagged_count"`
}

// LowStockReport mirrors the stock-control dashboard.
type LowStockReport struct {
	Limit         int                `json:"limit"`
	TotalProducts int                `json:"total_products"`
	OutOfStock    int                `json:"out_of_stock"`
	LowStock      int                `json:"low_stock"`
	Products      []*catalog.Product `json:"products"`
}
