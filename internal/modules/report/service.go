package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/shift"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	moduleName   = "report"
	dateLayout   = "2006-01-02"
	historyLimit = 50
)

// Service builds read-only reconciliation reports. Nothing here mutates stock or shifts.
type Service interface {
	ShiftReport(ctx context.Context, shiftID uuid.UUID) (*ShiftReport, error)
	ShiftHistory(ctx context.Context, cashierID *uuid.UUID, limit int) ([]ShiftHeadline, error)
	// StockReport takes a YYYY-MM-DD date in the store time zone.
	StockReport(ctx context.Context, date string) (*StockReport, error)
	LowStock(ctx context.Context) (*LowStockReport, error)
}

// Shifts is the part of the shift ledger the reporter reads.
type Shifts interface {
	Get(ctx context.Context, id uuid.UUID) (*shift.Shift, error)
	List(ctx context.Context, f shift.Filter) ([]*shift.Shift, error)
	Summarize(ctx context.Context, s *shift.Shift) (*shift.Summary, error)
}

// Sales is the read side of the sale service.
type Sales interface {
	ListForCashierBetween(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]*sale.Sale, error)
	QuantitiesSold(ctx context.Context, from, to time.Time) (map[uuid.UUID]int, error)
}

type Products interface {
	ListProducts(ctx context.Context) ([]*catalog.Product, error)
}

type service struct {
	shifts        Shifts
	sales         Sales
	products      Products
	loc           *time.Location
	lowStockLimit int
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewService(shifts Shifts, sales Sales, products Products, loc *time.Location, lowStockLimit int, logger logrus.FieldLogger) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		shifts:        shifts,
		sales:         sales,
		products:      products,
		loc:           loc,
		lowStockLimit: lowStockLimit,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *service) ShiftReport(ctx context.Context, shiftID uuid.UUID) (*ShiftReport, error) {
	sh, err := s.shifts.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	summary, err := s.shifts.Summarize(ctx, sh)
	if err != nil {
		return nil, err
	}
	all, err := s.sales.ListForCashierBetween(ctx, sh.CashierID, summary.From, summary.To)
	if err != nil {
		logging.LogError(s.logger, moduleName, "ShiftReport", "list shift sales", shiftID.String(), err)
		return nil, fmt.Errorf("list shift sales: %w", err)
	}

	report := &ShiftReport{Shift: sh, Summary: summary, Sales: []*sale.Sale{}}
	for _, sl := range all {
		if sl.Status == sale.StatusVoided {
			report.VoidedCount++
			continue
		}
		report.Sales = append(report.Sales, sl)
	}
	return report, nil
}

func (s *service) ShiftHistory(ctx context.Context, cashierID *uuid.UUID, limit int) ([]ShiftHeadline, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	shifts, err := s.shifts.List(ctx, shift.Filter{CashierID: cashierID, Limit: limit})
	if err != nil {
		return nil, err
	}
	history := make([]ShiftHeadline, 0, len(shifts))
	for _, sh := range shifts {
		summary, err := s.shifts.Summarize(ctx, sh)
		if err != nil {
			return nil, err
		}
		history = append(history, ShiftHeadline{Shift: sh, Summary: summary})
	}
	return history, nil
}

func (s *service) StockReport(ctx context.Context, date string) (*StockReport, error) {
	if date == "" {
		date = s.now().In(s.loc).Format(dateLayout)
	}
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "date must be YYYY-MM-DD")
	}
	from, to := day, day.AddDate(0, 0, 1)

	sold, err := s.sales.QuantitiesSold(ctx, from, to)
	if err != nil {
		logging.LogError(s.logger, moduleName, "StockReport", "sum sold quantities", date, err)
		return nil, fmt.Errorf("sum sold quantities: %w", err)
	}
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	report := &StockReport{Date: date, From: from, To: to, Lines: make([]StockLine, 0, len(products))}
	for _, p := range products {
		line := StockLine{
			ProductID:    p.ID,
			Name:         p.Name,
			Barcode:      p.Barcode,
			CurrentStock: p.Stock,
			SoldToday:    sold[p.ID],
		}
		line.ExpectedStockBefore = line.CurrentStock + line.SoldToday
		line.Discrepancy = line.CurrentStock - line.ExpectedStockBefore
		line.Flagged = line.Discrepancy != 0
		if line.Flagged {
			report.FlaggedCount++
		}
		report.Lines = append(report.Lines, line)
	}
	sort.SliceStable(report.Lines, func(i, j int) bool { return report.Lines[i].Name < report.Lines[j].Name })
	return report, nil
}

func (s *service) LowStock(ctx context.Context) (*LowStockReport, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	report := &LowStockReport{Limit: s.lowStockLimit, TotalProducts: len(products), Products: []*catalog.Product{}}
	for _, p := range products {
		switch {
		case p.Stock <= 0:
			report.OutOfStock++
		case p.Stock <= s.lowStockLimit:
			report.LowStock++
		default:
			continue
		}
		report.Products = append(report.Products, p)
	}
	sort.SliceStable(report.Products, func(i, j int) bool { return report.Products[i].Stock < report.Products[j].Stock })
	return report, nil
}
