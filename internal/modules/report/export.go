package report

import (
	"fmt"
	"io"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var methodOrder = []payment.Method{payment.MethodCash, payment.MethodCard, payment.MethodAsyncWallet}

// WriteShiftXLSX writes the shift report as a workbook with a summary sheet
// and a sales sheet.
func WriteShiftXLSX(w io.Writer, r *ShiftReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary, sales = "Summary", "Sales"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	if _, err := f.NewSheet(sales); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Shift", r.Shift.ID.String()},
		{"Cashier", r.Shift.CashierName},
		{"Opened at", r.Summary.From.Format("2006-01-02 15:04:05")},
		{"Until", r.Summary.To.Format("2006-01-02 15:04:05")},
		{"Status", string(r.Shift.Status)},
		{"Opening float", money(r.Summary.OpeningFloat)},
	}
	for _, m := range methodOrder {
		rows = append(rows, []interface{}{"Sales " + string(m), money(r.Summary.TotalsByMethod[m])})
	}
	rows = append(rows, []interface{}{"Expected cash", money(r.Summary.ExpectedCash)})
	if r.Summary.CountedCash != nil {
		rows = append(rows,
			[]interface{}{"Counted cash", money(*r.Summary.CountedCash)},
			[]interface{}{"Variance", money(*r.Summary.Variance)},
		)
	}
	rows = append(rows,
		[]interface{}{"Sales count", r.Summary.SalesCount},
		[]interface{}{"Voided count", r.VoidedCount},
	)
	if err := writeRows(f, summary, rows); err != nil {
		return err
	}

	saleRows := [][]interface{}{{"Sale", "Time", "Method", "Items", "Total"}}
	for _, s := range r.Sales {
		saleRows = append(saleRows, []interface{}{
			s.ID.String(), s.CreatedAt.Format("15:04:05"), string(s.Method), len(s.Items), money(s.Total),
		})
	}
	if err := writeRows(f, sales, saleRows); err != nil {
		return err
	}
	if err := boldHeader(f, sales, len(saleRows[0])); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteStockXLSX writes one row per product with its discrepancy.
func WriteStockXLSX(w io.Writer, r *StockReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Stock " + r.Date
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"Product", "Barcode", "Current stock", "Sold", "Expected before", "Discrepancy", "Flagged"}}
	for _, l := range r.Lines {
		rows = append(rows, []interface{}{
			l.Name, l.Barcode, l.CurrentStock, l.SoldToday, l.ExpectedStockBefore, l.Discrepancy, l.Flagged,
		})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	if err := boldHeader(f, sheet, len(rows[0])); err != nil {
		return err
	}
	return f.Write(w)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
