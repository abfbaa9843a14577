package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const historySheet = "history"

// HistoryRow is one bill or payment line of the history export.
type HistoryRow struct {
	Date          time.Time
	Kind          string
	ServiceType   string
	Description   string
	Amount        decimal.Decimal
	Status        string
	PaymentMethod string
	SettlementRef string
}

var historyHeader = []string{"Date", "Type", "Service", "Description", "Amount", "Status", "Payment Method", "Settlement Reference"}

// HistoryFilename returns the download name for a history export.
func HistoryFilename(now time.Time) string {
	return fmt.Sprintf("payment-history-%s.xlsx", now.Format("2006-01-02"))
}

// BuildHistoryXLSX renders rows into a single-sheet workbook. Amounts are
// written as two-place decimal strings.
func BuildHistoryXLSX(rows []HistoryRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("receipt: rename sheet: %w", err)
	}

	header := make([]any, len(historyHeader))
	for i, h := range historyHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("receipt: write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			r.Date.UTC().Format("2006-01-02"),
			r.Kind,
			r.ServiceType,
			r.Description,
			r.Amount.StringFixed(2),
			r.Status,
			r.PaymentMethod,
			r.SettlementRef,
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("receipt: write row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(historySheet, "D", "D", 28)
	_ = f.SetColWidth(historySheet, "H", "H", 70)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("receipt: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
