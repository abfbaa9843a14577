package receipt

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmynk/utilipay/internal/models"
)

func TestBuildPDF(t *testing.T) {
	paidAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	r := Receipt{
		Customer: &models.User{Name: "Jane Doe", Email: "jane@example.com"},
		Account:  &models.Account{Type: models.AccountTypeGas, MeterNumber: "GM-42", Address: "100 Alamo Plaza"},
		Bill:     &models.Bill{ID: "bill-1", Amount: decimal.RequireFromString("84.20"), DueDate: paidAt.AddDate(0, 0, 10)},
		Transaction: &models.PaymentTransaction{
			ID:            "0f8fad5b-d9cb-469f-a165-70867728950e",
			SettlementRef: "0x" + string(bytes.Repeat([]byte("ab"), 32)),
			Status:        models.TransactionStatusCryptoSettled,
			PaymentMethod: models.PaymentMethodLinkedBank,
			Amount:        decimal.RequireFromString("84.20"),
			CreatedAt:     paidAt,
		},
	}

	data, err := BuildPDF(r)
	if err != nil {
		t.Fatalf("BuildPDF failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("Expected PDF header, got %q", data[:8])
	}

	if _, err := BuildPDF(Receipt{}); err == nil {
		t.Error("Expected error for empty receipt")
	}
	if got := Filename(r.Transaction.ID); got != "receipt-0f8fad5b.pdf" {
		t.Errorf("Unexpected filename %q", got)
	}
}

func TestBuildHistoryXLSX(t *testing.T) {
	rows := []HistoryRow{
		{
			Date:          time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			Kind:          "payment",
			ServiceType:   "WATER",
			Description:   "Payment Received",
			Amount:        decimal.RequireFromString("42.5"),
			Status:        "CRYPTO_SETTLED",
			PaymentMethod: "LINKED_BANK",
			SettlementRef: "0xabc",
		},
		{
			Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Kind:        "bill",
			ServiceType: "WATER",
			Description: "WATER Bill",
			Amount:      decimal.RequireFromString("42.5"),
			Status:      "PAID",
		},
	}

	data, err := BuildHistoryXLSX(rows)
	if err != nil {
		t.Fatalf("BuildHistoryXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	checks := map[string]string{
		"A1": "Date",
		"H1": "Settlement Reference",
		"A2": "2025-03-14",
		"B2": "payment",
		"E2": "42.50",
		"H2": "0xabc",
		"B3": "bill",
		"F3": "PAID",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(historySheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) failed: %v", cell, err)
		}
		if got != want {
			t.Errorf("Cell %s = %q, want %q", cell, got, want)
		}
	}
}
