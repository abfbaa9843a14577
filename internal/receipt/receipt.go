// Package receipt renders payment receipts (PDF) and payment history
// exports (XLSX).
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/mmynk/utilipay/internal/models"
)

const (
	PDFContentType  = "application/pdf"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Receipt is everything printed on a payment receipt.
type Receipt struct {
	Customer    *models.User
	Account     *models.Account
	Bill        *models.Bill
	Transaction *models.PaymentTransaction
}

// Filename returns the download name for a transaction's receipt.
func Filename(txnID string) string {
	short := txnID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("receipt-%s.pdf", short)
}

// BuildPDF renders a one-page receipt.
func BuildPDF(r Receipt) ([]byte, error) {
	if r.Bill == nil || r.Transaction == nil || r.Account == nil {
		return nil, fmt.Errorf("receipt: bill, account and transaction are required")
	}
	txn := r.Transaction

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Payment Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}

	if r.Customer != nil {
		line("Customer", fmt.Sprintf("%s <%s>", r.Customer.Name, r.Customer.Email))
	}
	line("Service", string(r.Account.Type))
	line("Meter", r.Account.MeterNumber)
	if r.Account.Address != "" {
		line("Service address", r.Account.Address)
	}
	pdf.Ln(4)

	line("Bill", r.Bill.Label(r.Account.Type))
	line("Due date", r.Bill.DueDate.Format("Jan 2, 2006"))
	line("Amount paid", "$"+txn.Amount.StringFixed(2))
	line("Payment method", string(txn.PaymentMethod))
	line("Status", string(txn.Status))
	line("Paid at", txn.CreatedAt.UTC().Format(time.RFC1123))
	line("Transaction", txn.ID)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Settlement reference")
	pdf.Ln(6)
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 5, txn.SettlementRef, "1", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
