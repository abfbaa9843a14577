package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod tags how the customer chose to pay.
type PaymentMethod string

const (
	PaymentMethodSavedInstrument PaymentMethod = "SAVED_INSTRUMENT"
	PaymentMethodLinkedBank      PaymentMethod = "LINKED_BANK"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodSavedInstrument || m == PaymentMethodLinkedBank
}

// TransactionStatus is the state of a payment transaction.
type TransactionStatus string

const (
	TransactionStatusInitiated     TransactionStatus = "INITIATED"
	TransactionStatusCryptoSettled TransactionStatus = "CRYPTO_SETTLED"
)

// PaymentTransaction is the immutable settlement receipt for a bill.
// It is created only as the terminal step of a successful settlement.
type PaymentTransaction struct {
	// ID is the unique identifier for the transaction.
	ID string

	// BillID is the bill this transaction paid.
	BillID string

	// SettlementRef is the 0x-prefixed reference produced by the settlement leg.
	SettlementRef string

	// Status is CRYPTO_SETTLED for every committed transaction.
	Status TransactionStatus

	// PaymentMethod is the method tag supplied by the payer.
	PaymentMethod PaymentMethod

	// Amount is the amount settled, equal to the bill amount.
	Amount decimal.Decimal

	// CreatedAt is the commit time.
	CreatedAt time.Time
}
