package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is a bill's position in the payment lifecycle.
type BillStatus string

const (
	BillStatusUnpaid            BillStatus = "UNPAID"
	BillStatusPendingSettlement BillStatus = "PENDING_SETTLEMENT"
	BillStatusPaid              BillStatus = "PAID"
)

// Valid reports whether s is a known status.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPendingSettlement, BillStatusPaid:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next follows
// UNPAID -> PENDING_SETTLEMENT -> PAID. PAID is terminal.
func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	switch s {
	case BillStatusUnpaid:
		return next == BillStatusPendingSettlement
	case BillStatusPendingSettlement:
		return next == BillStatusPaid
	}
	return false
}

// Open reports whether the bill still counts toward the balance due.
func (s BillStatus) Open() bool {
	return s == BillStatusUnpaid || s == BillStatusPendingSettlement
}

// Bill represents an amount due on a utility account.
type Bill struct {
	// ID is the unique identifier for the bill.
	ID string

	// AccountID is the account the bill was issued against.
	AccountID string

	// Amount is the positive amount due. Immutable after creation.
	Amount decimal.Decimal

	// Status is the lifecycle state. Only the settlement flow mutates it.
	Status BillStatus

	// DueDate is when payment is due.
	DueDate time.Time

	// IssuedDate is when the bill was issued. Zero if unknown.
	IssuedDate time.Time

	// Description is an optional human-readable label.
	Description string

	// SettlementRef is the settlement leg's reference, recorded while the
	// bill is PENDING_SETTLEMENT so a failed commit can be completed later.
	SettlementRef string

	// PaymentMethod is the method tag recorded alongside SettlementRef.
	PaymentMethod PaymentMethod

	// PendingSince is when the bill entered PENDING_SETTLEMENT. Zero otherwise.
	PendingSince time.Time

	// CreatedAt is when the bill row was created.
	CreatedAt time.Time
}

// Label returns the description, falling back to "<TYPE> Bill".
func (b *Bill) Label(accountType AccountType) string {
	if b.Description != "" {
		return b.Description
	}
	return string(accountType) + " Bill"
}
