// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/utilipay/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned when a conditional write finds the bill
	// in a different state than the one it was conditioned on.
	ErrStatusConflict = errors.New("bill status conflict")

	// ErrInvalidTransition is returned for a status pair outside
	// UNPAID -> PENDING_SETTLEMENT -> PAID.
	ErrInvalidTransition = errors.New("invalid bill status transition")

	// ErrInvalidAmount is returned when a bill amount is not positive.
	ErrInvalidAmount = errors.New("bill amount must be positive")
)

// Ledger is the slice of the store the settlement flow depends on.
// It is the single source of truth for bill state; callers hold no cached
// copy across calls.
type Ledger interface {
	// LoadBillWithAccount returns the bill and its owning account.
	// Returns ErrNotFound if the bill does not exist.
	LoadBillWithAccount(ctx context.Context, billID string) (*models.Bill, *models.Account, error)

	// TransitionBill moves a bill from one status to another with a single
	// conditional update. It reports whether this call performed the move.
	TransitionBill(ctx context.Context, billID string, from, to models.BillStatus) (bool, error)

	// RecordSettlementReference stores the settlement leg's result on a
	// PENDING_SETTLEMENT bill that has no reference yet.
	// Returns ErrStatusConflict otherwise.
	RecordSettlementReference(ctx context.Context, billID, ref string, method models.PaymentMethod) error

	// CommitSettlement flips the bill from PENDING_SETTLEMENT to PAID and
	// inserts the payment transaction in one atomic unit.
	// Returns ErrStatusConflict (and writes nothing) if the bill is not pending.
	CommitSettlement(ctx context.Context, billID string, txn *models.PaymentTransaction) error

	// ListPendingBills returns bills that entered PENDING_SETTLEMENT before olderThan.
	ListPendingBills(ctx context.Context, olderThan time.Time) ([]*models.Bill, error)
}

// Store defines the full storage surface used by the services.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Ledger

	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns nil, nil when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]*models.Account, error)
	// SetBankLink replaces any existing link on the account.
	SetBankLink(ctx context.Context, accountID string, link *models.BankLink) error

	// CreateBill persists a new UNPAID bill. The ID is generated if empty.
	CreateBill(ctx context.Context, bill *models.Bill) error
	GetBill(ctx context.Context, billID string) (*models.Bill, error)
	// ListBillsByAccount returns the account's bills, optionally filtered by
	// status, ordered by due date ascending.
	ListBillsByAccount(ctx context.Context, accountID string, statuses ...models.BillStatus) ([]*models.Bill, error)
	CountPendingBills(ctx context.Context) (int, error)

	GetTransaction(ctx context.Context, txnID string) (*models.PaymentTransaction, error)
	ListTransactionsByBill(ctx context.Context, billID string) ([]*models.PaymentTransaction, error)

	AddUsage(ctx context.Context, usage *models.UsageLog) error
	// ListUsageByAccount returns the most recent readings first.
	ListUsageByAccount(ctx context.Context, accountID string, limit int) ([]*models.UsageLog, error)

	// Close releases any resources held by the store.
	Close() error
}
