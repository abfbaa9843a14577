package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("bill not found")
	ErrUnauthorized           = errors.New("bill does not belong to user")
	ErrAlreadyPaid            = errors.New("bill already paid")
	ErrAlreadyInProgress      = errors.New("bill settlement already in progress")
	ErrNoLinkedAccount        = errors.New("no linked bank account")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrBalanceCheckFailed     = errors.New("balance check failed")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrSettlementCommitFailed = errors.New("settlement commit failed")

	// ErrNotPending is returned by the reconciler for bills that were never
	// moved to PENDING_SETTLEMENT.
	ErrNotPending = errors.New("bill is not pending settlement")

	// ErrNeedsReview is returned by the reconciler for a pending bill with no
	// settlement reference when it is not allowed to re-run the leg.
	ErrNeedsReview = errors.New("pending bill has no settlement reference")
)

// InsufficientFundsError reports the amounts behind a failed funds guard.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Shortfall is how much more the account needs.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// CommitFailedError is returned once a bill is PENDING_SETTLEMENT but the
// flow could not reach PAID. Reference is empty if the leg never produced one.
type CommitFailedError struct {
	BillID    string
	Reference string
	Err       error
}

func (e *CommitFailedError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("settlement of bill %s failed before a reference was produced: %v", e.BillID, e.Err)
	}
	return fmt.Sprintf("settlement of bill %s (ref %s) not committed: %v", e.BillID, e.Reference, e.Err)
}

func (e *CommitFailedError) Is(target error) bool {
	return target == ErrSettlementCommitFailed
}

func (e *CommitFailedError) Unwrap() error {
	return e.Err
}

// Outcome maps a Settle or Reconcile error to a stable tag for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrAlreadyInProgress):
		return "already_in_progress"
	case errors.Is(err, ErrNoLinkedAccount):
		return "no_linked_account"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, ErrBalanceCheckFailed):
		return "balance_check_failed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrSettlementCommitFailed):
		return "commit_failed"
	case errors.Is(err, ErrNotPending):
		return "not_pending"
	case errors.Is(err, ErrNeedsReview):
		return "needs_review"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
