// Package settlement pays utility bills: it checks funds on the linked bank
// account, moves the bill through UNPAID -> PENDING_SETTLEMENT -> PAID and
// records exactly one payment transaction per bill.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/metrics"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
)

// BalanceChecker reports the spendable balance behind a credential.
// Implemented by *balance.Oracle.
type BalanceChecker interface {
	AvailableBalance(ctx context.Context, cred balance.Credential) (decimal.Decimal, error)
}

// SettleRequest identifies the bill, the authenticated payer and the
// payment method tag. An empty Method means LINKED_BANK.
type SettleRequest struct {
	BillID string
	UserID string
	Method models.PaymentMethod
}

// Result describes a committed settlement.
type Result struct {
	BillID              string
	TransactionID       string
	SettlementReference string
	Amount              decimal.Decimal
	Method              models.PaymentMethod
	SettledAt           time.Time
}

// Orchestrator runs the settlement flow. It keeps no per-bill state; the
// ledger is the only source of truth.
type Orchestrator struct {
	ledger   storage.Ledger
	oracle   BalanceChecker
	leg      Leg
	recorder *Recorder
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(ledger storage.Ledger, oracle BalanceChecker, leg Leg, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		ledger:   ledger,
		oracle:   oracle,
		leg:      leg,
		recorder: NewRecorder(ledger),
		logger:   logger,
	}
}

// Settle pays the bill on behalf of req.UserID.
//
// Validation failures leave the ledger untouched. Once the bill is
// PENDING_SETTLEMENT the flow no longer observes cancellation of ctx, and
// any failure is reported as a *CommitFailedError with the bill left
// pending. Retrying a pending bill whose settlement reference was recorded
// completes the commit without running the leg again.
func (o *Orchestrator) Settle(ctx context.Context, req SettleRequest) (*Result, error) {
	start := time.Now()
	res, err := o.settle(ctx, req)
	outcome := Outcome(err)
	elapsed := time.Since(start)
	metrics.ObserveSettlement(outcome, elapsed)

	attrs := []any{"bill_id", req.BillID, "user_id", req.UserID, "outcome", outcome, "duration_ms", elapsed.Milliseconds()}
	switch outcome {
	case "settled":
		o.logger.Info("Bill settled", append(attrs, "transaction_id", res.TransactionID, "settlement_ref", res.SettlementReference)...)
	case "commit_failed", "internal":
		o.logger.Error("Settlement failed", append(attrs, "error", err)...)
	default:
		o.logger.Warn("Settlement rejected", append(attrs, "error", err)...)
	}
	return res, err
}

func (o *Orchestrator) settle(ctx context.Context, req SettleRequest) (*Result, error) {
	method := req.Method
	if method == "" {
		method = models.PaymentMethodLinkedBank
	}

	bill, account, err := o.ledger.LoadBillWithAccount(ctx, req.BillID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.BillID)
		}
		return nil, fmt.Errorf("failed to load bill: %w", err)
	}
	if account.UserID != req.UserID {
		return nil, ErrUnauthorized
	}

	switch bill.Status {
	case models.BillStatusPaid:
		return nil, ErrAlreadyPaid
	case models.BillStatusPendingSettlement:
		if bill.SettlementRef == "" {
			return nil, ErrAlreadyInProgress
		}
		o.logger.Info("Resuming settlement commit", "bill_id", bill.ID, "settlement_ref", bill.SettlementRef)
		return commitPending(context.WithoutCancel(ctx), o.recorder, bill, bill.SettlementRef, bill.PaymentMethod)
	}

	if !account.HasLinkedBank() {
		return nil, ErrNoLinkedAccount
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	available, err := o.oracle.AvailableBalance(ctx, balance.Credential{
		AccessToken: account.Link.AccessToken,
		AccountID:   account.Link.AccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBalanceCheckFailed, err)
	}
	if available.LessThan(bill.Amount) {
		return nil, &InsufficientFundsError{Required: bill.Amount, Available: available}
	}

	moved, err := o.ledger.TransitionBill(ctx, bill.ID, models.BillStatusUnpaid, models.BillStatusPendingSettlement)
	if err != nil {
		return nil, fmt.Errorf("failed to mark bill pending: %w", err)
	}
	if !moved {
		return nil, o.lostTransition(ctx, bill.ID)
	}

	// The bill is pending from here on; the caller can no longer abort.
	ctx = context.WithoutCancel(ctx)

	ref, err := o.leg.Settle(ctx, bill)
	if err != nil {
		return nil, &CommitFailedError{BillID: bill.ID, Err: err}
	}
	if err := o.ledger.RecordSettlementReference(ctx, bill.ID, ref, method); err != nil {
		return nil, &CommitFailedError{BillID: bill.ID, Reference: ref, Err: err}
	}
	return commitPending(ctx, o.recorder, bill, ref, method)
}

// lostTransition explains why another request moved the bill first.
func (o *Orchestrator) lostTransition(ctx context.Context, billID string) error {
	bill, _, err := o.ledger.LoadBillWithAccount(ctx, billID)
	if err != nil {
		return fmt.Errorf("failed to reload bill: %w", err)
	}
	if bill.Status == models.BillStatusPaid {
		return ErrAlreadyPaid
	}
	return ErrAlreadyInProgress
}

// commitPending writes PAID and the transaction for a pending bill whose
// leg already produced ref.
func commitPending(ctx context.Context, recorder *Recorder, bill *models.Bill, ref string, method models.PaymentMethod) (*Result, error) {
	if method == "" {
		method = models.PaymentMethodLinkedBank
	}
	txn, err := recorder.CommitSettlement(ctx, bill.ID, ref, bill.Amount, method)
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			// Only PAID follows PENDING_SETTLEMENT, so another commit won.
			return nil, ErrAlreadyPaid
		}
		return nil, &CommitFailedError{BillID: bill.ID, Reference: ref, Err: err}
	}
	return &Result{
		BillID:              bill.ID,
		TransactionID:       txn.ID,
		SettlementReference: txn.SettlementRef,
		Amount:              txn.Amount,
		Method:              txn.PaymentMethod,
		SettledAt:           txn.CreatedAt,
	}, nil
}
