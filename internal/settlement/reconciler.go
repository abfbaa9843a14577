package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/utilipay/internal/metrics"
	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
)

// Reconciler completes settlements whose leg finished but whose commit did
// not. It is an operator path: no ownership or funds checks are made.
//
// With WithLegRerun it also recovers bills left pending without a reference,
// either because the leg failed or because the process died before the
// reference was recorded.
type Reconciler struct {
	ledger     storage.Ledger
	recorder   *Recorder
	workers    int
	logger     *slog.Logger
	leg        Leg
	rerunAfter time.Duration
}

// SweepReport summarises one Sweep.
type SweepReport struct {
	Scanned     int
	Committed   int
	Skipped     int
	NeedsReview int
	Failed      int
}

// NewReconciler creates a Reconciler that commits at most workers bills at once.
func NewReconciler(ledger storage.Ledger, workers int, logger *slog.Logger) *Reconciler {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		ledger:   ledger,
		recorder: NewRecorder(ledger),
		workers:  workers,
		logger:   logger,
	}
}

// WithLegRerun lets the reconciler run leg again for bills that have been
// pending without a reference for at least after. Younger bills may still
// belong to an in-flight request and are left alone.
func (r *Reconciler) WithLegRerun(leg Leg, after time.Duration) *Reconciler {
	r.leg = leg
	r.rerunAfter = after
	return r
}

// Reconcile commits a single pending bill using its recorded reference, or a
// fresh one when the leg is rerun.
func (r *Reconciler) Reconcile(ctx context.Context, billID string) (*Result, error) {
	res, err := r.reconcile(ctx, billID)
	outcome := Outcome(err)
	metrics.IncReconcile(outcome)

	switch outcome {
	case "settled":
		r.logger.Info("Reconciled pending bill", "bill_id", billID, "transaction_id", res.TransactionID)
	case "needs_review":
		r.logger.Warn("Pending bill has no settlement reference", "bill_id", billID)
	case "commit_failed":
		r.logger.Error("Reconcile failed", "bill_id", billID, "error", err)
	default:
		r.logger.Debug("Reconcile skipped", "bill_id", billID, "outcome", outcome, "error", err)
	}
	return res, err
}

func (r *Reconciler) reconcile(ctx context.Context, billID string) (*Result, error) {
	bill, _, err := r.ledger.LoadBillWithAccount(ctx, billID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, billID)
		}
		return nil, fmt.Errorf("failed to load bill: %w", err)
	}

	switch bill.Status {
	case models.BillStatusPaid:
		return nil, ErrAlreadyPaid
	case models.BillStatusUnpaid:
		return nil, ErrNotPending
	}
	if bill.SettlementRef == "" {
		return r.rerunLeg(ctx, bill)
	}
	return commitPending(ctx, r.recorder, bill, bill.SettlementRef, bill.PaymentMethod)
}

// rerunLeg produces a reference for a pending bill that never got one and
// commits it. The reference is recorded conditionally, so a request that
// records first wins and its reference is committed instead.
func (r *Reconciler) rerunLeg(ctx context.Context, bill *models.Bill) (*Result, error) {
	if r.leg == nil {
		return nil, ErrNeedsReview
	}
	if !bill.PendingSince.IsZero() && time.Since(bill.PendingSince) < r.rerunAfter {
		return nil, ErrAlreadyInProgress
	}

	method := bill.PaymentMethod
	if method == "" {
		method = models.PaymentMethodLinkedBank
	}
	r.logger.Info("Re-running settlement leg", "bill_id", bill.ID, "pending_since", bill.PendingSince)

	ref, err := r.leg.Settle(ctx, bill)
	if err != nil {
		return nil, &CommitFailedError{BillID: bill.ID, Err: err}
	}
	err = r.ledger.RecordSettlementReference(ctx, bill.ID, ref, method)
	if errors.Is(err, storage.ErrStatusConflict) {
		current, _, lerr := r.ledger.LoadBillWithAccount(ctx, bill.ID)
		if lerr != nil {
			return nil, fmt.Errorf("failed to reload bill: %w", lerr)
		}
		if current.Status == models.BillStatusPaid {
			return nil, ErrAlreadyPaid
		}
		if current.Status != models.BillStatusPendingSettlement || current.SettlementRef == "" {
			return nil, &CommitFailedError{BillID: bill.ID, Reference: ref, Err: err}
		}
		return commitPending(ctx, r.recorder, current, current.SettlementRef, current.PaymentMethod)
	}
	if err != nil {
		return nil, &CommitFailedError{BillID: bill.ID, Reference: ref, Err: err}
	}
	return commitPending(ctx, r.recorder, bill, ref, method)
}

// Sweep reconciles every bill pending since before olderThan.
func (r *Reconciler) Sweep(ctx context.Context, olderThan time.Time) (SweepReport, error) {
	bills, err := r.ledger.ListPendingBills(ctx, olderThan)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list pending bills: %w", err)
	}

	report := SweepReport{Scanned: len(bills)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, bill := range bills {
		g.Go(func() error {
			_, err := r.Reconcile(gctx, bill.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Committed++
			case errors.Is(err, ErrNeedsReview):
				report.NeedsReview++
			case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrAlreadyInProgress), errors.Is(err, ErrNotPending):
				report.Skipped++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Run sweeps bills pending longer than staleAfter every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started", "interval", interval.String(), "stale_after", staleAfter.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			report, err := r.Sweep(ctx, time.Now().Add(-staleAfter))
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("Reconcile sweep failed", "error", err)
				}
				continue
			}
			if report.Scanned > 0 {
				r.logger.Info("Reconcile sweep finished",
					"scanned", report.Scanned, "committed", report.Committed,
					"skipped", report.Skipped, "needs_review", report.NeedsReview, "failed", report.Failed)
			}
		}
	}
}
