package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
)

const billColumns = `b.id, b.account_id, b.amount, b.status, b.due_date, b.issued_date,
	b.description, b.settlement_ref, b.payment_method, b.pending_since, b.created_at`

// CreateBill persists a new bill. Bills always start UNPAID.
func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if !bill.Amount.IsPositive() {
		return fmt.Errorf("bill amount %s: %w", bill.Amount, storage.ErrInvalidAmount)
	}
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	bill.Status = models.BillStatusUnpaid

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (id, account_id, amount, status, due_date, issued_date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.AccountID, bill.Amount.String(), string(bill.Status),
		bill.DueDate.Unix(), unixOrNull(bill.IssuedDate), bill.Description,
		bill.CreatedAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	var r billRow
	err := s.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bills b WHERE b.id = ?`,
		billID,
	).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return r.model(), nil
}

// LoadBillWithAccount retrieves a bill joined with its owning account.
func (s *SQLiteStore) LoadBillWithAccount(ctx context.Context, billID string) (*models.Bill, *models.Account, error) {
	var br billRow
	var ar accountRow
	dest := append(br.dest(), ar.dest()...)

	err := s.db.QueryRowContext(ctx,
		`SELECT `+billColumns+`, `+accountColumns+`
		 FROM bills b JOIN accounts a ON a.id = b.account_id
		 WHERE b.id = ?`,
		billID,
	).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bill with account: %w", err)
	}
	return br.model(), ar.model(), nil
}

// ListBillsByAccount retrieves the account's bills ordered by due date.
func (s *SQLiteStore) ListBillsByAccount(ctx context.Context, accountID string, statuses ...models.BillStatus) ([]*models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills b WHERE b.account_id = ?`
	args := []any{accountID}
	if len(statuses) > 0 {
		query += ` AND b.status IN (?` + repeatPlaceholder(len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY b.due_date ASC, b.id`

	return s.queryBills(ctx, query, args...)
}

// ListPendingBills retrieves bills stuck in PENDING_SETTLEMENT since before olderThan.
func (s *SQLiteStore) ListPendingBills(ctx context.Context, olderThan time.Time) ([]*models.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills b
		 WHERE b.status = ? AND b.pending_since <= ?
		 ORDER BY b.pending_since ASC, b.id`,
		string(models.BillStatusPendingSettlement), olderThan.Unix(),
	)
}

// CountPendingBills returns the number of bills awaiting settlement.
func (s *SQLiteStore) CountPendingBills(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE status = ?`,
		string(models.BillStatusPendingSettlement),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending bills: %w", err)
	}
	return n, nil
}

// TransitionBill performs a conditional status update. PAID is excluded:
// it is only reachable through CommitSettlement so a paid bill always has
// its transaction.
func (s *SQLiteStore) TransitionBill(ctx context.Context, billID string, from, to models.BillStatus) (bool, error) {
	if !from.CanTransitionTo(to) || to == models.BillStatusPaid {
		return false, fmt.Errorf("%s -> %s: %w", from, to, storage.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	var pendingSince sql.NullInt64
	if to == models.BillStatusPendingSettlement {
		pendingSince = unixOrNull(now)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET status = ?, pending_since = COALESCE(?, pending_since), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), pendingSince, now.Unix(), billID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check bill transition: %w", err)
	}
	return n == 1, nil
}

// RecordSettlementReference stores the settlement leg's result on a pending bill.
func (s *SQLiteStore) RecordSettlementReference(ctx context.Context, billID, ref string, method models.PaymentMethod) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET settlement_ref = ?, payment_method = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND settlement_ref IS NULL`,
		ref, string(method), time.Now().Unix(), billID, string(models.BillStatusPendingSettlement),
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settlement reference update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", billID, storage.ErrStatusConflict)
	}
	return nil
}

func (s *SQLiteStore) queryBills(ctx context.Context, query string, args ...any) ([]*models.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		var r billRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, r.model())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}
	return bills, nil
}

// billRow holds the nullable columns of a bills row while scanning.
type billRow struct {
	bill         models.Bill
	status       string
	dueDate      int64
	issuedDate   sql.NullInt64
	ref          sql.NullString
	method       sql.NullString
	pendingSince sql.NullInt64
	createdAt    int64
}

func (r *billRow) dest() []any {
	return []any{
		&r.bill.ID, &r.bill.AccountID, &r.bill.Amount, &r.status, &r.dueDate, &r.issuedDate,
		&r.bill.Description, &r.ref, &r.method, &r.pendingSince, &r.createdAt,
	}
}

func (r *billRow) model() *models.Bill {
	bill := r.bill
	bill.Status = models.BillStatus(r.status)
	bill.DueDate = time.Unix(r.dueDate, 0).UTC()
	bill.IssuedDate = timeFromNull(r.issuedDate)
	bill.SettlementRef = r.ref.String
	bill.PaymentMethod = models.PaymentMethod(r.method.String)
	bill.PendingSince = timeFromNull(r.pendingSince)
	bill.CreatedAt = time.Unix(r.createdAt, 0).UTC()
	return &bill
}
