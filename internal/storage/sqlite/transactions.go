package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage"
)

const transactionColumns = "id, bill_id, settlement_ref, status, payment_method, amount, created_at"

// CommitSettlement marks the bill PAID and inserts its payment transaction
// in a single database transaction.
func (s *SQLiteStore) CommitSettlement(ctx context.Context, billID string, txn *models.PaymentTransaction) error {
	txn.BillID = billID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bills SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.BillStatusPaid), txn.CreatedAt.Unix(), billID,
		string(models.BillStatusPendingSettlement),
	)
	if err != nil {
		return fmt.Errorf("failed to mark bill paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check bill update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", billID, storage.ErrStatusConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, billID, txn.SettlementRef, string(txn.Status), string(txn.PaymentMethod),
		txn.Amount.String(), txn.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a payment transaction by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, txnID string) (*models.PaymentTransaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE id = ?`,
		txnID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", txnID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactionsByBill retrieves all transactions recorded for a bill.
func (s *SQLiteStore) ListTransactionsByBill(ctx context.Context, billID string) ([]*models.PaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE bill_id = ? ORDER BY created_at DESC`,
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.PaymentTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row rowScanner) (*models.PaymentTransaction, error) {
	txn := &models.PaymentTransaction{}
	var status, method string
	var createdAt int64
	err := row.Scan(&txn.ID, &txn.BillID, &txn.SettlementRef, &status, &method, &txn.Amount, &createdAt)
	if err != nil {
		return nil, err
	}
	txn.Status = models.TransactionStatus(status)
	txn.PaymentMethod = models.PaymentMethod(method)
	txn.CreatedAt = time.Unix(createdAt, 0).UTC()
	return txn, nil
}
