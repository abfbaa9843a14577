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

const accountColumns = `a.id, a.user_id, a.type, a.meter_number, a.address,
	a.bank_access_token, a.bank_item_id, a.bank_account_id, a.bank_name, a.bank_mask,
	a.bank_linked_at, a.created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateAccount persists a new utility account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if !account.Type.Valid() {
		return fmt.Errorf("invalid account type %q", account.Type)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, type, meter_number, address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.UserID, string(account.Type), account.MeterNumber,
		account.Address, account.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	if account.Link != nil {
		return s.SetBankLink(ctx, account.ID, account.Link)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = ?`,
		accountID,
	)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccountsByUser retrieves every account owned by the user, oldest first.
func (s *SQLiteStore) ListAccountsByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.user_id = ? ORDER BY a.created_at, a.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// SetBankLink stores the link on the account, overwriting any previous one.
func (s *SQLiteStore) SetBankLink(ctx context.Context, accountID string, link *models.BankLink) error {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
		 SET bank_access_token = ?, bank_item_id = ?, bank_account_id = ?,
		     bank_name = ?, bank_mask = ?, bank_linked_at = ?
		 WHERE id = ?`,
		link.AccessToken, nullString(link.ItemID), nullString(link.AccountID),
		nullString(link.InstitutionName), nullString(link.Mask), link.LinkedAt.Unix(),
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to set bank link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check bank link update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	return nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var r accountRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.model(), nil
}

// accountRow holds the nullable columns of an accounts row while scanning.
type accountRow struct {
	account       models.Account
	accountType   string
	token         sql.NullString
	itemID        sql.NullString
	bankAccountID sql.NullString
	bankName      sql.NullString
	mask          sql.NullString
	linkedAt      sql.NullInt64
	createdAt     int64
}

func (r *accountRow) dest() []any {
	return []any{
		&r.account.ID, &r.account.UserID, &r.accountType, &r.account.MeterNumber, &r.account.Address,
		&r.token, &r.itemID, &r.bankAccountID, &r.bankName, &r.mask,
		&r.linkedAt, &r.createdAt,
	}
}

func (r *accountRow) model() *models.Account {
	account := r.account
	account.Type = models.AccountType(r.accountType)
	account.CreatedAt = time.Unix(r.createdAt, 0).UTC()
	if r.token.Valid && r.token.String != "" {
		account.Link = &models.BankLink{
			AccessToken:     r.token.String,
			ItemID:          r.itemID.String,
			AccountID:       r.bankAccountID.String,
			InstitutionName: r.bankName.String,
			Mask:            r.mask.String,
			LinkedAt:        timeFromNull(r.linkedAt),
		}
	}
	return &account
}
