package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/utilipay/internal/models"
)

// AddUsage records a meter reading.
func (s *SQLiteStore) AddUsage(ctx context.Context, usage *models.UsageLog) error {
	if usage.ID == "" {
		usage.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, account_id, date, value, unit) VALUES (?, ?, ?, ?, ?)`,
		usage.ID, usage.AccountID, usage.Date.Unix(), usage.Value, usage.Unit,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// ListUsageByAccount retrieves up to limit readings, most recent first.
func (s *SQLiteStore) ListUsageByAccount(ctx context.Context, accountID string, limit int) ([]*models.UsageLog, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, date, value, unit FROM usage_logs
		 WHERE account_id = ? ORDER BY date DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	var logs []*models.UsageLog
	for rows.Next() {
		log := &models.UsageLog{}
		var date int64
		if err := rows.Scan(&log.ID, &log.AccountID, &date, &log.Value, &log.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		log.Date = time.Unix(date, 0).UTC()
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage logs: %w", err)
	}
	return logs, nil
}
