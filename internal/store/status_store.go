package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// RecordAccountSuccess marks a successful call and resets the failure streak.
func (s *SQLiteStore) RecordAccountSuccess(
	ctx context.Context,
	accountID, operation string,
	at time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_status (
			account_id, last_operation, last_success_at, last_error, consecutive_failures
		) VALUES (?, ?, ?, '', 0)
		ON CONFLICT(account_id) DO UPDATE SET
			last_operation = excluded.last_operation,
			last_success_at = excluded.last_success_at,
			last_error = '',
			consecutive_failures = 0`,
		accountID, operation, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording success for %s: %w", accountID, err)
	}
	return nil
}

// RecordAccountFailure stores the failure reason and extends the streak.
func (s *SQLiteStore) RecordAccountFailure(
	ctx context.Context,
	accountID, operation, reason string,
	at time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_status (
			account_id, last_operation, last_failure_at, last_error, consecutive_failures
		) VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(account_id) DO UPDATE SET
			last_operation = excluded.last_operation,
			last_failure_at = excluded.last_failure_at,
			last_error = excluded.last_error,
			consecutive_failures = account_status.consecutive_failures + 1`,
		accountID, operation, at.UTC(), reason,
	)
	if err != nil {
		return fmt.Errorf("recording failure for %s: %w", accountID, err)
	}
	return nil
}

// GetAccountStatus returns one account's status, or ErrNotFound when the
// account has never been called.
func (s *SQLiteStore) GetAccountStatus(
	ctx context.Context,
	accountID string,
) (*model.AccountStatus, error) {
	var st model.AccountStatus
	err := s.db.GetContext(ctx, &st, "SELECT * FROM account_status WHERE account_id = ?", accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account status %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account status %s: %w", accountID, err)
	}
	return &st, nil
}

// GetAccountStatuses returns every recorded status ordered by account id.
func (s *SQLiteStore) GetAccountStatuses(ctx context.Context) ([]model.AccountStatus, error) {
	var out []model.AccountStatus
	if err := s.db.SelectContext(ctx, &out, "SELECT * FROM account_status ORDER BY account_id"); err != nil {
		return nil, fmt.Errorf("querying account statuses: %w", err)
	}
	return out, nil
}
