package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// AppendWrite journals one outbound action. Generates a UUID if ID is
// empty and stamps CreatedAt if it is zero.
func (s *SQLiteStore) AppendWrite(ctx context.Context, rec model.WriteRecord) error {
	if strings.TrimSpace(rec.Operation) == "" {
		return fmt.Errorf("write record operation must not be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO write_journal (
			id, account_id, operation, target_id, routing, success, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.Operation, rec.TargetID, rec.Routing,
		boolToInt(rec.Success), rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending write %s: %w", rec.ID, err)
	}
	return nil
}

// GetWrites returns journaled actions matching filter, newest first.
func (s *SQLiteStore) GetWrites(ctx context.Context, filter WriteFilter) ([]model.WriteRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Operation != nil {
		conditions = append(conditions, "operation = ?")
		args = append(args, *filter.Operation)
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT * FROM write_journal"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var out []model.WriteRecord
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("querying writes: %w", err)
	}
	return out, nil
}

// PruneWrites deletes journal entries older than before and reports how
// many were removed.
func (s *SQLiteStore) PruneWrites(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM write_journal WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning writes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning writes: %w", err)
	}
	return n, nil
}
