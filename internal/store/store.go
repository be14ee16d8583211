package store

import (
	"context"
	"errors"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// WriteFilter controls filtering and pagination for journal queries.
type WriteFilter struct {
	AccountID *string // exact account id, or nil (all)
	Operation *string // entry point name, or nil (all)
	Since     *time.Time
	Limit     int
	Offset    int
}

// Store defines the persistence interface for per-account health and the
// journal of outbound actions.
type Store interface {
	// === Account status ===

	RecordAccountSuccess(ctx context.Context, accountID, operation string, at time.Time) error
	RecordAccountFailure(ctx context.Context, accountID, operation, reason string, at time.Time) error
	GetAccountStatus(ctx context.Context, accountID string) (*model.AccountStatus, error)
	GetAccountStatuses(ctx context.Context) ([]model.AccountStatus, error)

	// === Write journal ===

	AppendWrite(ctx context.Context, rec model.WriteRecord) error
	GetWrites(ctx context.Context, filter WriteFilter) ([]model.WriteRecord, error)
	PruneWrites(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
