// Package service exposes the provider-agnostic entry points: one method
// per logical action, each resolving its target accounts, running the
// backend call through the fan-out engine and recording the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/fanout"
	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
	"github.com/rockfordlhotka/calendar-mcp/internal/routing"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
)

var (
	// ErrUnknownAccount is returned when an explicit account id is not
	// configured.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Defaults applied when a request leaves the count at zero.
const (
	DefaultEmailCount  = 20
	DefaultSearchCount = 20
	DefaultEventCount  = 50
)

// Entry point names, used for logging, metrics, account status and the
// write journal.
const (
	OpListAccounts      = "list_accounts"
	OpGetEmails         = "get_emails"
	OpSearchEmails      = "search_emails"
	OpGetEmailDetail    = "get_email_details"
	OpSendEmail         = "send_email"
	OpListCalendars     = "list_calendars"
	OpGetCalendarEvents = "get_calendar_events"
	OpCreateEvent       = "create_event"
	OpUpdateEvent       = "update_event"
	OpDeleteEvent       = "delete_event"
)

// WriteOutcome is the result of a single-account outbound action.
type WriteOutcome struct {
	Success bool `json:"success"`

	// ID is the message or event the action produced or touched.
	ID string `json:"id,omitempty"`

	AccountUsed  string         `json:"accountUsed,omitempty"`
	CalendarUsed string         `json:"calendarUsed,omitempty"`
	Routing      routing.Reason `json:"routing,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// AccountSummary describes a configured account for listing.
type AccountSummary struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Provider     string   `json:"provider"`
	ProviderKind string   `json:"providerKind,omitempty"`
	Domains      []string `json:"domains"`
	Enabled      bool     `json:"enabled"`
	Priority     int      `json:"priority"`

	// Status is the last recorded outcome, nil when never called or when
	// no store is configured.
	Status *model.AccountStatus `json:"status,omitempty"`
}

// Service implements the entry points. It is safe for concurrent use.
type Service struct {
	accounts *registry.Holder
	engine   *fanout.Engine
	store    store.Store
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStore records account status and journals writes in st.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithMetrics enables write and routing instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for default date windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service over the accounts published by holder.
func New(accounts *registry.Holder, engine *fanout.Engine, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		engine:   engine,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAccounts returns every configured account in registry order,
// including disabled ones, with its last recorded status.
func (s *Service) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	all := s.accounts.Load().All()

	statuses := map[string]model.AccountStatus{}
	if s.store != nil {
		list, err := s.store.GetAccountStatuses(ctx)
		if err != nil {
			s.log.Warn("reading account statuses", zap.Error(err))
		}
		for _, st := range list {
			statuses[st.AccountID] = st
		}
	}

	out := make([]AccountSummary, 0, len(all))
	for _, a := range all {
		sum := AccountSummary{
			ID:          a.ID,
			DisplayName: a.DisplayName,
			Provider:    a.Provider,
			Domains:     a.Domains,
			Enabled:     a.Enabled,
			Priority:    a.Priority,
		}
		if sum.Domains == nil {
			sum.Domains = []string{}
		}
		if kind, ok := a.Kind(); ok {
			sum.ProviderKind = kind.String()
		}
		if st, ok := statuses[a.ID]; ok {
			sum.Status = &st
		}
		out = append(out, sum)
	}
	return out, nil
}

// readTargets resolves the accounts a read fans out to: the named account
// (enabled or not), or every enabled account when accountID is empty. An
// unknown id yields fanout.ErrNoTargets wrapping ErrUnknownAccount.
func (s *Service) readTargets(accountID string) ([]model.Account, error) {
	reg := s.accounts.Load()
	if accountID == "" {
		return reg.Enabled(), nil
	}
	acct, ok := reg.ByID(accountID)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", fanout.ErrNoTargets, ErrUnknownAccount, accountID)
	}
	return []model.Account{acct}, nil
}

// account looks up an explicitly named account.
func (s *Service) account(accountID string) (model.Account, error) {
	acct, ok := s.accounts.Load().ByID(accountID)
	if !ok {
		return model.Account{}, fmt.Errorf("%w: %q", ErrUnknownAccount, accountID)
	}
	return acct, nil
}

// selectAccount picks the account for a write: the named one, or the one
// routing chooses for recipient.
func (s *Service) selectAccount(accountID, recipient string) (model.Account, routing.Reason, error) {
	if accountID != "" {
		acct, err := s.account(accountID)
		return acct, routing.ReasonExplicit, err
	}

	acct, reason, err := routing.Select(s.accounts.Load(), recipient)
	if err != nil {
		return model.Account{}, "", err
	}
	if s.metrics != nil {
		s.metrics.RoutingDecisions.WithLabelValues(string(reason)).Inc()
	}
	s.log.Debug("routed write",
		zap.String("account", acct.ID),
		zap.String("reason", string(reason)),
	)
	return acct, reason, nil
}

// write runs fn against acct and records the outcome.
func (s *Service) write(
	ctx context.Context,
	op string,
	acct model.Account,
	out *WriteOutcome,
	fn func(ctx context.Context, b provider.Backend) (string, error),
) error {
	out.AccountUsed = acct.ID

	var id string
	err := s.engine.Do(ctx, op, acct, func(ctx context.Context, b provider.Backend) error {
		var err error
		id, err = fn(ctx, b)
		return err
	})
	if err != nil {
		out.Error = err.Error()
		s.log.Warn("write failed",
			zap.String("operation", op),
			zap.String("account", acct.ID),
			zap.Error(err),
		)
	} else {
		out.Success = true
		out.ID = id
		s.log.Info("write succeeded",
			zap.String("operation", op),
			zap.String("account", acct.ID),
			zap.String("id", id),
		)
	}

	s.recordWrite(ctx, op, *out)
	return err
}

func (s *Service) recordWrite(ctx context.Context, op string, out WriteOutcome) {
	outcome := "success"
	if !out.Success {
		outcome = "failure"
	}
	if s.metrics != nil {
		s.metrics.Writes.WithLabelValues(op, outcome).Inc()
	}
	if s.store == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	now := s.now()
	rec := model.WriteRecord{
		AccountID: out.AccountUsed,
		Operation: op,
		TargetID:  out.ID,
		Routing:   string(out.Routing),
		Success:   out.Success,
		Error:     out.Error,
		CreatedAt: now,
	}
	if err := s.store.AppendWrite(ctx, rec); err != nil {
		s.log.Error("journaling write", zap.String("operation", op), zap.Error(err))
	}
	s.recordAccount(ctx, op, out.AccountUsed, out.Error, now)
}

// recordStatuses updates account status from a fan-out result.
func recordStatuses[T any](ctx context.Context, s *Service, op string, res *fanout.Result[T]) {
	if s.store == nil || res == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	reasons := make(map[string]string, len(res.Failures))
	for _, f := range res.Failures {
		reasons[f.AccountID] = string(f.Kind) + ": " + f.Reason
	}
	for _, id := range res.Accounts {
		s.recordAccount(ctx, op, id, reasons[id], now)
	}
}

func (s *Service) recordAccount(ctx context.Context, op, accountID, failure string, at time.Time) {
	var err error
	if failure == "" {
		err = s.store.RecordAccountSuccess(ctx, accountID, op, at)
	} else {
		err = s.store.RecordAccountFailure(ctx, accountID, op, failure, at)
	}
	if err != nil {
		s.log.Error("recording account status",
			zap.String("account", accountID),
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
