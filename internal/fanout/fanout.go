// Package fanout runs one logical operation against many accounts
// concurrently, contains each account's failure, and merges the successful
// results into a single deterministic ordering.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

var (
	// ErrNoTargets is returned when the target account set is empty. It is
	// distinct from a fan-out that ran and found nothing.
	ErrNoTargets = errors.New("no eligible target accounts")

	// ErrCanceled is returned when the caller canceled the whole fan-out.
	ErrCanceled = errors.New("fan-out canceled")
)

// FailureKind classifies why one account did not contribute results.
type FailureKind string

const (
	FailureUnknownProvider FailureKind = "unknown_provider"
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailureTimeout         FailureKind = "timeout"
	FailureCanceled        FailureKind = "canceled"
	FailureBackend         FailureKind = "backend"
)

// Failure records one account's failed contribution.
type Failure struct {
	AccountID string      `json:"accountId"`
	Kind      FailureKind `json:"kind"`
	Reason    string      `json:"reason"`

	// Err is the underlying error, kept for errors.Is checks by callers.
	Err error `json:"-"`
}

// Result is the merged outcome of a fan-out.
type Result[T any] struct {
	// Items holds every successful account's results in the documented
	// order for the operation.
	Items []T `json:"items"`

	// Failures holds one entry per failed account, in target order.
	Failures []Failure `json:"failures"`

	// Accounts lists the ids of every targeted account, in target order.
	Accounts []string `json:"accounts"`
}

// Failed reports whether accountID is among the failures.
func (r *Result[T]) Failed(accountID string) bool {
	return slices.ContainsFunc(r.Failures, func(f Failure) bool { return f.AccountID == accountID })
}

// Call performs an operation against a single account through its backend.
type Call[T any] func(ctx context.Context, b provider.Backend, acct model.Account) ([]T, error)

// Engine executes fan-outs. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	resolver *provider.Resolver
	timeout  time.Duration
	limit    int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithAccountTimeout bounds each per-account call. Zero leaves calls
// bounded only by the request context.
func WithAccountTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMaxConcurrency caps in-flight per-account calls.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine resolving backends through resolver.
func New(resolver *provider.Resolver, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{resolver: resolver, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes call once per account, concurrently, and merges the
// results. cmp defines the merged order and is applied with a stable sort
// after every call has settled, so ties keep target order. A nil cmp keeps
// target order.
//
// Per-account errors never abort siblings; they are reported in
// Result.Failures. Execute itself fails only with ErrNoTargets or, when ctx
// is canceled, ErrCanceled.
func Execute[T any](
	ctx context.Context,
	e *Engine,
	op string,
	accounts []model.Account,
	call Call[T],
	cmp func(a, b T) int,
) (*Result[T], error) {
	if len(accounts) == 0 {
		return nil, ErrNoTargets
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	start := time.Now()
	type slot struct {
		items   []T
		failure *Failure
	}
	slots := make([]slot, len(accounts))

	// Plain Group: one account's error must not cancel the others.
	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, acct := range accounts {
		g.Go(func() error {
			items, failure := runOne(ctx, e, op, acct, call)
			slots[i] = slot{items: items, failure: failure}
			return nil
		})
	}
	_ = g.Wait()

	if e.metrics != nil {
		e.metrics.FanoutDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}

	res := &Result[T]{
		Items:    []T{},
		Failures: []Failure{},
		Accounts: make([]string, 0, len(accounts)),
	}
	for i, s := range slots {
		res.Accounts = append(res.Accounts, accounts[i].ID)
		if s.failure != nil {
			res.Failures = append(res.Failures, *s.failure)
			continue
		}
		res.Items = append(res.Items, s.items...)
	}
	if cmp != nil {
		slices.SortStableFunc(res.Items, cmp)
	}

	e.log.Debug("fan-out complete",
		zap.String("operation", op),
		zap.Int("accounts", len(accounts)),
		zap.Int("items", len(res.Items)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// Do runs a single-account action, such as a write, with the same backend
// resolution, timeout, panic containment and instrumentation as a fan-out
// branch. The returned error is a *FailureError.
func (e *Engine) Do(
	ctx context.Context,
	op string,
	acct model.Account,
	fn func(ctx context.Context, b provider.Backend) error,
) error {
	_, failure := runOne(ctx, e, op, acct, func(ctx context.Context, b provider.Backend, acct model.Account) ([]struct{}, error) {
		return nil, fn(ctx, b)
	})
	if failure != nil {
		return &FailureError{Failure: *failure}
	}
	return nil
}

// FailureError wraps a Failure as an error.
type FailureError struct {
	Failure Failure
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("account %s: %s: %s", e.Failure.AccountID, e.Failure.Kind, e.Failure.Reason)
}

func (e *FailureError) Unwrap() error { return e.Failure.Err }

// Is lets errors.Is match ErrCanceled for canceled actions.
func (e *FailureError) Is(target error) bool {
	return target == ErrCanceled && e.Failure.Kind == FailureCanceled
}

func runOne[T any](
	ctx context.Context,
	e *Engine,
	op string,
	acct model.Account,
	call Call[T],
) (items []T, failure *Failure) {
	started := time.Now()
	providerLabel := "unknown"

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("backend panicked",
				zap.String("operation", op),
				zap.String("account", acct.ID),
				zap.Any("panic", r),
			)
			items = nil
			failure = &Failure{AccountID: acct.ID, Kind: FailureBackend, Reason: fmt.Sprintf("panic: %v", r)}
		}

		outcome := "ok"
		if failure != nil {
			outcome = string(failure.Kind)
		}
		if e.metrics != nil {
			e.metrics.ObserveCall(op, providerLabel, outcome, time.Since(started))
		}
	}()

	b, err := e.resolver.ForAccount(acct)
	if err != nil {
		e.log.Warn("account skipped",
			zap.String("operation", op),
			zap.String("account", acct.ID),
			zap.Error(err),
		)
		return nil, &Failure{AccountID: acct.ID, Kind: FailureUnknownProvider, Reason: err.Error(), Err: err}
	}
	providerLabel = b.Kind().String()

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	items, err = call(callCtx, b, acct)
	if err != nil {
		kind := classify(ctx, callCtx, err)
		e.log.Warn("account call failed",
			zap.String("operation", op),
			zap.String("account", acct.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, &Failure{AccountID: acct.ID, Kind: kind, Reason: err.Error(), Err: err}
	}
	return items, nil
}

func classify(parent, callCtx context.Context, err error) FailureKind {
	switch {
	case provider.IsCredentialError(err):
		return FailureUnauthenticated
	case errors.Is(err, provider.ErrUnknownProvider):
		return FailureUnknownProvider
	case errors.Is(parent.Err(), context.Canceled):
		return FailureCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	default:
		return FailureBackend
	}
}

// ByReceivedDesc orders messages newest first.
func ByReceivedDesc(a, b model.EmailMessage) int {
	return b.ReceivedDateTime.Compare(a.ReceivedDateTime)
}

// ByStartAsc orders events by start time, earliest first.
func ByStartAsc(a, b model.CalendarEvent) int {
	return a.Start.Compare(b.Start)
}
