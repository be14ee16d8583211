// Package sync runs the background credential prober. It periodically asks
// the authentication collaborator for a credential for every enabled
// account, so expired or revoked enrollments show up in account status
// before a request fails on them.
package sync

import (
	"context"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
)

// ProbeState represents the current state of an account's probe.
type ProbeState int

const (
	ProbeIdle ProbeState = iota
	ProbeRunning
	ProbeError
)

func (s ProbeState) String() string {
	switch s {
	case ProbeRunning:
		return "running"
	case ProbeError:
		return "error"
	default:
		return "idle"
	}
}

// ProbeStatus holds the probe state for a single account.
type ProbeStatus struct {
	AccountID string
	State     ProbeState
	LastProbe time.Time
	Error     string
}

// Operation is the name probes are recorded under in account status.
const Operation = "credential_probe"

// probeTimeout is the maximum time allowed for a single credential probe.
const probeTimeout = 30 * time.Second

// Prober orchestrates background credential checks of configured accounts.
type Prober struct {
	auth     provider.Authenticator
	accounts *registry.Holder
	store    store.Store
	log      *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	statuses  map[string]*ProbeStatus
	triggerCh chan string
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a prober. st and m may be nil.
func New(
	auth provider.Authenticator,
	accounts *registry.Holder,
	st store.Store,
	log *zap.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *Prober {
	return &Prober{
		auth:      auth,
		accounts:  accounts,
		store:     st,
		log:       log,
		metrics:   m,
		interval:  interval,
		statuses:  make(map[string]*ProbeStatus),
		triggerCh: make(chan string, 16),
	}
}

// Start launches the probing goroutine. It probes every enabled account
// immediately and then once per interval. Start is a no-op when the
// interval is not positive or the prober is already running. A stopped
// prober can be started again.
func (p *Prober) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.interval <= 0 {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)
}

// Stop halts the probing goroutine, cancels an in-flight probe and waits
// for the goroutine to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	done := p.doneCh
	p.running = false
	p.mu.Unlock()

	<-done
}

// RefreshAll triggers an immediate probe of all enabled accounts.
func (p *Prober) RefreshAll() {
	p.trigger("")
}

// RefreshAccount triggers an immediate probe of one account.
func (p *Prober) RefreshAccount(accountID string) {
	p.trigger(accountID)
}

func (p *Prober) trigger(accountID string) {
	select {
	case p.triggerCh <- accountID:
	default:
		// Channel full; a probe is already pending.
	}
}

// GetStatuses returns the probe status of every probed account, ordered
// by account id.
func (p *Prober) GetStatuses() []ProbeStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]ProbeStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	slices.SortFunc(statuses, func(a, b ProbeStatus) int {
		return strings.Compare(a.AccountID, b.AccountID)
	})
	return statuses
}

func (p *Prober) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial probe immediately
	p.ProbeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		case id := <-p.triggerCh:
			if id == "" {
				p.ProbeAll(ctx)
				continue
			}
			if acct, ok := p.accounts.Load().ByID(id); ok {
				p.Probe(ctx, acct)
			}
		}
	}
}

// ProbeAll probes every enabled account of the current registry in turn
// and returns the number without a usable credential.
func (p *Prober) ProbeAll(ctx context.Context) int {
	failed := 0
	for _, acct := range p.accounts.Load().Enabled() {
		if ctx.Err() != nil {
			break
		}
		if !p.Probe(ctx, acct) {
			failed++
		}
	}
	return failed
}

// Probe checks a single account and records the outcome. It reports
// whether a usable credential was available. A probe interrupted by the
// cancellation of parent is not recorded.
func (p *Prober) Probe(parent context.Context, acct model.Account) bool {
	p.setStatus(acct.ID, ProbeRunning, "")

	ctx, cancel := context.WithTimeout(parent, probeTimeout)
	defer cancel()

	reason := ""
	cred, err := p.auth.GetCredential(ctx, acct, nil)
	switch {
	case err != nil:
		reason = err.Error()
	case cred == nil || cred.AccessToken == "":
		reason = "not enrolled or token expired"
	}

	if parent.Err() != nil {
		// Interrupted, not a verdict on the credential.
		p.setStatus(acct.ID, ProbeIdle, "")
		return false
	}

	now := time.Now()
	if reason != "" {
		p.log.Warn("credential probe failed",
			zap.String("account", acct.ID),
			zap.String("reason", reason),
		)
		p.setStatus(acct.ID, ProbeError, reason)
		if p.metrics != nil {
			p.metrics.ProbeFailures.WithLabelValues(acct.ID).Inc()
		}
		if p.store != nil {
			if err := p.store.RecordAccountFailure(ctx, acct.ID, Operation, reason, now); err != nil {
				p.log.Error("recording probe failure", zap.String("account", acct.ID), zap.Error(err))
			}
		}
		return false
	}

	p.setStatus(acct.ID, ProbeIdle, "")
	if p.store != nil {
		if err := p.store.RecordAccountSuccess(ctx, acct.ID, Operation, now); err != nil {
			p.log.Error("recording probe success", zap.String("account", acct.ID), zap.Error(err))
		}
	}
	return true
}

// setStatus updates the probe status for an account.
func (p *Prober) setStatus(accountID string, state ProbeState, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[accountID]
	if !ok {
		status = &ProbeStatus{AccountID: accountID}
		p.statuses[accountID] = status
	}

	status.State = state
	status.Error = errMsg
	if state != ProbeRunning {
		status.LastProbe = time.Now()
	}
}
