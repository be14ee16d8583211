package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
	storetest "github.com/rockfordlhotka/calendar-mcp/tests/testutil"
)

type fakeAuth struct {
	tokens map[string]string
	err    error
}

func (f fakeAuth) GetCredential(_ context.Context, acct model.Account, _ []string) (*provider.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	tok, ok := f.tokens[acct.ID]
	if !ok {
		return nil, nil
	}
	return &provider.Credential{AccessToken: tok}, nil
}

// blockingAuth waits for the caller's context to end.
type blockingAuth struct {
	entered chan string
}

func (b blockingAuth) GetCredential(ctx context.Context, acct model.Account, _ []string) (*provider.Credential, error) {
	b.entered <- acct.ID
	<-ctx.Done()
	return nil, ctx.Err()
}

func holder(t *testing.T) *registry.Holder {
	t.Helper()
	reg, err := registry.New([]model.Account{
		{ID: "work", Provider: "m365", Enabled: true},
		{ID: "home", Provider: "outlook", Enabled: true},
		{ID: "old", Provider: "gmail", Enabled: false},
	})
	require.NoError(t, err)
	return registry.NewHolder(reg)
}

func TestProbeAll_RecordsOutcomes(t *testing.T) {
	st := storetest.NewTestStore(t)
	m := metrics.New()
	p := New(fakeAuth{tokens: map[string]string{"work": "tok"}}, holder(t), st, zap.NewNop(), m, time.Hour)

	failed := p.ProbeAll(context.Background())
	assert.Equal(t, 1, failed)

	statuses := p.GetStatuses()
	require.Len(t, statuses, 2, "disabled accounts are not probed")
	assert.Equal(t, "home", statuses[0].AccountID)
	assert.Equal(t, ProbeError, statuses[0].State)
	assert.Equal(t, "work", statuses[1].AccountID)
	assert.Equal(t, ProbeIdle, statuses[1].State)

	home, err := st.GetAccountStatus(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, Operation, home.LastOperation)
	assert.Equal(t, 1, home.ConsecutiveFailures)

	work, err := st.GetAccountStatus(context.Background(), "work")
	require.NoError(t, err)
	assert.NotNil(t, work.LastSuccessAt)

	_, err = st.GetAccountStatus(context.Background(), "old")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeFailures.WithLabelValues("home")))
}

func TestProbe_AuthErrorIsFailure(t *testing.T) {
	p := New(fakeAuth{err: errors.New("keyring locked")}, holder(t), nil, zap.NewNop(), nil, time.Hour)

	ok := p.Probe(context.Background(), model.Account{ID: "work"})
	assert.False(t, ok)
	require.Len(t, p.GetStatuses(), 1)
	assert.Contains(t, p.GetStatuses()[0].Error, "keyring locked")
}

func TestStartStop(t *testing.T) {
	p := New(fakeAuth{tokens: map[string]string{"work": "t", "home": "t"}}, holder(t), nil, zap.NewNop(), nil, time.Hour)

	p.Start()
	require.Eventually(t, func() bool { return len(p.GetStatuses()) == 2 }, 2*time.Second, 10*time.Millisecond)
	p.RefreshAccount("work")
	p.Stop()
	p.Stop()

	for _, s := range p.GetStatuses() {
		assert.Equal(t, ProbeIdle, s.State)
		assert.False(t, s.LastProbe.IsZero())
	}
}

func TestStart_DisabledWithoutInterval(t *testing.T) {
	p := New(fakeAuth{}, holder(t), nil, zap.NewNop(), nil, 0)
	p.Start()
	p.Stop()
	assert.Empty(t, p.GetStatuses())
}

func TestStop_CancelsInFlightProbe(t *testing.T) {
	st := storetest.NewTestStore(t)
	auth := blockingAuth{entered: make(chan string, 4)}
	p := New(auth, holder(t), st, zap.NewNop(), nil, time.Hour)

	p.Start()
	select {
	case <-auth.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("probe never started")
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight probe")
	}

	_, err := st.GetAccountStatus(context.Background(), "work")
	assert.ErrorIs(t, err, store.ErrNotFound, "an interrupted probe is not recorded")
	for _, s := range p.GetStatuses() {
		assert.NotEqual(t, ProbeError, s.State)
	}
}

func TestProbe_CanceledContextNotRecorded(t *testing.T) {
	st := storetest.NewTestStore(t)
	p := New(fakeAuth{err: context.Canceled}, holder(t), st, zap.NewNop(), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Probe(ctx, model.Account{ID: "work"}))
	assert.Equal(t, 0, p.ProbeAll(ctx), "ProbeAll stops once its context is done")

	_, err := st.GetAccountStatus(context.Background(), "work")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStartAfterStop(t *testing.T) {
	p := New(fakeAuth{tokens: map[string]string{"work": "t", "home": "t"}}, holder(t), nil, zap.NewNop(), nil, time.Hour)

	p.Start()
	p.Stop()

	restarted := time.Now()
	p.Start()
	require.Eventually(t, func() bool {
		statuses := p.GetStatuses()
		for _, s := range statuses {
			if s.State != ProbeIdle || s.LastProbe.Before(restarted) {
				return false
			}
		}
		return len(statuses) == 2
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()
	assert.NotPanics(t, p.Stop)
}
