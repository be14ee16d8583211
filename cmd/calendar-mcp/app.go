package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/auth"
	"github.com/rockfordlhotka/calendar-mcp/internal/credential"
	"github.com/rockfordlhotka/calendar-mcp/internal/fanout"
	"github.com/rockfordlhotka/calendar-mcp/internal/logger"
	"github.com/rockfordlhotka/calendar-mcp/internal/metrics"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/google"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/graph"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/mailbox"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/rest"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
	"github.com/rockfordlhotka/calendar-mcp/internal/service"
	"github.com/rockfordlhotka/calendar-mcp/internal/store"
	probe "github.com/rockfordlhotka/calendar-mcp/internal/sync"
)

// app is the object graph shared by every command.
type app struct {
	cfg      *model.AppConfig
	log      *zap.Logger
	broker   *auth.Broker
	accounts *registry.Holder
	metrics  *metrics.Metrics
	store    *store.SQLiteStore
	engine   *fanout.Engine
	svc      *service.Service
	prober   *probe.Prober
}

func newApp(configPath string) (*app, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	reg, err := registry.New(cfg.Accounts)
	if err != nil {
		return nil, fmt.Errorf("building account registry: %w", err)
	}
	accounts := registry.NewHolder(reg)

	creds, err := credential.Open(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	broker := auth.NewBroker(creds, log.Named("auth"))

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.Fanout.AccountTimeout}
	clientOpts := []rest.Option{
		rest.WithHTTPClient(httpClient),
		rest.WithRateLimit(cfg.Fanout.RequestsPerSecond, cfg.Fanout.RequestBurst),
	}
	resolver := provider.NewResolver(
		graph.New(model.ProviderOrganizational, broker, log,
			graph.WithClientOptions(clientOpts...),
			graph.WithMaxSearchPages(cfg.Fanout.SearchMaxPages)),
		graph.New(model.ProviderPersonal, broker, log,
			graph.WithClientOptions(clientOpts...),
			graph.WithMaxSearchPages(cfg.Fanout.SearchMaxPages)),
		google.New(broker, log,
			google.WithClientOptions(clientOpts...),
			google.WithMaxSearchPages(cfg.Fanout.SearchMaxPages)),
		mailbox.New(broker, log),
	)
	engine := fanout.New(resolver, log.Named("fanout"),
		fanout.WithAccountTimeout(cfg.Fanout.AccountTimeout),
		fanout.WithMaxConcurrency(cfg.Fanout.MaxConcurrency),
		fanout.WithMetrics(m),
	)
	svc := service.New(accounts, engine, log.Named("service"),
		service.WithStore(st),
		service.WithMetrics(m),
	)
	prober := probe.New(broker, accounts, st, log.Named("prober"), m, cfg.Probe.Interval)

	log.Info("configuration loaded",
		zap.String("path", configPath),
		zap.Int("accounts", reg.Len()),
		zap.Int("enabled", len(reg.Enabled())),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		broker:   broker,
		accounts: accounts,
		metrics:  m,
		store:    st,
		engine:   engine,
		svc:      svc,
		prober:   prober,
	}, nil
}

func openStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening state store %s: %w", path, err)
	}
	return st, nil
}

// account looks up id in the current registry.
func (a *app) account(id string) (model.Account, error) {
	acct, ok := a.accounts.Load().ByID(id)
	if !ok {
		return model.Account{}, fmt.Errorf("%w: %q", service.ErrUnknownAccount, id)
	}
	return acct, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing state store", zap.Error(err))
	}
	_ = a.log.Sync()
}
