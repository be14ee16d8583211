package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
	httptransport "github.com/rockfordlhotka/calendar-mcp/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mail and calendar tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context(), *configPath, retention)
		},
	}
	cmd.Flags().DurationVar(&retention, "journal-retention", 30*24*time.Hour, "drop write journal entries older than this at startup (0 keeps everything)")
	return cmd
}

func (a *app) serve(ctx context.Context, configPath string, retention time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if retention > 0 {
		n, err := a.store.PruneWrites(ctx, time.Now().Add(-retention))
		if err != nil {
			a.log.Warn("pruning write journal", zap.Error(err))
		} else if n > 0 {
			a.log.Info("pruned write journal", zap.Int64("removed", n))
		}
	}

	if a.cfg.Server.WatchConfig {
		model.WatchConfig(configPath, a.reload)
	}

	a.prober.Start()
	defer a.prober.Stop()

	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Service: a.svc,
		Store:   a.store,
		Metrics: a.metrics,
		Logger:  a.log.Named("http"),
	})
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// reload swaps in the accounts of a changed config file. An invalid file
// keeps the previous registry.
func (a *app) reload(cfg *model.AppConfig, err error) {
	if err != nil {
		a.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	reg, err := registry.New(cfg.Accounts)
	if err != nil {
		a.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	a.accounts.Replace(reg)
	a.log.Info("accounts reloaded", zap.Int("accounts", reg.Len()))
	a.prober.RefreshAll()
}
