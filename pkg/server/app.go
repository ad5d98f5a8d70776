package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/service/quotes"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	svc      *usecase.ConsolidationService
	stream   *quotes.Stream
	provider *quotes.Provider
	handler  *api.ConsolidatedHandler
	chClient *pkgch.Client
	tiers    *cache.Tiered
	pub      domrepo.SnapshotPublisher

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.ConsolidationService,
	stream *quotes.Stream,
	provider *quotes.Provider,
	handler *api.ConsolidatedHandler,
	chClient *pkgch.Client,
	tiers *cache.Tiered,
	pub domrepo.SnapshotPublisher,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		svc:      svc,
		stream:   stream,
		provider: provider,
		handler:  handler,
		chClient: chClient,
		tiers:    tiers,
		pub:      pub,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.l),
	)

	if a.stream != nil {
		symbols := make([]string, len(a.cfg.Universe))
		for i, in := range a.cfg.Universe {
			symbols[i] = in.Symbol
		}
		a.provider.SeedBaselines(ctx, symbols)
		go a.stream.Run(ctx)
		a.l.Info("quote stream started", applogger.Strings("symbols", symbols))
	}

	go a.refreshLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// refreshLoop recomputes the consolidated snapshot on a fixed interval
// so reads stay warm. Reads can still trigger a synchronous recompute
// on a cold cache; the loop just keeps that path rare.
func (a *App) refreshLoop(ctx context.Context) {
	if _, err := a.svc.Refresh(ctx); err != nil {
		a.l.Error("initial refresh failed", applogger.Error(err))
	}
	if a.cfg.Consolidation.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.Consolidation.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.Refresh(ctx); err != nil {
				a.l.Error("refresh cycle failed", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.l.Warn("quote stream close error", applogger.Error(err))
		}
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if err := a.tiers.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
