package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/curriculum-orchestrator/internal/data/db"
	httpx "github.com/yungbote/curriculum-orchestrator/internal/http"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/worker"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime/bus"
	"github.com/yungbote/curriculum-orchestrator/internal/services"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      *Config
	DB       *db.Service
	Metrics  *observability.Metrics
	Hub      *realtime.SSEHub
	Bus      bus.Bus
	Repos    Repos
	Runs     services.GenerationService
	Server   *httpx.Server
	Worker   *worker.Worker
	Temporal temporalsdkclient.Client
	Runner   *temporalworker.Runner

	shutdownOtel func(context.Context) error
}

// New wires every component from cfg. Nothing runs until Run is called.
func New(ctx context.Context, cfg *Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg, Metrics: observability.NewMetrics()}

	a.shutdownOtel = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})

	a.DB, err = db.Open(db.Options{
		Driver:        cfg.Database.Driver,
		DSN:           cfg.Database.DSN,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
		MaxIdleConns:  cfg.Database.MaxIdleConns,
		SlowThreshold: cfg.Database.SlowThreshold,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := a.DB.AutoMigrateAll(); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Repos = wireRepos(a.DB.DB(), log)
	a.Hub = realtime.NewSSEHub(log)
	a.Bus, err = bus.New(cfg.Redis, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init realtime bus: %w", err)
	}

	if err := a.wireRuns(); err != nil {
		a.Close()
		return nil, err
	}
	a.Server = a.wireServer()
	return a, nil
}

// Run serves HTTP and executes runs until ctx is done, then drains in-flight
// local runs so each records its terminal state.
func (a *App) Run(ctx context.Context) error {
	if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start realtime forwarder: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Server.Run(gctx) })
	if a.Runner != nil {
		g.Go(func() error { return a.Runner.Start(gctx) })
	} else {
		a.Worker.Start(gctx)
		a.Worker.Wake()
	}

	err := g.Wait()
	a.Log.Info("Shutting down; waiting for in-flight runs")
	a.Worker.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("realtime bus close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
