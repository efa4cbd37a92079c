package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"signal_ledger/internal/ledger"
	"signal_ledger/internal/modules/broadcast"
	"signal_ledger/internal/modules/config"
	"signal_ledger/internal/modules/dispatch"
	"signal_ledger/internal/modules/health"
	"signal_ledger/internal/modules/ingest"
	"signal_ledger/internal/modules/journal"
	"signal_ledger/internal/modules/postgres"
	"signal_ledger/internal/modules/store"
	"signal_ledger/pkg/logger"
	"signal_ledger/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("signal_ledger")
	tracing.SetServiceName("signal_ledger")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		store.Module(),
		broadcast.Module(),
		journal.Module(),
		dispatch.Module(),
		health.Module(),
		ledger.Module(),
		ingest.Module(),
		fx.Invoke(initTracing),
	)
	app.Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.Jaeger.Host == "" {
		return
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("jaeger init failed, tracing disabled: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
}
