package ingest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"signal_ledger/internal/modules/config"
	"signal_ledger/internal/modules/ingest/service"
	"signal_ledger/pkg/logger"
)

// Module поднимает публичный HTTP: вебхук + чтение леджера + /ws.
func Module() fx.Option {
	return fx.Module("ingest",
		fx.Provide(
			service.NewHandler,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, h *service.Handler) {
			mux := http.NewServeMux()
			h.Routes(mux)

			addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort)
			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					ln, err := net.Listen("tcp", addr)
					if err != nil {
						return err
					}
					logger.Info("ingest listening on %s", addr)
					go func() { _ = srv.Serve(ln) }()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
