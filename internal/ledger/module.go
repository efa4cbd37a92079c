package ledger

import (
	"context"
	"time"

	"go.uber.org/fx"

	"signal_ledger/internal/modules/config"

	dispatch "signal_ledger/internal/modules/dispatch/service"
	health "signal_ledger/internal/modules/health/service"
)

func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			New,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			ctx context.Context,
			l *Ledger,
			cfg *config.Config,
			d *dispatch.Dispatcher,
			state *health.State,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					l.Seed()
					state.SetReady(true)
					go runSweeps(ctx, l, cfg, d)
					return nil
				},
			})
		}),
	)
}

// runSweeps drives the periodic maintenance independent of signal traffic.
// The shared write queue is the only overlap protection: a slow write just
// delays the next tick's effect.
func runSweeps(ctx context.Context, l *Ledger, cfg *config.Config, d *dispatch.Dispatcher) {
	expiry := time.NewTicker(cfg.ExpirySweep)
	flat := time.NewTicker(cfg.FlatSweep)
	ages := time.NewTicker(10 * time.Minute)
	defer expiry.Stop()
	defer flat.Stop()
	defer ages.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-expiry.C:
			for _, exp := range l.ExpireStale(now) {
				d.PublishExpired(ctx, exp.Signal, exp.Trades)
			}
		case <-flat.C:
			for _, exp := range l.CleanupFlat() {
				d.PublishExpired(ctx, exp.Signal, exp.Trades)
			}
		case now := <-ages.C:
			l.Store().UpdateAges(now)
		}
	}
}
