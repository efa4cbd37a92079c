package store

import (
	"context"

	"go.uber.org/fx"

	"signal_ledger/internal/modules/store/service"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			service.New,
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if err := s.Load(); err != nil {
						return err
					}
					s.Start()
					return nil
				},
				OnStop: func(_ context.Context) error {
					s.Close()
					return nil
				},
			})
		}),
	)
}
