package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"signal_ledger/internal/modules/config"
	"signal_ledger/pkg/db"
)

// Регистрируем как fx-провайдер. Пустой DSN выключает Postgres целиком:
// журнал сделок работает только на файловых архивах.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
