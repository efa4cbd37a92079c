package broadcast

import (
	"go.uber.org/fx"

	"signal_ledger/internal/modules/broadcast/service"
)

func Module() fx.Option {
	return fx.Module("broadcast",
		fx.Provide(
			service.NewHub,
		),
	)
}
