package dispatch

import (
	"go.uber.org/fx"

	"signal_ledger/internal/modules/config"
	"signal_ledger/internal/modules/dispatch/service"
	"signal_ledger/internal/notify"
	"signal_ledger/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token == "" {
					return notify.NewStdout()
				}
				t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
				if err != nil {
					logger.Error("telegram init failed, falling back to stdout: %v", err)
					return notify.NewStdout()
				}
				return t
			},
			service.New,
		),
	)
}
