package service

import (
	"context"

	"signal_ledger/internal/models"
	"signal_ledger/internal/notify"

	broadcast "signal_ledger/internal/modules/broadcast/service"
	journal "signal_ledger/internal/modules/journal/service"
)

// Dispatcher fans a match result out to the live-update hub, the telegram
// notifier and the trade journal. The ledger stays free of transport
// concerns: it returns results, this is the caller that spreads them.
type Dispatcher struct {
	hub      *broadcast.Hub
	notifier notify.Notifier
	journal  *journal.Journal
}

func New(hub *broadcast.Hub, notifier notify.Notifier, j *journal.Journal) *Dispatcher {
	return &Dispatcher{hub: hub, notifier: notifier, journal: j}
}

func (d *Dispatcher) PublishResult(ctx context.Context, sig models.RawSignal, res models.MatchResult) {
	if res.Skipped {
		return
	}

	d.hub.Broadcast("match_result", res)

	for _, t := range res.ClosedTrades {
		d.journal.RecordTrade(ctx, t)
		emoji := "✅"
		if t.PnLPercent < 0 {
			emoji = "❌"
		}
		d.notifier.Sendf("%s %s %s %s закрыта: %.2f%% (%.4f → %.4f, %s)",
			emoji, t.Strategy, t.Pair, t.Direction, t.PnLPercent, t.EntryPrice, t.ExitPrice, t.HoldingText)
	}

	if res.Opened != nil {
		d.notifier.Sendf("📈 %s %s %s открыта @ %.4f",
			res.Opened.Strategy, res.Opened.Pair, res.Opened.Direction, res.Opened.Price)
	}
}

// PublishExpired reports a force-closed stale position.
func (d *Dispatcher) PublishExpired(ctx context.Context, closed models.ClosedSignal, trades []models.CompletedTrade) {
	d.hub.Broadcast("signal_expired", closed)
	for _, t := range trades {
		d.journal.RecordTrade(ctx, t)
	}
	d.notifier.Sendf("⏰ %s %s закрыта по сроку (%s): %.2f%%",
		closed.Strategy, closed.Pair, closed.AgeText, closed.FinalPnL)
}
