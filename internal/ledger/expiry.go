package ledger

import (
	"fmt"
	"time"

	"signal_ledger/internal/models"
	"signal_ledger/pkg/logger"
)

// ExpiredClose pairs an auto-closed signal with the trades its close
// produced, for downstream broadcast.
type ExpiredClose struct {
	Signal models.ClosedSignal
	Trades []models.CompletedTrade
}

// ExpireStale force-closes every active signal older than the configured
// threshold, at its last known price (fallback: entry price). Keeps
// positions from living forever when upstream alerts stop. Runs on a fixed
// period independent of signal traffic.
func (l *Ledger) ExpireStale(now time.Time) []ExpiredClose {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ExpiredClose
	for _, sig := range l.store.Active() {
		age := sig.Age(now)
		if age <= l.cfg.ExpiryThreshold {
			continue
		}

		price := sig.CurrentPrice
		if price <= 0 {
			price = sig.Price
		}
		amount := sig.Quantity
		if amount <= 0 {
			amount = 1
		}

		logger.Info("auto-expiring %s %s (age %dh)", sig.Strategy, sig.Pair, int(age.Hours()))

		exitID := fmt.Sprintf("auto_close_%s_%d", sig.ID, now.UnixNano())
		trades := l.book.Exit(sig.Key(), exitID, price, amount, now, "auto-expired")

		var pnl float64
		for _, t := range trades {
			l.store.AppendTrade(t)
			pnl += t.PnLPercent
		}
		if len(trades) == 0 {
			pnl = sig.CurrentPnL
		}

		closed := l.store.CloseSignal(sig.ID, price, pnl, "auto-expired")
		if closed != nil {
			out = append(out, ExpiredClose{Signal: *closed, Trades: trades})
		}
	}
	return out
}

// CleanupFlat retires active signals that report a flat market position
// yet slipped past classification into the active set. Drained lots are
// archived as trades, same as the expiry path.
func (l *Ledger) CleanupFlat() []ExpiredClose {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ExpiredClose
	for _, sig := range l.store.Active() {
		if sig.MarketPosition != "flat" {
			continue
		}

		trades := l.book.Flat(sig.Key(), sig.ID, sig.Price, l.now(), "cleanup")

		var pnl float64
		for _, t := range trades {
			l.store.AppendTrade(t)
			pnl += t.PnLPercent
		}
		if len(trades) == 0 {
			pnl = sig.CurrentPnL
		}

		closed := l.store.CloseSignal(sig.ID, sig.Price, pnl, "cleanup:marketPosition=flat")
		if closed != nil {
			out = append(out, ExpiredClose{Signal: *closed, Trades: trades})
		}
	}
	if len(out) > 0 {
		logger.Info("flat cleanup closed %d positions", len(out))
	}
	return out
}
