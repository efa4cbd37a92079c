package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"signal_ledger/internal/matcher"
	"signal_ledger/internal/models"
	"signal_ledger/internal/modules/config"
	"signal_ledger/internal/modules/store/service"
	"signal_ledger/pkg/logger"
)

// Ledger combines the classifier, the FIFO lot book and the persistent
// store into the signal pipeline. One mutex covers every mutation, so a
// close-then-open for a key is atomic relative to other calls: no exit can
// match a lot that is not fully opened yet.
type Ledger struct {
	cfg        *config.Config
	classifier *matcher.Classifier
	book       *matcher.LotBook
	store      *service.Store

	mu  sync.Mutex
	now func() time.Time
}

func New(cfg *config.Config, st *service.Store) *Ledger {
	return &Ledger{
		cfg:        cfg,
		classifier: matcher.NewClassifier(cfg.DuplicateWindow, matcher.SameDirectionPolicy(cfg.SameDirectionPolicy)),
		book:       matcher.NewLotBook(cfg.FeeRate),
		store:      st,
		now:        time.Now,
	}
}

// Seed rebuilds the lot book from the persisted active set after restart.
func (l *Ledger) Seed() {
	l.mu.Lock()
	defer l.mu.Unlock()

	byKey := make(map[string][]models.OpenLot)
	for _, sig := range l.store.Active() {
		amount := sig.Quantity
		if amount <= 0 {
			amount = 1
		}
		direction := sig.Direction
		if direction == "" {
			direction = models.DirectionLong
		}
		key := sig.Key()
		byKey[key] = append(byKey[key], models.OpenLot{
			Strategy:       sig.Strategy,
			Pair:           sig.Pair,
			EntryPrice:     sig.Price,
			Amount:         amount,
			Direction:      direction,
			EntryTime:      sig.CreatedAt,
			SourceSignalID: sig.ID,
		})
	}
	for key, lots := range byKey {
		l.book.Seed(key, lots)
	}
	if len(byKey) > 0 {
		logger.Info("lot book seeded for %d keys", len(byKey))
	}
}

// Process runs one raw signal through classification and matching and
// returns the explicit result; the caller fans it out to subscribers.
// Never returns an error: ambiguous input degrades to an entry.
func (l *Ledger) Process(ctx context.Context, sig models.RawSignal) models.MatchResult {
	span, _ := opentracing.StartSpanFromContext(ctx, "ledger.process")
	defer span.Finish()
	span.SetTag("strategy", sig.Strategy)
	span.SetTag("pair", sig.Pair)

	l.mu.Lock()
	defer l.mu.Unlock()

	key := sig.Key()
	action := l.classifier.Classify(sig, l.book.Open(key))
	span.SetTag("action", string(action))

	switch action {
	case models.ActionDuplicate:
		logger.Info("duplicate suppressed: %s %s", sig.Strategy, sig.Pair)
		return models.MatchResult{Type: models.ActionDuplicate, Skipped: true}

	case models.ActionCloseOnly:
		trades := l.closeKey(sig, "close", fullCloseSignal(sig))
		return models.MatchResult{Type: models.ActionCloseOnly, ClosedTrades: trades}

	case models.ActionCloseAndOpen:
		// A reversal drains the whole key before the new direction opens.
		trades := l.closeKey(sig, "close-and-reopen", true)
		opened := l.open(sig)
		return models.MatchResult{Type: models.ActionCloseAndOpen, ClosedTrades: trades, Opened: opened}

	case models.ActionEntry:
		opened := l.open(sig)
		return models.MatchResult{Type: models.ActionEntry, Opened: opened}

	default:
		// Rather a spurious position than a silently dropped alert.
		logger.Warn("unclassifiable signal %s (%s %s), defaulting to entry",
			sig.ID, sig.Strategy, sig.Pair)
		opened := l.open(sig)
		return models.MatchResult{Type: models.ActionEntry, Opened: opened}
	}
}

// fullCloseSignal reports whether the signal asks for the whole position.
func fullCloseSignal(sig models.RawSignal) bool {
	return sig.Quantity <= 0 || sig.MarketPosition == "flat" || sig.Action == "flat"
}

// closeKey closes lots for the signal's key and retires the matching
// active signals. drainAll empties the whole queue regardless of the
// stated quantity; otherwise a positive quantity consumes FIFO.
func (l *Ledger) closeKey(sig models.RawSignal, reason string, drainAll bool) []models.CompletedTrade {
	key := sig.Key()
	exitTime := sig.Timestamp
	if exitTime.IsZero() {
		exitTime = l.now()
	}

	var trades []models.CompletedTrade
	if drainAll {
		trades = l.book.Flat(key, sig.ID, sig.Price, exitTime, reason)
	} else {
		trades = l.book.Exit(key, sig.ID, sig.Price, sig.Quantity, exitTime, reason)
	}

	pnlByEntry := make(map[string]float64, len(trades))
	for _, t := range trades {
		l.store.AppendTrade(t)
		pnlByEntry[t.EntryID] += t.PnLPercent
	}

	archive := func(removed models.ActiveSignal) {
		closed := models.ClosedSignal{
			ActiveSignal: removed,
			ExitPrice:    sig.Price,
			FinalPnL:     pnlByEntry[removed.ID],
			CloseReason:  reason,
			ClosedAt:     exitTime,
		}
		closed.Status = models.StatusClosed
		hours := int(removed.Age(exitTime).Hours())
		closed.AgeHours = hours
		closed.AgeDays = hours / 24
		closed.AgeText = models.FormatAge(hours, hours/24)
		l.store.AppendClosed(closed)
	}

	if drainAll {
		for _, removed := range l.store.RemoveByKey(sig.Strategy, sig.Pair) {
			archive(removed)
		}
		return trades
	}

	// Partial close: retire an active signal only once its lots are
	// fully consumed.
	for _, active := range l.store.Active() {
		if active.Key() != key || l.hasOpenLot(key, active.ID) {
			continue
		}
		if removed := l.store.RemoveByID(active.ID); removed != nil {
			archive(*removed)
		}
	}
	return trades
}

func (l *Ledger) hasOpenLot(key, signalID string) bool {
	for _, lot := range l.book.Open(key) {
		if lot.SourceSignalID == signalID {
			return true
		}
	}
	return false
}

func (l *Ledger) open(sig models.RawSignal) *models.ActiveSignal {
	l.book.Entry(sig.Key(), sig)
	opened := l.store.AddSignal(sig)
	return &opened
}

// Book exposes the lot table for read-only inspection (handlers, tests).
func (l *Ledger) Book() *matcher.LotBook { return l.book }

// Store exposes the persistence layer to the boundary handlers.
func (l *Ledger) Store() *service.Store { return l.store }
