package matcher

import (
	"fmt"
	"sync"
	"time"

	"signal_ledger/internal/models"

	"signal_ledger/pkg/logger"
)

// LotBook owns the key → open-lot queue table. Entries append to the tail,
// exits consume from the head (FIFO). The book holds no global state: it is
// seeded from the store's snapshot on startup and mutated only here.
type LotBook struct {
	feeRate float64

	mu   sync.Mutex
	lots map[string][]*models.OpenLot
	seq  uint64
}

func NewLotBook(feeRate float64) *LotBook {
	return &LotBook{
		feeRate: feeRate,
		lots:    make(map[string][]*models.OpenLot),
	}
}

// Entry appends a new lot to the tail of the key's queue.
func (b *LotBook) Entry(key string, sig models.RawSignal) models.OpenLot {
	amount := sig.Quantity
	if amount <= 0 {
		amount = 1
	}
	direction := sig.Direction
	if direction == "" {
		direction = models.DirectionLong
	}
	entryTime := sig.Timestamp
	if entryTime.IsZero() {
		entryTime = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	lot := &models.OpenLot{
		Strategy:       sig.Strategy,
		Pair:           sig.Pair,
		EntryPrice:     sig.Price,
		Amount:         amount,
		Direction:      direction,
		EntryTime:      entryTime,
		SourceSignalID: sig.ID,
		Seq:            b.seq,
	}
	b.lots[key] = append(b.lots[key], lot)

	logger.Info("lot opened: %s %s %.6f @ %.6f (queue=%d)",
		key, direction, amount, sig.Price, len(b.lots[key]))
	return *lot
}

// Exit consumes lots oldest-first until the requested amount is exhausted or
// the queue empties. Each consumption step emits one CompletedTrade. Excess
// requested amount is discarded — there is nothing left to close.
func (b *LotBook) Exit(key, exitID string, exitPrice, requested float64, exitTime time.Time, reason string) []models.CompletedTrade {
	if requested <= 0 {
		requested = 1
	}
	if exitTime.IsZero() {
		exitTime = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.lots[key]
	if len(queue) == 0 {
		// Duplicate/late exits are expected traffic, not errors.
		logger.Info("exit for %s: already closed, nothing to match", key)
		return nil
	}

	var trades []models.CompletedTrade
	remaining := requested

	for len(queue) > 0 && remaining > 0 {
		head := queue[0]

		var amount float64
		if head.Amount <= remaining {
			amount = head.Amount
			remaining -= amount
			queue = queue[1:]
		} else {
			amount = remaining
			head.Amount -= remaining
			remaining = 0
		}

		trades = append(trades, b.makeTrade(head, exitID, exitPrice, amount, exitTime, reason))
	}

	if len(queue) == 0 {
		delete(b.lots, key)
	} else {
		b.lots[key] = queue
	}
	return trades
}

// Flat drains the whole queue for the key regardless of any stated amount.
func (b *LotBook) Flat(key, exitID string, exitPrice float64, exitTime time.Time, reason string) []models.CompletedTrade {
	if exitTime.IsZero() {
		exitTime = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.lots[key]
	if len(queue) == 0 {
		logger.Info("flat for %s: already closed, nothing to match", key)
		return nil
	}

	trades := make([]models.CompletedTrade, 0, len(queue))
	for _, lot := range queue {
		trades = append(trades, b.makeTrade(lot, exitID, exitPrice, lot.Amount, exitTime, reason))
	}
	delete(b.lots, key)
	return trades
}

func (b *LotBook) makeTrade(lot *models.OpenLot, exitID string, exitPrice, amount float64, exitTime time.Time, reason string) models.CompletedTrade {
	pnlPercent, pnlAmount := b.pnl(lot.EntryPrice, exitPrice, amount, lot.Direction)
	holding := exitTime.Sub(lot.EntryTime)
	if holding < 0 {
		holding = 0
	}
	hours := int(holding.Hours())

	b.seq++
	return models.CompletedTrade{
		ID:          fmt.Sprintf("trade_%d_%d", exitTime.UnixNano(), b.seq),
		Strategy:    lot.Strategy,
		Pair:        lot.Pair,
		EntryID:     lot.SourceSignalID,
		ExitID:      exitID,
		EntryPrice:  lot.EntryPrice,
		ExitPrice:   exitPrice,
		Amount:      amount,
		Direction:   lot.Direction,
		EntryTime:   lot.EntryTime,
		ExitTime:    exitTime,
		PnLPercent:  pnlPercent,
		PnLAmount:   pnlAmount,
		Holding:     holding,
		HoldingText: models.FormatAge(hours, hours/24),
		CloseReason: reason,
	}
}

// pnl subtracts both fee legs. A zero or negative entry price yields zero
// PnL rather than a division blow-up.
func (b *LotBook) pnl(entry, exit, amount float64, direction models.Direction) (percent, pnlAmount float64) {
	if entry <= 0 {
		return 0, 0
	}

	var raw float64
	if direction == models.DirectionShort {
		raw = (entry - exit) / entry * 100
	} else {
		raw = (exit - entry) / entry * 100
	}

	percent = raw - 2*b.feeRate*100
	pnlAmount = percent / 100 * entry * amount
	return percent, pnlAmount
}

// Open returns a copy of the key's queue, oldest first.
func (b *LotBook) Open(key string) []models.OpenLot {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.lots[key]
	out := make([]models.OpenLot, 0, len(queue))
	for _, lot := range queue {
		out = append(out, *lot)
	}
	return out
}

// OpenAmount — total remaining amount for the key.
func (b *LotBook) OpenAmount(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sum float64
	for _, lot := range b.lots[key] {
		sum += lot.Amount
	}
	return sum
}

// Seed rebuilds a queue from persisted lots after restart. Существующее
// содержимое ключа затирается.
func (b *LotBook) Seed(key string, lots []models.OpenLot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := make([]*models.OpenLot, 0, len(lots))
	for i := range lots {
		lot := lots[i]
		if lot.Seq > b.seq {
			b.seq = lot.Seq
		}
		queue = append(queue, &lot)
	}
	if len(queue) == 0 {
		delete(b.lots, key)
		return
	}
	b.lots[key] = queue
}
