package service

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"signal_ledger/internal/models"
	"signal_ledger/pkg/logger"
)

// Archives are append-only and never deleted. Both appends run as
// read-modify-write tasks on the writer queue, so they cannot interleave
// with each other or with snapshot writes.

func (s *Store) tradesPath() string {
	return filepath.Join(s.dir, "completed_trades.json")
}

func monthOf(t time.Time) string {
	return t.Format("2006-01")
}

func (s *Store) closedPath(month string) string {
	return filepath.Join(s.dir, "closed", month+".json")
}

// AppendTrade archives one completed trade. Trade archival is retried
// independently of the active-snapshot path: a failed snapshot never
// discards a trade.
func (s *Store) AppendTrade(trade models.CompletedTrade) {
	path := s.tradesPath()
	s.enqueue(func() {
		var trades []models.CompletedTrade
		readJSONFile(path, &trades)
		trades = append(trades, trade)

		data, err := sonic.MarshalIndent(trades, "", "  ")
		if err != nil {
			logger.Error("marshal completed trades: %v", err)
			return
		}
		if err := atomicWrite(path, data); err != nil {
			logger.Error("save completed trade: %v", err)
			return
		}
		logger.Info("completed trade saved: %s %s pnl %.2f%%", trade.Strategy, trade.Pair, trade.PnLPercent)
	})
}

// AppendClosed archives a closed signal into its closedAt month file and
// bumps the closed counter. The counter counts signals, not trades.
func (s *Store) AppendClosed(closed models.ClosedSignal) {
	s.mu.Lock()
	s.meta.TotalClosed++
	s.reconcileLocked()
	s.snapshotLocked()
	s.mu.Unlock()

	path := s.closedPath(monthOf(closed.ClosedAt))
	s.enqueue(func() {
		var signals []models.ClosedSignal
		readJSONFile(path, &signals)
		signals = append(signals, closed)

		data, err := sonic.MarshalIndent(signals, "", "  ")
		if err != nil {
			logger.Error("marshal closed archive: %v", err)
			return
		}
		if err := atomicWrite(path, data); err != nil {
			logger.Error("save closed archive: %v", err)
		}
	})
}

// ClosedThisMonth reads the current month's archive. Older months stay on
// disk for audit only.
func (s *Store) ClosedThisMonth() []models.ClosedSignal {
	var signals []models.ClosedSignal
	readJSONFile(s.closedPath(monthOf(time.Now())), &signals)
	return signals
}

// Trades reads the completed-trades archive.
func (s *Store) Trades() []models.CompletedTrade {
	var trades []models.CompletedTrade
	readJSONFile(s.tradesPath(), &trades)
	return trades
}

// AllSignals — union of the active set and the current month's archive.
type AllSignals struct {
	Active []models.ActiveSignal `json:"active"`
	Closed []models.ClosedSignal `json:"closedThisMonth"`
}

func (s *Store) GetAllSignals() AllSignals {
	return AllSignals{
		Active: s.Active(),
		Closed: s.ClosedThisMonth(),
	}
}

// readJSONFile tolerates missing and corrupt files: the archive simply
// starts over from what is readable.
func readJSONFile(path string, out interface{}) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := sonic.Unmarshal(b, out); err != nil {
		logger.Error("corrupt archive %s: %v", path, err)
	}
}
