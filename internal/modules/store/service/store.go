package service

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"signal_ledger/internal/models"
	"signal_ledger/internal/modules/config"
	"signal_ledger/pkg/logger"
)

// Store is the authoritative in-memory active-signal set mirrored to
// crash-safe disk snapshots. All disk writes funnel through a single
// writer goroutine so two mutations can never interleave on one file.
//
// Disk layout under DataDir:
//
//	active.json             — full active set, atomically rewritten
//	metadata.json           — counters, atomically rewritten
//	closed/<YYYY-MM>.json   — monthly archive of closed signals
//	completed_trades.json   — append-only completed trades
type Store struct {
	dir        string
	activePath string
	metaPath   string

	mu     sync.Mutex
	active []*models.ActiveSignal
	meta   models.StoreMetadata

	tasks chan func()
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func New(cfg *config.Config) *Store {
	dir := cfg.DataDir
	return &Store{
		dir:        dir,
		activePath: filepath.Join(dir, "active.json"),
		metaPath:   filepath.Join(dir, "metadata.json"),
		tasks:      make(chan func(), 256),
		done:       make(chan struct{}),
	}
}

// Load reads the previous snapshot. Missing or corrupt files are not fatal:
// the store starts empty and the next successful write reconciles disk state.
func (s *Store) Load() error {
	if err := os.MkdirAll(filepath.Join(s.dir, "closed"), 0o755); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, err := os.ReadFile(s.activePath); err == nil {
		var active []*models.ActiveSignal
		if err := sonic.Unmarshal(b, &active); err != nil {
			logger.Error("corrupt %s, starting with empty active set: %v", s.activePath, err)
		} else {
			s.active = active
		}
	} else if !os.IsNotExist(err) {
		logger.Error("read %s: %v", s.activePath, err)
	}

	if b, err := os.ReadFile(s.metaPath); err == nil {
		var meta models.StoreMetadata
		if err := sonic.Unmarshal(b, &meta); err != nil {
			logger.Error("corrupt %s, counters reset: %v", s.metaPath, err)
		} else {
			s.meta = meta
		}
	}

	// Количество активных доверяем только живому набору.
	s.meta.TotalActive = len(s.active)

	logger.Info("store loaded: %d active signals, %d total seen", len(s.active), s.meta.TotalSignals)
	return nil
}

// Start launches the writer goroutine.
func (s *Store) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.done)
			for task := range s.tasks {
				task()
			}
		}()
	})
}

// Close drains the write queue. Admitted tasks always run to completion.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.tasks)
		<-s.done
	})
}

// Flush blocks until every previously enqueued write has finished.
func (s *Store) Flush() {
	ch := make(chan struct{})
	s.tasks <- func() { close(ch) }
	<-ch
}

// AddSignal enriches the raw signal and adds it to the active set.
func (s *Store) AddSignal(sig models.RawSignal) models.ActiveSignal {
	now := time.Now()
	created := sig.Timestamp
	if created.IsZero() {
		created = now
	}
	enriched := &models.ActiveSignal{
		RawSignal:  sig,
		CreatedAt:  created,
		LastUpdate: now,
		Status:     models.StatusActive,
	}

	s.mu.Lock()
	s.active = append(s.active, enriched)
	s.meta.TotalSignals++
	s.reconcileLocked()
	s.snapshotLocked()
	out := *enriched
	s.mu.Unlock()

	return out
}

// RemoveByKey drops every active signal for (strategy, pair) and returns
// the removed ones. Used by the close paths: the matcher already emitted the
// trades, the archive entry is written by the caller via CloseSignal or
// directly through AppendClosed.
func (s *Store) RemoveByKey(strategy, pair string) []models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.ActiveSignal
	kept := s.active[:0]
	for _, sig := range s.active {
		if sig.Strategy == strategy && sig.Pair == pair {
			removed = append(removed, *sig)
			continue
		}
		kept = append(kept, sig)
	}
	if len(removed) == 0 {
		return nil
	}

	s.active = kept
	s.reconcileLocked()
	s.snapshotLocked()
	return removed
}

// RemoveByID drops a single active signal, returning it if present.
func (s *Store) RemoveByID(id string) *models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sig := range s.active {
		if sig.ID == id {
			out := *sig
			s.active = append(s.active[:i], s.active[i+1:]...)
			s.reconcileLocked()
			s.snapshotLocked()
			return &out
		}
	}
	return nil
}

// CloseSignal moves an active signal into the monthly closed archive.
// Closing an unknown id is a logged no-op.
func (s *Store) CloseSignal(id string, exitPrice, finalPnL float64, reason string) *models.ClosedSignal {
	s.mu.Lock()

	idx := -1
	for i, sig := range s.active {
		if sig.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		logger.Warn("close: signal %s not found in active set", id)
		return nil
	}

	sig := s.active[idx]
	closedAt := time.Now()
	age := sig.Age(closedAt)
	hours := int(age.Hours())

	closed := models.ClosedSignal{
		ActiveSignal: *sig,
		ExitPrice:    exitPrice,
		FinalPnL:     finalPnL,
		CloseReason:  reason,
		ClosedAt:     closedAt,
	}
	closed.Status = models.StatusClosed
	closed.AgeHours = hours
	closed.AgeDays = hours / 24
	closed.AgeText = models.FormatAge(hours, hours/24)

	s.active = append(s.active[:idx], s.active[idx+1:]...)
	s.reconcileLocked()
	s.snapshotLocked()
	s.mu.Unlock()

	s.AppendClosed(closed)

	logger.Info("signal closed: %s | age %s | pnl %.2f%% (%s)", id, closed.AgeText, finalPnL, reason)
	return &closed
}

// UpdateSignal merges live price/PnL into an active signal.
func (s *Store) UpdateSignal(id string, price, pnl float64) *models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range s.active {
		if sig.ID == id {
			sig.CurrentPrice = price
			sig.CurrentPnL = pnl
			sig.LastUpdate = time.Now()
			s.reconcileLocked()
			s.snapshotLocked()
			out := *sig
			return &out
		}
	}
	return nil
}

// FindByID — direct active-set lookup.
func (s *Store) FindByID(id string) *models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range s.active {
		if sig.ID == id {
			out := *sig
			return &out
		}
	}
	return nil
}

// FindByKey returns the most recently added active signal for the key.
// Fallback lookup when a close event carries no id.
func (s *Store) FindByKey(strategy, pair string) *models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.active) - 1; i >= 0; i-- {
		if s.active[i].Strategy == strategy && s.active[i].Pair == pair {
			out := *s.active[i]
			return &out
		}
	}
	return nil
}

// Active returns a copy of the active set.
func (s *Store) Active() []models.ActiveSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ActiveSignal, 0, len(s.active))
	for _, sig := range s.active {
		out = append(out, *sig)
	}
	return out
}

// UpdateAges recomputes the age fields on every active signal.
func (s *Store) UpdateAges(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range s.active {
		hours := int(sig.Age(now).Hours())
		sig.AgeHours = hours
		sig.AgeDays = hours / 24
		sig.AgeText = models.FormatAge(hours, hours/24)
	}
}

// Stats returns the counters plus derived fields.
func (s *Store) Stats() models.StoreMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// reconcileLocked recomputes the counters from the live set instead of
// trusting increments, bounding drift.
func (s *Store) reconcileLocked() {
	s.meta.TotalActive = len(s.active)
	s.meta.LastUpdate = time.Now()
}
