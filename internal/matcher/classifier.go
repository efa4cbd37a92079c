package matcher

import (
	"fmt"
	"sync"
	"time"

	"signal_ledger/internal/models"
)

// SameDirectionPolicy decides what to do when a signal repeats the direction
// of an already-open position. Upstream strategies re-send full position
// state rather than deltas, so the default is to close and re-open at the
// new price. "ignore" keeps the existing lots and drops the signal.
type SameDirectionPolicy string

const (
	PolicyReopen SameDirectionPolicy = "reopen"
	PolicyIgnore SameDirectionPolicy = "ignore"
)

// Classifier maps a raw signal plus the current open-lot state for its key
// to an action. Pure apart from the duplicate-suppression cache.
type Classifier struct {
	window time.Duration
	policy SameDirectionPolicy

	mu     sync.Mutex
	recent map[string]time.Time

	now func() time.Time
}

func NewClassifier(window time.Duration, policy SameDirectionPolicy) *Classifier {
	if window <= 0 {
		window = 5 * time.Second
	}
	if policy == "" {
		policy = PolicyReopen
	}
	return &Classifier{
		window: window,
		policy: policy,
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Classify applies the detection rules in order. It never returns an error:
// a signal that matches nothing comes back as ActionUnknown and the caller
// decides (the ledger degrades it to an entry).
func (c *Classifier) Classify(sig models.RawSignal, openLots []models.OpenLot) models.Action {
	if c.seenRecently(sig) {
		return models.ActionDuplicate
	}

	hasOpen := len(openLots) > 0

	// Explicit close markers win over everything else.
	if hasOpen && sig.Quantity == 0 {
		return models.ActionCloseOnly
	}
	if hasOpen && sig.MarketPosition == "flat" {
		return models.ActionCloseOnly
	}

	if hasOpen && sig.Direction != "" && sig.HasPrice() {
		oldDirection := openLots[0].Direction
		if sig.Direction != oldDirection {
			// Reversal: the whole position flips.
			return models.ActionCloseAndOpen
		}
		if sig.Quantity > 0 {
			if c.policy == PolicyIgnore {
				return models.ActionDuplicate
			}
			return models.ActionCloseAndOpen
		}
	}

	if !hasOpen && sig.Quantity > 0 && sig.HasPrice() {
		return models.ActionEntry
	}

	return models.ActionUnknown
}

// seenRecently registers the signal's identity and reports whether an
// identical one was seen inside the suppression window.
func (c *Classifier) seenRecently(sig models.RawSignal) bool {
	key := fmt.Sprintf("%s_%s_%s_%g", sig.Strategy, sig.Pair, sig.Direction, sig.Price)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, ts := range c.recent {
		if now.Sub(ts) > c.window {
			delete(c.recent, k)
		}
	}

	if last, ok := c.recent[key]; ok && now.Sub(last) < c.window {
		return true
	}

	c.recent[key] = now
	return false
}
