package service

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal_ledger/pkg/logger"
)

const (
	writeRetries = 3
	retryBackoff = 50 * time.Millisecond
)

// snapshotLocked serializes the active set and metadata under the caller's
// lock and enqueues both file writes. The bytes are captured now so the
// writer goroutine never races the live structures.
func (s *Store) snapshotLocked() {
	activeBytes, err := sonic.MarshalIndent(s.active, "", "  ")
	if err != nil {
		logger.Error("marshal active set: %v", err)
		return
	}
	metaBytes, err := sonic.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		logger.Error("marshal metadata: %v", err)
		return
	}

	s.enqueue(func() {
		if err := atomicWrite(s.activePath, activeBytes); err != nil {
			// In-memory state stays authoritative; the next successful
			// snapshot reconciles disk state.
			logger.Error("save active signals: %v", err)
		}
		if err := atomicWrite(s.metaPath, metaBytes); err != nil {
			logger.Error("save metadata: %v", err)
		}
	})
}

func (s *Store) enqueue(task func()) {
	s.tasks <- task
}

// atomicWrite writes to a uniquely named temp file and renames it over the
// target, retrying with linear backoff. Readers never observe a partial
// file; unique temp names keep competing retries from colliding.
func atomicWrite(path string, data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= writeRetries; attempt++ {
		tmp := fmt.Sprintf("%s.tmp.%d.%d", path, time.Now().UnixNano(), os.Getpid())
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			lastErr = err
		} else if err := os.Rename(tmp, path); err != nil {
			lastErr = err
			_ = os.Remove(tmp)
		} else {
			return nil
		}

		if attempt < writeRetries {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
	}
	return errors.Wrapf(lastErr, "atomic write %s failed after %d attempts", path, writeRetries)
}
