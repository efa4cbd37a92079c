package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_ledger/internal/models"
	"signal_ledger/internal/modules/config"
	"signal_ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	st := New(&config.Config{DataDir: dir})
	require.NoError(t, st.Load())
	st.Start()
	t.Cleanup(st.Close)
	return st
}

func rawSignal(id, strategy, pair string) models.RawSignal {
	return models.RawSignal{
		ID:        id,
		Strategy:  strategy,
		Pair:      pair,
		Direction: models.DirectionLong,
		Price:     100,
		Quantity:  1,
		Timestamp: time.Now(),
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	st := newTestStore(t, dir)
	st.AddSignal(rawSignal("s1", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("s2", "MACD", "ETHUSDT"))
	st.Flush()
	st.Close()

	reopened := newTestStore(t, dir)
	active := reopened.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "s1", active[0].ID)
	assert.Equal(t, models.StatusActive, active[0].Status)

	meta := reopened.Stats()
	assert.Equal(t, 2, meta.TotalSignals)
	assert.Equal(t, 2, meta.TotalActive)
}

func TestLoadToleratesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("also garbage"), 0o644))

	st := newTestStore(t, dir)
	assert.Empty(t, st.Active())
	assert.Zero(t, st.Stats().TotalSignals)
}

func TestLoadIgnoresLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()

	st := newTestStore(t, dir)
	st.AddSignal(rawSignal("s1", "7RSI", "BTCUSDT"))
	st.Flush()
	st.Close()

	// A crash mid-write leaves a temp file behind; it must never be read.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.json.tmp.123.456"), []byte("partial garb"), 0o644))

	reopened := newTestStore(t, dir)
	require.Len(t, reopened.Active(), 1)
}

func TestLoadReconcilesActiveCounter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"),
		[]byte(`{"totalSignals":7,"totalActive":99,"totalClosed":3}`), 0o644))

	st := newTestStore(t, dir)
	meta := st.Stats()
	assert.Equal(t, 7, meta.TotalSignals)
	assert.Equal(t, 0, meta.TotalActive)
	assert.Equal(t, 3, meta.TotalClosed)
}

func TestCloseSignal(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	added := st.AddSignal(rawSignal("s1", "7RSI", "BTCUSDT"))

	closed := st.CloseSignal(added.ID, 110, 9.9, "close")
	require.NotNil(t, closed)
	assert.Equal(t, models.StatusClosed, closed.Status)
	assert.Equal(t, 110.0, closed.ExitPrice)
	assert.InDelta(t, 9.9, closed.FinalPnL, 1e-9)
	assert.Empty(t, st.Active())

	st.Flush()
	archive := st.ClosedThisMonth()
	require.Len(t, archive, 1)
	assert.Equal(t, "s1", archive[0].ID)

	month := time.Now().Format("2006-01")
	_, err := os.Stat(filepath.Join(st.dir, "closed", month+".json"))
	assert.NoError(t, err)

	assert.Equal(t, 1, st.Stats().TotalClosed)
	assert.Nil(t, st.CloseSignal("missing", 0, 0, "close"))
}

func TestFindByKeyReturnsNewest(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	st.AddSignal(rawSignal("old", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("new", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("other", "MACD", "BTCUSDT"))

	found := st.FindByKey("7RSI", "BTCUSDT")
	require.NotNil(t, found)
	assert.Equal(t, "new", found.ID)

	assert.Nil(t, st.FindByKey("7RSI", "SOLUSDT"))
}

func TestRemoveByKey(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	st.AddSignal(rawSignal("a", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("b", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("c", "MACD", "ETHUSDT"))

	removed := st.RemoveByKey("7RSI", "BTCUSDT")
	assert.Len(t, removed, 2)
	require.Len(t, st.Active(), 1)
	assert.Equal(t, "c", st.Active()[0].ID)

	assert.Nil(t, st.RemoveByKey("7RSI", "BTCUSDT"))
}

func TestRemoveByID(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	st.AddSignal(rawSignal("a", "7RSI", "BTCUSDT"))

	removed := st.RemoveByID("a")
	require.NotNil(t, removed)
	assert.Equal(t, "a", removed.ID)
	assert.Empty(t, st.Active())
	assert.Nil(t, st.RemoveByID("a"))
}

func TestUpdateSignal(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	st.AddSignal(rawSignal("a", "7RSI", "BTCUSDT"))

	updated := st.UpdateSignal("a", 123.45, 2.5)
	require.NotNil(t, updated)
	assert.Equal(t, 123.45, updated.CurrentPrice)
	assert.InDelta(t, 2.5, updated.CurrentPnL, 1e-9)

	found := st.FindByID("a")
	require.NotNil(t, found)
	assert.Equal(t, 123.45, found.CurrentPrice)

	assert.Nil(t, st.UpdateSignal("missing", 1, 1))
}

func TestAppendTradeKeepsOrder(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	for _, id := range []string{"t1", "t2", "t3"} {
		st.AppendTrade(models.CompletedTrade{ID: id, Strategy: "7RSI", Pair: "BTCUSDT", PnLPercent: 1})
	}
	st.Flush()

	trades := st.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, "t3", trades[2].ID)

	// Trades alone do not move the closed-signal counter.
	assert.Zero(t, st.Stats().TotalClosed)
}

func TestUpdateAges(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	sig := rawSignal("a", "7RSI", "BTCUSDT")
	sig.Timestamp = time.Now().Add(-50 * time.Hour)
	st.AddSignal(sig)

	st.UpdateAges(time.Now())
	active := st.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 50, active[0].AgeHours)
	assert.Equal(t, 2, active[0].AgeDays)
	assert.Equal(t, "2d 2h", active[0].AgeText)
}

func TestGetAllSignals(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	added := st.AddSignal(rawSignal("a", "7RSI", "BTCUSDT"))
	st.AddSignal(rawSignal("b", "MACD", "ETHUSDT"))
	st.CloseSignal(added.ID, 105, 4.9, "close")
	st.Flush()

	all := st.GetAllSignals()
	assert.Len(t, all.Active, 1)
	assert.Len(t, all.Closed, 1)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, atomicWrite(path, []byte(`{"ok":true}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp."))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(b))
}
