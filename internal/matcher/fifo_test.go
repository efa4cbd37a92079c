package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_ledger/internal/models"
	"signal_ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func entrySignal(id string, price, qty float64, dir models.Direction) models.RawSignal {
	return models.RawSignal{
		ID:        id,
		Strategy:  "7RSI",
		Pair:      "BTCUSDT",
		Direction: dir,
		Price:     price,
		Quantity:  qty,
		Timestamp: time.Now(),
	}
}

func TestExitMatchesOldestFirst(t *testing.T) {
	book := NewLotBook(0)
	key := "7RSI_BTCUSDT"

	book.Entry(key, entrySignal("e1", 10, 3, models.DirectionLong))
	book.Entry(key, entrySignal("e2", 12, 2, models.DirectionLong))

	trades := book.Exit(key, "x1", 11, 4, time.Now(), "close")
	require.Len(t, trades, 2)

	assert.Equal(t, 10.0, trades[0].EntryPrice)
	assert.Equal(t, 3.0, trades[0].Amount)
	assert.Equal(t, "e1", trades[0].EntryID)

	assert.Equal(t, 12.0, trades[1].EntryPrice)
	assert.Equal(t, 1.0, trades[1].Amount)

	open := book.Open(key)
	require.Len(t, open, 1)
	assert.Equal(t, 12.0, open[0].EntryPrice)
	assert.Equal(t, 1.0, open[0].Amount)
}

func TestPnLSigns(t *testing.T) {
	fee := 0.0005
	book := NewLotBook(fee)

	tests := []struct {
		name      string
		direction models.Direction
		entry     float64
		exit      float64
		expected  float64
	}{
		{"long_profit", models.DirectionLong, 100, 110, 10 - 2*fee*100},
		{"short_loss", models.DirectionShort, 100, 110, -10 - 2*fee*100},
		{"short_profit", models.DirectionShort, 100, 90, 10 - 2*fee*100},
		{"long_loss", models.DirectionLong, 100, 90, -10 - 2*fee*100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "pnl_" + tt.name
			book.Entry(key, entrySignal("e_"+tt.name, tt.entry, 1, tt.direction))
			trades := book.Exit(key, "x", tt.exit, 1, time.Now(), "close")
			require.Len(t, trades, 1)
			assert.InDelta(t, tt.expected, trades[0].PnLPercent, 1e-9)
		})
	}
}

func TestPnLAmount(t *testing.T) {
	book := NewLotBook(0)
	key := "amount"
	book.Entry(key, entrySignal("e", 100, 2, models.DirectionLong))
	trades := book.Exit(key, "x", 110, 2, time.Now(), "close")
	require.Len(t, trades, 1)
	// 10% of entry value 100 * amount 2
	assert.InDelta(t, 20.0, trades[0].PnLAmount, 1e-9)
}

func TestZeroEntryPriceGivesZeroPnL(t *testing.T) {
	book := NewLotBook(0.0005)
	key := "zero"
	book.Entry(key, entrySignal("e", 0, 1, models.DirectionLong))
	trades := book.Exit(key, "x", 50, 1, time.Now(), "close")
	require.Len(t, trades, 1)
	assert.Zero(t, trades[0].PnLPercent)
	assert.Zero(t, trades[0].PnLAmount)
}

func TestFlatDrainsEverything(t *testing.T) {
	book := NewLotBook(0)
	key := "flat"
	for i, amount := range []float64{1, 2, 3} {
		sig := entrySignal("e", 100, amount, models.DirectionLong)
		sig.ID = sig.ID + string(rune('0'+i))
		book.Entry(key, sig)
	}

	trades := book.Flat(key, "x", 105, time.Now(), "flat")
	assert.Len(t, trades, 3)
	assert.Empty(t, book.Open(key))
	assert.Zero(t, book.OpenAmount(key))
}

func TestExitOnEmptyQueueIsNoop(t *testing.T) {
	book := NewLotBook(0)
	assert.Nil(t, book.Exit("nothing", "x", 100, 1, time.Now(), "close"))
	assert.Nil(t, book.Flat("nothing", "x", 100, time.Now(), "flat"))
}

func TestExcessExitAmountDiscarded(t *testing.T) {
	book := NewLotBook(0)
	key := "excess"
	book.Entry(key, entrySignal("e", 100, 2, models.DirectionLong))

	trades := book.Exit(key, "x", 105, 5, time.Now(), "close")
	require.Len(t, trades, 1)
	assert.Equal(t, 2.0, trades[0].Amount)
	assert.Empty(t, book.Open(key))
}

func TestConservation(t *testing.T) {
	book := NewLotBook(0.0005)
	key := "conserve"

	var entered, exited float64
	check := func() {
		assert.InDelta(t, entered-exited, book.OpenAmount(key), 1e-9)
	}

	steps := []struct {
		entry  bool
		amount float64
	}{
		{true, 3}, {true, 2}, {false, 4}, {true, 1.5}, {false, 1},
		{false, 10}, // over-ask, clipped at what remains
		{true, 2},
	}
	for i, step := range steps {
		if step.entry {
			sig := entrySignal("e", 100, step.amount, models.DirectionLong)
			sig.ID = sig.ID + string(rune('a'+i))
			book.Entry(key, sig)
			entered += step.amount
		} else {
			for _, trade := range book.Exit(key, "x", 101, step.amount, time.Now(), "close") {
				exited += trade.Amount
			}
		}
		check()
	}

	for _, trade := range book.Flat(key, "x", 99, time.Now(), "flat") {
		exited += trade.Amount
	}
	check()
	assert.InDelta(t, entered, exited, 1e-9)
}

func TestSeedRestoresQueueOrder(t *testing.T) {
	book := NewLotBook(0)
	key := "seed"
	book.Seed(key, []models.OpenLot{
		{Strategy: "s", Pair: "p", EntryPrice: 10, Amount: 1, Direction: models.DirectionLong, SourceSignalID: "one", Seq: 1},
		{Strategy: "s", Pair: "p", EntryPrice: 20, Amount: 1, Direction: models.DirectionLong, SourceSignalID: "two", Seq: 2},
	})

	trades := book.Exit(key, "x", 15, 1, time.Now(), "close")
	require.Len(t, trades, 1)
	assert.Equal(t, "one", trades[0].EntryID)
}

func TestHoldingDuration(t *testing.T) {
	book := NewLotBook(0)
	key := "hold"
	sig := entrySignal("e", 100, 1, models.DirectionLong)
	sig.Timestamp = time.Now().Add(-26 * time.Hour)
	book.Entry(key, sig)

	trades := book.Exit(key, "x", 101, 1, time.Now(), "close")
	require.Len(t, trades, 1)
	assert.InDelta(t, 26*time.Hour, trades[0].Holding, float64(time.Minute))
	assert.Equal(t, "1d 2h", trades[0].HoldingText)
}
