// Replay feeds a JSON dump of raw signals through the full
// classification/matching/persistence pipeline into a fresh data dir and
// prints the resulting trade statistics. Useful for rebuilding a ledger
// from exported webhook logs.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"signal_ledger/internal/ledger"
	"signal_ledger/internal/matcher"
	"signal_ledger/internal/models"
	"signal_ledger/internal/modules/config"
	"signal_ledger/internal/modules/store/service"
	"signal_ledger/pkg/logger"
)

func main() {
	viper.SetDefault("input", "signals.json")
	viper.SetDefault("data_dir", "data/replay")
	viper.SetDefault("fee_rate", 0.0005)
	viper.SetDefault("duplicate_window", "5s")
	viper.SetDefault("policy", "reopen")
	viper.SetEnvPrefix("replay")
	viper.AutomaticEnv()
	if len(os.Args) > 1 {
		viper.Set("input", os.Args[1])
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := logger.Init(); err != nil {
		return err
	}
	logger.SetServiceName("replay")

	input := viper.GetString("input")
	raw, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrapf(err, "read %s", input)
	}

	var signals []models.RawSignal
	if err := sonic.Unmarshal(raw, &signals); err != nil {
		return errors.Wrapf(err, "decode %s", input)
	}

	cfg := &config.Config{
		DataDir:             viper.GetString("data_dir"),
		FeeRate:             viper.GetFloat64("fee_rate"),
		DuplicateWindow:     viper.GetDuration("duplicate_window"),
		SameDirectionPolicy: viper.GetString("policy"),
	}

	st := service.New(cfg)
	if err := st.Load(); err != nil {
		return errors.Wrap(err, "load store")
	}
	st.Start()
	defer st.Close()

	l := ledger.New(cfg, st)
	l.Seed()

	ctx := context.Background()
	counts := make(map[models.Action]int)
	for _, sig := range signals {
		res := l.Process(ctx, sig)
		counts[res.Type]++
	}
	st.Flush()

	stats := matcher.Summarize(st.Trades())

	fmt.Printf("replayed %d signals from %s\n", len(signals), input)
	for action, n := range counts {
		fmt.Printf("  %-14s %d\n", action, n)
	}
	fmt.Printf("trades: %d | wins: %d | losses: %d | win rate: %.1f%%\n",
		stats.TotalTrades, stats.WinningTrades, stats.LosingTrades, stats.WinRate)
	fmt.Printf("total pnl: %.2f%% | avg: %.2f%% | best: %.2f%% | worst: %.2f%%\n",
		stats.TotalPnL, stats.AvgPnL, stats.BestTrade, stats.WorstTrade)
	fmt.Printf("still active: %d\n", st.Stats().TotalActive)
	return nil
}
