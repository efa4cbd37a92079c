package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"signal_ledger/internal/models"
	"signal_ledger/pkg/db"
	"signal_ledger/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS completed_trades (
	id           TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	pair         TEXT NOT NULL,
	entry_id     TEXT,
	exit_id      TEXT,
	entry_price  DOUBLE PRECISION NOT NULL,
	exit_price   DOUBLE PRECISION NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	direction    TEXT NOT NULL,
	entry_time   TIMESTAMPTZ,
	exit_time    TIMESTAMPTZ,
	pnl_percent  DOUBLE PRECISION NOT NULL,
	pnl_amount   DOUBLE PRECISION NOT NULL,
	close_reason TEXT
)`

const insertTrade = `
INSERT INTO completed_trades
	(id, strategy, pair, entry_id, exit_id, entry_price, exit_price,
	 amount, direction, entry_time, exit_time, pnl_percent, pnl_amount, close_reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO NOTHING`

// Journal mirrors completed trades into Postgres for ad-hoc querying.
// Best-effort: the file archive stays the source of truth, insert failures
// are logged and never propagate.
type Journal struct {
	tm *db.PgTxManager
}

func New(tm *db.PgTxManager) *Journal {
	return &Journal{tm: tm}
}

func (j *Journal) Enabled() bool { return j != nil && j.tm != nil }

func (j *Journal) Init(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	err := j.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
	return errors.Wrap(err, "init trade journal schema")
}

func (j *Journal) RecordTrade(ctx context.Context, t models.CompletedTrade) {
	if !j.Enabled() {
		return
	}
	err := j.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertTrade,
			t.ID, t.Strategy, t.Pair, t.EntryID, t.ExitID, t.EntryPrice, t.ExitPrice,
			t.Amount, string(t.Direction), t.EntryTime, t.ExitTime, t.PnLPercent, t.PnLAmount, t.CloseReason)
		return err
	})
	if err != nil {
		logger.Error("journal insert %s: %v", t.ID, err)
	}
}
