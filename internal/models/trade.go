package models

import "time"

// OpenLot — a quantity opened at a specific price, queued under its key
// until fully matched against exits. Mutated only by the lot book.
type OpenLot struct {
	Strategy       string    `json:"strategy"`
	Pair           string    `json:"pair"`
	EntryPrice     float64   `json:"entryPrice"`
	Amount         float64   `json:"amount"` // remaining, not the original size
	Direction      Direction `json:"direction"`
	EntryTime      time.Time `json:"entryTime"`
	SourceSignalID string    `json:"sourceSignalId"`
	Seq            uint64    `json:"seq"`
}

// CompletedTrade — one FIFO consumption step. Immutable once emitted.
type CompletedTrade struct {
	ID          string        `json:"id"`
	Strategy    string        `json:"strategy"`
	Pair        string        `json:"pair"`
	EntryID     string        `json:"entryId"`
	ExitID      string        `json:"exitId"`
	EntryPrice  float64       `json:"entryPrice"`
	ExitPrice   float64       `json:"exitPrice"`
	Amount      float64       `json:"amount"`
	Direction   Direction     `json:"direction"`
	EntryTime   time.Time     `json:"entryTime"`
	ExitTime    time.Time     `json:"exitTime"`
	PnLPercent  float64       `json:"pnlPercent"`
	PnLAmount   float64       `json:"pnlAmount"`
	Holding     time.Duration `json:"holdingNs"`
	HoldingText string        `json:"holdingText"`
	CloseReason string        `json:"closeReason,omitempty"`
}

// StoreMetadata — aggregate counters, reconciled from the live active set
// after every mutation.
type StoreMetadata struct {
	TotalSignals int       `json:"totalSignals"`
	TotalActive  int       `json:"totalActive"`
	TotalClosed  int       `json:"totalClosed"`
	LastUpdate   time.Time `json:"lastUpdate"`
}
