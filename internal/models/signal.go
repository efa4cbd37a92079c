package models

import (
	"fmt"
	"time"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// RawSignal — an already-decoded alert as delivered by the webhook.
// Immutable: the pipeline never mutates it.
type RawSignal struct {
	ID                 string    `json:"id"`
	Strategy           string    `json:"strategy"`
	Pair               string    `json:"pair"`
	Direction          Direction `json:"direction,omitempty"`
	Action             string    `json:"action,omitempty"`             // buy/sell/close/flat
	MarketPosition     string    `json:"marketPosition,omitempty"`     // long/short/flat
	PrevMarketPosition string    `json:"prevMarketPosition,omitempty"` // long/short/flat
	Price              float64   `json:"price"`
	StopLoss           float64   `json:"stopLoss,omitempty"`
	TakeProfit         float64   `json:"takeProfit,omitempty"`
	Quantity           float64   `json:"quantity"`
	Timestamp          time.Time `json:"timestamp"`
}

// Key — позиция идентифицируется парой (strategy, pair).
func (s RawSignal) Key() string {
	strategy := s.Strategy
	if strategy == "" {
		strategy = "Unknown"
	}
	pair := s.Pair
	if pair == "" {
		pair = "Unknown"
	}
	return strategy + "_" + pair
}

func (s RawSignal) HasPrice() bool { return s.Price > 0 }

const (
	StatusActive = "Active"
	StatusClosed = "Closed"
)

// ActiveSignal — enriched RawSignal held in the active set until closed.
type ActiveSignal struct {
	RawSignal

	CreatedAt    time.Time `json:"createdAt"`
	LastUpdate   time.Time `json:"lastUpdate"`
	Status       string    `json:"status"`
	CurrentPrice float64   `json:"currentPrice,omitempty"`
	CurrentPnL   float64   `json:"currentPnL,omitempty"`
	AgeHours     int       `json:"ageHours"`
	AgeDays      int       `json:"ageDays"`
	AgeText      string    `json:"ageText,omitempty"`
}

func (a ActiveSignal) Age(now time.Time) time.Duration {
	created := a.CreatedAt
	if created.IsZero() {
		created = a.Timestamp
	}
	return now.Sub(created)
}

// ClosedSignal — terminal form, archived by closedAt month.
type ClosedSignal struct {
	ActiveSignal

	ExitPrice   float64   `json:"exitPrice"`
	FinalPnL    float64   `json:"finalPnL"`
	CloseReason string    `json:"closeReason"`
	ClosedAt    time.Time `json:"closedAt"`
}

func FormatAge(hours, days int) string {
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours%24)
	}
	return fmt.Sprintf("%dh", hours)
}
