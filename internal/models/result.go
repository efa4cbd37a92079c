package models

// Action — what the classifier decided to do with a raw signal.
type Action string

const (
	ActionEntry        Action = "ENTRY"
	ActionCloseOnly    Action = "CLOSE_ONLY"
	ActionCloseAndOpen Action = "CLOSE_AND_OPEN"
	ActionDuplicate    Action = "DUPLICATE"
	ActionUnknown      Action = "UNKNOWN"
)

// MatchResult — explicit return value of Ledger.Process; the caller fans
// it out to broadcasters/notifiers, the core stays transport-free.
type MatchResult struct {
	Type         Action           `json:"type"`
	ClosedTrades []CompletedTrade `json:"closedTrades,omitempty"`
	Opened       *ActiveSignal    `json:"opened,omitempty"`
	Skipped      bool             `json:"skipped,omitempty"`
}
