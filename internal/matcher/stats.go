package matcher

import "signal_ledger/internal/models"

// Statistics — aggregate view over completed trades.
type Statistics struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
	AvgPnL        float64 `json:"avgPnl"`
	TotalPnL      float64 `json:"totalPnl"`
	BestTrade     float64 `json:"bestTrade"`
	WorstTrade    float64 `json:"worstTrade"`
}

func Summarize(trades []models.CompletedTrade) Statistics {
	stats := Statistics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	stats.BestTrade = trades[0].PnLPercent
	stats.WorstTrade = trades[0].PnLPercent

	for _, t := range trades {
		p := t.PnLPercent
		stats.TotalPnL += p
		if p > 0 {
			stats.WinningTrades++
		} else if p < 0 {
			stats.LosingTrades++
		}
		if p > stats.BestTrade {
			stats.BestTrade = p
		}
		if p < stats.WorstTrade {
			stats.WorstTrade = p
		}
	}

	stats.AvgPnL = stats.TotalPnL / float64(stats.TotalTrades)
	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	return stats
}
