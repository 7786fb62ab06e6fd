package analytics

import (
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// topTradeCount bounds the best/worst lists in a report.
const topTradeCount = 5

// Report bundles every analytics view over one window, shaped for the
// dashboard API.
type Report struct {
	Window         Window              `json:"window"`
	Summary        Summary             `json:"summary"`
	ByStrategy     []StrategyBreakdown `json:"by_strategy"`
	HoldingPeriods []HoldingBucket     `json:"holding_periods"`
	Monthly        []MonthlyPerf       `json:"monthly"`
	BestTrades     []models.Position   `json:"best_trades"`
	WorstTrades    []models.Position   `json:"worst_trades"`
}

// BuildReport filters the history to the window and computes all views.
func BuildReport(history []models.Position, w Window, now time.Time) Report {
	windowed := FilterWindow(history, w, now)
	best, worst := TopTrades(windowed, topTradeCount)
	return Report{
		Window:         w,
		Summary:        Overall(windowed),
		ByStrategy:     ByStrategy(windowed),
		HoldingPeriods: ByHoldingPeriod(windowed, now),
		Monthly:        Monthly(windowed),
		BestTrades:     best,
		WorstTrades:    worst,
	}
}
