// Package analytics derives performance views from closed and expired
// positions. Everything here is a pure function over position records; no
// storage access, no mutation.
package analytics

import (
	"sort"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// profitFactorCap is reported instead of a true infinity when there are
// wins and no losses, keeping output numeric for JSON consumers.
const profitFactorCap = 9999.0

// Window restricts analytics to a trailing period.
type Window string

const (
	// Window7D covers the trailing 7 days
	Window7D Window = "7d"
	// Window30D covers the trailing 30 days
	Window30D Window = "30d"
	// Window90D covers the trailing 90 days
	Window90D Window = "90d"
	// WindowAll applies no time bound
	WindowAll Window = "all"
)

// ParseWindow maps a query string to a Window, defaulting to all.
func ParseWindow(s string) Window {
	switch Window(s) {
	case Window7D, Window30D, Window90D:
		return Window(s)
	default:
		return WindowAll
	}
}

func (w Window) days() (int, bool) {
	switch w {
	case Window7D:
		return 7, true
	case Window30D:
		return 30, true
	case Window90D:
		return 90, true
	default:
		return 0, false
	}
}

// closedOrOpened is the timestamp used for windowing and monthly grouping.
func closedOrOpened(p *models.Position) time.Time {
	if !p.ClosedAt.IsZero() {
		return p.ClosedAt
	}
	return p.OpenedAt
}

func realized(p *models.Position) float64 {
	if p.RealizedPnL == nil {
		return 0
	}
	return *p.RealizedPnL
}

// FilterWindow keeps the terminal positions whose close (or open, when the
// close timestamp is missing) falls inside the trailing window.
func FilterWindow(positions []models.Position, w Window, now time.Time) []models.Position {
	days, bounded := w.days()
	boundary := now.AddDate(0, 0, -days)

	out := make([]models.Position, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		if !p.Status.Terminal() {
			continue
		}
		if bounded && closedOrOpened(p).Before(boundary) {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// Summary holds the overall statistics over a set of terminal positions.
type Summary struct {
	Total        int     `json:"total"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalPnL     float64 `json:"total_pnl"`
	AveragePnL   float64 `json:"average_pnl"`
	MaxWin       float64 `json:"max_win"`
	MaxLoss      float64 `json:"max_loss"`
	AverageWin   float64 `json:"average_win"`
	AverageLoss  float64 `json:"average_loss"`
	ProfitFactor float64 `json:"profit_factor"`
}

// Overall computes the headline stats. A realized P&L of exactly zero
// counts as a loss.
func Overall(positions []models.Position) Summary {
	var s Summary
	var totalWins, totalLosses float64

	for i := range positions {
		p := &positions[i]
		if !p.Status.Terminal() {
			continue
		}
		pnl := realized(p)
		s.Total++
		s.TotalPnL += pnl
		if pnl > 0 {
			s.Wins++
			totalWins += pnl
			if pnl > s.MaxWin {
				s.MaxWin = pnl
			}
		} else {
			s.Losses++
			totalLosses += pnl
			if pnl < s.MaxLoss {
				s.MaxLoss = pnl
			}
		}
	}

	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total) * 100
		s.AveragePnL = s.TotalPnL / float64(s.Total)
	}
	if s.Wins > 0 {
		s.AverageWin = totalWins / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = totalLosses / float64(s.Losses)
	}
	switch {
	case totalLosses < 0:
		s.ProfitFactor = totalWins / -totalLosses
		if s.ProfitFactor > profitFactorCap {
			s.ProfitFactor = profitFactorCap
		}
	case s.Wins > 0:
		s.ProfitFactor = profitFactorCap
	}
	return s
}

// StrategyBreakdown is the per-strategy performance grouping.
type StrategyBreakdown struct {
	Strategy   models.StrategyType `json:"strategy"`
	Trades     int                 `json:"trades"`
	TotalPnL   float64             `json:"total_pnl"`
	AveragePnL float64             `json:"average_pnl"`
	WinRate    float64             `json:"win_rate"`
}

// ByStrategy groups realized P&L by normalized strategy type, sorted by
// total P&L descending.
func ByStrategy(positions []models.Position) []StrategyBreakdown {
	type acc struct {
		trades int
		total  float64
		wins   int
	}
	groups := make(map[models.StrategyType]*acc)

	for i := range positions {
		p := &positions[i]
		if !p.Status.Terminal() {
			continue
		}
		key := p.StrategyType.Normalize()
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		pnl := realized(p)
		g.trades++
		g.total += pnl
		if pnl > 0 {
			g.wins++
		}
	}

	out := make([]StrategyBreakdown, 0, len(groups))
	for key, g := range groups {
		out = append(out, StrategyBreakdown{
			Strategy:   key,
			Trades:     g.trades,
			TotalPnL:   g.total,
			AveragePnL: g.total / float64(g.trades),
			WinRate:    float64(g.wins) / float64(g.trades) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPnL != out[j].TotalPnL {
			return out[i].TotalPnL > out[j].TotalPnL
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}

// HoldingBucket is one holding-period bin. MaxDays < 0 marks the open-ended
// final bin.
type HoldingBucket struct {
	Label      string  `json:"label"`
	MinDays    float64 `json:"min_days"`
	MaxDays    float64 `json:"max_days"`
	Trades     int     `json:"trades"`
	TotalPnL   float64 `json:"total_pnl"`
	AveragePnL float64 `json:"average_pnl"`
}

var holdingBins = []HoldingBucket{
	{Label: "< 1 day", MinDays: 0, MaxDays: 1},
	{Label: "1-3 days", MinDays: 1, MaxDays: 3},
	{Label: "3-7 days", MinDays: 3, MaxDays: 7},
	{Label: "7-14 days", MinDays: 7, MaxDays: 14},
	{Label: "14-28 days", MinDays: 14, MaxDays: 28},
	{Label: "28+ days", MinDays: 28, MaxDays: -1},
}

// ByHoldingPeriod buckets realized P&L by time between open and close.
// Every position lands in exactly one bin; all bins appear in the output
// even when empty.
func ByHoldingPeriod(positions []models.Position, now time.Time) []HoldingBucket {
	out := append([]HoldingBucket(nil), holdingBins...)

	for i := range positions {
		p := &positions[i]
		if !p.Status.Terminal() {
			continue
		}
		days := p.HoldingDays(now)
		if days < 0 {
			days = 0
		}
		for b := range out {
			if days >= out[b].MinDays && (out[b].MaxDays < 0 || days < out[b].MaxDays) {
				out[b].Trades++
				out[b].TotalPnL += realized(p)
				break
			}
		}
	}

	for b := range out {
		if out[b].Trades > 0 {
			out[b].AveragePnL = out[b].TotalPnL / float64(out[b].Trades)
		}
	}
	return out
}

// MonthlyPerf is one calendar month's performance.
type MonthlyPerf struct {
	Month    string  `json:"month"` // YYYY-MM
	Trades   int     `json:"trades"`
	TotalPnL float64 `json:"total_pnl"`
	WinRate  float64 `json:"win_rate"`
}

// Monthly groups realized P&L by the YYYY-MM of the close timestamp,
// chronologically sorted.
func Monthly(positions []models.Position) []MonthlyPerf {
	type acc struct {
		trades int
		total  float64
		wins   int
	}
	groups := make(map[string]*acc)

	for i := range positions {
		p := &positions[i]
		if !p.Status.Terminal() {
			continue
		}
		key := closedOrOpened(p).Format("2006-01")
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		pnl := realized(p)
		g.trades++
		g.total += pnl
		if pnl > 0 {
			g.wins++
		}
	}

	out := make([]MonthlyPerf, 0, len(groups))
	for key, g := range groups {
		out = append(out, MonthlyPerf{
			Month:    key,
			Trades:   g.trades,
			TotalPnL: g.total,
			WinRate:  float64(g.wins) / float64(g.trades) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// TopTrades returns the n highest and n lowest realized-P&L positions.
func TopTrades(positions []models.Position, n int) (best, worst []models.Position) {
	terminal := make([]models.Position, 0, len(positions))
	for i := range positions {
		if positions[i].Status.Terminal() {
			terminal = append(terminal, positions[i])
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return realized(&terminal[i]) > realized(&terminal[j])
	})

	if n > len(terminal) {
		n = len(terminal)
	}
	best = append([]models.Position(nil), terminal[:n]...)

	worst = append([]models.Position(nil), terminal[len(terminal)-n:]...)
	sort.Slice(worst, func(i, j int) bool {
		return realized(&worst[i]) < realized(&worst[j])
	})
	return best, worst
}
