// Package risk computes capital-at-risk estimates and exposure
// concentration over the open book. Like analytics, it is pure: callers
// hand it position slices and an account size.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// nakedRiskMultiple estimates risk on an undefined-risk credit position as
// a multiple of the premium collected.
const nakedRiskMultiple = 5.0

// Alert severities, ordered least to most severe.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelDanger  = "danger"
)

// Alert is a threshold breach surfaced to the dashboard.
type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// PositionRisk is the capital a single position puts at risk, in dollars.
//
// Defined-risk credit positions risk the widest strike spread less the
// credit collected. Credit positions with no spread (short a naked option)
// have no hard cap, so risk is estimated as a multiple of the premium.
// Debit positions risk what was paid.
func PositionRisk(p *models.Position) float64 {
	qty := float64(p.Quantity)
	if qty < 1 {
		qty = 1
	}
	premium := p.EntryPrice * models.SharesPerContract

	if !p.IsCredit() {
		return -premium * qty
	}

	width := widestSpread(p.Legs)
	if width <= 0 {
		return nakedRiskMultiple * premium * qty
	}
	risk := (width*models.SharesPerContract - premium) * qty
	if risk < 0 {
		risk = 0
	}
	return risk
}

// widestSpread is the largest strike distance within either option type.
// Calls and puts are measured separately so an iron condor reports the
// wider of its two sides, not the span across the whole structure.
func widestSpread(legs []models.Leg) float64 {
	var spread float64
	for _, typ := range []models.OptionType{models.OptionTypeCall, models.OptionTypePut} {
		var minStrike, maxStrike float64
		seen := false
		for _, leg := range legs {
			if leg.Type != typ {
				continue
			}
			if !seen || leg.Strike < minStrike {
				minStrike = leg.Strike
			}
			if !seen || leg.Strike > maxStrike {
				maxStrike = leg.Strike
			}
			seen = true
		}
		if seen && maxStrike-minStrike > spread {
			spread = maxStrike - minStrike
		}
	}
	return spread
}

// Exposure is one slice of the concentration breakdown.
type Exposure struct {
	Key     string  `json:"key"`
	Risk    float64 `json:"risk"`
	Percent float64 `json:"percent"`
}

// ExpiryBucket groups open risk by days to expiration.
type ExpiryBucket struct {
	Label     string  `json:"label"`
	MinDays   int     `json:"min_days"`
	MaxDays   int     `json:"max_days"` // -1 for the open-ended bin
	Positions int     `json:"positions"`
	Risk      float64 `json:"risk"`
}

var expiryBins = []ExpiryBucket{
	{Label: "< 1 day", MinDays: 0, MaxDays: 1},
	{Label: "1-3 days", MinDays: 1, MaxDays: 3},
	{Label: "3-7 days", MinDays: 3, MaxDays: 7},
	{Label: "7-14 days", MinDays: 7, MaxDays: 14},
	{Label: "14-30 days", MinDays: 14, MaxDays: 30},
	{Label: "30+ days", MinDays: 30, MaxDays: -1},
}

// Report is the full risk picture over the open book.
type Report struct {
	AccountSize   float64        `json:"account_size"`
	TotalRisk     float64        `json:"total_risk"`
	CapitalAtRisk float64        `json:"capital_at_risk_percent"`
	OpenPositions int            `json:"open_positions"`
	BySymbol      []Exposure     `json:"by_symbol"`
	ByStrategy    []Exposure     `json:"by_strategy"`
	ExpiryProfile []ExpiryBucket `json:"expiry_profile"`
	Alerts        []Alert        `json:"alerts"`
}

// Thresholds for alert generation, as percentages.
const (
	capitalWarningPct = 50.0
	capitalDangerPct  = 80.0
	symbolWarningPct  = 50.0
	positionInfoPct   = 10.0
)

// BuildReport computes per-position risk, concentration, the expiry
// profile, and alerts for the open positions. Percentages in the
// concentration breakdowns are shares of total open risk and sum to 100
// when any risk exists.
func BuildReport(open []models.Position, accountSize float64, now time.Time) Report {
	r := Report{
		AccountSize:   accountSize,
		ExpiryProfile: append([]ExpiryBucket(nil), expiryBins...),
	}

	symbolRisk := make(map[string]float64)
	strategyRisk := make(map[string]float64)
	var largest float64
	var largestID string

	for i := range open {
		p := &open[i]
		if p.Status != models.StatusOpen {
			continue
		}
		risk := PositionRisk(p)
		r.OpenPositions++
		r.TotalRisk += risk
		symbolRisk[p.Symbol] += risk
		strategyRisk[string(p.StrategyType.Normalize())] += risk
		if risk > largest {
			largest = risk
			largestID = p.ID
		}

		dte := p.DTE(now)
		if dte < 0 {
			dte = 0
		}
		for b := range r.ExpiryProfile {
			bin := &r.ExpiryProfile[b]
			if dte >= bin.MinDays && (bin.MaxDays < 0 || dte < bin.MaxDays) {
				bin.Positions++
				bin.Risk += risk
				break
			}
		}
	}

	r.BySymbol = toExposures(symbolRisk, r.TotalRisk)
	r.ByStrategy = toExposures(strategyRisk, r.TotalRisk)

	if accountSize > 0 {
		r.CapitalAtRisk = r.TotalRisk / accountSize * 100
	}

	r.Alerts = buildAlerts(&r, largest, largestID)
	return r
}

func toExposures(riskByKey map[string]float64, total float64) []Exposure {
	out := make([]Exposure, 0, len(riskByKey))
	for key, risk := range riskByKey {
		e := Exposure{Key: key, Risk: risk}
		if total > 0 {
			e.Percent = risk / total * 100
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Risk != out[j].Risk {
			return out[i].Risk > out[j].Risk
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func buildAlerts(r *Report, largest float64, largestID string) []Alert {
	var alerts []Alert

	switch {
	case r.CapitalAtRisk > capitalDangerPct:
		alerts = append(alerts, Alert{
			Level:   LevelDanger,
			Message: fmt.Sprintf("capital at risk %.1f%% exceeds %.0f%% of account", r.CapitalAtRisk, capitalDangerPct),
		})
	case r.CapitalAtRisk > capitalWarningPct:
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Message: fmt.Sprintf("capital at risk %.1f%% exceeds %.0f%% of account", r.CapitalAtRisk, capitalWarningPct),
		})
	}

	for _, e := range r.BySymbol {
		if e.Percent > symbolWarningPct {
			alerts = append(alerts, Alert{
				Level:   LevelWarning,
				Message: fmt.Sprintf("symbol %s carries %.1f%% of open risk", e.Key, e.Percent),
			})
		}
	}

	if r.AccountSize > 0 && largest/r.AccountSize*100 > positionInfoPct {
		alerts = append(alerts, Alert{
			Level:   LevelInfo,
			Message: fmt.Sprintf("position %s alone risks %.1f%% of the account", largestID, largest/r.AccountSize*100),
		})
	}
	return alerts
}
