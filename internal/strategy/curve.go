package strategy

import (
	"math"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/util"
)

// curveSamples is the fixed sample count for P/L curves. The step size is
// range/(curveSamples-1), well under 1/50 of the range, so breakeven
// resolution scales with the price magnitude instead of a fixed dollar step.
const curveSamples = 101

// Point is one sampled P/L curve point. Curves are produced fresh per
// request and never persisted.
type Point struct {
	Price float64 `json:"price"`
	PL    float64 `json:"pl"`
}

// Curve is a sampled P/L curve plus values derived from the samples.
// MaxProfit and MaxLoss are sample extrema: for shapes with a theoretically
// unlimited side the Unbounded flags are authoritative and ProfitBound /
// LossBound report the infinities.
type Curve struct {
	Points          []Point   `json:"points"`
	MaxProfit       float64   `json:"max_profit"`
	MaxLoss         float64   `json:"max_loss"`
	Breakevens      []float64 `json:"breakevens"`
	UnboundedProfit bool      `json:"unbounded_profit"`
	UnboundedLoss   bool      `json:"unbounded_loss"`
}

// ProfitBound returns the sampled max profit, or +Inf for shapes with
// uncapped upside (a long option with no offsetting short).
func (c *Curve) ProfitBound() float64 {
	if c.UnboundedProfit {
		return math.Inf(1)
	}
	return c.MaxProfit
}

// LossBound returns the sampled max loss, or -Inf for shapes with uncapped
// downside (a short option with no offsetting long).
func (c *Curve) LossBound() float64 {
	if c.UnboundedLoss {
		return math.Inf(-1)
	}
	return c.MaxLoss
}

// BuildCurve samples the candidate payoff over
// [center*(1-rangeFraction), center*(1+rangeFraction)] and derives max
// profit, max loss, and breakeven crossings from the samples.
func BuildCurve(c Candidate, center, rangeFraction float64) (*Curve, error) {
	if center <= 0 {
		return nil, &models.ValidationError{Field: "center", Reason: "center price must be positive"}
	}
	if rangeFraction <= 0 || rangeFraction >= 1 {
		return nil, &models.ValidationError{Field: "range_fraction", Reason: "range fraction must be in (0, 1)"}
	}
	if len(c.Legs) == 0 {
		return nil, &models.ValidationError{Field: "legs", Reason: "at least one leg is required"}
	}

	lo := center * (1 - rangeFraction)
	hi := center * (1 + rangeFraction)
	step := (hi - lo) / float64(curveSamples-1)

	curve := &Curve{Points: make([]Point, 0, curveSamples)}
	for i := 0; i < curveSamples; i++ {
		price := lo + float64(i)*step
		pl := PayoffAt(c, price)
		curve.Points = append(curve.Points, Point{Price: price, PL: pl})
		if i == 0 || pl > curve.MaxProfit {
			curve.MaxProfit = pl
		}
		if i == 0 || pl < curve.MaxLoss {
			curve.MaxLoss = pl
		}
	}

	tick := strikeGranularity(c.Legs)
	for i := 1; i < len(curve.Points); i++ {
		prev, cur := curve.Points[i-1].PL, curve.Points[i].PL
		if (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0) {
			curve.Breakevens = append(curve.Breakevens, util.RoundToTick(curve.Points[i].Price, tick))
		}
	}

	curve.UnboundedProfit, curve.UnboundedLoss = unboundedSides(c.Legs)
	return curve, nil
}

// unboundedSides inspects net long/short exposure per option type. A net
// long option with no offsetting short has uncapped profit; a net short one
// has uncapped loss.
func unboundedSides(legs []models.Leg) (profit, loss bool) {
	netCalls, netPuts := 0.0, 0.0
	for i := range legs {
		qty := legQty(&legs[i])
		if legs[i].Action == models.ActionSell {
			qty = -qty
		}
		if legs[i].Type == models.OptionTypeCall {
			netCalls += qty
		} else {
			netPuts += qty
		}
	}
	profit = netCalls > 0 || netPuts > 0
	loss = netCalls < 0 || netPuts < 0
	return profit, loss
}

// strikeGranularity picks the coarsest standard increment that every strike
// in the leg set is a multiple of. Breakevens are rounded to it so they land
// on the same grid as the input strikes.
func strikeGranularity(legs []models.Leg) float64 {
	ticks := []float64{1.0, 0.5, 0.25, 0.05, 0.01}
	for _, tick := range ticks {
		all := true
		for i := range legs {
			if !util.IsMultipleOf(legs[i].Strike, tick) {
				all = false
				break
			}
		}
		if all {
			return tick
		}
	}
	return 0.01
}
