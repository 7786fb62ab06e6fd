// Package strategy contains the pure computation layer of the desk: payoff
// valuation at expiration, leg-set classification, P/L curve sampling, and
// position sizing. Nothing in this package touches storage or the network.
package strategy

import (
	"math"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// Candidate is a priced multi-leg strategy draft: the unit of work for
// payoff valuation and curve building. EntryPrice follows the position sign
// convention (positive = net credit, negative = net debit). A zero Quantity
// is treated as one contract.
type Candidate struct {
	Type       models.StrategyType
	Legs       []models.Leg
	EntryPrice float64
	Quantity   int
}

// NewCandidate builds a Candidate from draft legs, deriving the strategy
// type and the signed net entry price from the leg premiums.
func NewCandidate(legs []models.Leg, quantity int) Candidate {
	return Candidate{
		Type:       Classify(legs),
		Legs:       legs,
		EntryPrice: NetPremium(legs),
		Quantity:   quantity,
	}
}

// NetPremium returns the signed per-contract net premium of a leg set:
// premiums received on short legs minus premiums paid on long legs.
func NetPremium(legs []models.Leg) float64 {
	net := 0.0
	for i := range legs {
		qty := legQty(&legs[i])
		if legs[i].Action == models.ActionSell {
			net += legs[i].Price * qty
		} else {
			net -= legs[i].Price * qty
		}
	}
	return net
}

// PayoffAt values the candidate at expiration for the given underlying
// price, in currency units (contract multiplier applied), scaled by the
// candidate quantity. Calendar spreads are valued at the near-leg expiration
// with a tent-shaped approximation; see calendarPayoff.
func PayoffAt(c Candidate, underlying float64) float64 {
	qty := float64(c.Quantity)
	if qty < 1 {
		qty = 1
	}
	return payoffPerContract(c, underlying) * qty
}

func payoffPerContract(c Candidate, s float64) float64 {
	b := bucketLegs(c.Legs)

	switch c.Type.Normalize() {
	case models.StrategyBullPutSpread:
		if len(b.sellPuts) == 1 && len(b.buyPuts) == 1 {
			short, long := b.sellPuts[0], b.buyPuts[0]
			return bullPutPayoff(short.Strike, long.Strike, short.Price-long.Price, s)
		}
	case models.StrategyBearCallSpread:
		if len(b.sellCalls) == 1 && len(b.buyCalls) == 1 {
			short, long := b.sellCalls[0], b.buyCalls[0]
			return bearCallPayoff(short.Strike, long.Strike, short.Price-long.Price, s)
		}
	case models.StrategyIronCondor:
		if len(b.sellPuts) == 1 && len(b.buyPuts) == 1 && len(b.sellCalls) == 1 && len(b.buyCalls) == 1 {
			putSide := bullPutPayoff(b.sellPuts[0].Strike, b.buyPuts[0].Strike,
				b.sellPuts[0].Price-b.buyPuts[0].Price, s)
			callSide := bearCallPayoff(b.sellCalls[0].Strike, b.buyCalls[0].Strike,
				b.sellCalls[0].Price-b.buyCalls[0].Price, s)
			return putSide + callSide
		}
	case models.StrategyIronButterfly:
		if len(b.sellPuts) == 1 && len(b.buyPuts) == 1 && len(b.sellCalls) == 1 && len(b.buyCalls) == 1 {
			return ironButterflyPayoff(b, creditOr(c), s)
		}
	case models.StrategyStraddle, models.StrategyStrangle:
		if len(b.buyCalls) == 1 && len(b.buyPuts) == 1 && len(b.sellCalls) == 0 && len(b.sellPuts) == 0 {
			return longPremiumPayoff(c.Legs, debitOr(c), s)
		}
	case models.StrategyCalendarSpread:
		if len(c.Legs) == 2 {
			return calendarPayoff(c, s)
		}
	}

	return genericPayoff(c, s)
}

// bullPutPayoff is the expiration value of a put credit spread: short strike
// ks above long strike kb, net credit per contract. A zero-width spread is a
// degenerate input and values as the constant credit.
func bullPutPayoff(ks, kb, credit, s float64) float64 {
	width := ks - kb
	if width <= 0 {
		return credit * models.SharesPerContract
	}
	switch {
	case s >= ks:
		return credit * models.SharesPerContract
	case s <= kb:
		return (credit - width) * models.SharesPerContract
	default:
		return (credit - (ks - s)) * models.SharesPerContract
	}
}

// bearCallPayoff is the mirror image: short strike ks below long strike kb.
func bearCallPayoff(ks, kb, credit, s float64) float64 {
	width := kb - ks
	if width <= 0 {
		return credit * models.SharesPerContract
	}
	switch {
	case s <= ks:
		return credit * models.SharesPerContract
	case s >= kb:
		return (credit - width) * models.SharesPerContract
	default:
		return (credit - (s - ks)) * models.SharesPerContract
	}
}

// ironButterflyPayoff decays linearly with distance from the shared short
// strike and floors at the wing value on the side the price moved toward.
func ironButterflyPayoff(b legBuckets, credit, s float64) float64 {
	center := b.sellPuts[0].Strike
	var wing float64
	if s >= center {
		wing = b.buyCalls[0].Strike - center
	} else {
		wing = center - b.buyPuts[0].Strike
	}
	if wing <= 0 {
		return credit * models.SharesPerContract
	}
	pl := (credit - math.Abs(s-center)) * models.SharesPerContract
	floor := (credit - wing) * models.SharesPerContract
	return math.Max(pl, floor)
}

// longPremiumPayoff values long straddles and strangles: summed in-the-money
// value of the long legs minus the debit paid.
func longPremiumPayoff(legs []models.Leg, debit, s float64) float64 {
	value := 0.0
	for i := range legs {
		value += intrinsic(&legs[i], s) * legQty(&legs[i])
	}
	return (value - debit) * models.SharesPerContract
}

// calendarPayoff is an explicit heuristic, not a model-based valuation: a
// tent centered at the shared strike with an estimated max profit of half
// the net debit, decaying to a full-debit loss over a band of +/-5% of the
// strike. Callers must not treat it as exact.
func calendarPayoff(c Candidate, s float64) float64 {
	strike := c.Legs[0].Strike
	debit := -NetPremium(c.Legs)
	if debit <= 0 && c.EntryPrice < 0 {
		debit = -c.EntryPrice
	}
	if debit < 0 {
		debit = 0
	}
	maxProfit := 0.5 * debit * models.SharesPerContract
	maxLoss := -debit * models.SharesPerContract
	band := 0.05 * strike
	if band <= 0 {
		return maxLoss
	}
	dist := math.Abs(s - strike)
	if dist >= band {
		return maxLoss
	}
	// Linear decay from the peak at the strike to the full loss at the band edge.
	return maxProfit - (dist/band)*(maxProfit-maxLoss)
}

// genericPayoff is the fallback leg-sum for custom and single-leg shapes:
// per-leg intrinsic value signed by side, plus the signed net premium.
func genericPayoff(c Candidate, s float64) float64 {
	total := 0.0
	for i := range c.Legs {
		leg := &c.Legs[i]
		sign := 1.0
		if leg.Action == models.ActionSell {
			sign = -1.0
		}
		total += sign * intrinsic(leg, s) * legQty(leg) * models.SharesPerContract
	}
	entry := c.EntryPrice
	if entry == 0 {
		entry = NetPremium(c.Legs)
	}
	return total + entry*models.SharesPerContract
}

func intrinsic(leg *models.Leg, s float64) float64 {
	if leg.Type == models.OptionTypeCall {
		return math.Max(0, s-leg.Strike)
	}
	return math.Max(0, leg.Strike-s)
}

func legQty(leg *models.Leg) float64 {
	if leg.Quantity < 1 {
		return 1
	}
	return float64(leg.Quantity)
}

// creditOr returns the net credit derived from the legs, falling back to the
// candidate entry price when the draft legs carry no premiums yet.
func creditOr(c Candidate) float64 {
	if net := NetPremium(c.Legs); net != 0 {
		return net
	}
	return c.EntryPrice
}

// debitOr returns the positive debit paid for long-premium shapes.
func debitOr(c Candidate) float64 {
	if net := NetPremium(c.Legs); net != 0 {
		return -net
	}
	return -c.EntryPrice
}
