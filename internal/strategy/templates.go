package strategy

import (
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/util"
)

// QuoteFunc resolves a per-contract mark premium for a strike and option
// type from whatever chain snapshot the caller holds. Returning 0 leaves
// the draft leg unpriced.
type QuoteFunc func(strike float64, optionType models.OptionType) float64

// TemplateConfig carries the user-adjustable strike geometry for template
// generation, all expressed as fractions of the center price.
type TemplateConfig struct {
	CenterOffsetPct float64 // short-strike distance from the center price
	SpreadWidthPct  float64 // long-wing distance from the short strike
	WingWidthPct    float64 // wing distance for condors and butterflies
}

// DefaultTemplateConfig mirrors the desk's default strategy generation
// filters: short strikes 2% out, one-percent wide wings.
var DefaultTemplateConfig = TemplateConfig{
	CenterOffsetPct: 0.02,
	SpreadWidthPct:  0.01,
	WingWidthPct:    0.01,
}

// strikeIncrement picks a plausible listed-strike increment for the price
// magnitude, so generated strikes land on real chain grid lines.
func strikeIncrement(center float64) float64 {
	switch {
	case center >= 1000:
		return 5
	case center >= 100:
		return 1
	default:
		return 0.5
	}
}

func (tc TemplateConfig) snap(center, raw float64) float64 {
	return util.RoundToTick(raw, strikeIncrement(center))
}

func priced(q QuoteFunc, strike float64, t models.OptionType) float64 {
	if q == nil {
		return 0
	}
	return q(strike, t)
}

// BullPut builds a put credit spread: sell a put below the center, buy a
// further-out put for protection.
func (tc TemplateConfig) BullPut(center float64, q QuoteFunc) Candidate {
	short := tc.snap(center, center*(1-tc.CenterOffsetPct))
	long := tc.snap(center, short-center*tc.SpreadWidthPct)
	legs := []models.Leg{
		{Type: models.OptionTypePut, Action: models.ActionSell, Strike: short, Price: priced(q, short, models.OptionTypePut), Quantity: 1},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: long, Price: priced(q, long, models.OptionTypePut), Quantity: 1},
	}
	return Candidate{Type: models.StrategyBullPutSpread, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// BearCall builds a call credit spread above the center price.
func (tc TemplateConfig) BearCall(center float64, q QuoteFunc) Candidate {
	short := tc.snap(center, center*(1+tc.CenterOffsetPct))
	long := tc.snap(center, short+center*tc.SpreadWidthPct)
	legs := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: short, Price: priced(q, short, models.OptionTypeCall), Quantity: 1},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: long, Price: priced(q, long, models.OptionTypeCall), Quantity: 1},
	}
	return Candidate{Type: models.StrategyBearCallSpread, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// IronCondor combines the bull put and bear call templates into a four-leg
// candidate with a single net credit.
func (tc TemplateConfig) IronCondor(center float64, q QuoteFunc) Candidate {
	put := tc.BullPut(center, q)
	call := tc.BearCall(center, q)
	legs := append(append([]models.Leg{}, put.Legs...), call.Legs...)
	return Candidate{Type: models.StrategyIronCondor, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// IronButterfly sells both a call and a put at the center strike and buys
// symmetric wings.
func (tc TemplateConfig) IronButterfly(center float64, q QuoteFunc) Candidate {
	mid := tc.snap(center, center)
	wing := center * tc.WingWidthPct
	lower := tc.snap(center, mid-wing)
	upper := tc.snap(center, mid+wing)
	legs := []models.Leg{
		{Type: models.OptionTypePut, Action: models.ActionSell, Strike: mid, Price: priced(q, mid, models.OptionTypePut), Quantity: 1},
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: mid, Price: priced(q, mid, models.OptionTypeCall), Quantity: 1},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: lower, Price: priced(q, lower, models.OptionTypePut), Quantity: 1},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: upper, Price: priced(q, upper, models.OptionTypeCall), Quantity: 1},
	}
	return Candidate{Type: models.StrategyIronButterfly, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// Straddle buys a call and a put at the center strike.
func (tc TemplateConfig) Straddle(center float64, q QuoteFunc) Candidate {
	mid := tc.snap(center, center)
	legs := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: mid, Price: priced(q, mid, models.OptionTypeCall), Quantity: 1},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: mid, Price: priced(q, mid, models.OptionTypePut), Quantity: 1},
	}
	return Candidate{Type: models.StrategyStraddle, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// Strangle buys an out-of-the-money call and put on either side of the
// center price.
func (tc TemplateConfig) Strangle(center float64, q QuoteFunc) Candidate {
	callStrike := tc.snap(center, center*(1+tc.CenterOffsetPct))
	putStrike := tc.snap(center, center*(1-tc.CenterOffsetPct))
	legs := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: callStrike, Price: priced(q, callStrike, models.OptionTypeCall), Quantity: 1},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: putStrike, Price: priced(q, putStrike, models.OptionTypePut), Quantity: 1},
	}
	return Candidate{Type: models.StrategyStrangle, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}

// Calendar sells the near-expiration call and buys the far one at the same
// at-the-money strike. Near and far quotes come from separate chains, so
// each side takes its own QuoteFunc.
func (tc TemplateConfig) Calendar(center float64, nearExp, farExp time.Time, nearQ, farQ QuoteFunc) Candidate {
	mid := tc.snap(center, center)
	legs := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: mid, Price: priced(nearQ, mid, models.OptionTypeCall), Quantity: 1, Expiration: nearExp},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: mid, Price: priced(farQ, mid, models.OptionTypeCall), Quantity: 1, Expiration: farExp},
	}
	return Candidate{Type: models.StrategyCalendarSpread, Legs: legs, EntryPrice: NetPremium(legs), Quantity: 1}
}
