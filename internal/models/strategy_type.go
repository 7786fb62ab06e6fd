package models

// StrategyType is a derived tag describing the canonical shape of a leg set.
// It is never trusted blindly: the classifier can always re-derive it from
// the legs.
type StrategyType string

const (
	// StrategyLongCall is a single long call
	StrategyLongCall StrategyType = "long_call"
	// StrategyShortCall is a single short call
	StrategyShortCall StrategyType = "short_call"
	// StrategyLongPut is a single long put
	StrategyLongPut StrategyType = "long_put"
	// StrategyShortPut is a single short put
	StrategyShortPut StrategyType = "short_put"
	// StrategyBullCallSpread is a call debit spread
	StrategyBullCallSpread StrategyType = "bull_call_spread"
	// StrategyBearCallSpread is a call credit spread
	StrategyBearCallSpread StrategyType = "bear_call_spread"
	// StrategyBullPutSpread is a put credit spread
	StrategyBullPutSpread StrategyType = "bull_put_spread"
	// StrategyBearPutSpread is a put debit spread
	StrategyBearPutSpread StrategyType = "bear_put_spread"
	// StrategyBullPut is a legacy alias for StrategyBullPutSpread
	StrategyBullPut StrategyType = "bull_put"
	// StrategyBearCall is a legacy alias for StrategyBearCallSpread
	StrategyBearCall StrategyType = "bear_call"
	// StrategyIronCondor combines a put credit spread and a call credit spread
	StrategyIronCondor StrategyType = "iron_condor"
	// StrategyIronButterfly is an iron condor with both short strikes at the center
	StrategyIronButterfly StrategyType = "iron_butterfly"
	// StrategyStraddle is a long call plus long put at the same strike
	StrategyStraddle StrategyType = "straddle"
	// StrategyStrangle is a long call plus long put at different strikes
	StrategyStrangle StrategyType = "strangle"
	// StrategyCalendarSpread is a same-strike spread across two expirations
	StrategyCalendarSpread StrategyType = "calendar_spread"
	// StrategyCustom is any leg combination without a canonical shape
	StrategyCustom StrategyType = "custom"
)

// Valid returns true if the StrategyType is one of the defined constants.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategyLongCall, StrategyShortCall, StrategyLongPut, StrategyShortPut,
		StrategyBullCallSpread, StrategyBearCallSpread, StrategyBullPutSpread,
		StrategyBearPutSpread, StrategyBullPut, StrategyBearCall,
		StrategyIronCondor, StrategyIronButterfly, StrategyStraddle,
		StrategyStrangle, StrategyCalendarSpread, StrategyCustom:
		return true
	default:
		return false
	}
}

// Normalize folds legacy aliases into their canonical spread names so that
// grouping and payoff dispatch see a single tag per shape.
func (t StrategyType) Normalize() StrategyType {
	switch t {
	case StrategyBullPut:
		return StrategyBullPutSpread
	case StrategyBearCall:
		return StrategyBearCallSpread
	default:
		return t
	}
}
