package strategy

import (
	"sort"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// legBuckets partitions legs by (action, option type). Bucketing is the only
// grouping the classifier relies on; input order never matters.
type legBuckets struct {
	buyCalls  []models.Leg
	sellCalls []models.Leg
	buyPuts   []models.Leg
	sellPuts  []models.Leg
}

func bucketLegs(legs []models.Leg) legBuckets {
	var b legBuckets
	for _, leg := range legs {
		switch {
		case leg.Type == models.OptionTypeCall && leg.Action == models.ActionBuy:
			b.buyCalls = append(b.buyCalls, leg)
		case leg.Type == models.OptionTypeCall && leg.Action == models.ActionSell:
			b.sellCalls = append(b.sellCalls, leg)
		case leg.Type == models.OptionTypePut && leg.Action == models.ActionBuy:
			b.buyPuts = append(b.buyPuts, leg)
		case leg.Type == models.OptionTypePut && leg.Action == models.ActionSell:
			b.sellPuts = append(b.sellPuts, leg)
		}
	}
	for _, bucket := range [][]models.Leg{b.buyCalls, b.sellCalls, b.buyPuts, b.sellPuts} {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Strike < bucket[j].Strike })
	}
	return b
}

func (b *legBuckets) counts() (buyCalls, sellCalls, buyPuts, sellPuts int) {
	return len(b.buyCalls), len(b.sellCalls), len(b.buyPuts), len(b.sellPuts)
}

// Classify determines the canonical strategy type of an unordered leg set.
// It is deterministic and order-independent. Only the listed canonical
// shapes are recognized; anything else (short straddles, ratio spreads,
// five-leg constructions) classifies as custom rather than erroring.
func Classify(legs []models.Leg) models.StrategyType {
	if len(legs) == 0 {
		return models.StrategyCustom
	}

	b := bucketLegs(legs)
	bc, sc, bp, sp := b.counts()

	switch {
	case bc == 1 && sc == 0 && bp == 0 && sp == 0:
		return models.StrategyLongCall
	case bc == 0 && sc == 1 && bp == 0 && sp == 0:
		return models.StrategyShortCall
	case bc == 0 && sc == 0 && bp == 1 && sp == 0:
		return models.StrategyLongPut
	case bc == 0 && sc == 0 && bp == 0 && sp == 1:
		return models.StrategyShortPut

	case bc == 1 && sc == 1 && bp == 0 && sp == 0:
		buy, sell := b.buyCalls[0], b.sellCalls[0]
		if isCalendarPair(buy, sell) {
			return models.StrategyCalendarSpread
		}
		if buy.Strike > sell.Strike {
			return models.StrategyBearCallSpread
		}
		return models.StrategyBullCallSpread

	case bc == 0 && sc == 0 && bp == 1 && sp == 1:
		buy, sell := b.buyPuts[0], b.sellPuts[0]
		if isCalendarPair(buy, sell) {
			return models.StrategyCalendarSpread
		}
		if buy.Strike < sell.Strike {
			return models.StrategyBullPutSpread
		}
		return models.StrategyBearPutSpread

	case bc == 1 && sc == 1 && bp == 1 && sp == 1:
		return models.StrategyIronCondor

	case bc == 1 && sc == 0 && bp == 1 && sp == 0:
		if b.buyCalls[0].Strike == b.buyPuts[0].Strike {
			return models.StrategyStraddle
		}
		return models.StrategyStrangle
	}

	return models.StrategyCustom
}

// isCalendarPair reports a same-strike, same-type pair that spans two
// expirations: the one two-leg shape the strike-order rules cannot see.
func isCalendarPair(buy, sell models.Leg) bool {
	if buy.Strike != sell.Strike {
		return false
	}
	be, se := buy.Expiration, sell.Expiration
	if be.IsZero() || se.IsZero() {
		return false
	}
	return !be.Equal(se)
}
