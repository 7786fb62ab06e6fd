package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		legs []models.Leg
		want models.StrategyType
	}{
		{
			name: "long call",
			legs: []models.Leg{{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Quantity: 1}},
			want: models.StrategyLongCall,
		},
		{
			name: "short call",
			legs: []models.Leg{{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 100, Quantity: 1}},
			want: models.StrategyShortCall,
		},
		{
			name: "long put",
			legs: []models.Leg{{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 100, Quantity: 1}},
			want: models.StrategyLongPut,
		},
		{
			name: "short put",
			legs: []models.Leg{{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 100, Quantity: 1}},
			want: models.StrategyShortPut,
		},
		{
			name: "bull call spread",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 105, Quantity: 1},
			},
			want: models.StrategyBullCallSpread,
		},
		{
			name: "bear call spread",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 105, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 110, Quantity: 1},
			},
			want: models.StrategyBearCallSpread,
		},
		{
			name: "bull put spread",
			legs: []models.Leg{
				{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 100, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 95, Quantity: 1},
			},
			want: models.StrategyBullPutSpread,
		},
		{
			name: "bear put spread",
			legs: []models.Leg{
				{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 100, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 95, Quantity: 1},
			},
			want: models.StrategyBearPutSpread,
		},
		{
			name: "iron condor",
			legs: []models.Leg{
				{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 95, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 90, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 105, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 110, Quantity: 1},
			},
			want: models.StrategyIronCondor,
		},
		{
			name: "straddle",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 100, Quantity: 1},
			},
			want: models.StrategyStraddle,
		},
		{
			name: "strangle",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 105, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 95, Quantity: 1},
			},
			want: models.StrategyStrangle,
		},
		{
			name: "short straddle is custom",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 100, Quantity: 1},
				{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 100, Quantity: 1},
			},
			want: models.StrategyCustom,
		},
		{
			name: "ratio spread is custom",
			legs: []models.Leg{
				{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 105, Quantity: 1},
				{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 110, Quantity: 1},
			},
			want: models.StrategyCustom,
		},
		{
			name: "empty is custom",
			legs: nil,
			want: models.StrategyCustom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.legs))
		})
	}
}

func TestClassify_Calendar(t *testing.T) {
	near := mustDate(t, "2026-09-18")
	far := mustDate(t, "2026-10-16")

	calendar := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 100, Quantity: 1, Expiration: near},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Quantity: 1, Expiration: far},
	}
	assert.Equal(t, models.StrategyCalendarSpread, Classify(calendar))

	// Same expiration on both legs is a vertical, not a calendar.
	vertical := []models.Leg{
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 100, Quantity: 1, Expiration: near},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 105, Quantity: 1, Expiration: near},
	}
	assert.Equal(t, models.StrategyBullCallSpread, Classify(vertical))

	// Put calendars classify the same way.
	putCalendar := []models.Leg{
		{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 100, Quantity: 1, Expiration: near},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 100, Quantity: 1, Expiration: far},
	}
	assert.Equal(t, models.StrategyCalendarSpread, Classify(putCalendar))
}

func TestClassify_OrderIndependent(t *testing.T) {
	legs := []models.Leg{
		{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 95, Quantity: 1},
		{Type: models.OptionTypePut, Action: models.ActionBuy, Strike: 90, Quantity: 1},
		{Type: models.OptionTypeCall, Action: models.ActionSell, Strike: 105, Quantity: 1},
		{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 110, Quantity: 1},
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Leg(nil), legs...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, models.StrategyIronCondor, Classify(shuffled))
	}
}

func TestTemplates_RoundTripClassification(t *testing.T) {
	const center = 100.0

	tests := []struct {
		name string
		cand Candidate
		want models.StrategyType
	}{
		{"bull put", DefaultTemplateConfig.BullPut(center, nil), models.StrategyBullPutSpread},
		{"bear call", DefaultTemplateConfig.BearCall(center, nil), models.StrategyBearCallSpread},
		{"iron condor", DefaultTemplateConfig.IronCondor(center, nil), models.StrategyIronCondor},
		{"straddle", DefaultTemplateConfig.Straddle(center, nil), models.StrategyStraddle},
		{"strangle", DefaultTemplateConfig.Strangle(center, nil), models.StrategyStrangle},
		{
			"calendar",
			DefaultTemplateConfig.Calendar(center, mustDate(t, "2026-09-18"), mustDate(t, "2026-10-16"), nil, nil),
			models.StrategyCalendarSpread,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.cand.Legs).Normalize())
		})
	}

	// Four one-of-each legs always read back as an iron condor, so the
	// butterfly template keeps its own tag instead of relying on Classify.
	fly := DefaultTemplateConfig.IronButterfly(center, nil)
	assert.Equal(t, models.StrategyIronCondor, Classify(fly.Legs))
	assert.Equal(t, models.StrategyIronButterfly, fly.Type)
}

func TestTemplates_PricedFromQuoteFunc(t *testing.T) {
	quote := func(strike float64, optionType models.OptionType) float64 {
		if optionType == models.OptionTypePut {
			return 2.00
		}
		return 1.50
	}
	c := DefaultTemplateConfig.IronCondor(100, quote)
	// Short and long legs carry the quoted premiums and net to zero here
	// because the fake quotes ignore the strike.
	assert.InDelta(t, 0, c.EntryPrice, 1e-9)
	for _, leg := range c.Legs {
		assert.NotZero(t, leg.Price)
	}
}
