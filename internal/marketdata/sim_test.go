package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

func TestBasePrice_StablePerSymbol(t *testing.T) {
	assert.InDelta(t, basePrice("SPY"), basePrice("SPY"), 1e-9)
	assert.GreaterOrEqual(t, basePrice("SPY"), 50.0)
	assert.Less(t, basePrice("SPY"), 550.0)
	// Distinct symbols land on distinct levels.
	assert.NotEqual(t, basePrice("SPY"), basePrice("QQQ"))
}

func TestSimProvider_GetQuote(t *testing.T) {
	sim := NewSimProvider()
	q, err := sim.GetQuote(context.Background(), "SPY")
	require.NoError(t, err)

	assert.Equal(t, "SPY", q.Symbol)
	assert.Greater(t, q.Last, 0.0)
	assert.Less(t, q.Bid, q.Ask)
	// The walk drifts at most 0.1% per observation.
	assert.InDelta(t, basePrice("SPY"), q.Last, basePrice("SPY")*0.002)
}

func TestSimProvider_GetExpirations(t *testing.T) {
	sim := NewSimProvider()
	sim.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) } // a Tuesday

	exps, err := sim.GetExpirations(context.Background(), "SPY")
	require.NoError(t, err)
	require.Len(t, exps, 8)

	assert.Equal(t, "2026-09-04", exps[0])
	for i, e := range exps {
		d, err := time.Parse("2006-01-02", e)
		require.NoError(t, err)
		assert.Equal(t, time.Friday, d.Weekday())
		if i > 0 {
			prev, _ := time.Parse("2006-01-02", exps[i-1])
			assert.Equal(t, prev.AddDate(0, 0, 7), d)
		}
	}
}

func TestSimProvider_GetOptionsChain(t *testing.T) {
	sim := NewSimProvider()
	sim.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }

	snap, err := sim.GetOptionsChain(context.Background(), "SPY", "2026-09-18")
	require.NoError(t, err)

	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, "2026-09-18", snap.Expiration)
	// 21 strikes, a put and a call at each.
	assert.Equal(t, 42, snap.Len())

	price := sim.prices["SPY"]
	interval := strikeInterval(price)
	atm := math.Floor(price/interval) * interval

	put, ok := snap.Lookup(atm, models.OptionTypePut)
	require.True(t, ok)
	call, ok := snap.Lookup(atm, models.OptionTypeCall)
	require.True(t, ok)

	assert.Greater(t, put.Last, 0.0)
	assert.Greater(t, call.Last, 0.0)
	assert.LessOrEqual(t, put.Delta, 0.0)
	assert.GreaterOrEqual(t, call.Delta, 0.0)
	assert.Less(t, put.Bid, put.Ask)

	// Deep in-the-money puts carry intrinsic value.
	itm, ok := snap.Lookup(atm+8*interval, models.OptionTypePut)
	require.True(t, ok)
	assert.Greater(t, itm.Last, put.Last)
}

func TestSimProvider_GetOptionsChain_BadExpiration(t *testing.T) {
	sim := NewSimProvider()
	_, err := sim.GetOptionsChain(context.Background(), "SPY", "Sep 18 2026")
	assert.Error(t, err)
}

func TestStrikeInterval(t *testing.T) {
	assert.InDelta(t, 10, strikeInterval(1200), 1e-9)
	assert.InDelta(t, 5, strikeInterval(450), 1e-9)
	assert.InDelta(t, 1, strikeInterval(120), 1e-9)
	assert.InDelta(t, 0.5, strikeInterval(30), 1e-9)
}

func TestOCCSymbol(t *testing.T) {
	exp := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "SPY260918P00450000", occSymbol("SPY", exp, models.OptionTypePut, 450))
	assert.Equal(t, "SPY260918C00450500", occSymbol("SPY", exp, models.OptionTypeCall, 450.5))
}
