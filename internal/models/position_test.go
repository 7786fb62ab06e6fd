package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOpenPosition() *Position {
	return &Position{
		ID:           "pos-1",
		Symbol:       "SPY",
		StrategyType: StrategyBullPutSpread,
		Status:       StatusOpen,
		EntryPrice:   1.50,
		Quantity:     2,
		OpenedAt:     time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC),
		Expiration:   time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
		Legs: []Leg{
			{Type: OptionTypePut, Action: ActionSell, Strike: 100, Price: 2.50, Quantity: 1},
			{Type: OptionTypePut, Action: ActionBuy, Strike: 95, Price: 1.00, Quantity: 1},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestLegValidate(t *testing.T) {
	tests := []struct {
		name      string
		leg       Leg
		wantField string
	}{
		{"valid", Leg{Type: OptionTypePut, Action: ActionSell, Strike: 100, Price: 2.50, Quantity: 1}, ""},
		{"bad option type", Leg{Type: "swaption", Action: ActionSell, Strike: 100, Quantity: 1}, "option_type"},
		{"bad action", Leg{Type: OptionTypePut, Action: "hold", Strike: 100, Quantity: 1}, "action"},
		{"zero strike", Leg{Type: OptionTypePut, Action: ActionSell, Strike: 0, Quantity: 1}, "strike"},
		{"negative premium", Leg{Type: OptionTypePut, Action: ActionSell, Strike: 100, Price: -0.5, Quantity: 1}, "price"},
		{"zero quantity", Leg{Type: OptionTypePut, Action: ActionSell, Strike: 100, Quantity: 0}, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.leg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestLegExpirationOr(t *testing.T) {
	fallback := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	own := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	leg := Leg{}
	assert.Equal(t, fallback, leg.ExpirationOr(fallback))

	leg.Expiration = own
	assert.Equal(t, own, leg.ExpirationOr(fallback))
}

func TestPositionValidate_Lifecycle(t *testing.T) {
	t.Run("valid open", func(t *testing.T) {
		assert.NoError(t, validOpenPosition().Validate())
	})

	t.Run("open rejects exit data", func(t *testing.T) {
		for _, mutate := range map[string]func(*Position){
			"exit_price":   func(p *Position) { p.ExitPrice = floatPtr(0.50) },
			"realized_pnl": func(p *Position) { p.RealizedPnL = floatPtr(200) },
			"closed_at":    func(p *Position) { p.ClosedAt = p.OpenedAt.Add(time.Hour) },
		} {
			p := validOpenPosition()
			mutate(p)
			assert.Error(t, p.Validate())
		}
	})

	t.Run("terminal requires exit data", func(t *testing.T) {
		closed := func() *Position {
			p := validOpenPosition()
			p.Status = StatusClosed
			p.ExitPrice = floatPtr(0.50)
			p.RealizedPnL = floatPtr(200)
			p.ClosedAt = p.OpenedAt.Add(48 * time.Hour)
			return p
		}
		assert.NoError(t, closed().Validate())

		for _, mutate := range []func(*Position){
			func(p *Position) { p.ExitPrice = nil },
			func(p *Position) { p.RealizedPnL = nil },
			func(p *Position) { p.ClosedAt = time.Time{} },
		} {
			p := closed()
			mutate(p)
			assert.Error(t, p.Validate())
		}
	})

	t.Run("structural errors", func(t *testing.T) {
		for field, mutate := range map[string]func(*Position){
			"symbol":   func(p *Position) { p.Symbol = "  " },
			"legs":     func(p *Position) { p.Legs = nil },
			"quantity": func(p *Position) { p.Quantity = 0 },
			"status":   func(p *Position) { p.Status = "pending" },
		} {
			p := validOpenPosition()
			mutate(p)
			var vErr *ValidationError
			require.ErrorAs(t, p.Validate(), &vErr, field)
			assert.Equal(t, field, vErr.Field)
		}
	})

	t.Run("leg errors carry index", func(t *testing.T) {
		p := validOpenPosition()
		p.Legs[1].Strike = -5
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leg 1")
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}

func TestPositionIsCredit(t *testing.T) {
	p := validOpenPosition()
	assert.True(t, p.IsCredit())

	p.EntryPrice = -4.00
	assert.False(t, p.IsCredit())

	p.EntryPrice = 0
	assert.True(t, p.IsCredit())
}

func TestPositionDTE(t *testing.T) {
	p := validOpenPosition()

	assert.Equal(t, 17, p.DTE(time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)))
	assert.Equal(t, 0, p.DTE(time.Date(2026, 9, 18, 10, 0, 0, 0, time.UTC)))
	// Past expiration clamps to zero.
	assert.Equal(t, 0, p.DTE(time.Date(2026, 9, 25, 10, 0, 0, 0, time.UTC)))
}

func TestPositionHoursToExpiry(t *testing.T) {
	p := validOpenPosition()
	assert.InDelta(t, 24, p.HoursToExpiry(time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.Less(t, p.HoursToExpiry(time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)), 0.0)
}

func TestPositionHoldingDays(t *testing.T) {
	p := validOpenPosition()
	now := p.OpenedAt.Add(36 * time.Hour)
	assert.InDelta(t, 1.5, p.HoldingDays(now), 1e-9)

	// ClosedAt wins over now once set.
	p.ClosedAt = p.OpenedAt.Add(72 * time.Hour)
	assert.InDelta(t, 3, p.HoldingDays(now), 1e-9)
}

func TestStrategyTypeNormalize(t *testing.T) {
	assert.Equal(t, StrategyBullPutSpread, StrategyBullPut.Normalize())
	assert.Equal(t, StrategyBearCallSpread, StrategyBearCall.Normalize())
	assert.Equal(t, StrategyIronCondor, StrategyIronCondor.Normalize())
	assert.Equal(t, StrategyCustom, StrategyCustom.Normalize())
}

func TestStrategyTypeValid(t *testing.T) {
	assert.True(t, StrategyBullPutSpread.Valid())
	assert.True(t, StrategyBullPut.Valid())
	assert.True(t, StrategyCalendarSpread.Valid())
	assert.False(t, StrategyType("covered_call").Valid())
}
