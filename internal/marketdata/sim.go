package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// SimProvider is the paper-mode market data source: it generates plausible
// quotes and option chains without any network dependency. Prices follow a
// small random walk seeded from the symbol so separate runs of the same
// symbol start from the same level.
type SimProvider struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	baseIV float64
	now    func() time.Time
}

var _ Provider = (*SimProvider)(nil)

// NewSimProvider creates a simulated provider.
func NewSimProvider() *SimProvider {
	return &SimProvider{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		prices: make(map[string]float64),
		baseIV: 0.20,
		now:    time.Now,
	}
}

// basePrice derives a stable starting price for a symbol from its name.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	// Spread symbols over a 50..550 range.
	return 50 + float64(h.Sum32()%500)
}

func (s *SimProvider) currentPrice(symbol string) float64 {
	price, ok := s.prices[symbol]
	if !ok {
		price = basePrice(symbol)
	}
	// Small drift per observation.
	price += (s.rng.Float64() - 0.5) * price * 0.002
	s.prices[symbol] = price
	return price
}

// GetQuote returns a simulated quote for the symbol.
func (s *SimProvider) GetQuote(_ context.Context, symbol string) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.currentPrice(symbol)
	spread := math.Max(0.02, price*0.0002)
	return &Quote{
		Symbol: symbol,
		Last:   price,
		Bid:    price - spread/2,
		Ask:    price + spread/2,
		Change: (s.rng.Float64() - 0.5) * price * 0.01,
		Volume: s.rng.Int63n(50_000_000),
	}, nil
}

// GetExpirations returns the next eight weekly Friday expirations.
func (s *SimProvider) GetExpirations(_ context.Context, _ string) ([]string, error) {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	d := now
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	out := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		out = append(out, d.Format("2006-01-02"))
		d = d.AddDate(0, 0, 7)
	}
	return out, nil
}

// GetOptionsChain generates a chain of strikes around the current price with
// rough time-value pricing and decay-shaped greeks.
func (s *SimProvider) GetOptionsChain(_ context.Context, symbol, expiration string) (*ChainSnapshot, error) {
	expDate, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration format: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.currentPrice(symbol)
	dte := expDate.Sub(s.now()).Hours() / 24
	if dte < 0 {
		dte = 0
	}
	timeValue := dte / 365.0

	interval := strikeInterval(price)
	start := math.Floor(price/interval)*interval - 10*interval
	contracts := make([]Contract, 0, 42)

	for strike := start; strike <= start+20*interval; strike += interval {
		distance := math.Abs(strike - price)
		decay := math.Exp(-distance / (price * 0.02))

		putDelta := -0.5 * decay
		if strike > price {
			putDelta = -0.5 * (2 - decay)
		}
		callDelta := 0.5 * decay
		if strike < price {
			callDelta = 0.5 * (2 - decay)
		}
		putDelta = clamp(putDelta, -1, 0)
		callDelta = clamp(callDelta, 0, 1)

		extrinsic := math.Max(0.05, s.baseIV*math.Sqrt(timeValue)*price*0.4*decay)
		putPrice := math.Max(0, strike-price) + extrinsic
		callPrice := math.Max(0, price-strike) + extrinsic

		contracts = append(contracts,
			Contract{
				Symbol:       occSymbol(symbol, expDate, models.OptionTypePut, strike),
				Type:         models.OptionTypePut,
				Strike:       strike,
				Bid:          math.Max(0, putPrice-0.05),
				Ask:          putPrice + 0.05,
				Last:         putPrice,
				Delta:        putDelta,
				Gamma:        0.01 * decay,
				Theta:        -extrinsic / math.Max(1, dte),
				Vega:         0.1 * decay,
				IV:           s.baseIV,
				Volume:       s.rng.Int63n(10_000),
				OpenInterest: s.rng.Int63n(50_000),
			},
			Contract{
				Symbol:       occSymbol(symbol, expDate, models.OptionTypeCall, strike),
				Type:         models.OptionTypeCall,
				Strike:       strike,
				Bid:          math.Max(0, callPrice-0.05),
				Ask:          callPrice + 0.05,
				Last:         callPrice,
				Delta:        callDelta,
				Gamma:        0.01 * decay,
				Theta:        -extrinsic / math.Max(1, dte),
				Vega:         0.1 * decay,
				IV:           s.baseIV,
				Volume:       s.rng.Int63n(10_000),
				OpenInterest: s.rng.Int63n(50_000),
			},
		)
	}

	return NewChainSnapshot(symbol, expiration, contracts), nil
}

func strikeInterval(price float64) float64 {
	switch {
	case price >= 1000:
		return 10
	case price >= 200:
		return 5
	case price >= 50:
		return 1
	default:
		return 0.5
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func occSymbol(symbol string, exp time.Time, t models.OptionType, strike float64) string {
	letter := "C"
	if t == models.OptionTypePut {
		letter = "P"
	}
	return fmt.Sprintf("%s%s%s%08d", symbol, exp.Format("060102"), letter, int(strike*1000))
}
