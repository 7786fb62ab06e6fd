// Package marketdata defines the market-data collaborator surface: quotes,
// expirations, and immutable options-chain snapshots, with decorators for
// circuit breaking and snapshot caching.
package marketdata

import (
	"context"
	"math"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// Quote is a point-in-time underlying quote.
type Quote struct {
	Symbol           string  `json:"symbol"`
	Last             float64 `json:"last"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	Change           float64 `json:"change"`
	ChangePercentage float64 `json:"change_percentage"`
	Volume           int64   `json:"volume"`
}

// Contract is one tradable option contract within a chain snapshot. Greeks
// and implied volatility are opaque inputs supplied by the provider; the
// desk never computes them.
type Contract struct {
	Symbol       string            `json:"symbol"`
	Type         models.OptionType `json:"option_type"`
	Strike       float64           `json:"strike"`
	Bid          float64           `json:"bid"`
	Ask          float64           `json:"ask"`
	Last         float64           `json:"last"`
	Delta        float64           `json:"delta"`
	Gamma        float64           `json:"gamma"`
	Theta        float64           `json:"theta"`
	Vega         float64           `json:"vega"`
	IV           float64           `json:"implied_volatility"`
	Volume       int64             `json:"volume"`
	OpenInterest int64             `json:"open_interest"`
}

// MarkPrice is the price used to value a contract: the last trade when one
// exists, falling back to the bid. Never the ask.
func (c *Contract) MarkPrice() float64 {
	if c.Last > 0 {
		return c.Last
	}
	return c.Bid
}

type chainKey struct {
	strike int64 // strike * 1e4, avoids float equality
	typ    models.OptionType
}

func keyFor(strike float64, t models.OptionType) chainKey {
	return chainKey{strike: int64(math.Round(strike * 1e4)), typ: t}
}

// ChainSnapshot is one expiration's tradable contracts, read-only and
// point-in-time. The desk receives snapshots and never mutates shared
// provider state.
type ChainSnapshot struct {
	Symbol     string
	Expiration string // YYYY-MM-DD
	Retrieved  time.Time
	contracts  map[chainKey]Contract
}

// NewChainSnapshot builds an immutable snapshot from a contract list.
func NewChainSnapshot(symbol, expiration string, contracts []Contract) *ChainSnapshot {
	m := make(map[chainKey]Contract, len(contracts))
	for _, c := range contracts {
		m[keyFor(c.Strike, c.Type)] = c
	}
	return &ChainSnapshot{
		Symbol:     symbol,
		Expiration: expiration,
		Retrieved:  time.Now().UTC(),
		contracts:  m,
	}
}

// Lookup finds the contract at a strike and option type. The second return
// is false when the chain has no such contract.
func (s *ChainSnapshot) Lookup(strike float64, t models.OptionType) (Contract, bool) {
	c, ok := s.contracts[keyFor(strike, t)]
	return c, ok
}

// Contracts returns the snapshot's contracts as a fresh slice.
func (s *ChainSnapshot) Contracts() []Contract {
	out := make([]Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c)
	}
	return out
}

// Len returns the number of contracts in the snapshot.
func (s *ChainSnapshot) Len() int { return len(s.contracts) }

// ChainSet maps expiration dates (YYYY-MM-DD) to chain snapshots. Mark-to-
// market for calendar spreads looks each leg up in the chain matching its
// own expiration.
type ChainSet map[string]*ChainSnapshot

// Provider defines the interface for a market-data source.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetExpirations(ctx context.Context, symbol string) ([]string, error)
	GetOptionsChain(ctx context.Context, symbol, expiration string) (*ChainSnapshot, error)
}
