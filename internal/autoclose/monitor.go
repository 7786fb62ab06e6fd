// Package autoclose evaluates take-profit, stop-loss, and expiry-proximity
// rules over open positions and dispatches close requests. Evaluation is a
// pure function of position state plus the rule configuration; execution is
// asynchronous with explicit in-flight tracking so a close still running
// when the next tick fires is never requested twice.
package autoclose

import (
	"context"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/ledger"
	"github.com/eddiefleurent/schrute_spreads/internal/marketdata"
	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// Rule is the auto-close configuration. It applies uniformly to all open
// positions.
type Rule struct {
	Enabled                bool
	TakeProfitPercent      float64
	StopLossPercent        float64
	CloseBeforeExpiryHours float64 // 0 disables the expiry-proximity check
}

// Reason tags why a close was triggered.
type Reason string

const (
	// ReasonTakeProfit fires when the P/L percent reaches the take-profit threshold
	ReasonTakeProfit Reason = "Take Profit"
	// ReasonStopLoss fires when the P/L percent falls through the stop-loss threshold
	ReasonStopLoss Reason = "Stop Loss"
	// ReasonExpiry fires inside the close-before-expiry window, ahead of P/L checks
	ReasonExpiry Reason = "Expiry"
)

// Intent is one close decision produced by an evaluation pass.
type Intent struct {
	PositionID string
	Name       string
	Reason     Reason
	ExitPrice  float64
	PLPercent  float64
}

// Event is the logged record of a triggered close. The event log is
// append-only; the full history is retained and callers take a bounded
// recent view for display.
type Event struct {
	PositionID string    `json:"position_id"`
	Name       string    `json:"name"`
	Reason     Reason    `json:"reason"`
	PLPercent  float64   `json:"pl_percent"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChainFunc returns the latest chain snapshot for a symbol and expiration,
// or nil when the chain is not loaded yet.
type ChainFunc func(symbol, expiration string) *marketdata.ChainSnapshot

// Closer executes a close request for a position.
type Closer interface {
	RequestClose(ctx context.Context, positionID string, exitPrice float64, notes string) error
}

// Monitor scans open positions each tick and triggers closes when rule
// thresholds are crossed.
type Monitor struct {
	ledger       *ledger.Ledger
	chains       ChainFunc
	closer       Closer
	ruleFn       func() Rule
	logger       *log.Logger
	closeTimeout time.Duration
	nowFn        func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	events   []Event
	wg       sync.WaitGroup
}

// Config bundles the monitor dependencies.
type Config struct {
	Ledger       *ledger.Ledger
	Chains       ChainFunc
	Closer       Closer
	Rule         func() Rule // called each tick so runtime config changes apply
	Logger       *log.Logger
	CloseTimeout time.Duration // bound on each close call; keeps a hung close from pinning its position in flight forever
}

// NewMonitor creates an auto-close monitor.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Ledger == nil {
		panic("autoclose.NewMonitor: ledger must not be nil")
	}
	if cfg.Closer == nil {
		panic("autoclose.NewMonitor: closer must not be nil")
	}
	if cfg.Rule == nil {
		panic("autoclose.NewMonitor: rule func must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "autoclose: ", log.LstdFlags)
	}
	timeout := cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Monitor{
		ledger:       cfg.Ledger,
		chains:       cfg.Chains,
		closer:       cfg.Closer,
		ruleFn:       cfg.Rule,
		logger:       logger,
		closeTimeout: timeout,
		nowFn:        time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (m *Monitor) SetNowFunc(fn func() time.Time) { m.nowFn = fn }

// Evaluate inspects every open position against the rule and returns the
// close intents. It does not consult the in-flight set and has no side
// effects; Tick applies the dedup.
func (m *Monitor) Evaluate(now time.Time) []Intent {
	rule := m.ruleFn()
	if !rule.Enabled {
		return nil
	}

	var intents []Intent
	for _, pos := range m.ledger.OpenPositions() {
		p := pos
		mark := m.markFor(&p)
		if mark == nil {
			// Chain still loading; skip this tick, not an error.
			continue
		}
		exitPrice := math.Abs(*mark)

		plPct := m.ledger.PLPercent(&p, *mark)

		// Expiry proximity outranks P/L triggers.
		if rule.CloseBeforeExpiryHours > 0 {
			hours := p.HoursToExpiry(now)
			if hours > 0 && hours <= rule.CloseBeforeExpiryHours {
				intents = append(intents, Intent{
					PositionID: p.ID,
					Name:       p.StrategyName,
					Reason:     ReasonExpiry,
					ExitPrice:  exitPrice,
					PLPercent:  pctOrZero(plPct),
				})
				continue
			}
		}

		if plPct == nil {
			continue
		}
		switch {
		case *plPct >= rule.TakeProfitPercent:
			intents = append(intents, Intent{
				PositionID: p.ID,
				Name:       p.StrategyName,
				Reason:     ReasonTakeProfit,
				ExitPrice:  exitPrice,
				PLPercent:  *plPct,
			})
		case *plPct <= -rule.StopLossPercent:
			intents = append(intents, Intent{
				PositionID: p.ID,
				Name:       p.StrategyName,
				Reason:     ReasonStopLoss,
				ExitPrice:  exitPrice,
				PLPercent:  *plPct,
			})
		}
	}
	return intents
}

// Tick runs one evaluation pass and dispatches each intent whose position
// is not already mid-close. Dispatched closes run asynchronously; the tick
// does not wait on them.
func (m *Monitor) Tick(ctx context.Context) {
	for _, intent := range m.Evaluate(m.nowFn()) {
		if !m.acquire(intent.PositionID) {
			continue
		}
		m.appendEvent(intent)
		m.logger.Printf("Auto-close triggered for %s (%s): %s at $%.2f (P/L %.1f%%)",
			intent.PositionID, intent.Name, intent.Reason, intent.ExitPrice, intent.PLPercent)

		m.wg.Add(1)
		go m.execute(ctx, intent)
	}
}

func (m *Monitor) execute(ctx context.Context, intent Intent) {
	defer m.wg.Done()
	defer m.release(intent.PositionID)

	closeCtx, cancel := context.WithTimeout(ctx, m.closeTimeout)
	defer cancel()

	notes := "Auto-closed: " + string(intent.Reason)
	if err := m.closer.RequestClose(closeCtx, intent.PositionID, intent.ExitPrice, notes); err != nil {
		// Position stays open and becomes eligible again next tick.
		m.logger.Printf("Auto-close failed for %s: %v", intent.PositionID, err)
	}
}

// Wait blocks until all dispatched closes finish. Used in shutdown and tests.
func (m *Monitor) Wait() { m.wg.Wait() }

func (m *Monitor) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight == nil {
		m.inflight = make(map[string]struct{})
	}
	if _, busy := m.inflight[id]; busy {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Monitor) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

// InFlight returns the ids currently mid-close.
func (m *Monitor) InFlight() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.inflight))
	for id := range m.inflight {
		out = append(out, id)
	}
	return out
}

func (m *Monitor) appendEvent(intent Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		PositionID: intent.PositionID,
		Name:       intent.Name,
		Reason:     intent.Reason,
		PLPercent:  intent.PLPercent,
		Timestamp:  m.nowFn().UTC(),
	})
}

// Events returns a copy of the full trigger history.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// RecentEvents returns the most recent n events, newest last.
func (m *Monitor) RecentEvents(n int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n >= len(m.events) {
		return append([]Event(nil), m.events...)
	}
	return append([]Event(nil), m.events[len(m.events)-n:]...)
}

// markFor assembles the chain set a position needs, one chain per distinct
// leg expiration, and marks the position against it.
func (m *Monitor) markFor(pos *models.Position) *float64 {
	if m.chains == nil {
		return nil
	}
	chains := marketdata.ChainSet{}
	for i := range pos.Legs {
		expKey := pos.Legs[i].ExpirationOr(pos.Expiration).Format("2006-01-02")
		if _, ok := chains[expKey]; ok {
			continue
		}
		chain := m.chains(pos.Symbol, expKey)
		if chain == nil {
			return nil
		}
		chains[expKey] = chain
	}
	return m.ledger.MarkToMarket(pos, chains)
}

func pctOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
