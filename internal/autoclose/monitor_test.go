package autoclose

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/schrute_spreads/internal/ledger"
	"github.com/eddiefleurent/schrute_spreads/internal/marketdata"
	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/storage"
)

var testNow = time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)

type recordingCloser struct {
	mu      sync.Mutex
	calls   []string
	err     error
	release chan struct{} // when set, RequestClose blocks until closed
}

func (c *recordingCloser) RequestClose(_ context.Context, positionID string, _ float64, _ string) error {
	c.mu.Lock()
	c.calls = append(c.calls, positionID)
	release := c.release
	err := c.err
	c.mu.Unlock()
	if release != nil {
		<-release
	}
	return err
}

func (c *recordingCloser) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fixture struct {
	ledger *ledger.Ledger
	store  *storage.MockStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMockStorage()
	l := ledger.New(store, log.New(io.Discard, "", 0))
	l.SetNowFunc(func() time.Time { return testNow })
	return &fixture{ledger: l, store: store}
}

// openShortPut opens a one-lot short put credit position.
func (f *fixture) openShortPut(t *testing.T, expiration time.Time, entry float64) *models.Position {
	t.Helper()
	pos, err := f.ledger.CreatePosition(ledger.CreateParams{
		Symbol:       "SPY",
		StrategyType: models.StrategyShortPut,
		StrategyName: "cash secured put",
		Legs: []models.Leg{
			{Type: models.OptionTypePut, Action: models.ActionSell, Strike: 100, Price: entry, Quantity: 1, Expiration: expiration},
		},
		EntryPrice: entry,
		Quantity:   1,
		Expiration: expiration,
	})
	require.NoError(t, err)
	return pos
}

// chainWithPut returns a ChainFunc serving one put contract at the given
// last price for every requested expiration.
func chainWithPut(last float64) ChainFunc {
	return func(symbol, expiration string) *marketdata.ChainSnapshot {
		return marketdata.NewChainSnapshot(symbol, expiration, []marketdata.Contract{
			{Type: models.OptionTypePut, Strike: 100, Last: last},
		})
	}
}

func newMonitor(f *fixture, closer Closer, rule Rule, chains ChainFunc) *Monitor {
	m := NewMonitor(Config{
		Ledger:       f.ledger,
		Chains:       chains,
		Closer:       closer,
		Rule:         func() Rule { return rule },
		Logger:       log.New(io.Discard, "", 0),
		CloseTimeout: time.Second,
	})
	m.SetNowFunc(func() time.Time { return testNow })
	return m
}

func TestEvaluate_TakeProfit(t *testing.T) {
	f := newFixture(t)
	pos := f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, &recordingCloser{}, rule, chainWithPut(0.50))

	intents := m.Evaluate(testNow)
	require.Len(t, intents, 1)
	assert.Equal(t, pos.ID, intents[0].PositionID)
	assert.Equal(t, ReasonTakeProfit, intents[0].Reason)
	assert.InDelta(t, 0.50, intents[0].ExitPrice, 1e-9)
	assert.InDelta(t, 75, intents[0].PLPercent, 1e-9)
}

func TestEvaluate_StopLoss(t *testing.T) {
	f := newFixture(t)
	f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, &recordingCloser{}, rule, chainWithPut(4.50))

	intents := m.Evaluate(testNow)
	require.Len(t, intents, 1)
	assert.Equal(t, ReasonStopLoss, intents[0].Reason)
	assert.InDelta(t, -125, intents[0].PLPercent, 1e-9)
}

func TestEvaluate_ExpiryOutranksTakeProfit(t *testing.T) {
	f := newFixture(t)
	// Expires in 12 hours and sits at a 75% profit: expiry wins.
	f.openShortPut(t, testNow.Add(12*time.Hour), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100, CloseBeforeExpiryHours: 24}
	m := newMonitor(f, &recordingCloser{}, rule, chainWithPut(0.50))

	intents := m.Evaluate(testNow)
	require.Len(t, intents, 1)
	assert.Equal(t, ReasonExpiry, intents[0].Reason)
}

func TestEvaluate_SkipsWithoutMark(t *testing.T) {
	f := newFixture(t)
	f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	noChain := func(string, string) *marketdata.ChainSnapshot { return nil }
	m := newMonitor(f, &recordingCloser{}, rule, noChain)

	assert.Empty(t, m.Evaluate(testNow))
}

func TestEvaluate_Disabled(t *testing.T) {
	f := newFixture(t)
	f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	m := newMonitor(f, &recordingCloser{}, Rule{Enabled: false}, chainWithPut(0.10))
	assert.Empty(t, m.Evaluate(testNow))
}

func TestEvaluate_HoldsInsideThresholds(t *testing.T) {
	f := newFixture(t)
	f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100, CloseBeforeExpiryHours: 24}
	// 25% profit: no trigger.
	m := newMonitor(f, &recordingCloser{}, rule, chainWithPut(1.50))
	assert.Empty(t, m.Evaluate(testNow))
}

func TestTick_ClosesThroughLedger(t *testing.T) {
	f := newFixture(t)
	pos := f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, &LedgerCloser{Ledger: f.ledger}, rule, chainWithPut(0.50))

	m.Tick(context.Background())
	m.Wait()

	closed, err := f.store.GetPositionByID(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.RealizedPnL)
	assert.InDelta(t, 150, *closed.RealizedPnL, 1e-9)
	assert.Equal(t, "Auto-closed: Take Profit", closed.Notes)
	assert.Empty(t, m.InFlight())

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, pos.ID, events[0].PositionID)
}

func TestTick_ReSignsDebitExit(t *testing.T) {
	f := newFixture(t)
	exp := testNow.AddDate(0, 0, 10)
	pos, err := f.ledger.CreatePosition(ledger.CreateParams{
		Symbol:       "SPY",
		StrategyType: models.StrategyLongCall,
		Legs: []models.Leg{
			{Type: models.OptionTypeCall, Action: models.ActionBuy, Strike: 100, Price: 4.00, Quantity: 1, Expiration: exp},
		},
		EntryPrice: -4.00,
		Quantity:   1,
	})
	require.NoError(t, err)

	chainFn := func(symbol, expiration string) *marketdata.ChainSnapshot {
		return marketdata.NewChainSnapshot(symbol, expiration, []marketdata.Contract{
			{Type: models.OptionTypeCall, Strike: 100, Last: 6.00},
		})
	}
	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, &LedgerCloser{Ledger: f.ledger}, rule, chainFn)

	m.Tick(context.Background())
	m.Wait()

	closed, err := f.store.GetPositionByID(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	// The intent carries the |mark|; the closer restores the debit sign so
	// selling at 6.00 against a 4.00 cost realizes +200.
	require.NotNil(t, closed.ExitPrice)
	assert.InDelta(t, -6.00, *closed.ExitPrice, 1e-9)
	require.NotNil(t, closed.RealizedPnL)
	assert.InDelta(t, 200, *closed.RealizedPnL, 1e-9)
}

func TestTick_InFlightDedup(t *testing.T) {
	f := newFixture(t)
	pos := f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	release := make(chan struct{})
	closer := &recordingCloser{release: release}
	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, closer, rule, chainWithPut(0.50))

	m.Tick(context.Background())
	// Second tick fires while the first close is still running.
	m.Tick(context.Background())

	assert.Eventually(t, func() bool { return closer.callCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{pos.ID}, m.InFlight())

	close(release)
	m.Wait()
	assert.Equal(t, 1, closer.callCount())
	assert.Empty(t, m.InFlight())
}

func TestTick_FailureLeavesPositionEligible(t *testing.T) {
	f := newFixture(t)
	pos := f.openShortPut(t, testNow.AddDate(0, 0, 10), 2.00)

	closer := &recordingCloser{err: errors.New("transient outage")}
	rule := Rule{Enabled: true, TakeProfitPercent: 50, StopLossPercent: 100}
	m := newMonitor(f, closer, rule, chainWithPut(0.50))

	m.Tick(context.Background())
	m.Wait()

	still, err := f.store.GetPositionByID(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, still.Status)
	assert.Empty(t, m.InFlight())

	// Next tick retriggers the same position.
	m.Tick(context.Background())
	m.Wait()
	assert.Equal(t, 2, closer.callCount())
}

func TestRecentEvents_Bounded(t *testing.T) {
	f := newFixture(t)
	m := newMonitor(f, &recordingCloser{}, Rule{Enabled: true}, nil)

	for i := 0; i < 5; i++ {
		m.appendEvent(Intent{PositionID: string(rune('a' + i)), Reason: ReasonTakeProfit})
	}

	recent := m.RecentEvents(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].PositionID)
	assert.Equal(t, "e", recent[1].PositionID)

	assert.Len(t, m.RecentEvents(0), 5)
	assert.Len(t, m.RecentEvents(10), 5)
	assert.Len(t, m.Events(), 5)
}

func TestRetryCloser(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		inner := &flakyCloser{failures: 2}
		rc := NewRetryCloser(inner, log.New(io.Discard, "", 0), cfg)
		err := rc.RequestClose(context.Background(), "p1", 0.50, "")
		require.NoError(t, err)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		inner := &flakyCloser{failures: 10}
		rc := NewRetryCloser(inner, log.New(io.Discard, "", 0), cfg)
		err := rc.RequestClose(context.Background(), "p1", 0.50, "")
		require.Error(t, err)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("does not retry terminal errors", func(t *testing.T) {
		inner := &flakyCloser{failures: 10, err: storage.ErrPositionNotFound}
		rc := NewRetryCloser(inner, log.New(io.Discard, "", 0), cfg)
		err := rc.RequestClose(context.Background(), "p1", 0.50, "")
		assert.ErrorIs(t, err, storage.ErrPositionNotFound)
		assert.Equal(t, 1, inner.calls)

		inner = &flakyCloser{failures: 10, err: ledger.ErrPositionNotOpen}
		rc = NewRetryCloser(inner, log.New(io.Discard, "", 0), cfg)
		err = rc.RequestClose(context.Background(), "p1", 0.50, "")
		assert.ErrorIs(t, err, ledger.ErrPositionNotOpen)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		inner := &flakyCloser{failures: 10}
		rc := NewRetryCloser(inner, log.New(io.Discard, "", 0), cfg)
		err := rc.RequestClose(ctx, "p1", 0.50, "")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, inner.calls)
	})
}

type flakyCloser struct {
	failures int
	calls    int
	err      error
}

func (f *flakyCloser) RequestClose(context.Context, string, float64, string) error {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return f.err
		}
		return errors.New("transient outage")
	}
	return nil
}
