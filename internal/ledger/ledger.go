// Package ledger owns the mutable set of paper positions: creation, mark to
// market against chain snapshots, unrealized and realized P&L, closing,
// deletion, and the expiry sweep.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/schrute_spreads/internal/marketdata"
	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/storage"
)

// ErrPositionNotOpen is returned by close attempts against a position that
// already reached a terminal status.
var ErrPositionNotOpen = errors.New("position is not open")

// Ledger coordinates position lifecycle against the positions store. All
// P&L math lives here; the store only persists.
type Ledger struct {
	store  storage.Interface
	logger *log.Logger
	nowFn  func() time.Time
}

// New creates a ledger over the given store.
func New(store storage.Interface, logger *log.Logger) *Ledger {
	if store == nil {
		panic("ledger.New: store must not be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "ledger: ", log.LstdFlags)
	}
	return &Ledger{store: store, logger: logger, nowFn: time.Now}
}

// SetNowFunc overrides the clock, for tests.
func (l *Ledger) SetNowFunc(fn func() time.Time) { l.nowFn = fn }

// CreateParams carries the inputs for opening a new position.
type CreateParams struct {
	Symbol       string
	StrategyType models.StrategyType
	StrategyName string
	Legs         []models.Leg
	EntryPrice   float64 // signed: positive credit, negative debit
	Quantity     int
	Expiration   time.Time // optional; derived from legs when zero
	Notes        string
}

// CreatePosition validates the params and inserts a new open position with
// a generated id.
func (l *Ledger) CreatePosition(params CreateParams) (*models.Position, error) {
	expiration := params.Expiration
	if expiration.IsZero() {
		expiration = nearestLegExpiration(params.Legs)
	}

	pos := &models.Position{
		ID:           uuid.New().String(),
		Symbol:       params.Symbol,
		StrategyType: params.StrategyType,
		StrategyName: params.StrategyName,
		Status:       models.StatusOpen,
		EntryPrice:   params.EntryPrice,
		Quantity:     params.Quantity,
		OpenedAt:     l.nowFn().UTC(),
		Expiration:   expiration,
		Legs:         append([]models.Leg(nil), params.Legs...),
		Notes:        params.Notes,
	}

	if err := pos.Validate(); err != nil {
		return nil, err
	}
	if err := l.store.AddPosition(pos); err != nil {
		return nil, fmt.Errorf("saving position: %w", err)
	}

	l.logger.Printf("Opened %s %s position %s: entry $%.2f x%d, expires %s",
		pos.Symbol, pos.StrategyType, pos.ID, pos.EntryPrice, pos.Quantity,
		pos.Expiration.Format("2006-01-02"))
	return pos, nil
}

// nearestLegExpiration picks the earliest leg expiration: the near leg for
// calendar spreads, the shared expiration otherwise.
func nearestLegExpiration(legs []models.Leg) time.Time {
	var nearest time.Time
	for i := range legs {
		exp := legs[i].Expiration
		if exp.IsZero() {
			continue
		}
		if nearest.IsZero() || exp.Before(nearest) {
			nearest = exp
		}
	}
	return nearest
}

// MarkToMarket computes the current per-contract cost to close the position
// from chain snapshots: short legs are bought back (add), long legs are sold
// (subtract). Each leg is looked up in the chain matching its own
// expiration. A nil result means the data is not available - some required
// chain is missing or a leg's contract is absent - and is an expected state,
// not an error.
func (l *Ledger) MarkToMarket(pos *models.Position, chains marketdata.ChainSet) *float64 {
	total := 0.0
	for i := range pos.Legs {
		leg := &pos.Legs[i]
		expKey := leg.ExpirationOr(pos.Expiration).Format("2006-01-02")
		chain, ok := chains[expKey]
		if !ok || chain == nil {
			return nil
		}
		contract, ok := chain.Lookup(leg.Strike, leg.Type)
		if !ok {
			return nil
		}

		mark := contract.MarkPrice() * legMultiplier(leg)
		if leg.Action == models.ActionSell {
			total += mark
		} else {
			total -= mark
		}
	}
	return &total
}

// MarkToMarketSnapshot marks against a single chain snapshot. Positions
// with legs on other expirations come back nil, so a caller holding one
// chain never silently prices half a calendar spread.
func (l *Ledger) MarkToMarketSnapshot(pos *models.Position, snapshot *marketdata.ChainSnapshot) *float64 {
	if snapshot == nil {
		return nil
	}
	return l.MarkToMarket(pos, marketdata.ChainSet{snapshot.Expiration: snapshot})
}

func legMultiplier(leg *models.Leg) float64 {
	if leg.Quantity < 1 {
		return 1
	}
	return float64(leg.Quantity)
}

// UnrealizedPnL values an open position against the current per-contract
// cost to close. The signed entry convention makes one formula serve both
// sides: credit positions profit as the close cost falls below the credit,
// debit positions profit as the close value rises above what was paid.
func (l *Ledger) UnrealizedPnL(pos *models.Position, currentClosePrice float64) float64 {
	return (pos.EntryPrice - currentClosePrice) * float64(pos.Quantity) * models.SharesPerContract
}

// PLPercent returns P&L as a percentage of the entry premium, or nil when
// the entry price is zero and no percentage base exists.
func (l *Ledger) PLPercent(pos *models.Position, currentClosePrice float64) *float64 {
	if pos.EntryPrice == 0 {
		return nil
	}
	var pct float64
	if pos.IsCredit() {
		pct = (pos.EntryPrice - currentClosePrice) / pos.EntryPrice * 100
	} else {
		base := math.Abs(pos.EntryPrice)
		pct = (math.Abs(currentClosePrice) - base) / base * 100
	}
	return &pct
}

// ClosePosition transitions an open position to closed at the given exit
// price, computing realized P&L with the same signed formula as unrealized
// P&L.
func (l *Ledger) ClosePosition(id string, exitPrice float64, notes string) (*models.Position, error) {
	pos, err := l.store.GetPositionByID(id)
	if err != nil {
		return nil, err
	}
	if pos.Status != models.StatusOpen {
		return nil, fmt.Errorf("position %s in status %s: %w", id, pos.Status, ErrPositionNotOpen)
	}

	now := l.nowFn().UTC()
	realized := l.UnrealizedPnL(pos, exitPrice)

	pos.Status = models.StatusClosed
	pos.ExitPrice = &exitPrice
	pos.ClosedAt = now
	pos.RealizedPnL = &realized
	if notes != "" {
		pos.Notes = notes
	}

	if err := l.store.UpdatePosition(pos); err != nil {
		return nil, fmt.Errorf("saving close: %w", err)
	}
	if err := l.store.RecordDailyPnL(now.Format("2006-01-02"), realized); err != nil {
		l.logger.Printf("Warning: failed to record daily P&L for %s: %v", id, err)
	}

	l.logger.Printf("Closed position %s at $%.2f, realized P&L $%.2f", id, exitPrice, realized)
	return pos, nil
}

// DeletePosition removes a position regardless of status. Hard delete;
// confirmation belongs to the caller boundary.
func (l *Ledger) DeletePosition(id string) error {
	if err := l.store.DeletePosition(id); err != nil {
		return err
	}
	l.logger.Printf("Deleted position %s", id)
	return nil
}

// MarkFunc resolves a last-known close price for a position, or nil when no
// mark is available.
type MarkFunc func(pos *models.Position) *float64

// ExpireSweep transitions every open position whose expiration has passed
// to expired. Realized P&L comes from the last known mark when the caller
// can supply one; otherwise expired legs are valued worthless (close cost
// zero), so a credit position keeps its full credit and a debit position
// loses its full debit. Returns the number of positions expired.
func (l *Ledger) ExpireSweep(now time.Time, markFor MarkFunc) (int, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	expired := 0
	var errs []error

	for _, pos := range l.store.GetOpenPositions() {
		exp := pos.Expiration.UTC().Truncate(24 * time.Hour)
		if !exp.Before(today) {
			continue
		}

		closeCost := 0.0
		if markFor != nil {
			if mark := markFor(&pos); mark != nil {
				closeCost = *mark
			}
		}

		realized := l.UnrealizedPnL(&pos, closeCost)
		pos.Status = models.StatusExpired
		pos.ExitPrice = &closeCost
		pos.ClosedAt = now.UTC()
		pos.RealizedPnL = &realized

		if err := l.store.UpdatePosition(&pos); err != nil {
			errs = append(errs, fmt.Errorf("expiring %s: %w", pos.ID, err))
			continue
		}
		if err := l.store.RecordDailyPnL(now.UTC().Format("2006-01-02"), realized); err != nil {
			l.logger.Printf("Warning: failed to record daily P&L for %s: %v", pos.ID, err)
		}
		l.logger.Printf("Expired position %s (%s), realized P&L $%.2f", pos.ID, pos.Symbol, realized)
		expired++
	}

	return expired, errors.Join(errs...)
}

// OpenPositions returns the open positions from the store.
func (l *Ledger) OpenPositions() []models.Position {
	return l.store.GetOpenPositions()
}

// History returns the terminal positions from the store.
func (l *Ledger) History() []models.Position {
	return l.store.GetHistory()
}

// Position returns one position by id.
func (l *Ledger) Position(id string) (*models.Position, error) {
	return l.store.GetPositionByID(id)
}
