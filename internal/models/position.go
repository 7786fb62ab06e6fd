// Package models defines the core domain types shared across the desk:
// option legs, strategy tags, and paper-traded positions.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SharesPerContract is the contract multiplier: one option contract
// controls 100 underlying shares.
const SharesPerContract = 100.0

// OptionType represents the type of option contract.
type OptionType string

const (
	// OptionTypeCall represents a call option contract
	OptionTypeCall OptionType = "call"
	// OptionTypePut represents a put option contract
	OptionTypePut OptionType = "put"
)

// Valid returns true if the OptionType is one of the defined constants.
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// Action represents the side of an option leg.
type Action string

const (
	// ActionBuy opens a long leg
	ActionBuy Action = "buy"
	// ActionSell opens a short leg
	ActionSell Action = "sell"
)

// Valid returns true if the Action is one of the defined constants.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Leg is one option contract within a multi-leg strategy. Legs attached to a
// created Position are immutable; draft leg lists used for previews may be
// mutated freely by the caller.
type Leg struct {
	Type     OptionType `json:"option_type"`
	Action   Action     `json:"action"`
	Strike   float64    `json:"strike"`
	Price    float64    `json:"price"` // per-contract premium as quoted, >= 0
	Quantity int        `json:"quantity"`
	// Expiration is only set when the strategy spans two expirations
	// (calendar spreads); zero means the position-level expiration applies.
	Expiration time.Time `json:"expiration,omitempty"`
}

// Validate checks the leg fields against their domain constraints.
func (l *Leg) Validate() error {
	if !l.Type.Valid() {
		return &ValidationError{Field: "option_type", Reason: fmt.Sprintf("unknown option type %q", l.Type)}
	}
	if !l.Action.Valid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", l.Action)}
	}
	if l.Strike <= 0 {
		return &ValidationError{Field: "strike", Reason: fmt.Sprintf("strike must be positive (got %.2f)", l.Strike)}
	}
	if l.Price < 0 {
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("premium cannot be negative (got %.2f)", l.Price)}
	}
	if l.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("quantity must be >= 1 (got %d)", l.Quantity)}
	}
	return nil
}

// ExpirationOr returns the leg's own expiration when set, otherwise the
// given fallback (normally the position-level expiration).
func (l *Leg) ExpirationOr(fallback time.Time) time.Time {
	if l.Expiration.IsZero() {
		return fallback
	}
	return l.Expiration
}

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	// StatusOpen is the initial state of a created position
	StatusOpen PositionStatus = "open"
	// StatusClosed is reached by a user- or auto-close-triggered close
	StatusClosed PositionStatus = "closed"
	// StatusExpired is reached by the expiry sweep
	StatusExpired PositionStatus = "expired"
)

// Valid returns true if the PositionStatus is one of the defined constants.
func (s PositionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusExpired:
		return true
	default:
		return false
	}
}

// Terminal returns true for states that permit no further transition.
func (s PositionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusExpired
}

// Position is a persisted paper trade. EntryPrice is signed: positive means
// net credit received at entry, negative means net debit paid. ExitPrice and
// RealizedPnL are nil while the position is open and set exactly once when
// it reaches a terminal status.
type Position struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	StrategyType StrategyType   `json:"strategy_type"`
	StrategyName string         `json:"strategy_name"`
	Status       PositionStatus `json:"status"`
	EntryPrice   float64        `json:"entry_price"`
	ExitPrice    *float64       `json:"exit_price,omitempty"`
	Quantity     int            `json:"quantity"`
	OpenedAt     time.Time      `json:"opened_at"`
	ClosedAt     time.Time      `json:"closed_at,omitzero"`
	Expiration   time.Time      `json:"expiration"`
	Legs         []Leg          `json:"legs"`
	Notes        string         `json:"notes,omitempty"`
	RealizedPnL  *float64       `json:"realized_pnl,omitempty"`
}

// IsCredit reports whether the position collected a net credit at entry.
// Zero entry price counts as credit for sign purposes but has no defined
// percentage base.
func (p *Position) IsCredit() bool {
	return p.EntryPrice >= 0
}

// DTE returns whole days to expiration relative to now, clamped at 0.
func (p *Position) DTE(now time.Time) int {
	exp := p.Expiration.UTC().Truncate(24 * time.Hour)
	day := now.UTC().Truncate(24 * time.Hour)
	days := int(exp.Sub(day).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// HoursToExpiry returns fractional hours until expiration. Negative values
// mean the expiration has passed.
func (p *Position) HoursToExpiry(now time.Time) float64 {
	return p.Expiration.Sub(now).Hours()
}

// HoldingDays returns the holding period in fractional days, using ClosedAt
// for terminal positions and now otherwise.
func (p *Position) HoldingDays(now time.Time) float64 {
	end := now
	if !p.ClosedAt.IsZero() {
		end = p.ClosedAt
	}
	return end.Sub(p.OpenedAt).Hours() / 24
}

// Validate checks the position against its lifecycle invariants:
// an open position has no exit data, a terminal one has all of it.
func (p *Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if len(p.Legs) == 0 {
		return &ValidationError{Field: "legs", Reason: "at least one leg is required"}
	}
	if p.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("quantity must be >= 1 (got %d)", p.Quantity)}
	}
	if !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	for i := range p.Legs {
		if err := p.Legs[i].Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}

	switch {
	case p.Status == StatusOpen:
		if p.ExitPrice != nil {
			return &ValidationError{Field: "exit_price", Reason: "must be unset while open"}
		}
		if p.RealizedPnL != nil {
			return &ValidationError{Field: "realized_pnl", Reason: "must be unset while open"}
		}
		if !p.ClosedAt.IsZero() {
			return &ValidationError{Field: "closed_at", Reason: "must be zero while open"}
		}
	case p.Status.Terminal():
		if p.ExitPrice == nil {
			return &ValidationError{Field: "exit_price", Reason: fmt.Sprintf("must be set for %s positions", p.Status)}
		}
		if p.RealizedPnL == nil {
			return &ValidationError{Field: "realized_pnl", Reason: fmt.Sprintf("must be set for %s positions", p.Status)}
		}
		if p.ClosedAt.IsZero() {
			return &ValidationError{Field: "closed_at", Reason: fmt.Sprintf("must be set for %s positions", p.Status)}
		}
	}
	return nil
}
