// Package storage persists positions and daily P&L for the desk.
package storage

import (
	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// Interface defines the contract for position data persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call these methods from multiple
// goroutines.
//
// The provided JSONStorage implementation uses sync.RWMutex to serialize
// access, ensuring all Interface methods are protected for concurrent
// readers and writers.
type Interface interface {
	// Position management
	GetPositions() []models.Position
	GetOpenPositions() []models.Position
	GetPositionByID(id string) (*models.Position, error)
	AddPosition(pos *models.Position) error
	UpdatePosition(pos *models.Position) error
	DeletePosition(id string) error

	// Historical data
	GetHistory() []models.Position

	// Daily realized P&L cache
	RecordDailyPnL(date string, pnl float64) error
	GetDailyPnL(date string) float64

	// Data persistence
	Save() error
	Load() error
}

// NewStorage creates a new storage implementation (currently JSON-based).
// In the future, this can be extended to support different storage backends.
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)
