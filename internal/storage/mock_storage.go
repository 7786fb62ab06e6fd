package storage

import (
	"fmt"
	"sync"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// MockStorage implements Interface for testing. Error fields, when set, are
// returned by the corresponding mutation methods.
type MockStorage struct {
	mu          sync.Mutex
	positions   []models.Position
	dailyPnL    map[string]float64
	AddError    error
	UpdateError error
	DeleteError error
	SaveError   error
	LoadError   error

	SaveCallCount   int
	UpdateCallCount int
}

// NewMockStorage creates a new mock storage for testing.
func NewMockStorage() *MockStorage {
	return &MockStorage{dailyPnL: make(map[string]float64)}
}

var _ Interface = (*MockStorage)(nil)

// GetPositions returns copies of all positions.
func (m *MockStorage) GetPositions() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPositions(m.positions, func(*models.Position) bool { return true })
}

// GetOpenPositions returns copies of open positions.
func (m *MockStorage) GetOpenPositions() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPositions(m.positions, func(p *models.Position) bool {
		return p.Status == models.StatusOpen
	})
}

// GetHistory returns copies of terminal positions.
func (m *MockStorage) GetHistory() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPositions(m.positions, func(p *models.Position) bool {
		return p.Status.Terminal()
	})
}

// GetPositionByID returns a copy of the matching position.
func (m *MockStorage) GetPositionByID(id string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.positions {
		if m.positions[i].ID == id {
			cp := copyPosition(&m.positions[i])
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("position %s: %w", id, ErrPositionNotFound)
}

// AddPosition appends a position.
func (m *MockStorage) AddPosition(pos *models.Position) error {
	if m.AddError != nil {
		return m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.positions {
		if m.positions[i].ID == pos.ID {
			return fmt.Errorf("position %s: %w", pos.ID, ErrDuplicatePosition)
		}
	}
	m.positions = append(m.positions, copyPosition(pos))
	return nil
}

// UpdatePosition replaces the position with the same id.
func (m *MockStorage) UpdatePosition(pos *models.Position) error {
	m.mu.Lock()
	m.UpdateCallCount++
	m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.positions {
		if m.positions[i].ID == pos.ID {
			m.positions[i] = copyPosition(pos)
			return nil
		}
	}
	return fmt.Errorf("position %s: %w", pos.ID, ErrPositionNotFound)
}

// DeletePosition removes the position with the given id.
func (m *MockStorage) DeletePosition(id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.positions {
		if m.positions[i].ID == id {
			m.positions = append(m.positions[:i], m.positions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("position %s: %w", id, ErrPositionNotFound)
}

// RecordDailyPnL accumulates P&L for a date.
func (m *MockStorage) RecordDailyPnL(date string, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL[date] += pnl
	return nil
}

// GetDailyPnL returns the accumulated P&L for a date.
func (m *MockStorage) GetDailyPnL(date string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL[date]
}

// Save counts calls and returns the injected error, if any.
func (m *MockStorage) Save() error {
	m.mu.Lock()
	m.SaveCallCount++
	m.mu.Unlock()
	return m.SaveError
}

// Load returns the injected error, if any.
func (m *MockStorage) Load() error {
	return m.LoadError
}
