package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// JSONStorage is a file-backed position store. Writes go to a temp file
// first and are renamed into place so a crash mid-save never corrupts the
// data file.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *storageData
}

type storageData struct {
	Positions   []models.Position  `json:"positions"`
	DailyPnL    map[string]float64 `json:"daily_pnl"`
	LastUpdated time.Time          `json:"last_updated"`
}

// NewJSONStorage creates a JSON-file store at the given path, loading any
// existing data file.
func NewJSONStorage(filepath string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: filepath,
		data: &storageData{
			DailyPnL: make(map[string]float64),
		},
	}

	if _, err := os.Stat(filepath); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

// Load reads the data file from disk, replacing in-memory state.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filepath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.filepath, err)
	}

	var data storageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filepath, err)
	}
	if data.DailyPnL == nil {
		data.DailyPnL = make(map[string]float64)
	}
	s.data = &data
	return nil
}

// Save writes the current state to disk atomically.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage: %w", err)
	}

	tmp := s.filepath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filepath); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// GetPositions returns copies of every stored position, regardless of status.
func (s *JSONStorage) GetPositions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPositions(s.data.Positions, func(*models.Position) bool { return true })
}

// GetOpenPositions returns copies of positions still in the open state.
func (s *JSONStorage) GetOpenPositions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPositions(s.data.Positions, func(p *models.Position) bool {
		return p.Status == models.StatusOpen
	})
}

// GetHistory returns copies of positions that reached a terminal status.
func (s *JSONStorage) GetHistory() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPositions(s.data.Positions, func(p *models.Position) bool {
		return p.Status.Terminal()
	})
}

// GetPositionByID returns a copy of the position with the given id.
func (s *JSONStorage) GetPositionByID(id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == id {
			cp := copyPosition(&s.data.Positions[i])
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("position %s: %w", id, ErrPositionNotFound)
}

// AddPosition inserts a new position and persists.
func (s *JSONStorage) AddPosition(pos *models.Position) error {
	if pos == nil {
		return fmt.Errorf("cannot add nil position")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == pos.ID {
			return fmt.Errorf("position %s: %w", pos.ID, ErrDuplicatePosition)
		}
	}
	s.data.Positions = append(s.data.Positions, copyPosition(pos))
	return s.saveLocked()
}

// UpdatePosition replaces the stored position with the same id and persists.
func (s *JSONStorage) UpdatePosition(pos *models.Position) error {
	if pos == nil {
		return fmt.Errorf("cannot update nil position")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == pos.ID {
			s.data.Positions[i] = copyPosition(pos)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("position %s: %w", pos.ID, ErrPositionNotFound)
}

// DeletePosition removes a position regardless of status and persists.
// This is a hard delete with no soft-delete state; confirmation is the
// caller's responsibility.
func (s *JSONStorage) DeletePosition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == id {
			s.data.Positions = append(s.data.Positions[:i], s.data.Positions[i+1:]...)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("position %s: %w", id, ErrPositionNotFound)
}

// RecordDailyPnL adds realized P&L to the bucket for the given date
// (YYYY-MM-DD) and persists.
func (s *JSONStorage) RecordDailyPnL(date string, pnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.DailyPnL[date] += pnl
	return s.saveLocked()
}

// GetDailyPnL returns the accumulated realized P&L for the given date.
func (s *JSONStorage) GetDailyPnL(date string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DailyPnL[date]
}

func copyPositions(positions []models.Position, keep func(*models.Position) bool) []models.Position {
	out := make([]models.Position, 0, len(positions))
	for i := range positions {
		if keep(&positions[i]) {
			out = append(out, copyPosition(&positions[i]))
		}
	}
	return out
}

// copyPosition deep-copies a position so callers never alias stored legs or
// pointer fields.
func copyPosition(p *models.Position) models.Position {
	cp := *p
	cp.Legs = append([]models.Leg(nil), p.Legs...)
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		cp.ExitPrice = &v
	}
	if p.RealizedPnL != nil {
		v := *p.RealizedPnL
		cp.RealizedPnL = &v
	}
	return cp
}
