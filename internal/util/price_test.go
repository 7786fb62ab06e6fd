package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"round down to penny", 1.234, 0.01, 1.23},
		{"round up to penny", 1.236, 0.01, 1.24},
		{"nickel ticks", 2.47, 0.05, 2.45},
		{"already on tick", 3.50, 0.25, 3.50},
		{"whole dollar grid", 98.5, 1.0, 99},
		{"negative price", -1.236, 0.01, -1.24},
		{"zero tick passes through", 1.234, 0, 1.234},
		{"negative tick passes through", 1.234, -0.05, 1.234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundToTick(tt.x, tt.tick), 1e-9)
		})
	}
}

func TestFloorToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"floor to penny", 1.239, 0.01, 1.23},
		{"floor to quarter", 101.90, 0.25, 101.75},
		{"exact multiple unchanged", 2.50, 0.50, 2.50},
		{"negative floors away from zero", -1.231, 0.01, -1.24},
		{"zero tick passes through", 1.239, 0, 1.239},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FloorToTick(tt.x, tt.tick), 1e-9)
		})
	}
}

func TestIsMultipleOf(t *testing.T) {
	assert.True(t, IsMultipleOf(100, 1))
	assert.True(t, IsMultipleOf(100.5, 0.5))
	assert.True(t, IsMultipleOf(2.35, 0.05))
	// 0.3 accumulates binary representation error but stays within tolerance.
	assert.True(t, IsMultipleOf(0.1+0.2, 0.1))
	assert.False(t, IsMultipleOf(100.3, 0.5))
	assert.False(t, IsMultipleOf(1.234, 0.05))
	assert.False(t, IsMultipleOf(1, 0))
	assert.False(t, IsMultipleOf(1, -0.5))
}
