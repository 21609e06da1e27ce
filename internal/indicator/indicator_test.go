package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{"basic", []float64{1, 2, 3, 4, 5}, 5, 3},
		{"uses last period values", []float64{100, 100, 1, 2, 3}, 3, 2},
		{"period equals length", []float64{2, 4}, 2, 3},
		{"insufficient data", []float64{1, 2}, 3, 0},
		{"zero period", []float64{1, 2, 3}, 0, 0},
		{"empty", nil, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SMA(tt.values, tt.period), 1e-9)
		})
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		period   int
		expected float64
	}{
		{
			name:     "mixed gains and losses",
			closes:   []float64{10, 11, 12, 11, 10, 9, 10, 11, 12, 13, 14, 13, 12, 11, 12},
			period:   5,
			expected: 52.91,
		},
		{
			name:     "all increasing is 100",
			closes:   []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19},
			period:   3,
			expected: 100,
		},
		{
			name:     "all decreasing is 0",
			closes:   []float64{20, 19, 18, 17, 16, 15, 14, 13, 12, 11},
			period:   3,
			expected: 0,
		},
		{
			name:     "flat prices are neutral",
			closes:   []float64{10, 10, 10, 10, 10, 10, 10, 10},
			period:   3,
			expected: 50,
		},
		{
			name:     "alternating",
			closes:   []float64{10, 11, 10, 11, 10, 11, 10, 11, 10},
			period:   2,
			expected: 33.59,
		},
		{
			name:     "insufficient data is neutral",
			closes:   []float64{10, 11, 12},
			period:   5,
			expected: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RSI(tt.closes, tt.period), 0.01)
		})
	}
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 11, 10, 12}
	volumes := []float64{100, 200, 300, 400, 500}

	obv := OBV(closes, volumes)

	// +200 on rise, unchanged on flat, -400 on fall, +500 on rise.
	assert.Equal(t, []float64{0, 200, 200, -200, 300}, obv)
}

func TestOBVMismatchedLengths(t *testing.T) {
	assert.Nil(t, OBV([]float64{1, 2}, []float64{1}))
	assert.Nil(t, OBV(nil, nil))
}
