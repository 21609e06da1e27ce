package indicator

import (
	"testing"
	"time"

	"candlebot/internal/candle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Params{FastPeriod: 3, SlowPeriod: 5, VolumePeriod: 4, RSIPeriod: 4}

func windowOf(closes []float64, volumes []float64) *candle.Window {
	w := candle.NewWindow(len(closes) + 10)
	for i, cl := range closes {
		w.Append(candle.Candle{
			OpenTime: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			Open:     cl,
			High:     cl + 1,
			Low:      cl - 1,
			Close:    cl,
			Volume:   volumes[i],
		})
	}
	return w
}

func TestComputeNotReadyBeforeWarmup(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16}
	volumes := []float64{1, 1, 1, 1, 1, 1, 1}
	w := windowOf(closes, volumes)

	// Warmup for these params is 5+3 = 8 candles.
	require.Equal(t, 8, testParams.Warmup())
	snap := Compute(w, testParams)
	assert.False(t, snap.Ready)
}

func TestComputeReadySnapshot(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 12, 13, 14, 15}
	volumes := []float64{100, 110, 120, 130, 140, 150, 160, 400}
	w := windowOf(closes, volumes)

	snap := Compute(w, testParams)
	require.True(t, snap.Ready)

	// Fast SMA over last 3 closes, previous fast SMA shifted by one.
	assert.InDelta(t, (13.0+14+15)/3, snap.FastSMA, 1e-9)
	assert.InDelta(t, (12.0+13+14)/3, snap.PrevFastSMA, 1e-9)
	assert.InDelta(t, (11.0+12+13+14+15)/5, snap.SlowSMA, 1e-9)

	// Volume SMA excludes the newest candle's volume.
	assert.InDelta(t, (130.0+140+150+160)/4, snap.VolumeSMA, 1e-9)
}

func TestComputeIsDeterministic(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 12, 13, 14, 15, 14, 16}
	volumes := []float64{100, 110, 120, 130, 140, 150, 160, 170, 180, 190}
	w := windowOf(closes, volumes)

	first := Compute(w, testParams)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compute(w, testParams))
	}
}

func TestOBVIncreasing(t *testing.T) {
	// Three consecutive rising closes push OBV up three times.
	closes := []float64{10, 10, 10, 10, 10, 11, 12, 13}
	volumes := []float64{1, 1, 1, 1, 1, 5, 5, 5}
	snap := Compute(windowOf(closes, volumes), testParams)
	require.True(t, snap.Ready)
	assert.True(t, snap.OBVIncreasing())

	// A falling close in the last three breaks the run.
	closes = []float64{10, 10, 10, 10, 11, 12, 11, 13}
	snap = Compute(windowOf(closes, volumes), testParams)
	require.True(t, snap.Ready)
	assert.False(t, snap.OBVIncreasing())
}

func TestWarmupUsesLongestLookback(t *testing.T) {
	p := Params{FastPeriod: 9, SlowPeriod: 21, VolumePeriod: 20, RSIPeriod: 14}
	assert.Equal(t, 24, p.Warmup())

	p = Params{FastPeriod: 2, SlowPeriod: 3, VolumePeriod: 4, RSIPeriod: 30}
	assert.Equal(t, 33, p.Warmup())
}
