package indicator

import "candlebot/internal/candle"

// Params holds the lookback periods used to derive a Snapshot.
type Params struct {
	FastPeriod   int
	SlowPeriod   int
	VolumePeriod int
	RSIPeriod    int
}

// warmupMargin is the number of extra candles required beyond the longest
// lookback before a snapshot is considered ready to act on.
const warmupMargin = 3

// Snapshot is the set of indicator values derived from one window state.
// It is a pure function of the window contents.
type Snapshot struct {
	FastSMA     float64    `json:"fast_sma"`
	PrevFastSMA float64    `json:"prev_fast_sma"`
	SlowSMA     float64    `json:"slow_sma"`
	VolumeSMA   float64    `json:"volume_sma"`
	RSI         float64    `json:"rsi"`
	OBV         [3]float64 `json:"obv"`

	// Ready reports whether the window held enough history for every
	// indicator; evaluation is a no-op until it does.
	Ready bool `json:"ready"`
}

// OBVIncreasing reports whether the last three volume-flow values are
// strictly increasing.
func (s Snapshot) OBVIncreasing() bool {
	return s.OBV[2] > s.OBV[1] && s.OBV[1] > s.OBV[0]
}

// Warmup returns the minimum window length required for a ready snapshot.
func (p Params) Warmup() int {
	n := p.SlowPeriod
	if p.RSIPeriod > n {
		n = p.RSIPeriod
	}
	if p.VolumePeriod > n {
		n = p.VolumePeriod
	}
	if p.FastPeriod > n {
		n = p.FastPeriod
	}
	return n + warmupMargin
}

// Compute derives a Snapshot from the window. The volume average is taken
// over the candles preceding the newest one, so a volume spike on the
// newest candle does not inflate its own baseline.
func Compute(w *candle.Window, p Params) Snapshot {
	closes := w.Closes()
	volumes := w.Volumes()

	if len(closes) < p.Warmup() {
		return Snapshot{}
	}

	obv := OBV(closes, volumes)

	s := Snapshot{
		FastSMA:     SMA(closes, p.FastPeriod),
		PrevFastSMA: SMA(closes[:len(closes)-1], p.FastPeriod),
		SlowSMA:     SMA(closes, p.SlowPeriod),
		VolumeSMA:   SMA(volumes[:len(volumes)-1], p.VolumePeriod),
		RSI:         RSI(closes, p.RSIPeriod),
		Ready:       true,
	}
	copy(s.OBV[:], obv[len(obv)-3:])
	return s
}
