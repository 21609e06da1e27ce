package candle

// Window is a bounded chronological history of closed candles. When the
// window is full the oldest candle is evicted on append.
//
// Window is not safe for concurrent use; all mutation happens on the feed's
// message-handling goroutine.
type Window struct {
	candles  []Candle
	capacity int
}

// NewWindow creates a window holding at most capacity candles.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 100
	}
	return &Window{
		candles:  make([]Candle, 0, capacity),
		capacity: capacity,
	}
}

// Append admits a closed candle, evicting the oldest when full.
func (w *Window) Append(c Candle) {
	if len(w.candles) == w.capacity {
		copy(w.candles, w.candles[1:])
		w.candles[len(w.candles)-1] = c
		return
	}
	w.candles = append(w.candles, c)
}

// Len returns the number of candles currently held.
func (w *Window) Len() int { return len(w.candles) }

// Capacity returns the maximum number of candles held.
func (w *Window) Capacity() int { return w.capacity }

// Last returns the most recent candle and whether one exists.
func (w *Window) Last() (Candle, bool) {
	if len(w.candles) == 0 {
		return Candle{}, false
	}
	return w.candles[len(w.candles)-1], true
}

// At returns the candle at index i, oldest first.
func (w *Window) At(i int) Candle { return w.candles[i] }

// Closes returns a copy of the close prices, oldest first.
func (w *Window) Closes() []float64 {
	out := make([]float64, len(w.candles))
	for i, c := range w.candles {
		out[i] = c.Close
	}
	return out
}

// Volumes returns a copy of the volumes, oldest first.
func (w *Window) Volumes() []float64 {
	out := make([]float64, len(w.candles))
	for i, c := range w.candles {
		out[i] = c.Volume
	}
	return out
}

// Candles returns a copy of the full window contents, oldest first.
func (w *Window) Candles() []Candle {
	out := make([]Candle, len(w.candles))
	copy(out, w.candles)
	return out
}
