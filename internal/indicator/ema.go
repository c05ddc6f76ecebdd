package indicator

import "crypto-signal-bot/internal/model"

// EMA calculates Exponential Moving Average, O(1) per update.
// The first value is seeded with an SMA over the initial window, then
// smoothed with k = 2/(period+1).
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(candle model.Candle) {
	e.Add(candle.Close)
}

// Add feeds a raw value. MACD uses this to run a signal EMA over its own
// output line rather than over candle closes.
func (e *EMA) Add(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = price*k + prev*(1-k)
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Peek returns the EMA as if price were the next value, without
// committing it.
func (e *EMA) Peek(price float64) float64 {
	if e.count+1 < e.period {
		return 0
	}
	if e.count+1 == e.period {
		// The previewed value completes the SMA seed.
		return (e.sum + price) / float64(e.period)
	}
	return (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

// PeekReady reports whether one more value would make the EMA ready.
func (e *EMA) PeekReady() bool { return e.count+1 >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}
