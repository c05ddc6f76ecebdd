package indicator

import "crypto-signal-bot/internal/model"

// MACD calculates Moving Average Convergence Divergence: the difference of
// a fast and a slow EMA over closes, plus a signal EMA over the MACD line
// itself. Each EMA is maintained incrementally, so Update is O(1).
//
// Ready once the signal line is seeded, i.e. after slow+signal-1 candles.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	macd float64
}

// NewMACD creates a MACD indicator with the given periods
// (typically 12/26/9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(candle model.Candle) {
	price := candle.Close
	m.fast.Add(price)
	m.slow.Add(price)

	if !m.slow.Ready() {
		return
	}

	m.macd = m.fast.Value() - m.slow.Value()
	m.signal.Add(m.macd)
}

// Value returns the current MACD line value.
func (m *MACD) Value() float64 { return m.macd }

// Signal returns the current signal line value.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns MACD line minus signal line.
func (m *MACD) Histogram() float64 { return m.macd - m.signal.Value() }

func (m *MACD) Ready() bool { return m.signal.Ready() }

// Peek returns the MACD and signal lines as if price were the next close,
// without committing it.
func (m *MACD) Peek(price float64) (line, signal float64) {
	line = m.fast.Peek(price) - m.slow.Peek(price)
	return line, m.signal.Peek(line)
}

// PeekReady reports whether one more close would make the MACD ready.
func (m *MACD) PeekReady() bool {
	return m.slow.PeekReady() && m.signal.PeekReady()
}

// Reset clears all three EMAs for reuse.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.macd = 0
}
