package indicator

import "crypto-signal-bot/internal/model"

// SMA calculates Simple Moving Average over a rolling window of closes.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(candle model.Candle) {
	s.Add(candle.Close)
}

// Add feeds a raw value. OBV uses this to run a signal SMA over its own
// line rather than over candle closes.
func (s *SMA) Add(price float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Peek returns the average as if price were the next value, without
// committing it. Still-forming candles are previewed through this path so
// their provisional closes never enter the rolling window.
func (s *SMA) Peek(price float64) float64 {
	if s.count < s.period {
		return (s.sum + price) / float64(s.count+1)
	}
	// Replace the oldest value (at idx) with the previewed price.
	return (s.sum - s.buf[s.idx] + price) / float64(s.period)
}

// PeekReady reports whether one more value would make the SMA ready.
func (s *SMA) PeekReady() bool { return s.count+1 >= s.period }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
