package indicator

import "crypto-signal-bot/internal/model"

// OBV maintains On-Balance Volume: a running volume total that adds the
// candle's volume when the close rises and subtracts it when it falls.
// The first candle seeds the total with its own volume. A signal SMA over
// the OBV line gives the crossover trigger a second line to compare
// against, the same shape as MACD vs its signal.
type OBV struct {
	count     int
	prevClose float64
	obv       float64
	signal    *SMA
}

// NewOBV creates an OBV indicator with a signal SMA of the given period.
func NewOBV(signalPeriod int) *OBV {
	return &OBV{signal: NewSMA(signalPeriod)}
}

func (o *OBV) Name() string { return "OBV" }

func (o *OBV) Update(candle model.Candle) {
	o.count++
	if o.count == 1 {
		o.obv = candle.Volume
	} else {
		switch {
		case candle.Close > o.prevClose:
			o.obv += candle.Volume
		case candle.Close < o.prevClose:
			o.obv -= candle.Volume
		}
	}
	o.prevClose = candle.Close
	o.signal.Add(o.obv)
}

// Value returns the current OBV line value.
func (o *OBV) Value() float64 { return o.obv }

// Signal returns the current signal SMA value.
func (o *OBV) Signal() float64 { return o.signal.Value() }

func (o *OBV) Ready() bool { return o.signal.Ready() }

// Peek returns the OBV and signal lines as if the candle were the next
// close, without committing it.
func (o *OBV) Peek(close, volume float64) (line, signal float64) {
	line = o.obv
	switch {
	case o.count == 0:
		line = volume
	case close > o.prevClose:
		line += volume
	case close < o.prevClose:
		line -= volume
	}
	return line, o.signal.Peek(line)
}

// PeekReady reports whether one more candle would make the OBV ready.
func (o *OBV) PeekReady() bool { return o.signal.PeekReady() }

// Reset clears the OBV state for reuse.
func (o *OBV) Reset() {
	o.count = 0
	o.prevClose = 0
	o.obv = 0
	o.signal.Reset()
}
