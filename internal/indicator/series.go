package indicator

import (
	"math"

	"crypto-signal-bot/internal/model"
)

// The *Series functions recompute a full indicator series from a candle
// window in one pass. Output slices are aligned index-for-index with the
// input; positions before an indicator's warmup hold NaN. These are the
// reference implementations the incremental types are tested against, and
// the source of chart overlay data.

// Closes extracts the close prices from a candle window.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMASeries computes a simple moving average series over closes.
func SMASeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range closes {
		sum += v
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries computes an exponential moving average series over the input,
// SMA-seeded, k = 2/(period+1). NaN inputs (e.g. the warmup region of a
// derived line) are skipped and do not advance the seed.
func EMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	seen := 0
	sum := 0.0
	prev := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		seen++
		if seen < period {
			sum += v
			continue
		}
		if seen == period {
			sum += v
			prev = sum / float64(period)
		} else {
			prev = v*k + prev*(1-k)
		}
		out[i] = prev
	}
	return out
}

// RSISeries computes a Wilder-smoothed RSI series over closes.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 1 || len(closes) < period+1 {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// MACDSeries computes the MACD line, signal line and histogram series.
func MACDSeries(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)

	macd = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	sig = EMASeries(macd, signal)

	hist = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(sig[i]) {
			hist[i] = macd[i] - sig[i]
		}
	}
	return macd, sig, hist
}

// OBVSeries computes an on-balance volume series over a candle window.
// The first candle seeds the total with its own volume; OBV is defined
// from the first candle on, so there is no NaN warmup region.
func OBVSeries(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[0] = c.Volume
			continue
		}
		prev := candles[i-1].Close
		switch {
		case c.Close > prev:
			out[i] = out[i-1] + c.Volume
		case c.Close < prev:
			out[i] = out[i-1] - c.Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
