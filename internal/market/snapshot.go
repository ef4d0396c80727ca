package market

import "math"

// Trend labels the SMA20/SMA50 relationship.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// flatBand is the relative SMA spread below which the trend reads flat.
const flatBand = 0.001

// Snapshot is the derived summary handed to the prompt composer. SMA fields
// are nil when the series is too short.
type Snapshot struct {
	Symbol    string
	Timeframe Timeframe
	Last      float64
	ChangePct float64 // vs previous candle close
	SMA20     *float64
	SMA50     *float64
	RangeHigh float64 // high over the last 50 candles
	RangeLow  float64
	Trend     Trend
}

// sma returns the simple moving average of the last period closes, or false
// when history is insufficient.
func sma(candles []Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), true
}

// ComputeSnapshot derives the snapshot from an ascending candle series. Pure:
// no clock, no I/O. Returns nil for an empty series.
func ComputeSnapshot(symbol string, tf Timeframe, candles []Candle) *Snapshot {
	if len(candles) == 0 {
		return nil
	}

	snap := &Snapshot{
		Symbol:    symbol,
		Timeframe: tf,
		Last:      candles[len(candles)-1].Close,
		Trend:     TrendFlat,
	}

	if len(candles) >= 2 {
		prev := candles[len(candles)-2].Close
		if prev != 0 {
			snap.ChangePct = (snap.Last - prev) / prev * 100
		}
	}

	if v, ok := sma(candles, 20); ok {
		snap.SMA20 = &v
	}
	if v, ok := sma(candles, 50); ok {
		snap.SMA50 = &v
	}

	window := candles
	if len(window) > 50 {
		window = window[len(window)-50:]
	}
	snap.RangeHigh = math.Inf(-1)
	snap.RangeLow = math.Inf(1)
	for _, c := range window {
		snap.RangeHigh = math.Max(snap.RangeHigh, c.High)
		snap.RangeLow = math.Min(snap.RangeLow, c.Low)
	}

	// Trend needs both averages; with either missing it stays flat.
	if snap.SMA20 != nil && snap.SMA50 != nil && *snap.SMA50 != 0 {
		spread := (*snap.SMA20 - *snap.SMA50) / *snap.SMA50
		switch {
		case spread > flatBand:
			snap.Trend = TrendUp
		case spread < -flatBand:
			snap.Trend = TrendDown
		}
	}

	return snap
}
