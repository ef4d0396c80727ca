// Package market normalizes candle data from interchangeable providers into
// one canonical schema and derives the pure snapshot summary consumed by the
// prompt composer. Downstream code never sees provider-specific fields.
package market

import (
	"errors"
	"fmt"
	"strings"
)

// Candle is the canonical OHLC unit. Time is a millisecond epoch.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// Timeframe is the abstract interval vocabulary; each source maps it to its
// own interval names.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// ParseTimeframe maps user/settings input onto the closed enum.
func ParseTimeframe(raw string) (Timeframe, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "15m", "m15", "15":
		return TF15m, true
	case "1h", "h1", "60":
		return TF1h, true
	case "4h", "h4", "240":
		return TF4h, true
	case "1d", "d1", "d", "day":
		return TF1d, true
	}
	return "", false
}

// AssetClass partitions the symbol universe for source routing.
type AssetClass int

const (
	AssetUnknown AssetClass = iota
	AssetCrypto
	AssetFX
	AssetCommodity // named metals and indices
)

func (c AssetClass) String() string {
	switch c {
	case AssetCrypto:
		return "crypto"
	case AssetFX:
		return "fx"
	case AssetCommodity:
		return "commodity"
	default:
		return "unknown"
	}
}

// commodity covers the named metals and indices the bot understands.
var commodity = map[string]struct{}{
	"XAUUSD": {}, "XAGUSD": {}, "XPTUSD": {},
	"SPX500": {}, "US500": {}, "US30": {}, "NAS100": {}, "GER40": {}, "UK100": {},
}

var cryptoBases = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "BNB": {}, "XRP": {}, "ADA": {},
	"DOGE": {}, "DOT": {}, "LTC": {}, "AVAX": {}, "LINK": {}, "TON": {},
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// ClassifySymbol decides the asset class of a normalized symbol. Named
// metals/indices are checked before the six-letter FX rule so XAUUSD never
// reads as a currency pair.
func ClassifySymbol(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return AssetUnknown
	}
	if _, ok := commodity[s]; ok {
		return AssetCommodity
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD"} {
		if base, found := strings.CutSuffix(s, quote); found && base != "" {
			return AssetCrypto
		}
	}
	if base, found := strings.CutSuffix(s, "USD"); found {
		if _, ok := cryptoBases[base]; ok {
			return AssetCrypto
		}
	}
	if len(s) == 6 && isAlpha(s) {
		return AssetFX
	}
	return AssetUnknown
}

// ErrMarketDataUnavailable is the single external-facing market error code;
// per-source detail is logged and attached only for privileged callers.
var ErrMarketDataUnavailable = errors.New("market_data_unavailable")

// ErrWrongAssetClass is the fail-fast classification error raised by a
// source before any network call when the symbol is outside its universe.
var ErrWrongAssetClass = errors.New("symbol outside source asset class")

// SourceError tags a failure with the source that produced it.
type SourceError struct {
	Source  string
	Message string
	Cause   error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *SourceError) Unwrap() error { return e.Cause }
