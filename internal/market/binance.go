package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// candleLimit is how many candles a source asks for; enough for SMA50 with
// headroom.
const candleLimit = 120

// BinanceSource fetches spot klines for pure cryptocurrency pairs.
type BinanceSource struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewBinanceSource(baseURL string, timeout time.Duration, perMinute int) *BinanceSource {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &BinanceSource{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
	}
}

func (b *BinanceSource) Name() string { return "binance" }

var binanceIntervals = map[Timeframe]string{
	TF15m: "15m",
	TF1h:  "1h",
	TF4h:  "4h",
	TF1d:  "1d",
}

// Fetch validates the asset class before touching the network: a crypto-only
// source rejects FX and commodity symbols with a classification error.
func (b *BinanceSource) Fetch(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	if ClassifySymbol(symbol) != AssetCrypto {
		return nil, &SourceError{Source: b.Name(), Message: fmt.Sprintf("symbol %s is not a crypto pair", symbol), Cause: ErrWrongAssetClass}
	}
	interval, ok := binanceIntervals[tf]
	if !ok {
		return nil, &SourceError{Source: b.Name(), Message: fmt.Sprintf("unsupported timeframe %s", tf)}
	}
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return nil, &SourceError{Source: b.Name(), Message: "rate limit wait cancelled", Cause: err}
	}

	q := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(candleLimit)},
	}
	reqURL := b.baseURL + "/api/v3/klines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &SourceError{Source: b.Name(), Message: "build request", Cause: err}
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &SourceError{Source: b.Name(), Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{Source: b.Name(), Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	// Klines come as arrays mixing numbers and strings:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &SourceError{Source: b.Name(), Message: "parse klines body", Cause: err}
	}
	if len(rows) == 0 {
		return nil, &SourceError{Source: b.Name(), Message: "empty klines response"}
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, tsOK := asFinite(row[0])
		o, oOK := asFinite(row[1])
		h, hOK := asFinite(row[2])
		l, lOK := asFinite(row[3])
		c, cOK := asFinite(row[4])
		v, vOK := asFinite(row[5])
		if !tsOK || !oOK || !hOK || !lOK || !cOK {
			continue // non-finite values are dropped, not defaulted
		}
		if !vOK {
			v = 0
		}
		candles = append(candles, Candle{Time: int64(ts), Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	if len(candles) == 0 {
		return nil, &SourceError{Source: b.Name(), Message: "no usable candles in response"}
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// asFinite coerces a JSON scalar (number or numeric string) to a finite
// float64.
func asFinite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
