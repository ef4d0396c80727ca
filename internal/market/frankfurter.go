package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// FrankfurterSource serves daily foreign-exchange candles from the ECB
// reference-rate API. It only knows daily closes, so it synthesizes candles
// (open = previous close) and rejects intraday timeframes upward.
type FrankfurterSource struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	now         func() time.Time
}

func NewFrankfurterSource(baseURL string, timeout time.Duration, perMinute int) *FrankfurterSource {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &FrankfurterSource{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
		now:         time.Now,
	}
}

func (f *FrankfurterSource) Name() string { return "frankfurter" }

type frankfurterEnvelope struct {
	Rates map[string]map[string]float64 `json:"rates"`
}

func (f *FrankfurterSource) Fetch(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	if ClassifySymbol(symbol) != AssetFX {
		return nil, &SourceError{Source: f.Name(), Message: fmt.Sprintf("symbol %s is not an FX pair", symbol), Cause: ErrWrongAssetClass}
	}
	if tf != TF1d {
		return nil, &SourceError{Source: f.Name(), Message: fmt.Sprintf("only daily candles available, not %s", tf)}
	}
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, &SourceError{Source: f.Name(), Message: "rate limit wait cancelled", Cause: err}
	}

	base, quote := symbol[:3], symbol[3:]
	end := f.now().UTC()
	start := end.AddDate(0, 0, -170) // ~120 business days of history

	q := url.Values{"from": {base}, "to": {quote}}
	reqURL := fmt.Sprintf("%s/%s..%s?%s", f.baseURL, start.Format("2006-01-02"), end.Format("2006-01-02"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &SourceError{Source: f.Name(), Message: "build request", Cause: err}
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &SourceError{Source: f.Name(), Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{Source: f.Name(), Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var env frankfurterEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &SourceError{Source: f.Name(), Message: "parse timeseries body", Cause: err}
	}
	if len(env.Rates) == 0 {
		return nil, &SourceError{Source: f.Name(), Message: "no rates in response"}
	}

	type point struct {
		ts    int64
		close float64
	}
	points := make([]point, 0, len(env.Rates))
	for day, byCurrency := range env.Rates {
		rateValue, ok := byCurrency[quote]
		if !ok {
			continue
		}
		v, finite := asFinite(rateValue)
		if !finite {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
		if err != nil {
			continue
		}
		points = append(points, point{ts: t.UnixMilli(), close: v})
	}
	if len(points) == 0 {
		return nil, &SourceError{Source: f.Name(), Message: "no usable rates in response"}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ts < points[j].ts })

	candles := make([]Candle, len(points))
	for i, p := range points {
		open := p.close
		if i > 0 {
			open = points[i-1].close
		}
		candles[i] = Candle{
			Time:  p.ts,
			Open:  open,
			High:  maxf(open, p.close),
			Low:   minf(open, p.close),
			Close: p.close,
		}
	}
	return candles, nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
