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

// TwelveDataSource covers FX pairs and the named metals/indices through the
// Twelve Data time_series endpoint. Numeric fields arrive as strings.
type TwelveDataSource struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewTwelveDataSource(baseURL, apiKey string, timeout time.Duration, perMinute int) *TwelveDataSource {
	if perMinute <= 0 {
		perMinute = 8 // free tier
	}
	return &TwelveDataSource{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
	}
}

func (t *TwelveDataSource) Name() string { return "twelvedata" }

var twelveDataIntervals = map[Timeframe]string{
	TF15m: "15min",
	TF1h:  "1h",
	TF4h:  "4h",
	TF1d:  "1day",
}

// twelveDataSymbols maps compact internal symbols onto the provider's
// vocabulary for instruments it does not accept verbatim.
var twelveDataSymbols = map[string]string{
	"XAUUSD": "XAU/USD",
	"XAGUSD": "XAG/USD",
	"XPTUSD": "XPT/USD",
	"SPX500": "SPX",
	"US500":  "SPX",
	"US30":   "DJI",
	"NAS100": "NDX",
	"GER40":  "GDAXI",
	"UK100":  "FTSE",
}

func (t *TwelveDataSource) providerSymbol(symbol string, class AssetClass) string {
	if mapped, ok := twelveDataSymbols[symbol]; ok {
		return mapped
	}
	if class == AssetFX && len(symbol) == 6 {
		return symbol[:3] + "/" + symbol[3:]
	}
	return symbol
}

type twelveDataEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

func (t *TwelveDataSource) Fetch(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	if t.apiKey == "" {
		return nil, &SourceError{Source: t.Name(), Message: "api key not configured"}
	}
	class := ClassifySymbol(symbol)
	if class != AssetFX && class != AssetCommodity {
		return nil, &SourceError{Source: t.Name(), Message: fmt.Sprintf("symbol %s is not FX or a named instrument", symbol), Cause: ErrWrongAssetClass}
	}
	interval, ok := twelveDataIntervals[tf]
	if !ok {
		return nil, &SourceError{Source: t.Name(), Message: fmt.Sprintf("unsupported timeframe %s", tf)}
	}
	if err := t.rateLimiter.Wait(ctx); err != nil {
		return nil, &SourceError{Source: t.Name(), Message: "rate limit wait cancelled", Cause: err}
	}

	q := url.Values{
		"symbol":     {t.providerSymbol(symbol, class)},
		"interval":   {interval},
		"outputsize": {fmt.Sprint(candleLimit)},
		"apikey":     {t.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/time_series?"+q.Encode(), nil)
	if err != nil {
		return nil, &SourceError{Source: t.Name(), Message: "build request", Cause: err}
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &SourceError{Source: t.Name(), Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SourceError{Source: t.Name(), Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var env twelveDataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &SourceError{Source: t.Name(), Message: "parse time_series body", Cause: err}
	}
	// The API reports errors inside a 200 body.
	if env.Status == "error" {
		return nil, &SourceError{Source: t.Name(), Message: env.Message}
	}
	if len(env.Values) == 0 {
		return nil, &SourceError{Source: t.Name(), Message: "no values in response"}
	}

	candles := make([]Candle, 0, len(env.Values))
	for _, v := range env.Values {
		ts, err := parseTwelveDataTime(v.Datetime)
		if err != nil {
			continue
		}
		o, oOK := asFinite(v.Open)
		h, hOK := asFinite(v.High)
		l, lOK := asFinite(v.Low)
		c, cOK := asFinite(v.Close)
		if !oOK || !hOK || !lOK || !cOK {
			continue
		}
		vol, volOK := asFinite(v.Volume)
		if !volOK {
			vol = 0
		}
		candles = append(candles, Candle{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: vol})
	}
	if len(candles) == 0 {
		return nil, &SourceError{Source: t.Name(), Message: "no usable candles in response"}
	}
	// Values arrive newest-first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func parseTwelveDataTime(s string) (int64, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized datetime %q", s)
}
