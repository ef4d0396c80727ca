package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinanceRejectsNonCryptoBeforeNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	b := NewBinanceSource(srv.URL, time.Second, 600)
	_, err := b.Fetch(context.Background(), "EURUSD", TF1h)
	require.ErrorIs(t, err, ErrWrongAssetClass)
	require.Zero(t, atomic.LoadInt32(&hits), "classification must fail before any network call")

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	require.Equal(t, "binance", srcErr.Source)
}

func TestBinanceParsesKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "1h", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`[
			[1700003600000, "35100", "35300", "35000", "35250", "120.5", 1700007199999],
			[1700000000000, "35000", "35200", "34900", "35100", "100.1", 1700003599999],
			[1700007200000, "35250", "NaN", "35100", "35400", "80.2", 1700010799999]
		]`))
	}))
	defer srv.Close()

	b := NewBinanceSource(srv.URL, time.Second, 600)
	candles, err := b.Fetch(context.Background(), "BTCUSDT", TF1h)
	require.NoError(t, err)

	// The NaN row is dropped, the rest come back in ascending time order.
	require.Len(t, candles, 2)
	require.Less(t, candles[0].Time, candles[1].Time)
	require.Equal(t, 35100.0, candles[1].Close)
	require.Equal(t, 100.1, candles[0].Volume)
}

func TestBinanceHTTPErrorIsSourceTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewBinanceSource(srv.URL, time.Second, 600)
	_, err := b.Fetch(context.Background(), "BTCUSDT", TF1h)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	require.Contains(t, srcErr.Message, "HTTP 400")
}

func TestTwelveDataErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"symbol not found"}`))
	}))
	defer srv.Close()

	td := NewTwelveDataSource(srv.URL, "key", time.Second, 600)
	_, err := td.Fetch(context.Background(), "EURUSD", TF1h)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	require.Equal(t, "twelvedata", srcErr.Source)
	require.Contains(t, srcErr.Message, "symbol not found")
}

func TestTwelveDataParsesValuesAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "EUR/USD", r.URL.Query().Get("symbol"))
		require.Equal(t, "1h", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"status":"ok","values":[
			{"datetime":"2024-01-02 11:00:00","open":"1.0950","high":"1.0960","low":"1.0940","close":"1.0955"},
			{"datetime":"2024-01-02 10:00:00","open":"1.0940","high":"1.0955","low":"1.0930","close":"1.0950"}
		]}`))
	}))
	defer srv.Close()

	td := NewTwelveDataSource(srv.URL, "key", time.Second, 600)
	candles, err := td.Fetch(context.Background(), "EURUSD", TF1h)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Less(t, candles[0].Time, candles[1].Time)
	require.Equal(t, 1.0955, candles[1].Close)
}

func TestTwelveDataWithoutKeyFailsFast(t *testing.T) {
	td := NewTwelveDataSource("http://unused", "", time.Second, 600)
	_, err := td.Fetch(context.Background(), "EURUSD", TF1h)
	require.Error(t, err)
}

func TestTwelveDataSymbolMapping(t *testing.T) {
	td := NewTwelveDataSource("http://unused", "key", time.Second, 600)
	require.Equal(t, "XAU/USD", td.providerSymbol("XAUUSD", AssetCommodity))
	require.Equal(t, "SPX", td.providerSymbol("SPX500", AssetCommodity))
	require.Equal(t, "GBP/JPY", td.providerSymbol("GBPJPY", AssetFX))
}

func TestFrankfurterRejectsIntraday(t *testing.T) {
	f := NewFrankfurterSource("http://unused", time.Second, 600)
	_, err := f.Fetch(context.Background(), "EURUSD", TF1h)
	require.Error(t, err)

	_, err = f.Fetch(context.Background(), "BTCUSDT", TF1d)
	require.ErrorIs(t, err, ErrWrongAssetClass)
}

func TestFrankfurterSynthesizesDailyCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{
			"2024-01-02":{"USD":1.09},
			"2024-01-03":{"USD":1.10},
			"2024-01-04":{"USD":1.08}
		}}`))
	}))
	defer srv.Close()

	f := NewFrankfurterSource(srv.URL, time.Second, 600)
	candles, err := f.Fetch(context.Background(), "EURUSD", TF1d)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	// Open of a synthesized candle is the previous close.
	require.Equal(t, 1.09, candles[1].Open)
	require.Equal(t, 1.10, candles[1].Close)
	require.Equal(t, 1.10, candles[2].High)
	require.Equal(t, 1.08, candles[2].Low)
}
