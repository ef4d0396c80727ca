package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	candles []Candle
	err     error
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	f.calls++
	return f.candles, f.err
}

func TestNormalizerFallsBackInOrder(t *testing.T) {
	down := &fakeSource{name: "down", err: errors.New("boom")}
	up := &fakeSource{name: "up", candles: series(1, 2, 3)}
	never := &fakeSource{name: "never", candles: series(9)}

	n := NewNormalizer([]string{"down", "up", "never"}, time.Second, time.Minute, down, up, never)
	candles, err := n.FetchCandles(context.Background(), "BTCUSDT", TF1h)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	require.Equal(t, 1, down.calls)
	require.Equal(t, 1, up.calls)
	require.Zero(t, never.calls, "sources after the first success must not be called")
}

func TestNormalizerExhaustionIsMarketDataUnavailable(t *testing.T) {
	lastErr := errors.New("second source down")
	a := &fakeSource{name: "a", err: errors.New("first source down")}
	b := &fakeSource{name: "b", err: lastErr}

	n := NewNormalizer([]string{"a", "b"}, time.Second, time.Minute, a, b)
	_, err := n.FetchCandles(context.Background(), "BTCUSDT", TF1h)
	require.ErrorIs(t, err, ErrMarketDataUnavailable)
	require.ErrorIs(t, err, lastErr, "last source error travels with the coarse code")
}

func TestNormalizerEmptySeriesAdvances(t *testing.T) {
	empty := &fakeSource{name: "empty"}
	full := &fakeSource{name: "full", candles: series(5)}

	n := NewNormalizer([]string{"empty", "full"}, time.Second, time.Minute, empty, full)
	candles, err := n.FetchCandles(context.Background(), "BTCUSDT", TF1h)
	require.NoError(t, err)
	require.Len(t, candles, 1)
}

func TestNormalizerCachesFetches(t *testing.T) {
	src := &fakeSource{name: "src", candles: series(1, 2)}
	n := NewNormalizer([]string{"src"}, time.Second, time.Minute, src)

	ctx := context.Background()
	_, err := n.FetchCandles(ctx, "BTCUSDT", TF1h)
	require.NoError(t, err)
	_, err = n.FetchCandles(ctx, "BTCUSDT", TF1h)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls, "second fetch within TTL must hit the cache")

	// Different timeframe is a different cache key.
	_, err = n.FetchCandles(ctx, "BTCUSDT", TF4h)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestNormalizerSnapshot(t *testing.T) {
	src := &fakeSource{name: "src", candles: series(100, 110)}
	n := NewNormalizer([]string{"src"}, time.Second, time.Minute, src)

	snap, err := n.Snapshot(context.Background(), "BTCUSDT", TF1h)
	require.NoError(t, err)
	require.Equal(t, 110.0, snap.Last)
	require.Equal(t, "BTCUSDT", snap.Symbol)
}
