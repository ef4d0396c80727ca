package market

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tradevisor/tradevisor/internal/chain"
)

// Source is one candle provider. Fetch validates the symbol against the
// source's asset class before any network call.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error)
}

// Normalizer drives sources through the same ordered-fallback core as the
// text and vision chains and memoizes recent fetches briefly.
type Normalizer struct {
	order   []string
	sources map[string]Source
	timeout time.Duration
	cache   *gocache.Cache
}

func NewNormalizer(order []string, timeout time.Duration, cacheTTL time.Duration, sources ...Source) *Normalizer {
	bySource := make(map[string]Source, len(sources))
	for _, s := range sources {
		bySource[s.Name()] = s
	}
	return &Normalizer{
		order:   order,
		sources: bySource,
		timeout: timeout,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// FetchCandles tries the configured sources in order and returns the first
// non-empty ascending series. Exhaustion surfaces as the single
// market_data_unavailable code with the last source error attached for
// privileged debug output.
func (n *Normalizer) FetchCandles(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error) {
	key := symbol + "|" + string(tf)
	if cached, ok := n.cache.Get(key); ok {
		return cached.([]Candle), nil
	}

	candles, _, err := chain.Fallback(ctx, "market", n.order, n.timeout,
		func(cs []Candle) bool { return len(cs) > 0 },
		func(ctx context.Context, id string) ([]Candle, error) {
			src, ok := n.sources[id]
			if !ok {
				return nil, &SourceError{Source: id, Message: "source not registered"}
			}
			return src.Fetch(ctx, symbol, tf)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarketDataUnavailable, err)
	}

	n.cache.SetDefault(key, candles)
	return candles, nil
}

// Snapshot fetches candles and derives the summary in one step.
func (n *Normalizer) Snapshot(ctx context.Context, symbol string, tf Timeframe) (*Snapshot, error) {
	candles, err := n.FetchCandles(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	snap := ComputeSnapshot(symbol, tf, candles)
	if snap == nil {
		return nil, ErrMarketDataUnavailable
	}
	return snap, nil
}
