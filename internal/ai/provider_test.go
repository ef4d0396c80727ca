package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/prompt"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(
		NewOpenAIProvider("", "gpt-4o"),
		NewAnthropicProvider("key", "claude-sonnet-4-20250514"),
	)

	p, ok := reg.Lookup("anthropic")
	require.True(t, ok)
	require.True(t, p.Configured())

	p, ok = reg.Lookup("openai")
	require.True(t, ok)
	require.False(t, p.Configured(), "no key means unconfigured")

	_, ok = reg.Lookup("nonsense")
	require.False(t, ok)
}

func TestAnyConfigured(t *testing.T) {
	reg := NewRegistry(
		NewOpenAIProvider("", "gpt-4o"),
		NewGatewayProvider("", "", "default"),
	)
	require.False(t, reg.AnyConfigured([]string{"openai", "gateway"}))
	require.False(t, reg.AnyConfigured([]string{"missing"}))

	reg = NewRegistry(NewOpenAIProvider("sk-test", "gpt-4o"))
	require.True(t, reg.AnyConfigured([]string{"openai"}))
}

func TestUnconfiguredProvidersFailFast(t *testing.T) {
	ctx := context.Background()
	req := prompt.Request{System: "s", User: "u"}
	img := chain.NewScratch("http://example.invalid/c.png", 1024, nil)

	for _, p := range []Provider{
		NewOpenAIProvider("", "gpt-4o"),
		NewAnthropicProvider("", "claude-sonnet-4-20250514"),
		NewGatewayProvider("", "", "default"),
	} {
		_, err := p.Generate(ctx, req)
		require.ErrorIs(t, err, ErrNotConfigured, p.Name())
		_, err = p.Vision(ctx, req, img)
		require.ErrorIs(t, err, ErrNotConfigured, p.Name())
		_, err = p.Polish(ctx, "text")
		require.ErrorIs(t, err, ErrNotConfigured, p.Name())
	}
}

func TestGatewayGenerateAgainstCompatibleEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"stubbed analysis"}}]}`))
	}))
	defer srv.Close()

	g := NewGatewayProvider(srv.URL+"/v1", "token", "default")
	out, err := g.Generate(context.Background(), prompt.Request{System: "s", User: "u"})
	require.NoError(t, err)
	require.Equal(t, "stubbed analysis", out)
}

func TestGatewayVisionOversizeShortCircuits(t *testing.T) {
	var imageHits int32
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&imageHits, 1)
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer imgSrv.Close()

	var chatHits int32
	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatHits, 1)
	}))
	defer chatSrv.Close()

	g := NewGatewayProvider(chatSrv.URL+"/v1", "token", "default")
	img := chain.NewScratch(imgSrv.URL, 1024, imgSrv.Client())

	out, err := g.Vision(context.Background(), prompt.Request{}, img)
	require.NoError(t, err)
	require.Empty(t, out, "oversize image yields empty output, not an error")
	require.Zero(t, atomic.LoadInt32(&chatHits), "no model call for an oversized image")
	require.EqualValues(t, 1, imageHits)

	// A second byte-dependent attempt reuses the sticky verdict.
	out, err = g.Vision(context.Background(), prompt.Request{}, img)
	require.NoError(t, err)
	require.Empty(t, out)
	require.EqualValues(t, 1, imageHits, "oversize verdict must not trigger a re-download")
}
