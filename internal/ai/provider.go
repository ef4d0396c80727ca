// Package ai adapts interchangeable language-model backends to one provider
// interface consumed by the fallback chains. Each adapter is one bounded
// request/response call; the chains own all retry and fallback policy.
package ai

import (
	"context"
	"errors"

	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/prompt"
)

// ErrNotConfigured marks a provider with no credentials. It is caught
// per-attempt inside a chain, logged and swallowed like any other attempt
// failure.
var ErrNotConfigured = errors.New("provider not configured")

// Provider is one language-model backend.
type Provider interface {
	Name() string
	Configured() bool
	// Generate produces a market analysis for a composed request.
	Generate(ctx context.Context, req prompt.Request) (string, error)
	// Vision analyzes a chart image shared through the chain scratch.
	// Byte-dependent providers short-circuit to empty output on an
	// oversized image; URL pass-through providers ignore the ceiling.
	Vision(ctx context.Context, req prompt.Request, img *chain.Scratch) (string, error)
	// Polish rewrites text for readability. Failures are never fatal to the
	// caller; the original text passes through unchanged.
	Polish(ctx context.Context, text string) (string, error)
}

const polishSystem = "You are an editor. Rewrite the analysis below so it reads cleanly in short paragraphs. Keep every number, level and caveat. Do not add new claims."

// Registry resolves configured chain identifiers to providers.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Registry{providers: byName}
}

func (r *Registry) Lookup(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// AnyConfigured reports whether at least one provider in the chain has
// credentials, i.e. whether running the chain can possibly succeed.
func (r *Registry) AnyConfigured(ids []string) bool {
	for _, id := range ids {
		if p, ok := r.providers[id]; ok && p.Configured() {
			return true
		}
	}
	return false
}
