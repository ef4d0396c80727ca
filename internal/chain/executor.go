// Package chain implements ordered-fallback execution over interchangeable
// providers: try each configured provider in turn, first accepted result
// wins, per-provider failures are logged and swallowed until the whole chain
// is exhausted. The same core drives text generation, vision analysis and
// market-data fetching.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradevisor/tradevisor/internal/observ"
)

// AttemptFunc performs one bounded call against the named provider. It must
// honor ctx; attempts that outlive their deadline are abandoned, not awaited.
type AttemptFunc func(ctx context.Context, provider string) (string, error)

// Result is the outcome of a successful string chain run.
type Result struct {
	Text     string
	Provider string
}

var errRejectedOutput = errors.New("provider returned unusable output")

// ExhaustedError reports that every provider in a chain failed. Individual
// attempt errors are logged only; the last one is carried for privileged
// debug output.
type ExhaustedError struct {
	Chain    string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed (chain=%s attempts=%d): %v", e.Chain, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Fallback tries providers strictly in the caller-supplied order, each
// attempt bounded by its own timeout. A provider is attempted at most once
// per run. accept decides whether an error-free value counts as success;
// rejected values advance the chain like errors.
func Fallback[T any](ctx context.Context, name string, providers []string, timeout time.Duration, accept func(T) bool, attempt func(ctx context.Context, provider string) (T, error)) (T, string, error) {
	var zero T
	runID := uuid.NewString()
	var lastErr error
	attempts := 0

	for _, id := range providers {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}
		attempts++
		start := time.Now()
		out, err := runAttempt(ctx, id, timeout, attempt)
		elapsed := time.Since(start)

		observ.IncCounter("chain_attempts_total", map[string]string{"chain": name, "provider": id})
		observ.RecordDuration("chain_attempt", elapsed, map[string]string{"chain": name, "provider": id})

		if err == nil && accept(out) {
			DefaultHealth.RecordSuccess(id)
			observ.Log("chain_success", map[string]any{
				"run": runID, "chain": name, "provider": id,
				"attempt": attempts, "elapsed_ms": elapsed.Milliseconds(),
			})
			return out, id, nil
		}
		if err == nil {
			err = errRejectedOutput
		}
		lastErr = err
		DefaultHealth.RecordFailure(id, err)
		observ.LogErr("chain_attempt_failed", err, map[string]any{
			"run": runID, "chain": name, "provider": id,
			"attempt": attempts, "elapsed_ms": elapsed.Milliseconds(),
		})
	}

	err := &ExhaustedError{Chain: name, Attempts: attempts, Last: lastErr}
	observ.LogErr("chain_exhausted", err, map[string]any{"run": runID, "chain": name})
	return zero, "", err
}

// Run is the text instantiation: first non-empty, whitespace-trimmed string
// wins.
func Run(ctx context.Context, name string, providers []string, timeout time.Duration, attempt AttemptFunc) (Result, error) {
	text, id, err := Fallback(ctx, name, providers, timeout,
		func(s string) bool { return s != "" },
		func(ctx context.Context, provider string) (string, error) {
			out, err := attempt(ctx, provider)
			return strings.TrimSpace(out), err
		})
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Provider: id}, nil
}

// runAttempt bounds one attempt with its own deadline. If the provider
// ignores cancellation the in-flight call keeps running on its own goroutine
// until its context expires; the chain does not wait for it.
func runAttempt[T any](ctx context.Context, id string, timeout time.Duration, attempt func(ctx context.Context, provider string) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		out, err := attempt(actx, id)
		ch <- outcome{out, err}
	}()

	select {
	case o := <-ch:
		return o.out, o.err
	case <-actx.Done():
		var zero T
		return zero, fmt.Errorf("provider %s: %w", id, actx.Err())
	}
}
