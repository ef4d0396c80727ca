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

// ErrBudgetExceeded marks a budget-bounded chain that ran out of wall-clock
// time before any provider produced output.
var ErrBudgetExceeded = errors.New("chain budget exceeded")

// DefaultGuard is the remaining-budget threshold below which no further
// attempt is started: a provider cannot usefully respond in under this.
const DefaultGuard = 500 * time.Millisecond

// RunBudget is Run with one shared wall-clock deadline across the whole
// chain, computed once at entry. Each attempt gets min(perAttempt, remaining);
// once the remaining budget drops to the guard threshold the chain stops
// early instead of starting a doomed attempt. An attempt already in flight
// when the budget expires is bounded by its own deadline, never preempted.
func RunBudget(ctx context.Context, name string, providers []string, perAttempt, total, guard time.Duration, attempt AttemptFunc) (Result, error) {
	if guard <= 0 {
		guard = DefaultGuard
	}
	deadline := time.Now().Add(total)
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
		remaining := time.Until(deadline)
		if remaining <= guard {
			observ.Log("chain_budget_exhausted", map[string]any{
				"run": runID, "chain": name, "attempts": attempts,
				"remaining_ms": remaining.Milliseconds(),
			})
			if lastErr != nil {
				return Result{}, fmt.Errorf("%w (chain=%s attempts=%d): last: %v", ErrBudgetExceeded, name, attempts, lastErr)
			}
			return Result{}, fmt.Errorf("%w (chain=%s attempts=%d)", ErrBudgetExceeded, name, attempts)
		}

		timeout := perAttempt
		if remaining < timeout {
			timeout = remaining
		}

		attempts++
		start := time.Now()
		out, err := runAttempt(ctx, id, timeout, attempt)
		elapsed := time.Since(start)

		observ.IncCounter("chain_attempts_total", map[string]string{"chain": name, "provider": id})
		observ.RecordDuration("chain_attempt", elapsed, map[string]string{"chain": name, "provider": id})

		trimmed := strings.TrimSpace(out)
		if err == nil && trimmed != "" {
			DefaultHealth.RecordSuccess(id)
			observ.Log("chain_success", map[string]any{
				"run": runID, "chain": name, "provider": id,
				"attempt": attempts, "elapsed_ms": elapsed.Milliseconds(),
			})
			return Result{Text: trimmed, Provider: id}, nil
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
	return Result{}, err
}
