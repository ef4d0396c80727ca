package chain

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ProviderHealth tracks attempt outcomes per provider across chain runs.
// Advisory only: it feeds the debug endpoint and logs, never chain order.
type ProviderHealth struct {
	Provider           string    `json:"provider"`
	ConsecutiveErrors  int       `json:"consecutive_errors"`
	ConsecutiveSuccess int       `json:"consecutive_success"`
	TotalAttempts      int64     `json:"total_attempts"`
	TotalErrors        int64     `json:"total_errors"`
	LastError          string    `json:"last_error,omitempty"`
	LastAttempt        time.Time `json:"last_attempt"`
}

type HealthRegistry struct {
	mu     sync.Mutex
	states map[string]*ProviderHealth
}

// DefaultHealth is the process-wide registry the executors record into.
var DefaultHealth = NewHealthRegistry()

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{states: make(map[string]*ProviderHealth)}
}

func (h *HealthRegistry) state(id string) *ProviderHealth {
	st, ok := h.states[id]
	if !ok {
		st = &ProviderHealth{Provider: id}
		h.states[id] = st
	}
	return st
}

func (h *HealthRegistry) RecordSuccess(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.state(id)
	st.ConsecutiveSuccess++
	st.ConsecutiveErrors = 0
	st.TotalAttempts++
	st.LastAttempt = time.Now()
}

func (h *HealthRegistry) RecordFailure(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.state(id)
	st.ConsecutiveErrors++
	st.ConsecutiveSuccess = 0
	st.TotalAttempts++
	st.TotalErrors++
	if err != nil {
		st.LastError = err.Error()
	}
	st.LastAttempt = time.Now()
}

// Snapshot returns copies so callers cannot mutate registry state.
func (h *HealthRegistry) Snapshot() map[string]ProviderHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]ProviderHealth, len(h.states))
	for id, st := range h.states {
		out[id] = *st
	}
	return out
}

// Handler exposes the registry as JSON on the debug port.
func (h *HealthRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.Snapshot())
	})
}
