// Package audit appends completed analyses to a JSONL trail. Writes are
// best-effort: a failed append is logged and dropped, it never fails the
// analysis that produced it.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tradevisor/tradevisor/internal/observ"
)

// Record is one completed analysis.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Kind      string    `json:"kind"` // text or vision
	Provider  string    `json:"provider"`
	Question  string    `json:"question,omitempty"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

type entry struct {
	Type  string    `json:"type"`
	Data  Record    `json:"data"`
	Event time.Time `json:"event"`
}

type Trail struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func New(path string) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &Trail{path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Append writes one record. Errors are swallowed after logging.
func (t *Trail) Append(rec Record) {
	if t == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now()
	}
	if err := t.write(entry{Type: "analysis", Data: rec, Event: t.now()}); err != nil {
		observ.LogErr("audit_append_failed", err, map[string]any{"path": t.path})
		observ.IncCounter("audit_append_failures_total", nil)
		return
	}
	observ.IncCounter("audit_appends_total", nil)
}

func (t *Trail) write(e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(string(data) + "\n")
	return err
}
