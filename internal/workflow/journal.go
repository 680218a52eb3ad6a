package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one recorded step result.
type Entry struct {
	// Result is the JSON-encoded step result. Nil for steps that carry no
	// value (e.g. completed waits).
	Result json.RawMessage
	// RecordedAt is when the step completed, in UTC.
	RecordedAt time.Time
}

// Journal persists completed step results for a run so that a resumed
// invocation can replay them instead of re-executing the work.
//
// Implementations: MemoryJournal (non-durable, default) and the DynamoDB
// checkpoint store in internal/store.
type Journal interface {
	// Lookup returns the recorded entry for the step, or nil if the step
	// has not completed in this run.
	Lookup(ctx context.Context, runID, step string) (*Entry, error)
	// Record stores the result of a completed step.
	Record(ctx context.Context, runID, step string, result json.RawMessage) error
}

// MemoryJournal is an in-process Journal. Checkpoints do not survive the
// process, so a run backed by it restarts from scratch if interrupted.
// It is the fallback when no checkpoint table is configured, and the
// journal used by tests.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string]map[string]Entry
}

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string]map[string]Entry)}
}

func (m *MemoryJournal) Lookup(ctx context.Context, runID, step string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[runID][step]
	if !ok {
		return nil, nil
	}
	out := entry
	return &out, nil
}

func (m *MemoryJournal) Record(ctx context.Context, runID, step string, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[runID] == nil {
		m.entries[runID] = make(map[string]Entry)
	}
	m.entries[runID][step] = Entry{
		Result:     append(json.RawMessage(nil), result...),
		RecordedAt: time.Now().UTC(),
	}
	return nil
}
