// Package progress keeps the latest progress snapshot for each session.
package progress

import (
	"sort"
	"sync"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// Listener is notified of every update. It runs on the caller's goroutine and must not block.
type Listener func(models.ProgressSnapshot)

// Tracker is an in-memory snapshot table.
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[string]models.ProgressSnapshot
	listeners []Listener
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[string]models.ProgressSnapshot)}
}

// Subscribe registers a listener.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// UpdateProgress stores the snapshot as the session's latest.
func (t *Tracker) UpdateProgress(sessionID string, snapshot models.ProgressSnapshot) {
	t.mu.Lock()
	t.snapshots[sessionID] = snapshot
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// CalculateProgress returns the latest snapshot for the session.
func (t *Tracker) CalculateProgress(sessionID string) (models.ProgressSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.snapshots[sessionID]
	return s, ok
}

// Forget drops a session's snapshot.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshots, sessionID)
}

// All returns every snapshot, most recently updated first.
func (t *Tracker) All() []models.ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.ProgressSnapshot, 0, len(t.snapshots))
	for _, s := range t.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
