package progress

import (
	"context"
	"sync"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

// Entries untouched for this long are pruned; their clip either
// finished and was read, or its worker died.
const staleAfter = 120 * time.Second

// Notifier pushes typed events to connected observers.
type Notifier interface {
	BroadcastEvent(event string, data interface{})
}

// Tracker keeps the latest pipeline state per clip. Writes are
// last-write-wins; readers poll or stream via the progress endpoints.
type Tracker struct {
	notifier Notifier

	mu      sync.RWMutex
	entries map[string]model.ProgressEvent
}

// NewTracker creates a tracker. notifier may be nil.
func NewTracker(notifier Notifier) *Tracker {
	return &Tracker{
		notifier: notifier,
		entries:  make(map[string]model.ProgressEvent),
	}
}

// Set records the latest state for a clip and pushes it to observers.
func (t *Tracker) Set(sunoID, status string, progress float64, message string) {
	event := model.ProgressEvent{
		SunoID:    sunoID,
		Status:    status,
		Progress:  progress,
		Message:   message,
		UpdatedAt: time.Now(),
	}

	t.mu.Lock()
	t.entries[sunoID] = event
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.BroadcastEvent(model.EventProgress, event)
	}
}

// Get returns the latest state for a clip.
func (t *Tracker) Get(sunoID string) (model.ProgressEvent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	event, ok := t.entries[sunoID]
	return event, ok
}

// Snapshot copies all current entries.
func (t *Tracker) Snapshot() map[string]model.ProgressEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]model.ProgressEvent, len(t.entries))
	for id, event := range t.entries {
		out[id] = event
	}
	return out
}

// Remove drops a clip's entry.
func (t *Tracker) Remove(sunoID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, sunoID)
}

// Cleanup prunes entries older than the staleness window and returns
// how many were removed.
func (t *Tracker) Cleanup() int {
	cutoff := time.Now().Add(-staleAfter)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, event := range t.entries {
		if event.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// RunCleanup prunes stale entries on a ticker until ctx is cancelled.
func (t *Tracker) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}
