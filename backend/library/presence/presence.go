// Package presence tracks which clients were seen recently.
package presence

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrEmptyClientID = errors.New("client id is required")

// Tracker remembers the last time each client checked in. Entries are
// never removed; those older than the window are ignored on read.
type Tracker struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Tracker) UpdateActivity(clientID string) error {
	if clientID == "" {
		return ErrEmptyClientID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[clientID] = t.now()
	return nil
}

func (t *Tracker) GetOnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	count := 0
	for _, at := range t.seen {
		if now.Sub(at) < t.window {
			count++
		}
	}
	return count
}

// GetOnlineIDs returns the active client ids in sorted order.
func (t *Tracker) GetOnlineIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	ids := make([]string, 0, len(t.seen))
	for id, at := range t.seen {
		if now.Sub(at) < t.window {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
