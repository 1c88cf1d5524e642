// SPDX-License-Identifier: LGPL-3.0-or-later

// Package dedup tracks seen wrap-event ids (to skip redundant decrypt work)
// and seen inner-request ids (to reject replays), each behind a TTL map
// with periodic age-based compaction, plus the monotone time cursor that
// bounds which inner event timestamps are still acceptable.
package dedup

import (
	"sync"
	"time"
)

// Window is how far back an inner event's created_at may lag the cursor's
// last compaction before it is rejected as stale.
const Window = 60 * time.Second

// FutureSlop is how far ahead of now an inner event's created_at may sit
// before it is rejected as being from the future.
const FutureSlop = 600 * time.Second

// CompactionInterval is how often the dedup maps and the cursor advance.
const CompactionInterval = time.Minute

// Tracker holds the wrap and inner-request dedup sets plus the shared time
// cursor. One instance is owned by the pipeline orchestrator.
type Tracker struct {
	mu         sync.Mutex
	wraps      map[string]time.Time
	requests   map[string]time.Time
	oldestTime time.Time
	tick       *time.Ticker
	stop       chan struct{}
}

// New starts a Tracker with its cursor anchored at the current time and its
// background compaction sweep running.
func New() *Tracker {
	t := &Tracker{
		wraps:      make(map[string]time.Time),
		requests:   make(map[string]time.Time),
		oldestTime: time.Now().Add(-Window),
		tick:       time.NewTicker(CompactionInterval),
		stop:       make(chan struct{}),
	}
	go t.gcLoop()
	return t
}

// Close stops the background compaction sweep.
func (t *Tracker) Close() {
	close(t.stop)
	t.tick.Stop()
}

// SeenWrap reports whether wrapID was already observed, and unconditionally
// records it for next time. Used to skip re-decrypting a gift-wrap the
// proxy has already opened (a relay may deliver the same event more than
// once).
func (t *Tracker) SeenWrap(wrapID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, seen := t.wraps[wrapID]
	t.wraps[wrapID] = time.Now()
	return seen
}

// SeenRequest reports whether an inner request id was already handled, and
// unconditionally records it. Used to reject replays of the same request.
func (t *Tracker) SeenRequest(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, seen := t.requests[requestID]
	t.requests[requestID] = time.Now()
	return seen
}

// InWindow reports whether createdAt falls within the accepted time window:
// not older than the cursor's oldestTime, and not more than FutureSlop
// ahead of now.
func (t *Tracker) InWindow(createdAt time.Time) bool {
	t.mu.Lock()
	oldest := t.oldestTime
	t.mu.Unlock()
	now := time.Now()
	if createdAt.Before(oldest) {
		return false
	}
	return !createdAt.After(now.Add(FutureSlop))
}

// OldestTime returns the cursor's current lower bound, for logging/metrics.
func (t *Tracker) OldestTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.oldestTime
}

func (t *Tracker) gcLoop() {
	for {
		select {
		case <-t.tick.C:
			t.compact(time.Now())
		case <-t.stop:
			return
		}
	}
}

// compact advances the cursor to now-Window and drops dedup entries older
// than that new cursor; the cursor only ever moves forward.
func (t *Tracker) compact(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := now.Add(-Window)
	if next.After(t.oldestTime) {
		t.oldestTime = next
	}
	for id, seen := range t.wraps {
		if seen.Before(t.oldestTime) {
			delete(t.wraps, id)
		}
	}
	for id, seen := range t.requests {
		if seen.Before(t.oldestTime) {
			delete(t.requests, id)
		}
	}
}
