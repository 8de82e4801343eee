// Package debounce provides a keyed timer scheduler with
// cancel-on-reschedule semantics. Scheduling the same key again before
// its timer fires discards the earlier action; independent keys run
// independently.
package debounce

import (
	"sync"
	"time"
)

// Scheduler coalesces actions per key. Actions run on timer goroutines;
// callers are responsible for making them idempotent.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timer for key, replacing any pending one. When the
// timer fires uninterrupted, fn runs once.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A later Schedule for the same key may have replaced this
		// timer between firing and acquiring the lock.
		current := s.timers[key] == timer
		if current {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		if current {
			fn()
		}
	})
	s.timers[key] = timer
}

// Cancel removes a pending timer for key without running its action.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Stop cancels every pending timer and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.stopped = true
}
