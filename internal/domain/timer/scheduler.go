// Package timer arms one expiry per app and calls back when it passes.
//
// Timers are in-memory; durability comes from the authority persisting
// expiresAt and re-scheduling on start. Callbacks fire at least once and
// carry the expiresAt they were armed with so the consumer can discard
// stale fires.
package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ExpireFunc receives an expiry. It runs on its own goroutine.
type ExpireFunc func(appID string, expiresAt time.Time)

type armed struct {
	timer     clockwork.Timer
	expiresAt time.Time
}

// Scheduler holds at most one pending timer per app.
type Scheduler struct {
	clock  clockwork.Clock
	logger *zap.Logger

	mu       sync.Mutex
	onExpire ExpireFunc
	timers   map[string]armed
	stopped  bool
}

// New creates a scheduler. Bind must be called before the first fire.
func New(clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger,
		timers: make(map[string]armed),
	}
}

// Bind sets the expiry handler.
func (s *Scheduler) Bind(fn ExpireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Schedule arms a timer for appID, replacing any pending one. An
// expiresAt in the past fires immediately.
func (s *Scheduler) Schedule(appID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.timers[appID]; ok {
		prev.timer.Stop()
	}

	delay := expiresAt.Sub(s.clock.Now())
	if delay <= 0 {
		delete(s.timers, appID)
		go s.fire(appID, expiresAt)
		s.logger.Debug("Timer already due", zap.String("app", appID), zap.Time("expires_at", expiresAt))
		return
	}
	t := s.clock.AfterFunc(delay, func() { s.fire(appID, expiresAt) })
	s.timers[appID] = armed{timer: t, expiresAt: expiresAt}

	s.logger.Debug("Timer armed",
		zap.String("app", appID),
		zap.Time("expires_at", expiresAt),
		zap.Duration("delay", delay))
}

// Cancel disarms appID's timer. It reports whether one was pending.
func (s *Scheduler) Cancel(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.timers[appID]
	if !ok {
		return false
	}
	prev.timer.Stop()
	delete(s.timers, appID)
	s.logger.Debug("Timer cancelled", zap.String("app", appID))
	return true
}

// Deadline returns the pending expiry for appID.
func (s *Scheduler) Deadline(appID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.timers[appID]
	return a.expiresAt, ok
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer; later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for app, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, app)
	}
	s.stopped = true
}

func (s *Scheduler) fire(appID string, expiresAt time.Time) {
	s.mu.Lock()
	if cur, ok := s.timers[appID]; ok && cur.expiresAt.Equal(expiresAt) {
		delete(s.timers, appID)
	}
	fn := s.onExpire
	stopped := s.stopped
	s.mu.Unlock()

	if stopped || fn == nil {
		return
	}
	s.logger.Debug("Timer fired", zap.String("app", appID), zap.Time("expires_at", expiresAt))
	fn(appID, expiresAt)
}
