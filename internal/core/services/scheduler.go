package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// DefaultSweepInterval is how often expired chat sessions are purged.
const DefaultSweepInterval = time.Minute

// ErrSchedulerRunning is returned by Start while a previous Start is active.
var ErrSchedulerRunning = errors.New("scheduler already running")

// Scheduler purges chat sessions idle for longer than the session lifetime.
// With no session store or a non-positive lifetime it idles until stopped.
type Scheduler struct {
	sessions driven.SessionStore
	lifetime time.Duration
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler returns a stopped scheduler. A non-positive interval means
// DefaultSweepInterval.
func NewScheduler(sessions driven.SessionStore, lifetime, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		sessions: sessions,
		lifetime: lifetime,
		interval: interval,
		now:      time.Now,
	}
}

// Start sweeps once, then every interval, until Stop is called or ctx ends.
// It returns nil after Stop and ctx.Err() after cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return ErrSchedulerRunning
	}
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	if s.enabled() {
		s.loop(runCtx)
	} else {
		<-runCtx.Done()
	}
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop ends a running Start and waits for it to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Sweep purges expired sessions once and returns how many went.
func (s *Scheduler) Sweep(ctx context.Context) int {
	if !s.enabled() {
		return 0
	}
	n, err := s.sessions.DeleteExpired(ctx, s.now().Add(-s.lifetime))
	switch {
	case err != nil && ctx.Err() == nil:
		logger.Warn("Session sweep failed: %v", err)
		return 0
	case err != nil:
		return 0
	}
	if n > 0 {
		logger.Info("Expired %d idle chat sessions", n)
	}
	return n
}

func (s *Scheduler) enabled() bool {
	return s.sessions != nil && s.lifetime > 0
}
