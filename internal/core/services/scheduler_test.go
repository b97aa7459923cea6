package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vetrina/internal/core/domain"
)

func seedSession(t *testing.T, store *memory.SessionStore, id string, updated time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &domain.Session{
		ID: id, CreatedAt: updated, UpdatedAt: updated,
	}))
}

func TestScheduler_Sweep(t *testing.T) {
	store := memory.NewSessionStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedSession(t, store, "stale", now.Add(-2*time.Hour))
	seedSession(t, store, "fresh", now.Add(-5*time.Minute))

	s := NewScheduler(store, 30*time.Minute, 0)
	s.now = func() time.Time { return now }

	assert.Equal(t, 1, s.Sweep(context.Background()))

	_, err := store.Get(context.Background(), "stale")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(context.Background(), "fresh")
	assert.NoError(t, err)

	assert.Equal(t, 0, s.Sweep(context.Background()))
}

func TestScheduler_SweepDisabled(t *testing.T) {
	assert.Equal(t, 0, NewScheduler(nil, time.Minute, 0).Sweep(context.Background()))

	store := memory.NewSessionStore()
	seedSession(t, store, "old", time.Now().Add(-24*time.Hour))
	assert.Equal(t, 0, NewScheduler(store, 0, 0).Sweep(context.Background()))
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(nil, time.Minute, 0)
	assert.Equal(t, DefaultSweepInterval, s.interval)
}

func TestScheduler_StartSweepsAndStops(t *testing.T) {
	store := memory.NewSessionStore()
	seedSession(t, store, "stale", time.Now().Add(-time.Hour))

	s := NewScheduler(store, time.Minute, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "stale")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestScheduler_SecondStartRejectedThenRestartable(t *testing.T) {
	s := NewScheduler(nil, 0, time.Hour)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	// A start with a cancelled context returns at once whether or not it won the race.
	cancelled, stop := context.WithCancel(context.Background())
	stop()
	assert.Eventually(t, func() bool {
		return errors.Is(s.Start(cancelled), ErrSchedulerRunning)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_StartHonoursContext(t *testing.T) {
	s := NewScheduler(memory.NewSessionStore(), time.Minute, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_IdleWithoutStore(t *testing.T) {
	s := NewScheduler(nil, time.Minute, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	assert.Eventually(t, func() bool {
		_ = s.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopWhenNotRunning(t *testing.T) {
	assert.NoError(t, NewScheduler(nil, time.Minute, 0).Stop())
}
