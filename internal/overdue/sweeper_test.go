package overdue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRunsAtStartAndOnTick(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var calls atomic.Int32

	s := NewSweeper(Config{Interval: 20 * time.Millisecond, Logger: logger}, func(ctx context.Context, now time.Time) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Shutdown()

	after := calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no sweeps after shutdown")
}

func TestSweeperSkipInitialSweep(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var calls atomic.Int32

	s := NewSweeper(Config{Interval: time.Hour, SkipInitialSweep: true, Logger: logger}, func(ctx context.Context, now time.Time) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	s.Shutdown()

	assert.Zero(t, calls.Load())
}

func TestRunOnceNeverOverlaps(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	entered := make(chan struct{})

	s := NewSweeper(Config{Logger: logger}, func(ctx context.Context, now time.Time) (int, error) {
		close(entered)
		<-release
		return 2, nil
	})

	done := make(chan int)
	go func() {
		n, _ := s.RunOnce(context.Background())
		done <- n
	}()
	<-entered

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(release)
	assert.Equal(t, 2, <-done)
}

func TestSweepErrorsAreLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var seen atomic.Value

	s := NewSweeper(Config{Interval: time.Hour, Logger: logger, Now: func() time.Time { return now }},
		func(ctx context.Context, at time.Time) (int, error) {
			seen.Store(at)
			return 0, errors.New("database is locked")
		})
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return seen.Load() != nil }, time.Second, 5*time.Millisecond)
	s.Shutdown()

	assert.Equal(t, now, seen.Load())
	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "overdue sweep: database is locked" {
			logged = true
		}
	}
	assert.True(t, logged)
}
