package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_PreMarketRegistersAndCanBeStopped(t *testing.T) {
	loc := istLoc(t)
	s := NewScheduler(loc, zerolog.Nop())

	var calls int32
	require.NoError(t, s.SchedulePreMarket(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	s.Start()
	s.Stop() // exercises the start/stop lifecycle without waiting for a real cron firing
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(0))
}

func TestScheduler_StopWaitsForInFlightJobs(t *testing.T) {
	loc := istLoc(t)
	s := NewScheduler(loc, zerolog.Nop())

	started := make(chan struct{})
	var finished int32
	job := s.runInGoroutine("test_job", func(ctx context.Context) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	})
	job()
	<-started

	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished), "Stop must block until the in-flight job goroutine returns")
}

func TestScheduler_RegisteringAllThreeJobKindsSucceeds(t *testing.T) {
	loc := istLoc(t)
	s := NewScheduler(loc, zerolog.Nop())
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.SchedulePreMarket(noop))
	require.NoError(t, s.ScheduleMarketHoursTick(noop))
	require.NoError(t, s.SchedulePostMarket(noop))
}
