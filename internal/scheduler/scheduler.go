package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work. Jobs run in their own goroutine and
// must respect ctx cancellation (grounded on the teacher's
// internal/queue/scheduler.go goroutine-per-job convention).
type Job func(ctx context.Context) error

// Scheduler drives the trading day's cron-based schedule: a pre-market
// job at 09:00, a market-hours tick every minute from 09:15-15:30, and a
// post-market job at 15:45 (spec §4.10).
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewScheduler returns a scheduler whose cron jobs run in loc (the
// market's local timezone).
func NewScheduler(loc *time.Location, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// SchedulePreMarket registers job at 09:00 on weekdays.
func (s *Scheduler) SchedulePreMarket(job Job) error {
	_, err := s.cron.AddFunc("0 9 * * 1-5", s.runInGoroutine("pre_market", job))
	return err
}

// ScheduleMarketHoursTick registers job to run every minute from 09:15
// through 15:30 on weekdays.
func (s *Scheduler) ScheduleMarketHoursTick(job Job) error {
	_, err := s.cron.AddFunc("15-59 9 * * 1-5", s.runInGoroutine("market_hours_tick", job))
	if err != nil {
		return err
	}
	_, err = s.cron.AddFunc("* 10-14 * * 1-5", s.runInGoroutine("market_hours_tick", job))
	if err != nil {
		return err
	}
	_, err = s.cron.AddFunc("0-30 15 * * 1-5", s.runInGoroutine("market_hours_tick", job))
	return err
}

// SchedulePostMarket registers job at 15:45 on weekdays.
func (s *Scheduler) SchedulePostMarket(job Job) error {
	_, err := s.cron.AddFunc("45 15 * * 1-5", s.runInGoroutine("post_market", job))
	return err
}

// runInGoroutine wraps job so each cron firing runs in its own tracked
// goroutine rather than blocking the cron scheduler's dispatch loop.
func (s *Scheduler) runInGoroutine(name string, job Job) func() {
	return func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := job(s.ctx); err != nil {
				s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			}
		}()
	}
}

// Start begins dispatching cron jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop halts new cron firings, cancels in-flight job contexts, and waits
// for every running job goroutine to return.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}
