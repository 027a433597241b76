package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/metrics"
)

// ErrSchedulerStopped is returned by Trigger when the scheduler is not running
var ErrSchedulerStopped = errors.New("forecast scheduler is not running")

// Scheduler runs forecast cycles on a timer and on demand, one at a time.
// Timer ticks are skipped while a cycle is in flight. Triggers that arrive
// during a cycle collapse into a single follow-up cycle.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	seq      Sequencer
	inFlight atomic.Int32
	pending  chan struct{}
	logger   *logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler
func NewScheduler(engine *Engine, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		pending:  make(chan struct{}, 1),
		logger:   log.WithComponent("forecast_scheduler"),
	}
}

// Start starts the scheduler in a background goroutine and runs an initial
// cycle immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	ctx = s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Dur("interval", s.interval).Msg("forecast scheduler started")

		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("forecast scheduler stopped")
				return
			case <-ticker.C:
				if s.inFlight.Load() > 0 {
					metrics.SkippedTicks.Inc()
					s.logger.Debug().Msg("cycle in flight, skipping tick")
					continue
				}
				s.RunOnce(ctx)
			case <-s.pending:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the scheduler and waits for in-flight cycles
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Trigger requests a cycle. The request is queued for the scheduler loop and
// merged with any request still waiting there.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || s.ctx.Err() != nil {
		return ErrSchedulerStopped
	}

	select {
	case s.pending <- struct{}{}:
	default:
		metrics.TriggersCoalesced.Inc()
		s.logger.Debug().Msg("cycle already pending, merging trigger")
	}
	return nil
}

// RunOnce runs one cycle synchronously. It reports whether the result was
// committed.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	seq := s.seq.Next()
	log := s.logger.WithCycle(seq)
	start := time.Now()
	log.Info().Msg("starting forecast cycle")

	res, err := s.engine.Compute(ctx, seq)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if latest := s.seq.Current(); latest != seq {
		metrics.StaleCyclesDiscarded.Inc()
		log.Warn().Uint64("latest_seq", latest).Msg("newer cycle started, discarding result")
		return false
	}

	if !s.engine.Commit(ctx, res) {
		metrics.StaleCyclesDiscarded.Inc()
		return false
	}

	outcome := "ok"
	if err != nil {
		outcome = "upstream_error"
		log = log.WithError(err)
	}
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()

	log.Info().
		Dur("duration", time.Since(start)).
		Int("critical", res.Snapshot.Critical).
		Int("warning", res.Snapshot.Warning).
		Int("notifications", len(res.Snapshot.Notifications)).
		Str("outcome", outcome).
		Msg("forecast cycle completed")
	return true
}
