package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
)

// tick is one registered periodic function.
type tick struct {
	name     string
	interval time.Duration
	fn       func(context.Context) error
	running  atomic.Bool
}

// Scheduler fires each registered tick on its own interval. A fire is
// skipped while a prior run of the same tick is still active; ticks may
// overlap each other but never themselves.
type Scheduler struct {
	engine *Engine
	ticks  []*tick

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler registers the nine ticks with their configured intervals.
func NewScheduler(e *Engine) *Scheduler {
	s := &Scheduler{engine: e, stopChan: make(chan struct{})}
	iv := e.cfg.Engine.Intervals

	s.register("discovery", iv.Discovery, e.runDiscovery)
	s.register("poll", iv.Poll, e.runPoll)
	s.register("executor", iv.Executor, e.runExecutor)
	s.register("chat", iv.Chat, e.runChat)
	s.register("balances", iv.Balances, e.runBalances)
	s.register("scheduler", iv.Scheduler, e.runSchedules)
	s.register("price", iv.Price, e.runPrice)
	s.register("agent", iv.Agent, e.runAgent)
	s.register("payouts", iv.Payouts, e.runPayouts)
	return s
}

func (s *Scheduler) register(name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		common.Logger.WithField("tick", name).Warn("tick disabled: non-positive interval")
		return
	}
	s.ticks = append(s.ticks, &tick{name: name, interval: interval, fn: fn})
	s.engine.tracker.Register(name)
}

// Start launches one goroutine per tick. Each fires immediately, then on
// its interval.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.ticks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	common.Logger.WithField("ticks", len(s.ticks)).Info("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, t *tick) {
	defer s.wg.Done()

	timer := time.NewTicker(t.interval)
	defer timer.Stop()

	s.spawn(ctx, t)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			s.spawn(ctx, t)
		}
	}
}

// spawn runs one fire off the timer goroutine so the cadence is kept
// while a slow run is active; such fires are skipped, not queued.
func (s *Scheduler) spawn(ctx context.Context, t *tick) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(ctx, t)
	}()
}

// fire runs one tick invocation unless the previous one is still active.
func (s *Scheduler) fire(ctx context.Context, t *tick) {
	if !t.running.CompareAndSwap(false, true) {
		common.TickLogger(t.name).Debug("skipped fire: previous run still active")
		return
	}
	defer t.running.Store(false)

	s.engine.tracker.BeginRun(t.name)
	err := t.fn(ctx)
	s.engine.tracker.EndRun(t.name, err)
	if err != nil {
		common.TickLogger(t.name).Errorf("tick failed: %v", err)
	}
}

// Stop prevents new fires and waits for in-flight ticks up to the hard
// timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.stopOnce.Do(func() { close(s.stopChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		common.Logger.Info("scheduler drained")
	case <-time.After(timeout):
		common.Logger.Warn("scheduler drain timed out; exiting with ticks in flight")
	}
}
