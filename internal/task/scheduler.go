// Package task runs periodic background work for the console.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RunnerFunc is one pass of a scheduled job.
type RunnerFunc func(context.Context) error

// Scheduler runs a RunnerFunc every interval on its clock.
type Scheduler struct {
	name         string
	interval     time.Duration
	clock        clockwork.Clock
	runner       RunnerFunc
	logger       *zap.Logger
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewScheduler(name string, interval time.Duration, clk clockwork.Clock, runner RunnerFunc, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		clock:    clk,
		runner:   runner,
		logger:   logger,
	}
}

// Start launches the loop. Calling Start on a running scheduler does nothing.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	scheduler.logger.Info("scheduler_started", zap.String("task", scheduler.name), zap.Duration("interval", scheduler.interval))
	go scheduler.loop(runtimeCtx, done)
}

// Stop cancels the loop and waits for the current run to return.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
		scheduler.logger.Info("scheduler_stopped", zap.String("task", scheduler.name))
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := scheduler.clock.NewTicker(scheduler.interval)
	defer ticker.Stop()
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			scheduler.run(ctx)
		}
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	if runErr := scheduler.runner(ctx); runErr != nil {
		scheduler.logger.Warn("scheduled_task_failed", zap.String("task", scheduler.name), zap.Error(runErr))
	}
}
