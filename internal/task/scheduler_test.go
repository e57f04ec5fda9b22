package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSchedulerName     = "test_task"
	testSchedulerInterval = 10 * time.Millisecond
	testSchedulerTimeout  = 2 * time.Second
)

func waitForTicker(testingT *testing.T, fakeClock *clockwork.FakeClock) {
	testingT.Helper()
	waitContext, cancel := context.WithTimeout(context.Background(), testSchedulerTimeout)
	defer cancel()
	require.NoError(testingT, fakeClock.BlockUntilContext(waitContext, 1))
}

func TestNewSchedulerDefaultsInterval(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, 0, nil, func(context.Context) error { return nil }, nil)
	require.Equal(testingT, time.Minute, scheduler.interval)
	require.NotNil(testingT, scheduler.clock)
	require.NotNil(testingT, scheduler.logger)
}

func TestSchedulerRunsOnEachInterval(testingT *testing.T) {
	var runCount int64
	fakeClock := clockwork.NewFakeClock()
	scheduler := NewScheduler(testSchedulerName, time.Hour, fakeClock, func(context.Context) error {
		atomic.AddInt64(&runCount, 1)
		return nil
	}, zap.NewNop())
	scheduler.Start(context.Background())
	waitForTicker(testingT, fakeClock)

	fakeClock.Advance(59 * time.Minute)
	require.Never(testingT, func() bool {
		return atomic.LoadInt64(&runCount) > 0
	}, 10*testSchedulerInterval, testSchedulerInterval)

	fakeClock.Advance(time.Minute)
	require.Eventually(testingT, func() bool {
		return atomic.LoadInt64(&runCount) == 1
	}, testSchedulerTimeout, testSchedulerInterval)

	fakeClock.Advance(time.Hour)
	require.Eventually(testingT, func() bool {
		return atomic.LoadInt64(&runCount) == 2
	}, testSchedulerTimeout, testSchedulerInterval)

	scheduler.Stop()
	require.Nil(testingT, scheduler.cancel)
}

func TestSchedulerRunsOnRealClock(testingT *testing.T) {
	var runCount int64
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, nil, func(context.Context) error {
		atomic.AddInt64(&runCount, 1)
		return nil
	}, nil)
	scheduler.Start(context.Background())
	testingT.Cleanup(scheduler.Stop)

	require.Eventually(testingT, func() bool {
		return atomic.LoadInt64(&runCount) >= 2
	}, testSchedulerTimeout, testSchedulerInterval)
}

func TestSchedulerLogsRunnerFailures(testingT *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	scheduler := NewScheduler(testSchedulerName, time.Hour, nil, func(context.Context) error {
		return errors.New("sweep failed")
	}, zap.New(core))

	scheduler.run(context.Background())

	entries := logs.FilterMessage("scheduled_task_failed").All()
	require.Len(testingT, entries, 1)
	require.Equal(testingT, testSchedulerName, entries[0].ContextMap()["task"])
}

func TestSchedulerHandlesNilReceiver(testingT *testing.T) {
	var scheduler *Scheduler
	scheduler.Start(context.Background())
	scheduler.Stop()
}

func TestSchedulerSkipsStartWhenRunnerMissing(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, nil, nil, nil)
	scheduler.Start(context.Background())
	require.Nil(testingT, scheduler.cancel)
}

func TestSchedulerStartIsIdempotent(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, nil, func(context.Context) error { return nil }, nil)
	scheduler.Start(context.Background())
	doneAfterStart := scheduler.done
	require.NotNil(testingT, scheduler.cancel)
	scheduler.Start(context.Background())
	require.Equal(testingT, doneAfterStart, scheduler.done)
	scheduler.Stop()
}

func TestSchedulerRunNoopWithNilRunner(testingT *testing.T) {
	scheduler := &Scheduler{logger: zap.NewNop()}
	scheduler.run(context.Background())
}
