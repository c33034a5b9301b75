package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-results-api/internal/service"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
	block bool
}

func (r *countingRunner) RunCycle(ctx context.Context) (service.CycleReport, error) {
	r.calls.Add(1)
	if r.block {
		<-ctx.Done()
		return service.CycleReport{}, ctx.Err()
	}
	return service.CycleReport{CycleID: "cycle"}, r.err
}

func TestPublicationWorkerTicks(t *testing.T) {
	runner := &countingRunner{}
	w := NewPublicationWorker(runner, Config{Interval: 10 * time.Millisecond, CycleTimeout: time.Second}, zerolog.New(io.Discard))

	w.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	w.Stop()

	calls := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, calls, runner.calls.Load())
}

func TestPublicationWorkerRunOnStartAndErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("store down")}
	w := NewPublicationWorker(runner, Config{Interval: time.Hour, RunOnStart: true}, zerolog.New(io.Discard))

	w.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestPublicationWorkerStopCancelsRunningCycle(t *testing.T) {
	runner := &countingRunner{block: true}
	w := NewPublicationWorker(runner, Config{Interval: time.Hour, CycleTimeout: time.Hour, RunOnStart: true}, zerolog.New(io.Discard))

	w.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
