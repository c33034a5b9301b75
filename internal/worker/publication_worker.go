package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/service"
)

// CycleRunner runs one publication cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (service.CycleReport, error)
}

// Config tunes the publication worker.
type Config struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	RunOnStart   bool
}

// PublicationWorker triggers publication cycles on a fixed interval.
type PublicationWorker struct {
	runner   CycleRunner
	logger   zerolog.Logger
	cfg      Config
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPublicationWorker creates the worker. Zero durations fall back to a two minute
// interval and a one minute cycle timeout.
func NewPublicationWorker(runner CycleRunner, cfg Config, logger zerolog.Logger) *PublicationWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PublicationWorker{
		runner: runner,
		logger: logger.With().Str("component", "publication_worker").Logger(),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background loop.
func (w *PublicationWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info().
		Dur("interval", w.cfg.Interval).
		Dur("cycle_timeout", w.cfg.CycleTimeout).
		Bool("run_on_start", w.cfg.RunOnStart).
		Msg("publication worker started")
}

// Stop cancels any running cycle and waits for the loop to exit.
func (w *PublicationWorker) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
		w.logger.Info().Msg("publication worker stopped")
	})
}

func (w *PublicationWorker) run() {
	defer w.wg.Done()

	if w.cfg.RunOnStart {
		w.tick()
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *PublicationWorker) tick() {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.CycleTimeout)
	defer cancel()

	report, err := w.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, service.ErrCycleInProgress):
		w.logger.Debug().Msg("previous publication cycle still running")
	case err != nil:
		w.logger.Error().Err(err).Msg("publication cycle failed")
	case report.PublishedCount() > 0:
		w.logger.Info().Str("cycle_id", report.CycleID).Int("published", report.PublishedCount()).Msg("publication cycle published marks")
	}
}
