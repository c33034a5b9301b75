package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/observability"
)

// Group results recorded per cycle.
const (
	GroupResultPublished     = "published"
	GroupResultNotReady      = "not_ready"
	GroupResultMisconfigured = "misconfigured"
	GroupResultFailed        = "failed"
)

// notifyTimeout bounds the fan-out that follows a successful publish.
const notifyTimeout = 30 * time.Second

// GroupReport is what one cycle did with one group.
type GroupReport struct {
	Group     models.Group
	Result    string
	Expected  int
	Actual    int
	Published int
	Failed    int
	Notified  int
	Err       error
}

// CycleReport summarises one publication cycle.
type CycleReport struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []GroupReport
}

// PublishedCount totals marks published across the cycle.
func (r CycleReport) PublishedCount() int {
	total := 0
	for _, group := range r.Groups {
		total += group.Published
	}
	return total
}

// PublicationEngine runs publication cycles.
type PublicationEngine interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// EngineOption customises the engine.
type EngineOption func(*publicationEngine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *publicationEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithResultEvents broadcasts an event for every published group.
func WithResultEvents(events ResultEvents) EngineOption {
	return func(e *publicationEngine) {
		e.events = events
	}
}

type publicationEngine struct {
	quorum      QuorumEvaluator
	publication PublicationService
	fanout      NotificationFanout
	lock        CycleLock
	events      ResultEvents
	now         func() time.Time
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewPublicationEngine wires the evaluator, transition and fan-out into one cycle.
func NewPublicationEngine(quorum QuorumEvaluator, publication PublicationService, fanout NotificationFanout, lock CycleLock, logger zerolog.Logger, opts ...EngineOption) PublicationEngine {
	if lock == nil {
		lock = NewLocalCycleLock()
	}

	engine := &publicationEngine{
		quorum:      quorum,
		publication: publication,
		fanout:      fanout,
		lock:        lock,
		now:         time.Now,
		logger:      logger.With().Str("component", "publication_engine").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/engine"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// RunCycle publishes every due group whose quorum is met. Groups are handled one after
// another; a failing group is logged and counted and never stops the others.
func (e *publicationEngine) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString(), StartedAt: e.now().UTC()}
	logger := e.logger.With().Str("cycle_id", report.CycleID).Logger()

	ctx, span := e.tracer.Start(ctx, "publication.cycle", trace.WithAttributes(
		attribute.String("cycle.id", report.CycleID),
	))
	defer span.End()

	release, acquired, err := e.lock.TryAcquire(ctx)
	if err != nil {
		observability.PublishCycles().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock_failed")
		return report, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !acquired {
		observability.PublishCycles().WithLabelValues("skipped").Inc()
		logger.Debug().Msg("publication cycle skipped, lock held")
		span.SetStatus(codes.Error, "in_progress")
		return report, ErrCycleInProgress
	}
	defer release()

	start := time.Now()
	defer func() {
		observability.PublishCycleDuration().Observe(time.Since(start).Seconds())
	}()

	groups, err := e.quorum.FindDueGroups(ctx, report.StartedAt)
	if err != nil {
		report.FinishedAt = e.now().UTC()
		observability.PublishCycles().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "find_due_groups_failed")
		logger.Error().Err(err).Msg("publication cycle aborted")
		return report, err
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("remaining", len(groups)-len(report.Groups)).Msg("publication cycle interrupted")
			break
		}

		groupReport := e.processGroup(ctx, group, logger)
		observability.PublishGroups().WithLabelValues(groupReport.Result).Inc()
		report.Groups = append(report.Groups, groupReport)
	}

	report.FinishedAt = e.now().UTC()
	observability.PublishCycles().WithLabelValues("completed").Inc()
	span.SetAttributes(
		attribute.Int("cycle.groups", len(report.Groups)),
		attribute.Int("cycle.published", report.PublishedCount()),
	)

	logger.Info().
		Int("groups", len(report.Groups)).
		Int("published", report.PublishedCount()).
		Dur("duration", time.Since(start)).
		Msg("publication cycle finished")

	return report, nil
}

func (e *publicationEngine) processGroup(ctx context.Context, group models.Group, logger zerolog.Logger) GroupReport {
	result := GroupReport{Group: group}
	logger = logger.With().Str("group", group.String()).Logger()

	readiness, err := e.quorum.IsReady(ctx, group)
	if err != nil {
		result.Result = GroupResultFailed
		result.Err = err
		logger.Error().Err(err).Msg("quorum evaluation failed")
		return result
	}

	result.Expected = readiness.Expected
	result.Actual = readiness.Actual

	if readiness.Misconfigured {
		result.Result = GroupResultMisconfigured
		logger.Warn().Str("class_name", group.ClassName).Msg("class has no assigned subjects, group skipped")
		return result
	}

	if !readiness.Ready {
		result.Result = GroupResultNotReady
		logger.Info().
			Int("expected", readiness.Expected).
			Int("actual", readiness.Actual).
			Strs("missing", readiness.Missing).
			Msg("group waiting for subjects")
		return result
	}

	outcome, err := e.publication.Publish(ctx, group, readiness.Marks)
	result.Published = len(outcome.Published)
	result.Failed = len(outcome.Failed)
	if err != nil {
		result.Result = GroupResultFailed
		result.Err = err
		logger.Error().Err(err).Int("published", result.Published).Msg("group publication interrupted")
	} else {
		result.Result = GroupResultPublished
	}

	// Marks already published stay published, so their students hear about it even
	// when the rest of the batch was interrupted.
	if len(outcome.StudentIDs) == 0 {
		return result
	}

	// The marks are published at this point. A cycle cancelled mid-group must not
	// swallow the notification, so fan-out runs on a bounded context of its own.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if e.fanout != nil {
		fanout, err := e.fanout.NotifyResultPublished(notifyCtx, group, outcome.StudentIDs)
		result.Notified = fanout.Sent
		if err != nil {
			logger.Error().Err(err).Msg("result fan-out failed")
		}
	}

	if e.events != nil {
		event := ResultPublishedEvent{
			ClassName:   group.ClassName,
			ExamType:    group.ExamType,
			MarkCount:   len(outcome.Published),
			StudentIDs:  outcome.StudentIDs,
			PublishedAt: e.now().UTC(),
		}
		if err := e.events.PublishResultPublished(notifyCtx, event); err != nil {
			logger.Warn().Err(err).Msg("failed to broadcast result event")
		}
	}

	logger.Info().
		Int("published", result.Published).
		Int("already_published", len(outcome.AlreadyPublished)).
		Int("failed", result.Failed).
		Int("notified", result.Notified).
		Msg("group published")

	return result
}
