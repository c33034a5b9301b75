package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/observability"
	"github.com/noah-isme/gema-results-api/internal/repository"
)

// ErrNothingToSchedule indicates the group has no marks waiting for publication.
var ErrNothingToSchedule = errors.New("no submitted marks")

// ScheduleService is the manager-facing publish gate.
type ScheduleService interface {
	SchedulePublish(ctx context.Context, req dto.SchedulePublishRequest, actor Actor) (dto.ScheduleResponse, error)
}

type scheduleService struct {
	marks     repository.MarkRepository
	policy    QuorumPolicy
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewScheduleService constructs the schedule gate.
func NewScheduleService(marks repository.MarkRepository, policy QuorumPolicy, validate *validator.Validate, logger zerolog.Logger) ScheduleService {
	return &scheduleService{
		marks:     marks,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "schedule_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/schedule"),
	}
}

// SchedulePublish stamps PublishAt on every mark of the group that is currently
// eligible. Marks submitted later keep no gate until the group is scheduled again.
func (s *scheduleService) SchedulePublish(ctx context.Context, req dto.SchedulePublishRequest, actor Actor) (dto.ScheduleResponse, error) {
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.ExamType = strings.TrimSpace(req.ExamType)

	ctx, span := s.tracer.Start(ctx, "schedule.publish", trace.WithAttributes(
		attribute.String("group.class_name", req.ClassName),
		attribute.String("group.exam_type", req.ExamType),
		attribute.String("schedule.actor_id", actor.ID),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ScheduleResponse{}, err
	}

	publishAt := req.PublishAt.UTC()
	response := dto.ScheduleResponse{ClassName: req.ClassName, ExamType: req.ExamType, PublishAt: publishAt}

	marks, err := s.marks.Query(ctx, repository.MarkFilter{
		ClassName: req.ClassName,
		ExamType:  req.ExamType,
		Statuses:  s.policy.EligibleStatuses(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark_lookup_failed")
		return dto.ScheduleResponse{}, fmt.Errorf("load group marks: %w", err)
	}

	if len(marks) == 0 {
		observability.PublishSchedules().WithLabelValues("empty").Inc()
		span.SetStatus(codes.Error, "nothing_to_schedule")
		return dto.ScheduleResponse{}, ErrNothingToSchedule
	}

	ids := make([]string, 0, len(marks))
	for _, mark := range marks {
		ids = append(ids, mark.ID)
	}

	results, err := s.marks.UpdatePublishAfter(ctx, ids, s.policy.EligibleStatuses(), publishAt)
	for _, result := range results {
		if result.Success {
			response.ScheduledCount++
			continue
		}
		response.FailedCount++
		s.logger.Warn().Err(result.Err).Str("mark_id", result.ID).Msg("failed to stamp publish gate")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_interrupted")
		return dto.ScheduleResponse{}, fmt.Errorf("stamp publish gate: %w", err)
	}

	if response.FailedCount > 0 {
		observability.MarkUpdateFailures().WithLabelValues("schedule").Add(float64(response.FailedCount))
	}

	if response.ScheduledCount == 0 {
		observability.PublishSchedules().WithLabelValues("empty").Inc()
		span.SetStatus(codes.Error, "nothing_to_schedule")
		return dto.ScheduleResponse{}, ErrNothingToSchedule
	}

	observability.PublishSchedules().WithLabelValues("scheduled").Inc()
	s.logger.Info().
		Str("class_name", req.ClassName).
		Str("exam_type", req.ExamType).
		Time("publish_at", publishAt).
		Int("scheduled", response.ScheduledCount).
		Int("failed", response.FailedCount).
		Str("actor_id", actor.ID).
		Msg("group scheduled for publication")

	span.SetAttributes(attribute.Int("schedule.count", response.ScheduledCount))
	return response, nil
}
