package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/observability"
	"github.com/noah-isme/gema-results-api/internal/repository"
)

// PublishOutcome is the per-id account of one group transition.
type PublishOutcome struct {
	Group     models.Group
	Published []string
	// AlreadyPublished lists marks another writer published between read and update.
	AlreadyPublished []string
	Failed           []repository.ItemResult
	// StudentIDs are the distinct students with at least one mark published by this call.
	StudentIDs []string
}

// PublicationService moves a ready group's eligible marks to published.
type PublicationService interface {
	Publish(ctx context.Context, group models.Group, marks []models.Mark) (PublishOutcome, error)
}

type publicationService struct {
	marks  repository.MarkRepository
	policy QuorumPolicy
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewPublicationService constructs the publication transition.
func NewPublicationService(marks repository.MarkRepository, policy QuorumPolicy, logger zerolog.Logger) PublicationService {
	return &publicationService{
		marks:  marks,
		policy: policy,
		logger: logger.With().Str("component", "publication_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/publication"),
	}
}

// Publish issues one batch update for the group and then reconciles every failed id:
// rows another writer already published are reported as such, rows still eligible are
// retried once, anything else is left as failed. Successful rows are never rolled back.
func (s *publicationService) Publish(ctx context.Context, group models.Group, marks []models.Mark) (PublishOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "publication.publish", trace.WithAttributes(
		attribute.String("group.class_name", group.ClassName),
		attribute.String("group.exam_type", group.ExamType),
		attribute.Int("publication.requested", len(marks)),
	))
	defer span.End()

	outcome := PublishOutcome{Group: group}
	if len(marks) == 0 {
		return outcome, nil
	}

	students := make(map[string]string, len(marks))
	ids := make([]string, 0, len(marks))
	for _, mark := range marks {
		if mark.ClassName != group.ClassName || mark.ExamType != group.ExamType {
			continue
		}
		students[mark.ID] = mark.StudentID
		ids = append(ids, mark.ID)
	}

	eligible := s.policy.EligibleStatuses()
	results, err := s.marks.BatchUpdateStatus(ctx, ids, eligible, models.MarkStatusPublished)
	var failed []string
	for _, result := range results {
		if result.Success {
			outcome.Published = append(outcome.Published, result.ID)
			continue
		}
		failed = append(failed, result.ID)
		s.logger.Warn().Err(result.Err).Str("mark_id", result.ID).Str("group", group.String()).Msg("mark publish update failed")
	}
	if err != nil {
		s.finish(&outcome, students, span)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_update_interrupted")
		return outcome, fmt.Errorf("publish batch update: %w", err)
	}

	if len(failed) > 0 {
		if err := s.reconcile(ctx, group, failed, &outcome); err != nil {
			s.finish(&outcome, students, span)
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconcile_failed")
			return outcome, err
		}
	}

	s.finish(&outcome, students, span)
	return outcome, nil
}

func (s *publicationService) reconcile(ctx context.Context, group models.Group, failed []string, outcome *PublishOutcome) error {
	current, err := s.marks.Query(ctx, repository.MarkFilter{IDs: failed})
	if err != nil {
		for _, id := range failed {
			outcome.Failed = append(outcome.Failed, repository.ItemResult{ID: id, Err: err})
		}
		return fmt.Errorf("re-read failed marks: %w", err)
	}

	byID := make(map[string]models.Mark, len(current))
	for _, mark := range current {
		byID[mark.ID] = mark
	}

	for _, id := range failed {
		mark, ok := byID[id]
		switch {
		case !ok:
			outcome.Failed = append(outcome.Failed, repository.ItemResult{ID: id, Err: errors.New("mark no longer exists")})
		case mark.Status == models.MarkStatusPublished:
			outcome.AlreadyPublished = append(outcome.AlreadyPublished, id)
		case s.policy.IsEligible(mark.Status):
			retry, err := s.marks.BatchUpdateStatus(ctx, []string{id}, s.policy.EligibleStatuses(), models.MarkStatusPublished)
			if err != nil {
				outcome.Failed = append(outcome.Failed, repository.ItemResult{ID: id, Err: err})
				return fmt.Errorf("retry publish of mark %s: %w", id, err)
			}
			if len(retry) == 1 && retry[0].Success {
				outcome.Published = append(outcome.Published, id)
				continue
			}
			outcome.Failed = append(outcome.Failed, firstResult(retry, id))
		default:
			outcome.Failed = append(outcome.Failed, repository.ItemResult{
				ID:  id,
				Err: fmt.Errorf("%w: status %s", repository.ErrMarkStateConflict, mark.Status),
			})
		}
	}

	for _, item := range outcome.Failed {
		s.logger.Error().Err(item.Err).Str("mark_id", item.ID).Str("group", group.String()).Msg("mark left unpublished after reconciliation")
	}

	return nil
}

func (s *publicationService) finish(outcome *PublishOutcome, students map[string]string, span trace.Span) {
	seen := make(map[string]struct{}, len(outcome.Published))
	for _, id := range outcome.Published {
		student := students[id]
		if _, ok := seen[student]; ok || student == "" {
			continue
		}
		seen[student] = struct{}{}
		outcome.StudentIDs = append(outcome.StudentIDs, student)
	}
	sort.Strings(outcome.StudentIDs)

	observability.MarksPublished().Add(float64(len(outcome.Published)))
	if len(outcome.Failed) > 0 {
		observability.MarkUpdateFailures().WithLabelValues("publish").Add(float64(len(outcome.Failed)))
	}

	span.SetAttributes(
		attribute.Int("publication.published", len(outcome.Published)),
		attribute.Int("publication.already_published", len(outcome.AlreadyPublished)),
		attribute.Int("publication.failed", len(outcome.Failed)),
	)
}

func firstResult(results []repository.ItemResult, id string) repository.ItemResult {
	if len(results) > 0 {
		return results[0]
	}
	return repository.ItemResult{ID: id, Err: repository.ErrMarkStateConflict}
}
