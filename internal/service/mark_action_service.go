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
	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/observability"
	"github.com/noah-isme/gema-results-api/internal/repository"
)

var (
	// ErrMarkNotFound indicates the mark was not located.
	ErrMarkNotFound = errors.New("mark not found")
	// ErrInvalidMarkAction indicates an action other than approve or reject.
	ErrInvalidMarkAction = errors.New("invalid mark action")
	// ErrInvalidMarkTransition indicates the mark is no longer in a state the action applies to.
	ErrInvalidMarkTransition = errors.New("mark cannot transition from its current status")
)

// Mark override actions.
const (
	MarkActionApprove = "approve"
	MarkActionReject  = "reject"
)

// MarkActionService applies manager overrides to single marks.
type MarkActionService interface {
	Apply(ctx context.Context, markID string, req dto.MarkActionRequest, actor Actor) (dto.MarkResponse, error)
}

type markActionService struct {
	marks     repository.MarkRepository
	fanout    NotificationFanout
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMarkActionService constructs the override workflow.
func NewMarkActionService(marks repository.MarkRepository, fanout NotificationFanout, validate *validator.Validate, logger zerolog.Logger) MarkActionService {
	return &markActionService{
		marks:     marks,
		fanout:    fanout,
		validator: validate,
		logger:    logger.With().Str("component", "mark_action_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/mark_action"),
	}
}

func (s *markActionService) Apply(ctx context.Context, markID string, req dto.MarkActionRequest, actor Actor) (dto.MarkResponse, error) {
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))

	ctx, span := s.tracer.Start(ctx, "mark.action", trace.WithAttributes(
		attribute.String("mark.id", markID),
		attribute.String("mark.action", req.Action),
		attribute.String("mark.actor_id", actor.ID),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_action")
		return dto.MarkResponse{}, fmt.Errorf("%w: %q", ErrInvalidMarkAction, req.Action)
	}

	target := models.MarkStatusApproved
	if req.Action == MarkActionReject {
		target = models.MarkStatusRejected
	}

	mark, err := s.marks.GetByID(ctx, markID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "mark_not_found")
			return dto.MarkResponse{}, ErrMarkNotFound
		}
		span.SetStatus(codes.Error, "mark_lookup_failed")
		return dto.MarkResponse{}, err
	}

	if mark.Status != models.MarkStatusSubmitted || !mark.Status.CanTransitionTo(target) {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.MarkResponse{}, fmt.Errorf("%w: %s", ErrInvalidMarkTransition, mark.Status)
	}

	results, err := s.marks.BatchUpdateStatus(ctx, []string{mark.ID}, []models.MarkStatus{models.MarkStatusSubmitted}, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark_update_failed")
		return dto.MarkResponse{}, err
	}
	if len(results) != 1 || !results[0].Success {
		result := firstResult(results, mark.ID)
		span.RecordError(result.Err)
		if errors.Is(result.Err, repository.ErrMarkStateConflict) {
			span.SetStatus(codes.Error, "invalid_transition")
			return dto.MarkResponse{}, fmt.Errorf("%w: changed concurrently", ErrInvalidMarkTransition)
		}
		span.SetStatus(codes.Error, "mark_update_failed")
		return dto.MarkResponse{}, result.Err
	}

	mark.Status = target
	observability.MarkActions().WithLabelValues(req.Action).Inc()
	s.logger.Info().Str("mark_id", mark.ID).Str("status", string(target)).Str("actor_id", actor.ID).Msg("mark override applied")

	if s.fanout != nil {
		if _, err := s.fanout.NotifyMarkDecision(ctx, mark); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Str("mark_id", mark.ID).Msg("failed to notify submitting teacher")
		}
	}

	return dto.NewMarkResponse(mark), nil
}
