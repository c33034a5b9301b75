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
	"github.com/noah-isme/gema-results-api/internal/repository"
)

// ErrMarkFinalized indicates a resubmission against an approved or published mark.
var ErrMarkFinalized = errors.New("mark already finalized")

// MarkService handles teacher submissions and mark lookups.
type MarkService interface {
	Submit(ctx context.Context, req dto.MarkSubmitRequest, teacherID string) (dto.MarkResponse, bool, error)
	Get(ctx context.Context, id string) (dto.MarkResponse, error)
}

type markService struct {
	marks     repository.MarkRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMarkService constructs the submission workflow.
func NewMarkService(marks repository.MarkRepository, validate *validator.Validate, logger zerolog.Logger) MarkService {
	return &markService{
		marks:     marks,
		validator: validate,
		logger:    logger.With().Str("component", "mark_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/mark"),
	}
}

// Submit records a score as a submitted mark. A pending submission for the same
// (student, subject, exam) is overwritten in place and reported with created=false.
// Rejected rows stay as history and a fresh row is created.
func (s *markService) Submit(ctx context.Context, req dto.MarkSubmitRequest, teacherID string) (dto.MarkResponse, bool, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.Subject = strings.TrimSpace(req.Subject)
	req.ExamType = strings.TrimSpace(req.ExamType)

	ctx, span := s.tracer.Start(ctx, "mark.submit", trace.WithAttributes(
		attribute.String("mark.student_id", req.StudentID),
		attribute.String("mark.subject", req.Subject),
		attribute.String("mark.exam_type", req.ExamType),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.MarkResponse{}, false, err
	}

	existing, err := s.marks.Query(ctx, repository.MarkFilter{
		ClassName: req.ClassName,
		ExamType:  req.ExamType,
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Statuses:  []models.MarkStatus{models.MarkStatusSubmitted, models.MarkStatusApproved, models.MarkStatusPublished},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup_failed")
		return dto.MarkResponse{}, false, fmt.Errorf("lookup existing mark: %w", err)
	}

	for _, mark := range existing {
		if mark.Status != models.MarkStatusSubmitted {
			span.SetStatus(codes.Error, "finalized")
			return dto.MarkResponse{}, false, fmt.Errorf("%w: %s", ErrMarkFinalized, mark.Status)
		}
	}

	if len(existing) > 0 {
		mark := existing[0]
		if err := s.marks.UpdateScore(ctx, mark.ID, req.Score, req.MaxScore, teacherID); err != nil {
			span.RecordError(err)
			if errors.Is(err, repository.ErrMarkStateConflict) {
				span.SetStatus(codes.Error, "finalized")
				return dto.MarkResponse{}, false, fmt.Errorf("%w: changed concurrently", ErrMarkFinalized)
			}
			span.SetStatus(codes.Error, "update_failed")
			return dto.MarkResponse{}, false, err
		}

		mark, err = s.marks.GetByID(ctx, mark.ID)
		if err != nil {
			span.RecordError(err)
			return dto.MarkResponse{}, false, fmt.Errorf("reload mark: %w", err)
		}
		s.logger.Info().Str("mark_id", mark.ID).Str("teacher_id", teacherID).Msg("submitted mark updated")
		return dto.NewMarkResponse(mark), false, nil
	}

	mark := models.Mark{
		StudentID:           req.StudentID,
		ClassName:           req.ClassName,
		Subject:             req.Subject,
		ExamType:            req.ExamType,
		Score:               req.Score,
		MaxScore:            req.MaxScore,
		Status:              models.MarkStatusSubmitted,
		SubmittingTeacherID: teacherID,
	}
	if err := s.marks.Create(ctx, &mark); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_failed")
		return dto.MarkResponse{}, false, err
	}

	s.logger.Info().Str("mark_id", mark.ID).Str("teacher_id", teacherID).Str("group", mark.Group().String()).Msg("mark submitted")
	return dto.NewMarkResponse(mark), true, nil
}

func (s *markService) Get(ctx context.Context, id string) (dto.MarkResponse, error) {
	mark, err := s.marks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MarkResponse{}, ErrMarkNotFound
		}
		return dto.MarkResponse{}, err
	}
	return dto.NewMarkResponse(mark), nil
}
