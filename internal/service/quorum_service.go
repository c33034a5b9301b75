package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/repository"
)

// Readiness is the quorum verdict for one group.
type Readiness struct {
	Group         models.Group
	Expected      int
	Actual        int
	Missing       []string
	Misconfigured bool
	Ready         bool
	// Marks holds the group's eligible marks read during evaluation.
	Marks []models.Mark
}

// QuorumEvaluator decides which groups are due and whether they have all subjects in.
type QuorumEvaluator interface {
	FindDueGroups(ctx context.Context, now time.Time) ([]models.Group, error)
	IsReady(ctx context.Context, group models.Group) (Readiness, error)
}

type quorumEvaluator struct {
	marks       repository.MarkRepository
	assignments repository.AssignmentRepository
	policy      QuorumPolicy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewQuorumEvaluator constructs the evaluator.
func NewQuorumEvaluator(marks repository.MarkRepository, assignments repository.AssignmentRepository, policy QuorumPolicy, logger zerolog.Logger) QuorumEvaluator {
	return &quorumEvaluator{
		marks:       marks,
		assignments: assignments,
		policy:      policy,
		logger:      logger.With().Str("component", "quorum_evaluator").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/quorum"),
	}
}

func (q *quorumEvaluator) FindDueGroups(ctx context.Context, now time.Time) ([]models.Group, error) {
	ctx, span := q.tracer.Start(ctx, "quorum.find_due_groups")
	defer span.End()

	groups, err := q.marks.DueGroups(ctx, q.policy.EligibleStatuses(), now)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find due groups: %w", err)
	}

	span.SetAttributes(attribute.Int("quorum.due_groups", len(groups)))
	return groups, nil
}

// IsReady compares the subjects present in the group with the subjects assigned to the
// class. Only assigned subjects count, so duplicate or unassigned submissions never
// make up for a missing one.
func (q *quorumEvaluator) IsReady(ctx context.Context, group models.Group) (Readiness, error) {
	ctx, span := q.tracer.Start(ctx, "quorum.is_ready", trace.WithAttributes(
		attribute.String("group.class_name", group.ClassName),
		attribute.String("group.exam_type", group.ExamType),
	))
	defer span.End()

	result := Readiness{Group: group}

	expected, err := q.assignments.SubjectsForClass(ctx, group.ClassName)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("load assigned subjects: %w", err)
	}

	result.Expected = len(expected)
	if result.Expected == 0 {
		result.Misconfigured = true
		return result, nil
	}

	marks, err := q.marks.Query(ctx, repository.MarkFilter{
		ClassName: group.ClassName,
		ExamType:  group.ExamType,
		Statuses:  q.policy.EligibleStatuses(),
	})
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("load group marks: %w", err)
	}
	result.Marks = marks

	present := make(map[string]struct{}, len(marks))
	for _, mark := range marks {
		present[mark.Subject] = struct{}{}
	}

	for _, subject := range expected {
		if _, ok := present[subject]; ok {
			result.Actual++
			continue
		}
		result.Missing = append(result.Missing, subject)
	}
	sort.Strings(result.Missing)

	result.Ready = result.Actual >= result.Expected
	span.SetAttributes(
		attribute.Int("quorum.expected", result.Expected),
		attribute.Int("quorum.actual", result.Actual),
		attribute.Bool("quorum.ready", result.Ready),
	)

	return result, nil
}
