package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-results-api/internal/models"
)

func seedMark(t *testing.T, repo MarkRepository, mark models.Mark) models.Mark {
	t.Helper()
	if mark.MaxScore == 0 {
		mark.MaxScore = 100
	}
	if mark.SubmittingTeacherID == "" {
		mark.SubmittingTeacherID = "teacher-1"
	}
	require.NoError(t, repo.Create(context.Background(), &mark))
	return mark
}

func TestMarkRepositoryDueGroups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarkRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusSubmitted, PublishAfter: &past})
	seedMark(t, repo, models.Mark{StudentID: "s2", ClassName: "Class-5", Subject: "Science", ExamType: "Unit Test", Status: models.MarkStatusSubmitted, PublishAfter: &past})
	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-6", Subject: "Math", ExamType: "Final", Status: models.MarkStatusSubmitted, PublishAfter: &future})
	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-7", Subject: "Math", ExamType: "Final", Status: models.MarkStatusSubmitted})
	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-8", Subject: "Math", ExamType: "Final", Status: models.MarkStatusPublished, PublishAfter: &past})

	groups, err := repo.DueGroups(ctx, []models.MarkStatus{models.MarkStatusSubmitted}, now)
	require.NoError(t, err)
	require.Equal(t, []models.Group{{ClassName: "Class-5", ExamType: "Unit Test"}}, groups)
}

func TestMarkRepositoryBatchUpdateStatusReportsPerItem(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarkRepository(db)
	ctx := context.Background()

	submitted := seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusSubmitted})
	rejected := seedMark(t, repo, models.Mark{StudentID: "s2", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusRejected})

	results, err := repo.BatchUpdateStatus(ctx, []string{submitted.ID, rejected.ID, "missing"}, []models.MarkStatus{models.MarkStatusSubmitted}, models.MarkStatusPublished)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.True(t, results[0].Success)
	require.False(t, results[1].Success)
	require.ErrorIs(t, results[1].Err, ErrMarkStateConflict)
	require.False(t, results[2].Success)

	reloaded, err := repo.GetByID(ctx, submitted.ID)
	require.NoError(t, err)
	require.Equal(t, models.MarkStatusPublished, reloaded.Status)

	untouched, err := repo.GetByID(ctx, rejected.ID)
	require.NoError(t, err)
	require.Equal(t, models.MarkStatusRejected, untouched.Status)
}

func TestMarkRepositoryUpdatePublishAfterSkipsPublished(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarkRepository(db)
	ctx := context.Background()
	at := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	submitted := seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusSubmitted})
	published := seedMark(t, repo, models.Mark{StudentID: "s2", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusPublished})

	results, err := repo.UpdatePublishAfter(ctx, []string{submitted.ID, published.ID}, []models.MarkStatus{models.MarkStatusSubmitted}, at)
	require.NoError(t, err)
	require.True(t, results[0].Success)
	require.False(t, results[1].Success)

	reloaded, err := repo.GetByID(ctx, submitted.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PublishAfter)
	require.True(t, reloaded.PublishAfter.Equal(at))

	untouched, err := repo.GetByID(ctx, published.ID)
	require.NoError(t, err)
	require.Nil(t, untouched.PublishAfter)
}

func TestMarkRepositoryQueryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarkRepository(db)
	ctx := context.Background()

	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Status: models.MarkStatusSubmitted})
	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Science", ExamType: "Unit Test", Status: models.MarkStatusApproved})
	seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Final", Status: models.MarkStatusSubmitted})

	marks, err := repo.Query(ctx, MarkFilter{ClassName: "Class-5", ExamType: "Unit Test", Statuses: []models.MarkStatus{models.MarkStatusSubmitted}})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	require.Equal(t, "Math", marks[0].Subject)

	marks, err = repo.Query(ctx, MarkFilter{StudentID: "s1", Subject: "Math"})
	require.NoError(t, err)
	require.Len(t, marks, 2)
}

func TestMarkRepositoryUpdateScoreGuardsStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMarkRepository(db)
	ctx := context.Background()

	submitted := seedMark(t, repo, models.Mark{StudentID: "s1", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Score: 10, Status: models.MarkStatusSubmitted})
	published := seedMark(t, repo, models.Mark{StudentID: "s2", ClassName: "Class-5", Subject: "Math", ExamType: "Unit Test", Score: 10, Status: models.MarkStatusPublished})

	require.NoError(t, repo.UpdateScore(ctx, submitted.ID, 15, 20, "teacher-2"))
	reloaded, err := repo.GetByID(ctx, submitted.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, reloaded.Score)
	require.Equal(t, 20.0, reloaded.MaxScore)
	require.Equal(t, "teacher-2", reloaded.SubmittingTeacherID)
	require.Equal(t, models.MarkStatusSubmitted, reloaded.Status)

	err = repo.UpdateScore(ctx, published.ID, 15, 20, "teacher-2")
	require.ErrorIs(t, err, ErrMarkStateConflict)
	untouched, err := repo.GetByID(ctx, published.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, untouched.Score)
	require.Equal(t, models.MarkStatusPublished, untouched.Status)
}
