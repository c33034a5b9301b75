package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/models"
)

func TestMarkActionApproveNotifiesTeacherAndLeavesQuorum(t *testing.T) {
	env := newTestEnv(t)
	env.assign(t, "Class-5", "Math", "Science")
	token := "token-teacher-1"
	require.NoError(t, env.contacts.Create(context.Background(), &models.Contact{ID: "teacher-1", Name: "Teacher", Role: models.ContactRoleTeacher, DeviceToken: &token}))

	due := timePtr(env.now.Add(-time.Minute))
	math := env.mark(t, models.Mark{StudentID: "s1", Subject: "Math", PublishAfter: due})
	science := env.mark(t, models.Mark{StudentID: "s1", Subject: "Science", PublishAfter: due})

	svc := NewMarkActionService(env.marks, env.fanout(), env.validate, testLogger())
	resp, err := svc.Apply(context.Background(), math.ID, dto.MarkActionRequest{Action: "Approve"}, Actor{ID: "manager-1", Role: "manager"})
	require.NoError(t, err)
	require.Equal(t, string(models.MarkStatusApproved), resp.Status)
	require.Equal(t, models.MarkStatusApproved, env.status(t, math.ID))

	sent := env.gateway.sent()
	require.Len(t, sent, 1)
	require.Equal(t, token, sent[0].Token)
	require.Equal(t, PushTypeMarkApproved, sent[0].Data["type"])

	report, err := env.engine(QuorumPolicy{}, nil).RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	require.Equal(t, GroupResultNotReady, report.Groups[0].Result)
	require.Equal(t, 1, report.Groups[0].Actual)
	require.Equal(t, models.MarkStatusSubmitted, env.status(t, science.ID))
}

func TestMarkActionRejectWithoutTeacherToken(t *testing.T) {
	env := newTestEnv(t)
	mark := env.mark(t, models.Mark{StudentID: "s1", Subject: "Math", SubmittingTeacherID: "teacher-unknown"})

	svc := NewMarkActionService(env.marks, env.fanout(), env.validate, testLogger())
	resp, err := svc.Apply(context.Background(), mark.ID, dto.MarkActionRequest{Action: "reject"}, Actor{ID: "manager-1"})
	require.NoError(t, err)
	require.Equal(t, string(models.MarkStatusRejected), resp.Status)
	require.Empty(t, env.gateway.sent())
}

func TestMarkActionErrors(t *testing.T) {
	env := newTestEnv(t)
	published := env.mark(t, models.Mark{StudentID: "s1", Subject: "Math", Status: models.MarkStatusPublished})
	submitted := env.mark(t, models.Mark{StudentID: "s2", Subject: "Math"})
	svc := NewMarkActionService(env.marks, env.fanout(), env.validate, testLogger())
	ctx := context.Background()

	_, err := svc.Apply(ctx, "missing", dto.MarkActionRequest{Action: "approve"}, Actor{ID: "manager-1"})
	require.ErrorIs(t, err, ErrMarkNotFound)

	_, err = svc.Apply(ctx, published.ID, dto.MarkActionRequest{Action: "approve"}, Actor{ID: "manager-1"})
	require.ErrorIs(t, err, ErrInvalidMarkTransition)
	require.Equal(t, models.MarkStatusPublished, env.status(t, published.ID))

	_, err = svc.Apply(ctx, submitted.ID, dto.MarkActionRequest{Action: "publish"}, Actor{ID: "manager-1"})
	require.ErrorIs(t, err, ErrInvalidMarkAction)
	require.Equal(t, models.MarkStatusSubmitted, env.status(t, submitted.ID))

	_, err = svc.Apply(ctx, submitted.ID, dto.MarkActionRequest{Action: "reject"}, Actor{ID: "manager-1"})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, submitted.ID, dto.MarkActionRequest{Action: "approve"}, Actor{ID: "manager-1"})
	require.ErrorIs(t, err, ErrInvalidMarkTransition)
	require.Empty(t, env.gateway.sent())
}
