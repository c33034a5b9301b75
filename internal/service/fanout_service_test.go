package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-results-api/internal/models"
)

func TestNotificationFanoutDeduplicatesTokens(t *testing.T) {
	env := newTestEnv(t)
	env.guardian(t, "s1", "parent-1", "shared-token")
	env.guardian(t, "s1", "parent-2", "shared-token")
	env.guardian(t, "s2", "parent-1", "shared-token")
	env.guardian(t, "s3", "parent-3", "")

	report, err := env.fanout().NotifyResultPublished(context.Background(), models.Group{ClassName: "Class-5", ExamType: "Unit Test"}, []string{"s1", "s2", "s3"})
	require.NoError(t, err)
	require.Equal(t, 2, report.Recipients)
	require.Equal(t, 2, report.Sent)
	require.Len(t, env.gateway.sent(), 2)
}

func TestNotificationFanoutSanitizesText(t *testing.T) {
	env := newTestEnv(t)
	env.guardian(t, "s1", "parent-1", "token-1")

	_, err := env.fanout().NotifyResultPublished(context.Background(), models.Group{ClassName: "<b>Class-5</b>", ExamType: "Unit Test"}, []string{"s1"})
	require.NoError(t, err)

	sent := env.gateway.sent()
	require.Len(t, sent, 1)
	require.NotContains(t, sent[0].Body, "<b>")
	require.Contains(t, sent[0].Body, "Class-5")
}

func TestNotificationFanoutNoStudents(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.fanout().NotifyResultPublished(context.Background(), models.Group{ClassName: "Class-5", ExamType: "Unit Test"}, nil)
	require.NoError(t, err)
	require.Zero(t, report.Recipients)
	require.Empty(t, env.gateway.sent())
}

func TestNotificationServiceListsOwnDeliveries(t *testing.T) {
	env := newTestEnv(t)
	env.guardian(t, "s1", "parent-1", "token-1")
	env.guardian(t, "s2", "parent-2", "token-2")

	_, err := env.fanout().NotifyResultPublished(context.Background(), models.Group{ClassName: "Class-5", ExamType: "Unit Test"}, []string{"s1", "s2"})
	require.NoError(t, err)

	svc := NewNotificationService(env.deliveries, testLogger())
	items, err := svc.List(context.Background(), "parent-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "s1", items[0].StudentID)

	_, err = svc.List(context.Background(), "", 20, 0)
	require.ErrorIs(t, err, ErrContactRequired)
}
