package handler_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/handler"
	"github.com/noah-isme/gema-results-api/internal/service"
)

type mockScheduleService struct {
	lastRequest dto.SchedulePublishRequest
	response    dto.ScheduleResponse
	err         error
}

func (m *mockScheduleService) SchedulePublish(_ context.Context, req dto.SchedulePublishRequest, _ service.Actor) (dto.ScheduleResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return dto.ScheduleResponse{}, m.err
	}
	return m.response, nil
}

func newPublicationApp(svc service.ScheduleService) *fiber.App {
	app := fiber.New()
	handler.NewPublicationHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/publications"))
	return app
}

func TestPublicationHandler_Schedule(t *testing.T) {
	publishAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	svc := &mockScheduleService{response: dto.ScheduleResponse{ClassName: "Class-5", ExamType: "Unit Test", PublishAt: publishAt, ScheduledCount: 3}}
	app := newPublicationApp(svc)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/publications/schedule", map[string]string{
		"class_name": "Class-5",
		"exam_type":  "Unit Test",
		"publish_at": publishAt.Format(time.RFC3339),
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.ScheduleResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, 3, body.Data.ScheduledCount)
	require.True(t, svc.lastRequest.PublishAt.Equal(publishAt))
}

func TestPublicationHandler_NothingToSchedule(t *testing.T) {
	app := newPublicationApp(&mockScheduleService{err: service.ErrNothingToSchedule})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/publications/schedule", map[string]string{
		"class_name": "Class-5",
		"exam_type":  "Unit Test",
		"publish_at": time.Now().UTC().Format(time.RFC3339),
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "no submitted marks", body.Message)
}
