package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/service"
	"github.com/noah-isme/gema-results-api/internal/utils"
)

// PublicationHandler exposes the manager publish gate.
type PublicationHandler struct {
	service service.ScheduleService
	logger  zerolog.Logger
}

// NewPublicationHandler constructs the handler.
func NewPublicationHandler(service service.ScheduleService, logger zerolog.Logger) *PublicationHandler {
	return &PublicationHandler{
		service: service,
		logger:  logger.With().Str("component", "publication_handler").Logger(),
	}
}

// Register attaches publication endpoints to the router group.
func (h *PublicationHandler) Register(router fiber.Router) {
	router.Post("/schedule", h.schedule)
}

func (h *PublicationHandler) schedule(c *fiber.Ctx) error {
	var payload dto.SchedulePublishRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.SchedulePublish(c.UserContext(), payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToSchedule):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("class_name", payload.ClassName).Str("exam_type", payload.ExamType).Msg("failed to schedule publication")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to schedule publication")
		}
	}

	return utils.SendSuccess(c, "publication scheduled", resp)
}
