package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/service"
	"github.com/noah-isme/gema-results-api/internal/utils"
)

// MarkHandler exposes mark submission, lookup and manager overrides.
type MarkHandler struct {
	marks   service.MarkService
	actions service.MarkActionService
	logger  zerolog.Logger
}

// NewMarkHandler constructs the handler.
func NewMarkHandler(marks service.MarkService, actions service.MarkActionService, logger zerolog.Logger) *MarkHandler {
	return &MarkHandler{
		marks:   marks,
		actions: actions,
		logger:  logger.With().Str("component", "mark_handler").Logger(),
	}
}

// Submit handles POST /marks.
func (h *MarkHandler) Submit(c *fiber.Ctx) error {
	var payload dto.MarkSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	teacherID := userIDFromContext(c)
	if teacherID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	mark, created, err := h.marks.Submit(c.UserContext(), payload, teacherID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarkFinalized):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("teacher_id", teacherID).Msg("failed to submit mark")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit mark")
		}
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "mark submitted", mark)
	}
	return utils.SendSuccess(c, "mark resubmitted", mark)
}

// Get handles GET /marks/:id.
func (h *MarkHandler) Get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	mark, err := h.marks.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrMarkNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "mark not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("mark_id", id).Msg("failed to load mark")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load mark")
	}

	return utils.SendSuccess(c, "mark retrieved", mark)
}

// Action handles POST /marks/:id/action.
func (h *MarkHandler) Action(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.MarkActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	mark, err := h.actions.Apply(c.UserContext(), id, payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarkNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "mark not found")
		case errors.Is(err, service.ErrInvalidMarkAction):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidMarkTransition):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("mark_id", id).Msg("failed to apply mark action")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to apply mark action")
		}
	}

	return utils.SendSuccess(c, "mark "+mark.Status, mark)
}
