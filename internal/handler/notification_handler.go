package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/service"
	"github.com/noah-isme/gema-results-api/internal/utils"
)

// NotificationHandler exposes the caller's push delivery history.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	contactID := userIDFromContext(c)
	if contactID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil || offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	deliveries, err := h.service.List(c.UserContext(), contactID, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrContactRequired) {
			return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("contact_id", contactID).Msg("failed to list notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list notifications")
	}

	return utils.SendList(c, "notifications", deliveries, utils.PageMeta{Limit: limit, Offset: offset, Count: len(deliveries)})
}
