package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/internal/dto"
	"github.com/noah-isme/gema-results-api/internal/repository"
)

// ErrContactRequired indicates a history lookup without a contact.
var ErrContactRequired = errors.New("contact id is required")

// NotificationService exposes the push delivery history of a contact.
type NotificationService interface {
	List(ctx context.Context, contactID string, limit, offset int) ([]dto.PushDeliveryResponse, error)
}

type notificationService struct {
	repo   repository.PushDeliveryRepository
	logger zerolog.Logger
}

// NewNotificationService constructs a notification history service.
func NewNotificationService(repo repository.PushDeliveryRepository, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *notificationService) List(ctx context.Context, contactID string, limit, offset int) ([]dto.PushDeliveryResponse, error) {
	if contactID == "" {
		return nil, ErrContactRequired
	}
	if offset < 0 {
		offset = 0
	}

	deliveries, err := s.repo.ListByContact(ctx, contactID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("contact_id", contactID).Msg("failed to list push deliveries")
		return nil, err
	}

	return dto.NewPushDeliveryResponseSlice(deliveries), nil
}
