package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// PushDeliveryRepository handles persistence for push delivery outcomes.
type PushDeliveryRepository interface {
	Create(ctx context.Context, delivery *models.PushDelivery) error
	ListByContact(ctx context.Context, contactID string, limit, offset int) ([]models.PushDelivery, error)
}

type pushDeliveryRepository struct {
	db *gorm.DB
}

// NewPushDeliveryRepository constructs a repository backed by GORM.
func NewPushDeliveryRepository(db *gorm.DB) PushDeliveryRepository {
	return &pushDeliveryRepository{db: db}
}

func (r *pushDeliveryRepository) Create(ctx context.Context, delivery *models.PushDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *pushDeliveryRepository) ListByContact(ctx context.Context, contactID string, limit, offset int) ([]models.PushDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var deliveries []models.PushDelivery
	if err := r.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}

	return deliveries, nil
}
