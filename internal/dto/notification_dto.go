package dto

import (
	"time"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// PushDeliveryResponse represents a push attempt in API payloads.
type PushDeliveryResponse struct {
	ID          uint              `json:"id"`
	StudentID   string            `json:"student_id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Status      string            `json:"status"`
	TokenSuffix string            `json:"token_suffix"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewPushDeliveryResponse converts a delivery model into a response.
func NewPushDeliveryResponse(delivery models.PushDelivery) PushDeliveryResponse {
	data := make(map[string]string, len(delivery.Data))
	for key, value := range delivery.Data {
		if str, ok := value.(string); ok {
			data[key] = str
		}
	}

	return PushDeliveryResponse{
		ID:          delivery.ID,
		StudentID:   delivery.StudentID,
		Type:        delivery.Type,
		Title:       delivery.Title,
		Body:        delivery.Body,
		Data:        data,
		Status:      delivery.Status,
		TokenSuffix: delivery.TokenSuffix,
		CreatedAt:   delivery.CreatedAt,
	}
}

// NewPushDeliveryResponseSlice converts multiple deliveries.
func NewPushDeliveryResponseSlice(deliveries []models.PushDelivery) []PushDeliveryResponse {
	responses := make([]PushDeliveryResponse, 0, len(deliveries))
	for _, delivery := range deliveries {
		responses = append(responses, NewPushDeliveryResponse(delivery))
	}
	return responses
}
