package dto

import "time"

// SchedulePublishRequest asks for a group to become publishable at PublishAt.
type SchedulePublishRequest struct {
	ClassName string    `json:"class_name" validate:"required,max=128"`
	ExamType  string    `json:"exam_type" validate:"required,max=128"`
	PublishAt time.Time `json:"publish_at" validate:"required"`
}

// ScheduleResponse reports how many marks received the publish gate.
type ScheduleResponse struct {
	ClassName      string    `json:"class_name"`
	ExamType       string    `json:"exam_type"`
	PublishAt      time.Time `json:"publish_at"`
	ScheduledCount int       `json:"scheduled_count"`
	FailedCount    int       `json:"failed_count,omitempty"`
}
