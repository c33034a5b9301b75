package dto

import (
	"time"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// MarkSubmitRequest is the teacher payload for a subject-exam score.
type MarkSubmitRequest struct {
	StudentID string  `json:"student_id" validate:"required,max=64"`
	ClassName string  `json:"class_name" validate:"required,max=128"`
	Subject   string  `json:"subject" validate:"required,max=128"`
	ExamType  string  `json:"exam_type" validate:"required,max=128"`
	Score     float64 `json:"score" validate:"gte=0,ltefield=MaxScore"`
	MaxScore  float64 `json:"max_score" validate:"required,gt=0"`
}

// MarkActionRequest carries a manager override decision.
type MarkActionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// MarkResponse is returned to API clients when viewing marks.
type MarkResponse struct {
	ID                  string     `json:"id"`
	StudentID           string     `json:"student_id"`
	ClassName           string     `json:"class_name"`
	Subject             string     `json:"subject"`
	ExamType            string     `json:"exam_type"`
	Score               float64    `json:"score"`
	MaxScore            float64    `json:"max_score"`
	Status              string     `json:"status"`
	SubmittingTeacherID string     `json:"submitting_teacher_id"`
	PublishAfter        *time.Time `json:"publish_after,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewMarkResponse maps a mark model into its API representation.
func NewMarkResponse(mark models.Mark) MarkResponse {
	return MarkResponse{
		ID:                  mark.ID,
		StudentID:           mark.StudentID,
		ClassName:           mark.ClassName,
		Subject:             mark.Subject,
		ExamType:            mark.ExamType,
		Score:               mark.Score,
		MaxScore:            mark.MaxScore,
		Status:              string(mark.Status),
		SubmittingTeacherID: mark.SubmittingTeacherID,
		PublishAfter:        mark.PublishAfter,
		CreatedAt:           mark.CreatedAt,
		UpdatedAt:           mark.UpdatedAt,
	}
}
