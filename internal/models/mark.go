package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MarkStatus is the workflow state of a mark.
type MarkStatus string

const (
	// MarkStatusSubmitted is the provisional state a teacher submission starts in.
	MarkStatusSubmitted MarkStatus = "submitted"
	// MarkStatusApproved marks a submission confirmed by a manager.
	MarkStatusApproved MarkStatus = "approved"
	// MarkStatusRejected marks a submission refused by a manager.
	MarkStatusRejected MarkStatus = "rejected"
	// MarkStatusPublished marks a result visible to students and guardians.
	MarkStatusPublished MarkStatus = "published"
)

var markTransitions = map[MarkStatus][]MarkStatus{
	MarkStatusSubmitted: {MarkStatusApproved, MarkStatusRejected, MarkStatusPublished},
	MarkStatusApproved:  {MarkStatusPublished},
}

// CanTransitionTo reports whether the mark workflow allows moving from s to next.
func (s MarkStatus) CanTransitionTo(next MarkStatus) bool {
	for _, allowed := range markTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s MarkStatus) IsTerminal() bool {
	return len(markTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s MarkStatus) Valid() bool {
	switch s {
	case MarkStatusSubmitted, MarkStatusApproved, MarkStatusRejected, MarkStatusPublished:
		return true
	}
	return false
}

// Mark is one subject-exam score for one student.
type Mark struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	StudentID           string     `gorm:"size:64;not null;index:idx_marks_student_subject_exam" json:"student_id"`
	ClassName           string     `gorm:"size:128;not null;index:idx_marks_group" json:"class_name"`
	Subject             string     `gorm:"size:128;not null;index:idx_marks_student_subject_exam" json:"subject"`
	ExamType            string     `gorm:"size:128;not null;index:idx_marks_group;index:idx_marks_student_subject_exam" json:"exam_type"`
	Score               float64    `gorm:"not null" json:"score"`
	MaxScore            float64    `gorm:"not null" json:"max_score"`
	Status              MarkStatus `gorm:"size:32;not null;index" json:"status"`
	SubmittingTeacherID string     `gorm:"size:64;not null" json:"submitting_teacher_id"`
	PublishAfter        *time.Time `gorm:"index" json:"publish_after,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the opaque record identifier.
func (m *Mark) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Group returns the publication group the mark belongs to.
func (m Mark) Group() Group {
	return Group{ClassName: m.ClassName, ExamType: m.ExamType}
}

// IsDue reports whether the publish gate of the mark has opened at the reference time.
func (m Mark) IsDue(reference time.Time) bool {
	return m.PublishAfter != nil && !m.PublishAfter.After(reference)
}

// Group is the derived (class, exam) key marks are published by.
type Group struct {
	ClassName string `json:"class_name"`
	ExamType  string `json:"exam_type"`
}

func (g Group) String() string {
	return g.ClassName + "/" + g.ExamType
}

// StatusStrings converts statuses for use in store queries.
func StatusStrings(statuses []MarkStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
