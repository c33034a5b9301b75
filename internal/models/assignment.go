package models

import "time"

// Assignment declares that a subject is taught in a class by a teacher.
type Assignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassName string    `gorm:"size:128;not null;index" json:"class_name"`
	Subject   string    `gorm:"size:128;not null" json:"subject"`
	TeacherID string    `gorm:"size:64;not null" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
