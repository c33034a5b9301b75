package models

import (
	"strings"
	"time"
)

// ContactRole distinguishes the people the school talks to.
type ContactRole string

const (
	ContactRoleTeacher ContactRole = "teacher"
	ContactRoleManager ContactRole = "manager"
	ContactRoleParent  ContactRole = "parent"
)

// Contact is a teacher, manager or parent identity with an optional push token.
type Contact struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	Role        ContactRole `gorm:"size:32;not null;index" json:"role"`
	DeviceToken *string     `gorm:"size:512" json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PushToken returns the trimmed device token, empty when none is registered.
func (c Contact) PushToken() string {
	if c.DeviceToken == nil {
		return ""
	}
	return strings.TrimSpace(*c.DeviceToken)
}

// StudentGuardian links a student to a guardian contact.
type StudentGuardian struct {
	StudentID string    `gorm:"primaryKey;size:64" json:"student_id"`
	ContactID string    `gorm:"primaryKey;size:64" json:"contact_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GuardianToken is a resolved push destination for a student's guardian.
type GuardianToken struct {
	StudentID string
	ContactID string
	Token     string
}
