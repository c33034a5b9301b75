package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// ContactRepository reads teacher, manager and guardian contacts.
type ContactRepository interface {
	FindByID(ctx context.Context, id string) (models.Contact, error)
	ResolveGuardianTokens(ctx context.Context, studentIDs []string) ([]models.GuardianToken, error)
	Create(ctx context.Context, contact *models.Contact) error
	LinkGuardian(ctx context.Context, studentID, contactID string) error
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository constructs a repository backed by GORM.
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) FindByID(ctx context.Context, id string) (models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error; err != nil {
		return models.Contact{}, err
	}
	return contact, nil
}

type guardianTokenRow struct {
	StudentID   string
	ContactID   string
	DeviceToken *string
}

// ResolveGuardianTokens returns one entry per (student, guardian) pair holding a device token.
func (r *contactRepository) ResolveGuardianTokens(ctx context.Context, studentIDs []string) ([]models.GuardianToken, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	var rows []guardianTokenRow
	if err := r.db.WithContext(ctx).
		Table("student_guardians AS sg").
		Select("sg.student_id AS student_id, c.id AS contact_id, c.device_token AS device_token").
		Joins("JOIN contacts c ON c.id = sg.contact_id").
		Where("sg.student_id IN ?", studentIDs).
		Where("c.device_token IS NOT NULL").
		Order("sg.student_id ASC").
		Order("c.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	tokens := make([]models.GuardianToken, 0, len(rows))
	for _, row := range rows {
		if row.DeviceToken == nil {
			continue
		}
		token := strings.TrimSpace(*row.DeviceToken)
		if token == "" {
			continue
		}
		tokens = append(tokens, models.GuardianToken{
			StudentID: row.StudentID,
			ContactID: row.ContactID,
			Token:     token,
		})
	}

	return tokens, nil
}

func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *contactRepository) LinkGuardian(ctx context.Context, studentID, contactID string) error {
	return r.db.WithContext(ctx).Create(&models.StudentGuardian{StudentID: studentID, ContactID: contactID}).Error
}
