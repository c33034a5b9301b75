package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// AssignmentRepository reads the subjects taught per class.
type AssignmentRepository interface {
	SubjectsForClass(ctx context.Context, className string) ([]string, error)
	ListByClass(ctx context.Context, className string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// SubjectsForClass returns the distinct subjects assigned to the class.
func (r *assignmentRepository) SubjectsForClass(ctx context.Context, className string) ([]string, error) {
	var subjects []string
	if err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("class_name = ?", className).
		Distinct().
		Order("subject ASC").
		Pluck("subject", &subjects).Error; err != nil {
		return nil, err
	}

	return subjects, nil
}

func (r *assignmentRepository) ListByClass(ctx context.Context, className string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("class_name = ?", className).
		Order("subject ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}
