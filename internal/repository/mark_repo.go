package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/models"
)

// ErrMarkStateConflict indicates a guarded update found the mark outside the expected statuses.
var ErrMarkStateConflict = errors.New("mark not in expected state")

// ItemResult reports the outcome of one record inside a batch write.
type ItemResult struct {
	ID      string
	Success bool
	Err     error
}

// MarkFilter narrows mark queries. Zero values are ignored.
type MarkFilter struct {
	IDs       []string
	ClassName string
	ExamType  string
	StudentID string
	Subject   string
	Statuses  []models.MarkStatus
}

// MarkRepository is the record store contract for marks.
type MarkRepository interface {
	Query(ctx context.Context, filter MarkFilter) ([]models.Mark, error)
	DueGroups(ctx context.Context, statuses []models.MarkStatus, now time.Time) ([]models.Group, error)
	GetByID(ctx context.Context, id string) (models.Mark, error)
	Create(ctx context.Context, mark *models.Mark) error
	UpdateScore(ctx context.Context, id string, score, maxScore float64, teacherID string) error
	BatchUpdateStatus(ctx context.Context, ids []string, from []models.MarkStatus, to models.MarkStatus) ([]ItemResult, error)
	UpdatePublishAfter(ctx context.Context, ids []string, statuses []models.MarkStatus, at time.Time) ([]ItemResult, error)
}

type markRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMarkRepository constructs a repository backed by GORM.
func NewMarkRepository(db *gorm.DB) MarkRepository {
	return &markRepository{db: db, now: time.Now}
}

func (r *markRepository) Query(ctx context.Context, filter MarkFilter) ([]models.Mark, error) {
	query := r.db.WithContext(ctx).Model(&models.Mark{})

	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.ClassName != "" {
		query = query.Where("class_name = ?", filter.ClassName)
	}
	if filter.ExamType != "" {
		query = query.Where("exam_type = ?", filter.ExamType)
	}
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", models.StatusStrings(filter.Statuses))
	}

	var marks []models.Mark
	if err := query.Order("created_at ASC").Order("id ASC").Find(&marks).Error; err != nil {
		return nil, err
	}

	return marks, nil
}

func (r *markRepository) DueGroups(ctx context.Context, statuses []models.MarkStatus, now time.Time) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Model(&models.Mark{}).
		Distinct("class_name", "exam_type").
		Where("status IN ?", models.StatusStrings(statuses)).
		Where("publish_after IS NOT NULL AND publish_after <= ?", now.UTC()).
		Order("class_name ASC").
		Order("exam_type ASC").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *markRepository) GetByID(ctx context.Context, id string) (models.Mark, error) {
	var mark models.Mark
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&mark).Error; err != nil {
		return models.Mark{}, err
	}
	return mark, nil
}

func (r *markRepository) Create(ctx context.Context, mark *models.Mark) error {
	return r.db.WithContext(ctx).Create(mark).Error
}

// UpdateScore rewrites the score of a mark that is still submitted. A mark that moved on
// in the meantime yields ErrMarkStateConflict and is left untouched.
func (r *markRepository) UpdateScore(ctx context.Context, id string, score, maxScore float64, teacherID string) error {
	results, err := r.guardedUpdate(ctx, []string{id}, []models.MarkStatus{models.MarkStatusSubmitted}, map[string]interface{}{
		"score":                 score,
		"max_score":             maxScore,
		"submitting_teacher_id": teacherID,
	})
	if err != nil {
		return err
	}
	return results[0].Err
}

// BatchUpdateStatus moves each mark to the target status when it is still in one of the
// from statuses. Every id gets its own result; a failing row never aborts the rest.
func (r *markRepository) BatchUpdateStatus(ctx context.Context, ids []string, from []models.MarkStatus, to models.MarkStatus) ([]ItemResult, error) {
	return r.guardedUpdate(ctx, ids, from, map[string]interface{}{"status": string(to)})
}

// UpdatePublishAfter stamps the publish gate on each mark still in one of the statuses.
func (r *markRepository) UpdatePublishAfter(ctx context.Context, ids []string, statuses []models.MarkStatus, at time.Time) ([]ItemResult, error) {
	return r.guardedUpdate(ctx, ids, statuses, map[string]interface{}{"publish_after": at.UTC()})
}

func (r *markRepository) guardedUpdate(ctx context.Context, ids []string, statuses []models.MarkStatus, values map[string]interface{}) ([]ItemResult, error) {
	allowed := models.StatusStrings(statuses)
	results := make([]ItemResult, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		updates := make(map[string]interface{}, len(values)+1)
		for key, value := range values {
			updates[key] = value
		}
		updates["updated_at"] = r.now().UTC()

		tx := r.db.WithContext(ctx).
			Model(&models.Mark{}).
			Where("id = ? AND status IN ?", id, allowed).
			Updates(updates)
		switch {
		case tx.Error != nil:
			results = append(results, ItemResult{ID: id, Err: tx.Error})
		case tx.RowsAffected == 0:
			results = append(results, ItemResult{ID: id, Err: ErrMarkStateConflict})
		default:
			results = append(results, ItemResult{ID: id, Success: true})
		}
	}

	return results, nil
}
