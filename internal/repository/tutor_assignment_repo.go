package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// TutorAssignmentRepository persists teacher-to-provider assignments.
type TutorAssignmentRepository interface {
	Create(ctx context.Context, assignment *models.TutorAssignment) error
	GetByID(ctx context.Context, id uint) (models.TutorAssignment, error)
	Transition(ctx context.Context, id uint, from models.AssignmentStatus, updates map[string]interface{}) (models.TutorAssignment, error)
	ListByProvider(ctx context.Context, providerID uint) ([]models.TutorAssignment, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.TutorAssignment, error)
}

type tutorAssignmentRepository struct {
	db *gorm.DB
}

// NewTutorAssignmentRepository instantiates a GORM-backed repository.
func NewTutorAssignmentRepository(db *gorm.DB) TutorAssignmentRepository {
	return &tutorAssignmentRepository{db: db}
}

func (r *tutorAssignmentRepository) Create(ctx context.Context, assignment *models.TutorAssignment) error {
	return r.db.WithContext(ctx).Omit("StudentReferral", "Provider").Create(assignment).Error
}

func (r *tutorAssignmentRepository) GetByID(ctx context.Context, id uint) (models.TutorAssignment, error) {
	var assignment models.TutorAssignment
	err := r.db.WithContext(ctx).
		Preload("StudentReferral").
		Preload("Provider").
		First(&assignment, id).Error
	if err != nil {
		return models.TutorAssignment{}, err
	}

	return assignment, nil
}

// Transition applies updates only while the assignment still holds the expected status.
func (r *tutorAssignmentRepository) Transition(ctx context.Context, id uint, from models.AssignmentStatus, updates map[string]interface{}) (models.TutorAssignment, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TutorAssignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return models.TutorAssignment{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.TutorAssignment{}, ErrStaleTransition
	}

	return r.GetByID(ctx, id)
}

func (r *tutorAssignmentRepository) ListByProvider(ctx context.Context, providerID uint) ([]models.TutorAssignment, error) {
	return r.list(ctx, "provider_id = ?", providerID)
}

func (r *tutorAssignmentRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.TutorAssignment, error) {
	return r.list(ctx, "teacher_id = ?", teacherID)
}

func (r *tutorAssignmentRepository) list(ctx context.Context, condition string, value uint) ([]models.TutorAssignment, error) {
	var assignments []models.TutorAssignment
	err := r.db.WithContext(ctx).
		Preload("StudentReferral").
		Preload("Provider").
		Where(condition, value).
		Order("assigned_at DESC").
		Order("id DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	return assignments, nil
}
