package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// TutorMetricsProvider produces the metrics snapshot used for upgrade eligibility.
type TutorMetricsProvider interface {
	GetSnapshot(ctx context.Context, tutorID uint) (models.TutorMetricsSnapshot, error)
}

type tutorMetricsRepository struct {
	db *gorm.DB
}

// NewTutorMetricsRepository builds a snapshot provider reading users and applications.
func NewTutorMetricsRepository(db *gorm.DB) TutorMetricsProvider {
	return &tutorMetricsRepository{db: db}
}

func (r *tutorMetricsRepository) GetSnapshot(ctx context.Context, tutorID uint) (models.TutorMetricsSnapshot, error) {
	var tutor models.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND role = ?", tutorID, models.RoleTutor).
		First(&tutor).Error
	if err != nil {
		return models.TutorMetricsSnapshot{}, err
	}

	var pending int64
	err = r.db.WithContext(ctx).
		Model(&models.UpgradeApplication{}).
		Where("tutor_id = ? AND status = ?", tutorID, models.ApplicationStatusPending).
		Count(&pending).Error
	if err != nil {
		return models.TutorMetricsSnapshot{}, err
	}

	snapshot := models.TutorMetricsSnapshot{
		TutorID:              tutor.ID,
		CompletedSessions:    tutor.CompletedSessions,
		AverageRating:        tutor.Rating,
		ProfileCompletion:    tutor.ProfileCompletion,
		HasActiveApplication: pending > 0,
	}

	var rejected []models.UpgradeApplication
	err = r.db.WithContext(ctx).
		Select("id", "reviewed_date").
		Where("tutor_id = ? AND status = ? AND reviewed_date IS NOT NULL", tutorID, models.ApplicationStatusRejected).
		Order("reviewed_date DESC").
		Limit(1).
		Find(&rejected).Error
	if err != nil {
		return models.TutorMetricsSnapshot{}, err
	}
	if len(rejected) > 0 && rejected[0].ReviewedDate != nil {
		reviewed := rejected[0].ReviewedDate.UTC()
		snapshot.LastRejectionDate = &reviewed
	}

	return snapshot, nil
}
