package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// StudentReferralRepository stores students routed by teachers.
type StudentReferralRepository interface {
	Create(ctx context.Context, referral *models.StudentReferral) error
	GetByID(ctx context.Context, id uint) (models.StudentReferral, error)
}

type studentReferralRepository struct {
	db *gorm.DB
}

// NewStudentReferralRepository constructs the referral repository.
func NewStudentReferralRepository(db *gorm.DB) StudentReferralRepository {
	return &studentReferralRepository{db: db}
}

func (r *studentReferralRepository) Create(ctx context.Context, referral *models.StudentReferral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *studentReferralRepository) GetByID(ctx context.Context, id uint) (models.StudentReferral, error) {
	var referral models.StudentReferral
	if err := r.db.WithContext(ctx).First(&referral, id).Error; err != nil {
		return models.StudentReferral{}, err
	}
	return referral, nil
}
