package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ProviderDirectory resolves tutors and counselors that can receive assignments.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListProviders(ctx context.Context, role string) ([]models.User, error)
	SetAdvanced(ctx context.Context, id uint, advanced bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user-backed provider directory.
func NewUserRepository(db *gorm.DB) ProviderDirectory {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

// ListProviders returns tutors and counselors, optionally restricted to one role.
func (r *userRepository) ListProviders(ctx context.Context, role string) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

	role = strings.ToLower(strings.TrimSpace(role))
	if role != "" {
		query = query.Where("role = ?", role)
	} else {
		query = query.Where("role IN ?", []string{models.RoleTutor, models.RoleCounselor})
	}

	var providers []models.User
	if err := query.Order("rating DESC").Order("full_name ASC").Find(&providers).Error; err != nil {
		return nil, err
	}

	return providers, nil
}

func (r *userRepository) SetAdvanced(ctx context.Context, id uint, advanced bool) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("advanced", advanced)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
