package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ApplicationDocumentRepository stores supporting files for upgrade applications.
type ApplicationDocumentRepository interface {
	Create(ctx context.Context, document *models.ApplicationDocument) error
}

type applicationDocumentRepository struct {
	db *gorm.DB
}

// NewApplicationDocumentRepository constructs the document repository.
func NewApplicationDocumentRepository(db *gorm.DB) ApplicationDocumentRepository {
	return &applicationDocumentRepository{db: db}
}

func (r *applicationDocumentRepository) Create(ctx context.Context, document *models.ApplicationDocument) error {
	return r.db.WithContext(ctx).Create(document).Error
}
