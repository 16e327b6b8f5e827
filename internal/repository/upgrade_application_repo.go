package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// UpgradeApplicationFilter narrows review queue listings. All set fields are AND-combined.
type UpgradeApplicationFilter struct {
	Status   models.ApplicationStatus
	Search   string
	From     *time.Time
	Until    *time.Time
	Sort     string
	Page     int
	PageSize int
}

// UpgradeApplicationRepository persists tutor upgrade applications.
type UpgradeApplicationRepository interface {
	Create(ctx context.Context, application *models.UpgradeApplication) error
	GetByID(ctx context.Context, id uint) (models.UpgradeApplication, error)
	Transition(ctx context.Context, id uint, from models.ApplicationStatus, updates map[string]interface{}) (models.UpgradeApplication, error)
	List(ctx context.Context, filter UpgradeApplicationFilter) ([]models.UpgradeApplication, int64, error)
	ListByTutor(ctx context.Context, tutorID uint) ([]models.UpgradeApplication, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
}

type upgradeApplicationRepository struct {
	db *gorm.DB
}

// NewUpgradeApplicationRepository instantiates a GORM-backed repository.
func NewUpgradeApplicationRepository(db *gorm.DB) UpgradeApplicationRepository {
	return &upgradeApplicationRepository{db: db}
}

// Create inserts the application. A tutor holds at most one pending application;
// the partial unique index enforces it and a violation surfaces as ErrPendingApplicationExists.
func (r *upgradeApplicationRepository) Create(ctx context.Context, application *models.UpgradeApplication) error {
	err := r.db.WithContext(ctx).Omit("Tutor", "Documents").Create(application).Error
	if err == nil || application.Status != models.ApplicationStatusPending {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPendingApplicationExists
	}

	var pending int64
	countErr := r.db.WithContext(ctx).
		Model(&models.UpgradeApplication{}).
		Where("tutor_id = ? AND status = ?", application.TutorID, models.ApplicationStatusPending).
		Count(&pending).Error
	if countErr == nil && pending > 0 {
		return ErrPendingApplicationExists
	}
	return err
}

func (r *upgradeApplicationRepository) GetByID(ctx context.Context, id uint) (models.UpgradeApplication, error) {
	var application models.UpgradeApplication
	err := r.db.WithContext(ctx).
		Preload("Tutor").
		Preload("Documents").
		First(&application, id).Error
	if err != nil {
		return models.UpgradeApplication{}, err
	}

	return application, nil
}

// Transition applies updates only while the application still holds the expected status.
func (r *upgradeApplicationRepository) Transition(ctx context.Context, id uint, from models.ApplicationStatus, updates map[string]interface{}) (models.UpgradeApplication, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UpgradeApplication{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return models.UpgradeApplication{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.UpgradeApplication{}, ErrStaleTransition
	}

	return r.GetByID(ctx, id)
}

func (r *upgradeApplicationRepository) List(ctx context.Context, filter UpgradeApplicationFilter) ([]models.UpgradeApplication, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UpgradeApplication{}).
		Joins("JOIN users ON users.id = upgrade_applications.tutor_id")

	if filter.Status != "" {
		query = query.Where("upgrade_applications.status = ?", filter.Status)
	}

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		query = query.Where("LOWER(users.full_name) LIKE ? ESCAPE '\\' OR LOWER(users.email) LIKE ? ESCAPE '\\'", like, like)
	}

	if filter.From != nil {
		query = query.Where("upgrade_applications.application_date >= ?", *filter.From)
	}

	if filter.Until != nil {
		query = query.Where("upgrade_applications.application_date < ?", *filter.Until)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeApplicationSort(filter.Sort)).Order("upgrade_applications.id DESC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var applications []models.UpgradeApplication
	if err := query.Preload("Tutor").Find(&applications).Error; err != nil {
		return nil, 0, err
	}

	return applications, total, nil
}

func (r *upgradeApplicationRepository) ListByTutor(ctx context.Context, tutorID uint) ([]models.UpgradeApplication, error) {
	var applications []models.UpgradeApplication
	err := r.db.WithContext(ctx).
		Preload("Documents").
		Where("tutor_id = ?", tutorID).
		Order("application_date DESC").
		Find(&applications).Error
	if err != nil {
		return nil, err
	}

	return applications, nil
}

func (r *upgradeApplicationRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	var rows []struct {
		Status models.ApplicationStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.UpgradeApplication{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ApplicationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}

func normalizeApplicationSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "application_date", "application_date:asc", "application_date.asc":
		return "upgrade_applications.application_date ASC"
	case "reviewed_date", "reviewed_date:asc", "reviewed_date.asc":
		return "upgrade_applications.reviewed_date ASC"
	case "-reviewed_date", "reviewed_date:desc", "reviewed_date.desc":
		return "upgrade_applications.reviewed_date DESC"
	case "status", "status:asc", "status.asc":
		return "upgrade_applications.status ASC"
	case "-status", "status:desc", "status.desc":
		return "upgrade_applications.status DESC"
	case "tutor_name", "tutor_name:asc", "tutor_name.asc":
		return "users.full_name ASC"
	case "-tutor_name", "tutor_name:desc", "tutor_name.desc":
		return "users.full_name DESC"
	default:
		return "upgrade_applications.application_date DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern escaped with '\'.
func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
