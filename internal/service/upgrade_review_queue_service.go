package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

const (
	defaultReviewQueuePageSize = 20
	maxReviewQueuePageSize     = 100
	queueDateLayout            = "2006-01-02"
)

// ExportColumns is the fixed header of the review queue CSV export.
var ExportColumns = []string{
	"id",
	"tutor_id",
	"tutor_name",
	"tutor_email",
	"status",
	"subject_expertise",
	"application_date",
	"reviewed_date",
	"rejection_reason",
}

var queueSortFields = map[string]string{
	"application_date": "desc",
	"reviewed_date":    "desc",
	"status":           "asc",
	"tutor_name":       "asc",
}

// ActivityHistory reads the audit trail of an entity.
type ActivityHistory interface {
	History(ctx context.Context, entityType string, entityID uint) ([]dto.ActivityResponse, error)
}

// UpgradeReviewQueueService is the admin view over all upgrade applications.
type UpgradeReviewQueueService interface {
	List(ctx context.Context, req dto.UpgradeApplicationListRequest) (dto.UpgradeApplicationListResponse, error)
	Get(ctx context.Context, id uint) (dto.UpgradeApplicationDetailResponse, error)
	BulkReview(ctx context.Context, req dto.UpgradeBulkReviewRequest, actor ActivityActor) (dto.UpgradeBulkReviewResponse, error)
	Export(ctx context.Context, req dto.UpgradeApplicationListRequest, w io.Writer) (int, error)
	Stats(ctx context.Context) (dto.UpgradeApplicationStats, error)
}

type upgradeReviewQueueService struct {
	applications repository.UpgradeApplicationRepository
	workflow     UpgradeApplicationService
	history      ActivityHistory
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewUpgradeReviewQueueService constructs the review queue on top of the application workflow.
func NewUpgradeReviewQueueService(applications repository.UpgradeApplicationRepository, workflow UpgradeApplicationService, history ActivityHistory, validate *validator.Validate, logger zerolog.Logger) UpgradeReviewQueueService {
	if validate == nil {
		validate = NewValidator()
	}
	return &upgradeReviewQueueService{
		applications: applications,
		workflow:     workflow,
		history:      history,
		validator:    validate,
		logger:       logger.With().Str("component", "upgrade_review_queue_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/tutorhub-api/internal/service/upgrade_review_queue"),
	}
}

func (s *upgradeReviewQueueService) List(ctx context.Context, req dto.UpgradeApplicationListRequest) (dto.UpgradeApplicationListResponse, error) {
	filter, err := buildQueueFilter(req)
	if err != nil {
		return dto.UpgradeApplicationListResponse{}, err
	}

	filter.Page = req.Page
	if filter.Page <= 0 {
		filter.Page = 1
	}
	filter.PageSize = req.PageSize
	if filter.PageSize <= 0 {
		filter.PageSize = defaultReviewQueuePageSize
	}
	if filter.PageSize > maxReviewQueuePageSize {
		filter.PageSize = maxReviewQueuePageSize
	}

	applications, total, err := s.applications.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list upgrade applications")
		return dto.UpgradeApplicationListResponse{}, err
	}

	items := make([]dto.UpgradeApplicationSummary, 0, len(applications))
	for _, application := range applications {
		items = append(items, dto.NewUpgradeApplicationSummary(application))
	}

	return dto.UpgradeApplicationListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *upgradeReviewQueueService) Get(ctx context.Context, id uint) (dto.UpgradeApplicationDetailResponse, error) {
	application, err := s.workflow.Get(ctx, id)
	if err != nil {
		return dto.UpgradeApplicationDetailResponse{}, err
	}

	history := []dto.ActivityResponse{}
	if s.history != nil {
		entries, err := s.history.History(ctx, EntityUpgradeApplication, id)
		if err != nil {
			s.logger.Warn().Err(err).Uint("application_id", id).Msg("failed to load application history")
		} else {
			history = entries
		}
	}

	return dto.UpgradeApplicationDetailResponse{Application: application, History: history}, nil
}

func (s *upgradeReviewQueueService) BulkReview(ctx context.Context, req dto.UpgradeBulkReviewRequest, actor ActivityActor) (dto.UpgradeBulkReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upgrade_application.bulk_review")
	defer span.End()

	ids := uniqueIDs(req.ApplicationIDs)
	var failures ValidationErrors
	if len(ids) == 0 {
		failures = append(failures, ValidationError{Field: "application_ids", Message: "must contain at least 1 item(s)"})
	}
	if _, err := validateReviewDecision(s.validator, req.Decision()); err != nil {
		if details, ok := ValidationDetails(err); ok {
			failures = append(failures, details...)
		} else {
			return dto.UpgradeBulkReviewResponse{}, err
		}
	}
	if len(failures) > 0 {
		return dto.UpgradeBulkReviewResponse{}, failures
	}

	span.SetAttributes(attribute.Int("bulk_review.size", len(ids)))

	result := dto.UpgradeBulkReviewResponse{
		Succeeded: make([]uint, 0, len(ids)),
		Failed:    make(map[uint]string),
	}
	decision := req.Decision()
	for _, id := range ids {
		if _, err := s.workflow.Review(ctx, id, decision, actor); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	s.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Uint("reviewer_id", actor.ID).
		Msg("bulk review processed")

	return result, nil
}

func (s *upgradeReviewQueueService) Export(ctx context.Context, req dto.UpgradeApplicationListRequest, w io.Writer) (int, error) {
	filter, err := buildQueueFilter(req)
	if err != nil {
		return 0, err
	}

	applications, _, err := s.applications.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return 0, err
	}

	for _, application := range applications {
		reviewed := ""
		if application.ReviewedDate != nil {
			reviewed = application.ReviewedDate.UTC().Format(time.RFC3339)
		}
		reason := ""
		if application.RejectionReason != nil {
			reason = string(*application.RejectionReason)
			if *application.RejectionReason == models.RejectionOther && application.CustomRejectionReason != nil {
				reason = fmt.Sprintf("%s: %s", reason, *application.CustomRejectionReason)
			}
		}

		record := []string{
			strconv.FormatUint(uint64(application.ID), 10),
			strconv.FormatUint(uint64(application.TutorID), 10),
			application.Tutor.FullName,
			application.Tutor.Email,
			string(application.Status),
			strings.Join(application.SubjectExpertise, "; "),
			application.ApplicationDate.UTC().Format(time.RFC3339),
			reviewed,
			reason,
		}
		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, err
	}

	return len(applications), nil
}

func (s *upgradeReviewQueueService) Stats(ctx context.Context) (dto.UpgradeApplicationStats, error) {
	counts, err := s.applications.CountByStatus(ctx)
	if err != nil {
		return dto.UpgradeApplicationStats{}, err
	}

	stats := dto.UpgradeApplicationStats{
		Pending:   counts[models.ApplicationStatusPending],
		Approved:  counts[models.ApplicationStatusApproved],
		Rejected:  counts[models.ApplicationStatusRejected],
		Cancelled: counts[models.ApplicationStatusCancelled],
	}
	for _, count := range counts {
		stats.Total += count
	}

	return stats, nil
}

// buildQueueFilter validates filters and sort; pagination is left to the caller.
func buildQueueFilter(req dto.UpgradeApplicationListRequest) (repository.UpgradeApplicationFilter, error) {
	var failures ValidationErrors
	filter := repository.UpgradeApplicationFilter{
		Search: strings.TrimSpace(req.Search),
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != "" && status != "all" {
		if !models.ApplicationStatus(status).Valid() {
			failures = append(failures, ValidationError{Field: "status", Message: "must be one of [pending approved rejected cancelled]"})
		} else {
			filter.Status = models.ApplicationStatus(status)
		}
	}

	if value := strings.TrimSpace(req.StartDate); value != "" {
		start, err := time.Parse(queueDateLayout, value)
		if err != nil {
			failures = append(failures, ValidationError{Field: "start_date", Message: "must match layout " + queueDateLayout})
		} else {
			filter.From = &start
		}
	}

	if value := strings.TrimSpace(req.EndDate); value != "" {
		end, err := time.Parse(queueDateLayout, value)
		if err != nil {
			failures = append(failures, ValidationError{Field: "end_date", Message: "must match layout " + queueDateLayout})
		} else {
			until := end.Add(24 * time.Hour)
			filter.Until = &until
		}
	}

	if filter.From != nil && filter.Until != nil && !filter.From.Before(*filter.Until) {
		failures = append(failures, ValidationError{Field: "end_date", Message: "must not be before start_date"})
	}

	field := strings.ToLower(strings.TrimSpace(req.SortField))
	order := strings.ToLower(strings.TrimSpace(req.SortOrder))
	if field == "" {
		field = "application_date"
	}
	defaultOrder, ok := queueSortFields[field]
	if !ok {
		failures = append(failures, ValidationError{Field: "sort", Message: "must be one of [application_date reviewed_date status tutor_name]"})
	}
	if order == "" {
		order = defaultOrder
	}
	if order != "asc" && order != "desc" {
		failures = append(failures, ValidationError{Field: "order", Message: "must be one of [asc desc]"})
	}
	filter.Sort = field + ":" + order

	if len(failures) > 0 {
		return repository.UpgradeApplicationFilter{}, failures
	}

	return filter, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
