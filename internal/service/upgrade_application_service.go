package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/observability"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UpgradeApplicationService runs the tutor upgrade application workflow.
type UpgradeApplicationService interface {
	Submit(ctx context.Context, tutorID uint, req dto.UpgradeApplicationSubmitRequest) (dto.UpgradeApplicationResponse, error)
	Review(ctx context.Context, id uint, req dto.UpgradeReviewRequest, actor ActivityActor) (dto.UpgradeApplicationResponse, error)
	Get(ctx context.Context, id uint) (dto.UpgradeApplicationResponse, error)
	GetForTutor(ctx context.Context, id, tutorID uint) (dto.UpgradeApplicationResponse, error)
	ListForTutor(ctx context.Context, tutorID uint) ([]dto.UpgradeApplicationResponse, error)
	AttachDocument(ctx context.Context, id, tutorID uint, file *multipart.FileHeader) (dto.ApplicationDocumentResponse, error)
}

// UpgradeApplicationDeps groups the collaborators of the application workflow.
type UpgradeApplicationDeps struct {
	Applications repository.UpgradeApplicationRepository
	Documents    repository.ApplicationDocumentRepository
	Metrics      repository.TutorMetricsProvider
	Users        repository.ProviderDirectory
	Storage      FileStorage
	Activity     ActivityRecorder
	Events       EventPublisher
	Requirements models.EligibilityRequirements
	MaxUploadMB  int
}

type upgradeApplicationService struct {
	applications repository.UpgradeApplicationRepository
	documents    repository.ApplicationDocumentRepository
	metrics      repository.TutorMetricsProvider
	users        repository.ProviderDirectory
	storage      FileStorage
	activity     ActivityRecorder
	events       EventPublisher
	requirements models.EligibilityRequirements
	maxUpload    int64
	validator    *validator.Validate
	logger       zerolog.Logger
	now          func() time.Time
	tracer       trace.Tracer
}

// NewUpgradeApplicationService constructs the application workflow.
func NewUpgradeApplicationService(deps UpgradeApplicationDeps, validate *validator.Validate, logger zerolog.Logger) UpgradeApplicationService {
	if validate == nil {
		validate = NewValidator()
	}
	maxUploadMB := deps.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &upgradeApplicationService{
		applications: deps.Applications,
		documents:    deps.Documents,
		metrics:      deps.Metrics,
		users:        deps.Users,
		storage:      deps.Storage,
		activity:     deps.Activity,
		events:       deps.Events,
		requirements: deps.Requirements,
		maxUpload:    int64(maxUploadMB) * 1024 * 1024,
		validator:    validate,
		logger:       logger.With().Str("component", "upgrade_application_service").Logger(),
		now:          time.Now,
		tracer:       otel.Tracer("github.com/noah-isme/tutorhub-api/internal/service/upgrade_application"),
	}
}

func (s *upgradeApplicationService) Submit(ctx context.Context, tutorID uint, req dto.UpgradeApplicationSubmitRequest) (dto.UpgradeApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upgrade_application.submit")
	defer span.End()
	span.SetAttributes(attribute.Int64("tutor.id", int64(tutorID)))

	req = normalizeSubmitRequest(req)

	var failures ValidationErrors
	if err := s.validator.Struct(req); err != nil {
		failures = append(failures, validationFailures(err)...)
	}

	snapshot, err := s.metrics.GetSnapshot(ctx, tutorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UpgradeApplicationResponse{}, NotFoundError{Entity: EntityTutor, EntityID: tutorID}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return dto.UpgradeApplicationResponse{}, err
	}

	verdict := EvaluateEligibility(snapshot, s.requirements, s.now().UTC())
	if snapshot.HasActiveApplication {
		failures = append(failures, ValidationError{Field: "application", Message: "an application is already pending"})
	}
	for _, missing := range verdict.MissingRequirements {
		failures = append(failures, ValidationError{Field: "eligibility", Message: missing})
	}

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "validation failed")
		return dto.UpgradeApplicationResponse{}, failures
	}

	application := models.UpgradeApplication{
		TutorID:            tutorID,
		SubjectExpertise:   datatypes.JSONSlice[string](req.SubjectExpertise),
		CollegeDegree:      req.Qualifications.CollegeDegree,
		TeachingExperience: req.Qualifications.TeachingExperience,
		StandardizedTests:  datatypes.JSONSlice[string](req.Qualifications.StandardizedTests),
		APIBSubjects:       datatypes.JSONSlice[string](req.Qualifications.APIBSubjects),
		Certifications:     datatypes.JSONSlice[string](req.Qualifications.Certifications),
		Motivation:         req.Motivation,
		AdditionalInfo:     req.AdditionalInfo,
		Status:             models.ApplicationStatusPending,
		ApplicationDate:    s.now().UTC(),
	}

	if err := s.applications.Create(ctx, &application); err != nil {
		if errors.Is(err, repository.ErrPendingApplicationExists) {
			span.SetStatus(codes.Error, "validation failed")
			return dto.UpgradeApplicationResponse{}, ValidationErrors{{Field: "application", Message: "an application is already pending"}}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.Error().Err(err).Uint("tutor_id", tutorID).Msg("failed to create upgrade application")
		return dto.UpgradeApplicationResponse{}, err
	}

	stored, err := s.applications.GetByID(ctx, application.ID)
	if err != nil {
		return dto.UpgradeApplicationResponse{}, err
	}

	observability.WorkflowTransitions().WithLabelValues(EntityUpgradeApplication, string(models.ApplicationStatusPending)).Inc()
	id := stored.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    tutorID,
		ActorRole:  models.RoleTutor,
		Action:     "upgrade_application.submit",
		EntityType: EntityUpgradeApplication,
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"subject_expertise": req.SubjectExpertise,
		},
	})
	s.publish(ctx, Event{
		Type:       EventApplicationSubmitted,
		EntityType: EntityUpgradeApplication,
		EntityID:   stored.ID,
		ActorID:    tutorID,
		Status:     string(stored.Status),
		Message:    fmt.Sprintf("%s submitted an upgrade application", displayName(stored.Tutor)),
	})

	s.logger.Info().Uint("application_id", stored.ID).Uint("tutor_id", tutorID).Msg("upgrade application submitted")

	return dto.NewUpgradeApplicationResponse(stored), nil
}

func (s *upgradeApplicationService) Review(ctx context.Context, id uint, req dto.UpgradeReviewRequest, actor ActivityActor) (dto.UpgradeApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upgrade_application.review")
	defer span.End()
	span.SetAttributes(attribute.Int64("application.id", int64(id)))

	decision, err := validateReviewDecision(s.validator, req)
	if err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.UpgradeApplicationResponse{}, err
	}

	application, err := s.review(ctx, id, decision, actor)
	if err != nil {
		if !IsValidationError(err) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "review failed")
		return dto.UpgradeApplicationResponse{}, err
	}

	return dto.NewUpgradeApplicationResponse(application), nil
}

// reviewDecision is a validated, normalized review request.
type reviewDecision struct {
	status       models.ApplicationStatus
	notes        string
	reason       *models.RejectionReason
	customReason *string
}

// validateReviewDecision normalizes a review request and reports every invalid field.
func validateReviewDecision(validate *validator.Validate, req dto.UpgradeReviewRequest) (reviewDecision, error) {
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	req.ReviewNotes = cleanText(req.ReviewNotes)
	req.CustomRejectionReason = cleanOptionalText(req.CustomRejectionReason)
	if req.RejectionReason != nil {
		reason := strings.ToLower(strings.TrimSpace(*req.RejectionReason))
		req.RejectionReason = &reason
		if reason == "" {
			req.RejectionReason = nil
		}
	}

	var failures ValidationErrors
	if err := validate.Struct(req); err != nil {
		failures = append(failures, validationFailures(err)...)
	}

	decision := reviewDecision{
		status: models.ApplicationStatus(req.Status),
		notes:  req.ReviewNotes,
	}

	if decision.status == models.ApplicationStatusRejected {
		switch {
		case req.RejectionReason == nil:
			failures = append(failures, ValidationError{Field: "rejection_reason", Message: "rejection reason required"})
		case !models.RejectionReason(*req.RejectionReason).Valid():
			failures = append(failures, ValidationError{Field: "rejection_reason", Message: fmt.Sprintf("unknown rejection reason %q", *req.RejectionReason)})
		default:
			reason := models.RejectionReason(*req.RejectionReason)
			decision.reason = &reason
			if reason == models.RejectionOther {
				if req.CustomRejectionReason == nil {
					failures = append(failures, ValidationError{Field: "custom_rejection_reason", Message: "custom rejection reason required"})
				}
				decision.customReason = req.CustomRejectionReason
			}
		}
	}

	if len(failures) > 0 {
		return reviewDecision{}, failures
	}

	return decision, nil
}

// review applies an already validated decision to one application.
func (s *upgradeApplicationService) review(ctx context.Context, id uint, decision reviewDecision, actor ActivityActor) (models.UpgradeApplication, error) {
	current, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UpgradeApplication{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
		}
		return models.UpgradeApplication{}, err
	}

	if current.Status != models.ApplicationStatusPending {
		return models.UpgradeApplication{}, ConflictError{Entity: EntityUpgradeApplication, EntityID: id, CurrentState: string(current.Status)}
	}

	reviewedAt := s.now().UTC()
	updates := map[string]interface{}{
		"status":                  decision.status,
		"reviewed_date":           reviewedAt,
		"reviewed_by":             actor.ID,
		"review_notes":            decision.notes,
		"rejection_reason":        nil,
		"custom_rejection_reason": nil,
	}
	if decision.reason != nil {
		updates["rejection_reason"] = string(*decision.reason)
	}
	if decision.customReason != nil {
		updates["custom_rejection_reason"] = *decision.customReason
	}

	updated, err := s.applications.Transition(ctx, id, models.ApplicationStatusPending, updates)
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return models.UpgradeApplication{}, s.conflict(ctx, id)
		}
		s.logger.Error().Err(err).Uint("application_id", id).Msg("failed to review upgrade application")
		return models.UpgradeApplication{}, err
	}

	if updated.Status == models.ApplicationStatusApproved && s.users != nil {
		if err := s.users.SetAdvanced(ctx, updated.TutorID, true); err != nil {
			s.logger.Warn().Err(err).Uint("tutor_id", updated.TutorID).Msg("failed to promote tutor to advanced tier")
		}
	}

	observability.WorkflowTransitions().WithLabelValues(EntityUpgradeApplication, string(updated.Status)).Inc()

	metadata := map[string]interface{}{
		"status": string(updated.Status),
	}
	if decision.reason != nil {
		metadata["rejection_reason"] = string(*decision.reason)
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "upgrade_application.review",
		EntityType: EntityUpgradeApplication,
		EntityID:   &id,
		Metadata:   metadata,
	})
	s.publish(ctx, Event{
		Type:        EventApplicationReviewed,
		EntityType:  EntityUpgradeApplication,
		EntityID:    id,
		ActorID:     actor.ID,
		RecipientID: updated.TutorID,
		Status:      string(updated.Status),
		Message:     reviewMessage(updated),
	})

	s.logger.Info().
		Uint("application_id", id).
		Str("status", string(updated.Status)).
		Uint("reviewer_id", actor.ID).
		Msg("upgrade application reviewed")

	return updated, nil
}

// conflict reloads the application after a lost compare-and-swap to report its current state.
func (s *upgradeApplicationService) conflict(ctx context.Context, id uint) error {
	latest, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
		}
		return err
	}
	return ConflictError{Entity: EntityUpgradeApplication, EntityID: id, CurrentState: string(latest.Status)}
}

func (s *upgradeApplicationService) Get(ctx context.Context, id uint) (dto.UpgradeApplicationResponse, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UpgradeApplicationResponse{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
		}
		return dto.UpgradeApplicationResponse{}, err
	}
	return dto.NewUpgradeApplicationResponse(application), nil
}

func (s *upgradeApplicationService) GetForTutor(ctx context.Context, id, tutorID uint) (dto.UpgradeApplicationResponse, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UpgradeApplicationResponse{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
		}
		return dto.UpgradeApplicationResponse{}, err
	}
	if application.TutorID != tutorID {
		return dto.UpgradeApplicationResponse{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
	}
	return dto.NewUpgradeApplicationResponse(application), nil
}

func (s *upgradeApplicationService) ListForTutor(ctx context.Context, tutorID uint) ([]dto.UpgradeApplicationResponse, error) {
	applications, err := s.applications.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return dto.NewUpgradeApplicationResponseSlice(applications), nil
}

func (s *upgradeApplicationService) AttachDocument(ctx context.Context, id, tutorID uint, file *multipart.FileHeader) (dto.ApplicationDocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upgrade_application.attach_document")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("application.id", int64(id)),
		attribute.Int64("upload.max_bytes", s.maxUpload),
	)

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		return dto.ApplicationDocumentResponse{}, ValidationError{Field: "file", Message: "is required"}
	}
	if s.storage == nil {
		return dto.ApplicationDocumentResponse{}, errors.New("document storage is not configured")
	}

	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationDocumentResponse{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
		}
		return dto.ApplicationDocumentResponse{}, err
	}
	if application.TutorID != tutorID {
		return dto.ApplicationDocumentResponse{}, NotFoundError{Entity: EntityUpgradeApplication, EntityID: id}
	}
	if application.Status != models.ApplicationStatusPending {
		return dto.ApplicationDocumentResponse{}, ConflictError{Entity: EntityUpgradeApplication, EntityID: id, CurrentState: string(application.Status)}
	}

	if file.Size > s.maxUpload {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.ApplicationDocumentResponse{}, ValidationError{Field: "file", Message: "file exceeds maximum allowed size"}
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.ApplicationDocumentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxUpload+1)); err != nil {
		span.RecordError(err)
		return dto.ApplicationDocumentResponse{}, err
	}
	if int64(buf.Len()) > s.maxUpload {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.ApplicationDocumentResponse{}, ValidationError{Field: "file", Message: "file exceeds maximum allowed size"}
	}

	mime := mimetype.Detect(buf.Bytes())
	fileType := strings.ToLower(strings.TrimSpace(strings.Split(mime.String(), ";")[0]))
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if _, ok := allowedDocumentTypes[fileType]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return dto.ApplicationDocumentResponse{}, ValidationError{Field: "file", Message: "file type not allowed"}
	}

	originalName := filepath.Base(strings.TrimSpace(file.Filename))
	storageName := fmt.Sprintf("upgrade-applications/%d/%d%s", id, s.now().UnixNano(), mime.Extension())

	url, err := s.storage.Upload(ctx, storageName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.logger.Error().Err(err).Uint("application_id", id).Msg("failed to upload application document")
		return dto.ApplicationDocumentResponse{}, err
	}

	document := models.ApplicationDocument{
		ApplicationID: id,
		OriginalName:  originalName,
		URL:           url,
		MimeType:      fileType,
		SizeBytes:     int64(buf.Len()),
	}
	if err := s.documents.Create(ctx, &document); err != nil {
		span.RecordError(err)
		return dto.ApplicationDocumentResponse{}, err
	}

	documentID := document.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    tutorID,
		ActorRole:  models.RoleTutor,
		Action:     "upgrade_application.attach_document",
		EntityType: EntityUpgradeApplication,
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"document_id": documentID,
			"mime_type":   fileType,
		},
	})

	return dto.NewApplicationDocumentResponse(document), nil
}

func (s *upgradeApplicationService) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}

func normalizeSubmitRequest(req dto.UpgradeApplicationSubmitRequest) dto.UpgradeApplicationSubmitRequest {
	req.SubjectExpertise = cleanList(req.SubjectExpertise)
	req.Qualifications.CollegeDegree = cleanText(req.Qualifications.CollegeDegree)
	req.Qualifications.TeachingExperience = cleanText(req.Qualifications.TeachingExperience)
	req.Qualifications.StandardizedTests = cleanList(req.Qualifications.StandardizedTests)
	req.Qualifications.APIBSubjects = cleanList(req.Qualifications.APIBSubjects)
	req.Qualifications.Certifications = cleanList(req.Qualifications.Certifications)
	req.Motivation = cleanText(req.Motivation)
	req.AdditionalInfo = cleanOptionalText(req.AdditionalInfo)
	return req
}

func reviewMessage(application models.UpgradeApplication) string {
	if application.Status == models.ApplicationStatusApproved {
		return "Your application for the advanced tutor tier was approved."
	}
	message := "Your application for the advanced tutor tier was rejected."
	if application.RejectionReason != nil {
		reason := strings.ReplaceAll(string(*application.RejectionReason), "_", " ")
		if *application.RejectionReason == models.RejectionOther && application.CustomRejectionReason != nil {
			reason = *application.CustomRejectionReason
		}
		message = fmt.Sprintf("%s Reason: %s.", message, reason)
	}
	return message
}

func displayName(user models.User) string {
	if name := strings.TrimSpace(user.FullName); name != "" {
		return name
	}
	return fmt.Sprintf("user %d", user.ID)
}
