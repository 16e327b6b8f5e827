package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/observability"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

// TutorAssignmentService runs the teacher to provider assignment lifecycle.
type TutorAssignmentService interface {
	Create(ctx context.Context, teacherID uint, req dto.TutorAssignmentCreateRequest) (dto.TutorAssignmentResponse, error)
	Accept(ctx context.Context, id, providerID uint) (dto.TutorAssignmentResponse, error)
	Decline(ctx context.Context, id, providerID uint, req dto.TutorAssignmentDeclineRequest) (dto.TutorAssignmentResponse, error)
	UpdateStatus(ctx context.Context, id, providerID uint, req dto.TutorAssignmentStatusRequest) (dto.TutorAssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.TutorAssignmentResponse, error)
	ListForProvider(ctx context.Context, providerID uint) ([]dto.TutorAssignmentResponse, error)
	ListForTeacher(ctx context.Context, teacherID uint) ([]dto.TutorAssignmentResponse, error)
	ListProviders(ctx context.Context, role string) ([]dto.ProviderResponse, error)
}

type tutorAssignmentService struct {
	assignments repository.TutorAssignmentRepository
	referrals   repository.StudentReferralRepository
	providers   repository.ProviderDirectory
	activity    ActivityRecorder
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewTutorAssignmentService constructs the assignment workflow.
func NewTutorAssignmentService(assignments repository.TutorAssignmentRepository, referrals repository.StudentReferralRepository, providers repository.ProviderDirectory, activity ActivityRecorder, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) TutorAssignmentService {
	if validate == nil {
		validate = NewValidator()
	}
	return &tutorAssignmentService{
		assignments: assignments,
		referrals:   referrals,
		providers:   providers,
		activity:    activity,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "tutor_assignment_service").Logger(),
		now:         time.Now,
		tracer:      otel.Tracer("github.com/noah-isme/tutorhub-api/internal/service/tutor_assignment"),
	}
}

func (s *tutorAssignmentService) Create(ctx context.Context, teacherID uint, req dto.TutorAssignmentCreateRequest) (dto.TutorAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("teacher.id", int64(teacherID)))

	req.AssignmentType = strings.ToLower(strings.TrimSpace(req.AssignmentType))
	req.Frequency = strings.ToLower(strings.TrimSpace(req.Frequency))
	req.Subjects = cleanList(req.Subjects)
	req.Goals = cleanText(req.Goals)
	req.SpecialInstructions = cleanOptionalText(req.SpecialInstructions)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)

	var failures ValidationErrors
	if err := s.validator.Struct(req); err != nil {
		failures = append(failures, validationFailures(err)...)
	}

	var start, end time.Time
	if !failures.Has("start_date") && !failures.Has("end_date") {
		var err error
		start, end, err = req.ParseDates()
		if err != nil {
			failures = append(failures, ValidationError{Field: "start_date", Message: err.Error()})
		} else if !start.Before(end) {
			failures = append(failures, ValidationError{Field: "end_date", Message: "must be after start_date"})
		}
	}

	if len(failures) > 0 {
		return dto.TutorAssignmentResponse{}, failures
	}

	referral, err := s.referrals.GetByID(ctx, req.StudentReferralID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TutorAssignmentResponse{}, NotFoundError{Entity: EntityStudentReferral, EntityID: req.StudentReferralID}
		}
		return dto.TutorAssignmentResponse{}, err
	}
	if referral.TeacherID != teacherID {
		return dto.TutorAssignmentResponse{}, NotFoundError{Entity: EntityStudentReferral, EntityID: req.StudentReferralID}
	}

	provider, err := s.providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TutorAssignmentResponse{}, NotFoundError{Entity: EntityProvider, EntityID: req.ProviderID}
		}
		return dto.TutorAssignmentResponse{}, err
	}

	assignmentType := models.AssignmentType(req.AssignmentType)
	if provider.Role != assignmentType.ProviderRole() {
		return dto.TutorAssignmentResponse{}, ValidationError{Field: "provider_id", Message: "role mismatch"}
	}

	assignment := models.TutorAssignment{
		TeacherID:              teacherID,
		StudentReferralID:      referral.ID,
		ProviderID:             provider.ID,
		AssignmentType:         assignmentType,
		Subjects:               datatypes.JSONSlice[string](req.Subjects),
		Goals:                  req.Goals,
		SpecialInstructions:    req.SpecialInstructions,
		Frequency:              req.Frequency,
		SessionDurationMinutes: req.SessionDurationMinutes,
		StartDate:              start,
		EndDate:                end,
		Status:                 models.AssignmentStatusPending,
		AssignedAt:             s.now().UTC(),
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Uint("teacher_id", teacherID).Msg("failed to create assignment")
		return dto.TutorAssignmentResponse{}, err
	}

	stored, err := s.assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}

	s.afterTransition(ctx, stored, ActivityActor{ID: teacherID, Role: models.RoleTeacher}, "assignment.create", EventAssignmentCreated, provider.ID,
		fmt.Sprintf("%s was assigned to you for %s.", stored.StudentReferral.StudentName, stored.AssignmentType), nil)

	return dto.NewTutorAssignmentResponse(stored), nil
}

func (s *tutorAssignmentService) Accept(ctx context.Context, id, providerID uint) (dto.TutorAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.accept")
	defer span.End()

	current, err := s.loadForProvider(ctx, id, providerID)
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}
	if current.Status != models.AssignmentStatusPending {
		return dto.TutorAssignmentResponse{}, ConflictError{Entity: EntityAssignment, EntityID: id, CurrentState: string(current.Status)}
	}

	updated, err := s.transition(ctx, id, models.AssignmentStatusPending, map[string]interface{}{
		"status":      models.AssignmentStatusAccepted,
		"accepted_at": s.now().UTC(),
	})
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}

	s.afterTransition(ctx, updated, ActivityActor{ID: providerID, Role: updated.Provider.Role}, "assignment.accept", EventAssignmentAccepted, updated.TeacherID,
		fmt.Sprintf("%s accepted the assignment for %s.", displayName(updated.Provider), updated.StudentReferral.StudentName), nil)

	return dto.NewTutorAssignmentResponse(updated), nil
}

func (s *tutorAssignmentService) Decline(ctx context.Context, id, providerID uint, req dto.TutorAssignmentDeclineRequest) (dto.TutorAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.decline")
	defer span.End()

	reason := cleanText(req.Reason)
	if reason == "" {
		return dto.TutorAssignmentResponse{}, ValidationError{Field: "reason", Message: "decline reason required"}
	}

	current, err := s.loadForProvider(ctx, id, providerID)
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}
	if current.Status != models.AssignmentStatusPending {
		return dto.TutorAssignmentResponse{}, ConflictError{Entity: EntityAssignment, EntityID: id, CurrentState: string(current.Status)}
	}

	updated, err := s.transition(ctx, id, models.AssignmentStatusPending, map[string]interface{}{
		"status":         models.AssignmentStatusDeclined,
		"declined_at":    s.now().UTC(),
		"decline_reason": reason,
	})
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}

	s.afterTransition(ctx, updated, ActivityActor{ID: providerID, Role: updated.Provider.Role}, "assignment.decline", EventAssignmentDeclined, updated.TeacherID,
		fmt.Sprintf("%s declined the assignment for %s: %s", displayName(updated.Provider), updated.StudentReferral.StudentName, reason),
		map[string]interface{}{"reason": reason})

	return dto.NewTutorAssignmentResponse(updated), nil
}

func (s *tutorAssignmentService) UpdateStatus(ctx context.Context, id, providerID uint, req dto.TutorAssignmentStatusRequest) (dto.TutorAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.update_status")
	defer span.End()

	req.CurrentStatus = strings.ToLower(strings.TrimSpace(req.CurrentStatus))
	req.Notes = cleanOptionalText(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return dto.TutorAssignmentResponse{}, validationFailures(err)
	}

	current, err := s.loadForProvider(ctx, id, providerID)
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}
	if current.Status != models.AssignmentStatusAccepted {
		return dto.TutorAssignmentResponse{}, ConflictError{Entity: EntityAssignment, EntityID: id, CurrentState: string(current.Status)}
	}

	progress := models.AssignmentProgress(req.CurrentStatus)
	updates := map[string]interface{}{
		"current_status": progress,
	}
	if req.Notes != nil {
		updates["status_notes"] = *req.Notes
	}

	updated, err := s.transition(ctx, id, models.AssignmentStatusAccepted, updates)
	if err != nil {
		return dto.TutorAssignmentResponse{}, err
	}

	metadata := map[string]interface{}{"current_status": string(progress)}
	if current.CurrentStatus != nil {
		metadata["previous_status"] = string(*current.CurrentStatus)
	}
	s.afterTransition(ctx, updated, ActivityActor{ID: providerID, Role: updated.Provider.Role}, "assignment.update_status", EventAssignmentStatusUpdated, updated.TeacherID,
		fmt.Sprintf("Assignment for %s is now %s.", updated.StudentReferral.StudentName, strings.ReplaceAll(string(progress), "_", " ")),
		metadata)

	return dto.NewTutorAssignmentResponse(updated), nil
}

func (s *tutorAssignmentService) Get(ctx context.Context, id uint) (dto.TutorAssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TutorAssignmentResponse{}, NotFoundError{Entity: EntityAssignment, EntityID: id}
		}
		return dto.TutorAssignmentResponse{}, err
	}
	return dto.NewTutorAssignmentResponse(assignment), nil
}

func (s *tutorAssignmentService) ListForProvider(ctx context.Context, providerID uint) ([]dto.TutorAssignmentResponse, error) {
	assignments, err := s.assignments.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return dto.NewTutorAssignmentResponseSlice(assignments), nil
}

func (s *tutorAssignmentService) ListForTeacher(ctx context.Context, teacherID uint) ([]dto.TutorAssignmentResponse, error) {
	assignments, err := s.assignments.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return dto.NewTutorAssignmentResponseSlice(assignments), nil
}

func (s *tutorAssignmentService) ListProviders(ctx context.Context, role string) ([]dto.ProviderResponse, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case "", models.RoleTutor, models.RoleCounselor:
	default:
		return nil, ValidationError{Field: "role", Message: "must be one of [tutor counselor]"}
	}

	providers, err := s.providers.ListProviders(ctx, role)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ProviderResponse, 0, len(providers))
	for _, provider := range providers {
		responses = append(responses, dto.NewProviderResponse(provider))
	}
	return responses, nil
}

// loadForProvider hides assignments addressed to other providers.
func (s *tutorAssignmentService) loadForProvider(ctx context.Context, id, providerID uint) (models.TutorAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TutorAssignment{}, NotFoundError{Entity: EntityAssignment, EntityID: id}
		}
		return models.TutorAssignment{}, err
	}
	if assignment.ProviderID != providerID {
		return models.TutorAssignment{}, NotFoundError{Entity: EntityAssignment, EntityID: id}
	}
	return assignment, nil
}

func (s *tutorAssignmentService) transition(ctx context.Context, id uint, from models.AssignmentStatus, updates map[string]interface{}) (models.TutorAssignment, error) {
	updated, err := s.assignments.Transition(ctx, id, from, updates)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, repository.ErrStaleTransition) {
		s.logger.Error().Err(err).Uint("assignment_id", id).Msg("failed to transition assignment")
		return models.TutorAssignment{}, err
	}

	latest, loadErr := s.assignments.GetByID(ctx, id)
	if loadErr != nil {
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return models.TutorAssignment{}, NotFoundError{Entity: EntityAssignment, EntityID: id}
		}
		return models.TutorAssignment{}, loadErr
	}
	return models.TutorAssignment{}, ConflictError{Entity: EntityAssignment, EntityID: id, CurrentState: string(latest.Status)}
}

func (s *tutorAssignmentService) afterTransition(ctx context.Context, assignment models.TutorAssignment, actor ActivityActor, action, eventType string, recipientID uint, message string, metadata map[string]interface{}) {
	status := string(assignment.Status)
	if eventType == EventAssignmentStatusUpdated && assignment.CurrentStatus != nil {
		status = string(*assignment.CurrentStatus)
	}
	observability.WorkflowTransitions().WithLabelValues(EntityAssignment, status).Inc()

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["status"] = string(assignment.Status)

	id := assignment.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: EntityAssignment,
		EntityID:   &id,
		Metadata:   metadata,
	})

	if s.events != nil {
		s.events.Publish(ctx, Event{
			Type:        eventType,
			EntityType:  EntityAssignment,
			EntityID:    assignment.ID,
			ActorID:     actor.ID,
			RecipientID: recipientID,
			Status:      status,
			Message:     message,
		})
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Str("action", action).
		Str("status", status).
		Msg("assignment transitioned")
}
