package dto

import (
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const dateLayout = "2006-01-02"

// TutorAssignmentCreateRequest describes the payload a teacher sends to assign a referral to a provider.
type TutorAssignmentCreateRequest struct {
	StudentReferralID      uint     `json:"student_referral_id" validate:"required"`
	ProviderID             uint     `json:"provider_id" validate:"required"`
	AssignmentType         string   `json:"assignment_type" validate:"required,oneof=tutoring counseling"`
	Subjects               []string `json:"subjects" validate:"required,min=1,dive,required"`
	Goals                  string   `json:"goals" validate:"max=5000"`
	SpecialInstructions    *string  `json:"special_instructions" validate:"omitempty,max=5000"`
	Frequency              string   `json:"frequency" validate:"required,oneof=daily weekly bi-weekly monthly"`
	SessionDurationMinutes int      `json:"session_duration_minutes" validate:"required,min=30,max=180"`
	StartDate              string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate                string   `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// ParseDates returns the start and end dates in UTC.
func (r TutorAssignmentCreateRequest) ParseDates() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// TutorAssignmentDeclineRequest carries the provider's reason for declining.
type TutorAssignmentDeclineRequest struct {
	Reason string `json:"reason"`
}

// TutorAssignmentStatusRequest updates the progress of an accepted assignment.
type TutorAssignmentStatusRequest struct {
	CurrentStatus string  `json:"current_status" validate:"required,oneof=active on_hold completed cancelled"`
	Notes         *string `json:"notes" validate:"omitempty,max=5000"`
}

// TutorAssignmentResponse is the serialized assignment.
type TutorAssignmentResponse struct {
	ID                     uint       `json:"id"`
	TeacherID              uint       `json:"teacher_id"`
	StudentReferralID      uint       `json:"student_referral_id"`
	StudentName            string     `json:"student_name,omitempty"`
	ProviderID             uint       `json:"provider_id"`
	ProviderName           string     `json:"provider_name,omitempty"`
	AssignmentType         string     `json:"assignment_type"`
	Subjects               []string   `json:"subjects"`
	Goals                  string     `json:"goals"`
	SpecialInstructions    *string    `json:"special_instructions,omitempty"`
	Frequency              string     `json:"frequency"`
	SessionDurationMinutes int        `json:"session_duration_minutes"`
	StartDate              string     `json:"start_date"`
	EndDate                string     `json:"end_date"`
	Status                 string     `json:"status"`
	CurrentStatus          *string    `json:"current_status,omitempty"`
	AssignedAt             time.Time  `json:"assigned_at"`
	AcceptedAt             *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt             *time.Time `json:"declined_at,omitempty"`
	DeclineReason          *string    `json:"decline_reason,omitempty"`
	StatusNotes            *string    `json:"status_notes,omitempty"`
}

// ProviderResponse is an entry of the provider directory.
type ProviderResponse struct {
	ID       uint    `json:"id"`
	Role     string  `json:"role"`
	FullName string  `json:"full_name"`
	Rating   float64 `json:"rating"`
	Advanced bool    `json:"advanced"`
}

// NewTutorAssignmentResponse converts a model into a DTO.
func NewTutorAssignmentResponse(model models.TutorAssignment) TutorAssignmentResponse {
	var currentStatus *string
	if model.CurrentStatus != nil {
		value := string(*model.CurrentStatus)
		currentStatus = &value
	}

	return TutorAssignmentResponse{
		ID:                     model.ID,
		TeacherID:              model.TeacherID,
		StudentReferralID:      model.StudentReferralID,
		StudentName:            model.StudentReferral.StudentName,
		ProviderID:             model.ProviderID,
		ProviderName:           model.Provider.FullName,
		AssignmentType:         string(model.AssignmentType),
		Subjects:               stringSlice(model.Subjects),
		Goals:                  model.Goals,
		SpecialInstructions:    model.SpecialInstructions,
		Frequency:              model.Frequency,
		SessionDurationMinutes: model.SessionDurationMinutes,
		StartDate:              model.StartDate.Format(dateLayout),
		EndDate:                model.EndDate.Format(dateLayout),
		Status:                 string(model.Status),
		CurrentStatus:          currentStatus,
		AssignedAt:             model.AssignedAt,
		AcceptedAt:             model.AcceptedAt,
		DeclinedAt:             model.DeclinedAt,
		DeclineReason:          model.DeclineReason,
		StatusNotes:            model.StatusNotes,
	}
}

// NewTutorAssignmentResponseSlice converts a slice of models into DTOs.
func NewTutorAssignmentResponseSlice(assignments []models.TutorAssignment) []TutorAssignmentResponse {
	responses := make([]TutorAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewTutorAssignmentResponse(assignment))
	}

	return responses
}

// NewProviderResponse converts a user into a directory entry.
func NewProviderResponse(user models.User) ProviderResponse {
	return ProviderResponse{
		ID:       user.ID,
		Role:     user.Role,
		FullName: user.FullName,
		Rating:   user.Rating,
		Advanced: user.Advanced,
	}
}
