package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentType distinguishes tutoring from counseling engagements.
type AssignmentType string

// Assignment types.
const (
	AssignmentTypeTutoring   AssignmentType = "tutoring"
	AssignmentTypeCounseling AssignmentType = "counseling"
)

// ProviderRole returns the user role that may serve the assignment type.
func (t AssignmentType) ProviderRole() string {
	switch t {
	case AssignmentTypeTutoring:
		return RoleTutor
	case AssignmentTypeCounseling:
		return RoleCounselor
	default:
		return ""
	}
}

// AssignmentStatus is the provider's response to an assignment.
type AssignmentStatus string

// Assignment response states.
const (
	AssignmentStatusPending  AssignmentStatus = "pending"
	AssignmentStatusAccepted AssignmentStatus = "accepted"
	AssignmentStatusDeclined AssignmentStatus = "declined"
)

// AssignmentProgress tracks an accepted assignment.
type AssignmentProgress string

// Progress states of an accepted assignment.
const (
	AssignmentProgressActive    AssignmentProgress = "active"
	AssignmentProgressOnHold    AssignmentProgress = "on_hold"
	AssignmentProgressCompleted AssignmentProgress = "completed"
	AssignmentProgressCancelled AssignmentProgress = "cancelled"
)

// Session frequencies.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiWeekly = "bi-weekly"
	FrequencyMonthly  = "monthly"
)

// Session duration bounds in minutes.
const (
	MinSessionDurationMinutes = 30
	MaxSessionDurationMinutes = 180
)

// TutorAssignment binds one student referral to one provider.
type TutorAssignment struct {
	ID                     uint                        `gorm:"primaryKey" json:"id"`
	TeacherID              uint                        `gorm:"index;not null" json:"teacher_id"`
	StudentReferralID      uint                        `gorm:"index;not null" json:"student_referral_id"`
	StudentReferral        StudentReferral             `gorm:"foreignKey:StudentReferralID" json:"-"`
	ProviderID             uint                        `gorm:"index;not null" json:"provider_id"`
	Provider               User                        `gorm:"foreignKey:ProviderID" json:"-"`
	AssignmentType         AssignmentType              `gorm:"size:16;not null" json:"assignment_type"`
	Subjects               datatypes.JSONSlice[string] `json:"subjects"`
	Goals                  string                      `gorm:"type:text" json:"goals"`
	SpecialInstructions    *string                     `gorm:"type:text" json:"special_instructions,omitempty"`
	Frequency              string                      `gorm:"size:16;not null" json:"frequency"`
	SessionDurationMinutes int                         `gorm:"not null" json:"session_duration_minutes"`
	StartDate              time.Time                   `gorm:"not null" json:"start_date"`
	EndDate                time.Time                   `gorm:"not null" json:"end_date"`
	Status                 AssignmentStatus            `gorm:"size:16;index;not null;default:pending" json:"status"`
	CurrentStatus          *AssignmentProgress         `gorm:"size:16" json:"current_status,omitempty"`
	AssignedAt             time.Time                   `gorm:"not null" json:"assigned_at"`
	AcceptedAt             *time.Time                  `json:"accepted_at,omitempty"`
	DeclinedAt             *time.Time                  `json:"declined_at,omitempty"`
	DeclineReason          *string                     `gorm:"type:text" json:"decline_reason,omitempty"`
	StatusNotes            *string                     `gorm:"type:text" json:"status_notes,omitempty"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

// TableName pins the table name.
func (TutorAssignment) TableName() string {
	return "tutor_assignments"
}
