package models

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationStatus enumerates the upgrade application states.
type ApplicationStatus string

// Upgrade application states. Every state except pending is terminal.
const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCancelled ApplicationStatus = "cancelled"
)

// IsTerminal reports whether no further review may happen.
func (s ApplicationStatus) IsTerminal() bool {
	return s != ApplicationStatusPending
}

// Valid reports whether the status is a known value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusCancelled:
		return true
	default:
		return false
	}
}

// RejectionReason is the closed taxonomy admins choose from when rejecting.
type RejectionReason string

// Rejection taxonomy.
const (
	RejectionInsufficientExperience     RejectionReason = "insufficient_experience"
	RejectionLowRatings                 RejectionReason = "low_ratings"
	RejectionIncompleteApplication      RejectionReason = "incomplete_application"
	RejectionInsufficientQualifications RejectionReason = "insufficient_qualifications"
	RejectionSubjectMismatch            RejectionReason = "subject_mismatch"
	RejectionPolicyViolation            RejectionReason = "policy_violation"
	RejectionOther                      RejectionReason = "other"
)

// RejectionReasons lists the taxonomy in display order.
var RejectionReasons = []RejectionReason{
	RejectionInsufficientExperience,
	RejectionLowRatings,
	RejectionIncompleteApplication,
	RejectionInsufficientQualifications,
	RejectionSubjectMismatch,
	RejectionPolicyViolation,
	RejectionOther,
}

// Valid reports whether the reason belongs to the taxonomy.
func (r RejectionReason) Valid() bool {
	for _, known := range RejectionReasons {
		if r == known {
			return true
		}
	}
	return false
}

// UpgradeApplication is a tutor's request to be promoted to the advanced tier.
type UpgradeApplication struct {
	ID                    uint                        `gorm:"primaryKey" json:"id"`
	TutorID               uint                        `gorm:"index;not null;uniqueIndex:idx_upgrade_applications_pending_tutor,where:status = 'pending'" json:"tutor_id"`
	Tutor                 User                        `gorm:"foreignKey:TutorID" json:"-"`
	SubjectExpertise      datatypes.JSONSlice[string] `json:"subject_expertise"`
	CollegeDegree         string                      `gorm:"size:255;not null" json:"college_degree"`
	TeachingExperience    string                      `gorm:"type:text;not null" json:"teaching_experience"`
	StandardizedTests     datatypes.JSONSlice[string] `json:"standardized_tests"`
	APIBSubjects          datatypes.JSONSlice[string] `gorm:"column:ap_ib_subjects" json:"ap_ib_subjects"`
	Certifications        datatypes.JSONSlice[string] `json:"certifications"`
	Motivation            string                      `gorm:"type:text;not null" json:"motivation"`
	AdditionalInfo        *string                     `gorm:"type:text" json:"additional_info,omitempty"`
	Status                ApplicationStatus           `gorm:"size:16;index;not null;default:pending" json:"status"`
	ApplicationDate       time.Time                   `gorm:"index;not null" json:"application_date"`
	ReviewedDate          *time.Time                  `json:"reviewed_date,omitempty"`
	ReviewedBy            *uint                       `json:"reviewed_by,omitempty"`
	ReviewNotes           *string                     `gorm:"type:text" json:"review_notes,omitempty"`
	RejectionReason       *RejectionReason            `gorm:"size:64" json:"rejection_reason,omitempty"`
	CustomRejectionReason *string                     `gorm:"type:text" json:"custom_rejection_reason,omitempty"`
	Documents             []ApplicationDocument       `gorm:"foreignKey:ApplicationID" json:"documents,omitempty"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

// TableName pins the table name.
func (UpgradeApplication) TableName() string {
	return "upgrade_applications"
}

// ApplicationDocument is a supporting file attached to an upgrade application.
type ApplicationDocument struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"index;not null" json:"application_id"`
	OriginalName  string    `gorm:"size:255" json:"original_name"`
	URL           string    `gorm:"size:512;not null" json:"url"`
	MimeType      string    `gorm:"size:128" json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName pins the table name.
func (ApplicationDocument) TableName() string {
	return "upgrade_application_documents"
}
