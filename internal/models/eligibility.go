package models

import "time"

// TutorMetricsSnapshot is a read-only view of a tutor's standing used for upgrade eligibility.
type TutorMetricsSnapshot struct {
	TutorID              uint       `json:"tutor_id"`
	CompletedSessions    int        `json:"completed_sessions"`
	AverageRating        float64    `json:"average_rating"`
	ProfileCompletion    int        `json:"profile_completion"`
	HasActiveApplication bool       `json:"has_active_application"`
	LastRejectionDate    *time.Time `json:"last_rejection_date,omitempty"`
}

// EligibilityRequirements holds the deployment-configurable upgrade thresholds.
type EligibilityRequirements struct {
	RequiredSessions          int
	RequiredRating            float64
	RequiredProfileCompletion int
	ReapplicationCooldown     time.Duration
}

// DefaultEligibilityRequirements returns the thresholds used by the admin review process.
func DefaultEligibilityRequirements() EligibilityRequirements {
	return EligibilityRequirements{
		RequiredSessions:          100,
		RequiredRating:            4.5,
		RequiredProfileCompletion: 90,
		ReapplicationCooldown:     30 * 24 * time.Hour,
	}
}

// EligibilityVerdict is the outcome of evaluating a snapshot against the requirements.
type EligibilityVerdict struct {
	IsEligible          bool       `json:"is_eligible"`
	MissingRequirements []string   `json:"missing_requirements"`
	CanReapply          bool       `json:"can_reapply"`
	ReapplyAfter        *time.Time `json:"reapply_after,omitempty"`
}
