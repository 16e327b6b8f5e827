package dto

import (
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// QualificationsPayload groups the credentials a tutor lists when applying.
type QualificationsPayload struct {
	CollegeDegree      string   `json:"college_degree" validate:"required"`
	TeachingExperience string   `json:"teaching_experience" validate:"required"`
	StandardizedTests  []string `json:"standardized_tests" validate:"omitempty,dive,required"`
	APIBSubjects       []string `json:"ap_ib_subjects" validate:"omitempty,dive,required"`
	Certifications     []string `json:"certifications" validate:"omitempty,dive,required"`
}

// UpgradeApplicationSubmitRequest is the multi-step upgrade form payload.
type UpgradeApplicationSubmitRequest struct {
	SubjectExpertise []string              `json:"subject_expertise" validate:"required,min=1,dive,required"`
	Qualifications   QualificationsPayload `json:"qualifications"`
	Motivation       string                `json:"motivation" validate:"required"`
	AdditionalInfo   *string               `json:"additional_info" validate:"omitempty,max=5000"`
}

// UpgradeReviewRequest is an admin decision on a single application.
type UpgradeReviewRequest struct {
	Status                string  `json:"status" validate:"required,oneof=approved rejected"`
	ReviewNotes           string  `json:"review_notes" validate:"required,max=5000"`
	RejectionReason       *string `json:"rejection_reason"`
	CustomRejectionReason *string `json:"custom_rejection_reason" validate:"omitempty,max=2000"`
}

// UpgradeBulkReviewRequest applies one decision to many applications.
type UpgradeBulkReviewRequest struct {
	ApplicationIDs        []uint  `json:"application_ids"`
	Status                string  `json:"status"`
	ReviewNotes           string  `json:"review_notes"`
	RejectionReason       *string `json:"rejection_reason"`
	CustomRejectionReason *string `json:"custom_rejection_reason"`
}

// Decision extracts the per-application review payload.
func (r UpgradeBulkReviewRequest) Decision() UpgradeReviewRequest {
	return UpgradeReviewRequest{
		Status:                r.Status,
		ReviewNotes:           r.ReviewNotes,
		RejectionReason:       r.RejectionReason,
		CustomRejectionReason: r.CustomRejectionReason,
	}
}

// UpgradeBulkReviewResponse reports every id's outcome of a bulk review.
type UpgradeBulkReviewResponse struct {
	Succeeded []uint          `json:"succeeded"`
	Failed    map[uint]string `json:"failed"`
}

// UpgradeApplicationListRequest holds review queue filters, sort and page.
type UpgradeApplicationListRequest struct {
	Status    string
	Search    string
	StartDate string
	EndDate   string
	SortField string
	SortOrder string
	Page      int
	PageSize  int
}

// QualificationsResponse mirrors QualificationsPayload in responses.
type QualificationsResponse struct {
	CollegeDegree      string   `json:"college_degree"`
	TeachingExperience string   `json:"teaching_experience"`
	StandardizedTests  []string `json:"standardized_tests"`
	APIBSubjects       []string `json:"ap_ib_subjects"`
	Certifications     []string `json:"certifications"`
}

// ApplicationDocumentResponse describes an uploaded supporting file.
type ApplicationDocumentResponse struct {
	ID           uint      `json:"id"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpgradeApplicationResponse is the full serialized application.
type UpgradeApplicationResponse struct {
	ID                    uint                          `json:"id"`
	TutorID               uint                          `json:"tutor_id"`
	TutorName             string                        `json:"tutor_name,omitempty"`
	TutorEmail            string                        `json:"tutor_email,omitempty"`
	SubjectExpertise      []string                      `json:"subject_expertise"`
	Qualifications        QualificationsResponse        `json:"qualifications"`
	Motivation            string                        `json:"motivation"`
	AdditionalInfo        *string                       `json:"additional_info,omitempty"`
	Status                string                        `json:"status"`
	ApplicationDate       time.Time                     `json:"application_date"`
	ReviewedDate          *time.Time                    `json:"reviewed_date,omitempty"`
	ReviewedBy            *uint                         `json:"reviewed_by,omitempty"`
	ReviewNotes           *string                       `json:"review_notes,omitempty"`
	RejectionReason       *string                       `json:"rejection_reason,omitempty"`
	CustomRejectionReason *string                       `json:"custom_rejection_reason,omitempty"`
	Documents             []ApplicationDocumentResponse `json:"documents"`
}

// UpgradeApplicationSummary is the review queue row.
type UpgradeApplicationSummary struct {
	ID               uint       `json:"id"`
	TutorID          uint       `json:"tutor_id"`
	TutorName        string     `json:"tutor_name"`
	TutorEmail       string     `json:"tutor_email"`
	SubjectExpertise []string   `json:"subject_expertise"`
	Status           string     `json:"status"`
	ApplicationDate  time.Time  `json:"application_date"`
	ReviewedDate     *time.Time `json:"reviewed_date,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
}

// UpgradeApplicationListResponse wraps a paginated review queue page.
type UpgradeApplicationListResponse struct {
	Items      []UpgradeApplicationSummary `json:"items"`
	Pagination PaginationMeta              `json:"pagination"`
}

// UpgradeApplicationStats counts applications per status.
type UpgradeApplicationStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
}

// UpgradeApplicationDetailResponse pairs an application with its audit trail.
type UpgradeApplicationDetailResponse struct {
	Application UpgradeApplicationResponse `json:"application"`
	History     []ActivityResponse         `json:"history"`
}

// EligibilityRequirementsResponse exposes the thresholds a tutor is measured against.
type EligibilityRequirementsResponse struct {
	RequiredSessions          int     `json:"required_sessions"`
	RequiredRating            float64 `json:"required_rating"`
	RequiredProfileCompletion int     `json:"required_profile_completion"`
	CooldownDays              int     `json:"cooldown_days"`
}

// EligibilityResponse is returned to tutors checking whether they may apply.
type EligibilityResponse struct {
	IsEligible          bool                            `json:"is_eligible"`
	MissingRequirements []string                        `json:"missing_requirements"`
	CanReapply          bool                            `json:"can_reapply"`
	ReapplyAfter        *time.Time                      `json:"reapply_after,omitempty"`
	Metrics             models.TutorMetricsSnapshot     `json:"metrics"`
	Requirements        EligibilityRequirementsResponse `json:"requirements"`
}

// NewEligibilityResponse combines a verdict with the data that produced it.
func NewEligibilityResponse(verdict models.EligibilityVerdict, snapshot models.TutorMetricsSnapshot, requirements models.EligibilityRequirements) EligibilityResponse {
	missing := verdict.MissingRequirements
	if missing == nil {
		missing = []string{}
	}

	return EligibilityResponse{
		IsEligible:          verdict.IsEligible,
		MissingRequirements: missing,
		CanReapply:          verdict.CanReapply,
		ReapplyAfter:        verdict.ReapplyAfter,
		Metrics:             snapshot,
		Requirements: EligibilityRequirementsResponse{
			RequiredSessions:          requirements.RequiredSessions,
			RequiredRating:            requirements.RequiredRating,
			RequiredProfileCompletion: requirements.RequiredProfileCompletion,
			CooldownDays:              int(requirements.ReapplicationCooldown / (24 * time.Hour)),
		},
	}
}

// NewUpgradeApplicationResponse converts a model into a DTO.
func NewUpgradeApplicationResponse(model models.UpgradeApplication) UpgradeApplicationResponse {
	documents := make([]ApplicationDocumentResponse, 0, len(model.Documents))
	for _, document := range model.Documents {
		documents = append(documents, NewApplicationDocumentResponse(document))
	}

	return UpgradeApplicationResponse{
		ID:               model.ID,
		TutorID:          model.TutorID,
		TutorName:        model.Tutor.FullName,
		TutorEmail:       model.Tutor.Email,
		SubjectExpertise: stringSlice(model.SubjectExpertise),
		Qualifications: QualificationsResponse{
			CollegeDegree:      model.CollegeDegree,
			TeachingExperience: model.TeachingExperience,
			StandardizedTests:  stringSlice(model.StandardizedTests),
			APIBSubjects:       stringSlice(model.APIBSubjects),
			Certifications:     stringSlice(model.Certifications),
		},
		Motivation:            model.Motivation,
		AdditionalInfo:        model.AdditionalInfo,
		Status:                string(model.Status),
		ApplicationDate:       model.ApplicationDate,
		ReviewedDate:          model.ReviewedDate,
		ReviewedBy:            model.ReviewedBy,
		ReviewNotes:           model.ReviewNotes,
		RejectionReason:       rejectionReasonString(model.RejectionReason),
		CustomRejectionReason: model.CustomRejectionReason,
		Documents:             documents,
	}
}

// NewUpgradeApplicationResponseSlice converts many models into DTOs.
func NewUpgradeApplicationResponseSlice(applications []models.UpgradeApplication) []UpgradeApplicationResponse {
	responses := make([]UpgradeApplicationResponse, 0, len(applications))
	for _, application := range applications {
		responses = append(responses, NewUpgradeApplicationResponse(application))
	}
	return responses
}

// NewUpgradeApplicationSummary converts a model into a review queue row.
func NewUpgradeApplicationSummary(model models.UpgradeApplication) UpgradeApplicationSummary {
	return UpgradeApplicationSummary{
		ID:               model.ID,
		TutorID:          model.TutorID,
		TutorName:        model.Tutor.FullName,
		TutorEmail:       model.Tutor.Email,
		SubjectExpertise: stringSlice(model.SubjectExpertise),
		Status:           string(model.Status),
		ApplicationDate:  model.ApplicationDate,
		ReviewedDate:     model.ReviewedDate,
		RejectionReason:  rejectionReasonString(model.RejectionReason),
	}
}

// NewApplicationDocumentResponse converts a document model.
func NewApplicationDocumentResponse(model models.ApplicationDocument) ApplicationDocumentResponse {
	return ApplicationDocumentResponse{
		ID:           model.ID,
		OriginalName: model.OriginalName,
		URL:          model.URL,
		MimeType:     model.MimeType,
		SizeBytes:    model.SizeBytes,
		CreatedAt:    model.CreatedAt,
	}
}

func rejectionReasonString(reason *models.RejectionReason) *string {
	if reason == nil {
		return nil
	}
	value := string(*reason)
	return &value
}

func stringSlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
