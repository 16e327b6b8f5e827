package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const reapplyDateLayout = "2006-01-02"

// EvaluateEligibility checks a tutor snapshot against the upgrade requirements.
// Every check runs so the tutor sees all gaps at once; the order of the
// messages is sessions, rating, profile completion, cooldown. Snapshots with
// out-of-range values are the caller's responsibility.
func EvaluateEligibility(snapshot models.TutorMetricsSnapshot, requirements models.EligibilityRequirements, now time.Time) models.EligibilityVerdict {
	missing := make([]string, 0, 4)

	if snapshot.CompletedSessions < requirements.RequiredSessions {
		missing = append(missing, fmt.Sprintf("Complete %d more sessions", requirements.RequiredSessions-snapshot.CompletedSessions))
	}

	if snapshot.AverageRating < requirements.RequiredRating {
		missing = append(missing, fmt.Sprintf("Achieve average rating of %s", formatRating(requirements.RequiredRating)))
	}

	if snapshot.ProfileCompletion < requirements.RequiredProfileCompletion {
		missing = append(missing, fmt.Sprintf("Complete profile to %d%% (current: %d%%)", requirements.RequiredProfileCompletion, snapshot.ProfileCompletion))
	}

	verdict := models.EligibilityVerdict{CanReapply: true}
	if snapshot.LastRejectionDate != nil {
		reapplyAfter := snapshot.LastRejectionDate.Add(requirements.ReapplicationCooldown)
		if now.Before(reapplyAfter) {
			missing = append(missing, fmt.Sprintf("Can reapply after %s", reapplyAfter.UTC().Format(reapplyDateLayout)))
			verdict.CanReapply = false
			verdict.ReapplyAfter = &reapplyAfter
		}
	}

	verdict.MissingRequirements = missing
	verdict.IsEligible = len(missing) == 0 && !snapshot.HasActiveApplication

	return verdict
}

// formatRating renders thresholds like 4 as "4.0" and 4.25 as "4.25".
func formatRating(value float64) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if value == float64(int64(value)) {
		formatted = strconv.FormatFloat(value, 'f', 1, 64)
	}
	return formatted
}
