package models

import "time"

// User roles known to the platform.
const (
	RoleStudent   = "student"
	RoleTutor     = "tutor"
	RoleTeacher   = "teacher"
	RoleCounselor = "counselor"
	RoleAdmin     = "admin"
)

// User is a platform account. Tutors and counselors double as assignment providers.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	FullName          string    `gorm:"size:255;not null" json:"full_name"`
	Email             string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role              string    `gorm:"size:32;index;not null" json:"role"`
	Rating            float64   `gorm:"not null;default:0" json:"rating"`
	CompletedSessions int       `gorm:"not null;default:0" json:"completed_sessions"`
	ProfileCompletion int       `gorm:"not null;default:0" json:"profile_completion"`
	Advanced          bool      `gorm:"not null;default:false" json:"advanced"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsProvider reports whether the user can receive assignments.
func (u User) IsProvider() bool {
	return u.Role == RoleTutor || u.Role == RoleCounselor
}
