package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of workflow transitions (submissions, reviews, assignment responses).
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"index;not null" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;index;not null" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      *uint             `gorm:"index" json:"entity_id"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Migratable lists every persisted model in dependency order.
func Migratable() []interface{} {
	return []interface{}{
		&User{},
		&StudentReferral{},
		&UpgradeApplication{},
		&ApplicationDocument{},
		&TutorAssignment{},
		&ActivityLog{},
	}
}
