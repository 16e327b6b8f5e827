package models

import "time"

// StudentReferral is a student routed by a teacher into the assignment pipeline.
type StudentReferral struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TeacherID   uint      `gorm:"index;not null" json:"teacher_id"`
	StudentName string    `gorm:"size:255;not null" json:"student_name"`
	GradeLevel  string    `gorm:"size:32" json:"grade_level"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
