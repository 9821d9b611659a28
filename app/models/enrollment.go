package models

import "time"

// Enrollment grants a user access to a course. There is at most one row per
// (user_id, course_id); the unique index is the only concurrency control.
type Enrollment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;index:ux_enrollments_user_course,unique,priority:1" json:"user_id"`
	CourseID           uint      `gorm:"not null;index:ux_enrollments_user_course,unique,priority:2;index" json:"course_id"`
	EnrolledAt         time.Time `gorm:"not null" json:"enrolled_at"`
	ProgressPercentage int       `gorm:"not null;default:0" json:"progress_percentage"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
