package course

import "gorm.io/gorm"

// CourseEnrollment tracks a user's enrollment in a course
type CourseEnrollment struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	CourseID uint   `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	Mode     string `json:"mode" gorm:"size:32;default:'audit'"`
	IsActive bool   `json:"is_active"`
}
