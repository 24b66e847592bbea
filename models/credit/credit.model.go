package credit

import (
	"time"

	"gorm.io/datatypes"
)

// Request status values.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// Requirement status values.
const (
	RequirementStatusSatisfied = "satisfied"
	RequirementStatusFailed    = "failed"
)

// TimeStampedModel mirrors gorm.Model without soft deletes. Credit rows are
// an audit trail and are never removed.
type TimeStampedModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditProvider is an institution that grants credit for courses.
type CreditProvider struct {
	TimeStampedModel
	ProviderID          string `json:"provider_id" gorm:"uniqueIndex;size:255;not null"`
	DisplayName         string `json:"display_name" gorm:"size:255"`
	ProviderURL         string `json:"provider_url" gorm:"size:255"`
	EligibilityDuration int    `json:"eligibility_duration"` // seconds
	EnableIntegration   bool   `json:"enable_integration"`
	Active              bool   `json:"active"`
}

// CreditCourse marks a course as credit-enabled and lists its providers.
type CreditCourse struct {
	TimeStampedModel
	CourseKey string           `json:"course_key" gorm:"uniqueIndex;size:255;not null"`
	Enabled   bool             `json:"enabled"`
	Providers []CreditProvider `json:"providers" gorm:"many2many:credit_course_providers;"`
}

// CreditRequirement is one condition a learner must satisfy for credit.
// Requirements are deactivated, never deleted.
type CreditRequirement struct {
	TimeStampedModel
	CreditCourseID uint              `json:"-" gorm:"not null;uniqueIndex:idx_credit_requirement"`
	CreditCourse   CreditCourse      `json:"-"`
	Namespace      string            `json:"namespace" gorm:"size:255;not null;uniqueIndex:idx_credit_requirement"`
	Name           string            `json:"name" gorm:"size:255;not null;uniqueIndex:idx_credit_requirement"`
	DisplayName    string            `json:"display_name" gorm:"size:255"`
	Criteria       datatypes.JSONMap `json:"criteria"`
	Active         bool              `json:"active"`
}

// CreditRequirementStatus is an append-only log entry of a user's progress
// against a requirement. The newest row wins.
type CreditRequirementStatus struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	Username      string            `json:"username" gorm:"size:255;not null;index:idx_requirement_status_user"`
	RequirementID uint              `json:"requirement_id" gorm:"not null;index:idx_requirement_status_user"`
	Requirement   CreditRequirement `json:"-"`
	Status        string            `json:"status" gorm:"size:32;not null"`
	Reason        datatypes.JSONMap `json:"reason"`
	CreatedAt     time.Time         `json:"created_at" gorm:"index"`
}

// CreditEligibility records that a user satisfied every requirement of a course.
type CreditEligibility struct {
	TimeStampedModel
	Username       string       `json:"username" gorm:"size:255;not null;uniqueIndex:idx_credit_eligibility"`
	CreditCourseID uint         `json:"-" gorm:"not null;uniqueIndex:idx_credit_eligibility"`
	CreditCourse   CreditCourse `json:"course"`
}

// CreditRequest is a user's request to a provider for credit in a course.
type CreditRequest struct {
	TimeStampedModel
	UUID             string                `json:"uuid" gorm:"column:uuid;uniqueIndex;size:32;not null"`
	Username         string                `json:"username" gorm:"size:255;not null;uniqueIndex:idx_credit_request"`
	CreditCourseID   uint                  `json:"-" gorm:"not null;uniqueIndex:idx_credit_request"`
	CreditCourse     CreditCourse          `json:"-"`
	CreditProviderID uint                  `json:"-" gorm:"not null;uniqueIndex:idx_credit_request"`
	CreditProvider   CreditProvider        `json:"-"`
	Parameters       datatypes.JSONMap     `json:"parameters"`
	Statuses         []CreditRequestStatus `json:"-" gorm:"foreignKey:CreditRequestID"`
}

// CreditRequestStatus is an append-only log entry for a request.
type CreditRequestStatus struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CreditRequestID uint      `json:"-" gorm:"not null;index"`
	Status          string    `json:"status" gorm:"size:32;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}
