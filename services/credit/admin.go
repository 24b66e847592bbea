package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	creditModels "lms/models/credit"
)

// EnableCreditCourse creates or toggles the credit course row for a course.
func (s *Service) EnableCreditCourse(ctx context.Context, courseKey string, enabled bool) (*creditModels.CreditCourse, error) {
	cc := creditModels.CreditCourse{CourseKey: courseKey, Enabled: enabled}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(&cc).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Providers").Where("course_key = ?", courseKey).First(&cc).Error; err != nil {
		return nil, err
	}
	return &cc, nil
}

// ProviderInput describes a credit provider to create or update.
type ProviderInput struct {
	ProviderID          string `json:"provider_id" validate:"required,max=255"`
	DisplayName         string `json:"display_name" validate:"required,max=255"`
	ProviderURL         string `json:"provider_url" validate:"required,url,max=255"`
	EligibilityDuration int    `json:"eligibility_duration" validate:"gte=0"`
	EnableIntegration   bool   `json:"enable_integration"`
	Active              *bool  `json:"active"`
}

func (s *Service) UpsertCreditProvider(ctx context.Context, in ProviderInput) (*creditModels.CreditProvider, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p := creditModels.CreditProvider{
		ProviderID:          in.ProviderID,
		DisplayName:         in.DisplayName,
		ProviderURL:         in.ProviderURL,
		EligibilityDuration: in.EligibilityDuration,
		EnableIntegration:   in.EnableIntegration,
		Active:              active,
	}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "provider_url", "eligibility_duration", "enable_integration", "active", "updated_at",
		}),
	}).Create(&p).Error; err != nil {
		return nil, err
	}
	if err := db.Where("provider_id = ?", in.ProviderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProviderToCourse offers a provider in a credit course.
func (s *Service) AddProviderToCourse(ctx context.Context, courseKey, providerID string) error {
	db := s.db.WithContext(ctx)

	var cc creditModels.CreditCourse
	err := db.Where("course_key = ?", courseKey).First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidCreditCourse
	}
	if err != nil {
		return err
	}

	var p creditModels.CreditProvider
	err = db.Where("provider_id = ?", providerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrCreditProviderNotFound, providerID)
	}
	if err != nil {
		return err
	}

	return db.Model(&cc).Association("Providers").Append(&p)
}

// DashboardStats summarizes credit activity for the admin dashboard.
type DashboardStats struct {
	CreditCourses    int64 `json:"credit_courses"`
	Providers        int64 `json:"providers"`
	Eligibilities    int64 `json:"eligibilities"`
	Requests         int64 `json:"requests"`
	RequestsToday    int64 `json:"requests_today"`
	PendingDecisions int64 `json:"pending_decisions"`
}

func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{}

	if err := db.Model(&creditModels.CreditCourse{}).Where("enabled = ?", true).Count(&stats.CreditCourses).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&creditModels.CreditProvider{}).Where("active = ?", true).Count(&stats.Providers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&creditModels.CreditEligibility{}).Count(&stats.Eligibilities).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&creditModels.CreditRequest{}).Count(&stats.Requests).Error; err != nil {
		return nil, err
	}

	startOfDay := now.With(s.now()).BeginningOfDay()
	if err := db.Model(&creditModels.CreditRequest{}).
		Where("created_at >= ?", startOfDay).
		Count(&stats.RequestsToday).Error; err != nil {
		return nil, err
	}

	// Requests whose newest status row, by (created_at, id), is pending.
	if err := db.Table("credit_request_statuses AS s").
		Where("s.status = ?", creditModels.RequestStatusPending).
		Where(`NOT EXISTS (SELECT 1 FROM credit_request_statuses n
			WHERE n.credit_request_id = s.credit_request_id
			AND (n.created_at > s.created_at OR (n.created_at = s.created_at AND n.id > s.id)))`).
		Count(&stats.PendingDecisions).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
