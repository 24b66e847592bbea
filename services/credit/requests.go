package credit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/coursekey"
	"lms/logger"
	"lms/models"
	creditModels "lms/models/credit"
)

const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// RequestDescriptor is what the learner's browser posts to the provider.
type RequestDescriptor struct {
	Provider   creditModels.CreditProvider
	Parameters map[string]interface{}
}

// CreateCreditRequest gets or creates the user's request to a provider and
// appends a pending status. A pending request keeps its token and gets a
// fresh parameter snapshot; a completed one cannot be requested again.
func (s *Service) CreateCreditRequest(ctx context.Context, key coursekey.Key, providerID, username string) (*RequestDescriptor, error) {
	db := s.db.WithContext(ctx)

	var provider creditModels.CreditProvider
	err := db.Where("provider_id = ? AND active = ?", providerID, true).First(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCreditProviderNotFound, providerID)
	}
	if err != nil {
		return nil, err
	}

	cc, err := s.creditCourse(db, key.String(), key.Alternate())
	if err != nil {
		return nil, err
	}
	providers := db.Model(cc).Where("credit_providers.id = ?", provider.ID).Association("Providers")
	offered := providers.Count()
	if providers.Error != nil {
		return nil, providers.Error
	}
	if offered == 0 {
		return nil, ErrCreditProviderNotConfigured
	}

	var eligibility creditModels.CreditEligibility
	err = db.Where("username = ? AND credit_course_id = ?", username, cc.ID).First(&eligibility).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserIsNotEligible
	}
	if err != nil {
		return nil, err
	}

	finalGrade, err := s.finalGrade(db, username, cc.ID)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = db.Preload("Profile").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserIsNotEligible
	}
	if err != nil {
		return nil, err
	}

	var params map[string]interface{}
	err = db.Transaction(func(tx *gorm.DB) error {
		candidate := creditModels.CreditRequest{
			UUID:             s.newToken(),
			Username:         username,
			CreditCourseID:   cc.ID,
			CreditProviderID: provider.ID,
			Parameters:       datatypes.JSONMap{},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
			return err
		}

		var req creditModels.CreditRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ? AND credit_course_id = ? AND credit_provider_id = ?", username, cc.ID, provider.ID).
			First(&req).Error; err != nil {
			return err
		}

		if req.UUID != candidate.UUID {
			current, err := currentStatus(tx, req.ID)
			if err != nil {
				return err
			}
			if current != creditModels.RequestStatusPending {
				return ErrRequestAlreadyCompleted
			}
		}

		params = requestParameters(req.UUID, s.now().UTC().Format(timestampLayout), key, finalGrade, &user)
		if err := tx.Model(&req).Update("parameters", datatypes.JSONMap(params)).Error; err != nil {
			return err
		}
		return tx.Create(&creditModels.CreditRequestStatus{
			CreditRequestID: req.ID,
			Status:          creditModels.RequestStatusPending,
			CreatedAt:       s.now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infow("credit request created",
		"username", username, "course_key", key.String(), "provider_id", providerID, "request_uuid", params["request_uuid"])
	return &RequestDescriptor{Provider: provider, Parameters: params}, nil
}

func requestParameters(token, timestamp string, key coursekey.Key, finalGrade interface{}, user *models.User) map[string]interface{} {
	mailing := ""
	if user.Profile.MailingAddress != nil {
		mailing = *user.Profile.MailingAddress
	}
	return map[string]interface{}{
		"request_uuid":         token,
		"timestamp":            timestamp,
		"course_org":           key.Org,
		"course_num":           key.Course,
		"course_run":           key.Run,
		"final_grade":          finalGrade,
		"user_username":        user.Username,
		"user_email":           user.Email,
		"user_full_name":       user.Profile.Name,
		"user_mailing_address": mailing,
		"user_country":         user.Profile.Country,
	}
}

// finalGrade reads final_grade from the latest satisfied grade status.
func (s *Service) finalGrade(db *gorm.DB, username string, creditCourseID uint) (interface{}, error) {
	var st creditModels.CreditRequirementStatus
	err := db.
		Joins("JOIN credit_requirements ON credit_requirements.id = credit_requirement_statuses.requirement_id").
		Where("credit_requirement_statuses.username = ? AND credit_requirements.credit_course_id = ?", username, creditCourseID).
		Where("credit_requirements.namespace = ? AND credit_requirements.name = ?", "grade", "grade").
		Where("credit_requirement_statuses.status = ?", creditModels.RequirementStatusSatisfied).
		Order("credit_requirement_statuses.created_at desc, credit_requirement_statuses.id desc").
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Log.Warnw("no satisfied grade status for credit request", "username", username)
		return nil, ErrUserIsNotEligible
	}
	if err != nil {
		return nil, err
	}
	grade, ok := normalize(st.Reason)["final_grade"]
	if !ok {
		logger.Log.Warnw("grade status has no final_grade", "username", username, "status_id", st.ID)
		return nil, ErrUserIsNotEligible
	}
	return grade, nil
}

// currentStatus is the newest status row, pending when there is none.
func currentStatus(tx *gorm.DB, requestID uint) (string, error) {
	var st creditModels.CreditRequestStatus
	err := tx.Where("credit_request_id = ?", requestID).
		Order("created_at desc, id desc").
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return creditModels.RequestStatusPending, nil
	}
	if err != nil {
		return "", err
	}
	return st.Status, nil
}

// UpdateCreditRequestStatus records a provider decision. Reapplying the
// current terminal status is accepted; switching between terminal states
// is not.
func (s *Service) UpdateCreditRequestStatus(ctx context.Context, token, status string) error {
	if status != creditModels.RequestStatusApproved && status != creditModels.RequestStatusRejected {
		return fmt.Errorf("%w: %q", ErrInvalidCreditStatus, status)
	}

	req, err := s.GetCreditRequest(ctx, token)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes decisions on the same request.
		var locked creditModels.CreditRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, req.ID).Error; err != nil {
			return err
		}
		current, err := currentStatus(tx, req.ID)
		if err != nil {
			return err
		}
		if current != creditModels.RequestStatusPending && current != status {
			return ErrRequestAlreadyCompleted
		}
		return tx.Create(&creditModels.CreditRequestStatus{
			CreditRequestID: req.ID,
			Status:          status,
			CreatedAt:       s.now(),
		}).Error
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("credit request status updated", "request_uuid", token, "status", status)
	s.notify(ctx, req, status)
	return nil
}

// GetCreditRequest loads a request with its course and provider.
func (s *Service) GetCreditRequest(ctx context.Context, token string) (*creditModels.CreditRequest, error) {
	var req creditModels.CreditRequest
	err := s.db.WithContext(ctx).
		Preload("CreditCourse").
		Preload("CreditProvider").
		Where("uuid = ?", token).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCreditRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type ProviderSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// UserCreditRequest is one row of a user's request history.
type UserCreditRequest struct {
	UUID      string          `json:"uuid"`
	Timestamp string          `json:"timestamp"`
	CourseKey string          `json:"course_key"`
	Provider  ProviderSummary `json:"provider"`
	Status    string          `json:"status"`
}

// GetCreditRequestsForUser lists requests ordered by course key then
// provider id.
func (s *Service) GetCreditRequestsForUser(ctx context.Context, username string) ([]UserCreditRequest, error) {
	var rows []creditModels.CreditRequest
	err := s.db.WithContext(ctx).
		Select("credit_requests.*").
		Joins("JOIN credit_courses ON credit_courses.id = credit_requests.credit_course_id").
		Joins("JOIN credit_providers ON credit_providers.id = credit_requests.credit_provider_id").
		Preload("CreditCourse").
		Preload("CreditProvider").
		Preload("Statuses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at desc, id desc")
		}).
		Where("credit_requests.username = ?", username).
		Order("credit_courses.course_key asc, credit_providers.provider_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]UserCreditRequest, 0, len(rows))
	for _, row := range rows {
		status := creditModels.RequestStatusPending
		if len(row.Statuses) > 0 {
			status = row.Statuses[0].Status
		}
		out = append(out, UserCreditRequest{
			UUID:      row.UUID,
			Timestamp: row.CreatedAt.UTC().Format(timestampLayout),
			CourseKey: row.CreditCourse.CourseKey,
			Provider: ProviderSummary{
				ID:          row.CreditProvider.ProviderID,
				DisplayName: row.CreditProvider.DisplayName,
			},
			Status: status,
		})
	}
	return out, nil
}
