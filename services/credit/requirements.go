package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/logger"
	creditModels "lms/models/credit"
)

// RequirementInput is one entry of a requirement set. A nil Criteria means
// the criteria were not supplied.
type RequirementInput struct {
	Namespace   string                 `json:"namespace"`
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	Criteria    map[string]interface{} `json:"criteria"`
}

// Requirement is the public shape of an active requirement.
type Requirement struct {
	Namespace   string                 `json:"namespace"`
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	Criteria    map[string]interface{} `json:"criteria"`
}

type requirementKey struct {
	namespace string
	name      string
}

func validateRequirements(reqs []RequirementInput) error {
	var messages []string
	for i, r := range reqs {
		var invalid []string
		if r.Namespace == "" {
			invalid = append(invalid, "namespace")
		}
		if r.Name == "" {
			invalid = append(invalid, "name")
		}
		if r.DisplayName == "" {
			invalid = append(invalid, "display_name")
		}
		if r.Criteria == nil {
			invalid = append(invalid, "criteria")
		}
		if len(invalid) > 0 {
			messages = append(messages, fmt.Sprintf(
				"requirement %d (%s/%s) has missing/invalid parameters: [%s]",
				i, r.Namespace, r.Name, strings.Join(invalid, ", ")))
		}
	}
	if len(messages) > 0 {
		return &InvalidCreditRequirementsError{Messages: messages}
	}
	return nil
}

// SetCreditRequirements replaces the active requirement set of a course.
// Requirements missing from reqs are deactivated; the rest are upserted on
// (course, namespace, name). When reqs repeats a key the last entry wins.
func (s *Service) SetCreditRequirements(ctx context.Context, courseKey string, reqs []RequirementInput) error {
	if err := validateRequirements(reqs); err != nil {
		return err
	}

	ordered := make([]requirementKey, 0, len(reqs))
	incoming := map[requirementKey]RequirementInput{}
	for _, r := range reqs {
		k := requirementKey{r.Namespace, r.Name}
		if _, seen := incoming[k]; !seen {
			ordered = append(ordered, k)
		}
		incoming[k] = r
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cc, err := s.creditCourse(tx, courseKey)
		if err != nil {
			return err
		}

		var existing []creditModels.CreditRequirement
		if err := tx.Where("credit_course_id = ?", cc.ID).Find(&existing).Error; err != nil {
			return err
		}
		stored := map[requirementKey]*creditModels.CreditRequirement{}
		var disable []uint
		for i := range existing {
			row := &existing[i]
			k := requirementKey{row.Namespace, row.Name}
			stored[k] = row
			if _, keep := incoming[k]; !keep && row.Active {
				disable = append(disable, row.ID)
			}
		}
		if len(disable) > 0 {
			if err := tx.Model(&creditModels.CreditRequirement{}).
				Where("id IN ?", disable).
				Update("active", false).Error; err != nil {
				return err
			}
		}

		for _, k := range ordered {
			r := incoming[k]
			if row, ok := stored[k]; ok {
				if row.Active && row.DisplayName == r.DisplayName && sameJSON(map[string]interface{}(row.Criteria), r.Criteria) {
					continue
				}
				if err := tx.Model(row).Updates(map[string]interface{}{
					"display_name": r.DisplayName,
					"criteria":     datatypes.JSONMap(r.Criteria),
					"active":       true,
				}).Error; err != nil {
					return err
				}
				continue
			}

			row := creditModels.CreditRequirement{
				CreditCourseID: cc.ID,
				Namespace:      r.Namespace,
				Name:           r.Name,
				DisplayName:    r.DisplayName,
				Criteria:       datatypes.JSONMap(r.Criteria),
				Active:         true,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "credit_course_id"}, {Name: "namespace"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"display_name", "criteria", "active", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		logger.Log.Infow("credit requirements updated",
			"course_key", courseKey, "active", len(ordered), "disabled", len(disable))
		return nil
	})
}

// GetCreditRequirements lists the active requirements of a course,
// optionally limited to one namespace.
func (s *Service) GetCreditRequirements(ctx context.Context, courseKey, namespace string) ([]Requirement, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN credit_courses ON credit_courses.id = credit_requirements.credit_course_id").
		Where("credit_courses.course_key = ? AND credit_requirements.active = ?", courseKey, true)
	if namespace != "" {
		q = q.Where("credit_requirements.namespace = ?", namespace)
	}

	var rows []creditModels.CreditRequirement
	if err := q.Order("credit_requirements.id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Requirement, 0, len(rows))
	for _, row := range rows {
		out = append(out, Requirement{
			Namespace:   row.Namespace,
			Name:        row.Name,
			DisplayName: row.DisplayName,
			Criteria:    normalize(row.Criteria),
		})
	}
	return out, nil
}

// SetCreditRequirementStatus appends a user's status for one requirement
// and records eligibility once every active requirement is satisfied.
func (s *Service) SetCreditRequirementStatus(ctx context.Context, username, courseKey, namespace, name, status string, reason map[string]interface{}) error {
	if status != creditModels.RequirementStatusSatisfied && status != creditModels.RequirementStatusFailed {
		return ErrInvalidRequirementStatus
	}
	if reason == nil {
		reason = map[string]interface{}{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cc, err := s.creditCourse(tx, courseKey)
		if err != nil {
			return err
		}

		var req creditModels.CreditRequirement
		err = tx.Where("credit_course_id = ? AND namespace = ? AND name = ? AND active = ?", cc.ID, namespace, name, true).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrRequirementNotFound, namespace, name)
		}
		if err != nil {
			return err
		}

		entry := creditModels.CreditRequirementStatus{
			Username:      username,
			RequirementID: req.ID,
			Status:        status,
			Reason:        datatypes.JSONMap(reason),
			CreatedAt:     s.now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		eligible, err := allRequirementsSatisfied(tx, username, cc.ID)
		if err != nil || !eligible {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&creditModels.CreditEligibility{
			Username:       username,
			CreditCourseID: cc.ID,
		}).Error
	})
}

func allRequirementsSatisfied(tx *gorm.DB, username string, creditCourseID uint) (bool, error) {
	var active []creditModels.CreditRequirement
	if err := tx.Where("credit_course_id = ? AND active = ?", creditCourseID, true).Find(&active).Error; err != nil {
		return false, err
	}
	if len(active) == 0 {
		return false, nil
	}
	ids := make([]uint, 0, len(active))
	for _, r := range active {
		ids = append(ids, r.ID)
	}

	var statuses []creditModels.CreditRequirementStatus
	if err := tx.Where("username = ? AND requirement_id IN ?", username, ids).
		Order("created_at desc, id desc").
		Find(&statuses).Error; err != nil {
		return false, err
	}
	latest := map[uint]string{}
	for _, st := range statuses {
		if _, ok := latest[st.RequirementID]; !ok {
			latest[st.RequirementID] = st.Status
		}
	}
	for _, id := range ids {
		if latest[id] != creditModels.RequirementStatusSatisfied {
			return false, nil
		}
	}
	return true, nil
}

// IsUserEligibleForCredit reports whether an eligibility row exists.
func (s *Service) IsUserEligibleForCredit(ctx context.Context, username, courseKey string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&creditModels.CreditEligibility{}).
		Joins("JOIN credit_courses ON credit_courses.id = credit_eligibilities.credit_course_id").
		Where("credit_eligibilities.username = ? AND credit_courses.course_key = ?", username, courseKey).
		Count(&count).Error
	return count > 0, err
}

// Eligibility is one course a user may request credit for.
type Eligibility struct {
	CourseKey string `json:"course_key"`
	CreatedAt string `json:"created_at"`
}

func (s *Service) GetCreditEligibility(ctx context.Context, username string) ([]Eligibility, error) {
	var rows []creditModels.CreditEligibility
	err := s.db.WithContext(ctx).
		Preload("CreditCourse").
		Where("username = ?", username).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Eligibility, 0, len(rows))
	for _, row := range rows {
		out = append(out, Eligibility{
			CourseKey: row.CreditCourse.CourseKey,
			CreatedAt: row.CreatedAt.UTC().Format(timestampLayout),
		})
	}
	return out, nil
}

func sameJSON(a, b map[string]interface{}) bool {
	left, errA := json.Marshal(normalize(a))
	right, errB := json.Marshal(normalize(b))
	return errA == nil && errB == nil && bytes.Equal(left, right)
}

// normalize round-trips m through encoding/json so numbers read back from a
// JSONMap column come out as float64 rather than json.Number.
func normalize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}
