// Package roles administers course access roles.
package roles

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"lms/auth"
	"lms/constants"
	"lms/coursekey"
	"lms/logger"
	"lms/models"
	"lms/modulestore"
)

var ErrRoleNotFound = errors.New("course access role not found")

// CourseAccessRoleForm is the admin input for granting a role.
type CourseAccessRoleForm struct {
	Email    string `json:"email" validate:"required,email"`
	CourseID string `json:"course_id" validate:"required"`
	Org      string `json:"org" validate:"max=64"`
	Role     string `json:"role" validate:"required,oneof=instructor staff beta_testers finance_admin sales_admin library_user org_instructor org_staff ccx_coach"`
}

// FormErrors maps a field name, or "non_field_errors", to its message.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "invalid course access role: " + strings.Join(parts, "; ")
}

type Service struct {
	db    *gorm.DB
	store *modulestore.Store
}

func NewService(db *gorm.DB, store *modulestore.Store) *Service {
	return &Service{db: db, store: store}
}

// Clean validates the form and resolves it to a role row ready to insert.
// Every field is checked so all problems are reported together.
func (s *Service) Clean(ctx context.Context, form CourseAccessRoleForm) (*models.CourseAccessRole, error) {
	errs := FormErrors(constants.FieldErrors(form))

	var user models.User
	if _, bad := errs["email"]; !bad {
		err := s.db.WithContext(ctx).Where("email = ? AND is_deleted = ?", form.Email, false).First(&user).Error
		if err != nil {
			errs["email"] = fmt.Sprintf("Email not exists. Could not find user by email address %s.", form.Email)
		}
	}

	var key coursekey.Key
	var courseKey string
	if _, bad := errs["course_id"]; !bad {
		parsed, err := coursekey.Parse(form.CourseID)
		if err != nil {
			errs["course_id"] = fmt.Sprintf("Cannot make a valid CourseKey from id %s!", form.CourseID)
		} else if c, err := s.store.GetCourse(ctx, form.CourseID); err != nil {
			errs["course_id"] = fmt.Sprintf("Cannot find course with id %s in the modulestore", form.CourseID)
		} else {
			key = parsed
			courseKey = c.CourseKey
		}
	}

	if _, bad := errs["org"]; !bad {
		switch {
		case courseKey == "":
			errs["org"] = fmt.Sprintf("Cannot find course with id %s in the modulestore", form.CourseID)
		case !strings.EqualFold(form.Org, key.Org):
			errs["org"] = fmt.Sprintf("Org name %s is not valid. Valid name is %s.", form.Org, key.Org)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	role := &models.CourseAccessRole{
		UserID:   user.ID,
		Org:      strings.ToLower(form.Org),
		CourseID: courseKey,
		Role:     form.Role,
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.CourseAccessRole{}).
		Where("user_id = ? AND org = ? AND course_id = ? AND role = ?", role.UserID, role.Org, role.CourseID, role.Role).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, FormErrors{"non_field_errors": "Duplicate Record."}
	}
	return role, nil
}

// Save cleans the form and stores the role.
func (s *Service) Save(ctx context.Context, form CourseAccessRoleForm) (*models.CourseAccessRole, error) {
	role, err := s.Clean(ctx, form)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		return nil, err
	}
	logger.Log.Infow("course access role granted",
		"user_id", role.UserID, "org", role.Org, "course_id", role.CourseID, "role", role.Role)
	return role, nil
}

// List searches id, username, email, org, course id and role.
func (s *Service) List(ctx context.Context, search string, page, limit int) ([]models.CourseAccessRole, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var cond *gorm.DB
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		cond = s.db.Where("LOWER(users.username) LIKE ?", like).
			Or("LOWER(users.email) LIKE ?", like).
			Or("LOWER(course_access_roles.org) LIKE ?", like).
			Or("LOWER(course_access_roles.course_id) LIKE ?", like).
			Or("LOWER(course_access_roles.role) LIKE ?", like)
		if id, err := strconv.ParseUint(search, 10, 64); err == nil {
			cond = cond.Or("course_access_roles.id = ?", id)
		}
	}
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.CourseAccessRole{}).
			Joins("JOIN users ON users.id = course_access_roles.user_id")
		if cond != nil {
			q = q.Where(cond)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CourseAccessRole
	err := query().Preload("User").
		Order("course_access_roles.id asc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Delete removes a role grant permanently.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.CourseAccessRole{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// RolesForUser returns the grants carried in a caller's capability.
func (s *Service) RolesForUser(ctx context.Context, userID uint) ([]auth.RoleGrant, error) {
	var rows []models.CourseAccessRole
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	grants := make([]auth.RoleGrant, 0, len(rows))
	for _, r := range rows {
		grants = append(grants, auth.RoleGrant{Org: r.Org, CourseID: r.CourseID, Role: r.Role})
	}
	return grants, nil
}
