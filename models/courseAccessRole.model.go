package models

import "time"

// Registered course access roles.
const (
	RoleInstructor    = "instructor"
	RoleStaff         = "staff"
	RoleBetaTesters   = "beta_testers"
	RoleFinanceAdmin  = "finance_admin"
	RoleSalesAdmin    = "sales_admin"
	RoleLibraryUser   = "library_user"
	RoleOrgInstructor = "org_instructor"
	RoleOrgStaff      = "org_staff"
	RoleCCXCoach      = "ccx_coach"
)

// RegisteredAccessRoles lists every role the admin form accepts.
var RegisteredAccessRoles = []string{
	RoleInstructor,
	RoleStaff,
	RoleBetaTesters,
	RoleFinanceAdmin,
	RoleSalesAdmin,
	RoleLibraryUser,
	RoleOrgInstructor,
	RoleOrgStaff,
	RoleCCXCoach,
}

// CourseAccessRole grants a user a role within an org, optionally scoped to
// one course. Rows are hard deleted so the unique tuple can be granted again.
type CourseAccessRole struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_course_access_role"`
	User      User      `json:"user" gorm:"foreignKey:UserID"`
	Org       string    `json:"org" gorm:"size:64;not null;default:'';uniqueIndex:idx_course_access_role"`
	CourseID  string    `json:"course_id" gorm:"size:255;not null;default:'';index;uniqueIndex:idx_course_access_role"`
	Role      string    `json:"role" gorm:"size:64;not null;uniqueIndex:idx_course_access_role"`
	CreatedAt time.Time `json:"created_at"`
}
