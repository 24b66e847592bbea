// Package auth holds the explicit identity passed into every service call.
package auth

import "strings"

// RoleGrant is one course access role held by a user. An empty CourseID
// means the role applies to every course of Org.
type RoleGrant struct {
	Org      string `json:"org"`
	CourseID string `json:"course_id"`
	Role     string `json:"role"`
}

// Capability describes who is calling and what they may touch.
type Capability struct {
	UserID      uint        `json:"user_id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	IsStaff     bool        `json:"is_staff"`
	IsSuperuser bool        `json:"is_superuser"`
	Roles       []RoleGrant `json:"roles"`
}

// Anonymous is the capability of an unauthenticated caller.
var Anonymous = &Capability{}

func (c *Capability) IsAuthenticated() bool {
	return c != nil && c.UserID != 0
}

// IsGlobalStaff reports staff or superuser status.
func (c *Capability) IsGlobalStaff() bool {
	return c != nil && (c.IsStaff || c.IsSuperuser)
}

// HasCourseRole reports whether the caller holds any of roles for the course,
// either directly or through an org-wide grant matching org.
func (c *Capability) HasCourseRole(courseID, org string, roles ...string) bool {
	if c == nil {
		return false
	}
	for _, grant := range c.Roles {
		if !contains(roles, grant.Role) {
			continue
		}
		if grant.CourseID != "" && grant.CourseID == courseID {
			return true
		}
		if grant.CourseID == "" && org != "" && strings.EqualFold(grant.Org, org) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
