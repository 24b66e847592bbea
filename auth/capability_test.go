package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityHasCourseRole(t *testing.T) {
	c := &Capability{
		UserID:   7,
		Username: "alice",
		Roles: []RoleGrant{
			{Org: "edx", CourseID: "edx/demo/2015", Role: "staff"},
			{Org: "mitx", Role: "org_instructor"},
		},
	}

	assert.True(t, c.HasCourseRole("edx/demo/2015", "edx", "staff", "instructor"))
	assert.False(t, c.HasCourseRole("edx/demo/2015", "edx", "instructor"))
	assert.False(t, c.HasCourseRole("edx/other/2015", "edx", "staff"))
	assert.True(t, c.HasCourseRole("MITx/6.002x/2012", "MITx", "org_instructor"))
	assert.False(t, c.HasCourseRole("MITx/6.002x/2012", "", "org_instructor"))
}

func TestCapabilityFlags(t *testing.T) {
	var nilCap *Capability
	assert.False(t, nilCap.IsAuthenticated())
	assert.False(t, nilCap.IsGlobalStaff())
	assert.False(t, nilCap.HasCourseRole("a/b/c", "a", "staff"))
	assert.False(t, Anonymous.IsAuthenticated())

	assert.True(t, (&Capability{UserID: 1, IsSuperuser: true}).IsGlobalStaff())
	assert.True(t, (&Capability{UserID: 1, IsStaff: true}).IsGlobalStaff())
	assert.False(t, (&Capability{UserID: 1}).IsGlobalStaff())
}
