package modulestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"lms/auth"
	"lms/database/dbtest"
	courseModels "lms/models/course"
	"lms/services/blocks"
)

func importDemo(t *testing.T, s *Store) *courseModels.Course {
	t.Helper()
	future := time.Now().Add(48 * time.Hour)
	c := &courseModels.Course{CourseKey: "edX/Demo/2015", Org: "edX", Number: "Demo", Run: "2015", DisplayName: "Demo"}
	rows := []courseModels.Block{
		{UsageKey: "i4x://edX/Demo/course/2015", Category: "course", DisplayName: "Demo"},
		{UsageKey: "i4x://edX/Demo/chapter/ch2", ParentUsageKey: "i4x://edX/Demo/course/2015", Position: 2, Category: "chapter", DisplayName: "Second"},
		{UsageKey: "i4x://edX/Demo/chapter/ch1", ParentUsageKey: "i4x://edX/Demo/course/2015", Position: 1, Category: "chapter", DisplayName: "First"},
		{UsageKey: "i4x://edX/Demo/video/v1", ParentUsageKey: "i4x://edX/Demo/chapter/ch1", Position: 1, Category: "video", DisplayName: "Intro",
			StudentViewData: datatypes.JSONMap{
				"only_on_web": false,
				"encoded_videos": map[string]interface{}{
					"mobile_low": map[string]interface{}{"url": "low.mp4"},
					"desktop":    map[string]interface{}{"url": "hd.mp4"},
				},
			}},
		{UsageKey: "i4x://edX/Demo/html/staff", ParentUsageKey: "i4x://edX/Demo/chapter/ch1", Position: 2, Category: "html", VisibleToStaffOnly: true},
		{UsageKey: "i4x://edX/Demo/html/later", ParentUsageKey: "i4x://edX/Demo/chapter/ch2", Position: 1, Category: "html", Start: &future},
		{UsageKey: "i4x://edX/Demo/html/orphan", ParentUsageKey: "i4x://edX/Demo/chapter/missing", Category: "html"},
	}
	require.NoError(t, s.ImportCourse(context.Background(), c, rows))
	require.NotZero(t, c.ID)
	return c
}

func TestLoadTreeOrdersChildren(t *testing.T) {
	s := New(dbtest.Open(t))
	c := importDemo(t, s)

	root, err := s.LoadTree(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "i4x://edX/Demo/course/2015", root.Location())

	var chapterIDs []string
	for _, ch := range root.Children() {
		chapterIDs = append(chapterIDs, ch.Location())
	}
	assert.Equal(t, []string{"i4x://edX/Demo/chapter/ch1", "i4x://edX/Demo/chapter/ch2"}, chapterIDs)

	first := root.Children()[0]
	require.Len(t, first.Children(), 2)
	assert.True(t, first.HasChildren())
	assert.False(t, first.Children()[0].HasChildren())
}

func TestGetCourseAcceptsBothSpellings(t *testing.T) {
	s := New(dbtest.Open(t))
	importDemo(t, s)
	ctx := context.Background()

	c, err := s.GetCourse(ctx, "course-v1:edX+Demo+2015")
	require.NoError(t, err)
	assert.Equal(t, "edX/Demo/2015", c.CourseKey)

	_, err = s.GetCourse(ctx, "edX/Missing/2015")
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.False(t, s.HasCourse(ctx, "edX/Missing/2015"))
}

func TestReimportUpdatesInPlace(t *testing.T) {
	s := New(dbtest.Open(t))
	ctx := context.Background()
	importDemo(t, s)

	c := &courseModels.Course{CourseKey: "edX/Demo/2015", Org: "edX", Number: "Demo", Run: "2015", DisplayName: "Renamed"}
	require.NoError(t, s.ImportCourse(ctx, c, []courseModels.Block{
		{UsageKey: "i4x://edX/Demo/course/2015", Category: "course", DisplayName: "Renamed"},
	}))

	courses, err := s.GetCourses(ctx, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Renamed", courses[0].DisplayName)
}

func TestVideoStudentViewFiltersProfiles(t *testing.T) {
	s := New(dbtest.Open(t))
	c := importDemo(t, s)
	root, err := s.LoadTree(context.Background(), c)
	require.NoError(t, err)

	video, ok := root.Children()[0].Children()[0].(blocks.StudentViewJSONer)
	require.True(t, ok)

	view := video.StudentViewJSON(map[string]interface{}{"profiles": []interface{}{"mobile_low"}}).(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"mobile_low": map[string]interface{}{"url": "low.mp4"}}, view["encoded_videos"])
	assert.Equal(t, false, view["only_on_web"])

	all := video.StudentViewJSON(map[string]interface{}{}).(map[string]interface{})
	assert.Len(t, all["encoded_videos"], 2)

	_, isViewer := root.Children()[0].(blocks.StudentViewJSONer)
	assert.False(t, isViewer)
}

func TestCourseAccess(t *testing.T) {
	s := New(dbtest.Open(t))
	c := importDemo(t, s)
	root, err := s.LoadTree(context.Background(), c)
	require.NoError(t, err)

	walker := &blocks.Walker{Access: CourseAccess{Course: c}, URLs: blocks.PathURLs{BaseURL: "http://lms.test"}}
	learner := &auth.Capability{UserID: 2, Username: "learner"}
	staff := &auth.Capability{UserID: 3, Username: "staff", Roles: []auth.RoleGrant{{Org: "edX", CourseID: c.CourseKey, Role: "staff"}}}
	beta := &auth.Capability{UserID: 4, Username: "beta", Roles: []auth.RoleGrant{{Org: "edX", CourseID: c.CourseKey, Role: "beta_testers"}}}

	res := walker.Walk(learner, c.CourseKey, root, blocks.DefaultOptions())
	assert.NotContains(t, res.Blocks, "i4x://edX/Demo/html/staff")
	assert.NotContains(t, res.Blocks, "i4x://edX/Demo/html/later")
	assert.Contains(t, res.Blocks, "i4x://edX/Demo/video/v1")
	assert.NotContains(t, res.Blocks, "i4x://edX/Demo/html/orphan")

	res = walker.Walk(staff, c.CourseKey, root, blocks.DefaultOptions())
	assert.Contains(t, res.Blocks, "i4x://edX/Demo/html/staff")
	assert.Contains(t, res.Blocks, "i4x://edX/Demo/html/later")

	res = walker.Walk(beta, c.CourseKey, root, blocks.DefaultOptions())
	assert.NotContains(t, res.Blocks, "i4x://edX/Demo/html/staff")
	assert.Contains(t, res.Blocks, "i4x://edX/Demo/html/later")
}

func TestEnrollment(t *testing.T) {
	db := dbtest.Open(t)
	s := New(db)
	ctx := context.Background()
	c := importDemo(t, s)
	user := dbtest.CreateUser(t, db, "learner")

	enrolled, err := s.IsEnrolled(ctx, user.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	_, err = s.Enroll(ctx, user, c, "")
	require.NoError(t, err)
	_, err = s.Enroll(ctx, user, c, "verified")
	require.NoError(t, err)

	enrolled, err = s.IsEnrolled(ctx, user.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	var count int64
	require.NoError(t, db.Model(&courseModels.CourseEnrollment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
