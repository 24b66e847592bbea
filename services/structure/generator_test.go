package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"lms/database/dbtest"
	courseModels "lms/models/course"
	"lms/modulestore"
)

func seedCourse(t *testing.T, store *modulestore.Store) *courseModels.Course {
	t.Helper()
	c := &courseModels.Course{
		CourseKey: "edX/Demo/2015", Org: "edX", Number: "Demo", Run: "2015",
		GradingPolicy: datatypes.JSON(`[{"type":"Homework","min_count":12,"drop_count":2,"weight":0.15},{"type":"Final Exam","min_count":1,"drop_count":0,"weight":0.4}]`),
	}
	require.NoError(t, store.ImportCourse(context.Background(), c, []courseModels.Block{
		{UsageKey: "course", Category: "course", DisplayName: "Demo"},
		{UsageKey: "chapter", ParentUsageKey: "course", Category: "chapter", DisplayName: "Week 1"},
		{UsageKey: "seq", ParentUsageKey: "chapter", Category: "sequential", DisplayName: "Homework 1", Graded: true, Format: "Homework"},
	}))
	return c
}

func TestGenerateAndGet(t *testing.T) {
	db := dbtest.Open(t)
	store := modulestore.New(db)
	g := NewGenerator(db, store)
	ctx := context.Background()
	c := seedCourse(t, store)

	_, err := g.Get(ctx, c)
	assert.ErrorIs(t, err, ErrNotGenerated)

	_, err = g.Generate(ctx, c)
	require.NoError(t, err)

	s, err := g.Get(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "course", s.Root)
	require.Len(t, s.Blocks, 3)
	assert.Equal(t, []string{"chapter"}, s.Blocks["course"].Children)
	assert.Equal(t, []string{}, s.Blocks["seq"].Children)
	assert.True(t, s.Blocks["seq"].Graded)
	require.NotNil(t, s.Blocks["seq"].Format)
	assert.Equal(t, "Homework", *s.Blocks["seq"].Format)
	assert.Nil(t, s.Blocks["chapter"].Format)

	// Regenerating replaces the single stored row.
	_, err = g.Generate(ctx, c)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&courseModels.CourseStructure{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestGenerateAsyncDeduplicates(t *testing.T) {
	db := dbtest.Open(t)
	store := modulestore.New(db)
	g := NewGenerator(db, store)
	c := seedCourse(t, store)

	g.mu.Lock()
	g.inFlight[c.ID] = true
	g.mu.Unlock()
	assert.False(t, g.GenerateAsync(c))

	g.mu.Lock()
	delete(g.inFlight, c.ID)
	g.mu.Unlock()
	assert.True(t, g.GenerateAsync(c))
	g.Wait()

	_, err := g.Get(context.Background(), c)
	assert.NoError(t, err)
}

func TestRegenerateStale(t *testing.T) {
	db := dbtest.Open(t)
	store := modulestore.New(db)
	g := NewGenerator(db, store)
	ctx := context.Background()
	seedCourse(t, store)

	n, err := g.RegenerateStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = g.RegenerateStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGradingPolicy(t *testing.T) {
	db := dbtest.Open(t)
	c := seedCourse(t, modulestore.New(db))

	policy, err := GradingPolicy(c)
	require.NoError(t, err)
	assert.Equal(t, []GradingPolicyEntry{
		{AssignmentType: "Homework", Count: 12, Dropped: 2, Weight: 0.15},
		{AssignmentType: "Final Exam", Count: 1, Dropped: 0, Weight: 0.4},
	}, policy)

	empty, err := GradingPolicy(&courseModels.Course{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
