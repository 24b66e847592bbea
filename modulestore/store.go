// Package modulestore reads course catalog rows and content trees from the
// relational store.
package modulestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/auth"
	"lms/coursekey"
	"lms/models"
	courseModels "lms/models/course"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrNoRootBlock    = errors.New("course has no root block")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetCourse looks a course up by key, accepting either key spelling.
func (s *Store) GetCourse(ctx context.Context, key string) (*courseModels.Course, error) {
	candidates := []string{key}
	if parsed, err := coursekey.Parse(key); err == nil {
		candidates = append(candidates, parsed.Alternate())
	}

	var c courseModels.Course
	err := s.db.WithContext(ctx).
		Where("course_key IN ? AND is_deleted = ?", candidates, false).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) HasCourse(ctx context.Context, key string) bool {
	_, err := s.GetCourse(ctx, key)
	return err == nil
}

// GetCourses returns courses sorted by key. An empty keys slice means all.
func (s *Store) GetCourses(ctx context.Context, keys []string) ([]courseModels.Course, error) {
	q := s.db.WithContext(ctx).Where("is_deleted = ?", false)
	if len(keys) > 0 {
		q = q.Where("course_key IN ?", keys)
	}
	var courses []courseModels.Course
	if err := q.Order("course_key asc").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

// CourseBlocks returns the block rows of a course ordered for tree building.
func (s *Store) CourseBlocks(ctx context.Context, courseID uint) ([]courseModels.Block, error) {
	var rows []courseModels.Block
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("parent_usage_key asc, position asc, id asc").
		Find(&rows).Error
	return rows, err
}

// LoadTree assembles the in-memory tree of a course. Rows whose parent is
// missing are dropped.
func (s *Store) LoadTree(ctx context.Context, c *courseModels.Course) (*Node, error) {
	rows, err := s.CourseBlocks(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	byParent := map[string][]courseModels.Block{}
	var rootRow *courseModels.Block
	for i := range rows {
		row := rows[i]
		if row.ParentUsageKey == "" && row.Category == "course" {
			if rootRow == nil {
				rootRow = &rows[i]
			}
			continue
		}
		byParent[row.ParentUsageKey] = append(byParent[row.ParentUsageKey], row)
	}
	if rootRow == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRootBlock, c.CourseKey)
	}
	for parent := range byParent {
		siblings := byParent[parent]
		sort.SliceStable(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	}

	return buildNode(*rootRow, byParent, map[string]bool{}), nil
}

func buildNode(row courseModels.Block, byParent map[string][]courseModels.Block, seen map[string]bool) *Node {
	n := &Node{row: row}
	seen[row.UsageKey] = true
	for _, childRow := range byParent[row.UsageKey] {
		if seen[childRow.UsageKey] {
			continue
		}
		n.children = append(n.children, wrap(buildNode(childRow, byParent, seen)))
	}
	return n
}

// ImportCourse upserts a course and its blocks in one transaction.
func (s *Store) ImportCourse(ctx context.Context, c *courseModels.Course, rows []courseModels.Block) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"org", "number", "run", "display_name", "start_date", "end_date", "course_image_url", "grading_policy", "updated_at"}),
		}).Create(c).Error; err != nil {
			return err
		}
		if c.ID == 0 {
			if err := tx.Where("course_key = ?", c.CourseKey).First(c).Error; err != nil {
				return err
			}
		}
		for i := range rows {
			rows[i].CourseID = c.ID
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "usage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id", "parent_usage_key", "position", "category", "display_name", "graded", "format",
				"hide_from_toc", "has_responsive_ui", "visible_to_staff_only", "start_date", "student_view_data", "updated_at",
			}),
		}).CreateInBatches(rows, 200).Error
	})
}

// IsEnrolled reports an active enrollment of the user in the course.
func (s *Store) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&courseModels.CourseEnrollment{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, courseID, true).
		Count(&count).Error
	return count > 0, err
}

// Enroll gets or creates an active enrollment.
func (s *Store) Enroll(ctx context.Context, user *models.User, c *courseModels.Course, mode string) (*courseModels.CourseEnrollment, error) {
	if mode == "" {
		mode = "audit"
	}
	enrollment := courseModels.CourseEnrollment{UserID: user.ID, CourseID: c.ID}
	err := s.db.WithContext(ctx).
		Where(courseModels.CourseEnrollment{UserID: user.ID, CourseID: c.ID}).
		Assign(map[string]interface{}{"is_active": true, "mode": mode}).
		FirstOrCreate(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CanManageCourse reports global staff or a staff/instructor role on the course.
func CanManageCourse(cap *auth.Capability, c *courseModels.Course) bool {
	if cap.IsGlobalStaff() {
		return true
	}
	return cap.HasCourseRole(c.CourseKey, c.Org, models.RoleStaff, models.RoleInstructor)
}
