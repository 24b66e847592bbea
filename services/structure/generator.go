// Package structure precomputes and serves course block structures.
package structure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/logger"
	courseModels "lms/models/course"
	"lms/modulestore"
	"lms/services/blocks"
)

var ErrNotGenerated = errors.New("course structure not generated yet")

// BlockSummary is one entry of a stored structure.
type BlockSummary struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	DisplayName string   `json:"display_name"`
	Graded      bool     `json:"graded"`
	Format      *string  `json:"format"`
	Children    []string `json:"children"`
}

type Structure struct {
	Root   string                  `json:"root"`
	Blocks map[string]BlockSummary `json:"blocks"`
}

// GradingPolicyEntry is the public form of a grader.
type GradingPolicyEntry struct {
	AssignmentType string  `json:"assignment_type"`
	Count          int     `json:"count"`
	Dropped        int     `json:"dropped"`
	Weight         float64 `json:"weight"`
}

// Generator builds structures and stores them. At most one generation per
// course runs at a time.
type Generator struct {
	db    *gorm.DB
	store *modulestore.Store
	now   func() time.Time

	mu       sync.Mutex
	inFlight map[uint]bool
	wg       sync.WaitGroup
}

func NewGenerator(db *gorm.DB, store *modulestore.Store) *Generator {
	return &Generator{
		db:       db,
		store:    store,
		now:      time.Now,
		inFlight: map[uint]bool{},
	}
}

// Get returns the stored structure of a course or ErrNotGenerated.
func (g *Generator) Get(ctx context.Context, c *courseModels.Course) (*Structure, error) {
	var row courseModels.CourseStructure
	err := g.db.WithContext(ctx).Where("course_id = ?", c.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotGenerated
	}
	if err != nil {
		return nil, err
	}
	var s Structure
	if err := json.Unmarshal(row.Structure, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Generate builds and stores the structure of one course synchronously.
func (g *Generator) Generate(ctx context.Context, c *courseModels.Course) (*Structure, error) {
	root, err := g.store.LoadTree(ctx, c)
	if err != nil {
		return nil, err
	}

	s := &Structure{Root: root.Location(), Blocks: map[string]BlockSummary{}}
	collect(root, s.Blocks)

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	row := courseModels.CourseStructure{
		CourseID:    c.ID,
		Structure:   datatypes.JSON(raw),
		GeneratedAt: g.now(),
	}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"structure", "generated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	logger.Log.Infow("course structure generated", "course_key", c.CourseKey, "blocks", len(s.Blocks))
	return s, nil
}

// GenerateAsync starts a background generation unless one is already
// running for the course. It reports whether a new one was started.
func (g *Generator) GenerateAsync(c *courseModels.Course) bool {
	g.mu.Lock()
	if g.inFlight[c.ID] {
		g.mu.Unlock()
		return false
	}
	g.inFlight[c.ID] = true
	g.mu.Unlock()

	course := *c
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			delete(g.inFlight, course.ID)
			g.mu.Unlock()
		}()
		if _, err := g.Generate(context.Background(), &course); err != nil {
			logger.Log.Errorw("course structure generation failed", "course_key", course.CourseKey, "error", err)
		}
	}()
	return true
}

// Wait blocks until background generations finish.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// RegenerateStale rebuilds structures that are missing or older than the
// course's last update.
func (g *Generator) RegenerateStale(ctx context.Context) (int, error) {
	courses, err := g.store.GetCourses(ctx, nil)
	if err != nil {
		return 0, err
	}

	var rows []courseModels.CourseStructure
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return 0, err
	}
	generated := map[uint]time.Time{}
	for _, r := range rows {
		generated[r.CourseID] = r.GeneratedAt
	}

	count := 0
	for i := range courses {
		c := &courses[i]
		at, ok := generated[c.ID]
		if ok && !at.Before(c.UpdatedAt) {
			continue
		}
		if _, err := g.Generate(ctx, c); err != nil {
			logger.Log.Warnw("skipping course structure", "course_key", c.CourseKey, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

func collect(b blocks.Block, out map[string]BlockSummary) {
	summary := BlockSummary{
		ID:          b.Location(),
		Type:        b.Category(),
		DisplayName: b.DisplayName(),
		Children:    []string{},
	}
	if g, ok := b.(blocks.GradedBlock); ok {
		summary.Graded = g.Graded()
	}
	if f, ok := b.(blocks.FormattedBlock); ok {
		summary.Format = f.Format()
	}
	for _, child := range b.Children() {
		summary.Children = append(summary.Children, child.Location())
		collect(child, out)
	}
	out[summary.ID] = summary
}

// GradingPolicy renders the course's graders.
func GradingPolicy(c *courseModels.Course) ([]GradingPolicyEntry, error) {
	out := []GradingPolicyEntry{}
	if len(c.GradingPolicy) == 0 {
		return out, nil
	}
	var graders []courseModels.Grader
	if err := json.Unmarshal(c.GradingPolicy, &graders); err != nil {
		return nil, err
	}
	for _, gr := range graders {
		out = append(out, GradingPolicyEntry{
			AssignmentType: gr.Type,
			Count:          gr.MinCount,
			Dropped:        gr.DropCount,
			Weight:         gr.Weight,
		})
	}
	return out, nil
}
