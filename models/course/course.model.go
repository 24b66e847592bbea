package course

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course is the catalog record of a course run identified by org/number/run.
type Course struct {
	gorm.Model
	CourseKey      string     `json:"course_key" gorm:"uniqueIndex;size:255;not null"`
	Org            string     `json:"org" gorm:"size:64;not null"`
	Number         string     `json:"number" gorm:"size:64;not null"`
	Run            string     `json:"run" gorm:"size:64;not null"`
	DisplayName    string     `json:"display_name"`
	Start          *time.Time `json:"start" gorm:"column:start_date"`
	End            *time.Time `json:"end" gorm:"column:end_date"`
	CourseImageURL string     `json:"course_image_url"`
	// GradingPolicy is the grader list: [{"type","min_count","drop_count","weight"}].
	GradingPolicy datatypes.JSON `json:"grading_policy"`
	IsDeleted     bool           `gorm:"default:false"`
}

// Grader is one entry of a course grading policy.
type Grader struct {
	Type      string  `json:"type"`
	MinCount  int     `json:"min_count"`
	DropCount int     `json:"drop_count"`
	Weight    float64 `json:"weight"`
}

// CourseStructure is the precomputed block structure of a course.
type CourseStructure struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	CourseID    uint           `json:"course_id" gorm:"uniqueIndex;not null"`
	Structure   datatypes.JSON `json:"structure"`
	GeneratedAt time.Time      `json:"generated_at"`
}
