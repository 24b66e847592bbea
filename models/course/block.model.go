package course

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Block is one persisted node of a course content tree. The course root has
// an empty ParentUsageKey; siblings are ordered by Position.
type Block struct {
	gorm.Model
	CourseID           uint              `json:"course_id" gorm:"index;not null"`
	UsageKey           string            `json:"usage_key" gorm:"uniqueIndex;size:255;not null"`
	ParentUsageKey     string            `json:"parent_usage_key" gorm:"index;size:255;default:''"`
	Position           int               `json:"position" gorm:"default:0"`
	Category           string            `json:"category" gorm:"size:64;not null"` // course, chapter, sequential, vertical, html, problem, video
	DisplayName        string            `json:"display_name"`
	Graded             bool              `json:"graded" gorm:"default:false"`
	Format             string            `json:"format"`
	HideFromTOC        bool              `json:"hide_from_toc" gorm:"default:false"`
	HasResponsiveUI    bool              `json:"has_responsive_ui" gorm:"default:false"`
	VisibleToStaffOnly bool              `json:"visible_to_staff_only" gorm:"default:false"`
	Start              *time.Time        `json:"start" gorm:"column:start_date"`
	StudentViewData    datatypes.JSONMap `json:"student_view_data"`
	IsDeleted          bool              `gorm:"default:false"`
}
