package modulestore

import (
	"time"

	"lms/auth"
	"lms/models"
	courseModels "lms/models/course"
	"lms/services/blocks"
)

// Node is one block of a loaded course tree.
type Node struct {
	row      courseModels.Block
	children []blocks.Block
}

// viewNode is a Node that can render a student view payload.
type viewNode struct {
	*Node
}

var containerCategories = map[string]bool{
	"course":     true,
	"chapter":    true,
	"sequential": true,
	"vertical":   true,
}

func wrap(n *Node) blocks.Block {
	if n.row.Category == "video" || len(n.row.StudentViewData) > 0 {
		return viewNode{Node: n}
	}
	return n
}

func (n *Node) Location() string    { return n.row.UsageKey }
func (n *Node) Category() string    { return n.row.Category }
func (n *Node) DisplayName() string { return n.row.DisplayName }
func (n *Node) HideFromTOC() bool   { return n.row.HideFromTOC }
func (n *Node) Graded() bool        { return n.row.Graded }
func (n *Node) HasResponsiveUI() bool {
	return n.row.HasResponsiveUI
}

func (n *Node) Format() *string {
	if n.row.Format == "" {
		return nil
	}
	format := n.row.Format
	return &format
}

func (n *Node) HasChildren() bool {
	return containerCategories[n.row.Category] || len(n.children) > 0
}

func (n *Node) Children() []blocks.Block { return n.children }

func (n *Node) VisibleToStaffOnly() bool { return n.row.VisibleToStaffOnly }

func (n *Node) StartDate() *time.Time { return n.row.Start }

// Row exposes the persisted block.
func (n *Node) Row() courseModels.Block { return n.row }

// StudentViewJSON returns the stored payload. For videos, encoded_videos is
// narrowed to the profiles named in the context.
func (v viewNode) StudentViewJSON(context interface{}) interface{} {
	out := map[string]interface{}{}
	for k, val := range v.row.StudentViewData {
		out[k] = val
	}
	if v.row.Category != "video" {
		return out
	}

	encoded, ok := out["encoded_videos"].(map[string]interface{})
	if !ok {
		return out
	}
	profiles := requestedProfiles(context)
	if profiles == nil {
		return out
	}
	filtered := map[string]interface{}{}
	for profile, data := range encoded {
		if profiles[profile] {
			filtered[profile] = data
		}
	}
	out["encoded_videos"] = filtered
	return out
}

func requestedProfiles(context interface{}) map[string]bool {
	ctx, ok := context.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := ctx["profiles"].([]interface{})
	if !ok {
		return nil
	}
	profiles := map[string]bool{}
	for _, p := range raw {
		if s, ok := p.(string); ok {
			profiles[s] = true
		}
	}
	return profiles
}

// CourseAccess decides block visibility within one course.
type CourseAccess struct {
	Course *courseModels.Course
	Now    func() time.Time
}

type scheduledBlock interface {
	VisibleToStaffOnly() bool
	StartDate() *time.Time
}

func (a CourseAccess) HasAccess(cap *auth.Capability, action string, b blocks.Block, courseKey string) bool {
	if cap.IsGlobalStaff() {
		return true
	}
	org := ""
	if a.Course != nil {
		org = a.Course.Org
	}
	if cap.HasCourseRole(courseKey, org, models.RoleStaff, models.RoleInstructor) {
		return true
	}
	sb, ok := b.(scheduledBlock)
	if !ok {
		return true
	}
	if sb.VisibleToStaffOnly() {
		return false
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	// Beta testers see content before its release date.
	if start := sb.StartDate(); start != nil && start.After(now()) {
		return cap.HasCourseRole(courseKey, org, models.RoleBetaTesters)
	}
	return true
}
