// Package blocks serializes a course content tree into a flat block map
// and a table-of-contents navigation map.
package blocks

import "lms/auth"

// Block is a node of a course content tree.
type Block interface {
	Location() string
	Category() string
	DisplayName() string
	HasChildren() bool
	Children() []Block
	HideFromTOC() bool
}

// GradedBlock is implemented by blocks that carry a graded flag.
type GradedBlock interface {
	Graded() bool
}

// FormattedBlock is implemented by blocks with an assignment format label.
// A nil label renders as JSON null.
type FormattedBlock interface {
	Format() *string
}

type ResponsiveBlock interface {
	HasResponsiveUI() bool
}

// StudentViewJSONer renders a type specific view of the block for the
// caller supplied context.
type StudentViewJSONer interface {
	StudentViewJSON(context interface{}) interface{}
}

// AccessChecker decides whether cap may perform action on block.
type AccessChecker interface {
	HasAccess(cap *auth.Capability, action string, block Block, courseKey string) bool
}

// URLBuilder produces the two links attached to every block record.
type URLBuilder interface {
	JumpToURL(courseKey, location string) string
	RenderURL(location string) string
}
