package blocks

import (
	"encoding/json"
	"strings"

	"lms/auth"
)

// Record is the serialized form of one block. In the merged output the same
// record carries both block fields and the navigation "descendants" entry.
type Record map[string]interface{}

// Descendants is a navigation list shared by reference between a block and
// the children that append themselves to it.
type Descendants struct {
	ids []string
}

func (d *Descendants) Append(id string) {
	d.ids = append(d.ids, id)
}

func (d *Descendants) IDs() []string {
	return append([]string(nil), d.ids...)
}

func (d *Descendants) MarshalJSON() ([]byte, error) {
	if d == nil || d.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.ids)
}

// Result is the output of one walk.
type Result struct {
	Root       string
	Blocks     map[string]Record
	Navigation map[string]Record
	opts       Options
}

func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"root": r.Root}
	switch {
	case r.opts.ReturnBlocks && r.opts.ReturnNavigation:
		out["blocks+navigation"] = r.Blocks
	case r.opts.ReturnBlocks:
		out["blocks"] = r.Blocks
	case r.opts.ReturnNavigation:
		out["navigation"] = r.Navigation
	}
	return json.Marshal(out)
}

// Walker traverses a course tree depth first in pre-order.
type Walker struct {
	Access AccessChecker
	URLs   URLBuilder
}

type walk struct {
	*Walker
	cap        *auth.Capability
	courseKey  string
	opts       Options
	blocks     map[string]Record
	navigation map[string]Record
}

// Walk serializes the tree under root as seen by cap. Blocks denied by the
// access checker are left out together with their whole subtree.
func (w *Walker) Walk(cap *auth.Capability, courseKey string, root Block, opts Options) *Result {
	state := &walk{
		Walker:    w,
		cap:       cap,
		courseKey: courseKey,
		opts:      opts,
		blocks:    map[string]Record{},
	}
	if opts.ReturnBlocks && opts.ReturnNavigation {
		state.navigation = state.blocks
	} else {
		state.navigation = map[string]Record{}
	}

	state.visit(root, 0, &Descendants{})

	return &Result{
		Root:       root.Location(),
		Blocks:     state.blocks,
		Navigation: state.navigation,
		opts:       opts,
	}
}

func (s *walk) visit(b Block, depth int, parentDescendants *Descendants) {
	if s.Access != nil && !s.Access.HasAccess(s.cap, "load", b, s.courseKey) {
		return
	}

	id := b.Location()
	category := b.Category()
	record := Record{
		"id":           id,
		"type":         category,
		"display_name": b.DisplayName(),
		"web_url":      s.URLs.JumpToURL(s.courseKey, id),
		"block_url":    s.URLs.RenderURL(id),
	}
	s.blocks[id] = record

	// A hidden block keeps its children out of navigation: they collect into
	// a list nothing references. Past the depth limit, children flatten into
	// the list this block was appended to.
	selfDescendants := &Descendants{}
	if !b.HideFromTOC() {
		parentDescendants.Append(id)
		if depth > s.opts.NavigationDepth {
			selfDescendants = parentDescendants
		} else {
			s.navigationEntry(id)["descendants"] = selfDescendants
		}
	}

	var children []Block
	if b.HasChildren() {
		children = b.Children()
		for _, child := range children {
			s.visit(child, depth+1, selfDescendants)
		}
		if s.opts.Fields["children"] {
			ids := make([]string, 0, len(children))
			for _, child := range children {
				ids = append(ids, child.Location())
			}
			record["children"] = ids
		}
	}

	if len(s.opts.BlockCount) > 0 {
		counts := map[string]int{}
		for _, t := range s.opts.BlockCount {
			total := 0
			if t == category {
				total = 1
			}
			for _, child := range children {
				total += childCount(s.blocks[child.Location()], t)
			}
			counts[t] = total
		}
		record["block_count"] = counts
	}

	if ctx, ok := s.opts.BlockJSON[category]; ok {
		if viewer, ok := b.(StudentViewJSONer); ok {
			record["block_json"] = viewer.StudentViewJSON(ctx)
		}
	}

	for field := range s.opts.Fields {
		switch field {
		case "graded":
			graded := false
			if g, ok := b.(GradedBlock); ok {
				graded = g.Graded()
			}
			record["graded"] = graded
		case "format":
			var format *string
			if f, ok := b.(FormattedBlock); ok {
				format = f.Format()
			}
			record["format"] = format
		case "responsive_ui":
			responsive := false
			if r, ok := b.(ResponsiveBlock); ok {
				responsive = r.HasResponsiveUI()
			}
			record["responsive_ui"] = responsive
		}
	}
}

func (s *walk) navigationEntry(id string) Record {
	entry, ok := s.navigation[id]
	if !ok {
		entry = Record{}
		s.navigation[id] = entry
	}
	return entry
}

// childCount is zero for children that were skipped by the access check.
func childCount(child Record, blockType string) int {
	if child == nil {
		return 0
	}
	counts, ok := child["block_count"].(map[string]int)
	if !ok {
		return 0
	}
	return counts[blockType]
}

// PathURLs builds block links under a base URL.
type PathURLs struct {
	BaseURL string
}

func (p PathURLs) JumpToURL(courseKey, location string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/courses/" + courseKey + "/jump_to/" + location
}

func (p PathURLs) RenderURL(location string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/xblock/" + location
}
