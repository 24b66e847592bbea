package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrParse = errors.New("malformed request parameters")

const (
	DefaultFields          = "children,graded,format,responsive_ui"
	DefaultNavigationDepth = 3
)

// Options selects what a walk produces.
type Options struct {
	Fields           map[string]bool
	BlockCount       []string
	BlockJSON        map[string]interface{}
	NavigationDepth  int
	ReturnBlocks     bool
	ReturnNavigation bool
}

// DefaultOptions returns the options used when no query parameter is given.
func DefaultOptions() Options {
	return Options{
		Fields:           splitFields(DefaultFields),
		NavigationDepth:  DefaultNavigationDepth,
		ReturnBlocks:     true,
		ReturnNavigation: true,
	}
}

// ParseOptions reads the raw query values. A nil pointer means the parameter
// was absent. Any malformed value fails the whole parse with ErrParse.
func ParseOptions(fields, blockCount, blockJSON, navigationDepth *string) (Options, error) {
	opts := DefaultOptions()

	if fields != nil {
		opts.Fields = splitFields(*fields)
	}

	if blockCount != nil && *blockCount != "" {
		for _, t := range strings.Split(*blockCount, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.BlockCount = append(opts.BlockCount, t)
			}
		}
	}

	if navigationDepth != nil {
		depth, err := strconv.Atoi(strings.TrimSpace(*navigationDepth))
		if err != nil {
			return Options{}, fmt.Errorf("%w: navigation_depth %q", ErrParse, *navigationDepth)
		}
		opts.NavigationDepth = depth
	}

	if blockJSON != nil {
		var decoded interface{}
		if err := json.Unmarshal([]byte(*blockJSON), &decoded); err != nil {
			return Options{}, fmt.Errorf("%w: block_json: %v", ErrParse, err)
		}
		switch v := decoded.(type) {
		case nil:
			opts.BlockJSON = map[string]interface{}{}
		case map[string]interface{}:
			opts.BlockJSON = v
		default:
			return Options{}, fmt.Errorf("%w: block_json must be an object", ErrParse)
		}
	}

	return opts, nil
}

func splitFields(raw string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out[f] = true
		}
	}
	return out
}
