// Package coursekey parses course identifiers in the slash form
// "org/course/run" and the "course-v1:org+course+run" form.
package coursekey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidKey = errors.New("invalid course key")

const v1Prefix = "course-v1:"

var partPattern = regexp.MustCompile(`^[A-Za-z0-9_.~%-]+$`)

// Key identifies one run of a course.
type Key struct {
	Org    string
	Course string
	Run    string
	v1     bool
}

// Parse accepts both supported spellings and rejects anything else.
func Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	var parts []string
	v1 := false
	switch {
	case strings.HasPrefix(raw, v1Prefix):
		v1 = true
		parts = strings.Split(strings.TrimPrefix(raw, v1Prefix), "+")
	default:
		parts = strings.Split(raw, "/")
	}
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	for _, p := range parts {
		if !partPattern.MatchString(p) {
			return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
		}
	}
	return Key{Org: parts[0], Course: parts[1], Run: parts[2], v1: v1}, nil
}

// MustParse is for tests and fixtures.
func MustParse(raw string) Key {
	k, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return k
}

// String renders the key in the spelling it was parsed from.
func (k Key) String() string {
	if k.v1 {
		return v1Prefix + k.Org + "+" + k.Course + "+" + k.Run
	}
	return k.Org + "/" + k.Course + "/" + k.Run
}

// Equivalent compares keys regardless of spelling.
func (k Key) Equivalent(other Key) bool {
	return k.Org == other.Org && k.Course == other.Course && k.Run == other.Run
}

// Alternate returns the same course in the other spelling, used when a
// course was stored under one form and requested in the other.
func (k Key) Alternate() string {
	k.v1 = !k.v1
	return k.String()
}
