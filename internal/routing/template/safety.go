package template

import (
	"fmt"
	"strings"
)

// Safety guards a template's evaluated output against directory traversal:
// a captured value substituted verbatim into an upstream path or storage
// key must not be able to introduce a `..` sequence anywhere in the result.
type Safety struct {
	AllowDotDot bool
}

// ValidateOutput returns an error if value contains the substring ".."
// anywhere and AllowDotDot is false (spec.md §4.7: "must not contain the
// substring \"..\" anywhere"), not merely as a whole path segment.
func (s Safety) ValidateOutput(value string) error {
	if s.AllowDotDot {
		return nil
	}
	if strings.Contains(value, "..") {
		return fmt.Errorf("template: evaluated output contains a %q substring: %q", "..", value)
	}
	return nil
}
