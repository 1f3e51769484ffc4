package template

import (
	"fmt"
	"strings"
)

// element is one piece of a compiled StringTemplate.
type element struct {
	literal    bool
	text       string // literal text, when literal is true
	varName    string // variable name, when literal is false
	transforms []Transform
}

// handlesOptional reports whether this reference's pipeline carries one of
// or_var/default/optional, the transforms the spec requires before a
// reference to an optional matcher variable may compile.
func (el element) handlesOptional() bool {
	for _, t := range el.transforms {
		if t.HandlesOptional() {
			return true
		}
	}
	return false
}

// StringTemplate is a compiled output template: literal text interleaved
// with variable references, each optionally piped through transformations.
type StringTemplate struct {
	Source   string
	elements []element
}

// Compile parses a template string such as
// `/cache/{id:lower}/{width:default(0)}.{ext}` into a StringTemplate.
func Compile(src string) (*StringTemplate, error) {
	var elems []element
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			elems = append(elems, element{literal: true, text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		switch src[i] {
		case '\\':
			if i+1 >= len(src) {
				return nil, fmt.Errorf("template: dangling escape in %q", src)
			}
			lit.WriteByte(src[i+1])
			i += 2
		case '{':
			flush()
			depth := 1
			j := i + 1
			for j < len(src) && depth > 0 {
				switch src[j] {
				case '\\':
					j++
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto closed
					}
				}
				j++
			}
			return nil, fmt.Errorf("template: unterminated '{' in %q", src)
		closed:
			inner := src[i+1 : j]
			el, err := compileVarRef(inner)
			if err != nil {
				return nil, fmt.Errorf("template: %w", err)
			}
			elems = append(elems, el)
			i = j + 1
		case '}':
			return nil, fmt.Errorf("template: unmatched '}' in %q", src)
		default:
			lit.WriteByte(src[i])
			i++
		}
	}
	flush()

	return &StringTemplate{Source: src, elements: elems}, nil
}

// compileVarRef parses the inside of a `{...}` reference: a name, then
// (per spec.md §4.7) the rest split on the first unescaped ':', and that
// remainder split again on unescaped ':' into individual transform stages.
// `|` is reserved for the equals transform's own argument list and plays no
// role in staging.
func compileVarRef(inner string) (element, error) {
	name, rest, hasRest := splitFirstUnescaped(inner, ':')
	name = strings.TrimSpace(name)
	if name == "" {
		return element{}, fmt.Errorf("empty variable reference")
	}
	el := element{literal: false, varName: name}
	if !hasRest {
		return el, nil
	}
	for _, stage := range splitStages(rest) {
		stage = strings.TrimSpace(stage)
		if stage == "" {
			continue
		}
		t, err := parseTransform(stage)
		if err != nil {
			return element{}, err
		}
		el.transforms = append(el.transforms, t)
	}
	return el, nil
}

// splitFirstUnescaped splits s on the first unescaped occurrence of sep.
func splitFirstUnescaped(s string, sep byte) (before string, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			continue
		}
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// splitStages splits on unescaped ':', respecting nested parens so a
// transform argument containing ':' isn't mistaken for a stage boundary.
func splitStages(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			cur.WriteByte(s[i+1])
			i++
		case s[i] == '(':
			depth++
			cur.WriteByte(s[i])
		case s[i] == ')':
			depth--
			cur.WriteByte(s[i])
		case s[i] == ':' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	parts = append(parts, cur.String())
	return parts
}
