package template

import (
	"fmt"
	"strings"
)

// queryPair is one `key=value` clause of a MultiTemplate's query part. Key
// and value are parsed with the same algorithm as the path (spec.md §4.7:
// "Path, key, and value are parsed with the same algorithm"), so a key may
// itself reference a variable and carry its own transform pipeline.
type queryPair struct {
	keySource string
	key       *StringTemplate
	value     *StringTemplate
}

// MultiTemplate rewrites a matched request into a target path plus a set of
// target query parameters, each its own StringTemplate.
type MultiTemplate struct {
	Source string
	Path   *StringTemplate

	query []queryPair

	Safety Safety
}

// CompileMulti parses `path?k1=tmpl1&k2=tmpl2` into a MultiTemplate.
func CompileMulti(src string, safety Safety) (*MultiTemplate, error) {
	pathPart, queryPart, hasQuery := splitOnce(src, '?')

	pathTmpl, err := Compile(pathPart)
	if err != nil {
		return nil, fmt.Errorf("template: path: %w", err)
	}

	mt := &MultiTemplate{Source: src, Path: pathTmpl, Safety: safety}

	if hasQuery && queryPart != "" {
		for _, pair := range splitTopLevel(queryPart, '&') {
			kv := splitTopLevel(pair, '=')
			if len(kv) != 2 {
				return nil, fmt.Errorf("template: query clause %q must be key=template", pair)
			}
			keyTmpl, err := Compile(kv[0])
			if err != nil {
				return nil, fmt.Errorf("template: query key %q: %w", kv[0], err)
			}
			valueTmpl, err := Compile(kv[1])
			if err != nil {
				return nil, fmt.Errorf("template: query key %q: %w", kv[0], err)
			}
			mt.query = append(mt.query, queryPair{keySource: kv[0], key: keyTmpl, value: valueTmpl})
		}
	}

	return mt, nil
}

// Evaluate renders the path and every declared query pair against vars,
// validating each rendered piece with mt.Safety. A query pair is emitted
// only if both its key and value evaluated to non-optional-empty strings
// (spec.md §4.7): a reference marked optional/? that comes out empty causes
// the pair to be omitted, while a plain reference with no value still
// renders "" and is emitted as `key=`.
func (mt *MultiTemplate) Evaluate(vars map[string]string) (path string, query map[string]string, err error) {
	path, err = mt.Path.Evaluate(vars)
	if err != nil {
		return "", nil, err
	}
	if err := mt.Safety.ValidateOutput(path); err != nil {
		return "", nil, err
	}

	query = make(map[string]string, len(mt.query))
	for _, pair := range mt.query {
		k, kOmit, err := pair.key.evaluate(vars)
		if err != nil {
			return "", nil, err
		}
		v, vOmit, err := pair.value.evaluate(vars)
		if err != nil {
			return "", nil, err
		}
		if kOmit || vOmit {
			continue
		}
		if err := mt.Safety.ValidateOutput(k); err != nil {
			return "", nil, err
		}
		if err := mt.Safety.ValidateOutput(v); err != nil {
			return "", nil, err
		}
		query[k] = v
	}
	return path, query, nil
}

// Validate checks the path template and every query key/value template
// against known, the matcher's captured-variable set (name -> optional).
func (mt *MultiTemplate) Validate(known map[string]bool) error {
	if err := mt.Path.Validate(known); err != nil {
		return err
	}
	for _, pair := range mt.query {
		if err := pair.key.Validate(known); err != nil {
			return err
		}
		if err := pair.value.Validate(known); err != nil {
			return err
		}
	}
	return nil
}

// QueryKeys returns the declared target query keys' source text, in source
// order.
func (mt *MultiTemplate) QueryKeys() []string {
	keys := make([]string, len(mt.query))
	for i, pair := range mt.query {
		keys[i] = pair.keySource
	}
	return keys
}

func splitOnce(s string, sep byte) (before string, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			cur.WriteByte(s[i+1])
			i++
		case s[i] == '{':
			depth++
			cur.WriteByte(s[i])
		case s[i] == '}':
			depth--
			cur.WriteByte(s[i])
		case s[i] == sep && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	parts = append(parts, cur.String())
	return parts
}
