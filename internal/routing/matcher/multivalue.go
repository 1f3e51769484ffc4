package matcher

import (
	"fmt"
	"strings"

	"github.com/imageflow/cascade/internal/routing/charclass"
)

// queryKeyExpr is one `key=value-expression` pair parsed out of a match
// expression's query string. A key is tolerant of being absent from the
// request exactly when its value expression can match the empty string
// (spec.md §4.6: "Missing keys are allowed only if the corresponding value
// matcher is entirely optional") — there is no separate `key?=` annotation.
type queryKeyExpr struct {
	key              string
	value            *MatchExpression
	entirelyOptional bool
}

// MultiValueMatcher matches both a request path and a set of query
// parameters in a single pass: the path against a compiled MatchExpression,
// and each declared query key's value against its own compiled
// MatchExpression.
type MultiValueMatcher struct {
	Source string

	Path *MatchExpression

	queryOrder []string
	query      map[string]queryKeyExpr

	IgnoreCase              bool
	QueryKeysIgnoreCase     bool
	ProhibitExcessQueryKeys bool
	Raw                     bool
}

// CompileMultiValue compiles a path-and-query match expression and also
// returns the raw `[flag]` tokens that trailed it, in source order, so that
// callers outside this package (provider= / vN version gating) can
// interpret the ones they own.
func CompileMultiValue(expr string, interner *charclass.Interner) (*MultiValueMatcher, []string, error) {
	body, flags := peelFlags(expr)

	mvm := &MultiValueMatcher{Source: expr, query: make(map[string]queryKeyExpr)}
	for _, f := range flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "case-insensitive":
			mvm.IgnoreCase = true
		case "query-keys-ignore-case":
			mvm.QueryKeysIgnoreCase = true
		case "prohibit-excess-query-keys":
			mvm.ProhibitExcessQueryKeys = true
		case "raw":
			mvm.Raw = true
		}
	}

	pathPart, queryPart, hasQuery := splitPathQuery(body)

	pathExpr, err := Compile(pathPart, mvm.IgnoreCase, interner)
	if err != nil {
		return nil, nil, fmt.Errorf("matcher: path: %w", err)
	}
	mvm.Path = pathExpr

	if hasQuery && queryPart != "" {
		pairs := splitUnescaped(queryPart, '&')
		for _, pair := range pairs {
			eqParts := splitUnescaped(pair, '=')
			if len(eqParts) != 2 {
				return nil, nil, fmt.Errorf("matcher: query clause %q must be key=value-expression", pair)
			}
			key := strings.TrimSpace(eqParts[0])
			valueExpr, err := Compile(eqParts[1], mvm.IgnoreCase, interner)
			if err != nil {
				return nil, nil, fmt.Errorf("matcher: query key %q: %w", key, err)
			}
			mvm.query[key] = queryKeyExpr{key: key, value: valueExpr, entirelyOptional: valueExpr.MatchesEmpty()}
			mvm.queryOrder = append(mvm.queryOrder, key)
		}
	}

	return mvm, flags, nil
}

// QueryKeys returns the declared query keys in source order.
func (m *MultiValueMatcher) QueryKeys() []string {
	return append([]string(nil), m.queryOrder...)
}

// CapturedVariables returns every named capture in m — from the path and
// from every declared query value expression — mapped to whether it should
// be treated as optional by downstream template validation. A variable
// captured from a query value whose key may be entirely absent is optional
// regardless of how its own segment was declared, since the whole clause
// may simply never run.
func (m *MultiValueMatcher) CapturedVariables() map[string]bool {
	vars := m.Path.CapturedVariables()
	for _, key := range m.queryOrder {
		qke := m.query[key]
		for name, optional := range qke.value.CapturedVariables() {
			vars[name] = optional || qke.entirelyOptional
		}
	}
	return vars
}

// Match matches path against m.Path and, for each declared query key,
// matches the first value in query against that key's compiled expression.
// A required key (one whose value expression cannot match empty) absent
// from query fails the whole match; an entirely-optional key absent from
// query is simply skipped. If ProhibitExcessQueryKeys is set, any key
// present in query but not declared in m fails the match.
func (m *MultiValueMatcher) Match(path string, query map[string][]string) (map[string]string, bool) {
	captures, ok := m.Path.Match(path)
	if !ok {
		return nil, false
	}

	if m.ProhibitExcessQueryKeys {
		for k := range query {
			if _, declared := m.lookupKey(k); !declared {
				return nil, false
			}
		}
	}

	for _, key := range m.queryOrder {
		qke := m.query[key]
		values, present := m.lookupValues(query, key)
		if !present || len(values) == 0 {
			if qke.entirelyOptional {
				continue
			}
			return nil, false
		}
		sub, ok := qke.value.Match(values[0])
		if !ok {
			return nil, false
		}
		for k, v := range sub {
			captures[k] = v
		}
	}

	return captures, true
}

func (m *MultiValueMatcher) lookupKey(k string) (string, bool) {
	if !m.QueryKeysIgnoreCase {
		_, ok := m.query[k]
		return k, ok
	}
	for key := range m.query {
		if strings.EqualFold(key, k) {
			return key, true
		}
	}
	return "", false
}

func (m *MultiValueMatcher) lookupValues(query map[string][]string, key string) ([]string, bool) {
	if !m.QueryKeysIgnoreCase {
		v, ok := query[key]
		return v, ok
	}
	for k, v := range query {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
