// Package routing compiles and evaluates the routing expression language:
// a match side (internal/routing/matcher) paired with a rewrite-target
// template side (internal/routing/template), gated by a provider name and a
// supported expression-version range.
package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/imageflow/cascade/internal/routing/charclass"
	"github.com/imageflow/cascade/internal/routing/matcher"
	"github.com/imageflow/cascade/internal/routing/template"
)

// MinSupportedVersion and MaxSupportedVersion bound the `vN` expression
// version flag this build understands. An expression declaring a version
// outside this range is rejected at compile time rather than silently
// mismatching newer syntax against an older engine.
const (
	MinSupportedVersion = 1
	MaxSupportedVersion = 1
)

// ParsedRoutingExpression is one compiled `match => rewrite` rule: a
// MultiValueMatcher that decides whether a request is handled by this rule,
// and a MultiTemplate that rewrites it into an upstream path and query.
type ParsedRoutingExpression struct {
	Source string

	Provider string
	Version  int

	Match   *matcher.MultiValueMatcher
	Rewrite *template.MultiTemplate
}

// Compile parses one `match-expression => rewrite-template` routing rule.
// Flags trailing the match expression in `[...]` blocks are interpreted as
// follows: `provider=<name>` is recorded in Provider for callers to read
// (Route does not filter on it); `vN` declares the expression's syntax
// version, checked against [MinSupportedVersion, MaxSupportedVersion]; any
// other flag (case-insensitive matching, excess query key rejection, and so
// on) is passed straight through to the compiled matcher.
func Compile(rule string, interner *charclass.Interner, safety template.Safety) (*ParsedRoutingExpression, error) {
	matchSrc, rewriteSrc, ok := splitRule(rule)
	if !ok {
		return nil, fmt.Errorf("routing: expected \"match => rewrite\", got %q", rule)
	}

	mvm, flags, err := matcher.CompileMultiValue(matchSrc, interner)
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}

	pre := &ParsedRoutingExpression{Source: rule, Match: mvm}

	var sawVersion bool
	for _, f := range flags {
		f = strings.TrimSpace(f)
		switch {
		case strings.HasPrefix(strings.ToLower(f), "provider="):
			pre.Provider = f[len("provider="):]
		case len(f) >= 2 && (f[0] == 'v' || f[0] == 'V') && isAllDigits(f[1:]):
			v, err := strconv.Atoi(f[1:])
			if err != nil {
				return nil, fmt.Errorf("routing: invalid version flag %q", f)
			}
			pre.Version = v
			sawVersion = true
		}
	}

	if !sawVersion {
		return nil, fmt.Errorf("routing: expression %q declares no vN version flag; supported range is [%d,%d]",
			rule, MinSupportedVersion, MaxSupportedVersion)
	}
	if pre.Version < MinSupportedVersion || pre.Version > MaxSupportedVersion {
		return nil, fmt.Errorf("routing: expression declares version %d, supported range is [%d,%d]",
			pre.Version, MinSupportedVersion, MaxSupportedVersion)
	}

	rewrite, err := template.CompileMulti(rewriteSrc, safety)
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}

	if err := rewrite.Validate(mvm.CapturedVariables()); err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	pre.Rewrite = rewrite

	return pre, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// splitRule splits "match => rewrite" on the first occurrence of "=>".
func splitRule(rule string) (match string, rewrite string, ok bool) {
	idx := strings.Index(rule, "=>")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(rule[:idx]), strings.TrimSpace(rule[idx+2:]), true
}

// Outcome is the result of evaluating a request against a compiled
// expression: whether it matched, and if so the rewritten upstream path and
// query.
type Outcome struct {
	Matched bool
	Path    string
	Query   map[string]string
}

// Evaluate matches a request path and query against expr and, on a match,
// renders the rewrite template from the captured variables.
func (expr *ParsedRoutingExpression) Evaluate(ctx context.Context, path string, query map[string][]string) (Outcome, error) {
	captures, ok := expr.Match.Match(path, query)
	if !ok {
		return Outcome{}, nil
	}
	rewrittenPath, rewrittenQuery, err := expr.Rewrite.Evaluate(captures)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Matched: true, Path: rewrittenPath, Query: rewrittenQuery}, nil
}

// Engine holds an ordered set of compiled expressions and evaluates a
// request against each in turn, returning the first match. This mirrors
// how an HTTP router typically evaluates routes: first-registered,
// first-matched, with no precedence scoring between rules.
type Engine struct {
	interner *charclass.Interner
	safety   template.Safety
	rules    []*ParsedRoutingExpression
}

// NewEngine returns an Engine using interner for character-class compiles
// (charclass.Default if nil) and safety for every rule's output guard.
func NewEngine(interner *charclass.Interner, safety template.Safety) *Engine {
	if interner == nil {
		interner = charclass.Default
	}
	return &Engine{interner: interner, safety: safety}
}

// AddRule compiles and appends a routing rule, returning the compiled
// expression so callers can inspect it (e.g. for logging its Provider).
func (e *Engine) AddRule(rule string) (*ParsedRoutingExpression, error) {
	expr, err := Compile(rule, e.interner, e.safety)
	if err != nil {
		return nil, err
	}
	e.rules = append(e.rules, expr)
	return expr, nil
}

// Route evaluates path/query against every rule in registration order,
// returning the first match and the expression that produced it.
func (e *Engine) Route(ctx context.Context, path string, query map[string][]string) (*ParsedRoutingExpression, Outcome, error) {
	for _, rule := range e.rules {
		out, err := rule.Evaluate(ctx, path, query)
		if err != nil {
			return nil, Outcome{}, err
		}
		if out.Matched {
			return rule, out, nil
		}
	}
	return nil, Outcome{}, nil
}

// Rules returns the compiled rules in registration order.
func (e *Engine) Rules() []*ParsedRoutingExpression {
	return append([]*ParsedRoutingExpression(nil), e.rules...)
}
