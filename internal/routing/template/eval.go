package template

import "fmt"

// Evaluate substitutes vars into t, running each variable reference through
// its transform pipeline in order. A variable name absent from vars starts
// the pipeline as null rather than empty, so default/or_var can tell
// "missing" from "present but empty".
func (t *StringTemplate) Evaluate(vars map[string]string) (string, error) {
	value, _, err := t.evaluate(vars)
	return value, err
}

// evaluate renders t and additionally reports whether the result should be
// treated as "optional and empty" — the signal a MultiTemplate query pair
// uses to decide whether to omit itself. A rendered string is optional-empty
// when it came out empty and at least one of its variable references carried
// an optional/? marker; a plain `{id}` reference with no value still renders
// "" but is never optional-empty, so the pair is still emitted as `id=`.
func (t *StringTemplate) evaluate(vars map[string]string) (value string, optionalEmpty bool, err error) {
	var out []byte
	sawOptional := false
	for _, el := range t.elements {
		if el.literal {
			out = append(out, el.text...)
			continue
		}
		raw, present := vars[el.varName]
		st := evalState{value: raw, isNull: !present}
		for _, tr := range el.transforms {
			st, err = tr.apply(st, vars)
			if err != nil {
				return "", false, fmt.Errorf("template: variable %q: %w", el.varName, err)
			}
		}
		if st.optional {
			sawOptional = true
		}
		out = append(out, st.value...)
	}
	rendered := string(out)
	return rendered, sawOptional && rendered == "", nil
}

// Variables returns the distinct variable names this template references,
// in first-use order.
func (t *StringTemplate) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, el := range t.elements {
		if el.literal || seen[el.varName] {
			continue
		}
		seen[el.varName] = true
		names = append(names, el.varName)
	}
	return names
}

// Validate checks that every variable reference in t names a variable known
// to the matcher and, when that variable is optional, that the reference's
// transform chain is equipped to handle its absence (or_var, default, or
// optional/?).
func (t *StringTemplate) Validate(known map[string]bool) error {
	for _, el := range t.elements {
		if el.literal {
			continue
		}
		optional, ok := known[el.varName]
		if !ok {
			return fmt.Errorf("template: variable %q is not captured by the matcher", el.varName)
		}
		if optional && !el.handlesOptional() {
			return fmt.Errorf("template: variable %q is optional in the matcher but its transform chain has no or_var/default/optional handling", el.varName)
		}
	}
	return nil
}
