package charclass

import "testing"

func TestParseRangeAndNegation(t *testing.T) {
	c, err := Parse("a-z0-9_")
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []byte("az09_") {
		if !c.Contains(b) {
			t.Fatalf("expected %q to be a member", b)
		}
	}
	if c.Contains('A') {
		t.Fatal("expected uppercase to be excluded")
	}

	neg, err := Parse("^aeiou")
	if err != nil {
		t.Fatal(err)
	}
	if neg.Contains('a') {
		t.Fatal("expected negated class to exclude 'a'")
	}
	if !neg.Contains('z') {
		t.Fatal("expected negated class to include 'z'")
	}
}

func TestParseEscapesAndPredefinedWord(t *testing.T) {
	c, err := Parse(`\]\\\-`)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []byte("]\\-") {
		if !c.Contains(b) {
			t.Fatalf("expected escaped %q to be a member", b)
		}
	}

	w, err := Parse(`\w`)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Contains('A') || !w.Contains('9') || !w.Contains('_') {
		t.Fatal("expected \\w to include letters, digits, underscore")
	}
	if w.Contains('-') {
		t.Fatal("expected \\w to exclude '-'")
	}
}

func TestParseRejectsBadRange(t *testing.T) {
	if _, err := Parse("z-a"); err == nil {
		t.Fatal("expected error for descending range")
	}
}

func TestInternerReusesInstanceAndEvicts(t *testing.T) {
	in := NewInterner(2)

	a1, err := in.Intern("a-z")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := in.Intern("a-z")
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatal("expected interning the same pattern twice to return the identical instance")
	}

	if _, err := in.Intern("0-9"); err != nil {
		t.Fatal(err)
	}
	// third distinct pattern evicts the LRU entry ("a-z", since "0-9" touched
	// more recently than the reused "a-z").
	if _, err := in.Intern("A-Z"); err != nil {
		t.Fatal(err)
	}

	a3, err := in.Intern("a-z")
	if err != nil {
		t.Fatal(err)
	}
	if a3 == a1 {
		t.Fatal("expected a-z to have been evicted and recompiled into a new instance")
	}
}
