package routing

import (
	"context"
	"testing"

	"github.com/imageflow/cascade/internal/routing/template"
)

func TestCompileAndEvaluateSimpleRule(t *testing.T) {
	expr, err := Compile("/images/{name}/{width:int}x{height:int}[v1] => /origin/{name}?w={width}&h={height}", nil, template.Safety{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := expr.Evaluate(context.Background(), "/images/cat.png/800x600", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Matched {
		t.Fatal("expected match")
	}
	if out.Path != "/origin/cat.png" {
		t.Fatalf("unexpected path %q", out.Path)
	}
	if out.Query["w"] != "800" || out.Query["h"] != "600" {
		t.Fatalf("unexpected query %+v", out.Query)
	}
}

func TestCompileRejectsUnsupportedVersion(t *testing.T) {
	_, err := Compile("/a[v2] => /b", nil, template.Safety{})
	if err == nil {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestCompileParsesProviderFlag(t *testing.T) {
	expr, err := Compile("/fast/{name}[provider=memory][v1] => /origin/{name}", nil, template.Safety{})
	if err != nil {
		t.Fatal(err)
	}
	if expr.Provider != "memory" {
		t.Fatalf("expected provider=memory, got %q", expr.Provider)
	}
}

func TestCompileRejectsMissingVersionFlag(t *testing.T) {
	_, err := Compile("/a => /b", nil, template.Safety{})
	if err == nil {
		t.Fatal("expected an expression with no vN flag at all to be rejected")
	}
}

func TestEngineRoutesFirstMatchInOrder(t *testing.T) {
	e := NewEngine(nil, template.Safety{})
	if _, err := e.AddRule("/special/{id:int}[v1] => /vip/{id}"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddRule("/{rest:**}[v1] => /catchall/{rest}"); err != nil {
		t.Fatal(err)
	}

	_, out, err := e.Route(context.Background(), "/special/42", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Path != "/vip/42" {
		t.Fatalf("expected the specific rule to win, got %q", out.Path)
	}

	_, out, err = e.Route(context.Background(), "/special/not-an-int", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Path != "/catchall/special/not-an-int" {
		t.Fatalf("expected fallthrough to the catch-all rule, got %q", out.Path)
	}
}

func TestEngineNoMatch(t *testing.T) {
	e := NewEngine(nil, template.Safety{})
	if _, err := e.AddRule("/only/{id:int}[v1] => /origin/{id}"); err != nil {
		t.Fatal(err)
	}
	rule, out, err := e.Route(context.Background(), "/nope", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rule != nil || out.Matched {
		t.Fatal("expected no rule to match")
	}
}
