package visualization

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
)

func TestRenderDOT(t *testing.T) {
	rules := []fuzzy.Rule{
		fuzzy.NewRule(fuzzy.Fast, fuzzy.Near, fuzzy.StrongBrake),
		fuzzy.NewRule(fuzzy.Slow, fuzzy.Far, fuzzy.NoBrake),
	}
	rules[1].Active = false

	dot := RenderDOT(rules, rules[:1])

	if !strings.HasPrefix(dot, "digraph fuzzbrake {") {
		t.Error("expected digraph header")
	}
	if !strings.HasSuffix(strings.TrimSpace(dot), "}") {
		t.Error("expected closing brace")
	}
	for _, want := range []string{
		`"speed: Fast" -> "R1" [style=bold]`,
		`"R1" -> "Strong Brake" [style=bold]`,
		`"distance: Far" -> "R2" [style=dashed]`,
		`"Emergency Brake" [fillcolor="firebrick"]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q", want)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	rules := fuzzy.DefaultRules()
	rules[0].Active = false

	out := RenderJSON(rules)
	if out["rule_count"] != 16 {
		t.Errorf("rule_count = %v, want 16", out["rule_count"])
	}
	if out["active_count"] != 15 {
		t.Errorf("active_count = %v, want 15", out["active_count"])
	}

	empty := RenderJSON(nil)
	if r, ok := empty["rules"].([]fuzzy.Rule); !ok || r == nil {
		t.Error("nil rules should render as an empty list")
	}
}

func TestRenderMarkdown(t *testing.T) {
	rules := []fuzzy.Rule{fuzzy.NewRule(fuzzy.VeryFast, fuzzy.VeryNear, fuzzy.EmergencyBrake)}

	md := RenderMarkdown(rules, rules)
	lines := strings.Split(strings.TrimSpace(md), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header, separator and one row", len(lines))
	}
	if lines[2] != "| 1 | Very Fast | Very Near | Emergency Brake | yes | yes |" {
		t.Errorf("row = %q", lines[2])
	}
}

func TestRenderHTML(t *testing.T) {
	state := simulation.NewEngine(simulation.DefaultConfig()).Snapshot()

	html, err := RenderHTML(state, "http://localhost:1234")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !bytes.Contains(html, []byte("http://localhost:1234/api/plot/brake.png")) {
		t.Error("expected plot URLs built from the API base")
	}
	if !bytes.Contains(html, []byte(`"obstacle_position":700`)) {
		t.Error("expected embedded state JSON")
	}
}
