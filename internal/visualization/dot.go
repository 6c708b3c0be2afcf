// Package visualization renders the rule base, membership curves and run
// traces, and serves the interactive control panel over HTTP.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
	"github.com/nvandessel/fuzzbrake/internal/simulation"
)

// Format specifies the output format for rule rendering.
type Format string

const (
	FormatDOT      Format = "dot"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// brakeColors maps consequences to DOT fill colors.
var brakeColors = map[fuzzy.BrakeLabel]string{
	fuzzy.NoBrake:        "palegreen",
	fuzzy.LightBrake:     "khaki",
	fuzzy.ModerateBrake:  "orange",
	fuzzy.StrongBrake:    "tomato",
	fuzzy.EmergencyBrake: "firebrick",
}

// RenderDOT produces a Graphviz DOT graph of the rule base: antecedent
// labels on the left, consequences on the right, one edge pair per rule.
// Rules listed in firing are drawn bold; inactive rules are dashed.
func RenderDOT(rules []fuzzy.Rule, firing []fuzzy.Rule) string {
	fired := make(map[string]bool, len(firing))
	for _, r := range firing {
		fired[r.ID] = true
	}

	var b strings.Builder
	b.WriteString("digraph fuzzbrake {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, l := range fuzzy.SpeedLabels() {
		fmt.Fprintf(&b, "  %q [fillcolor=\"lightblue\"];\n", "speed: "+l.String())
	}
	for _, l := range fuzzy.DistanceLabels() {
		fmt.Fprintf(&b, "  %q [fillcolor=\"lightsteelblue\"];\n", "distance: "+l.String())
	}
	for _, l := range fuzzy.BrakeLabels() {
		fmt.Fprintf(&b, "  %q [fillcolor=%q];\n", l.String(), brakeColors[l])
	}
	b.WriteString("\n")

	for i, r := range rules {
		node := fmt.Sprintf("R%d", i+1)
		style := "solid"
		switch {
		case !r.Active:
			style = "dashed"
		case fired[r.ID]:
			style = "bold"
		}
		fmt.Fprintf(&b, "  %q [shape=circle, fillcolor=\"white\", tooltip=%q, style=\"filled,%s\"];\n",
			node, r.String(), style)
		fmt.Fprintf(&b, "  %q -> %q [style=%s];\n", "speed: "+r.Speed.String(), node, style)
		fmt.Fprintf(&b, "  %q -> %q [style=%s];\n", "distance: "+r.Distance.String(), node, style)
		fmt.Fprintf(&b, "  %q -> %q [style=%s];\n", node, r.Brake.String(), style)
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces the rule table as a JSON-ready map.
func RenderJSON(rules []fuzzy.Rule) map[string]interface{} {
	active := 0
	for _, r := range rules {
		if r.Active {
			active++
		}
	}
	if rules == nil {
		rules = []fuzzy.Rule{}
	}
	return map[string]interface{}{
		"rules":        rules,
		"rule_count":   len(rules),
		"active_count": active,
	}
}

// RenderMarkdown produces the rule table as a markdown table. Rules in
// firing are marked in the last column.
func RenderMarkdown(rules []fuzzy.Rule, firing []fuzzy.Rule) string {
	fired := make(map[string]bool, len(firing))
	for _, r := range firing {
		fired[r.ID] = true
	}

	var b strings.Builder
	b.WriteString("| # | Speed | Distance | Brake | Active | Firing |\n")
	b.WriteString("|---|-------|----------|-------|--------|--------|\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, r.Speed, r.Distance, r.Brake, yesNo(r.Active), yesNo(fired[r.ID]))
	}
	return b.String()
}

// htmlTemplateData holds data passed to the control panel template.
// StateJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	APIBaseURL string
	StateJSON  template.JS
}

// RenderHTML produces the control panel page seeded with the given state.
// The page polls apiBaseURL for updates.
func RenderHTML(state simulation.State, apiBaseURL string) ([]byte, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	tmplBytes, err := templates.ReadFile("templates/panel.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read HTML template: %w", err)
	}

	tmpl, err := template.New("panel").Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("parse HTML template: %w", err)
	}

	// Escape state JSON for safe inline <script> embedding.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, stateJSON)

	var buf bytes.Buffer
	data := htmlTemplateData{
		APIBaseURL: apiBaseURL,
		StateJSON:  template.JS(escaped.String()), // #nosec G203
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}

	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
