package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/san-kum/odeguard/internal/config"
	"github.com/san-kum/odeguard/internal/problems"
)

// ProblemMarkdown documents a problem, its parameters and its presets.
func ProblemMarkdown(p *problems.Problem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", p.Name, p.Description)
	fmt.Fprintf(&b, "- **domain**: %s\n", p.Domain)
	fmt.Fprintf(&b, "- **dimension**: %d\n", p.System.StateDim())
	fmt.Fprintf(&b, "- **initial state**: `%v`\n", []float64(p.State0))
	fmt.Fprintf(&b, "- **time span**: [%g, %g]\n", p.Span[0], p.Span[1])
	if p.Residual != nil {
		fmt.Fprintf(&b, "- **residual components**: %d\n", max(p.ResidualSize, 1))
	}
	if p.Invariant != nil {
		b.WriteString("- **conserved quantity**: tracked as `invariant_drift`\n")
	}

	if len(p.ParamNames) > 0 {
		b.WriteString("\n## Parameters\n\n| name | default |\n|------|---------|\n")
		for i, n := range p.ParamNames {
			fmt.Fprintf(&b, "| %s | %g |\n", n, p.Params[i])
		}
	}

	if presets := config.ListPresets(p.Name); len(presets) > 0 {
		b.WriteString("\n## Presets\n\n| preset | method | guard |\n|--------|--------|-------|\n")
		for _, name := range presets {
			c := config.GetPreset(p.Name, name)
			domain := c.Guard.Domain
			if domain == "" {
				domain = string(p.Domain)
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", name, c.Method, domain)
		}
	}
	return b.String()
}

// Describe renders ProblemMarkdown for the terminal. An empty style picks
// one from the terminal background.
func Describe(p *problems.Problem, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(ProblemMarkdown(p))
}
