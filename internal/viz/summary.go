package viz

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/sim"
)

// Summary renders the statistics of one run as a bordered panel.
func Summary(title string, stats dynamo.Stats, guard sim.GuardStats, metrics map[string]float64) string {
	rows := [][2]string{
		{"steps", fmt.Sprint(stats.Steps)},
		{"rejected", fmt.Sprint(stats.Rejected)},
		{"evaluations", fmt.Sprint(stats.Evaluations)},
		{"last dt", fmt.Sprintf("%.4g", stats.LastDt)},
	}
	if guard.Invocations > 0 {
		rows = append(rows,
			[2]string{"guard calls", fmt.Sprint(guard.Invocations)},
			[2]string{"shrinks", fmt.Sprintf("%d (max %d)", guard.ShrinkIterations, guard.MaxShrink)},
			[2]string{"stagnations", fmt.Sprint(guard.Stagnations)},
			[2]string{"sanitized", fmt.Sprint(guard.Sanitized)},
		)
	}
	if guard.Projections > 0 {
		rows = append(rows,
			[2]string{"projections", fmt.Sprint(guard.Projections)},
			[2]string{"newton its", fmt.Sprint(guard.ProjectionIterations)},
			[2]string{"unconverged", fmt.Sprint(guard.Unconverged)},
		)
	}

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		rows = append(rows, [2]string{k, fmt.Sprintf("%.6g", metrics[k])})
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = MetricLabel.Render(r[0]+strings.Repeat(" ", width-len(r[0])+2)) + MetricValue.Render(r[1])
	}

	return Panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		append([]string{Title.Render(title), ""}, lines...)...))
}
