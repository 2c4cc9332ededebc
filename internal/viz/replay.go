package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/odeguard/internal/dynamo"
)

const sparkWidth = 48

type tickMsg time.Time

// Replay steps through a stored trajectory. Components below -Tolerance are
// highlighted as domain violations.
type Replay struct {
	Title     string
	Tolerance float64

	states []dynamo.State
	times  []float64
	series [][]float64

	playHead  int
	component int
	running   bool
	interval  time.Duration
	width     int
}

func NewReplay(title string, states []dynamo.State, times []float64) Replay {
	var series [][]float64
	if len(states) > 0 {
		series = make([][]float64, len(states[0]))
		for c := range series {
			series[c] = make([]float64, len(states))
			for i, s := range states {
				series[c][i] = s[c]
			}
		}
	}
	return Replay{
		Title:    title,
		states:   states,
		times:    times,
		series:   series,
		running:  true,
		interval: time.Second / 30,
		width:    80,
	}
}

func (m Replay) PlayHead() int { return m.playHead }
func (m Replay) Component() int { return m.component }
func (m Replay) Running() bool { return m.running }

func (m Replay) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Replay) Init() tea.Cmd { return m.tick() }

func (m Replay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "left", "h":
			m.running = false
			m.seek(m.playHead - 1)
		case "right", "l":
			m.running = false
			m.seek(m.playHead + 1)
		case "home":
			m.seek(0)
		case "end":
			m.seek(len(m.states) - 1)
		case "tab":
			if len(m.series) > 0 {
				m.component = (m.component + 1) % len(m.series)
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		if m.running {
			if m.playHead >= len(m.states)-1 {
				m.running = false
			} else {
				m.playHead++
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Replay) seek(i int) {
	m.playHead = max(0, min(i, len(m.states)-1))
}

func (m Replay) View() string {
	if len(m.states) == 0 {
		return Subtle.Render("no states to replay") + "\n"
	}

	var b strings.Builder
	status := StatusRunning.Render("▶ playing")
	if !m.running {
		status = StatusPaused.Render("⏸ paused")
	}
	b.WriteString(Title.Render(m.Title) + "  " + status + "\n\n")

	progress := 0.0
	if len(m.states) > 1 {
		progress = float64(m.playHead) / float64(len(m.states)-1)
	}
	b.WriteString(fmt.Sprintf("%s %s %s\n\n",
		MetricLabel.Render("t"),
		MetricValue.Render(fmt.Sprintf("%-12.6g", m.times[m.playHead])),
		ProgressBar(progress, 30)))

	b.WriteString(Panel.Render(m.stateTable()) + "\n\n")

	b.WriteString(MetricLabel.Render(fmt.Sprintf("u%d ", m.component)))
	b.WriteString(Sparkline(m.series[m.component][:m.playHead+1], min(sparkWidth, max(m.width-8, 8))))
	b.WriteString("\n\n")
	b.WriteString(KeyHint.Render("space pause · ←/→ step · tab component · q quit"))
	return b.String()
}

func (m Replay) stateTable() string {
	x := m.states[m.playHead]
	rows := make([]string, len(x))
	for i, v := range x {
		val := MetricValue.Render(fmt.Sprintf("%14.6g", v))
		if v < -m.Tolerance {
			val = Violation.Render(fmt.Sprintf("%14.6g", v))
		}
		label := fmt.Sprintf("u%-3d", i)
		if i == m.component {
			label = Title.Render(label)
		} else {
			label = MetricLabel.Render(label)
		}
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Top, label, val)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
