package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/humanmark/forensics/internal/batch"
	"github.com/humanmark/forensics/internal/service"
)

type Model struct {
	updates   <-chan batch.ProgressUpdate
	started   time.Time
	now       func() time.Time
	width     int
	total     int
	processed int
	errors    int
	ai        int
	real      int
	uncertain int
	current   string
	quitting  bool
}

type doneMsg struct{}

type updateMsg batch.ProgressUpdate

func NewModel(updates <-chan batch.ProgressUpdate) Model {
	return Model{updates: updates, started: time.Now(), now: time.Now}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.processed += msg.ProcessedDelta
		m.errors += msg.ErrorDelta
		if msg.ProcessedDelta > 0 {
			switch msg.Verdict {
			case service.VerdictAI:
				m.ai++
			case service.VerdictReal:
				m.real++
			default:
				m.uncertain++
			}
		}
		if msg.File != "" {
			m.current = msg.File
		}
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = min(60, max(20, m.width-10))
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = math.Min(1, float64(m.processed+m.errors)/float64(m.total))
	}

	elapsed := m.now().Sub(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("humanmark"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.processed+m.errors, m.total)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.errors)),
		verdictStyle(service.VerdictAI).Render(fmt.Sprintf("AI: %d", m.ai)) + "  " +
			verdictStyle(service.VerdictReal).Render(fmt.Sprintf("Real: %d", m.real)) + "  " +
			verdictStyle(service.VerdictUncertain).Render(fmt.Sprintf("Uncertain: %d", m.uncertain)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
	}
	if m.current != "" {
		lines = append(lines, dimStyle.Render(truncate(m.current, barWidth+2)))
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan batch.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// truncate keeps the tail of s, which is the informative end of a path.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width < 4 {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorAccentAlt)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
