package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/humanmark/forensics/internal/service"
)

var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorReal      = lipgloss.Color("#A3BE8C")
	ColorAI        = lipgloss.Color("#BF616A")
	ColorUncertain = lipgloss.Color("#EBCB8B")
)

// VerdictColor is the colour used for v everywhere in the CLI.
func VerdictColor(v service.Verdict) lipgloss.Color {
	switch v {
	case service.VerdictAI:
		return ColorAI
	case service.VerdictReal:
		return ColorReal
	default:
		return ColorUncertain
	}
}

func verdictStyle(v service.Verdict) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(VerdictColor(v))
}
