package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/humanmark/forensics/internal/batch"
	"github.com/humanmark/forensics/internal/service"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// SummaryRows lays out a batch summary for RenderSummary.
func SummaryRows(s batch.Summary) []SummaryRow {
	return []SummaryRow{
		{"Files", fmt.Sprint(s.Total)},
		{"Analyzed", fmt.Sprint(s.Processed)},
		{"Errors", fmt.Sprint(s.Errors)},
		{"AI", fmt.Sprint(s.AI)},
		{"Real", fmt.Sprint(s.Real)},
		{"Uncertain", fmt.Sprint(s.Uncertain)},
	}
}

// RenderResult prints one file's verdict line followed by its signals.
func RenderResult(path string, r *service.AnalysisResult) string {
	verdict := lipgloss.NewStyle().Bold(true).Foreground(VerdictColor(r.Verdict)).
		Render(strings.ToUpper(string(r.Verdict)))

	lines := []string{
		fmt.Sprintf("%s  %s %s", fileStyle.Render(path), verdict,
			dimStyle.Render(fmt.Sprintf("score %d, confidence %d%%", r.AIScore, r.Confidence))),
	}

	idWidth := 0
	for _, s := range r.Signals {
		idWidth = max(idWidth, len(s.ID))
	}
	for _, s := range r.Signals {
		line := fmt.Sprintf("  %s %s %s", bulletStyle.Render("-"),
			labelStyle.Render(padRight(s.ID, idWidth)),
			scoreStyle(s.Score).Render(fmt.Sprintf("%5.1f", s.Score)))
		if s.Details != "" {
			line += "  " + dimStyle.Render(s.Details)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderError prints a file that could not be analyzed.
func RenderError(path string, err error) string {
	return fmt.Sprintf("%s  %s", fileStyle.Render(path), errorStyle.Render(err.Error()))
}

func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= service.AIThreshold:
		return verdictStyle(service.VerdictAI)
	case score <= service.RealThreshold:
		return verdictStyle(service.VerdictReal)
	default:
		return verdictStyle(service.VerdictUncertain)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle  = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	fileStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	bulletStyle = lipgloss.NewStyle().Foreground(ColorDim)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorAI)
)
