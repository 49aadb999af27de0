package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/internal/batch"
	"github.com/humanmark/forensics/internal/service"
	"github.com/humanmark/forensics/internal/signals"
)

func TestModelUpdate(t *testing.T) {
	updates := make(chan batch.ProgressUpdate, 8)
	m := NewModel(updates)
	start := m.started
	m.now = func() time.Time { return start.Add(1500 * time.Millisecond) }

	msgs := []batch.ProgressUpdate{
		{TotalDelta: 1, File: "a.png"},
		{TotalDelta: 1, File: "b.jpg"},
		{TotalDelta: 1, File: "c.mp4"},
		{ProcessedDelta: 1, Verdict: service.VerdictAI, File: "a.png"},
		{ProcessedDelta: 1, Verdict: service.VerdictReal, File: "b.jpg"},
		{ErrorDelta: 1, File: "c.mp4"},
	}

	var model tea.Model = m
	for _, u := range msgs {
		var cmd tea.Cmd
		model, cmd = model.Update(updateMsg(u))
		require.NotNil(t, cmd)
	}

	got := model.(Model)
	assert.Equal(t, 3, got.total)
	assert.Equal(t, 2, got.processed)
	assert.Equal(t, 1, got.errors)
	assert.Equal(t, 1, got.ai)
	assert.Equal(t, 1, got.real)
	assert.Equal(t, 0, got.uncertain)
	assert.Equal(t, "c.mp4", got.current)

	view := got.View()
	assert.Contains(t, view, "humanmark")
	assert.Contains(t, view, "Files: 3/3")
	assert.Contains(t, view, "errors:1")
	assert.Contains(t, view, "AI: 1")
	assert.Contains(t, view, "Real: 1")
	assert.Contains(t, view, "Uncertain: 0")
	assert.Contains(t, view, "Elapsed: 1.5s")
	assert.Contains(t, view, "["+strings.Repeat("=", 40)+"]")
}

func TestModelLifecycle(t *testing.T) {
	updates := make(chan batch.ProgressUpdate, 1)
	m := NewModel(updates)

	updates <- batch.ProgressUpdate{TotalDelta: 1}
	msg := m.Init()()
	assert.Equal(t, updateMsg(batch.ProgressUpdate{TotalDelta: 1}), msg)

	close(updates)
	msg = listenForUpdates(updates)()
	assert.Equal(t, doneMsg{}, msg)

	model, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, model.View())
}

func TestModelWindowAndKeys(t *testing.T) {
	m := NewModel(nil)

	model, _ := m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	assert.Equal(t, 50, model.(Model).width)
	assert.Contains(t, model.View(), "["+strings.Repeat(" ", 40)+"]")

	model, _ = m.Update(tea.WindowSizeMsg{Width: 12})
	assert.Contains(t, model.View(), "["+strings.Repeat(" ", 20)+"]")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, model.(Model).quitting)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[     ]", renderBar(5, 0))
	assert.Equal(t, "[===  ]", renderBar(5, 0.5))
	assert.Equal(t, "[=====]", renderBar(5, 1))
	assert.Equal(t, "[=====]", renderBar(5, 3))
	assert.Equal(t, "[     ]", renderBar(5, -1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.png", truncate("short.png", 20))
	assert.Equal(t, "...ep/file.png", truncate("very/long/path/deep/file.png", 14))
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(SummaryRows(batch.Summary{Total: 4, Processed: 3, Errors: 1, AI: 2, Real: 1}))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, lines[0], lines[len(lines)-1])
	assert.Contains(t, out, "Uncertain | 0")
	assert.Contains(t, out, "Files     | 4")
}

func TestRenderResult(t *testing.T) {
	r := &service.AnalysisResult{
		Verdict:    service.VerdictAI,
		AIScore:    88,
		Confidence: 80,
		Signals: []signals.Signal{
			{ID: "metadata_signature", Score: 95, Details: "Software: Midjourney"},
			{ID: "fft_spectrum", Score: 40.3},
		},
	}
	out := RenderResult("img/render.png", r)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "img/render.png")
	assert.Contains(t, lines[0], "AI")
	assert.Contains(t, lines[0], "score 88, confidence 80%")
	assert.Contains(t, lines[1], " 95.0")
	assert.Contains(t, lines[1], "Software: Midjourney")
	assert.Contains(t, lines[2], "fft_spectrum       ")
	assert.Contains(t, lines[2], " 40.3")

	assert.Contains(t, RenderError("bad.jpg", errors.New("decode jpeg: EOF")), "decode jpeg: EOF")
}

func TestVerdictColor(t *testing.T) {
	assert.Equal(t, ColorAI, VerdictColor(service.VerdictAI))
	assert.Equal(t, ColorReal, VerdictColor(service.VerdictReal))
	assert.Equal(t, ColorUncertain, VerdictColor(service.VerdictUncertain))
}
