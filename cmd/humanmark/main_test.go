package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/humanmark/forensics/internal/config"
	"github.com/humanmark/forensics/internal/report"
	"github.com/humanmark/forensics/internal/service"
	"github.com/humanmark/forensics/internal/testfixture"
	"github.com/humanmark/forensics/pkg/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HUMANMARK_CONFIG", "")
	for _, k := range []string{"ENV", "PORT", "LOG_LEVEL", "STORAGE_BACKEND", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mediaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tagged := testfixture.WithPNGChunks(
		testfixture.PNG(testfixture.Photo(64, 48, 1)),
		testfixture.TextChunk("Software", "Midjourney"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "render.png"), tagged, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), testfixture.JPEG(testfixture.Photo(64, 48, 2), 90), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))
	return dir
}

func TestEngineOptions(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	cfg.Workers = 3
	cfg.FFmpegPath = "/opt/ffmpeg"
	cfg.Weights = map[string]float64{"fft_spectrum": 2}

	opts := engineOptions(cfg)
	assert.Equal(t, cfg.MaxDimension, opts.MaxDimension)
	assert.Equal(t, cfg.MaxImageBytes, opts.MaxBytes)
	assert.Equal(t, cfg.MaxPixels, opts.MaxPixels)
	assert.Equal(t, cfg.MaxVideoBytes, opts.MaxVideoBytes)
	assert.Equal(t, cfg.VideoMaxFrames, opts.VideoMaxFrames)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, "/opt/ffmpeg", opts.FFmpegPath)
	assert.Equal(t, cfg.BlockSize, opts.Params.BlockSize)
	assert.Equal(t, cfg.SpectralWindow, opts.Params.SpectralWindow)
	assert.Equal(t, 2.0, opts.Weights["fft_spectrum"])

	cfg.Weights["fft_spectrum"] = 9
	assert.Equal(t, 2.0, opts.Weights["fft_spectrum"], "weights are copied")
}

func TestAnalyzeCommand(t *testing.T) {
	dir := mediaDir(t)
	outDir := t.TempDir()
	reportPath := filepath.Join(outDir, "out", "report.json")
	xlsxPath := filepath.Join(outDir, "report.xlsx")

	out, err := run(t, "analyze", dir, "--quiet", "--workers", "2", "--report", reportPath, "--xlsx", xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Files     | 2")
	assert.NotContains(t, out, "notes.txt")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Len(t, rep.Files, 2)
	assert.Equal(t, "photo.jpg", rep.Files[0].Path)
	assert.Equal(t, "render.png", rep.Files[1].Path)
	assert.NoError(t, rep.Validate())

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetResults)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAnalyzeCommandJSON(t *testing.T) {
	out, err := run(t, "analyze", mediaDir(t), "--json")
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.Summary.Total)
	for _, f := range rep.Files {
		require.NotNil(t, f.Result, f.Path)
		assert.NotEmpty(t, f.Result.Signals)
	}
}

func TestAnalyzeCommandDetails(t *testing.T) {
	out, err := run(t, "analyze", filepath.Join(mediaDir(t), "render.png"), "--quiet=false", "--json=false", "--workers", "1", "--log-level", "error")
	// the progress UI renders to stderr; stdout carries the per-file lines
	require.NoError(t, err)
	assert.Contains(t, out, "render.png")
	assert.Contains(t, out, "metadata_signature")
}

func TestAnalyzeCommandErrors(t *testing.T) {
	t.Run("nothing to analyze", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
		_, err := run(t, "analyze", dir, "--quiet")
		assert.ErrorContains(t, err, "no supported media")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := run(t, "analyze", filepath.Join(t.TempDir(), "absent"), "--quiet")
		assert.Error(t, err)
	})

	t.Run("arguments", func(t *testing.T) {
		_, err := run(t, "analyze")
		assert.Error(t, err)
	})
}

func TestSignalsCommand(t *testing.T) {
	out, err := run(t, "signals", "--json")
	require.NoError(t, err)

	var entries []service.CatalogueEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, "metadata_signature", entries[0].ID)

	table, err := run(t, "signals")
	require.NoError(t, err)
	assert.Contains(t, table, "ID")
	assert.Contains(t, table, "metadata_signature")
}

func TestSignalsCommandUsesConfigWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "humanmark.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine.weights]\nfft_spectrum = 7.5\n"), 0o644))

	out, err := run(t, "--config", path, "signals", "--json")
	require.NoError(t, err)

	var entries []service.CatalogueEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	for _, e := range entries {
		if e.ID == "fft_spectrum" {
			assert.Equal(t, 7.5, e.Weight)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "humanmark.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	_, err = run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", path, "--force")
	require.NoError(t, err)

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Engine.Weights)

	shown, err := run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, shown, "port: 8080")
	assert.Contains(t, shown, "metadata_signature")
}

func TestApplyReload(t *testing.T) {
	engine, err := service.NewEngine(service.DefaultOptions(), logger.NopLogger())
	require.NoError(t, err)

	weightOf := func(id string) float64 {
		for _, e := range engine.Catalogue() {
			if e.ID == id {
				return e.Weight
			}
		}
		t.Fatalf("no %s", id)
		return 0
	}
	before := weightOf("fft_spectrum")

	next := config.DefaultConfig()
	next.Engine.Weights = map[string]float64{"fft_spectrum": before + 4}
	applyReload(engine, logger.NopLogger(), next)
	assert.Equal(t, before+4, weightOf("fft_spectrum"))

	next.Engine.Weights = map[string]float64{"unknown_module": 1}
	applyReload(engine, logger.NopLogger(), next)
	assert.Equal(t, before+4, weightOf("fft_spectrum"), "invalid weights keep the previous table")

	next.Engine.Weights = nil
	applyReload(engine, logger.NopLogger(), next)
	assert.Equal(t, before, weightOf("fft_spectrum"))
}
