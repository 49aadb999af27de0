package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/humanmark/forensics/internal/batch"
	"github.com/humanmark/forensics/internal/report"
	"github.com/humanmark/forensics/internal/tui"
)

type analyzeFlags struct {
	json       bool
	reportPath string
	xlsxPath   string
	workers    int
	quiet      bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze an image, a video or every media file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.analyze(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], f)
		},
	}

	cmd.Flags().BoolVar(&f.json, "json", false, "print the full report as JSON on stdout")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "write a JSON report to this file")
	cmd.Flags().StringVar(&f.xlsxPath, "xlsx", "", "write an XLSX workbook to this file")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "files analyzed in parallel (default: number of CPUs)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "no progress display and no per-file output")
	return cmd
}

func (a *app) analyze(ctx context.Context, stdout, stderr io.Writer, path string, f analyzeFlags) error {
	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	var (
		updates chan batch.ProgressUpdate
		uiDone  chan struct{}
	)
	if !f.quiet && !f.json {
		updates = make(chan batch.ProgressUpdate, 64)
		program := tea.NewProgram(tui.NewModel(updates), tea.WithOutput(stderr), tea.WithInput(nil))
		uiDone = make(chan struct{})
		go func() {
			if _, err := program.Run(); err != nil {
				a.log.Warn("progress display failed", "error", err)
			}
			// keep workers unblocked if the display exits early
			for range updates {
			}
			close(uiDone)
		}()
	}

	summary, results, err := batch.Run(ctx, path, engine, batch.Options{Workers: f.workers}, updates)
	if updates != nil {
		close(updates)
		<-uiDone
	}
	if err != nil {
		return err
	}
	if summary.Total == 0 {
		return fmt.Errorf("no supported media found at %s", path)
	}

	root, _ := filepath.Abs(path)
	rep := report.Build(root, summary, results, time.Now())

	if f.reportPath != "" {
		if err := writeFile(f.reportPath, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if f.xlsxPath != "" {
		if err := writeFile(f.xlsxPath, func(w io.Writer) error { return report.WriteXLSX(w, rep) }); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}

	if f.json {
		return report.WriteJSON(stdout, rep)
	}

	if !f.quiet {
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			if res.Err != nil {
				fmt.Fprintln(stdout, tui.RenderError(res.RelPath, res.Err))
				continue
			}
			fmt.Fprintln(stdout, tui.RenderResult(res.RelPath, res.Analysis))
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintln(stdout, tui.RenderSummary(tui.SummaryRows(summary)))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
