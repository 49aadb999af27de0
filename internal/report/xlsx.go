package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook.
const (
	SheetResults = "Results"
	SheetSignals = "Signals"
	SheetSummary = "Summary"
)

var resultHeader = []any{"File", "Verdict", "Confidence", "AI Score", "Type", "Width", "Height", "Video", "Processing ms", "Error"}

var signalHeader = []any{"File", "Signal", "Category", "Score", "Weight", "Details"}

// WriteXLSX writes r as a workbook with one row per file, one row per
// signal, and the run summary.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetSignals, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(f, SheetResults, 1, resultHeader); err != nil {
		return err
	}
	if err := writeRow(f, SheetSignals, 1, signalHeader); err != nil {
		return err
	}

	resultRow, signalRow := 2, 2
	for _, file := range r.Files {
		if file.Result == nil {
			row := make([]any, len(resultHeader))
			row[0] = file.Path
			row[len(row)-1] = file.Error
			if err := writeRow(f, SheetResults, resultRow, row); err != nil {
				return err
			}
			resultRow++
			continue
		}

		res := file.Result
		meta := res.Metadata
		if err := writeRow(f, SheetResults, resultRow, []any{
			file.Path, string(res.Verdict), res.Confidence, res.AIScore,
			meta.FileType, meta.Width, meta.Height, meta.IsVideo, res.ProcessingTimeMs, "",
		}); err != nil {
			return err
		}
		resultRow++

		for _, s := range res.Signals {
			if err := writeRow(f, SheetSignals, signalRow, []any{
				file.Path, s.ID, string(s.Category), s.Score, s.Weight, s.Details,
			}); err != nil {
				return err
			}
			signalRow++
		}
	}

	summary := [][]any{
		{"Root", r.Root},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05Z07:00")},
		{"Files", r.Summary.Total},
		{"Analyzed", r.Summary.Processed},
		{"Errors", r.Summary.Errors},
		{"AI", r.Summary.AI},
		{"Real", r.Summary.Real},
		{"Uncertain", r.Summary.Uncertain},
	}
	for i, row := range summary {
		if err := writeRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}

	for _, sheet := range []string{SheetResults, SheetSignals} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
			return fmt.Errorf("size column: %w", err)
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
