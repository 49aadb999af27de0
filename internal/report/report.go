// Package report turns batch results into machine-readable reports: a JSON
// document whose analyses are validated against the published
// AnalysisResult schema, and an XLSX workbook for people.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/humanmark/forensics/internal/batch"
	"github.com/humanmark/forensics/internal/service"
)

// SchemaURL identifies the embedded AnalysisResult schema.
const SchemaURL = "https://humanmark.dev/schema/analysis-result-v1.schema.json"

//go:embed schema/analysis-result-v1.schema.json
var resultSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the raw AnalysisResult JSON schema.
func Schema() []byte {
	return append([]byte(nil), resultSchema...)
}

func analysisSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(SchemaURL, bytes.NewReader(resultSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(SchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateJSON checks one serialized AnalysisResult against the schema.
func ValidateJSON(data []byte) error {
	schema, err := analysisSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}

// ValidateResult serializes r and checks it against the schema.
func ValidateResult(r *service.AnalysisResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return ValidateJSON(data)
}

// Report is the JSON document written by `analyze --report`.
type Report struct {
	Tool        string        `json:"tool"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Root        string        `json:"root"`
	Summary     batch.Summary `json:"summary"`
	Files       []FileReport  `json:"files"`
}

// FileReport is one analyzed file. Exactly one of Result and Error is set.
type FileReport struct {
	Path   string                  `json:"path"`
	Result *service.AnalysisResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Build assembles a report from a batch run.
func Build(root string, summary batch.Summary, results []batch.Result, now time.Time) *Report {
	rep := &Report{
		Tool:        "humanmark",
		GeneratedAt: now.UTC(),
		Root:        root,
		Summary:     summary,
		Files:       make([]FileReport, 0, len(results)),
	}
	for _, res := range results {
		fr := FileReport{Path: res.RelPath, Result: res.Analysis}
		if res.Err != nil {
			fr.Result = nil
			fr.Error = res.Err.Error()
		}
		rep.Files = append(rep.Files, fr)
	}
	return rep
}

// Validate checks every contained result against the schema.
func (r *Report) Validate() error {
	for _, f := range r.Files {
		if f.Result == nil {
			continue
		}
		if err := ValidateResult(f.Result); err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
	}
	return nil
}

// WriteJSON validates r and writes it indented to w.
func WriteJSON(w io.Writer, r *Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
