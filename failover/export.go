package failover

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Exporter writes the record of a run to a file
type Exporter interface {
	Export(result *Result) error
}

// NewExporter returns an exporter for format, or for the extension of
// outputPath when format is empty. Unknown extensions export CSV.
func NewExporter(outputPath string, format Format) Exporter {
	if format == "" {
		if strings.EqualFold(filepath.Ext(outputPath), ".json") {
			format = FormatJSON
		} else {
			format = FormatCSV
		}
	}
	if format == FormatJSON {
		return NewJSONExporter(outputPath)
	}
	return NewCSVExporter(outputPath)
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "passed"
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// CSVExporter writes one row per executed step
type CSVExporter struct {
	outputPath string
}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter(outputPath string) *CSVExporter {
	return &CSVExporter{outputPath: outputPath}
}

// Export writes the executed steps of result
func (e *CSVExporter) Export(result *Result) error {
	file, err := os.Create(e.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "name", "duration_ms", "status", "error"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range result.Steps {
		row := []string{
			strconv.Itoa(s.Step),
			s.Name,
			strconv.FormatInt(s.Duration.Milliseconds(), 10),
			status(s.Err),
			errorText(s.Err),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// JSONExporter writes the whole run, asynchronous signal included
type JSONExporter struct {
	outputPath  string
	prettyPrint bool
}

// NewJSONExporter creates an indented JSON exporter
func NewJSONExporter(outputPath string) *JSONExporter {
	return &JSONExporter{outputPath: outputPath, prettyPrint: true}
}

type stepExport struct {
	Step       int    `json:"step"`
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type runExport struct {
	Passed      bool         `json:"passed"`
	Signal      string       `json:"async_signal"`
	SignalError string       `json:"async_signal_error,omitempty"`
	Steps       []stepExport `json:"steps"`
}

// Export writes result as a single JSON document
func (e *JSONExporter) Export(result *Result) error {
	out := runExport{
		Passed:      result.Passed(),
		Signal:      result.Signal.Outcome.String(),
		SignalError: errorText(result.Signal.Err),
		Steps:       make([]stepExport, 0, len(result.Steps)),
	}
	for _, s := range result.Steps {
		out.Steps = append(out.Steps, stepExport{
			Step:       s.Step,
			Name:       s.Name,
			DurationMS: s.Duration.Milliseconds(),
			Status:     status(s.Err),
			Error:      errorText(s.Err),
		})
	}

	var data []byte
	var err error
	if e.prettyPrint {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(e.outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
