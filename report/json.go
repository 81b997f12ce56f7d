package report

import (
	"encoding/json"
	"io"

	"github.com/rlch/phpintel/workspace"
)

// JSONFormatter writes the whole report as one JSON document.
type JSONFormatter struct {
	w io.Writer
}

// NewJSONFormatter creates a JSON formatter writing to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{w: w}
}

type jsonReport struct {
	OK      bool       `json:"ok"`
	Summary Summary    `json:"summary"`
	Files   []jsonFile `json:"files"`
}

type jsonFile struct {
	Path        string           `json:"path"`
	URI         string           `json:"uri"`
	Error       string           `json:"error,omitempty"`
	Cached      bool             `json:"cached,omitempty"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

// jsonDiagnostic uses 1-based lines and columns, like the text report.
type jsonDiagnostic struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
}

// Format writes the report.
func (f *JSONFormatter) Format(results []workspace.Result, summary Summary) error {
	report := jsonReport{
		OK:      summary.OK(),
		Summary: summary,
		Files:   make([]jsonFile, 0, len(results)),
	}

	for _, r := range results {
		file := jsonFile{
			Path:        r.File.Rel,
			URI:         r.File.URI,
			Cached:      r.Cached,
			Diagnostics: make([]jsonDiagnostic, 0, len(r.Diagnostics)),
		}

		if r.Err != nil {
			file.Error = r.Err.Error()
		}

		for _, d := range r.Diagnostics {
			file.Diagnostics = append(file.Diagnostics, jsonDiagnostic{
				Line:      d.Span.Start.Line + 1,
				Column:    d.Span.Start.Column + 1,
				EndLine:   d.Span.End.Line + 1,
				EndColumn: d.Span.End.Column + 1,
				Severity:  d.Severity.String(),
				Message:   d.Message,
				Code:      d.Code,
			})
		}

		report.Files = append(report.Files, file)
	}

	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")

	return enc.Encode(report)
}
