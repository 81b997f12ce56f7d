// Package report renders indexing results and diagnostics for the command line.
package report

import (
	"cmp"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/workspace"
)

// Summary counts what an indexing run produced.
type Summary struct {
	Files       int           `json:"files"`
	Definitions int           `json:"definitions"`
	References  int           `json:"references"`
	Cached      int           `json:"cached"`
	Unreadable  int           `json:"unreadable"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	Infos       int           `json:"infos"`
	Hints       int           `json:"hints"`
	Elapsed     time.Duration `json:"elapsedNs"`
}

// OK reports whether no error diagnostics or unreadable files were found.
func (s Summary) OK() bool {
	return s.Errors == 0 && s.Unreadable == 0
}

// Summarize counts results.
func Summarize(results []workspace.Result, elapsed time.Duration) Summary {
	s := Summary{Files: len(results), Elapsed: elapsed}

	for _, r := range results {
		if r.Err != nil {
			s.Unreadable++

			continue
		}

		s.Definitions += r.Definitions
		s.References += r.References

		if r.Cached {
			s.Cached++
		}

		for _, d := range r.Diagnostics {
			switch d.Severity {
			case analysis.SeverityError:
				s.Errors++
			case analysis.SeverityWarning:
				s.Warnings++
			case analysis.SeverityInformation:
				s.Infos++
			case analysis.SeverityHint:
				s.Hints++
			}
		}
	}

	return s
}

// Filter drops diagnostics less severe than minimum. Results keep their order.
func Filter(results []workspace.Result, minimum analysis.DiagnosticSeverity) []workspace.Result {
	out := make([]workspace.Result, 0, len(results))

	for _, r := range results {
		r.Diagnostics = slices.DeleteFunc(slices.Clone(r.Diagnostics), func(d analysis.Diagnostic) bool {
			return d.Severity > minimum
		})
		out = append(out, r)
	}

	return out
}

// Sort orders results by relative path.
func Sort(results []workspace.Result) {
	slices.SortFunc(results, func(a, b workspace.Result) int {
		return cmp.Compare(a.File.Rel, b.File.Rel)
	})
}

// Formatter writes a report of a finished run.
type Formatter interface {
	Format(results []workspace.Result, summary Summary) error
}

// Format names an output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// NewFormatter returns the formatter for a format name, writing to w.
func NewFormatter(format Format, w io.Writer) (Formatter, bool) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), true
	case FormatJSON:
		return NewJSONFormatter(w), true
	default:
		return nil, false
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
