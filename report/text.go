package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rlch/phpintel/workspace"
)

// TextFormatter prints one line per diagnostic followed by a summary.
// Colors are used only when writing to a terminal.
type TextFormatter struct {
	w      io.Writer
	styles *Styles
}

// NewTextFormatter creates a text formatter writing to w.
func NewTextFormatter(w io.Writer) *TextFormatter {
	styles := PlainStyles()
	if IsTerminal(w) {
		styles = DefaultStyles()
	}

	return NewTextFormatterWithStyles(w, styles)
}

// NewTextFormatterWithStyles creates a text formatter with explicit styles.
func NewTextFormatterWithStyles(w io.Writer, styles *Styles) *TextFormatter {
	return &TextFormatter{w: w, styles: styles}
}

// Format writes "path:line:col: severity: message [code]" lines, 1-based.
func (f *TextFormatter) Format(results []workspace.Result, summary Summary) error {
	var b strings.Builder

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "%s: %s\n", f.styles.Path.Render(r.File.Rel), f.styles.Error.Render(r.Err.Error()))

			continue
		}

		for _, d := range r.Diagnostics {
			loc := fmt.Sprintf("%s:%d:%d", r.File.Rel, d.Span.Start.Line+1, d.Span.Start.Column+1)

			b.WriteString(f.styles.Path.Render(loc))
			b.WriteString(": ")
			b.WriteString(f.styles.Severity(d.Severity).Render(d.Severity.String()))
			b.WriteString(": ")
			b.WriteString(d.Message)

			if d.Code != "" {
				b.WriteString(" ")
				b.WriteString(f.styles.Code.Render("[" + d.Code + "]"))
			}

			b.WriteString("\n")
		}
	}

	b.WriteString(f.summaryLine(summary))
	b.WriteString("\n")

	_, err := io.WriteString(f.w, b.String())

	return err
}

func (f *TextFormatter) summaryLine(s Summary) string {
	symbol := f.styles.OK.Render(f.styles.SymbolOK)
	if !s.OK() {
		symbol = f.styles.Error.Render(f.styles.SymbolError)
	}

	counts := []string{
		fmt.Sprintf("%d files", s.Files),
		fmt.Sprintf("%d definitions", s.Definitions),
		fmt.Sprintf("%d references", s.References),
	}

	diags := []string{
		f.count(s.Errors, "error", f.styles.Error.Render),
		f.count(s.Warnings, "warning", f.styles.Warning.Render),
		f.count(s.Infos, "info", f.styles.Info.Render),
		f.count(s.Hints, "hint", f.styles.Hint.Render),
	}

	sep := f.styles.Dim.Render(" | ")
	line := symbol + " " + strings.Join(counts, ", ") + sep + strings.Join(diags, ", ")

	if s.Cached > 0 {
		line += f.styles.Dim.Render(fmt.Sprintf(" (%d cached)", s.Cached))
	}

	if s.Elapsed > 0 {
		line += f.styles.Dim.Render(" [" + formatDuration(s.Elapsed) + "]")
	}

	return line
}

func (f *TextFormatter) count(n int, noun string, render func(...string) string) string {
	text := fmt.Sprintf("%d %s", n, noun)
	if n != 1 {
		text += "s"
	}

	if n == 0 {
		return f.styles.Dim.Render(text)
	}

	return render(text)
}
