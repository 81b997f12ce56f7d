package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rlch/phpintel/analysis"
)

// Semantic colors, one per diagnostic severity.
var (
	colorError   = lipgloss.Color("#ef4444") // red-500
	colorWarning = lipgloss.Color("#f59e0b") // amber-500
	colorInfo    = lipgloss.Color("#06b6d4") // cyan-500
	colorHint    = lipgloss.Color("#9ca3af") // gray-400
	colorOK      = lipgloss.Color("#10b981") // green-500

	colorDim    = lipgloss.Color("#6b7280") // gray-500
	colorBorder = lipgloss.Color("#374151") // gray-700
	colorAccent = lipgloss.Color("#3b82f6") // blue-500
)

// Styles holds the lipgloss styles shared by the text report and the TUI.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Hint    lipgloss.Style
	OK      lipgloss.Style
	Running lipgloss.Style

	Dim  lipgloss.Style
	Bold lipgloss.Style
	Path lipgloss.Style
	Code lipgloss.Style

	SymbolOK      string
	SymbolError   string
	SymbolPointer string

	ProgressFilled lipgloss.Style
	ProgressEmpty  lipgloss.Style
}

// DefaultStyles returns colored styles.
func DefaultStyles() *Styles {
	return &Styles{
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colorInfo).Bold(true),
		Hint:    lipgloss.NewStyle().Foreground(colorHint),
		OK:      lipgloss.NewStyle().Foreground(colorOK).Bold(true),
		Running: lipgloss.NewStyle().Foreground(colorInfo).Bold(true),

		Dim:  lipgloss.NewStyle().Foreground(colorDim),
		Bold: lipgloss.NewStyle().Bold(true),
		Path: lipgloss.NewStyle().Foreground(colorAccent),
		Code: lipgloss.NewStyle().Foreground(colorDim).Italic(true),

		SymbolOK:      "✓",
		SymbolError:   "✗",
		SymbolPointer: "❯",

		ProgressFilled: lipgloss.NewStyle().Foreground(colorAccent),
		ProgressEmpty:  lipgloss.NewStyle().Foreground(colorBorder),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()

	return &Styles{
		Error:   plain,
		Warning: plain,
		Info:    plain,
		Hint:    plain,
		OK:      plain,
		Running: plain,

		Dim:  plain,
		Bold: plain,
		Path: plain,
		Code: plain,

		SymbolOK:      "ok",
		SymbolError:   "x",
		SymbolPointer: ">",

		ProgressFilled: plain,
		ProgressEmpty:  plain,
	}
}

// Severity returns the style of a diagnostic severity.
func (s *Styles) Severity(sev analysis.DiagnosticSeverity) lipgloss.Style {
	switch sev {
	case analysis.SeverityError:
		return s.Error
	case analysis.SeverityWarning:
		return s.Warning
	case analysis.SeverityInformation:
		return s.Info
	case analysis.SeverityHint:
		return s.Hint
	default:
		return s.Dim
	}
}

// SpinnerFrames returns the braille spinner animation frames.
func SpinnerFrames() []string {
	return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
}

// ProgressChars returns the progress bar characters.
func ProgressChars() (string, string) {
	return "█", "░"
}
