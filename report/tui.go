package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/workspace"
)

// TUI shows an animated progress line while a workspace is indexed.
// It implements workspace.Handler.
type TUI struct {
	program  *tea.Program
	model    *progressModel
	mu       sync.Mutex
	finished bool
	done     chan struct{}
}

var _ workspace.Handler = (*TUI)(nil)

// NewTUI creates a progress TUI rendering to w.
func NewTUI(w io.Writer) *TUI {
	model := newProgressModel()

	opts := []tea.ProgramOption{
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	}

	// Only read input from a TTY.
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		opts = append(opts, tea.WithInput(nil))
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		done:    make(chan struct{}),
	}
}

// Start runs the TUI event loop in the background.
func (t *TUI) Start() {
	go func() {
		defer close(t.done)

		_, _ = t.program.Run()
	}()
}

// Event forwards an indexing event to the TUI.
func (t *TUI) Event(_ context.Context, event workspace.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return nil
	}

	t.program.Send(progressMsg(event))

	return nil
}

// Finish stops the animation and waits for the TUI to exit.
func (t *TUI) Finish() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()

	t.program.Send(finishMsg{})
	<-t.done
}

// progressModel is the bubbletea model for indexing progress.
type progressModel struct {
	styles  *Styles
	spinner spinner.Model

	phase   workspace.Action
	done    int
	total   int
	current string

	cached   int
	errors   int
	warnings int

	startTime time.Time
	isDone    bool
}

// Messages.
type (
	progressMsg workspace.Event
	finishMsg   struct{}
)

func newProgressModel() *progressModel {
	styles := DefaultStyles()

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerFrames(),
		FPS:    time.Second / 10,
	}
	s.Style = styles.Running

	return &progressModel{
		styles:    styles,
		spinner:   s,
		phase:     workspace.ActionDiscover,
		startTime: time.Now(),
	}
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn // bubbletea.Model interface required by tea.Program
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if !m.isDone {
			var cmd tea.Cmd

			m.spinner, cmd = m.spinner.Update(msg)

			return m, cmd
		}

	case progressMsg:
		m.handleEvent(workspace.Event(msg))

	case finishMsg:
		m.isDone = true

		return m, tea.Quit
	}

	return m, nil
}

func (m *progressModel) handleEvent(event workspace.Event) {
	switch event.Action {
	case workspace.ActionDiscover:
		m.phase = event.Action
		m.total = event.Total

	case workspace.ActionDefine:
		m.phase = event.Action
		m.done, m.total = event.Done, event.Total
		m.current = event.File.Rel

		if event.Cached {
			m.cached++
		}

		for _, d := range event.Diagnostics {
			switch d.Severity {
			case analysis.SeverityError:
				m.errors++
			case analysis.SeverityWarning:
				m.warnings++
			case analysis.SeverityInformation, analysis.SeverityHint:
			}
		}

	case workspace.ActionReference:
		m.phase = event.Action
		m.done, m.total = event.Done, event.Total
		m.current = event.File.Rel

	case workspace.ActionIndexed:
		m.phase = event.Action
		m.done, m.total = event.Done, event.Total
		m.current = ""

	case workspace.ActionRemove:
		// Removals do not move progress.
	}
}

// clearEOL is the ANSI escape sequence to clear from cursor to end of line.
const clearEOL = "\033[K"

func (m *progressModel) View() string {
	if m.isDone {
		return ""
	}

	return m.line() + clearEOL + "\n"
}

func (m *progressModel) line() string {
	phase := map[workspace.Action]string{
		workspace.ActionDiscover:  "discovering",
		workspace.ActionDefine:    "definitions",
		workspace.ActionReference: "references",
		workspace.ActionIndexed:   "indexed",
	}[m.phase]

	parts := []string{
		m.spinner.View(),
		m.styles.Bold.Render(fmt.Sprintf("%-11s", phase)),
		m.progressBar(),
		fmt.Sprintf("%d/%d", m.done, m.total),
	}

	if m.errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("%d errors", m.errors)))
	}

	if m.warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("%d warnings", m.warnings)))
	}

	if m.cached > 0 {
		parts = append(parts, m.styles.Dim.Render(fmt.Sprintf("%d cached", m.cached)))
	}

	parts = append(parts, m.styles.Dim.Render(fmt.Sprintf("[%s]", formatDuration(time.Since(m.startTime)))))

	if m.current != "" {
		parts = append(parts, m.styles.Path.Render(m.current))
	}

	return strings.Join(parts, " ")
}

func (m *progressModel) progressBar() string {
	const barWidth = 20

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	filled := max(min(int(pct*barWidth), barWidth), 0)
	filledChar, emptyChar := ProgressChars()

	return m.styles.ProgressFilled.Render(strings.Repeat(filledChar, filled)) +
		m.styles.ProgressEmpty.Render(strings.Repeat(emptyChar, barWidth-filled))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
