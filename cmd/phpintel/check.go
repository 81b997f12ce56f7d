package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/report"
	"github.com/rlch/phpintel/workspace"
)

var (
	ErrDiagnostics     = errors.New("errors found")
	ErrUnknownFormat   = errors.New("unknown format")
	ErrUnknownSeverity = errors.New("unknown severity")
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Print diagnostics for a PHP workspace",
		ArgsUsage: "[dir | files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format (text, json)",
				Value:   string(report.FormatText),
			},
			&cli.StringFlag{
				Name:  "severity",
				Usage: "minimum severity to report (error, warning, info, hint)",
				Value: "hint",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "show a progress line while indexing",
			},
		},
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	formatter, ok := report.NewFormatter(report.Format(cmd.String("format")), os.Stdout)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, cmd.String("format"))
	}

	minimum, err := parseSeverity(cmd.String("severity"))
	if err != nil {
		return err
	}

	dir, files, err := checkTargets(cmd.Args().Slice())
	if err != nil {
		return err
	}

	var (
		opts []workspace.Option
		tui  *report.TUI
	)

	if cmd.Bool("tui") {
		tui = report.NewTUI(os.Stderr)
		opts = append(opts, workspace.WithHandler(tui))
	}

	s, err := openSession(cmd, dir, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if tui != nil {
		tui.Start()
	}

	start := time.Now()
	results, err := s.indexAll(ctx)

	if tui != nil {
		tui.Finish()
	}

	if err != nil {
		return err
	}

	// The whole workspace is indexed so names resolve; only the named files are reported.
	if len(files) > 0 {
		results = slices.DeleteFunc(results, func(r workspace.Result) bool {
			return !slices.Contains(files, r.File.Path)
		})
	}

	report.Sort(results)
	results = report.Filter(results, minimum)

	summary := report.Summarize(results, time.Since(start))

	err = formatter.Format(results, summary)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !summary.OK() {
		return ErrDiagnostics
	}

	return nil
}

// checkTargets splits the arguments into the workspace directory and the
// files to report. Without arguments the working directory is checked.
func checkTargets(args []string) (string, []string, error) {
	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("getting working directory: %w", err)
		}

		return wd, nil, nil
	}

	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("checking %s: %w", args[0], err)
		}

		if info.IsDir() {
			return args[0], nil, nil
		}
	}

	files := make([]string, 0, len(args))

	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", nil, fmt.Errorf("resolving path %s: %w", arg, err)
		}

		files = append(files, abs)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("getting working directory: %w", err)
	}

	return wd, files, nil
}

func parseSeverity(name string) (analysis.DiagnosticSeverity, error) {
	for _, sev := range []analysis.DiagnosticSeverity{
		analysis.SeverityError,
		analysis.SeverityWarning,
		analysis.SeverityInformation,
		analysis.SeverityHint,
	} {
		if strings.EqualFold(sev.String(), name) {
			return sev, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownSeverity, name)
}
