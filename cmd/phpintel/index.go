package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rlch/phpintel/report"
	"github.com/rlch/phpintel/workspace"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index a PHP workspace and print counts",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output the summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "dump indexing metrics in the Prometheus text format",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "show a progress line while indexing",
			},
			&cli.DurationFlag{
				Name:  "prune-cache",
				Usage: "after indexing, drop cache entries not written within this duration",
			},
		},
		Action: runIndex,
	}
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	dir, err := workspaceDir(cmd)
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

	if maxAge := cmd.Duration("prune-cache"); maxAge > 0 {
		_, err = s.pruneCache(ctx, maxAge)
		if err != nil {
			return err
		}
	}

	report.Sort(results)

	// Only counts: diagnostics are what check is for.
	results = report.Filter(results, 0)
	summary := report.Summarize(results, time.Since(start))

	format := report.FormatText
	if cmd.Bool("json") {
		format = report.FormatJSON
	}

	formatter, _ := report.NewFormatter(format, os.Stdout)

	err = formatter.Format(results, summary)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if cmd.Bool("metrics") {
		err = workspace.WriteMetrics(os.Stdout)
		if err != nil {
			return err
		}
	}

	return nil
}
