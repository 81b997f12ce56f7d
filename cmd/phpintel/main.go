// Package main provides the phpintel CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "phpintel",
		Version: version,
		Usage:   "PHP workspace indexer and checker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (overrides config)",
				Sources: cli.EnvVars("PHPINTEL_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			checkCommand(),
			symbolsCommand(),
		},
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
