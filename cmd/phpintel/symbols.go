package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rlch/phpintel"
)

var ErrNoPrefix = errors.New("missing FQN prefix")

func symbolsCommand() *cli.Command {
	return &cli.Command{
		Name:      "symbols",
		Usage:     "List definitions whose FQN starts with a prefix",
		ArgsUsage: "<prefix>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Usage:   "workspace directory",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output definitions as JSON",
			},
		},
		Action: runSymbols,
	}
}

type symbolJSON struct {
	FQN       string `json:"fqn"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Signature string `json:"signature,omitempty"`
}

func runSymbols(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return ErrNoPrefix
	}

	prefix := strings.TrimPrefix(cmd.Args().First(), `\`)

	s, err := openSession(cmd, cmd.String("dir"))
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.indexAll(ctx)
	if err != nil {
		return err
	}

	defs := s.index.Prefix(prefix)

	out := make([]symbolJSON, 0, len(defs))

	for _, def := range defs {
		path, err := phpintel.URIToPath(def.Location.URI)
		if err != nil {
			path = def.Location.URI
		}

		out = append(out, symbolJSON{
			FQN:       def.FQN,
			Kind:      def.Kind.String(),
			Path:      path,
			Line:      def.Location.Span.Start.Line + 1,
			Column:    def.Location.Span.Start.Column + 1,
			Signature: def.Signature,
		})
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	for _, sym := range out {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s:%d:%d\n", sym.Kind, sym.FQN, sym.Path, sym.Line, sym.Column)
	}

	return nil
}
