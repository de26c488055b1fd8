package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	sqlkitecli "github.com/sllt/sqlkite/pkg/sqlkite/cli"
)

func main() {
	app := &cli.Command{
		Name:    "sqlkite",
		Usage:   "Render and run dialect-aware SQL from query files",
		Version: CLIVersion,
		Commands: []*cli.Command{
			{
				Name:  "dialects",
				Usage: "List the supported SQL dialects",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return sqlkitecli.Dialects(os.Stdout)
				},
			},
			{
				Name:  "render",
				Usage: "Render every query of a query file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the query file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "dialect",
						Aliases: []string{"d"},
						Usage:   "Target dialect, overrides the dialect of the file",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text or json",
						Value: sqlkitecli.FormatText,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return sqlkitecli.Render(os.Stdout, cmd.String("file"), cmd.String("dialect"), cmd.String("format"))
				},
			},
			{
				Name:  "exec",
				Usage: "Run one query of a query file against the configured database",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the query file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "Folder holding the .env files",
						Value: "./configs",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.StringArg("query")
					if name == "" {
						return fmt.Errorf("please provide a query name, e.g.: sqlkite exec -f queries.yaml recent")
					}

					return sqlkitecli.Exec(ctx, os.Stdout, cmd.String("file"), name, cmd.String("config"))
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
