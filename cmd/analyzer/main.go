package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/park285/Cheese-Video-Analyzer/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
	}
	defer obslog.Sync()

	runner := NewRunner(os.Stdout, os.Stderr)
	app := &cli.Command{
		Name:  "analyzer",
		Usage: "Submit a chess video for analysis and download the game record",
		Commands: []*cli.Command{
			submitCommand(runner),
			configCommand(runner),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		obslog.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func submitCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Upload a video, follow the analysis and save the game record",
		ArgsUsage: "<video>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Path to write the game record to",
				Value:   "game.pgn",
			},
			&cli.StringFlag{
				Name:  "preview",
				Usage: "Path to write a PNG of the final position to",
			},
		},
		Action: r.Submit,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Print the effective configuration",
		Action: r.Config,
	}
}
