package main

import (
	"fmt"
	"os"

	"github.com/noraneko-dev/cachesweep/internal"
	"github.com/noraneko-dev/cachesweep/internal/history"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	defaultHistory, err := history.DefaultPath()
	if err != nil {
		defaultHistory = ""
	}

	app := &cli.App{
		Name:  "cachesweep",
		Usage: "delete oversized GitHub Actions caches from a repository",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "size-threshold-mb",
				Value: 1,
				Usage: "delete caches strictly larger than this many MiB",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "report what would be deleted without deleting anything",
			},
			&cli.StringFlag{
				Name:    "repo",
				Usage:   "target repository in owner/name form",
				EnvVars: []string{"GITHUB_REPOSITORY"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "token with actions:write scope",
				EnvVars: []string{"GITHUB_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "https://api.github.com",
				Usage:   "GitHub API base URL",
				EnvVars: []string{"GITHUB_API_URL"},
			},
			&cli.StringFlag{
				Name:  "report-file",
				Usage: "write the sweep report as JSON to this path",
			},
			&cli.StringFlag{
				Name:  "history-db",
				Value: defaultHistory,
				Usage: "sweep history database path (empty disables history)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Action: func(c *cli.Context) error {
			runner, err := newRunner(c)
			if err != nil {
				return err
			}
			return runner.Run(c.Context)
		},
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "run sweeps on a cron schedule until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "schedule",
						Usage:    "cron expression, e.g. \"0 3 * * *\"",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					runner, err := newRunner(c)
					if err != nil {
						return err
					}
					return runner.Watch(c.Context, c.String("schedule"))
				},
			},
			{
				Name:  "history",
				Usage: "list previously recorded sweeps, newest first",
				Action: func(c *cli.Context) error {
					runner, err := newRunner(c)
					if err != nil {
						return err
					}

					lines, err := runner.History()
					if err != nil {
						return err
					}
					if len(lines) == 0 {
						fmt.Println("No sweeps recorded yet")
						return nil
					}
					for _, line := range lines {
						fmt.Println(line)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunner(c *cli.Context) (*internal.Runner, error) {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return nil, err
	}

	cfg := internal.Config{
		Repo:           c.String("repo"),
		Token:          c.String("token"),
		APIBaseURL:     c.String("api-url"),
		ThresholdBytes: int64(c.Float64("size-threshold-mb") * 1024 * 1024),
		DryRun:         c.Bool("dry-run"),
		ReportFile:     c.String("report-file"),
		HistoryDB:      c.String("history-db"),
	}

	return internal.NewRunner(logger, cfg), nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
