package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/noraneko-dev/cachesweep/internal/core"
	"github.com/noraneko-dev/cachesweep/internal/gh"
	"github.com/noraneko-dev/cachesweep/internal/history"
	"github.com/noraneko-dev/cachesweep/internal/models"
	"github.com/noraneko-dev/cachesweep/internal/report"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config holds everything a sweep needs. It is built once in main and
// never mutated afterwards.
type Config struct {
	Repo           string
	Token          string
	APIBaseURL     string
	ThresholdBytes int64
	DryRun         bool
	ReportFile     string
	HistoryDB      string
}

var (
	ErrInvalidThreshold = errors.New("size threshold must be a positive number of bytes")
	ErrInvalidRepo      = errors.New("repository must be in owner/name form")
	ErrMissingToken     = errors.New("a token with actions:write scope is required")
)

// Validate rejects broken configuration before any network call is made.
func (c Config) Validate() error {
	if c.ThresholdBytes <= 0 {
		return ErrInvalidThreshold
	}

	owner, name, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w, got %q", ErrInvalidRepo, c.Repo)
	}

	if c.Token == "" {
		return ErrMissingToken
	}

	return nil
}

type Runner struct {
	cfg    Config
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger, cfg Config) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run performs a single sweep and prints its summary. Only configuration
// and listing errors are returned; individual delete failures end up in
// the report.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		r.logger.Info("Elapsed time", zap.Duration("elapsed", time.Since(start)))
	}()

	if err := r.cfg.Validate(); err != nil {
		return err
	}

	client, err := gh.NewClient(r.cfg.APIBaseURL, r.cfg.Token, r.cfg.Repo, r.logger)
	if err != nil {
		return err
	}

	sweeper := &core.Sweeper{
		Store:          client,
		Repo:           r.cfg.Repo,
		ThresholdBytes: r.cfg.ThresholdBytes,
		DryRun:         r.cfg.DryRun,
		Logger:         r.logger,
	}

	swept, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, report.Summary(swept))

	if r.cfg.ReportFile != "" {
		if err := report.WriteFile(r.cfg.ReportFile, swept); err != nil {
			return fmt.Errorf("writing report to %v: %w", r.cfg.ReportFile, err)
		}
	}

	if r.cfg.HistoryDB != "" {
		if err := r.record(swept); err != nil {
			r.logger.Error("Cannot record sweep in history", zap.Error(err))
		}
	}

	return nil
}

func (r *Runner) record(swept *models.SweepReport) error {
	db, err := history.Connect(r.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("Cannot close history database", zap.Error(err))
		}
	}()

	digest, err := history.NewStore(db, r.logger).Record(swept)
	if err != nil {
		return err
	}

	r.logger.Debug("Recorded sweep", zap.String("digest", fmt.Sprintf("%x", digest)))
	return nil
}

// Watch runs a sweep on the given cron schedule until ctx is cancelled.
// Runs are serial; a run's failure is logged and the schedule carries on.
func (r *Runner) Watch(ctx context.Context, schedule string) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("Scheduled sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	r.logger.Info("Watching", zap.String("schedule", schedule))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	return nil
}

// History lists previously recorded sweeps from the history database.
func (r *Runner) History() ([]string, error) {
	if r.cfg.HistoryDB == "" {
		return nil, errors.New("history is disabled (--history-db is empty)")
	}

	db, err := history.Connect(r.cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("Cannot close history database", zap.Error(err))
		}
	}()

	reports, err := history.NewStore(db, r.logger).List()
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(reports))
	for _, rep := range reports {
		mode := "live"
		if rep.DryRun {
			mode = "dry-run"
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s  found=%d selected=%d deleted=%d failed=%d freed=%d bytes",
			rep.StartedAt.Format(time.RFC3339), rep.Repo, mode,
			rep.Found, rep.Selected, rep.Deleted, rep.Failed, rep.FreedBytes))
	}

	return lines, nil
}
