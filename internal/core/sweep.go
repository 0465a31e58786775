package core

import (
	"context"
	"fmt"
	"time"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"go.uber.org/zap"
)

// CacheStore is the remote side of a sweep.
type CacheStore interface {
	ListCaches(ctx context.Context) <-chan models.CacheEntry
	DeleteCache(ctx context.Context, id int64) error
}

// Sweeper deletes caches strictly larger than ThresholdBytes, or only
// reports them when DryRun is set.
type Sweeper struct {
	Store          CacheStore
	Repo           string
	ThresholdBytes int64
	DryRun         bool
	Logger         *zap.Logger
}

// FilterOversized keeps entries with size strictly greater than threshold.
// An entry exactly at the threshold is retained on the remote, not deleted.
// Err-carrying entries pass through so the consumer sees listing failures.
func FilterOversized(entries <-chan models.CacheEntry, threshold int64) <-chan models.CacheEntry {
	oversized := make(chan models.CacheEntry)

	go func() {
		defer close(oversized)

		for e := range entries {
			if e.Err != nil || e.SizeBytes > threshold {
				oversized <- e
			}
		}
	}()

	return oversized
}

// Run executes one sweep: list, filter, then delete each selected entry in
// listing order. A listing failure aborts the sweep; a failed deletion is
// recorded and the sweep moves on to the next entry.
func (s *Sweeper) Run(ctx context.Context) (*models.SweepReport, error) {
	start := time.Now()
	report := &models.SweepReport{
		Repo:           s.Repo,
		DryRun:         s.DryRun,
		ThresholdBytes: s.ThresholdBytes,
		StartedAt:      start.UTC(),
	}

	if s.DryRun {
		s.Logger.Info("Running in DRY-RUN mode: caches will not be deleted")
	}

	for e := range FilterOversized(s.tally(s.Store.ListCaches(ctx), report), s.ThresholdBytes) {
		if e.Err != nil {
			return nil, fmt.Errorf("sweep aborted: %w", e.Err)
		}

		report.Selected++
		report.SelectedBytes += e.SizeBytes

		if s.DryRun {
			s.Logger.Info("Would have deleted cache",
				zap.Int64("id", e.ID),
				zap.String("key", e.Key),
				zap.Int64("size_bytes", e.SizeBytes))
			continue
		}

		s.Logger.Info("Deleting cache",
			zap.Int64("id", e.ID),
			zap.String("key", e.Key),
			zap.Int64("size_bytes", e.SizeBytes))

		if err := s.Store.DeleteCache(ctx, e.ID); err != nil {
			s.Logger.Error("Cannot delete cache",
				zap.Int64("id", e.ID),
				zap.String("key", e.Key),
				zap.Error(err))

			report.Failed++
			report.Failures = append(report.Failures, models.DeleteFailure{
				ID:    e.ID,
				Key:   e.Key,
				Cause: err.Error(),
			})
			continue
		}

		report.Deleted++
		report.FreedBytes += e.SizeBytes
	}

	report.Elapsed = time.Since(start)
	s.Logger.Info("Sweep finished",
		zap.Int("found", report.Found),
		zap.Int("selected", report.Selected),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Int64("freed_bytes", report.FreedBytes),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}

// tally counts listed entries on their way into the filter. The count is
// complete once the downstream channel closes, which happens before Run
// returns the report.
func (s *Sweeper) tally(entries <-chan models.CacheEntry, report *models.SweepReport) <-chan models.CacheEntry {
	counted := make(chan models.CacheEntry)

	go func() {
		defer close(counted)

		for e := range entries {
			if e.Err == nil {
				report.Found++
			}
			counted <- e
		}
	}()

	return counted
}
