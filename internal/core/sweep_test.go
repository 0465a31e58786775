package core

import (
	"context"
	"errors"
	"testing"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	entries  []models.CacheEntry
	listErr  error
	failIDs  map[int64]bool
	attempts []int64
	deleted  []int64
}

func (f *fakeStore) ListCaches(ctx context.Context) <-chan models.CacheEntry {
	entries := make(chan models.CacheEntry)

	go func() {
		defer close(entries)

		for _, e := range f.entries {
			entries <- e
		}
		if f.listErr != nil {
			entries <- models.CacheEntry{Err: f.listErr}
		}
	}()

	return entries
}

func (f *fakeStore) DeleteCache(_ context.Context, id int64) error {
	f.attempts = append(f.attempts, id)

	if f.failIDs[id] {
		return errors.New("boom")
	}

	f.deleted = append(f.deleted, id)
	return nil
}

func newSweeper(store *fakeStore, threshold int64, dryRun bool) *Sweeper {
	return &Sweeper{
		Store:          store,
		Repo:           "noraneko-dev/noraneko",
		ThresholdBytes: threshold,
		DryRun:         dryRun,
		Logger:         zap.NewNop(),
	}
}

func TestFilterOversizedBoundary(t *testing.T) {
	const threshold = 1_048_576

	entries := make(chan models.CacheEntry, 4)
	entries <- models.CacheEntry{ID: 1, SizeBytes: threshold + 1}
	entries <- models.CacheEntry{ID: 2, SizeBytes: threshold}
	entries <- models.CacheEntry{ID: 3, SizeBytes: threshold - 1}
	entries <- models.CacheEntry{ID: 4, SizeBytes: 0, Err: errors.New("listing failed")}
	close(entries)

	var kept []models.CacheEntry
	for e := range FilterOversized(entries, threshold) {
		kept = append(kept, e)
	}

	require.Len(t, kept, 2)
	assert.Equal(t, int64(1), kept[0].ID, "only strictly-larger entries pass")
	assert.Error(t, kept[1].Err, "listing failures pass through")
}

func TestSweepSelectsOnlyOversized(t *testing.T) {
	store := &fakeStore{
		entries: []models.CacheEntry{
			{ID: 1, Key: "build-linux", SizeBytes: 2_000_000},
			{ID: 2, Key: "build-mac", SizeBytes: 500_000},
			{ID: 3, Key: "build-win", SizeBytes: 1_048_576},
		},
	}

	report, err := newSweeper(store, 1_048_576, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, store.deleted)
	assert.Equal(t, 3, report.Found)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, int64(2_000_000), report.SelectedBytes)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, int64(2_000_000), report.FreedBytes)
	assert.Zero(t, report.Failed)
}

func TestSweepDryRunIssuesNoDeletes(t *testing.T) {
	store := &fakeStore{
		entries: []models.CacheEntry{
			{ID: 1, SizeBytes: 5_000_000},
			{ID: 2, SizeBytes: 3_000_000},
		},
	}

	report, err := newSweeper(store, 1_048_576, true).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.attempts)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, int64(8_000_000), report.SelectedBytes)
	assert.Zero(t, report.Deleted)
	assert.Zero(t, report.FreedBytes)
}

func TestSweepContinuesAfterDeleteFailure(t *testing.T) {
	store := &fakeStore{
		entries: []models.CacheEntry{
			{ID: 1, Key: "a", SizeBytes: 2_000_000},
			{ID: 2, Key: "b", SizeBytes: 3_000_000},
			{ID: 3, Key: "c", SizeBytes: 4_000_000},
		},
		failIDs: map[int64]bool{2: true},
	}

	report, err := newSweeper(store, 1_048_576, false).Run(context.Background())
	require.NoError(t, err, "a failed deletion never aborts the sweep")

	assert.Equal(t, []int64{1, 2, 3}, store.attempts, "every selected entry is attempted")
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(2), report.Failures[0].ID)
	assert.Equal(t, "b", report.Failures[0].Key)
	assert.Equal(t, int64(6_000_000), report.FreedBytes)
}

func TestSweepListingErrorAborts(t *testing.T) {
	store := &fakeStore{
		entries: []models.CacheEntry{
			{ID: 1, SizeBytes: 2_000_000},
		},
		listErr: errors.New("403 rate limit exceeded"),
	}

	report, err := newSweeper(store, 1_048_576, false).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestSweepEmptyListing(t *testing.T) {
	report, err := newSweeper(&fakeStore{}, 1_048_576, false).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Found)
	assert.Zero(t, report.Selected)
	assert.Zero(t, report.Deleted)
}
