package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryDryRun(t *testing.T) {
	summary := Summary(&models.SweepReport{
		Repo:           "noraneko-dev/noraneko",
		DryRun:         true,
		ThresholdBytes: 1_048_576,
		Found:          3,
		Selected:       1,
		SelectedBytes:  2_000_000,
	})

	assert.Contains(t, summary, "3 caches found in noraneko-dev/noraneko")
	assert.Contains(t, summary, "totaling 2000000 bytes")
	assert.Contains(t, summary, "Dry run: no caches were deleted")
	assert.NotContains(t, summary, "Successfully deleted")
}

func TestSummaryLiveWithFailures(t *testing.T) {
	summary := Summary(&models.SweepReport{
		Repo:           "noraneko-dev/noraneko",
		ThresholdBytes: 1_048_576,
		Found:          10,
		Selected:       9,
		Deleted:        8,
		Failed:         1,
		SelectedBytes:  90_000_000,
		FreedBytes:     80_000_000,
		Failures: []models.DeleteFailure{
			{ID: 7, Key: "build-linux", Cause: "404 Not Found"},
		},
	})

	assert.Contains(t, summary, "Successfully deleted: 8 caches")
	assert.Contains(t, summary, "Failed to delete: 1 caches")
	assert.Contains(t, summary, "cache 7 (build-linux): 404 Not Found")
}

func TestSummaryEmptyListing(t *testing.T) {
	summary := Summary(&models.SweepReport{Repo: "noraneko-dev/noraneko"})

	assert.Contains(t, summary, "0 caches found")
	assert.Contains(t, summary, "Successfully deleted: 0 caches")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.json")

	want := &models.SweepReport{
		Repo:           "noraneko-dev/noraneko",
		ThresholdBytes: 1_048_576,
		Found:          2,
		Selected:       1,
		Deleted:        1,
		FreedBytes:     2_000_000,
	}
	require.NoError(t, WriteFile(path, want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got models.SweepReport
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, *want, got)
}
