package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"github.com/natefinch/atomic"
)

// Summary renders the human-readable outcome of a sweep.
func Summary(r *models.SweepReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d caches found in %s\n", r.Found, r.Repo)
	fmt.Fprintf(&b, "%d caches larger than %d bytes, totaling %d bytes\n",
		r.Selected, r.ThresholdBytes, r.SelectedBytes)

	if r.DryRun {
		fmt.Fprintf(&b, "Dry run: no caches were deleted\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Successfully deleted: %d caches, freeing %d bytes\n", r.Deleted, r.FreedBytes)
	if r.Failed > 0 {
		fmt.Fprintf(&b, "Failed to delete: %d caches\n", r.Failed)
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  - cache %d (%s): %s\n", f.ID, f.Key, f.Cause)
		}
	}

	return b.String()
}

// WriteFile writes the report as indented JSON, atomically replacing any
// previous file at path.
func WriteFile(path string, r *models.SweepReport) error {
	marshalled, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(path, bytes.NewReader(marshalled))
}
