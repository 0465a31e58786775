package models

import "time"

// CacheEntry is one GitHub Actions cache as reported by the REST API.
// Err carries a listing failure through the stream; an entry holding it
// is the last one emitted.
type CacheEntry struct {
	ID             int64     `json:"id"`
	Ref            string    `json:"ref"`
	Key            string    `json:"key"`
	Version        string    `json:"version"`
	SizeBytes      int64     `json:"size_in_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Err            error     `json:"-"`
}

// DeleteFailure records a single cache that could not be deleted.
type DeleteFailure struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Cause string `json:"cause"`
}

// SweepReport summarizes one end-to-end sweep.
type SweepReport struct {
	Repo           string          `json:"repo"`
	DryRun         bool            `json:"dry_run"`
	ThresholdBytes int64           `json:"threshold_bytes"`
	StartedAt      time.Time       `json:"started_at"`
	Elapsed        time.Duration   `json:"elapsed"`
	Found          int             `json:"found"`
	Selected       int             `json:"selected"`
	Deleted        int             `json:"deleted"`
	Failed         int             `json:"failed"`
	SelectedBytes  int64           `json:"selected_bytes"`
	FreedBytes     int64           `json:"freed_bytes"`
	Failures       []DeleteFailure `json:"failures,omitempty"`
}
