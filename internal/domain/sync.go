package domain

import "time"

// SyncStats holds statistics about a sync run.
type SyncStats struct {
	Kind             Kind          `json:"kind"`
	RunID            string        `json:"run_id"`
	Pages            int           `json:"pages"`
	Fetched          int           `json:"fetched"`
	Upserted         int           `json:"upserted"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Published        int           `json:"published"`
	Complete         bool          `json:"complete"`
	CheckpointBefore *time.Time    `json:"checkpoint_before,omitempty"`
	CheckpointAfter  *time.Time    `json:"checkpoint_after,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
}

// SyncState is the bookkeeping row kept per sync kind.
type SyncState struct {
	Kind           Kind       `db:"kind"`
	LastSyncedAt   time.Time  `db:"last_synced_at"`
	LastRunID      string     `db:"last_run_id"`
	LastCheckpoint *time.Time `db:"last_checkpoint"`
	TotalSynced    int64      `db:"total_synced"`
}
