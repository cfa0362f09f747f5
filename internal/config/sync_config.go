package config

import "time"

const (
	syncScheduleVar    = "SYNC_SCHEDULE"
	syncConcurrencyVar = "SYNC_CONCURRENCY"
	syncTimeoutVar     = "SYNC_TIMEOUT"
	syncModeVar        = "SYNC_MODE"
)

const (
	SyncModeIncremental = "incremental"
	SyncModeBackfill    = "backfill"
)

type SyncConfig interface {
	GetSyncSchedule() string
	GetSyncConcurrency() int
	GetSyncTimeout() time.Duration
	GetSyncMode() string
}

// GetSyncSchedule returns the cron spec used to trigger a sync cycle (e.g., "@every 15m").
func (c mainConfig) GetSyncSchedule() string {
	return c.v.GetString(syncScheduleVar)
}

func (c mainConfig) GetSyncConcurrency() int {
	if n := c.v.GetInt(syncConcurrencyVar); n > 0 {
		return n
	}
	return 1
}

// GetSyncTimeout bounds a single tenant's sync attempt.
func (c mainConfig) GetSyncTimeout() time.Duration {
	return c.v.GetDuration(syncTimeoutVar)
}

func (c mainConfig) GetSyncMode() string {
	if c.v.GetString(syncModeVar) == SyncModeBackfill {
		return SyncModeBackfill
	}
	return SyncModeIncremental
}
