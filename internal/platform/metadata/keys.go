package metadata

// --- SQLite Keys ---
// These keys are used for the 'key' column in the 'metadata' SQLite table.
const (
	// LastSnapshotUnixMsKey stores the wall-clock time (unix ms) of the last
	// successful scoreboard reconciliation snapshot.
	LastSnapshotUnixMsKey = "last_snapshot_unix_ms"

	// SnapshotTotalFindsKey stores the community-wide total number of recorded
	// finds as of the last successful snapshot.
	SnapshotTotalFindsKey = "snapshot_total_finds"
)

// --- Redis Keys ---
// These keys are used for storing metadata in Redis.
const (
	// RedisTotalFindsKey is a Redis String (used as a counter) that stores the
	// live community-wide total number of recorded finds.
	RedisTotalFindsKey = "meta:total_finds"
)
