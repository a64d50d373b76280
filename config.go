// Ambient configuration for a Database or dynamic.Shell attach. Grounded
// on the teacher's config_test.go, which exercises a small options
// struct rather than a builder; we follow the same shape.
package chainbase

import "go.uber.org/zap"

// Config bundles everything about an Open call that isn't part of the
// domain schema itself.
type Config struct {
	// Size is the minimum size in bytes of shared_memory.bin. It only
	// grows the file on a read-write attach that finds it smaller;
	// existing larger segments are left alone.
	Size int64

	// LockCount is N, the RW lock bank size (CHAINBASE_NUM_RW_LOCKS).
	// Zero means DefaultLockCount.
	LockCount int

	// SnapshotCompressionThreshold is the byte size past which an undo
	// snapshot is zstd-compressed. Zero means defaultSnapshotThreshold;
	// a negative value disables compression entirely.
	SnapshotCompressionThreshold int

	// Logger receives structured diagnostics for attach, lock
	// contention and undo activity. A nil Logger defaults to
	// zap.NewNop(), matching the teacher's "logging is an external
	// collaborator" stance: chainbase never forces output on a caller
	// that hasn't configured a sink.
	Logger *zap.Logger

	// Metrics, if non-nil, receives lock-bank counters and latency
	// histograms (spec.md §4.3). A nil Metrics disables instrumentation
	// without changing behavior.
	Metrics *Metrics

	// ChecksumAlgorithm selects how the environment fingerprint's
	// checksum is computed. The zero value means ChecksumXXH3.
	ChecksumAlgorithm ChecksumAlgorithm
}

// defaultInitialSize is the segment size a fresh ReadWrite attach
// creates when Config.Size is left at its zero value.
const defaultInitialSize = 1 << 20 // 1 MiB

func (c Config) size() int64 {
	if c.Size <= 0 {
		return defaultInitialSize
	}
	return c.Size
}

func (c Config) lockCount() int {
	if c.LockCount <= 0 {
		return DefaultLockCount
	}
	return c.LockCount
}

func (c Config) snapshotThreshold() int {
	if c.SnapshotCompressionThreshold == 0 {
		return defaultSnapshotThreshold
	}
	return c.SnapshotCompressionThreshold
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) checksumAlgorithm() ChecksumAlgorithm {
	if c.ChecksumAlgorithm == 0 {
		return ChecksumXXH3
	}
	return c.ChecksumAlgorithm
}
