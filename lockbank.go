// RW Lock Manager (C3): a bank of N inter-process read/write locks in a
// secondary mapping, shared_memory.meta, plus the rotating current_lock
// cursor. Spec.md §4.3 calls the cursor "process-local", but §5 and test
// scenario S4 both require it to be observable, unmodified, by a second
// handle that never performed a write — the two are reconcilable only if
// the cursor itself lives in the shared meta mapping, so that is where
// this stores it; see DESIGN.md.
package chainbase

import (
	"context"
	"fmt"
	"time"
)

const (
	lockCursorOffset = 0
	lockRegionBase   = 64
	lockRegionStride = 8

	// lockPollInterval is how often acquire retries a failed
	// non-blocking region lock while waiting for wait_micros to
	// elapse. fcntl/LockFileEx have no native "block with timeout"
	// mode, so the bank polls instead.
	lockPollInterval = 200 * time.Microsecond
)

type lockBank struct {
	seg     *segment
	count   int
	metrics *Metrics
}

func openLockBank(dir string, mode OpenMode, count int, metrics *Metrics) (*lockBank, error) {
	seg, err := openSegmentFile(dir, metaFileName, mode, metaFileSize)
	if err != nil {
		return nil, err
	}
	return &lockBank{seg: seg, count: count, metrics: metrics}, nil
}

func (lb *lockBank) Close() error { return lb.seg.Close() }

func regionOffset(index int) int64 {
	return int64(lockRegionBase + index*lockRegionStride)
}

// CurrentLock returns the bank's rotating cursor.
func (lb *lockBank) CurrentLock() int {
	return int(getUint64(lb.seg.data[lockCursorOffset:lockCursorOffset+8]) % uint64(lb.count))
}

func (lb *lockBank) advance(from int) {
	next := uint64((from + 1) % lb.count)
	putUint64(lb.seg.data[lockCursorOffset:lockCursorOffset+8], next)
	lb.metrics.observeCursor(int(next))
}

func (lb *lockBank) acquire(ctx context.Context, index int, mode LockMode, wait time.Duration) error {
	fd := int(lb.seg.file.Fd())
	deadline := time.Now().Add(wait)
	for {
		if err := tryLockRegion(fd, mode, regionOffset(index), lockRegionStride); err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("lock region %d: %w", index, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (lb *lockBank) release(index int) error {
	return unlockRegion(int(lb.seg.file.Fd()), regionOffset(index), lockRegionStride)
}

// WithReadLock acquires the bank's current lock in shared mode, invokes
// fn, and releases it on every exit path.
func (lb *lockBank) WithReadLock(ctx context.Context, wait time.Duration, fn func() error) error {
	idx := lb.CurrentLock()
	start := time.Now()
	if err := lb.acquire(ctx, idx, LockShared, wait); err != nil {
		lb.metrics.observeAcquire(LockShared, time.Since(start), false)
		return err
	}
	defer lb.release(idx)
	lb.metrics.observeAcquire(LockShared, time.Since(start), true)
	return fn()
}

// WithWriteLock acquires the bank's current lock in exclusive mode,
// invokes fn, and — only if fn succeeds — advances the cursor to
// (current+1) mod N before releasing (spec.md §4.3).
func (lb *lockBank) WithWriteLock(ctx context.Context, wait time.Duration, fn func() error) error {
	idx := lb.CurrentLock()
	start := time.Now()
	if err := lb.acquire(ctx, idx, LockExclusive, wait); err != nil {
		lb.metrics.observeAcquire(LockExclusive, time.Since(start), false)
		return err
	}
	lb.metrics.observeAcquire(LockExclusive, time.Since(start), true)
	err := fn()
	if err == nil {
		lb.advance(idx)
	}
	if relErr := lb.release(idx); relErr != nil && err == nil {
		err = relErr
	}
	return err
}
