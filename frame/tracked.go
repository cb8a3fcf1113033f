package frame

import (
	"context"
	"log/slog"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/mantleos/kmem"
)

// TrackedAllocator is a debugging decorator that keeps a ledger of every span
// the inner allocator has handed out and is still live. It catches
// double-frees, frees of spans it never produced, and frees with the wrong
// frame count, and can report spans never returned at all. Intended for
// bring-up and tests; the ledger costs memory proportional to live spans.
type TrackedAllocator struct {
	logger *slog.Logger
	inner  Allocator

	liveSpans *swiss.Map[kmem.PhysicalAddress, kmem.FrameCount]
}

var _ Allocator = &TrackedAllocator{}

// NewTrackedAllocator wraps inner with a span ledger. Access is not
// synchronized; layer a SynchronizedAllocator outside this one if needed.
func NewTrackedAllocator(logger *slog.Logger, inner Allocator) *TrackedAllocator {
	return &TrackedAllocator{
		logger:    logger,
		inner:     inner,
		liveSpans: swiss.NewMap[kmem.PhysicalAddress, kmem.FrameCount](42),
	}
}

func (a *TrackedAllocator) Allocate(count kmem.FrameCount) (kmem.PhysicalAddress, error) {
	address, err := a.inner.Allocate(count)
	if err != nil {
		return 0, err
	}

	a.liveSpans.Put(address, count)
	a.logger.Debug("TrackedAllocator::Allocate",
		slog.Uint64("Address", address.Data()),
		slog.Uint64("Frames", count.Data()),
	)

	return address, nil
}

// Free validates the span against the ledger before delegating. The ledger
// entry is removed only when the inner allocator accepts the free, so an
// inner allocator that cannot reclaim keeps the span live.
func (a *TrackedAllocator) Free(address kmem.PhysicalAddress, count kmem.FrameCount) error {
	liveCount, ok := a.liveSpans.Get(address)
	if !ok {
		return cerrors.Newf("attempted to free %d frames at %#x, which this allocator has no record of producing", count.Data(), address.Data())
	}
	if liveCount != count {
		return cerrors.Newf("attempted to free %d frames at %#x, but the span allocated there is %d frames", count.Data(), address.Data(), liveCount.Data())
	}

	err := a.inner.Free(address, count)
	if err != nil {
		return err
	}

	a.liveSpans.Delete(address)
	return nil
}

func (a *TrackedAllocator) Usage() kmem.FrameUsage {
	return a.inner.Usage()
}

// CheckLeaks logs every span still live in the ledger and returns how many
// there are. Call it at the point all allocations should have been released.
func (a *TrackedAllocator) CheckLeaks() int {
	leaks := 0
	a.liveSpans.Iter(func(address kmem.PhysicalAddress, count kmem.FrameCount) bool {
		leaks++
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED FRAMES] unfreed span",
			slog.Uint64("address", address.Data()),
			slog.Uint64("frames", count.Data()),
		)
		return false
	})

	return leaks
}

// Validate cross-checks the ledger against the inner allocator's accounting.
// The inner allocator may legitimately report more frames used than the
// ledger holds (a bump allocator counts dropped region tails as used), but
// never fewer.
func (a *TrackedAllocator) Validate() error {
	var ledgerFrames kmem.FrameCount
	a.liveSpans.Iter(func(address kmem.PhysicalAddress, count kmem.FrameCount) bool {
		ledgerFrames += count
		return false
	})

	used := a.inner.Usage().Used
	if ledgerFrames > used {
		return cerrors.Newf("ledger holds %d live frames but the inner allocator reports only %d used", ledgerFrames.Data(), used.Data())
	}

	return nil
}
