// Package frame hands out physical memory page frames during and after boot.
// It defines the contract any frame source must meet and provides the
// monotonic BumpAllocator used to bootstrap more capable allocators.
package frame

import (
	"github.com/mantleos/kmem"
)

// Allocator is the contract any physical-frame source exposes. Implementations
// provide no internal locking; an instance is exclusively owned by whichever
// execution context is currently allocating, and callers that share one must
// serialize access themselves or wrap it in a SynchronizedAllocator.
type Allocator interface {
	// Allocate reserves count contiguous page-aligned frames and returns the
	// physical address of the first. The returned span is zero-filled -
	// callers may rely on that, since stale physical memory can hold data
	// from a previous use. When no source region has enough contiguous space
	// remaining, the returned error wraps kmem.FramesExhaustedError.
	Allocate(count kmem.FrameCount) (kmem.PhysicalAddress, error)
	// Free releases a previously allocated span back to the source.
	// Implementations that cannot safely reclaim return an error wrapping
	// kmem.FreeNotSupportedError rather than silently dropping the span.
	Free(address kmem.PhysicalAddress, count kmem.FrameCount) error
	// Usage reports frames used versus frames available across all source
	// regions, computed from current allocator state rather than cached
	Usage() kmem.FrameUsage
}
