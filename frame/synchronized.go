package frame

import (
	"github.com/mantleos/kmem"
	"github.com/mantleos/kmem/internal/utils"
)

// SynchronizedAllocator serializes access to an inner Allocator once frames
// are requested from more than one execution context. The core allocators are
// deliberately lock-free for the single-threaded boot path; wrap one of them
// in this type at the point concurrency begins.
type SynchronizedAllocator struct {
	mutex utils.OptionalRWMutex
	inner Allocator
}

var _ Allocator = &SynchronizedAllocator{}

// NewSynchronizedAllocator wraps inner. When useMutex is false the wrapper is
// pass-through, so call sites can be written once and the locking decided at
// construction.
func NewSynchronizedAllocator(inner Allocator, useMutex bool) *SynchronizedAllocator {
	return &SynchronizedAllocator{
		mutex: utils.OptionalRWMutex{UseMutex: useMutex},
		inner: inner,
	}
}

func (a *SynchronizedAllocator) Allocate(count kmem.FrameCount) (kmem.PhysicalAddress, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.inner.Allocate(count)
}

func (a *SynchronizedAllocator) Free(address kmem.PhysicalAddress, count kmem.FrameCount) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.inner.Free(address, count)
}

func (a *SynchronizedAllocator) Usage() kmem.FrameUsage {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.inner.Usage()
}
