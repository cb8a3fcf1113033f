package kmem

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// MemoryArea describes one contiguous span of usable physical memory, as
// reported by firmware or the bootloader. Areas are constructed once during
// boot-time memory-map discovery and never mutated afterward.
type MemoryArea struct {
	// Base is the physical address of the first byte of the span
	Base PhysicalAddress
	// Size is the length of the span in bytes
	Size uint64
}

// End is the physical address one byte past the span.
func (a MemoryArea) End() PhysicalAddress {
	return a.Base.Add(a.Size)
}

// MemoryAreaList exists so that area lists handed to allocators can be
// debug-validated. Allocators assume ascending base order with no overlaps;
// in production builds a violation is undefined allocation behavior, not a
// detected error.
type MemoryAreaList []MemoryArea

// Validate returns an error if the list is out of order or self-overlapping.
func (l MemoryAreaList) Validate() error {
	if !slices.IsSortedFunc(l, func(a, b MemoryArea) bool {
		return a.Base < b.Base
	}) {
		return errors.New("memory areas are not in ascending base-address order")
	}

	for i := 1; i < len(l); i++ {
		if l[i-1].End() > l[i].Base {
			return errors.Errorf("memory area %d (base %#x, size %#x) overlaps area %d (base %#x)",
				i-1, l[i-1].Base.Data(), l[i-1].Size, i, l[i].Base.Data())
		}
	}

	return nil
}
