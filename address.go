package kmem

// PhysicalAddress is a raw address in the machine's physical address space.
// Physical and virtual addresses are distinct types so that they cannot be
// mixed at interface boundaries; the only sanctioned conversion between them
// is an architecture's PhysToVirt method.
type PhysicalAddress uint64

// Data retrieves the raw numeric value of this address.
func (a PhysicalAddress) Data() uint64 {
	return uint64(a)
}

// Add produces the address offset bytes beyond this one.
func (a PhysicalAddress) Add(offset uint64) PhysicalAddress {
	return a + PhysicalAddress(offset)
}

// VirtualAddress is a raw address in a virtual address space. Whether a
// given VirtualAddress is representable on the running hardware is the
// business of Arch.VirtIsValid.
type VirtualAddress uint64

// Data retrieves the raw numeric value of this address.
func (a VirtualAddress) Data() uint64 {
	return uint64(a)
}

// Add produces the address offset bytes beyond this one.
func (a VirtualAddress) Add(offset uint64) VirtualAddress {
	return a + VirtualAddress(offset)
}

// FrameCount is a quantity of whole page frames, not bytes. Multiplying by
// the architecture's page size yields a byte count.
type FrameCount uint64

// Data retrieves the raw numeric value of this count.
func (c FrameCount) Data() uint64 {
	return uint64(c)
}

// FrameUsage is a point-in-time snapshot of how many frames an allocator
// has handed out versus how many it was given. It is produced by
// Allocator.Usage and is immutable once returned.
type FrameUsage struct {
	// Used is the number of frames the allocator can no longer hand out
	Used FrameCount
	// Total is the number of frames the allocator was constructed with
	Total FrameCount
}

// Free is the number of frames still available for allocation.
func (u FrameUsage) Free() FrameCount {
	return u.Total - u.Used
}
