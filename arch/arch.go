package arch

import (
	"github.com/mantleos/kmem"
)

// TableKind selects one of the two independent translation-table roots an
// architecture maintains. Architectures with a single hardware root (such as
// x86-64's CR3) map both kinds onto the same register.
type TableKind int

const (
	// TableKindUser is the root covering userspace addresses
	TableKindUser TableKind = iota
	// TableKindKernel is the root covering kernel addresses
	TableKindKernel
)

var tableKindNames = map[TableKind]string{
	TableKindUser:   "User",
	TableKindKernel: "Kernel",
}

func (k TableKind) String() string {
	return tableKindNames[k]
}

// Arch is the capability contract one instruction-set family implements: the
// page-table geometry and entry-flag truths of the hardware, plus the privileged
// operations for loading, switching, and invalidating translation state. One
// implementation is selected per kernel build; all of its methods must complete
// synchronously in bounded time without blocking on external events.
//
// The contract carries preconditions rather than runtime checks: addresses passed
// to Invalidate and SetTable must be valid for the running hardware, SetTable
// addresses must be page-aligned, and the caller must serialize access to the
// translation registers. Violations are undefined hardware behavior, not
// detected errors.
type Arch interface {
	// Geometry retrieves the page-table geometry and entry-flag constants for
	// this instruction family. The returned value is immutable and safe for
	// unlimited concurrent readers.
	Geometry() *Geometry
	// Init performs architecture-specific discovery of the firmware-reported
	// usable physical memory map and returns it in ascending base-address
	// order. It panics if the platform cannot report a memory map - there is
	// no degraded boot without one.
	Init() []kmem.MemoryArea
	// PhysToVirt converts a physical address into the virtual address the
	// kernel's direct map exposes it at
	PhysToVirt(address kmem.PhysicalAddress) kmem.VirtualAddress
	// WriteBytes fills count bytes beginning at address with value. The
	// address must be mapped writable for the full span.
	WriteBytes(address kmem.VirtualAddress, value byte, count uint64)
	// Invalidate flushes any cached translation for the page containing
	// address on the calling core, including the barriers required for the
	// flush to be observed before this method returns. Other cores' caches
	// are untouched; cross-core shootdown is the caller's responsibility.
	Invalidate(address kmem.VirtualAddress)
	// InvalidateAll flushes every cached translation on the calling core,
	// with the same barrier guarantees as Invalidate
	InvalidateAll()
	// Table reads the physical address of the root translation table
	// currently installed for kind
	Table(kind TableKind) kmem.PhysicalAddress
	// SetTable installs address as the root translation table for kind and
	// invalidates the entire translation cache before returning, since a new
	// root renders all previously cached translations suspect
	SetTable(kind TableKind, address kmem.PhysicalAddress)
	// VirtIsValid reports whether address is representable on this
	// architecture. This is a cheap sanity check, not a validity proof - a
	// conservative implementation may always report true.
	VirtIsValid(address kmem.VirtualAddress) bool
}

// ICacheSyncer is implemented by architectures whose instruction and data caches
// are not coherent. After writing executable code into memory, callers must
// invoke SyncICache over the written range before executing it, or the core may
// fetch stale pre-write instructions.
type ICacheSyncer interface {
	// SyncICache cleans the data-cache lines covering [start, start+length)
	// to the point of unification, then invalidates the corresponding
	// instruction-cache lines, with the barriers the architecture mandates
	// between and after the two passes
	SyncICache(start kmem.VirtualAddress, length uint64)
}

// SyncICacheIfNeeded invokes machine.SyncICache when the architecture has
// non-coherent instruction and data caches, and no-ops otherwise.
func SyncICacheIfNeeded(machine Arch, start kmem.VirtualAddress, length uint64) {
	if syncer, ok := machine.(ICacheSyncer); ok {
		syncer.SyncICache(start, length)
	}
}
