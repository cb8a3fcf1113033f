package arch

import (
	"github.com/mantleos/kmem"
)

// aarch64CacheLine is the typical AArch64 cache line size. A port to hardware
// with a different CTR_EL0 line size must adjust this before relying on
// SyncICache.
const aarch64CacheLine = 64

var aarch64Geometry = mustGeometry(Profile{
	Name:              "aarch64",
	PageShift:         12, // 4096 bytes
	EntryShift:        9,  // 512 entries, 8 bytes each
	Levels:            4,  // L0, L1, L2, L3
	EntryAddressWidth: 40,
	EntryAddressShift: 12,
	PhysOffset:        0xFFFF_8000_0000_0000,
	Flags: EntryFlagSet{
		Present:    1 << 0,
		ReadOnly:   1 << 7,
		ReadWrite:  0,
		UserAccess: 1 << 6,
		// Sets both userspace and privileged execute-never
		NoExec:         0b11 << 53,
		Exec:           0,
		Global:         0,
		NonGlobal:      1 << 11,
		WriteCombining: 0,
		DefaultPage: 1<<0 | // Present
			1<<1 | // Page flag
			1<<10 | // Access flag
			1<<11, // Non-global
		DefaultTable: 1<<0 | // Present
			1<<1 | // Table flag
			1<<10, // Access flag
	},
})

// AArch64Instructions binds the privileged single-instruction primitives that
// the composed AArch64 maintenance sequences are built from. A kernel build
// installs its assembly shims here during early boot; tests install recorders.
// Each hook corresponds to exactly one instruction so that the barrier ordering
// of the composed sequences stays observable.
type AArch64Instructions struct {
	// DataSyncBarrierStore is dsb ishst
	DataSyncBarrierStore func()
	// DataSyncBarrier is dsb ish
	DataSyncBarrier func()
	// InstrSyncBarrier is isb
	InstrSyncBarrier func()
	// InvalidatePage is tlbi vaae1is with the given page number
	InvalidatePage func(page uint64)
	// InvalidateAllPages is tlbi vmalle1is
	InvalidateAllPages func()
	// ReadTranslationBase is mrs from ttbr0_el1 (User) or ttbr1_el1 (Kernel)
	ReadTranslationBase func(kind TableKind) uint64
	// WriteTranslationBase is msr to ttbr0_el1 (User) or ttbr1_el1 (Kernel)
	WriteTranslationBase func(kind TableKind, address uint64)
	// CleanDataCacheLine is dc cvau for the line containing address
	CleanDataCacheLine func(address uint64)
	// InvalidateInstrCacheLine is ic ivau for the line containing address
	InvalidateInstrCacheLine func(address uint64)
}

// AArch64 implements Arch for 64-bit Arm with 4KiB translation granule and a
// four-level table walk. Its instruction and data caches are not coherent, so
// it also implements ICacheSyncer.
type AArch64 struct {
	// Instr is the instruction binding the composed sequences run on. It is
	// set by the constructor and may be replaced before first use.
	Instr AArch64Instructions
}

var _ Arch = &AArch64{}
var _ ICacheSyncer = &AArch64{}

// NewAArch64 returns an AArch64 whose instruction hooks panic until the kernel
// runtime (or a test) binds them.
func NewAArch64() *AArch64 {
	return &AArch64{
		Instr: AArch64Instructions{
			DataSyncBarrierStore:     func() { panic(unboundInstruction("dsb ishst")) },
			DataSyncBarrier:          func() { panic(unboundInstruction("dsb ish")) },
			InstrSyncBarrier:         func() { panic(unboundInstruction("isb")) },
			InvalidatePage:           func(page uint64) { panic(unboundInstruction("tlbi vaae1is")) },
			InvalidateAllPages:       func() { panic(unboundInstruction("tlbi vmalle1is")) },
			ReadTranslationBase:      func(kind TableKind) uint64 { panic(unboundInstruction("mrs ttbrN_el1")) },
			WriteTranslationBase:     func(kind TableKind, address uint64) { panic(unboundInstruction("msr ttbrN_el1")) },
			CleanDataCacheLine:       func(address uint64) { panic(unboundInstruction("dc cvau")) },
			InvalidateInstrCacheLine: func(address uint64) { panic(unboundInstruction("ic ivau")) },
		},
	}
}

func (a *AArch64) Geometry() *Geometry {
	return aarch64Geometry
}

func (a *AArch64) Init() []kmem.MemoryArea {
	panic("kmem/arch: aarch64 memory-map discovery requires a device tree, which this port does not parse yet")
}

func (a *AArch64) PhysToVirt(address kmem.PhysicalAddress) kmem.VirtualAddress {
	return kmem.VirtualAddress(address.Data() + aarch64Geometry.PhysOffset)
}

func (a *AArch64) WriteBytes(address kmem.VirtualAddress, value byte, count uint64) {
	writeBytesRaw(address, value, count)
}

// Invalidate flushes the translation for one page. The barrier sequence is
// architecturally mandatory: the leading dsb ishst makes prior table writes
// visible to the walker, the trailing dsb ish waits for the broadcast
// invalidate to complete, and the isb discards any fetched instructions that
// may have used the stale translation.
func (a *AArch64) Invalidate(address kmem.VirtualAddress) {
	a.Instr.DataSyncBarrierStore()
	a.Instr.InvalidatePage(address.Data() >> aarch64Geometry.PageShift)
	a.Instr.DataSyncBarrier()
	a.Instr.InstrSyncBarrier()
}

// InvalidateAll flushes every translation for the inner-shareable domain, with
// the same barrier sequence as Invalidate.
func (a *AArch64) InvalidateAll() {
	a.Instr.DataSyncBarrierStore()
	a.Instr.InvalidateAllPages()
	a.Instr.DataSyncBarrier()
	a.Instr.InstrSyncBarrier()
}

func (a *AArch64) Table(kind TableKind) kmem.PhysicalAddress {
	return kmem.PhysicalAddress(a.Instr.ReadTranslationBase(kind))
}

func (a *AArch64) SetTable(kind TableKind, address kmem.PhysicalAddress) {
	a.Instr.WriteTranslationBase(kind, address.Data())
	a.InvalidateAll()
}

func (a *AArch64) VirtIsValid(address kmem.VirtualAddress) bool {
	// TODO: reject addresses that fall between the TTBR0 and TTBR1 ranges
	return true
}

// SyncICache makes freshly written code visible to instruction fetch: clean
// the data-cache lines covering the range to the point of unification, wait,
// invalidate the corresponding instruction-cache lines, then barrier again so
// no later fetch can observe the stale lines. The walk starts at the enclosing
// line boundary so every line overlapping [start, start+length) is covered.
func (a *AArch64) SyncICache(start kmem.VirtualAddress, length uint64) {
	startAddr := start.Data()
	endAddr := startAddr + length

	for addr := startAddr &^ (aarch64CacheLine - 1); addr < endAddr; addr += aarch64CacheLine {
		a.Instr.CleanDataCacheLine(addr)
	}

	a.Instr.DataSyncBarrier()

	for addr := startAddr &^ (aarch64CacheLine - 1); addr < endAddr; addr += aarch64CacheLine {
		a.Instr.InvalidateInstrCacheLine(addr)
	}

	a.Instr.DataSyncBarrier()
	a.Instr.InstrSyncBarrier()
}
