package arch

import (
	"github.com/mantleos/kmem"
)

// satpModeSv39 selects the Sv39 three-level translation mode in the SATP
// mode field (bits 63:60).
const satpModeSv39 = uint64(8) << 60

// satpPPNMask selects the root-table physical page number in SATP (bits 43:0).
const satpPPNMask = (uint64(1) << 44) - 1

var riscv64Geometry = mustGeometry(Profile{
	Name:              "riscv64",
	PageShift:         12, // 4096 bytes
	EntryShift:        9,  // 512 entries, 8 bytes each
	Levels:            3,  // Sv39
	EntryAddressWidth: 44,
	EntryAddressShift: 10, // PPN field starts above the flag bits
	PhysOffset:        0xFFFF_FFC0_0000_0000,
	Flags: EntryFlagSet{
		Present:        1 << 0,      // Valid
		ReadOnly:       1 << 1,      // R
		ReadWrite:      1<<1 | 1<<2, // R | W
		UserAccess:     1 << 4,
		NoExec:         0,
		Exec:           1 << 3, // X
		Global:         1 << 5,
		NonGlobal:      0,
		WriteCombining: 0,
		DefaultPage: 1<<0 | // Valid
			1<<6 | // Accessed
			1<<7, // Dirty
		// R, W, and X all clear marks a pointer to the next table level
		DefaultTable: 1 << 0, // Valid
	},
})

// RiscV64Instructions binds the privileged single-instruction primitives the
// RISC-V maintenance operations are built from. A kernel build installs its
// assembly shims here during early boot; tests install recorders.
type RiscV64Instructions struct {
	// InvalidatePage is sfence.vma with the given address and x0 for the
	// address-space identifier
	InvalidatePage func(address uint64)
	// InvalidateAllPages is sfence.vma x0, x0
	InvalidateAllPages func()
	// ReadSATP is a csrr from satp
	ReadSATP func() uint64
	// WriteSATP is a csrw to satp
	WriteSATP func(value uint64)
	// InstrFence is fence.i, which synchronizes the hart's instruction fetch
	// with all prior data stores
	InstrFence func()
}

// RiscV64 implements Arch for 64-bit RISC-V in Sv39 mode. RISC-V makes no
// coherence promise between stores and instruction fetch, so it also
// implements ICacheSyncer.
type RiscV64 struct {
	// Instr is the instruction binding the maintenance operations run on. It
	// is set by the constructor and may be replaced before first use.
	Instr RiscV64Instructions
}

var _ Arch = &RiscV64{}
var _ ICacheSyncer = &RiscV64{}

// NewRiscV64 returns a RiscV64 whose instruction hooks panic until the kernel
// runtime (or a test) binds them.
func NewRiscV64() *RiscV64 {
	return &RiscV64{
		Instr: RiscV64Instructions{
			InvalidatePage:     func(address uint64) { panic(unboundInstruction("sfence.vma addr, x0")) },
			InvalidateAllPages: func() { panic(unboundInstruction("sfence.vma x0, x0")) },
			ReadSATP:           func() uint64 { panic(unboundInstruction("csrr satp")) },
			WriteSATP:          func(value uint64) { panic(unboundInstruction("csrw satp")) },
			InstrFence:         func() { panic(unboundInstruction("fence.i")) },
		},
	}
}

func (a *RiscV64) Geometry() *Geometry {
	return riscv64Geometry
}

func (a *RiscV64) Init() []kmem.MemoryArea {
	panic("kmem/arch: riscv64 memory-map discovery requires a device tree, which this port does not parse yet")
}

func (a *RiscV64) PhysToVirt(address kmem.PhysicalAddress) kmem.VirtualAddress {
	return kmem.VirtualAddress(address.Data() + riscv64Geometry.PhysOffset)
}

func (a *RiscV64) WriteBytes(address kmem.VirtualAddress, value byte, count uint64) {
	writeBytesRaw(address, value, count)
}

// Invalidate issues sfence.vma for one address. The fence both orders prior
// table stores and flushes the cached translation, so no separate barriers
// are required.
func (a *RiscV64) Invalidate(address kmem.VirtualAddress) {
	a.Instr.InvalidatePage(address.Data())
}

func (a *RiscV64) InvalidateAll() {
	a.Instr.InvalidateAllPages()
}

// Table reads the root-table address out of SATP. RISC-V has a single
// hardware root shared by both table kinds.
func (a *RiscV64) Table(kind TableKind) kmem.PhysicalAddress {
	return kmem.PhysicalAddress((a.Instr.ReadSATP() & satpPPNMask) << riscv64Geometry.PageShift)
}

// SetTable installs address as the Sv39 root and flushes every cached
// translation; writing SATP does not invalidate on its own.
func (a *RiscV64) SetTable(kind TableKind, address kmem.PhysicalAddress) {
	a.Instr.WriteSATP(satpModeSv39 | (address.Data() >> riscv64Geometry.PageShift))
	a.Instr.InvalidateAllPages()
}

func (a *RiscV64) VirtIsValid(address kmem.VirtualAddress) bool {
	return virtIsCanonical(riscv64Geometry, address)
}

// SyncICache synchronizes instruction fetch with prior stores. fence.i acts
// on the whole hart rather than an address range, so the range arguments only
// document intent.
func (a *RiscV64) SyncICache(start kmem.VirtualAddress, length uint64) {
	a.Instr.InstrFence()
}
