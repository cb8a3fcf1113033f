package arch

import (
	"github.com/mantleos/kmem"
)

var amd64Geometry = mustGeometry(Profile{
	Name:              "x86-64",
	PageShift:         12, // 4096 bytes
	EntryShift:        9,  // 512 entries, 8 bytes each
	Levels:            4,  // PML4, PDP, PD, PT
	EntryAddressWidth: 40,
	EntryAddressShift: 12,
	PhysOffset:        0xFFFF_8000_0000_0000,
	Flags: EntryFlagSet{
		Present:        1 << 0,
		ReadOnly:       0,
		ReadWrite:      1 << 1,
		UserAccess:     1 << 2,
		NoExec:         1 << 63,
		Exec:           0,
		Global:         1 << 8,
		NonGlobal:      0,
		WriteCombining: 1 << 7, // PAT bit
		DefaultPage:    1 << 0, // Present
		DefaultTable: 1<<0 | // Present
			1<<1 | // Writable
			1<<2, // Userspace
	},
})

// AMD64Instructions binds the privileged single-instruction primitives the
// x86-64 maintenance operations are built from. A kernel build installs its
// assembly shims here during early boot; tests install recorders.
type AMD64Instructions struct {
	// InvalidatePage is invlpg for the page containing address. invlpg is
	// self-serializing; no separate barriers exist on x86-64.
	InvalidatePage func(address uint64)
	// ReadPageTableRoot is a mov from CR3
	ReadPageTableRoot func() uint64
	// WritePageTableRoot is a mov to CR3, which architecturally flushes all
	// non-global cached translations
	WritePageTableRoot func(value uint64)
}

// AMD64 implements Arch for x86-64 with 4KiB pages and a four-level table
// walk. Instruction and data caches are coherent on x86-64, so it does not
// implement ICacheSyncer.
type AMD64 struct {
	// Instr is the instruction binding the maintenance operations run on. It
	// is set by the constructor and may be replaced before first use.
	Instr AMD64Instructions
}

var _ Arch = &AMD64{}

// NewAMD64 returns an AMD64 whose instruction hooks panic until the kernel
// runtime (or a test) binds them.
func NewAMD64() *AMD64 {
	return &AMD64{
		Instr: AMD64Instructions{
			InvalidatePage:     func(address uint64) { panic(unboundInstruction("invlpg")) },
			ReadPageTableRoot:  func() uint64 { panic(unboundInstruction("mov from cr3")) },
			WritePageTableRoot: func(value uint64) { panic(unboundInstruction("mov to cr3")) },
		},
	}
}

func (a *AMD64) Geometry() *Geometry {
	return amd64Geometry
}

func (a *AMD64) Init() []kmem.MemoryArea {
	panic("kmem/arch: x86-64 memory-map discovery requires the bootloader's E820 map, which this port does not parse yet")
}

func (a *AMD64) PhysToVirt(address kmem.PhysicalAddress) kmem.VirtualAddress {
	return kmem.VirtualAddress(address.Data() + amd64Geometry.PhysOffset)
}

func (a *AMD64) WriteBytes(address kmem.VirtualAddress, value byte, count uint64) {
	writeBytesRaw(address, value, count)
}

func (a *AMD64) Invalidate(address kmem.VirtualAddress) {
	a.Instr.InvalidatePage(address.Data())
}

// InvalidateAll reloads CR3 with its current value, which is the architectural
// idiom for flushing all non-global cached translations.
func (a *AMD64) InvalidateAll() {
	a.Instr.WritePageTableRoot(a.Instr.ReadPageTableRoot())
}

// Table reads CR3. x86-64 has a single hardware root shared by both table
// kinds; the low bits of CR3 carry control flags and are masked off.
func (a *AMD64) Table(kind TableKind) kmem.PhysicalAddress {
	return kmem.PhysicalAddress(a.Instr.ReadPageTableRoot() &^ amd64Geometry.PageOffsetMask)
}

// SetTable writes CR3 for either table kind. The write itself is the full
// translation-cache invalidation the contract requires.
func (a *AMD64) SetTable(kind TableKind, address kmem.PhysicalAddress) {
	a.Instr.WritePageTableRoot(address.Data())
}

// VirtIsValid reports whether address is canonical: every bit above the
// translated range must equal bit 47.
func (a *AMD64) VirtIsValid(address kmem.VirtualAddress) bool {
	return virtIsCanonical(amd64Geometry, address)
}

// virtIsCanonical checks the sign-extension rule shared by x86-64 and RISC-V:
// the bits from the top of the translated range upward must be all-zero or
// all-one.
func virtIsCanonical(geometry *Geometry, address kmem.VirtualAddress) bool {
	shift := geometry.PageAddressShift - 1
	upper := address.Data() >> shift
	return upper == 0 || upper == (uint64(1)<<(64-shift))-1
}
