package arch

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/mantleos/kmem"
)

// emulatedRAMBase is the physical address NewEmulated places RAM at. Starting
// above zero catches callers that treat address zero as meaningful.
const emulatedRAMBase = kmem.PhysicalAddress(0x10_0000)

var emulatedGeometry = mustGeometry(Profile{
	Name:              "emulated",
	PageShift:         12,
	EntryShift:        9,
	Levels:            4,
	EntryAddressWidth: 40,
	EntryAddressShift: 12,
	PhysOffset:        0xFFFF_8000_0000_0000,
	Flags: EntryFlagSet{
		Present:      1 << 0,
		ReadOnly:     1 << 1,
		ReadWrite:    0,
		UserAccess:   1 << 2,
		NoExec:       1 << 3,
		Exec:         0,
		Global:       1 << 4,
		NonGlobal:    0,
		DefaultPage:  1 << 0,
		DefaultTable: 1 << 0,
	},
})

// Emulated implements Arch against a process-allocated byte slice standing in
// for physical memory, so that allocator and translation-maintenance behavior
// can be exercised without hardware. Invalidations and table switches record
// into counters instead of touching hardware state.
type Emulated struct {
	base  kmem.PhysicalAddress
	ram   []byte
	areas []kmem.MemoryArea

	// InvalidateCount is the number of single-address invalidations issued
	InvalidateCount int
	// InvalidateAllCount is the number of full invalidations issued,
	// including those implied by SetTable
	InvalidateAllCount int
	// Invalidated records the address of every single-address invalidation
	Invalidated []kmem.VirtualAddress

	tables [2]kmem.PhysicalAddress
}

var _ Arch = &Emulated{}

// NewEmulated builds an emulated machine backed by ramSize bytes of fake
// physical memory starting at 1MiB. The reported memory map splits the RAM
// into two areas separated by a one-page hole, so allocator tests cross a
// region boundary without arranging one by hand. ramSize must be a multiple
// of the page size and large enough to leave both areas non-empty.
func NewEmulated(ramSize uint64) (*Emulated, error) {
	pageSize := emulatedGeometry.PageSize
	if ramSize%pageSize != 0 {
		return nil, cerrors.Newf("ram size %d is not a multiple of the %d-byte page size", ramSize, pageSize)
	}
	if ramSize < 4*pageSize {
		return nil, cerrors.Newf("ram size %d cannot hold two areas and a hole", ramSize)
	}

	half := kmem.AlignDown(ramSize/2, pageSize)
	areas := []kmem.MemoryArea{
		{Base: emulatedRAMBase, Size: half},
		{Base: emulatedRAMBase.Add(half + pageSize), Size: ramSize - half - pageSize},
	}

	return NewEmulatedAt(emulatedRAMBase, ramSize, areas)
}

// NewEmulatedAt builds an emulated machine whose backing RAM covers
// [base, base+ramSize) and whose reported memory map is exactly areas, for
// tests that need precise region arithmetic. Every area must fall inside the
// backing window.
func NewEmulatedAt(base kmem.PhysicalAddress, ramSize uint64, areas []kmem.MemoryArea) (*Emulated, error) {
	for _, area := range areas {
		if area.Base < base || area.End().Data() > base.Data()+ramSize {
			return nil, cerrors.Newf("memory area %#x+%#x falls outside the backing window %#x+%#x",
				area.Base.Data(), area.Size, base.Data(), ramSize)
		}
	}

	return &Emulated{
		base:  base,
		ram:   make([]byte, ramSize),
		areas: areas,
	}, nil
}

func (e *Emulated) Geometry() *Geometry {
	return emulatedGeometry
}

func (e *Emulated) Init() []kmem.MemoryArea {
	return e.areas
}

func (e *Emulated) PhysToVirt(address kmem.PhysicalAddress) kmem.VirtualAddress {
	return kmem.VirtualAddress(address.Data() + emulatedGeometry.PhysOffset)
}

func (e *Emulated) WriteBytes(address kmem.VirtualAddress, value byte, count uint64) {
	buffer := e.bytesAt(kmem.PhysicalAddress(address.Data()-emulatedGeometry.PhysOffset), count)
	for i := range buffer {
		buffer[i] = value
	}
}

func (e *Emulated) Invalidate(address kmem.VirtualAddress) {
	e.InvalidateCount++
	e.Invalidated = append(e.Invalidated, address)
}

func (e *Emulated) InvalidateAll() {
	e.InvalidateAllCount++
}

func (e *Emulated) Table(kind TableKind) kmem.PhysicalAddress {
	return e.tables[kind]
}

func (e *Emulated) SetTable(kind TableKind, address kmem.PhysicalAddress) {
	e.tables[kind] = address
	e.InvalidateAll()
}

func (e *Emulated) VirtIsValid(address kmem.VirtualAddress) bool {
	raw := address.Data()
	if raw < emulatedGeometry.PhysOffset {
		return false
	}
	phys := raw - emulatedGeometry.PhysOffset
	return phys >= e.base.Data() && phys < e.base.Data()+uint64(len(e.ram))
}

// Bytes exposes the emulated RAM backing a physical span, so tests can poison
// memory before allocation and inspect it afterward.
func (e *Emulated) Bytes(address kmem.PhysicalAddress, count uint64) []byte {
	return e.bytesAt(address, count)
}

// FillRAM overwrites all emulated RAM with value.
func (e *Emulated) FillRAM(value byte) {
	for i := range e.ram {
		e.ram[i] = value
	}
}

func (e *Emulated) bytesAt(address kmem.PhysicalAddress, count uint64) []byte {
	if address < e.base {
		panic(cerrors.Newf("physical address %#x is below the emulated ram base %#x", address.Data(), e.base.Data()))
	}
	offset := address.Data() - e.base.Data()
	if offset+count > uint64(len(e.ram)) {
		panic(cerrors.Newf("physical span %#x+%#x runs past the end of emulated ram", address.Data(), count))
	}
	return e.ram[offset : offset+count]
}
