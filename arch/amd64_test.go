package arch

import (
	"fmt"
	"testing"

	"github.com/mantleos/kmem"
	"github.com/stretchr/testify/require"
)

func recordingAMD64(cr3 uint64) (*AMD64, *[]string) {
	events := &[]string{}
	record := func(format string, args ...any) {
		*events = append(*events, fmt.Sprintf(format, args...))
	}

	currentCR3 := cr3
	machine := NewAMD64()
	machine.Instr = AMD64Instructions{
		InvalidatePage: func(address uint64) { record("invlpg %#x", address) },
		ReadPageTableRoot: func() uint64 {
			record("mov from cr3")
			return currentCR3
		},
		WritePageTableRoot: func(value uint64) {
			record("mov %#x, cr3", value)
			currentCR3 = value
		},
	}

	return machine, events
}

func TestAMD64Invalidate(t *testing.T) {
	machine, events := recordingAMD64(0)

	machine.Invalidate(kmem.VirtualAddress(0xFFFF_8000_0012_3000))

	// invlpg takes the full address, not a page number, and needs no barriers
	require.Equal(t, []string{"invlpg 0xffff800000123000"}, *events)
}

func TestAMD64InvalidateAllReloadsCR3(t *testing.T) {
	machine, events := recordingAMD64(0x4_0000)

	machine.InvalidateAll()

	require.Equal(t, []string{
		"mov from cr3",
		"mov 0x40000, cr3",
	}, *events)
}

func TestAMD64TableMasksControlFlags(t *testing.T) {
	// CR3 carries PWT/PCD control flags in its low bits
	machine, _ := recordingAMD64(0x4_0018)

	require.Equal(t, kmem.PhysicalAddress(0x4_0000), machine.Table(TableKindUser))
	// Both table kinds read the same hardware root
	require.Equal(t, kmem.PhysicalAddress(0x4_0000), machine.Table(TableKindKernel))
}

func TestAMD64SetTable(t *testing.T) {
	machine, events := recordingAMD64(0)

	machine.SetTable(TableKindKernel, kmem.PhysicalAddress(0x8_0000))

	// The CR3 write is itself the full invalidation
	require.Equal(t, []string{"mov 0x80000, cr3"}, *events)
	require.Equal(t, kmem.PhysicalAddress(0x8_0000), machine.Table(TableKindKernel))
}

func TestAMD64VirtIsValid(t *testing.T) {
	machine := NewAMD64()

	require.True(t, machine.VirtIsValid(kmem.VirtualAddress(0x0000_7FFF_FFFF_FFFF)))
	require.True(t, machine.VirtIsValid(kmem.VirtualAddress(0xFFFF_8000_0000_0000)))
	require.True(t, machine.VirtIsValid(kmem.VirtualAddress(0)))

	// Bit 47 set without sign extension is non-canonical, and vice versa
	require.False(t, machine.VirtIsValid(kmem.VirtualAddress(0x0000_8000_0000_0000)))
	require.False(t, machine.VirtIsValid(kmem.VirtualAddress(0xFFFF_0000_0000_0000)))
	require.False(t, machine.VirtIsValid(kmem.VirtualAddress(0xDEAD_BEEF_DEAD_BEEF)))
}
