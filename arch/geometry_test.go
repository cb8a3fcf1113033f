package arch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAArch64Constants(t *testing.T) {
	g := NewAArch64().Geometry()

	require.Equal(t, uint64(4096), g.PageSize)
	require.Equal(t, uint64(0xFFF), g.PageOffsetMask)
	require.Equal(t, uint(48), g.PageAddressShift)
	require.Equal(t, uint64(0x0001_0000_0000_0000), g.PageAddressSize)
	require.Equal(t, uint64(0x0000_FFFF_FFFF_F000), g.PageAddressMask)
	require.Equal(t, uint64(0xFFFF_0000_0000_0000), g.PageNegativeMask)
	require.Equal(t, uint64(8), g.EntrySize)
	require.Equal(t, uint64(512), g.Entries)
	require.Equal(t, uint64(0x1FF), g.EntryMask)

	require.Equal(t, uint64(0x0000_0100_0000_0000), g.EntryAddressSize)
	require.Equal(t, uint64(0x0000_00FF_FFFF_FFFF), g.EntryAddressMask)
	require.Equal(t, uint64(0xFFF0_0000_0000_0FFF), g.EntryFlagsMask)

	require.Equal(t, uint64(0xFFFF_8000_0000_0000), g.PhysOffset)

	require.Equal(t, uint64(1<<0), g.Flags.Present)
	require.Equal(t, uint64(1<<7), g.Flags.ReadOnly)
	require.Equal(t, uint64(0b11<<53), g.Flags.NoExec)
	require.Equal(t, uint64(1<<11), g.Flags.NonGlobal)
	require.Equal(t, uint64(1<<0|1<<1|1<<10|1<<11), g.Flags.DefaultPage)
	require.Equal(t, uint64(1<<0|1<<1|1<<10), g.Flags.DefaultTable)
}

func TestAMD64Constants(t *testing.T) {
	g := NewAMD64().Geometry()

	require.Equal(t, uint64(4096), g.PageSize)
	require.Equal(t, uint(48), g.PageAddressShift)
	require.Equal(t, uint64(0x0000_FFFF_FFFF_F000), g.PageAddressMask)
	require.Equal(t, uint64(512), g.Entries)
	require.Equal(t, uint64(0xFFF0_0000_0000_0FFF), g.EntryFlagsMask)

	require.Equal(t, uint64(1<<0), g.Flags.Present)
	require.Equal(t, uint64(1<<1), g.Flags.ReadWrite)
	require.Equal(t, uint64(1<<2), g.Flags.UserAccess)
	require.Equal(t, uint64(1<<7), g.Flags.WriteCombining)
	require.Equal(t, uint64(1<<8), g.Flags.Global)
	require.Equal(t, uint64(1<<63), g.Flags.NoExec)
	require.Equal(t, uint64(1<<0), g.Flags.DefaultPage)
	require.Equal(t, uint64(1<<0|1<<1|1<<2), g.Flags.DefaultTable)
}

func TestRiscV64Constants(t *testing.T) {
	g := NewRiscV64().Geometry()

	require.Equal(t, uint64(4096), g.PageSize)
	require.Equal(t, uint(39), g.PageAddressShift)
	require.Equal(t, uint64(0x0000_0080_0000_0000), g.PageAddressSize)
	require.Equal(t, uint64(0x0000_007F_FFFF_F000), g.PageAddressMask)
	require.Equal(t, uint64(0xFFFF_FF80_0000_0000), g.PageNegativeMask)
	require.Equal(t, uint64(512), g.Entries)

	require.Equal(t, uint64(0x0000_0FFF_FFFF_FFFF), g.EntryAddressMask)
	require.Equal(t, uint64(0xFFC0_0000_0000_03FF), g.EntryFlagsMask)

	require.Equal(t, uint64(1<<0), g.Flags.Present)
	require.Equal(t, uint64(1<<1), g.Flags.ReadOnly)
	require.Equal(t, uint64(1<<1|1<<2), g.Flags.ReadWrite)
	require.Equal(t, uint64(1<<3), g.Flags.Exec)
	require.Equal(t, uint64(1<<4), g.Flags.UserAccess)
	require.Equal(t, uint64(1<<5), g.Flags.Global)
	require.Equal(t, uint64(1<<0|1<<6|1<<7), g.Flags.DefaultPage)
	require.Equal(t, uint64(1<<0), g.Flags.DefaultTable)
}

func TestGeometrySelfConsistency(t *testing.T) {
	geometries := map[string]*Geometry{
		"aarch64":  aarch64Geometry,
		"amd64":    amd64Geometry,
		"riscv64":  riscv64Geometry,
		"emulated": emulatedGeometry,
	}

	for name, g := range geometries {
		g := g
		t.Run(name, func(t *testing.T) {
			require.NoError(t, g.Validate())

			// The address masks partition the machine word
			require.Equal(t, uint64(0), g.PageOffsetMask&g.PageAddressMask)
			require.Equal(t, uint64(0), g.PageOffsetMask&g.PageNegativeMask)
			require.Equal(t, uint64(0), g.PageAddressMask&g.PageNegativeMask)
			require.Equal(t, ^uint64(0), g.PageOffsetMask|g.PageAddressMask|g.PageNegativeMask)

			// The entry masks partition a table entry
			addressField := g.EntryAddressMask << g.EntryAddressShift
			require.Equal(t, uint64(0), addressField&g.EntryFlagsMask)
			require.Equal(t, ^uint64(0), addressField|g.EntryFlagsMask)

			// A full table of entries fills exactly one page
			require.Equal(t, g.PageSize, g.EntrySize*g.Entries)
			require.Equal(t, uint64(1)<<(uint(g.Levels)*g.EntryShift+g.PageShift), g.PageAddressSize)
		})
	}
}

func TestNewGeometryRejectsBrokenProfiles(t *testing.T) {
	base := aarch64Geometry.Profile

	zeroPage := base
	zeroPage.PageShift = 0
	_, err := NewGeometry(zeroPage)
	require.Error(t, err)

	tooManyLevels := base
	tooManyLevels.Levels = 6
	_, err = NewGeometry(tooManyLevels)
	require.Error(t, err)

	entryBiggerThanPage := base
	entryBiggerThanPage.EntryShift = 13
	_, err = NewGeometry(entryBiggerThanPage)
	require.Error(t, err)

	wideAddressField := base
	wideAddressField.EntryAddressWidth = 60
	_, err = NewGeometry(wideAddressField)
	require.Error(t, err)

	flagInAddressField := base
	flagInAddressField.Flags.Global = 1 << 20
	_, err = NewGeometry(flagInAddressField)
	require.Error(t, err)
}
