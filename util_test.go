package kmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(uint64(1), "one"))
	require.NoError(t, CheckPow2(uint64(4096), "page size"))

	err := CheckPow2(uint64(4095), "almost a page")
	require.Error(t, err)
	require.ErrorIs(t, err, PowerOfTwoError)

	err = CheckPow2(uint64(0), "zero")
	require.Error(t, err)
	require.ErrorIs(t, err, PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, uint64(0x2000), AlignUp(uint64(0x1001), 0x1000))
	require.Equal(t, uint64(0x1000), AlignUp(uint64(0x1000), 0x1000))
	require.Equal(t, uint64(0x1000), AlignDown(uint64(0x1FFF), 0x1000))
	require.Equal(t, uint64(0), AlignDown(uint64(0xFFF), 0x1000))
}

func TestFrameUsageFree(t *testing.T) {
	usage := FrameUsage{Used: 3, Total: 10}
	require.Equal(t, FrameCount(7), usage.Free())
}

func TestAddressAdd(t *testing.T) {
	require.Equal(t, PhysicalAddress(0x3000), PhysicalAddress(0x1000).Add(0x2000))
	require.Equal(t, VirtualAddress(0xFFFF_8000_0000_1000), VirtualAddress(0xFFFF_8000_0000_0000).Add(0x1000))
}

func TestMemoryAreaListValidate(t *testing.T) {
	require.NoError(t, MemoryAreaList{
		{Base: 0x1000, Size: 0x3000},
		{Base: 0x10000, Size: 0x1000},
	}.Validate())

	// Adjacent areas touch but do not overlap
	require.NoError(t, MemoryAreaList{
		{Base: 0x1000, Size: 0x1000},
		{Base: 0x2000, Size: 0x1000},
	}.Validate())

	err := MemoryAreaList{
		{Base: 0x10000, Size: 0x1000},
		{Base: 0x1000, Size: 0x3000},
	}.Validate()
	require.Error(t, err)

	err = MemoryAreaList{
		{Base: 0x1000, Size: 0x3000},
		{Base: 0x2000, Size: 0x1000},
	}.Validate()
	require.Error(t, err)
}
