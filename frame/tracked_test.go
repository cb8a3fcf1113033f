package frame

import (
	"testing"

	"github.com/mantleos/kmem"
	"github.com/mantleos/kmem/frame/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTrackedRejectsUnknownFree(t *testing.T) {
	_, bump := emulatedBump(t, 0x10_0000, 0)
	allocator := NewTrackedAllocator(testLogger(), bump)

	err := allocator.Free(kmem.PhysicalAddress(0x4000), 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, kmem.FreeNotSupportedError)
}

func TestTrackedRejectsWrongCount(t *testing.T) {
	_, bump := emulatedBump(t, 0x10_0000, 0)
	allocator := NewTrackedAllocator(testLogger(), bump)

	address, err := allocator.Allocate(4)
	require.NoError(t, err)

	err = allocator.Free(address, 2)
	require.Error(t, err)
}

func TestTrackedKeepsSpanWhenInnerRefusesFree(t *testing.T) {
	_, bump := emulatedBump(t, 0x10_0000, 0)
	allocator := NewTrackedAllocator(testLogger(), bump)

	address, err := allocator.Allocate(1)
	require.NoError(t, err)

	// The bump allocator refuses to reclaim, so the span must stay live
	err = allocator.Free(address, 1)
	require.ErrorIs(t, err, kmem.FreeNotSupportedError)
	require.Equal(t, 1, allocator.CheckLeaks())
}

func TestTrackedFreeRemovesLedgerEntry(t *testing.T) {
	ctrl := gomock.NewController(t)

	inner := mocks.NewMockAllocator(ctrl)
	inner.EXPECT().Allocate(kmem.FrameCount(2)).Return(kmem.PhysicalAddress(0x8000), nil)
	inner.EXPECT().Free(kmem.PhysicalAddress(0x8000), kmem.FrameCount(2)).Return(nil)

	allocator := NewTrackedAllocator(testLogger(), inner)

	address, err := allocator.Allocate(2)
	require.NoError(t, err)

	require.NoError(t, allocator.Free(address, 2))
	require.Equal(t, 0, allocator.CheckLeaks())

	// Second free of the same span is a double-free
	err = allocator.Free(address, 2)
	require.Error(t, err)
}

func TestTrackedCheckLeaks(t *testing.T) {
	_, bump := emulatedBump(t, 0x10_0000, 0)
	allocator := NewTrackedAllocator(testLogger(), bump)

	require.Equal(t, 0, allocator.CheckLeaks())

	_, err := allocator.Allocate(1)
	require.NoError(t, err)
	_, err = allocator.Allocate(3)
	require.NoError(t, err)

	require.Equal(t, 2, allocator.CheckLeaks())
}

func TestTrackedValidate(t *testing.T) {
	_, bump := emulatedBump(t, 0x10_0000, 0)
	allocator := NewTrackedAllocator(testLogger(), bump)

	_, err := allocator.Allocate(4)
	require.NoError(t, err)
	require.NoError(t, allocator.Validate())

	// An inner allocator reporting fewer frames used than the ledger holds
	// is inconsistent
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockAllocator(ctrl)
	inner.EXPECT().Allocate(kmem.FrameCount(4)).Return(kmem.PhysicalAddress(0x8000), nil)
	inner.EXPECT().Usage().Return(kmem.FrameUsage{Used: 1, Total: 16})

	broken := NewTrackedAllocator(testLogger(), inner)
	_, err = broken.Allocate(4)
	require.NoError(t, err)
	require.Error(t, broken.Validate())
}
