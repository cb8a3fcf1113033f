package frame

import (
	"fmt"
	"log/slog"
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mantleos/kmem"
	"github.com/mantleos/kmem/arch"
)

// regionCursor is a position within an ordered memory-area list: the suffix of
// areas still under consideration and a byte offset into the first of them.
type regionCursor struct {
	areas  []kmem.MemoryArea
	offset uint64
}

func (c regionCursor) remainingBytes() uint64 {
	var remaining uint64
	for _, area := range c.areas {
		remaining += area.Size
	}
	return remaining - c.offset
}

// BumpAllocator is the reference Allocator: it hands out strictly increasing
// physical addresses from an ordered region list until each region is
// exhausted, then advances to the next. It never reclaims - a region (or a
// region's leftover tail too small for the request that abandoned it) is never
// revisited. It exists to bootstrap a more capable allocator, not to serve as
// the kernel's long-term frame source.
//
// The type is generic over the architecture so that the page size and the
// zero-fill path bind at compile time rather than through runtime dispatch.
type BumpAllocator[A arch.Arch] struct {
	logger  *slog.Logger
	machine A

	// orig is retained untouched so Usage can compute total capacity without
	// re-walking what allocation has consumed; cur advances on every
	// allocation and is always a suffix of orig
	orig regionCursor
	cur  regionCursor
}

var _ Allocator = &BumpAllocator[arch.Arch]{}

// NewBumpAllocator builds a bump allocator over areas, with skipOffset bytes
// already spoken for by material loaded before the allocator existed (such as
// the kernel image itself). The offset is normalized by walking forward over
// whole areas smaller than it; an offset consuming every area yields an
// allocator that is exhausted from birth, which is legal.
//
// areas must be in ascending base-address order without overlaps. This is not
// checked in production builds - allocation behavior over a malformed list is
// undefined - but the debug_kmem build tag validates it at construction.
func NewBumpAllocator[A arch.Arch](logger *slog.Logger, machine A, areas []kmem.MemoryArea, skipOffset uint64) *BumpAllocator[A] {
	kmem.DebugValidate(kmem.MemoryAreaList(areas))

	for len(areas) > 0 && areas[0].Size <= skipOffset {
		skipOffset -= areas[0].Size
		areas = areas[1:]
	}
	if len(areas) == 0 {
		// The offset consumed more than the supplied capacity; nothing is
		// left to anchor it to
		skipOffset = 0
	}

	cursor := regionCursor{areas: areas, offset: skipOffset}
	allocator := &BumpAllocator[A]{
		logger:  logger,
		machine: machine,
		orig:    cursor,
		cur:     cursor,
	}

	logger.Debug("BumpAllocator::New",
		slog.Int("AreaCount", len(areas)),
		slog.Uint64("SkipOffset", skipOffset),
		slog.Uint64("TotalFrames", allocator.Usage().Total.Data()),
	)

	return allocator
}

// Allocate reserves count contiguous frames per the advance-or-drop-region
// rule: if the current region's remaining capacity cannot hold the request,
// the region is dropped entirely and the next one is tried from offset zero;
// when the region list runs out, the allocator is exhausted for good.
func (a *BumpAllocator[A]) Allocate(count kmem.FrameCount) (kmem.PhysicalAddress, error) {
	pageSize := a.machine.Geometry().PageSize
	if count.Data() > math.MaxUint64/pageSize {
		return 0, cerrors.Wrapf(kmem.FramesExhaustedError, "%d frames overflow a byte count", count.Data())
	}
	reqSize := count.Data() * pageSize

	var block kmem.PhysicalAddress
	for {
		if len(a.cur.areas) == 0 {
			return 0, cerrors.Wrapf(kmem.FramesExhaustedError, "requested %d frames", count.Data())
		}

		area := a.cur.areas[0]
		if area.Size-a.cur.offset < reqSize {
			a.cur = regionCursor{areas: a.cur.areas[1:], offset: 0}
			continue
		}

		block = area.Base.Add(a.cur.offset)
		a.cur.offset += reqSize
		break
	}

	a.machine.WriteBytes(a.machine.PhysToVirt(block), 0, reqSize)

	return block, nil
}

// Free always fails - this allocator class never reclaims.
func (a *BumpAllocator[A]) Free(address kmem.PhysicalAddress, count kmem.FrameCount) error {
	return cerrors.Wrapf(kmem.FreeNotSupportedError, "attempted to free %d frames at %#x from a bump allocator", count.Data(), address.Data())
}

// Usage reports frame accounting computed from the two cursors: total is the
// original capacity minus the skip offset, used is total minus what the
// current cursor can still produce. Bytes a dropped region left behind count
// as used.
func (a *BumpAllocator[A]) Usage() kmem.FrameUsage {
	pageSize := a.machine.Geometry().PageSize
	total := a.orig.remainingBytes()
	free := a.cur.remainingBytes()

	return kmem.FrameUsage{
		Used:  kmem.FrameCount((total - free) / pageSize),
		Total: kmem.FrameCount(total / pageSize),
	}
}

// Areas retrieves the region list as normalized at construction.
func (a *BumpAllocator[A]) Areas() []kmem.MemoryArea {
	return a.orig.areas
}

// FreeAreas retrieves the one partially consumed area and the fully free areas
// after it, plus the byte offset after which the first of them is free.
func (a *BumpAllocator[A]) FreeAreas() ([]kmem.MemoryArea, uint64) {
	return a.cur.areas, a.cur.offset
}

// AbsOffset is the physical address the next minimal allocation would return,
// or zero once the allocator is exhausted.
func (a *BumpAllocator[A]) AbsOffset() kmem.PhysicalAddress {
	if len(a.cur.areas) == 0 {
		return 0
	}
	return a.cur.areas[0].Base.Add(a.cur.offset)
}

// BuildStatsString writes the allocator's state as a JSON object.
func (a *BumpAllocator[A]) BuildStatsString(writer *jwriter.Writer) {
	usage := a.Usage()

	obj := writer.Object()
	defer obj.End()

	obj.Name("TotalFrames").Int(int(usage.Total.Data()))
	obj.Name("UsedFrames").Int(int(usage.Used.Data()))
	obj.Name("Offset").String(fmt.Sprintf("%#x", a.cur.offset))

	areaArray := obj.Name("FreeAreas").Array()
	for _, area := range a.cur.areas {
		areaObj := areaArray.Object()
		areaObj.Name("Base").String(fmt.Sprintf("%#x", area.Base.Data()))
		areaObj.Name("Size").String(fmt.Sprintf("%#x", area.Size))
		areaObj.End()
	}
	areaArray.End()
}
