package kmem

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested
// is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// FramesExhaustedError is the error returned from Allocator.Allocate when no source region has
// enough contiguous remaining space to satisfy the request. Whether exhaustion is fatal is the
// caller's decision - during early boot it usually is, but a caller with a fallback allocator
// may recover.
var FramesExhaustedError error = errors.New("no memory area has enough contiguous space remaining")

// FreeNotSupportedError is the error returned from Allocator.Free by allocator classes that
// cannot safely reclaim frames, such as the monotonic BumpAllocator. Callers that reach this
// error have violated the allocator's contract.
var FreeNotSupportedError error = errors.New("this allocator does not support freeing frames")
