package kmem

import (
	cerrors "github.com/cockroachdb/errors"
)

// Number is a constraint covering the unsigned types this package does alignment and
// power-of-two arithmetic on.
type Number interface {
	~uint | ~uint64 | ~uintptr
}

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a power of two.
// name identifies the offending value in the error message.
func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment, which must be a power
// of two.
func AlignUp[T Number](value T, alignment T) T {
	return (value + alignment - 1) & ^(alignment - 1)
}

// AlignDown rounds value down to the nearest multiple of alignment, which must be a
// power of two.
func AlignDown[T Number](value T, alignment T) T {
	return value & ^(alignment - 1)
}
