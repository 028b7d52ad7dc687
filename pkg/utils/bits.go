package utils

import (
	"golang.org/x/exp/constraints"
)

// Returns an all ones bitmask of n bits of the given unsigned integer type
func AllOnes[T constraints.Unsigned](bits int) T {
	return (T(1) << bits) - T(1)
}

// Extracts a range of bits from a value, given the first bit and the width
// of the range
func ReadBits[T constraints.Unsigned](value T, bit int, width int) T {
	return (value >> bit) & AllOnes[T](width)
}

// Extracts a range of bits from a value and sign-extends the result, treating
// the most significant bit of the range as the sign bit
func ReadBitsSigned[T constraints.Unsigned](value T, bit int, width int) int64 {
	field := uint64(ReadBits(value, bit, width))
	sign := uint64(1) << (width - 1)

	if field&sign != 0 {
		field |= ^uint64(0) << width
	}

	return int64(field)
}

// Copies a value into a range of bits, given the start and width of the range.
// All most significant bits of the value not fitting into the destination
// range are ignored. Bits outside the range are preserved.
func WriteBits[T constraints.Unsigned](dst T, value T, bit int, width int) T {
	mask := AllOnes[T](width) << bit
	return (dst &^ mask) | ((value << bit) & mask)
}
