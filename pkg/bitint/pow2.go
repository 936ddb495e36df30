// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size transform
buffers. Every function is O(1), allocation free and safe to call from the
capture thread.

Usage:

	// Pick a zero-padded transform length for a ring of 1000 samples.
	bufferSize := bitint.NextPowerOfTwo(1000) // 1024

	// Reject transform lengths the backends cannot plan.
	ok := bitint.IsPowerOfTwo(bufferSize)

NextPowerOfTwo subtracts one before measuring the bit length so that exact
powers of two are preserved: bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8)
would give 4 and double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Values <= 0 map
// to 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single bit set, so clearing the lowest set bit with n&(n-1) leaves 0.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for a positive n and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
