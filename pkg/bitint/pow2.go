// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-2 helpers for spectral block sizing.

The transform layer accepts any block length, but power-of-2 lengths hit the
fast radix paths of the FFT, so the engine uses these helpers to warn about
slow configurations and to suggest the nearest fast one.

All operations are O(1), allocation-free, and real-time safe.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Powers of 2 are
// preserved; zero and negative inputs return 1.
//
// The size-1 subtraction is what preserves exact powers of 2: bits.Len of
// size-1 yields the shift that reproduces size itself, while bits.Len of
// size would double it.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of 2 have exactly one bit
// set, so n & (n-1) clears it and leaves zero only for them.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
