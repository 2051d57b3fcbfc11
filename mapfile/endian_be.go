// endian_be.go -- endian conversion routines for big-endian archs.
// The table region is stored little-endian; on these archs a mmap'd
// native load must be byte-swapped.
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build ppc64 || mips || mips64 || s390x

package mapfile

import (
	"math/bits"
)

func toLittleEndianUint64(v uint64) uint64 {
	return bits.ReverseBytes64(v)
}

func toLittleEndianUint32(v uint32) uint32 {
	return bits.ReverseBytes32(v)
}
