// mmap.go -- reinterpret mmap'd byte slices as integer slices
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package mapfile

import (
	"unsafe"
)

// The table region of a map file is mmap'd and viewed in place as
// little-endian integer arrays. The writer lays the tables out at 8-byte
// alignment from a page boundary, so the casts below are safe; the
// alignment checks guard against a corrupted or hand-built file.

// byte-slice to uint32 slice
func bsToUint32Slice(b []byte) []uint32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}

	p := unsafe.Pointer(&b[0])
	if uintptr(p)%unsafe.Alignof(uint32(0)) != 0 {
		panic("mapfile: misaligned u32 table")
	}

	return unsafe.Slice((*uint32)(p), n)
}

// byte-slice to uint64 slice
func bsToUint64Slice(b []byte) []uint64 {
	n := len(b) / 8
	if n == 0 {
		return nil
	}

	p := unsafe.Pointer(&b[0])
	if uintptr(p)%unsafe.Alignof(uint64(0)) != 0 {
		panic("mapfile: misaligned u64 table")
	}

	return unsafe.Slice((*uint64)(p), n)
}
