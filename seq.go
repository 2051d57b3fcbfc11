// seq.go - storage shape abstractions for statically embedded data
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package staticmap

import (
	"encoding/binary"
	"fmt"
)

// Seq is the capability every storage shape provides: a length known at
// construction time and positional access. Concrete shapes are a raw byte
// blob (Bytes), a little-endian u32 blob (U32Array), a packed byte-string
// sequence (PositionSeq) and an inline literal (List). Generated code
// composes these over //go:embed'ed sidecar files; nothing is copied and
// At never allocates.
type Seq[T any] interface {
	Len() int
	At(i int) T
}

// Bytes is a raw byte blob viewed as a Seq of bytes.
type Bytes []byte

func (b Bytes) Len() int {
	return len(b)
}

func (b Bytes) At(i int) uint8 {
	return b[i]
}

// List is an inline literal sequence; the emitter uses it for sequences
// small enough to live in the generated source.
type List[T any] []T

func (l List[T]) Len() int {
	return len(l)
}

func (l List[T]) At(i int) T {
	return l[i]
}

// U32Array is a sequence of 32-bit integers stored as raw little-endian
// bytes; the backing blob is a byte-slice view of a sidecar file.
type U32Array struct {
	data []byte
}

// NewU32Array wraps a little-endian byte blob. The blob length must be a
// multiple of 4.
func NewU32Array(data []byte) (U32Array, error) {
	if len(data)%4 != 0 {
		return U32Array{}, fmt.Errorf("staticmap: u32 blob of %d bytes: %w", len(data), ErrBadBlob)
	}

	return U32Array{data: data}, nil
}

// MustU32Array is NewU32Array for generated code; it panics on a
// malformed blob.
func MustU32Array(data []byte) U32Array {
	a, err := NewU32Array(data)
	if err != nil {
		panic(err)
	}
	return a
}

func (a U32Array) Len() int {
	return len(a.data) / 4
}

func (a U32Array) At(i int) uint32 {
	return binary.LittleEndian.Uint32(a.data[4*i:])
}

// U64Array is a sequence of 64-bit integers stored as raw little-endian
// bytes.
type U64Array struct {
	data []byte
}

// NewU64Array wraps a little-endian byte blob. The blob length must be a
// multiple of 8.
func NewU64Array(data []byte) (U64Array, error) {
	if len(data)%8 != 0 {
		return U64Array{}, fmt.Errorf("staticmap: u64 blob of %d bytes: %w", len(data), ErrBadBlob)
	}

	return U64Array{data: data}, nil
}

// MustU64Array is NewU64Array for generated code; it panics on a
// malformed blob.
func MustU64Array(data []byte) U64Array {
	a, err := NewU64Array(data)
	if err != nil {
		panic(err)
	}
	return a
}

func (a U64Array) Len() int {
	return len(a.data) / 8
}

func (a U64Array) At(i int) uint64 {
	return binary.LittleEndian.Uint64(a.data[8*i:])
}

// PositionSeq is a packed sequence of byte strings: one content blob plus
// a sequence of *ending* offsets. Item i spans positions[i-1] to
// positions[i], with positions[-1] taken as zero. The layout is part of
// the sidecar contract.
type PositionSeq struct {
	content   []byte
	positions Seq[uint32]
}

// NewPositionSeq composes a content blob and its ending-offset sequence.
func NewPositionSeq(content []byte, positions Seq[uint32]) PositionSeq {
	return PositionSeq{content: content, positions: positions}
}

func (s PositionSeq) Len() int {
	return s.positions.Len()
}

func (s PositionSeq) At(i int) []byte {
	var start uint32
	if i > 0 {
		start = s.positions.At(i - 1)
	}
	end := s.positions.At(i)
	return s.content[start:end]
}
