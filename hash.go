// hash.go - seeded hash oracles over byte-string keys
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
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"github.com/opencoff/go-fasthash"
)

// Hasher is the oracle contract: a deterministic 64-bit hash of a key
// under a seed, with the seed mixed in before the key bytes. The builder
// and the generated lookup must use the same implementation; the choice
// of function only affects seed-search time, never correctness.
type Hasher interface {
	Hash(seed uint64, key []byte) uint64
}

// SipHasher hashes with SipHash-2-4, keyed by the seed.
type SipHasher struct{}

func (SipHasher) Hash(seed uint64, key []byte) uint64 {
	return siphash.Hash(seed, 0, key)
}

// XXHasher hashes with xxHash64. xxhash has no keyed variant, so the seed
// is fed to the digest as an 8-byte little-endian prefix block.
type XXHasher struct{}

func (XXHasher) Hash(seed uint64, key []byte) uint64 {
	var blk [8]byte
	binary.LittleEndian.PutUint64(blk[:], seed)

	var d xxhash.Digest
	d.Reset()
	d.Write(blk[:])
	d.Write(key)
	return d.Sum64()
}

// FastHasher hashes with Zi Long Tan's superfast hash. It is the weakest
// of the stock oracles and mostly useful for exercising the builder's
// collision paths.
type FastHasher struct{}

func (FastHasher) Hash(seed uint64, key []byte) uint64 {
	return fasthash.Hash64(seed, key)
}

// FNVHasher is a dependency-free FNV-1a fold: 8 little-endian seed bytes
// followed by the key bytes. It is also the mix behind the default seed
// progression (NextSeed); the builder itself has no default oracle.
type FNVHasher struct{}

const (
	fnvOffset uint64 = 0xcbf29ce484222325
	fnvPrime  uint64 = 0x100000001b3
)

func (FNVHasher) Hash(seed uint64, key []byte) uint64 {
	h := fnvOffset
	for i := 0; i < 8; i++ {
		h ^= uint64(uint8(seed >> (8 * i)))
		h *= fnvPrime
	}
	for _, b := range key {
		h ^= uint64(b)
		h *= fnvPrime
	}
	return h
}

// FoldHasher folds any standard 64-bit-finalizing hash into the oracle
// contract by writing the seed and then the key. It allocates one hash
// state per call and is meant for build-time experiments, not for the
// zero-allocation lookup path.
type FoldHasher struct {
	New func() hash.Hash64
}

func (f FoldHasher) Hash(seed uint64, key []byte) uint64 {
	var blk [8]byte
	binary.LittleEndian.PutUint64(blk[:], seed)

	h := f.New()
	h.Write(blk[:])
	h.Write(key)
	return h.Sum64()
}

// NextSeed is the default seed progression: a deterministic FNV-1a mix of
// the initial seed and the trial counter. Any pure 64-bit mixer works
// here; a non-deterministic source would make builds unreproducible.
func NextSeed(initial, trial uint64) uint64 {
	var blk [8]byte
	binary.LittleEndian.PutUint64(blk[:], trial)
	return FNVHasher{}.Hash(initial, blk[:])
}
