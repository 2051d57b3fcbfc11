// phf.go - bit mixing primitives shared by the builder and the lookup side
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package staticmap

// These functions are part of the on-disk and generated-code contract:
// the builder places keys with them and every lookup must recompute the
// exact same values. Do not change them without bumping the artifact
// version.

// pilotC is the fxhash multiplier used to blend a pilot byte into a seed.
const pilotC uint64 = 0x517cc1b727220a95

// High returns the upper 32 bits of v.
func High(v uint64) uint32 {
	return uint32(v >> 32)
}

// Low returns the lower 32 bits of v.
func Low(v uint64) uint32 {
	return uint32(v)
}

// FastReduce32 maps x uniformly into [0, limit) without a division;
// this is Lemire's fastrange reduction.
func FastReduce32(x, limit uint32) uint32 {
	return uint32((uint64(x) * uint64(limit)) >> 32)
}

// HashPilot mixes an 8-bit pilot into a 64-bit seed. The builder searches
// pilot bytes with it and the medium lookup equation replays it.
func HashPilot(seed uint64, pilot uint8) uint64 {
	return pilotC * (seed ^ uint64(pilot))
}

// SmallSlot evaluates the small-map placement equation: the two halves of
// the hash are folded together and reduced into the table.
// Folding both halves matters; plenty of otherwise fine hash functions
// put their entropy in only one half.
func SmallSlot(h uint64, n uint32) uint32 {
	return FastReduce32(High(h)^Low(h), n)
}

// MediumBucket evaluates the bucket half of the medium placement equation.
func MediumBucket(h uint64, nbuckets uint32) uint32 {
	return FastReduce32(Low(h), nbuckets)
}

// MediumSlot evaluates the slot half of the medium placement equation for
// a key hash 'h' and a pilot hash 'hp'.
func MediumSlot(h, hp uint64, slots uint32) uint32 {
	return FastReduce32(High(h)^High(hp)^Low(hp), slots)
}
