// medium.go - bucketed-displacement PHF with pilot bytes and a remap tail
//
// This is a variant of the PTRHash design: keys are grouped into buckets
// by the low hash half, buckets are placed biggest-first, and each bucket
// gets one pilot byte perturbing where its keys land. When no pilot is
// conflict free, the cheapest set of previously placed buckets is evicted
// and re-queued.
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package builder

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	staticmap "github.com/opencoff/go-staticmap"
)

const (
	// mediumAlpha is the slot utilization: slots ≈ keys/alpha.
	mediumAlpha = 0.99

	// mediumLambda is the mean bucket load: buckets ≈ keys/lambda.
	mediumLambda = 3.0
)

// mediumScratch owns every buffer the seed search needs. Buffers are
// reset per attempt, not reallocated, keeping peak memory O(N).
type mediumScratch struct {
	buckets [][]int32 // key ids per bucket
	pilots  []uint8
	order   []uint32
	slots   []mediumSlot
	hashes  []uint64
	stack   []uint32
	recent  []uint32
	scored  []uint32
	toAdd   []slotAssign
}

// mediumSlot is one entry of the global placement table; key < 0 means
// the slot is empty.
type mediumSlot struct {
	bucket uint32
	key    int32
}

type slotAssign struct {
	slot uint32
	key  int32
}

func newMediumScratch(nkeys int, nbuckets, nslots uint32) *mediumScratch {
	s := &mediumScratch{
		buckets: make([][]int32, nbuckets),
		pilots:  make([]uint8, nbuckets),
		order:   make([]uint32, nbuckets),
		slots:   make([]mediumSlot, nslots),
		hashes:  make([]uint64, nkeys),
		toAdd:   make([]slotAssign, 0, int(mediumLambda)*2),
	}
	for i := range s.order {
		s.order[i] = uint32(i)
	}
	return s
}

func (s *mediumScratch) reset() {
	for i := range s.buckets {
		s.buckets[i] = s.buckets[i][:0]
	}
	for i := range s.pilots {
		s.pilots[i] = 0
	}
	for i := range s.slots {
		s.slots[i] = mediumSlot{key: -1}
	}
}

// mediumSlotCount returns ceil(n/alpha), bumped past any power of two:
// with a power-of-two slot count the fastrange reduction degenerates to
// a shift and ignores the low bits of its input.
func mediumSlotCount(n uint32) uint32 {
	slots := uint32(math.Ceil(float64(n) / mediumAlpha))
	if bits.OnesCount32(slots) == 1 {
		slots++
	}
	return slots
}

// mediumBucketCount returns ceil(n/lambda) plus a few spare buckets that
// keep tiny key sets from degenerating.
func mediumBucketCount(n uint32) uint32 {
	return uint32(math.Ceil(float64(n)/mediumLambda)) + 3
}

// buildMedium runs the outer seed loop: hash and bucket every key, place
// buckets biggest-first via placeBucket, and extract the index/remap
// arrays on success. A placement dead-end abandons the seed and advances
// the progression; an optional trial limit turns exhaustion into
// ErrBuildFailed.
func buildMedium[K any](b *Builder[K], keys []K, initial uint64) (*Result, error) {
	nkeys := len(keys)
	if uint64(nkeys) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	n := uint32(nkeys)
	nslots := mediumSlotCount(n)
	nbuckets := mediumBucketCount(n)

	seed := initial
	next := b.nextSeedFn()
	scr := newMediumScratch(nkeys, nbuckets, nslots)

	for trial := uint64(0); ; trial++ {
		if b.haveLimit && trial >= b.limit {
			break
		}

		scr.reset()

		for i, k := range keys {
			scr.hashes[i] = b.hash(seed, k)
		}
		for i, h := range scr.hashes {
			bkt := staticmap.MediumBucket(h, nbuckets)
			scr.buckets[bkt] = append(scr.buckets[bkt], int32(i))
		}

		// biggest buckets first; they have the fewest viable pilots.
		sort.Slice(scr.order, func(x, y int) bool {
			return len(scr.buckets[scr.order[x]]) > len(scr.buckets[scr.order[y]])
		})

		placed := true
		for _, root := range scr.order {
			if len(scr.buckets[root]) == 0 {
				continue
			}

			b.emit(TraceEvent{Kind: TraceRound, Seed: seed, Trial: trial, Bucket: root})

			if !placeBucket(b, scr, seed, nslots, root) {
				placed = false
				break
			}
		}

		if !placed {
			seed = next(initial, trial)
			b.emit(TraceEvent{Kind: TraceSeedRetry, Seed: seed, Trial: trial})
			continue
		}

		return extractMedium(scr, seed, n, nslots), nil
	}

	return nil, ErrBuildFailed
}

// placeBucket places one root bucket and every bucket its evictions
// displace. Buckets touched in this round are recorded in scr.recent and
// never evicted again: that cuts eviction cycles without the bookkeeping
// the original ptrhash uses. Returns false when some bucket has no
// usable pilot at all, which abandons the seed.
func placeBucket[K any](b *Builder[K], scr *mediumScratch, seed uint64, nslots, root uint32) bool {
	scr.recent = scr.recent[:0]
	scr.stack = append(scr.stack[:0], root)

	for len(scr.stack) > 0 {
		// pop the biggest pending bucket.
		sort.Slice(scr.stack, func(x, y int) bool {
			return len(scr.buckets[scr.stack[x]]) < len(scr.buckets[scr.stack[y]])
		})
		cur := scr.stack[len(scr.stack)-1]
		scr.stack = scr.stack[:len(scr.stack)-1]

		scr.recent = append(scr.recent, cur)

		if pilotNoConflict(scr, seed, nslots, cur) {
			continue
		}

		pilot, ok := pilotBestScore(scr, seed, nslots, cur)
		if !ok {
			return false
		}

		evictAndPlace(b, scr, seed, nslots, cur, pilot)
	}

	return true
}

// pilotNoConflict is the fast path: find a pilot whose slots are all
// empty and pairwise distinct. On success the bucket is committed.
func pilotNoConflict(scr *mediumScratch, seed uint64, nslots, cur uint32) bool {
	bucket := scr.buckets[cur]

pilot:
	for p := 0; p <= math.MaxUint8; p++ {
		scr.toAdd = scr.toAdd[:0]
		hp := staticmap.HashPilot(seed, uint8(p))

		for _, key := range bucket {
			slot := staticmap.MediumSlot(scr.hashes[key], hp, nslots)
			if scr.slots[slot].key >= 0 || assignsContain(scr.toAdd, slot) {
				continue pilot
			}
			scr.toAdd = append(scr.toAdd, slotAssign{slot: slot, key: key})
		}

		scr.pilots[cur] = uint8(p)
		for _, a := range scr.toAdd {
			scr.slots[a.slot] = mediumSlot{bucket: cur, key: a.key}
		}
		return true
	}

	return false
}

// pilotBestScore is the slow path: pick the pilot whose evictions are
// cheapest, scoring each displaced bucket by the square of its size and
// at most once per candidate. Candidates that would displace a bucket
// already touched this round are rejected outright (cycle prevention),
// as are candidates that reuse a slot within themselves. Iteration
// starts at 0x42 so the slow path explores a different region than the
// fast path just exhausted.
func pilotBestScore(scr *mediumScratch, seed uint64, nslots, cur uint32) (uint8, bool) {
	bucket := scr.buckets[cur]
	curLoad := len(bucket) * len(bucket)

	var bestPilot uint8
	bestScore := -1

pilot:
	for i := 0; i <= math.MaxUint8; i++ {
		p := uint8(i) + 0x42
		scr.toAdd = scr.toAdd[:0]
		scr.scored = scr.scored[:0]

		hp := staticmap.HashPilot(seed, p)
		score := 0

		for _, key := range bucket {
			slot := staticmap.MediumSlot(scr.hashes[key], hp, nslots)
			if assignsContain(scr.toAdd, slot) {
				continue pilot
			}

			newScore := 0
			if occ := scr.slots[slot]; occ.key >= 0 {
				if bucketsContain(scr.recent, occ.bucket) {
					continue pilot
				}
				if !bucketsContain(scr.scored, occ.bucket) {
					scr.scored = append(scr.scored, occ.bucket)
					load := len(scr.buckets[occ.bucket])
					newScore = load * load
				}
			}

			scr.toAdd = append(scr.toAdd, slotAssign{slot: slot, key: key})
			score += newScore

			if bestScore >= 0 && score >= bestScore {
				continue pilot
			}
		}

		bestPilot, bestScore = p, score

		// A collision-free pilot was ruled out already, so the best we
		// can hope for is one eviction of a full-sized bucket.
		if score == curLoad {
			break
		}
	}

	return bestPilot, bestScore >= 0
}

// evictAndPlace commits a slow-path pilot: the current bucket takes its
// slots, and every bucket it displaces is wiped from the table and
// pushed back on the stack for re-placement.
func evictAndPlace[K any](b *Builder[K], scr *mediumScratch, seed uint64, nslots, cur uint32, pilot uint8) {
	scr.pilots[cur] = pilot
	hp := staticmap.HashPilot(seed, pilot)

	for _, key := range scr.buckets[cur] {
		slot := staticmap.MediumSlot(scr.hashes[key], hp, nslots)
		old := scr.slots[slot]
		scr.slots[slot] = mediumSlot{bucket: cur, key: key}

		if old.key < 0 {
			continue
		}

		debugAssert(!bucketsContain(scr.stack, old.bucket),
			fmt.Sprintf("bucket %d evicted while already queued", old.bucket))
		scr.stack = append(scr.stack, old.bucket)
		b.emit(TraceEvent{Kind: TraceEvict, Seed: seed, Bucket: old.bucket, Pilot: pilot})

		// wipe every slot the evicted bucket still owns so it can be
		// re-placed from scratch.
		oldHp := staticmap.HashPilot(seed, scr.pilots[old.bucket])
		for _, oldKey := range scr.buckets[old.bucket] {
			oldSlot := staticmap.MediumSlot(scr.hashes[oldKey], oldHp, nslots)
			if oldSlot == slot {
				continue
			}
			debugAssert(scr.slots[oldSlot].key >= 0 && scr.slots[oldSlot].bucket == old.bucket,
				"evicted bucket lost track of its slots")
			scr.slots[oldSlot] = mediumSlot{key: -1}
		}
	}
}

// extractMedium turns the placement table into the index permutation and
// the remap tail. Empty slots in the dense prefix become holes; every
// occupied slot past the prefix is redirected into one hole.
func extractMedium(scr *mediumScratch, seed uint64, n, nslots uint32) *Result {
	index := make([]uint32, n)
	remap := make([]uint32, nslots-n)
	holes := make([]uint32, 0, nslots-n)

	for s, slot := range scr.slots {
		switch {
		case uint32(s) < n && slot.key >= 0:
			index[s] = uint32(slot.key)
		case uint32(s) < n:
			holes = append(holes, uint32(s))
		case slot.key >= 0:
			hole := holes[len(holes)-1]
			holes = holes[:len(holes)-1]
			remap[uint32(s)-n] = hole
			index[hole] = uint32(slot.key)
		}
	}

	debugAssert(isPermutation(index), "index is not a permutation")

	pilots := make([]uint8, len(scr.pilots))
	copy(pilots, scr.pilots)

	return &Result{
		Kind:   Medium,
		Seed:   seed,
		Pilots: pilots,
		Remap:  remap,
		Slots:  nslots,
		Index:  index,
	}
}

func assignsContain(assigns []slotAssign, slot uint32) bool {
	for _, a := range assigns {
		if a.slot == slot {
			return true
		}
	}
	return false
}

func bucketsContain(buckets []uint32, b uint32) bool {
	for _, x := range buckets {
		if x == b {
			return true
		}
	}
	return false
}

func debugAssert(cond bool, msg string) {
	if !cond {
		panic("builder: " + msg)
	}
}
