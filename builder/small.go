// small.go - single-level linear-probe PHF for up to 128 keys
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
	staticmap "github.com/opencoff/go-staticmap"
)

// smallMaxTrials bounds the seed search; we never loop forever. A failed
// search is a fall-through signal, not an error.
const smallMaxTrials = 128 * 1024

// buildSmall searches for a seed under which every key lands in a
// distinct slot of a table whose size equals the key count. The slot
// equation folds both hash halves (staticmap.SmallSlot); the lookup side
// replays it verbatim. Returns nil on exhaustion.
func buildSmall[K any](b *Builder[K], keys []K, initial uint64) *Result {
	n := len(keys)
	seed := initial
	next := b.nextSeedFn()

	hashes := make([]uint64, n)
	slot := make([]int32, n)

search:
	for trial := uint64(0); trial < smallMaxTrials; trial++ {
		for i := range slot {
			slot[i] = -1
		}
		for i, k := range keys {
			hashes[i] = b.hash(seed, k)
		}

		for i, h := range hashes {
			s := staticmap.SmallSlot(h, uint32(n))
			if slot[s] >= 0 {
				seed = next(initial, trial)
				b.emit(TraceEvent{Kind: TraceSeedRetry, Seed: seed, Trial: trial})
				continue search
			}
			slot[s] = int32(i)
		}

		index := make([]uint32, n)
		for s, keyIdx := range slot {
			index[s] = uint32(keyIdx)
		}

		return &Result{
			Kind:  Small,
			Seed:  seed,
			Index: index,
		}
	}

	return nil
}
