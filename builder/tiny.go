// tiny.go - sorted-permutation strategy for small ordered key sets
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
	"sort"
)

// buildTiny sorts the index permutation by the user ordering; lookup is
// binary search over the reordered keys. No seed, no pilots. Returns nil
// when no ordering was supplied so dispatch falls through.
func buildTiny[K any](b *Builder[K], keys []K) *Result {
	if b.ord == nil {
		return nil
	}

	index := make([]uint32, len(keys))
	for i := range index {
		index[i] = uint32(i)
	}

	sort.SliceStable(index, func(x, y int) bool {
		return b.ord(keys[index[x]], keys[index[y]]) < 0
	})

	return &Result{
		Kind:  Tiny,
		Index: index,
	}
}
