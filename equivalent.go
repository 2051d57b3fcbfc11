// equivalent.go - query/key comparison vocabulary
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
	"bytes"
	"cmp"
)

// A lookup machine needs up to three capabilities over its key type: an
// equality check (every map), an ordering (TinyMap) and a seeded hash
// (SmallMap and MediumMap). They are plain funcs so that generated code
// can name stock implementations by expression.

// EqFunc reports whether a query equals a stored key.
type EqFunc[K any] func(q, k K) bool

// CmpFunc orders a query against a stored key; negative, zero, positive
// like bytes.Compare.
type CmpFunc[K any] func(q, k K) int

// HashFunc hashes a key under a seed. The same function must be used at
// build time and at lookup time; see Hasher for the []byte adapters.
type HashFunc[K any] func(seed uint64, k K) uint64

// Eq is the stock equality for comparable key types.
func Eq[K comparable](q, k K) bool {
	return q == k
}

// Cmp is the stock ordering for ordered key types.
func Cmp[K cmp.Ordered](q, k K) int {
	return cmp.Compare(q, k)
}

// BytesEq is the stock equality for byte-string keys.
func BytesEq(q, k []byte) bool {
	return bytes.Equal(q, k)
}

// BytesCmp is the stock ordering for byte-string keys.
func BytesCmp(q, k []byte) int {
	return bytes.Compare(q, k)
}
