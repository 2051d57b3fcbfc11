// small_test.go -- test suite for the single-level small PHF
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
	"testing"

	staticmap "github.com/opencoff/go-staticmap"
)

func TestSmallPHF(t *testing.T) {
	assert := newAsserter(t)

	// ten keys: few enough that the bounded seed search is certain to
	// land within its budget.
	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	res, err := New[string]().
		SetSeed(testSeed).
		SetHash(hashString).
		Build(keys)
	assert(err == nil, "build: %s", err)
	assert(res.Kind == Small, "kind: exp small, saw %s", res.Kind)
	assert(isPermutation(res.Index), "index is not a permutation")

	// placement invariant: the builder's slot equation lands every key
	// on the slot that holds its id.
	slotOf := make(map[uint32]int)
	for s, id := range res.Index {
		slotOf[id] = s
	}
	for i, k := range keys {
		h := hashString(res.Seed, k)
		s := staticmap.SmallSlot(h, uint32(len(keys)))
		assert(int(s) == slotOf[uint32(i)],
			"key %q: equation slot %d, stored at %d", k, s, slotOf[uint32(i)])
	}

	// full sweep through the lookup machine
	vals := make([]uint32, len(keys))
	for i := range vals {
		vals[i] = uint32(i)
	}

	m := staticmap.NewSmall[string, uint32](
		res.Seed,
		staticmap.NewPair[string, uint32](
			staticmap.List[string](Reorder(res, keys)),
			staticmap.List[uint32](Reorder(res, vals)),
		),
		hashString,
		staticmap.Eq[string],
	)

	for i, k := range keys {
		v, ok := m.Get(k)
		assert(ok, "key %q not found", k)
		assert(v == uint32(i), "key %q: exp %d, saw %d", k, i, v)
	}

	for i := range keys {
		q := fmt.Sprintf("k%dx", i)
		_, ok := m.Get(q)
		assert(!ok, "phantom key %q", q)
	}
}

func TestThirtyTwoKeys(t *testing.T) {
	assert := newAsserter(t)

	// k0..k31 with the fixed seed: the small search runs its full
	// budget first; whether it lands or falls through to medium, every
	// key must resolve and the index must be a permutation.
	keys := make([]string, 32)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	res, err := New[string]().
		SetSeed(testSeed).
		SetHash(hashString).
		Build(keys)
	assert(err == nil, "build: %s", err)
	assert(isPermutation(res.Index), "index is not a permutation")

	sweepResult(t, res, keys)
}

func TestSmallEmptyAndSingle(t *testing.T) {
	assert := newAsserter(t)

	res, err := New[string]().SetSeed(testSeed).SetHash(hashString).Build(nil)
	assert(err == nil, "empty build: %s", err)
	assert(res.Kind == Small && len(res.Index) == 0, "empty: kind %s len %d", res.Kind, len(res.Index))

	res, err = New[string]().SetSeed(testSeed).SetHash(hashString).Build([]string{"only"})
	assert(err == nil, "single build: %s", err)
	assert(res.Kind == Small, "single: kind %s", res.Kind)
	assert(len(res.Index) == 1 && res.Index[0] == 0, "single: index %v", res.Index)
}

func TestSmallSeedRetry(t *testing.T) {
	assert := newAsserter(t)

	// a constant hash collides immediately for n >= 2, so the small
	// strategy must burn its whole budget and fall through to medium;
	// medium cannot place either, and the limit turns that into
	// ErrBuildFailed rather than an infinite loop.
	degenerate := func(seed uint64, k string) uint64 { return 42 }

	var retries int
	_, err := New[string]().
		SetSeed(testSeed).
		SetLimit(3).
		SetHash(degenerate).
		SetTrace(func(ev TraceEvent) {
			if ev.Kind == TraceSeedRetry {
				retries++
			}
		}).
		Build([]string{"a", "b"})
	assert(err == ErrBuildFailed, "exp ErrBuildFailed, saw %v", err)
	assert(retries >= smallMaxTrials, "small search gave up early: %d retries", retries)
}
