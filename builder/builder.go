// builder.go - map construction façade and strategy dispatch
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package builder constructs perfect hash maps for the staticmap runtime.
// A Builder is configured with a hash oracle (and optionally an ordering,
// a pinned seed, and a trial limit), consumed once by Build, and yields a
// Result: the strategy that succeeded, its parameters, and the index
// permutation that reorders the caller's keys into storage order. The
// Emitter in this package turns a Result plus reordered key/value streams
// into generated Go source and sidecar blobs.
package builder

import (
	"errors"

	staticmap "github.com/opencoff/go-staticmap"
)

const (
	// tinyMaxKeys is the largest key set the sorted tiny strategy takes.
	tinyMaxKeys = 16

	// smallMaxKeys is the largest key set the single-level small PHF takes.
	smallMaxKeys = 128

	// mediumMaxKeys is the hard upper bound: beyond it seed searches stop
	// completing in reasonable time, so Build refuses unless forced.
	mediumMaxKeys = 10 * 1024 * 1024
)

var (
	// ErrNoHash is returned when the small/medium strategies are needed
	// but no hash oracle was configured.
	ErrNoHash = errors.New("need hash method")

	// ErrBuildFailed is returned when the seed-search budget is
	// exhausted without finding a collision-free placement.
	ErrBuildFailed = errors.New("build failed")

	// ErrTooLarge is returned for key sets above the supported maximum
	// unless SetForce(true) overrides the refusal.
	ErrTooLarge = errors.New("too large")
)

// TraceKind discriminates instrumentation events.
type TraceKind int

const (
	// TraceSeedRetry: a seed was abandoned and the progression advanced.
	TraceSeedRetry TraceKind = iota

	// TraceRound: the medium strategy started placing a new root bucket.
	TraceRound

	// TraceEvict: a previously placed bucket was evicted and re-queued.
	TraceEvict
)

// TraceEvent is delivered to the optional trace hook. It exists for
// tests and diagnostics; production builds leave the hook nil.
type TraceEvent struct {
	Kind   TraceKind
	Seed   uint64
	Trial  uint64
	Bucket uint32
	Pilot  uint8
}

// Builder constructs a map over keys of type K. It is single-use: one
// call to Build consumes it. K is a key handle; the hash and ord
// callbacks give the builder its only views of the key content.
type Builder[K any] struct {
	seed      uint64
	haveSeed  bool
	limit     uint64
	haveLimit bool
	force     bool
	ord       func(a, b K) int
	hash      staticmap.HashFunc[K]
	nextSeed  func(initial, trial uint64) uint64
	trace     func(TraceEvent)
}

// New returns a Builder with no hash, no ordering and a process-random
// initial seed.
func New[K any]() *Builder[K] {
	return &Builder[K]{}
}

// SetSeed pins the initial seed; without it one is drawn from
// crypto/rand. Pinning the seed (and keeping the same hash and
// progression) makes builds reproducible.
func (b *Builder[K]) SetSeed(seed uint64) *Builder[K] {
	b.seed = seed
	b.haveSeed = true
	return b
}

// SetLimit bounds the number of medium seed trials. When the limit is
// exceeded Build returns ErrBuildFailed.
func (b *Builder[K]) SetLimit(limit uint64) *Builder[K] {
	b.limit = limit
	b.haveLimit = true
	return b
}

// SetOrd supplies a total ordering over keys; it enables the tiny
// strategy for key sets of up to 16.
func (b *Builder[K]) SetOrd(ord func(a, b K) int) *Builder[K] {
	b.ord = ord
	return b
}

// SetHash supplies the seeded hash oracle; required for the small and
// medium strategies. The exact same function must drive the lookup side.
func (b *Builder[K]) SetHash(hash staticmap.HashFunc[K]) *Builder[K] {
	b.hash = hash
	return b
}

// SetNextSeed replaces the seed progression. The default is
// staticmap.NextSeed; any pure deterministic mixer is acceptable.
func (b *Builder[K]) SetNextSeed(next func(initial, trial uint64) uint64) *Builder[K] {
	b.nextSeed = next
	return b
}

// SetForce lifts the hard key-count refusal. Builds this large may take
// a very long time.
func (b *Builder[K]) SetForce(force bool) *Builder[K] {
	b.force = force
	return b
}

// SetTrace installs an instrumentation hook. The hook is called
// synchronously from inside the search loops; keep it cheap.
func (b *Builder[K]) SetTrace(trace func(TraceEvent)) *Builder[K] {
	b.trace = trace
	return b
}

// Build runs strategy dispatch over keys:
//
//  1. up to 16 keys with an ordering: tiny (pure sort permutation)
//  2. up to 128 keys: small (single-level PHF, bounded seed search)
//  3. otherwise: medium (bucketed displacement), refusing above the
//     hard maximum unless forced
//
// A strategy that cannot place the keys is not an error; dispatch falls
// through to the next one. Build fails only on a missing hash oracle, an
// exhausted seed budget, or an oversized key set.
func (b *Builder[K]) Build(keys []K) (*Result, error) {
	if len(keys) <= tinyMaxKeys {
		if res := buildTiny(b, keys); res != nil {
			return res, nil
		}
	}

	if b.hash == nil {
		return nil, ErrNoHash
	}

	initial := b.initialSeed()

	if len(keys) <= smallMaxKeys {
		if res := buildSmall(b, keys, initial); res != nil {
			return res, nil
		}
	}

	if len(keys) > mediumMaxKeys && !b.force {
		return nil, ErrTooLarge
	}

	return buildMedium(b, keys, initial)
}

func (b *Builder[K]) initialSeed() uint64 {
	if b.haveSeed {
		return b.seed
	}
	return rand64()
}

func (b *Builder[K]) nextSeedFn() func(initial, trial uint64) uint64 {
	if b.nextSeed != nil {
		return b.nextSeed
	}
	return staticmap.NextSeed
}

func (b *Builder[K]) emit(ev TraceEvent) {
	if b.trace != nil {
		b.trace(ev)
	}
}
