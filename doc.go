// doc.go - package documentation
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package staticmap implements compile-time perfect hash maps: read-only
// maps built offline over a fixed key set and embedded directly into a
// binary, with O(1) collision-free lookups and no allocation at query
// time.
//
// The package splits into two phases. The builder subpackage runs at
// build time: it picks one of three construction strategies by key count
// (sorted tiny map, single-level small PHF, bucketed-displacement medium
// PHF in the PTRHash family), and its emitter writes generated Go source
// plus binary sidecar files holding the bulk data. This package is the
// runtime half: the sequence and store shapes the generated code composes
// over //go:embed'ed sidecars, the TinyMap/SmallMap/MediumMap lookup
// machines, and the hash oracles shared by both phases.
//
// The mapfile subpackage packages the same machinery as a single-file
// constant database with an mmap'd reader, for key sets that are not
// known at compile time of the consuming program.
//
// Lookups are pure reads of immutable data and are safe for concurrent
// use from any number of goroutines. Builders are single-use and not
// thread-safe.
package staticmap
