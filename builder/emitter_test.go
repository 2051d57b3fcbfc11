// emitter_test.go -- test suite for code synthesis and sidecar layout
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
	"os"
	"path/filepath"
	"strings"
	"testing"

	staticmap "github.com/opencoff/go-staticmap"
)

func TestEmitterInlineTiny(t *testing.T) {
	assert := newAsserter(t)

	keys := []string{"b", "a", "c"}
	res, err := New[string]().SetOrd(strings.Compare).Build(keys)
	assert(err == nil, "build: %s", err)

	dir := t.TempDir()
	em := NewEmitter("colors", "staticmap.FNVHasher{}.Hash", dir).SetPackage("colors")

	items := make([]string, len(keys))
	for i, k := range Reorder(res, keys) {
		items[i] = fmt.Sprintf("%q", k)
	}
	k := em.CreateKeys("COLOR_KEYS", "string", res, items)
	em.CreateMap("COLOR_MAP", k, res)

	var out strings.Builder
	err = em.Emit(&out)
	assert(err == nil, "emit: %s", err)
	src := out.String()

	assert(strings.Contains(src, "// Code generated by go-staticmap. DO NOT EDIT."),
		"missing generated-code header:\n%s", src)
	assert(strings.Contains(src, "package colors"), "missing package clause:\n%s", src)
	assert(strings.Contains(src, `var COLOR_KEYS = staticmap.List[string]{"a", "b", "c"}`),
		"missing sorted key list:\n%s", src)
	assert(strings.Contains(src, "var COLOR_MAP = staticmap.NewTiny[string, int]("),
		"missing tiny map declaration:\n%s", src)
	assert(strings.Contains(src, "staticmap.IndexStore[string]{Keys: COLOR_KEYS}"),
		"missing index store:\n%s", src)
	assert(!strings.Contains(src, "embed"), "inline map must not embed sidecars:\n%s", src)

	// no sidecar files for a fully inline map
	_, err = os.Stat(filepath.Join(dir, "colors.bytes"))
	assert(os.IsNotExist(err), "unexpected byte sidecar")
	_, err = os.Stat(filepath.Join(dir, "colors.u32seq"))
	assert(os.IsNotExist(err), "unexpected u32 sidecar")
}

func TestEmitterSmallInline(t *testing.T) {
	assert := newAsserter(t)

	keys := make([]string, 10)
	vals := make([]uint32, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
		vals[i] = uint32(i * 100)
	}

	res, err := New[string]().SetSeed(testSeed).SetHash(hashString).Build(keys)
	assert(err == nil, "build: %s", err)
	assert(res.Kind == Small, "kind %s", res.Kind)

	em := NewEmitter("dozen", "staticmap.FNVHasher{}.Hash", t.TempDir()).SetPackage("dozen")

	items := make([]string, len(keys))
	for i, k := range Reorder(res, keys) {
		items[i] = fmt.Sprintf("%q", k)
	}
	k := em.CreateKeys("DOZEN_KEYS", "string", res, items)

	vitems := make([]string, len(vals))
	for i, v := range Reorder(res, vals) {
		vitems[i] = fmt.Sprintf("%d", v)
	}
	v := em.CreateList("DOZEN_VALS", "uint32", vitems)
	em.CreateMap("DOZEN_MAP", em.CreatePair(k, v), res)

	var out strings.Builder
	err = em.Emit(&out)
	assert(err == nil, "emit: %s", err)
	src := out.String()

	assert(strings.Contains(src,
		fmt.Sprintf("var DOZEN_MAP = staticmap.NewSmall[string, uint32](%d, staticmap.NewPair[string, uint32](DOZEN_KEYS, DOZEN_VALS), staticmap.FNVHasher{}.Hash, staticmap.Eq[string])", res.Seed)),
		"missing small map declaration:\n%s", src)
}

func TestEmitterMediumSidecars(t *testing.T) {
	assert := newAsserter(t)

	const n = 2000
	keys := make([][]byte, n)
	vals := make([]uint32, n)
	for i := range keys {
		keys[i] = []byte(demoKey(uint32(i)))
		vals[i] = demoVal(uint32(i))
	}

	hash := staticmap.XXHasher{}.Hash
	res, err := New[[]byte]().SetSeed(testSeed).SetHash(hash).Build(keys)
	assert(err == nil, "build: %s", err)
	assert(res.Kind == Medium, "kind %s", res.Kind)

	dir := t.TempDir()
	em := NewEmitter("str2id", "staticmap.XXHasher{}.Hash", dir).SetPackage("str2id")

	ordered := Reorder(res, keys)
	k := em.CreateBytesPositionKeys("STR2ID_KEYS", res, ordered)
	v := em.CreateU32Seq("STR2ID_IDS", Reorder(res, vals))
	em.CreateMap("STR2ID_MAP", em.CreatePair(k, v), res)

	cfn := filepath.Join(dir, "str2id.go")
	cf, err := os.Create(cfn)
	assert(err == nil, "create: %s", err)
	err = em.Emit(cf)
	assert(err == nil, "emit: %s", err)
	cf.Close()

	srcb, err := os.ReadFile(cfn)
	assert(err == nil, "read source: %s", err)
	src := string(srcb)

	assert(strings.Contains(src, "//go:embed str2id.bytes"), "missing bytes embed:\n%s", src)
	assert(strings.Contains(src, "//go:embed str2id.u32seq"), "missing u32 embed:\n%s", src)
	assert(strings.Contains(src, "var str2idBytes []byte"), "missing bytes var")
	assert(strings.Contains(src, "var STR2ID_MAP = staticmap.NewMedium[[]byte, uint32]("),
		"missing medium map declaration")

	// sidecar layout: packed key bytes, then u32seq = key ending
	// offsets followed by the value array.
	var contentLen int
	for _, kb := range ordered {
		contentLen += len(kb)
	}

	bytesBlob, err := os.ReadFile(filepath.Join(dir, "str2id.bytes"))
	assert(err == nil, "read bytes sidecar: %s", err)
	assert(len(bytesBlob) == contentLen, "bytes sidecar: exp %d, saw %d", contentLen, len(bytesBlob))

	u32Blob, err := os.ReadFile(filepath.Join(dir, "str2id.u32seq"))
	assert(err == nil, "read u32 sidecar: %s", err)
	assert(len(u32Blob) == 8*n, "u32 sidecar: exp %d, saw %d", 8*n, len(u32Blob))

	assert(strings.Contains(src, fmt.Sprintf("staticmap.NewPositionSeq(str2idBytes[0:%d], staticmap.MustU32Array(str2idU32[0:%d]))", contentLen, 4*n)),
		"key sequence does not reference the expected sidecar ranges:\n%s", src)
	assert(strings.Contains(src, fmt.Sprintf("var STR2ID_IDS = staticmap.MustU32Array(str2idU32[%d:%d])", 4*n, 8*n)),
		"value sequence does not reference the expected sidecar ranges:\n%s", src)

	// round-trip: rebuild the lookup purely from the sidecar files, as
	// a consuming program would, and sweep every key.
	kseq := staticmap.NewPositionSeq(bytesBlob[0:contentLen], staticmap.MustU32Array(u32Blob[0:4*n]))
	vseq := staticmap.MustU32Array(u32Blob[4*n : 8*n])

	// spot check the packed keys against the originals
	for s, kb := range ordered {
		assert(string(kseq.At(s)) == string(kb), "packed key %d mismatch", s)
	}

	m := staticmap.NewMedium[[]byte, uint32](
		res.Seed, res.Slots,
		staticmap.Bytes(res.Pilots),
		staticmap.List[uint32](res.Remap),
		staticmap.NewPair[[]byte, uint32](kseq, vseq),
		hash,
		staticmap.BytesEq,
	)

	for i, kb := range keys {
		got, ok := m.Get(kb)
		assert(ok, "key %d not found after round-trip", i)
		assert(got == vals[i], "key %d: exp %d, saw %d", i, vals[i], got)
	}

	for i := 0; i < 100; i++ {
		q := append([]byte(nil), keys[i]...)
		q = append(q, '?')
		_, ok := m.Get(q)
		assert(!ok, "phantom key %q", q)
	}
}

func TestEmitterLargePilotsAndRemap(t *testing.T) {
	assert := newAsserter(t)

	// enough keys that the pilot array outgrows the inline threshold
	// (buckets > 1024 needs n > 3063) and the remap tail outgrows it
	// too (slots-n > 1024 needs n past ~101k): both arrays must land in
	// the sidecars instead of the source text.
	const n = 102000
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(demoKey(uint32(i)))
	}

	hash := staticmap.XXHasher{}.Hash
	res, err := New[[]byte]().SetSeed(testSeed).SetHash(hash).Build(keys)
	assert(err == nil, "build: %s", err)
	assert(len(res.Pilots) > inlinePilotsMax, "corpus too small to spill pilots: %d", len(res.Pilots))
	assert(len(res.Remap) > inlineU32Max, "corpus too small to spill remap: %d", len(res.Remap))

	dir := t.TempDir()
	em := NewEmitter("big", "staticmap.XXHasher{}.Hash", dir).SetPackage("big")

	ordered := Reorder(res, keys)
	k := em.CreateBytesPositionKeys("BIG_KEYS", res, ordered)
	em.CreateMap("BIG_MAP", k, res)

	var out strings.Builder
	err = em.Emit(&out)
	assert(err == nil, "emit: %s", err)
	src := out.String()

	var contentLen int
	for _, kb := range ordered {
		contentLen += len(kb)
	}

	// bytes sidecar: packed keys then the pilot array
	bytesBlob, err := os.ReadFile(filepath.Join(dir, "big.bytes"))
	assert(err == nil, "read bytes sidecar: %s", err)
	assert(len(bytesBlob) == contentLen+len(res.Pilots),
		"bytes sidecar: exp %d, saw %d", contentLen+len(res.Pilots), len(bytesBlob))

	// u32 sidecar: key positions then the remap tail
	u32Blob, err := os.ReadFile(filepath.Join(dir, "big.u32seq"))
	assert(err == nil, "read u32 sidecar: %s", err)
	assert(len(u32Blob) == 4*n+4*len(res.Remap),
		"u32 sidecar: exp %d, saw %d", 4*n+4*len(res.Remap), len(u32Blob))

	assert(strings.Contains(src,
		fmt.Sprintf("staticmap.Bytes(bigBytes[%d:%d])", contentLen, contentLen+len(res.Pilots))),
		"pilots do not reference the byte sidecar:\n%s", firstLines(src, 20))
	assert(strings.Contains(src,
		fmt.Sprintf("staticmap.MustU32Array(bigU32[%d:%d])", 4*n, 4*n+4*len(res.Remap))),
		"remap does not reference the u32 sidecar:\n%s", firstLines(src, 20))

	// rebuild the lookup from the sidecars and sweep a sample
	kseq := staticmap.NewPositionSeq(bytesBlob[0:contentLen], staticmap.MustU32Array(u32Blob[0:4*n]))
	m := staticmap.NewMedium[[]byte, int](
		res.Seed, res.Slots,
		staticmap.Bytes(bytesBlob[contentLen:]),
		staticmap.MustU32Array(u32Blob[4*n:]),
		staticmap.IndexStore[[]byte]{Keys: kseq},
		hash,
		staticmap.BytesEq,
	)

	slotOf := make(map[uint32]int, n)
	for s, id := range res.Index {
		slotOf[id] = s
	}
	for i := 0; i < n; i += 97 {
		v, ok := m.Get(keys[i])
		assert(ok, "key %d not found", i)
		assert(v == slotOf[uint32(i)], "key %d: exp %d, saw %d", i, slotOf[uint32(i)], v)
	}
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func TestEmitterUnexported(t *testing.T) {
	assert := newAsserter(t)

	res, err := New[string]().SetOrd(strings.Compare).Build([]string{"x"})
	assert(err == nil, "build: %s", err)

	em := NewEmitter("one", "staticmap.FNVHasher{}.Hash", t.TempDir()).SetUnexported(true)
	k := em.CreateKeys("OneKeys", "string", res, []string{`"x"`})
	em.CreateMap("OneMap", k, res)

	var out strings.Builder
	err = em.Emit(&out)
	assert(err == nil, "emit: %s", err)

	assert(strings.Contains(out.String(), "var oneKeys ="), "keys not unexported:\n%s", out.String())
	assert(strings.Contains(out.String(), "var oneMap ="), "map not unexported:\n%s", out.String())
	assert(!strings.Contains(out.String(), "package "), "header must be absent without SetPackage")
}

func TestSymbolize(t *testing.T) {
	assert := newAsserter(t)

	assert(symbolize("str2id") == "str2id", "saw %q", symbolize("str2id"))
	assert(symbolize("my-map") == "myMap", "saw %q", symbolize("my-map"))
	assert(symbolize("MyMap") == "myMap", "saw %q", symbolize("MyMap"))
	assert(symbolize("2fast") == "fast", "saw %q", symbolize("2fast"))
}
