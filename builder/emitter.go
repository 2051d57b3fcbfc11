// emitter.go - generated-source synthesis over a reference graph
//
// The emitter accumulates a DAG of entries (blob slices, packed
// sequences, inline lists, pairs, maps); every entry may reference only
// earlier entries. Bulk data is streamed into two sidecar files as the
// entries are created; Emit then writes one Go declaration per named
// entry, with anonymous entries folded into their parent's expression.
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
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// inlineU32Max is the largest u32 sequence kept as a source literal;
	// longer ones go to the u32 sidecar.
	inlineU32Max = 1024

	// inlineBytesMax is the largest byte-string sequence kept as source
	// literals; longer ones are packed into the byte sidecar.
	inlineBytesMax = 16

	// inlinePilotsMax is the largest pilot array kept as a source
	// literal.
	inlinePilotsMax = 1024
)

// EntryID names one emitted artifact; ids are dense and ordered by
// creation.
type EntryID int

type entryKind int

const (
	kindCustom entryKind = iota
	kindByteSlice
	kindU32Slice
	kindPosSeq
	kindList
	kindPair
	kindTinyMap
	kindSmallMap
	kindMediumMap
)

type entry struct {
	name string // empty for anonymous entries
	kind entryKind

	// blob-backed entries
	off  int
	size int

	// inline lists
	goType string
	items  []string

	// sorted-keys marker (enables tiny map construction over the entry)
	searchable bool

	// references
	posID    EntryID
	keysID   EntryID
	valsID   EntryID
	dataID   EntryID
	pilotsID EntryID
	remapID  EntryID

	// map parameters
	seed  uint64
	slots uint32

	// comparison expressions for the entry's item type
	eqExpr  string
	cmpExpr string
}

// Emitter synthesizes the generated source for one map and owns its two
// sidecar writers. It is single-use: a sequence of Create calls followed
// by one Emit.
type Emitter struct {
	name       string
	hashExpr   string
	pkg        string
	unexported bool
	entries    []entry
	bw         *seqWriter
	uw         *seqWriter
	err        error
}

// NewEmitter prepares an emitter for a map called name. hashExpr is the
// fully qualified Go expression for the lookup-side hash function (e.g.
// "staticmap.XXHasher{}.Hash"); it must evaluate the same oracle the
// builder placed the keys with. Sidecars are written into dir as
// <name>.bytes and <name>.u32seq, lazily.
func NewEmitter(name, hashExpr, dir string) *Emitter {
	sym := symbolize(name)
	return &Emitter{
		name:     name,
		hashExpr: hashExpr,
		bw:       newSeqWriter(sym+"Bytes", filepath.Join(dir, name+".bytes")),
		uw:       newSeqWriter(sym+"U32", filepath.Join(dir, name+".u32seq")),
	}
}

// SetPackage makes Emit write a complete Go file: the generated-code
// header, the package clause and imports. Without it only declarations
// are emitted and the caller composes the file.
func (e *Emitter) SetPackage(pkg string) *Emitter {
	e.pkg = pkg
	return e
}

// SetUnexported lowercases the first rune of every named entry, keeping
// the generated declarations package private.
func (e *Emitter) SetUnexported(unexported bool) *Emitter {
	e.unexported = unexported
	return e
}

func (e *Emitter) push(ent entry) EntryID {
	e.entries = append(e.entries, ent)
	return EntryID(len(e.entries) - 1)
}

// CreateCustom registers an externally defined expression so later
// entries can reference it.
func (e *Emitter) CreateCustom(expr string) EntryID {
	return e.push(entry{kind: kindCustom, goType: expr})
}

// CreateList emits an inline literal sequence. goType is the item type
// and items are already-formatted Go literals of that type.
func (e *Emitter) CreateList(name, goType string, items []string) EntryID {
	return e.createList(name, goType, false, items)
}

func (e *Emitter) createList(name, goType string, searchable bool, items []string) EntryID {
	eq, cmp := stockCompare(goType)
	return e.push(entry{
		name:       name,
		kind:       kindList,
		goType:     goType,
		items:      items,
		searchable: searchable,
		eqExpr:     eq,
		cmpExpr:    cmp,
	})
}

// CreateU32Seq emits a u32 sequence: inline up to inlineU32Max entries,
// a sidecar-backed aligned array beyond that.
func (e *Emitter) CreateU32Seq(name string, values []uint32) EntryID {
	return e.createU32Seq(name, values)
}

func (e *Emitter) createU32Seq(name string, values []uint32) EntryID {
	if len(values) <= inlineU32Max {
		items := make([]string, len(values))
		for i, v := range values {
			items[i] = fmt.Sprintf("%d", v)
		}
		return e.createList(name, "uint32", false, items)
	}

	off := e.uw.count
	for _, v := range values {
		if err := e.uw.writeU32(v); err != nil {
			e.fail(err)
			break
		}
	}

	return e.push(entry{
		name:    name,
		kind:    kindU32Slice,
		off:     off,
		size:    e.uw.count - off,
		goType:  "uint32",
		eqExpr:  "staticmap.Eq[uint32]",
		cmpExpr: "staticmap.Cmp[uint32]",
	})
}

// CreateBytesPositionSeq emits a sequence of byte strings: inline
// literals up to inlineBytesMax items, otherwise packed content in the
// byte sidecar plus an ending-offset u32 sequence.
func (e *Emitter) CreateBytesPositionSeq(name string, items [][]byte) EntryID {
	return e.createBytesPositionSeq(name, false, items)
}

// CreateBytesPositionKeys is CreateBytesPositionSeq for the key stream:
// it marks the entry sorted when the construction was tiny, which is
// what permits a binary-searched map over it.
func (e *Emitter) CreateBytesPositionKeys(name string, res *Result, items [][]byte) EntryID {
	return e.createBytesPositionSeq(name, res.Kind == Tiny, items)
}

// CreateKeys is CreateList for the key stream, with the same sorted
// marker as CreateBytesPositionKeys.
func (e *Emitter) CreateKeys(name, goType string, res *Result, items []string) EntryID {
	return e.createList(name, goType, res.Kind == Tiny, items)
}

func (e *Emitter) createBytesPositionSeq(name string, searchable bool, items [][]byte) EntryID {
	if len(items) <= inlineBytesMax {
		lits := make([]string, len(items))
		for i, b := range items {
			lits[i] = fmt.Sprintf("[]byte(%q)", b)
		}
		return e.createList(name, "[]byte", searchable, lits)
	}

	off := e.bw.count
	positions := make([]uint32, 0, len(items))
	var total uint32
	for _, b := range items {
		if err := e.bw.write(b); err != nil {
			e.fail(err)
			break
		}
		total += uint32(len(b))
		positions = append(positions, total)
	}
	size := e.bw.count - off

	posID := e.createU32Seq("", positions)

	return e.push(entry{
		name:       name,
		kind:       kindPosSeq,
		off:        off,
		size:       size,
		posID:      posID,
		searchable: searchable,
		goType:     "[]byte",
		eqExpr:     "staticmap.BytesEq",
		cmpExpr:    "staticmap.BytesCmp",
	})
}

// CreatePair joins a key entry and a value entry of equal length; it
// emits nothing by itself.
func (e *Emitter) CreatePair(keys, values EntryID) EntryID {
	return e.push(entry{kind: kindPair, keysID: keys, valsID: values})
}

// CreateMap emits the map constant for a construction result over the
// given (already reordered) data entry. Medium results additionally
// route their pilots and remap arrays: pilots inline up to
// inlinePilotsMax and into the byte sidecar beyond it, remap through the
// usual u32 path.
func (e *Emitter) CreateMap(name string, data EntryID, res *Result) EntryID {
	switch res.Kind {
	case Tiny:
		return e.push(entry{name: name, kind: kindTinyMap, dataID: data})

	case Small:
		return e.push(entry{name: name, kind: kindSmallMap, seed: res.Seed, dataID: data})

	default:
		var pilots EntryID
		if len(res.Pilots) > inlinePilotsMax {
			off := e.bw.count
			if err := e.bw.write(res.Pilots); err != nil {
				e.fail(err)
			}
			pilots = e.push(entry{
				kind:    kindByteSlice,
				off:     off,
				size:    e.bw.count - off,
				goType:  "uint8",
				eqExpr:  "staticmap.Eq[uint8]",
				cmpExpr: "staticmap.Cmp[uint8]",
			})
		} else {
			items := make([]string, len(res.Pilots))
			for i, p := range res.Pilots {
				items[i] = fmt.Sprintf("%d", p)
			}
			pilots = e.createList("", "uint8", false, items)
		}

		remap := e.createU32Seq("", res.Remap)

		return e.push(entry{
			name:     name,
			kind:     kindMediumMap,
			seed:     res.Seed,
			slots:    res.Slots,
			dataID:   data,
			pilotsID: pilots,
			remapID:  remap,
		})
	}
}

func (e *Emitter) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Emit writes the generated declarations in entry order and closes the
// sidecar files; the emitter is consumed. Named entries become var
// declarations, anonymous entries become expressions nested into their
// referents.
func (e *Emitter) Emit(w io.Writer) error {
	if e.err != nil {
		return e.err
	}
	defer e.bw.close()
	defer e.uw.close()

	if e.pkg != "" {
		if err := e.emitHeader(w); err != nil {
			return err
		}
	}

	if err := e.bw.emitEmbed(w); err != nil {
		return err
	}
	if err := e.uw.emitEmbed(w); err != nil {
		return err
	}

	// expression per entry, in reference order.
	exprs := make([]string, len(e.entries))

	for i := range e.entries {
		ent := &e.entries[i]
		val := e.valueExpr(ent, exprs)

		if ent.name == "" {
			exprs[i] = val
			continue
		}

		name := ent.name
		if e.unexported {
			name = lowerFirst(name)
		}

		if _, err := fmt.Fprintf(w, "var %s = %s\n\n", name, val); err != nil {
			return err
		}
		exprs[i] = name
	}

	if err := e.bw.close(); err != nil {
		return err
	}
	return e.uw.close()
}

func (e *Emitter) emitHeader(w io.Writer) error {
	var b strings.Builder

	b.WriteString("// Code generated by go-staticmap. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", e.pkg)
	b.WriteString("import (\n")
	if e.bw.count > 0 || e.uw.count > 0 {
		b.WriteString("\t_ \"embed\"\n\n")
	}
	b.WriteString("\tstaticmap \"github.com/opencoff/go-staticmap\"\n)\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// valueExpr renders one entry as a Go expression, resolving references
// through the already-rendered expression table.
func (e *Emitter) valueExpr(ent *entry, exprs []string) string {
	switch ent.kind {
	case kindCustom:
		return ent.goType

	case kindByteSlice:
		return fmt.Sprintf("staticmap.Bytes(%s[%d:%d])", e.bw.symbol, ent.off, ent.off+ent.size)

	case kindU32Slice:
		return fmt.Sprintf("staticmap.MustU32Array(%s[%d:%d])", e.uw.symbol, ent.off, ent.off+ent.size)

	case kindPosSeq:
		return fmt.Sprintf("staticmap.NewPositionSeq(%s[%d:%d], %s)",
			e.bw.symbol, ent.off, ent.off+ent.size, exprs[ent.posID])

	case kindList:
		var b strings.Builder
		fmt.Fprintf(&b, "staticmap.List[%s]{", ent.goType)
		for i, it := range ent.items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(it)
		}
		b.WriteString("}")
		return b.String()

	case kindPair:
		k := &e.entries[ent.keysID]
		v := &e.entries[ent.valsID]
		return fmt.Sprintf("staticmap.NewPair[%s, %s](%s, %s)",
			k.goType, v.goType, exprs[ent.keysID], exprs[ent.valsID])

	case kindTinyMap:
		keyType, valType, store, _ := e.storeExpr(ent.dataID, exprs)
		cmp := e.keyEntry(ent.dataID).cmpExpr
		return fmt.Sprintf("staticmap.NewTiny[%s, %s](%s, %s)", keyType, valType, store, cmp)

	case kindSmallMap:
		keyType, valType, store, eq := e.storeExpr(ent.dataID, exprs)
		return fmt.Sprintf("staticmap.NewSmall[%s, %s](%d, %s, %s, %s)",
			keyType, valType, ent.seed, store, e.hashExpr, eq)

	case kindMediumMap:
		keyType, valType, store, eq := e.storeExpr(ent.dataID, exprs)
		return fmt.Sprintf("staticmap.NewMedium[%s, %s](%d, %d, %s, %s, %s, %s, %s)",
			keyType, valType, ent.seed, ent.slots,
			exprs[ent.pilotsID], exprs[ent.remapID], store, e.hashExpr, eq)

	default:
		panic("builder: unknown entry kind")
	}
}

// storeExpr renders the Store expression for a map's data entry: a pair
// is used as-is, a bare key sequence is wrapped into an IndexStore.
func (e *Emitter) storeExpr(id EntryID, exprs []string) (keyType, valType, store, eq string) {
	ent := &e.entries[id]
	if ent.kind == kindPair {
		k := &e.entries[ent.keysID]
		v := &e.entries[ent.valsID]
		return k.goType, v.goType, exprs[id], k.eqExpr
	}

	store = fmt.Sprintf("staticmap.IndexStore[%s]{Keys: %s}", ent.goType, exprs[id])
	return ent.goType, "int", store, ent.eqExpr
}

// keyEntry resolves the key-side entry of a data reference.
func (e *Emitter) keyEntry(id EntryID) *entry {
	ent := &e.entries[id]
	if ent.kind == kindPair {
		return &e.entries[ent.keysID]
	}
	return ent
}

func stockCompare(goType string) (eq, cmp string) {
	if goType == "[]byte" {
		return "staticmap.BytesEq", "staticmap.BytesCmp"
	}
	return fmt.Sprintf("staticmap.Eq[%s]", goType), fmt.Sprintf("staticmap.Cmp[%s]", goType)
}

func symbolize(name string) string {
	var b strings.Builder
	up := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || (unicode.IsDigit(r) && b.Len() > 0):
			if b.Len() == 0 {
				r = unicode.ToLower(r)
			} else if up {
				r = unicode.ToUpper(r)
			}
			up = false
			b.WriteRune(r)
		default:
			up = true
		}
	}
	if b.Len() == 0 {
		return "sidecar"
	}
	return b.String()
}

func lowerFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToLower(r)) + s[i+len(string(r)):]
	}
	return s
}
