// writer.go -- Constant DB built on top of the staticmap PHF
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package mapfile packages a perfect-hash map as a single read-only
// file: arbitrary []byte keys and values, constant-time lookups, and an
// mmap'd table section so opening a large map stays cheap. The PHF is
// built by the builder package (small or medium strategy, picked by key
// count); the on-disk tables are exactly the builder's artifacts laid
// out for the lookup equations in the staticmap package.
//
// The file has the following general structure:
//   - 64 byte file header: big-endian encoding of all multibyte ints
//     - magic    [4]byte "SMAP"
//     - version  byte
//     - kind     byte    1 = small PHF, 2 = medium PHF
//     - resv     [2]byte
//     - salt     [16]byte random salt for siphash record integrity
//     - nkeys    uint64  number of keys
//     - offtbl   uint64  file offset of the table section
//     - seed     uint64  PHF seed
//     - slots    uint32  medium slot count (== nkeys for small)
//     - nbuckets uint32  medium pilot count (0 for small)
//     - resv     [8]byte
//   - Contiguous series of records; each record is:
//     - cksum    uint64  siphash of (offset, key, value), big endian
//     - key      []byte
//     - value    []byte
//   - Possibly a gap until the next page boundary (4096 bytes)
//   - Table section, little-endian, mmap'd by the reader:
//     - offsets  nkeys × uint64, record offset per storage slot
//     - klen     nkeys × uint32
//     - vlen     nkeys × uint32
//     - remap    (slots-nkeys) × uint32   (medium only)
//     - pilots   nbuckets bytes           (medium only)
//     - pad to the next 8 byte boundary
//   - 32 bytes of strong checksum (SHA512_256) over the file header and
//     the table section.
//
// Record checksums are verified opportunistically on access; the header
// and tables are verified once at open.
package mapfile

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dchest/siphash"
	logging "github.com/ipfs/go-log/v2"

	staticmap "github.com/opencoff/go-staticmap"
	"github.com/opencoff/go-staticmap/builder"
)

var log = logging.Logger("staticmap/mapfile")

const (
	magic       = "SMAP"
	version     = 1
	headerSize  = 64
	trailerSize = 32

	kindSmall  = 1
	kindMedium = 2
)

// keyHasher is the oracle the map file format is defined over; builder
// and reader must agree on it, so it is fixed rather than configurable.
var keyHasher = staticmap.XXHasher{}

// Writer builds a constant map file. Records are streamed to a tmp file
// as they are added; Freeze constructs the PHF over all keys, writes the
// lookup tables and renames the tmp file into place.
type Writer struct {
	fd *os.File

	keys [][]byte
	recs []rec

	// to detect duplicates
	keymap map[string]bool

	// siphash key: just binary encoded salt
	salt []byte

	// running count of current offset within fd where we are writing
	// records
	off uint64

	seed      uint64
	haveSeed  bool
	limit     uint64
	haveLimit bool

	fntmp  string // tmp file name
	fn     string // final file holding the map
	frozen bool
}

type rec struct {
	off  uint64
	klen uint32
	vlen uint32
}

// NewWriter prepares file 'fn' to hold a constant map. Once frozen,
// readers open it with NewReader for constant time lookups.
func NewWriter(fn string) (*Writer, error) {
	tmp := fmt.Sprintf("%s.tmp.%d", fn, rand32())
	fd, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		fd:     fd,
		keymap: make(map[string]bool),
		salt:   randbytes(16),
		off:    headerSize,
		fn:     fn,
		fntmp:  tmp,
	}

	// Leave space for the header; it is filled in by Freeze.
	var z [headerSize]byte
	if _, err := writeAll(fd, z[:]); err != nil {
		fd.Close()
		os.Remove(tmp)
		return nil, err
	}

	return w, nil
}

// SetSeed pins the PHF seed so rebuilding over the same input yields the
// same tables.
func (w *Writer) SetSeed(seed uint64) {
	w.seed = seed
	w.haveSeed = true
}

// SetLimit bounds the PHF seed search; see builder.Builder.SetLimit.
func (w *Writer) SetLimit(limit uint64) {
	w.limit = limit
	w.haveLimit = true
}

// Len returns the total number of distinct keys added so far.
func (w *Writer) Len() int {
	return len(w.keys)
}

// Add adds a single key/value pair.
func (w *Writer) Add(key, val []byte) error {
	if w.frozen {
		return ErrFrozen
	}

	return w.addRecord(key, val)
}

// AddKeyVals adds a series of key-value matched pairs. If they are of
// unequal length, only the smaller of the lengths is used. Returns the
// number of records added.
func (w *Writer) AddKeyVals(keys, vals [][]byte) (int, error) {
	if w.frozen {
		return 0, ErrFrozen
	}

	n := len(keys)
	if len(vals) < n {
		n = len(vals)
	}

	for i := 0; i < n; i++ {
		if err := w.addRecord(keys[i], vals[i]); err != nil {
			return i, err
		}
	}

	return n, nil
}

// Freeze builds the perfect hash over all added keys, writes the lookup
// tables and the header, and atomically moves the file into place.
func (w *Writer) Freeze() (err error) {
	defer func() {
		// undo the tmpfile
		if err != nil {
			w.fd.Close()
			os.Remove(w.fntmp)
		}
	}()

	if w.frozen {
		return ErrFrozen
	}

	bld := builder.New[[]byte]().SetHash(keyHasher.Hash)
	if w.haveSeed {
		bld.SetSeed(w.seed)
	}
	if w.haveLimit {
		bld.SetLimit(w.limit)
	}

	res, err := bld.Build(w.keys)
	if err != nil {
		return fmt.Errorf("mapfile: %s: %w", w.fn, err)
	}

	log.Debugf("%s: %d keys placed via %s strategy, seed %#x",
		w.fn, len(w.keys), res.Kind, res.Seed)

	// calculate strong checksum for all metadata from this point on.
	h := sha512.New512_256()
	tee := io.MultiWriter(w.fd, h)

	// We align the table section to pagesize - so we can mmap it when
	// we read it back.
	pgsz := uint64(os.Getpagesize())
	pgszM1 := pgsz - 1
	offtbl := (w.off + pgszM1) &^ pgszM1

	if offtbl > w.off {
		zeroes := make([]byte, offtbl-w.off)
		if _, err = writeAll(w.fd, zeroes); err != nil {
			return err
		}
		w.off = offtbl
	}

	ehdr := w.encodeHeader(res, offtbl)

	// header participates in the checksum but lives at offset 0.
	h.Write(ehdr[:])

	if err := w.marshalTables(tee, res); err != nil {
		return err
	}

	// Trailer is the checksum of everything
	cksum := h.Sum(nil)
	if _, err := writeAll(w.fd, cksum[:]); err != nil {
		return err
	}

	// Finally, write the header at start of file
	if _, err := w.fd.Seek(0, 0); err != nil {
		return err
	}
	if _, err := writeAll(w.fd, ehdr[:]); err != nil {
		return err
	}

	w.frozen = true
	w.fd.Sync()
	w.fd.Close()

	return os.Rename(w.fntmp, w.fn)
}

// Abort stops the construction of the map file and removes the tmp file.
func (w *Writer) Abort() {
	w.fd.Close()
	os.Remove(w.fntmp)
}

func (w *Writer) encodeHeader(res *builder.Result, offtbl uint64) [headerSize]byte {
	var ehdr [headerSize]byte

	be := binary.BigEndian
	copy(ehdr[:4], magic)
	ehdr[4] = version
	if res.Kind == builder.Medium {
		ehdr[5] = kindMedium
	} else {
		ehdr[5] = kindSmall
	}

	copy(ehdr[8:24], w.salt)
	be.PutUint64(ehdr[24:32], uint64(len(w.keys)))
	be.PutUint64(ehdr[32:40], offtbl)
	be.PutUint64(ehdr[40:48], res.Seed)

	if res.Kind == builder.Medium {
		be.PutUint32(ehdr[48:52], res.Slots)
		be.PutUint32(ehdr[52:56], uint32(len(res.Pilots)))
	} else {
		be.PutUint32(ehdr[48:52], uint32(len(w.keys)))
	}

	return ehdr
}

// marshalTables writes the little-endian table section in storage order.
func (w *Writer) marshalTables(tee io.Writer, res *builder.Result) error {
	n := len(w.keys)
	le := binary.LittleEndian

	buf := make([]byte, 8*n)
	for s, idx := range res.Index {
		le.PutUint64(buf[8*s:], w.recs[idx].off)
	}
	if _, err := writeAll(tee, buf); err != nil {
		return err
	}
	w.off += uint64(len(buf))

	buf = buf[:4*n]
	for s, idx := range res.Index {
		le.PutUint32(buf[4*s:], w.recs[idx].klen)
	}
	if _, err := writeAll(tee, buf); err != nil {
		return err
	}
	w.off += uint64(len(buf))

	for s, idx := range res.Index {
		le.PutUint32(buf[4*s:], w.recs[idx].vlen)
	}
	if _, err := writeAll(tee, buf); err != nil {
		return err
	}
	w.off += uint64(len(buf))

	if res.Kind == builder.Medium {
		buf = buf[:4*len(res.Remap)]
		for i, v := range res.Remap {
			le.PutUint32(buf[4*i:], v)
		}
		if _, err := writeAll(tee, buf); err != nil {
			return err
		}
		w.off += uint64(len(buf))

		if _, err := writeAll(tee, res.Pilots); err != nil {
			return err
		}
		w.off += uint64(len(res.Pilots))
	}

	// pad the table section to the next 64-bit boundary
	if pad := (8 - (w.off & 7)) & 7; pad > 0 {
		var z [8]byte
		if _, err := writeAll(tee, z[:pad]); err != nil {
			return err
		}
		w.off += pad
	}

	return nil
}

// compute checksums and add a record to the file at the current offset.
func (w *Writer) addRecord(key, val []byte) error {
	if uint64(len(key)) > uint64(1<<32)-1 {
		return ErrKeyTooLarge
	}
	if uint64(len(val)) > uint64(1<<32)-1 {
		return ErrValueTooLarge
	}

	if w.keymap[string(key)] {
		return ErrExists
	}

	r := rec{
		off:  w.off,
		klen: uint32(len(key)),
		vlen: uint32(len(val)),
	}

	if err := w.writeRecord(key, val, r.off); err != nil {
		return err
	}

	k := make([]byte, len(key))
	copy(k, key)

	w.keymap[string(key)] = true
	w.keys = append(w.keys, k)
	w.recs = append(w.recs, r)
	return nil
}

func (w *Writer) writeRecord(key, val []byte, off uint64) error {
	var o [8]byte
	var c [8]byte

	be := binary.BigEndian
	be.PutUint64(o[:], off)

	h := siphash.New(w.salt)
	h.Write(o[:])
	h.Write(key)
	h.Write(val)
	be.PutUint64(c[:], h.Sum64())

	// Checksum at the start of record
	if _, err := writeAll(w.fd, c[:]); err != nil {
		return err
	}
	if _, err := writeAll(w.fd, key); err != nil {
		return err
	}
	if _, err := writeAll(w.fd, val); err != nil {
		return err
	}

	w.off += uint64(8 + len(key) + len(val))
	return nil
}

func writeAll(w io.Writer, buf []byte) (int, error) {
	n, err := w.Write(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return n, errShortWrite(n)
	}
	return n, nil
}
