// reader.go -- Constant DB built on top of the staticmap PHF
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package mapfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"syscall"

	"crypto/sha512"
	"crypto/subtle"

	"github.com/dchest/siphash"
	"github.com/opencoff/golang-lru"

	staticmap "github.com/opencoff/go-staticmap"
)

// Reader represents the query interface for a previously constructed
// map file (built using NewWriter). The only meaningful operation on
// such a map is Lookup.
type Reader struct {
	cache *lru.ARCCache

	// memory mapped tables, in storage order
	offset []uint64
	klen   []uint32
	vlen   []uint32
	remap  []uint32
	pilots []byte

	kind     byte
	nkeys    uint64
	slots    uint32
	nbuckets uint32
	seed     uint64
	salt     []byte

	// original mmap slice
	mmap []byte
	fd   *os.File
	fn   string
}

// NewReader reads a previously constructed map file 'fn' and prepares
// it for querying. Records are opportunistically cached after reading
// from disk; we retain upto 'cache' number of records in memory
// (default 128).
func NewReader(fn string, cache int) (rd *Reader, err error) {
	fd, err := os.Open(fn)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			fd.Close()
		}
	}()

	// Number of records to cache
	if cache <= 0 {
		cache = 128
	}

	rd = &Reader{
		fd: fd,
		fn: fn,
	}

	st, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: can't stat: %w", fn, err)
	}

	if st.Size() < (headerSize + trailerSize) {
		return nil, fmt.Errorf("%s: file too small or corrupted", fn)
	}

	var hdrb [headerSize]byte

	if _, err = io.ReadFull(fd, hdrb[:]); err != nil {
		return nil, fmt.Errorf("%s: can't read header: %w", fn, err)
	}

	offtbl, err := rd.decodeHeader(hdrb[:], st.Size())
	if err != nil {
		return nil, err
	}

	if err = rd.verifyChecksum(hdrb[:], offtbl, st.Size()); err != nil {
		return nil, err
	}

	// All metadata is now verified. Sanity check the table sizes
	// against what the header promises.
	tblsz := rd.tableSize()
	if uint64(st.Size()) < headerSize+trailerSize+tblsz {
		return nil, fmt.Errorf("%s: corrupt header", fn)
	}

	rd.cache, err = lru.NewARC(cache)
	if err != nil {
		return nil, err
	}

	// mmap the table section; an empty map has no tables at all.
	mmapsz := st.Size() - int64(offtbl) - trailerSize
	var bs []byte
	if mmapsz > 0 {
		bs, err = syscall.Mmap(int(fd.Fd()), int64(offtbl), int(mmapsz),
			syscall.PROT_READ, syscall.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("%s: can't mmap %d bytes at off %d: %w",
				fn, mmapsz, offtbl, err)
		}
	}

	n := rd.nkeys
	offsz := n * 8
	klensz := n * 4
	vlensz := n * 4

	rd.mmap = bs
	rd.offset = bsToUint64Slice(bs[:offsz])
	rd.klen = bsToUint32Slice(bs[offsz : offsz+klensz])
	rd.vlen = bsToUint32Slice(bs[offsz+klensz : offsz+klensz+vlensz])

	if rd.kind == kindMedium {
		remapsz := uint64(rd.slots-uint32(n)) * 4
		at := offsz + klensz + vlensz
		rd.remap = bsToUint32Slice(bs[at : at+remapsz])
		rd.pilots = bs[at+remapsz : at+remapsz+uint64(rd.nbuckets)]
	}

	log.Debugf("%s: opened; %d keys, kind %d, seed %#x", fn, n, rd.kind, rd.seed)
	return rd, nil
}

// Len returns the total number of distinct keys in the map.
func (rd *Reader) Len() int {
	return int(rd.nkeys)
}

// Close closes the map file.
func (rd *Reader) Close() {
	syscall.Munmap(rd.mmap)
	rd.fd.Close()
	rd.cache.Purge()
	rd.fd = nil
	rd.salt = nil
	rd.fn = ""
}

// Lookup looks up 'key' in the map and returns the corresponding value.
// If the key is not found, value is nil and the bool is false.
func (rd *Reader) Lookup(key []byte) ([]byte, bool) {
	v, err := rd.Find(key)
	if err != nil {
		return nil, false
	}

	return v, true
}

// Find looks up 'key' in the map and returns the corresponding value.
// It returns an error if the key is not found, the disk i/o failed or
// the record checksum failed.
func (rd *Reader) Find(key []byte) ([]byte, error) {
	if rd.nkeys == 0 {
		return nil, ErrNoKey
	}

	if v, ok := rd.cache.Get(string(key)); ok {
		return v.([]byte), nil
	}

	// Not in cache. So, go to disk and find it.
	i := rd.slotOf(key)

	skey, val, err := rd.decodeRecord(
		toLittleEndianUint64(rd.offset[i]),
		toLittleEndianUint32(rd.klen[i]),
		toLittleEndianUint32(rd.vlen[i]),
	)
	if err != nil {
		return nil, err
	}

	// The placement equation maps unknown keys onto valid slots too;
	// the stored-key comparison is what decides membership.
	if string(skey) != string(key) {
		return nil, ErrNoKey
	}

	rd.cache.Add(string(key), val)
	return val, nil
}

// slotOf replays the PHF placement equation for the file's kind; the
// result is guaranteed to be in [0, nkeys).
func (rd *Reader) slotOf(key []byte) uint64 {
	h := keyHasher.Hash(rd.seed, key)

	if rd.kind == kindSmall {
		return uint64(staticmap.SmallSlot(h, uint32(rd.nkeys)))
	}

	b := staticmap.MediumBucket(h, rd.nbuckets)
	hp := staticmap.HashPilot(rd.seed, rd.pilots[b])
	s := uint64(staticmap.MediumSlot(h, hp, rd.slots))
	if s >= rd.nkeys {
		s = uint64(toLittleEndianUint32(rd.remap[s-rd.nkeys]))
	}
	return s
}

// read the full record at offset 'off' - by seeking to that offset -
// and validate its checksum.
func (rd *Reader) decodeRecord(off uint64, klen, vlen uint32) ([]byte, []byte, error) {
	if _, err := rd.fd.Seek(int64(off), 0); err != nil {
		return nil, nil, err
	}

	data := make([]byte, 8+uint64(klen)+uint64(vlen))
	if _, err := io.ReadFull(rd.fd, data); err != nil {
		return nil, nil, err
	}

	be := binary.BigEndian
	csum := be.Uint64(data[:8])

	var o [8]byte
	be.PutUint64(o[:], off)

	h := siphash.New(rd.salt)
	h.Write(o[:])
	h.Write(data[8:])
	exp := h.Sum64()

	if csum != exp {
		return nil, nil, fmt.Errorf("%s: corrupted record at off %d (exp %#x, saw %#x)",
			rd.fn, off, exp, csum)
	}

	return data[8 : 8+klen], data[8+klen:], nil
}

// tableSize returns the byte size of the table section the header
// promises (without padding).
func (rd *Reader) tableSize() uint64 {
	sz := rd.nkeys * (8 + 4 + 4)
	if rd.kind == kindMedium {
		sz += uint64(rd.slots-uint32(rd.nkeys))*4 + uint64(rd.nbuckets)
	}
	return sz
}

// Verify checksum of all metadata: the file header and the table
// section. sz is the actual file size (includes the header we already
// read).
func (rd *Reader) verifyChecksum(hdrb []byte, offtbl uint64, sz int64) error {
	h := sha512.New512_256()
	h.Write(hdrb)

	// remsz is the size of the table section which begins at 'offtbl';
	// the trailing 32 bytes are the expected checksum.
	remsz := sz - int64(offtbl) - trailerSize

	rd.fd.Seek(int64(offtbl), 0)

	nw, err := io.CopyN(h, rd.fd, remsz)
	if err != nil {
		return fmt.Errorf("%s: metadata i/o error: %w", rd.fn, err)
	}
	if nw != remsz {
		return fmt.Errorf("%s: partial read while verifying checksum, exp %d, saw %d",
			rd.fn, remsz, nw)
	}

	var expsum [trailerSize]byte

	rd.fd.Seek(sz-trailerSize, 0)
	if _, err = io.ReadFull(rd.fd, expsum[:]); err != nil {
		return fmt.Errorf("%s: checksum i/o error: %w", rd.fn, err)
	}

	csum := h.Sum(nil)
	if subtle.ConstantTimeCompare(csum[:], expsum[:]) != 1 {
		return fmt.Errorf("%s: checksum failure; exp %#x, saw %#x", rd.fn, expsum[:], csum[:])
	}

	return nil
}

// entry condition: b is headerSize bytes long.
func (rd *Reader) decodeHeader(b []byte, sz int64) (uint64, error) {
	if string(b[:4]) != magic {
		return 0, fmt.Errorf("%s: bad file magic", rd.fn)
	}
	if b[4] != version {
		return 0, fmt.Errorf("%s: no support for version %d", rd.fn, b[4])
	}

	rd.kind = b[5]
	if rd.kind != kindSmall && rd.kind != kindMedium {
		return 0, fmt.Errorf("%s: unknown map kind %d", rd.fn, rd.kind)
	}

	be := binary.BigEndian

	rd.salt = make([]byte, 16)
	copy(rd.salt, b[8:24])
	rd.nkeys = be.Uint64(b[24:32])
	offtbl := be.Uint64(b[32:40])
	rd.seed = be.Uint64(b[40:48])
	rd.slots = be.Uint32(b[48:52])
	rd.nbuckets = be.Uint32(b[52:56])

	// an empty map's table section is empty: offtbl may legally sit
	// right at the checksum trailer.
	if offtbl < headerSize || offtbl > uint64(sz-trailerSize) {
		return 0, fmt.Errorf("%s: corrupt header", rd.fn)
	}
	if rd.kind == kindMedium && uint64(rd.slots) < rd.nkeys {
		return 0, fmt.Errorf("%s: corrupt header", rd.fn)
	}

	return offtbl, nil
}

// Each calls fn for every record in storage order until fn returns
// false. Records are read from disk and checksum verified; the slices
// passed to fn are owned by fn.
func (rd *Reader) Each(fn func(key, val []byte) bool) error {
	for i := uint64(0); i < rd.nkeys; i++ {
		key, val, err := rd.decodeRecord(
			toLittleEndianUint64(rd.offset[i]),
			toLittleEndianUint32(rd.klen[i]),
			toLittleEndianUint32(rd.vlen[i]),
		)
		if err != nil {
			return err
		}

		if !fn(key, val) {
			return nil
		}
	}

	return nil
}

// VerifyRecords reads every record, validates its checksum, and checks
// its placement: the PHF must map each stored key back to the slot that
// references the record. This is a full file scan meant for tooling,
// not for the lookup path.
func (rd *Reader) VerifyRecords() error {
	for i := uint64(0); i < rd.nkeys; i++ {
		key, _, err := rd.decodeRecord(
			toLittleEndianUint64(rd.offset[i]),
			toLittleEndianUint32(rd.klen[i]),
			toLittleEndianUint32(rd.vlen[i]),
		)
		if err != nil {
			return err
		}

		if s := rd.slotOf(key); s != i {
			return fmt.Errorf("%s: record %d: key maps to slot %d", rd.fn, i, s)
		}
	}

	return nil
}

// DumpMeta writes map file metadata to 'w'.
func (rd *Reader) DumpMeta(w io.Writer) {
	switch rd.kind {
	case kindSmall:
		fmt.Fprintf(w, "%s: %d keys, small PHF <seed %#x>\n", rd.fn, rd.nkeys, rd.seed)
	case kindMedium:
		fmt.Fprintf(w, "%s: %d keys, medium PHF <seed %#x, %d slots, %d buckets>\n",
			rd.fn, rd.nkeys, rd.seed, rd.slots, rd.nbuckets)
	}
}
