// demo.go -- generated benchmark corpus

package main

import (
	"encoding/binary"
	"fmt"

	staticmap "github.com/opencoff/go-staticmap"
)

// demoCorpus generates n synthetic key/value pairs: key i is the hex of
// its unseeded hash followed by the decimal index, and the value is the
// low hash half xor'd with the index. The shape stresses the medium
// strategy with realistic variable-length keys while staying fully
// reproducible.
func demoCorpus(n int) (keys, vals [][]byte) {
	keys = make([][]byte, n)
	vals = make([][]byte, n)

	var idb [4]byte
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(idb[:], uint32(i))
		h := staticmap.FNVHasher{}.Hash(0, idb[:])

		keys[i] = []byte(fmt.Sprintf("%x%d", h, i))

		var v [4]byte
		binary.LittleEndian.PutUint32(v[:], uint32(h)^uint32(i))
		vals[i] = v[:]
	}

	return keys, vals
}
