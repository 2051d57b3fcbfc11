// seqwriter.go - sidecar blob writers for the emitter
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
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// seqWriter accumulates one sidecar blob. The file is opened lazily on
// the first write so that maps whose data fits inline produce no sidecar
// at all; the running byte count is what entry offsets are made of.
type seqWriter struct {
	symbol string // embed variable name in the generated source
	path   string
	count  int
	fd     *os.File
}

func newSeqWriter(symbol, path string) *seqWriter {
	return &seqWriter{symbol: symbol, path: path}
}

func (w *seqWriter) write(p []byte) error {
	if w.fd == nil {
		fd, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		w.fd = fd
	}

	n, err := w.fd.Write(p)
	w.count += n
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("builder: %s: incomplete write; exp %d, saw %d", w.path, len(p), n)
	}
	return nil
}

func (w *seqWriter) writeU32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.write(b[:])
}

// emitEmbed writes the //go:embed declaration for this sidecar, if any
// bytes were written to it.
func (w *seqWriter) emitEmbed(cw io.Writer) error {
	if w.fd == nil {
		return nil
	}

	_, err := fmt.Fprintf(cw, "//go:embed %s\nvar %s []byte\n\n",
		filepath.Base(w.path), w.symbol)
	return err
}

func (w *seqWriter) close() error {
	if w.fd == nil {
		return nil
	}

	err := w.fd.Close()
	w.fd = nil
	return err
}
