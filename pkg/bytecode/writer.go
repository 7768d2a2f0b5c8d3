package bytecode

import (
	"encoding/binary"
	"math"
)

// Writer accumulates a raw instruction stream and supports back-patching
// fixed-width operands already written — the compiler (C5) needs this for
// forward jumps, STORE_AT_F's entry-ip/n_args/n_registers, and REG's
// register count, all of which are known only after the body they precede
// has been compiled.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Len returns the current size of the written stream; also usable as the
// instruction-pointer value of the next byte that will be written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the accumulated stream.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Op appends a single opcode byte.
func (w *Writer) Op(op OpCode) {
	w.buf = append(w.buf, byte(op))
}

// Location appends a signed location byte.
func (w *Writer) Location(loc Location) {
	w.buf = append(w.buf, byte(loc))
}

// SmallSize appends an unsigned byte.
func (w *Writer) SmallSize(v uint8) {
	w.buf = append(w.buf, v)
}

// Index reserves and appends a 4-byte little-endian slot, returning its
// offset so the caller can later Patch it once the target is known.
func (w *Writer) Index(v Index) int {
	off := len(w.buf)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
	return off
}

// PatchIndex overwrites the 4-byte index previously written at off.
func (w *Writer) PatchIndex(off int, v Index) {
	binary.LittleEndian.PutUint32(w.buf[off:off+4], v)
}

// PatchSmallSize overwrites the byte previously written at off.
func (w *Writer) PatchSmallSize(off int, v uint8) {
	w.buf[off] = v
}

// Number appends an 8-byte little-endian float64.
func (w *Writer) Number(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	w.buf = append(w.buf, tmp[:]...)
}

// Bool appends a single byte, 0 or 1.
func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// String appends a 4-byte length prefix followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)))
	w.buf = append(w.buf, tmp[:]...)
	w.buf = append(w.buf, s...)
}
