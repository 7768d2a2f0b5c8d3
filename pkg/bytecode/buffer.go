// Package bytecode — wire format for compiled programs.
//
// A compiled program is a contiguous byte buffer (spec §3, §6):
//
//	magic       u32   "ION1" as a little-endian word
//	version     u32
//	total_size  u32   byte length of everything that follows this field
//	code        ...   starts with a single OP_REG instruction (the
//	                  top-level register reservation) followed by the
//	                  program's instructions
//
// This mirrors the teacher's own .sg file format (pkg/bytecode/format.go)
// generalized to the register/named-slot instruction set above: same
// magic-number/version/binary-section shape, adapted field-for-field to
// this spec's single flat instruction stream instead of a constant pool
// plus class/method sections.
package bytecode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

const (
	// Magic is the 4-byte file signature, "ION1" read little-endian.
	Magic uint32 = 0x314e4f49

	// Version is the format version this package writes and the highest
	// version it will read (spec §6: "version must be ≤ compiled-in").
	Version uint32 = 1
)

// BadMagicError is returned by Decode when the stream does not start with
// the expected magic number (spec §6).
type BadMagicError struct {
	Got uint32
}

func (e *BadMagicError) Error() string {
	return errors.Errorf("bad magic number: got 0x%08x, want 0x%08x", e.Got, Magic).Error()
}

// VersionMismatchError is returned by Decode when the stream's version
// exceeds what this package understands (spec §6).
type VersionMismatchError struct {
	Got, Max uint32
}

func (e *VersionMismatchError) Error() string {
	return errors.Errorf("bytecode version %d unsupported (max %d)", e.Got, e.Max).Error()
}

// Buffer is a fully assembled, decoded program: the header fields plus the
// raw instruction stream (including its leading OP_REG).
type Buffer struct {
	Version uint32
	Code    []byte
}

// Assemble wraps a Writer's accumulated instruction stream (which must
// begin with the top-level OP_REG) into a Buffer ready for Encode.
func Assemble(w *Writer) *Buffer {
	return &Buffer{Version: Version, Code: w.Bytes()}
}

// Encode writes the header and code to w: magic, version, total_size, code.
func Encode(b *Buffer, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, Magic); err != nil {
		return errors.Wrap(err, "writing magic")
	}
	if err := binary.Write(w, binary.LittleEndian, b.Version); err != nil {
		return errors.Wrap(err, "writing version")
	}
	totalSize := uint32(len(b.Code))
	if err := binary.Write(w, binary.LittleEndian, totalSize); err != nil {
		return errors.Wrap(err, "writing total size")
	}
	if _, err := w.Write(b.Code); err != nil {
		return errors.Wrap(err, "writing code")
	}
	return nil
}

// Decode reads a header and code from r, validating magic and version.
func Decode(r io.Reader) (*Buffer, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != Magic {
		return nil, &BadMagicError{Got: magic}
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, "reading version")
	}
	if version > Version {
		return nil, &VersionMismatchError{Got: version, Max: Version}
	}

	var totalSize uint32
	if err := binary.Read(r, binary.LittleEndian, &totalSize); err != nil {
		return nil, errors.Wrap(err, "reading total size")
	}

	code := make([]byte, totalSize)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, errors.Wrap(err, "reading code")
	}

	return &Buffer{Version: version, Code: code}, nil
}

// Reader sequentially decodes instructions and their operands from a
// Buffer's Code, tracking the current read offset as the instruction
// pointer. It is the VM's (C7) cursor over the instruction stream.
type Reader struct {
	code []byte
	ip   int
}

// NewReader returns a Reader positioned at the start of code.
func NewReader(code []byte) *Reader {
	return &Reader{code: code}
}

// IP returns the current instruction pointer (byte offset into code).
func (r *Reader) IP() int { return r.ip }

// SetIP repositions the reader, used for JUMP/CALL/RETURN control
// transfers.
func (r *Reader) SetIP(ip int) { r.ip = ip }

// AtEnd reports whether the reader has consumed the whole stream.
func (r *Reader) AtEnd() bool { return r.ip >= len(r.code) }

// Op reads one opcode byte.
func (r *Reader) Op() OpCode {
	op := OpCode(r.code[r.ip])
	r.ip++
	return op
}

// Location reads one signed location byte.
func (r *Reader) Location() Location {
	v := Location(int8(r.code[r.ip]))
	r.ip++
	return v
}

// SmallSize reads one unsigned byte.
func (r *Reader) SmallSize() uint8 {
	v := r.code[r.ip]
	r.ip++
	return v
}

// Index reads a 4-byte little-endian unsigned index.
func (r *Reader) Index() Index {
	v := binary.LittleEndian.Uint32(r.code[r.ip : r.ip+4])
	r.ip += 4
	return v
}

// Number reads an 8-byte little-endian float64.
func (r *Reader) Number() float64 {
	bits := binary.LittleEndian.Uint64(r.code[r.ip : r.ip+8])
	r.ip += 8
	return math.Float64frombits(bits)
}

// Bool reads a single byte as a boolean.
func (r *Reader) Bool() bool {
	v := r.code[r.ip] != 0
	r.ip++
	return v
}

// String reads a 4-byte length prefix followed by that many UTF-8 bytes.
func (r *Reader) String() string {
	n := binary.LittleEndian.Uint32(r.code[r.ip : r.ip+4])
	r.ip += 4
	s := string(r.code[r.ip : r.ip+int(n)])
	r.ip += int(n)
	return s
}
