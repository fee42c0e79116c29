package vm

import (
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Chunk format constants
// ---------------------------------------------------------------------------

const (
	chunkSignature byte = 27 // ESC, first byte of every precompiled chunk
	chunkVersion   byte = 0x40

	// Size assumptions baked into the chunk header. The tool that produced
	// the chunk records what it assumed; loading fails on any mismatch.
	sizeofInt         byte = 4
	sizeofSizeT       byte = 4
	sizeofInstruction byte = 4
	sizeofNumber      byte = 8

	// endianBig / endianLittle are the legal values of the header's
	// endianness byte; it selects how every later multi-byte field reads.
	endianBig    byte = 0
	endianLittle byte = 1
)

// chunkTag follows the signature byte in every chunk.
const chunkTag = "Lua"

// testNumber is pi*1e8, written as a float by the chunk producer. A bit
// pattern mismatch on load means the producer and this engine disagree
// about floating-point representation.
const testNumber = 3.14159265358979323846e8

// ---------------------------------------------------------------------------
// chunkReader: endianness-aware cursor over the chunk bytes
// ---------------------------------------------------------------------------

type chunkReader struct {
	data  []byte
	off   int
	order binary.ByteOrder
}

func (r *chunkReader) u8(field string) (byte, error) {
	if r.off >= len(r.data) {
		return 0, truncated(field)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *chunkReader) u32(field string) (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, truncated(field)
	}
	v := r.order.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *chunkReader) f64(field string) (float64, error) {
	if r.off+8 > len(r.data) {
		return 0, truncated(field)
	}
	bits := r.order.Uint64(r.data[r.off:])
	r.off += 8
	return math.Float64frombits(bits), nil
}

// str reads a length-prefixed string: u32 byte length followed by raw bytes.
func (r *chunkReader) str(field string) (string, error) {
	length, err := r.u32(field)
	if err != nil {
		return "", err
	}
	if r.off+int(length) > len(r.data) {
		return "", truncated(field)
	}
	s := string(r.data[r.off : r.off+int(length)])
	r.off += int(length)
	return s, nil
}

// ---------------------------------------------------------------------------
// Header validation
// ---------------------------------------------------------------------------

// readHeader consumes and validates the chunk header, setting the reader's
// byte order from the endianness flag. Any mismatch is a FormatError naming
// the failing field; there is no lenient mode.
func (r *chunkReader) readHeader() error {
	sig, err := r.u8("signature")
	if err != nil {
		return err
	}
	if sig != chunkSignature {
		return formatErrorf("signature", "expected %d, got %d", chunkSignature, sig)
	}

	for i := 0; i < len(chunkTag); i++ {
		b, err := r.u8("tag")
		if err != nil {
			return err
		}
		if b != chunkTag[i] {
			return formatErrorf("tag", "expected %q", chunkTag)
		}
	}

	version, err := r.u8("version")
	if err != nil {
		return err
	}
	if version != chunkVersion {
		return formatErrorf("version", "expected %#x, got %#x", chunkVersion, version)
	}

	endian, err := r.u8("endianness")
	if err != nil {
		return err
	}
	switch endian {
	case endianBig:
		r.order = binary.BigEndian
	case endianLittle:
		r.order = binary.LittleEndian
	default:
		return formatErrorf("endianness", "expected 0 or 1, got %d", endian)
	}

	sizes := []struct {
		field string
		want  byte
	}{
		{"sizeof int", sizeofInt},
		{"sizeof size_t", sizeofSizeT},
		{"sizeof instruction", sizeofInstruction},
		{"bits per instruction", sizeInstruction},
		{"bits per opcode", sizeOp},
		{"bits per B operand", sizeB},
		{"sizeof number", sizeofNumber},
	}
	for _, s := range sizes {
		got, err := r.u8(s.field)
		if err != nil {
			return err
		}
		if got != s.want {
			return formatErrorf(s.field, "expected %d, got %d", s.want, got)
		}
	}

	sentinel, err := r.f64("test number")
	if err != nil {
		return err
	}
	if math.Float64bits(sentinel) != math.Float64bits(testNumber) {
		return formatErrorf("test number", "expected %v, got %v", float64(testNumber), sentinel)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load parses a precompiled chunk and returns its root function prototype.
// The error is a *FormatError for structural problems or a *DecodeError for
// an unrecognized opcode; either way no partial prototype is returned.
func Load(data []byte) (*FuncProto, error) {
	r := &chunkReader{data: data, order: binary.BigEndian}
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r.readFunction()
}
