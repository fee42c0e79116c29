package vm

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// ChunkWriter: serializes a prototype tree back to the binary chunk format
// ---------------------------------------------------------------------------

// ChunkWriter produces precompiled chunks in the format Load consumes. It
// exists for tooling and tests; the game's asset pipeline normally ships
// chunks produced by the original script compiler.
type ChunkWriter struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

// NewChunkWriter creates a writer that emits little-endian chunks.
func NewChunkWriter() *ChunkWriter {
	return &ChunkWriter{order: binary.LittleEndian}
}

// UseBigEndian switches the writer to big-endian output. Must be called
// before WriteChunk.
func (w *ChunkWriter) UseBigEndian() {
	w.order = binary.BigEndian
}

// WriteChunk serializes the header and the full prototype tree rooted at p.
func (w *ChunkWriter) WriteChunk(p *FuncProto) []byte {
	w.buf.Reset()
	w.writeHeader()
	w.writeFunction(p)
	return w.Bytes()
}

// Bytes returns the accumulated chunk bytes.
func (w *ChunkWriter) Bytes() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out
}

func (w *ChunkWriter) writeHeader() {
	w.buf.WriteByte(chunkSignature)
	w.buf.WriteString(chunkTag)
	w.buf.WriteByte(chunkVersion)
	if w.order == binary.LittleEndian {
		w.buf.WriteByte(endianLittle)
	} else {
		w.buf.WriteByte(endianBig)
	}
	w.buf.WriteByte(sizeofInt)
	w.buf.WriteByte(sizeofSizeT)
	w.buf.WriteByte(sizeofInstruction)
	w.buf.WriteByte(sizeInstruction)
	w.buf.WriteByte(sizeOp)
	w.buf.WriteByte(sizeB)
	w.buf.WriteByte(sizeofNumber)
	w.writeF64(testNumber)
}

func (w *ChunkWriter) writeFunction(p *FuncProto) {
	w.writeString(p.Source)
	w.writeU32(p.Line)
	w.writeU32(p.NumParams)
	if p.IsVararg {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	w.writeU32(p.MaxStack)

	w.writeU32(uint32(len(p.Locals)))
	for _, l := range p.Locals {
		w.writeString(l.Name)
		w.writeU32(l.StartPC)
		w.writeU32(l.EndPC)
	}

	w.writeU32(uint32(len(p.LineInfo)))
	for _, line := range p.LineInfo {
		w.writeU32(line)
	}

	w.writeU32(uint32(len(p.Strings)))
	for _, s := range p.Strings {
		w.writeString(s)
	}

	w.writeU32(uint32(len(p.Numbers)))
	for _, n := range p.Numbers {
		w.writeF64(n)
	}

	w.writeU32(uint32(len(p.Protos)))
	for _, nested := range p.Protos {
		w.writeFunction(nested)
	}

	w.writeU32(uint32(len(p.Code)))
	for _, ins := range p.Code {
		w.writeU32(ins.Word())
	}
}

func (w *ChunkWriter) writeU32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *ChunkWriter) writeF64(f float64) {
	var b [8]byte
	w.order.PutUint64(b[:], math.Float64bits(f))
	w.buf.Write(b[:])
}

func (w *ChunkWriter) writeString(s string) {
	w.writeU32(uint32(len(s)))
	w.buf.WriteString(s)
}
