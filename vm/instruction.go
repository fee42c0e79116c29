package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions (Lua 4.0 instruction set, opcodes 0..48)
// ---------------------------------------------------------------------------

// Opcode identifies one of the 49 recognized Lua 4.0 instructions.
type Opcode uint8

const (
	OpEnd Opcode = iota // 0: terminal instruction of every function
	OpReturn
	OpCall
	OpTailCall
	OpPushNil
	OpPop
	OpPushInt
	OpPushString
	OpPushNum
	OpPushNegNum
	OpPushUpvalue
	OpGetLocal
	OpGetGlobal
	OpGetTable
	OpGetDotted
	OpGetIndexed
	OpPushSelf
	OpCreateTable
	OpSetLocal
	OpSetGlobal
	OpSetTable
	OpSetList
	OpSetMap
	OpAdd
	OpAddI
	OpSub
	OpMult
	OpDiv
	OpPow
	OpConcat
	OpMinus
	OpNot
	OpJmpNE
	OpJmpEQ
	OpJmpLT
	OpJmpLE
	OpJmpGT
	OpJmpGE
	OpJmpT
	OpJmpF
	OpJmpOnT
	OpJmpOnF
	OpJmp
	OpPushNilJmp
	OpForPrep
	OpForLoop
	OpLForPrep
	OpLForLoop
	OpClosure // 48
)

// NumOpcodes is the number of recognized opcodes.
const NumOpcodes = int(OpClosure) + 1

// Instruction field widths. The chunk header carries these as size
// assumptions and loading fails if they disagree.
const (
	sizeInstruction = 32
	sizeOp          = 6
	sizeB           = 9
	sizeU           = sizeInstruction - sizeOp // 26
	sizeA           = sizeU - sizeB            // 17

	maskOp = 1<<sizeOp - 1
	maskU  = 1<<sizeU - 1
	maskB  = 1<<sizeB - 1

	// biasS centers the U field so signed operands can be stored unsigned.
	biasS = maskU >> 1
)

// OperandMode describes which operand fields an opcode carries.
type OperandMode uint8

const (
	ModeNone OperandMode = iota // no operand
	ModeU                       // one 26-bit unsigned operand
	ModeS                       // one signed operand (U minus bias)
	ModeAB                      // a 17-bit A and a 9-bit B operand
)

type opcodeInfo struct {
	name string
	mode OperandMode
}

// opcodeTable is the fixed opcode -> operand-shape mapping.
var opcodeTable = [NumOpcodes]opcodeInfo{
	OpEnd:         {"END", ModeNone},
	OpReturn:      {"RETURN", ModeU},
	OpCall:        {"CALL", ModeAB},
	OpTailCall:    {"TAILCALL", ModeAB},
	OpPushNil:     {"PUSHNIL", ModeU},
	OpPop:         {"POP", ModeU},
	OpPushInt:     {"PUSHINT", ModeS},
	OpPushString:  {"PUSHSTRING", ModeU},
	OpPushNum:     {"PUSHNUM", ModeU},
	OpPushNegNum:  {"PUSHNEGNUM", ModeU},
	OpPushUpvalue: {"PUSHUPVALUE", ModeU},
	OpGetLocal:    {"GETLOCAL", ModeU},
	OpGetGlobal:   {"GETGLOBAL", ModeU},
	OpGetTable:    {"GETTABLE", ModeNone},
	OpGetDotted:   {"GETDOTTED", ModeU},
	OpGetIndexed:  {"GETINDEXED", ModeU},
	OpPushSelf:    {"PUSHSELF", ModeU},
	OpCreateTable: {"CREATETABLE", ModeU},
	OpSetLocal:    {"SETLOCAL", ModeU},
	OpSetGlobal:   {"SETGLOBAL", ModeU},
	OpSetTable:    {"SETTABLE", ModeAB},
	OpSetList:     {"SETLIST", ModeAB},
	OpSetMap:      {"SETMAP", ModeU},
	OpAdd:         {"ADD", ModeNone},
	OpAddI:        {"ADDI", ModeS},
	OpSub:         {"SUB", ModeNone},
	OpMult:        {"MULT", ModeNone},
	OpDiv:         {"DIV", ModeNone},
	OpPow:         {"POW", ModeNone},
	OpConcat:      {"CONCAT", ModeU},
	OpMinus:       {"MINUS", ModeNone},
	OpNot:         {"NOT", ModeNone},
	OpJmpNE:       {"JMPNE", ModeS},
	OpJmpEQ:       {"JMPEQ", ModeS},
	OpJmpLT:       {"JMPLT", ModeS},
	OpJmpLE:       {"JMPLE", ModeS},
	OpJmpGT:       {"JMPGT", ModeS},
	OpJmpGE:       {"JMPGE", ModeS},
	OpJmpT:        {"JMPT", ModeS},
	OpJmpF:        {"JMPF", ModeS},
	OpJmpOnT:      {"JMPONT", ModeS},
	OpJmpOnF:      {"JMPONF", ModeS},
	OpJmp:         {"JMP", ModeS},
	OpPushNilJmp:  {"PUSHNILJMP", ModeNone},
	OpForPrep:     {"FORPREP", ModeS},
	OpForLoop:     {"FORLOOP", ModeS},
	OpLForPrep:    {"LFORPREP", ModeS},
	OpLForLoop:    {"LFORLOOP", ModeS},
	OpClosure:     {"CLOSURE", ModeAB},
}

// Name returns the opcode's mnemonic.
func (op Opcode) Name() string {
	if int(op) < NumOpcodes {
		return opcodeTable[op].name
	}
	return fmt.Sprintf("UNKNOWN_%d", uint8(op))
}

// Mode returns the opcode's operand shape.
func (op Opcode) Mode() OperandMode {
	if int(op) < NumOpcodes {
		return opcodeTable[op].mode
	}
	return ModeNone
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one decoded 32-bit instruction word. Which operand fields
// are meaningful is fixed by the opcode's OperandMode; the others are zero.
// Instructions are immutable once decoded.
type Instruction struct {
	Op Opcode
	U  uint32 // ModeU
	S  int32  // ModeS
	A  uint32 // ModeAB
	B  uint32 // ModeAB
}

// Decode maps a 32-bit instruction word (already endianness-normalized by
// the chunk reader) to a typed instruction.
//
// Bit layout: opcode in bits 0-5, U in bits 6-31, S = U - bias,
// A in bits 15-31, B in bits 6-14.
//
// Decode is pure: it depends only on the word and has no side effects, so
// any opcode value outside 0..48 is the only possible failure.
func Decode(word uint32) (Instruction, error) {
	raw := word & maskOp
	if raw >= uint32(NumOpcodes) {
		return Instruction{}, &DecodeError{Opcode: raw}
	}
	ins := Instruction{Op: Opcode(raw)}
	switch opcodeTable[ins.Op].mode {
	case ModeU:
		ins.U = word >> sizeOp
	case ModeS:
		ins.S = int32(word>>sizeOp) - biasS
	case ModeAB:
		ins.A = word >> (sizeOp + sizeB)
		ins.B = word >> sizeOp & maskB
	}
	return ins, nil
}

// Word encodes the instruction back into its 32-bit wire form, the inverse
// of Decode. Operand bits outside their field widths are masked off.
func (ins Instruction) Word() uint32 {
	word := uint32(ins.Op) & maskOp
	switch ins.Op.Mode() {
	case ModeU:
		word |= (ins.U & maskU) << sizeOp
	case ModeS:
		word |= (uint32(ins.S+biasS) & maskU) << sizeOp
	case ModeAB:
		word |= (ins.A & (1<<sizeA - 1)) << (sizeOp + sizeB)
		word |= (ins.B & maskB) << sizeOp
	}
	return word
}

// String renders the instruction as mnemonic plus operands.
func (ins Instruction) String() string {
	switch ins.Op.Mode() {
	case ModeU:
		return fmt.Sprintf("%s %d", ins.Op.Name(), ins.U)
	case ModeS:
		return fmt.Sprintf("%s %d", ins.Op.Name(), ins.S)
	case ModeAB:
		return fmt.Sprintf("%s %d %d", ins.Op.Name(), ins.A, ins.B)
	}
	return ins.Op.Name()
}
