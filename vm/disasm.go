package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a prototype tree as a human-readable listing: one
// line per instruction with pc, source line, and operands, followed by the
// nested prototypes.
func Disassemble(p *FuncProto) string {
	var b strings.Builder
	disassemble(&b, p, "main")
	return b.String()
}

func disassemble(b *strings.Builder, p *FuncProto, label string) {
	fmt.Fprintf(b, "%s <%s:%d> (%d params, %d slots, %d instructions)\n",
		label, p.Source, p.Line, p.NumParams, p.MaxStack, len(p.Code))

	for pc, ins := range p.Code {
		line := uint32(0)
		if pc < len(p.LineInfo) {
			line = p.LineInfo[pc]
		}
		fmt.Fprintf(b, "%4d  [%d]  %s%s\n", pc, line, ins, operandComment(p, ins))
	}

	for i, nested := range p.Protos {
		b.WriteByte('\n')
		disassemble(b, nested, fmt.Sprintf("function [%d]", i))
	}
}

// operandComment resolves constant-pool operands so the listing shows what
// the instruction actually pushes or names.
func operandComment(p *FuncProto, ins Instruction) string {
	switch ins.Op {
	case OpPushString, OpGetGlobal, OpSetGlobal, OpGetDotted, OpPushSelf:
		if int(ins.U) < len(p.Strings) {
			return fmt.Sprintf("  ; %q", p.Strings[ins.U])
		}
	case OpPushNum, OpPushNegNum:
		if int(ins.U) < len(p.Numbers) {
			return fmt.Sprintf("  ; %g", p.Numbers[ins.U])
		}
	case OpGetLocal, OpSetLocal:
		if name := localName(p, ins.U); name != "" {
			return fmt.Sprintf("  ; %s", name)
		}
	case OpClosure:
		if int(ins.A) < len(p.Protos) {
			nested := p.Protos[ins.A]
			return fmt.Sprintf("  ; %s:%d", nested.Source, nested.Line)
		}
	}
	return ""
}

func localName(p *FuncProto, slot uint32) string {
	if int(slot) < len(p.Locals) {
		return p.Locals[slot].Name
	}
	return ""
}
