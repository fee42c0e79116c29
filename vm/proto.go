package vm

// ---------------------------------------------------------------------------
// Function prototypes
// ---------------------------------------------------------------------------

// LocalVar is a debug record for one local variable: the instruction range
// over which it is live.
type LocalVar struct {
	Name    string
	StartPC uint32
	EndPC   uint32
}

// FuncProto is the compile-time description of one function: code,
// constants, and metadata. Prototypes are immutable after loading and are
// shared between the pool that loaded them and every Closure created from
// them, so they are safe to use read-only from many VM instances at once.
type FuncProto struct {
	Source    string
	Line      uint32 // line where the function was defined
	NumParams uint32
	IsVararg  bool
	MaxStack  uint32 // stack slots the compiler determined this function needs

	Locals  []LocalVar
	LineInfo []uint32 // source line per instruction

	// Constant pools.
	Strings []string
	Numbers []float64
	Protos  []*FuncProto // nested function prototypes

	Code []Instruction
}

// readFunction recursively parses one function block. Field order is fixed:
// source, line, parameter count, vararg flag, max stack, locals, line info,
// string constants, number constants, nested prototypes, instructions.
func (r *chunkReader) readFunction() (*FuncProto, error) {
	p := &FuncProto{}

	var err error
	if p.Source, err = r.str("source name"); err != nil {
		return nil, err
	}
	if p.Line, err = r.u32("line defined"); err != nil {
		return nil, err
	}
	if p.NumParams, err = r.u32("parameter count"); err != nil {
		return nil, err
	}
	vararg, err := r.u8("vararg flag")
	if err != nil {
		return nil, err
	}
	p.IsVararg = vararg != 0
	if p.MaxStack, err = r.u32("max stack size"); err != nil {
		return nil, err
	}

	if err := r.readLocals(p); err != nil {
		return nil, err
	}
	if err := r.readLineInfo(p); err != nil {
		return nil, err
	}
	if err := r.readConstants(p); err != nil {
		return nil, err
	}
	if err := r.readCode(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *chunkReader) readLocals(p *FuncProto) error {
	count, err := r.u32("local count")
	if err != nil {
		return err
	}
	p.Locals = make([]LocalVar, count)
	for i := range p.Locals {
		if p.Locals[i].Name, err = r.str("local name"); err != nil {
			return err
		}
		if p.Locals[i].StartPC, err = r.u32("local start pc"); err != nil {
			return err
		}
		if p.Locals[i].EndPC, err = r.u32("local end pc"); err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkReader) readLineInfo(p *FuncProto) error {
	count, err := r.u32("line info count")
	if err != nil {
		return err
	}
	p.LineInfo = make([]uint32, count)
	for i := range p.LineInfo {
		if p.LineInfo[i], err = r.u32("line info"); err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkReader) readConstants(p *FuncProto) error {
	count, err := r.u32("string constant count")
	if err != nil {
		return err
	}
	p.Strings = make([]string, count)
	for i := range p.Strings {
		if p.Strings[i], err = r.str("string constant"); err != nil {
			return err
		}
	}

	count, err = r.u32("number constant count")
	if err != nil {
		return err
	}
	p.Numbers = make([]float64, count)
	for i := range p.Numbers {
		if p.Numbers[i], err = r.f64("number constant"); err != nil {
			return err
		}
	}

	count, err = r.u32("nested prototype count")
	if err != nil {
		return err
	}
	p.Protos = make([]*FuncProto, count)
	for i := range p.Protos {
		if p.Protos[i], err = r.readFunction(); err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkReader) readCode(p *FuncProto) error {
	count, err := r.u32("instruction count")
	if err != nil {
		return err
	}
	p.Code = make([]Instruction, count)
	for i := range p.Code {
		word, err := r.u32("instruction")
		if err != nil {
			return err
		}
		if p.Code[i], err = Decode(word); err != nil {
			return err
		}
	}

	// Every function must end with END; anything else means the block was
	// truncated or miscounted.
	if len(p.Code) == 0 {
		return formatErrorf("code", "function %q has no instructions", p.Source)
	}
	if last := p.Code[len(p.Code)-1]; last.Op != OpEnd {
		return formatErrorf("code", "function %q ends with %s, not END", p.Source, last.Op)
	}
	return nil
}
