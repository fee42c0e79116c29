package vm

import "fmt"

// ---------------------------------------------------------------------------
// Host dispatch
// ---------------------------------------------------------------------------

// Dispatcher is the capability through which the VM invokes
// host-implemented native functions (quest, ability, and store logic live on
// the other side of this boundary). It is supplied per call, not registered
// globally, so independent native-function sets can back separate VM
// instances.
//
// A dispatcher may signal failure with any error, including a *VMError.
type Dispatcher interface {
	CallNative(name string, args []Value) ([]Value, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(name string, args []Value) ([]Value, error)

// CallNative implements Dispatcher.
func (f DispatcherFunc) CallNative(name string, args []Value) ([]Value, error) {
	return f(name, args)
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// VM holds the global environment scripts read and write. A VM is not
// internally synchronized: concurrent invocations require external locking.
// Prototypes, by contrast, are immutable and freely shared.
type VM struct {
	Globals map[string]Value
}

// NewVM creates a VM with an empty global environment.
func NewVM() *VM {
	return &VM{Globals: make(map[string]Value)}
}

// SetGlobal sets a global by name.
func (m *VM) SetGlobal(name string, v Value) {
	m.Globals[name] = v
}

// GetGlobal returns the global's value and whether it exists.
func (m *VM) GetGlobal(name string) (Value, bool) {
	v, ok := m.Globals[name]
	return v, ok
}

// CallGlobal looks up name in the globals, requires it to be a Closure, and
// calls it. Script entry points (quest hooks) are invoked this way after
// the chunk's root function has run and populated the globals.
func (m *VM) CallGlobal(name string, args []Value, host Dispatcher) ([]Value, error) {
	v, ok := m.Globals[name]
	if !ok {
		return nil, errGlobalNotFound(name)
	}
	cl := v.Closure()
	if cl == nil {
		return nil, errNotClosure(fmt.Sprintf("global %q is a %s", name, v.Kind()))
	}
	return m.CallFunction(cl.Proto, args, host)
}

// CallFunction executes a prototype against this VM's global environment.
// Execution is synchronous: it runs until the function returns, ends, or
// fails with a *VMError. On failure, SETGLOBAL writes made before the
// failing instruction remain in place (no rollback).
func (m *VM) CallFunction(proto *FuncProto, args []Value, host Dispatcher) ([]Value, error) {
	return m.run(proto, args, host)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// frame is the per-invocation stack window. Each invocation owns its stack
// outright; a running frame can never observe another frame's slots.
type frame struct {
	stack []Value
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (Value, error) {
	if len(f.stack) == 0 {
		return Nil, errMissingStack("pop on empty stack")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// popN removes the top n values, returning them in push order.
func (f *frame) popN(n int) ([]Value, error) {
	if len(f.stack) < n {
		return nil, errMissingStack("pop past frame bottom")
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

// run is the interpreter loop. Lua-to-Lua calls recurse through run on the
// Go stack; there is no explicit call-stack structure, so script call depth
// is bounded by the host stack.
func (m *VM) run(proto *FuncProto, args []Value, host Dispatcher) ([]Value, error) {
	f := &frame{stack: make([]Value, proto.NumParams, proto.NumParams+proto.MaxStack)}

	// Seed the frame with arguments, padded with Nil or truncated to the
	// declared parameter count. Locals beyond the parameters stay
	// unwritten until a push reaches them.
	for i := range f.stack {
		if i < len(args) {
			f.stack[i] = args[i]
		} else {
			f.stack[i] = Nil
		}
	}

	pc := 0
	for {
		if pc < 0 || pc >= len(proto.Code) {
			return nil, errInvalidOperand("pc %d outside code (%d instructions)", pc, len(proto.Code))
		}
		ins := proto.Code[pc]
		pc++

		switch ins.Op {
		case OpEnd:
			return nil, nil

		case OpReturn:
			base := int(ins.U)
			if base > len(f.stack) {
				return nil, errMissingStack("RETURN base past top of stack")
			}
			results := make([]Value, len(f.stack)-base)
			copy(results, f.stack[base:])
			return results, nil

		case OpCall:
			results, err := m.call(f, int(ins.A), host)
			if err != nil {
				return nil, err
			}
			// Pad with Nil or truncate to exactly B results, pushed in
			// original order.
			for i := 0; i < int(ins.B); i++ {
				if i < len(results) {
					f.push(results[i])
				} else {
					f.push(Nil)
				}
			}

		case OpPushNil:
			for i := uint32(0); i < ins.U; i++ {
				f.push(Nil)
			}

		case OpPop:
			if _, err := f.popN(int(ins.U)); err != nil {
				return nil, err
			}

		case OpPushInt:
			f.push(FromNumber(float64(ins.S)))

		case OpPushString:
			if int(ins.U) >= len(proto.Strings) {
				return nil, errInvalidOperand("string constant %d of %d", ins.U, len(proto.Strings))
			}
			f.push(FromString(proto.Strings[ins.U]))

		case OpPushNum:
			n, err := constNumber(proto, ins.U)
			if err != nil {
				return nil, err
			}
			f.push(FromNumber(n))

		case OpPushNegNum:
			n, err := constNumber(proto, ins.U)
			if err != nil {
				return nil, err
			}
			f.push(FromNumber(-n))

		case OpGetLocal:
			slot := int(ins.U)
			if slot >= len(f.stack) {
				return nil, errMissingStack("GETLOCAL slot past top of stack")
			}
			f.push(f.stack[slot])

		case OpSetLocal:
			v, err := f.pop()
			if err != nil {
				return nil, err
			}
			slot := int(ins.U)
			if slot >= len(f.stack) {
				return nil, errMissingStack("SETLOCAL slot past top of stack")
			}
			f.stack[slot] = v

		case OpGetGlobal:
			name, err := constString(proto, ins.U)
			if err != nil {
				return nil, err
			}
			v, ok := m.Globals[name]
			if !ok {
				return nil, errGlobalNotFound(name)
			}
			f.push(v)

		case OpSetGlobal:
			name, err := constString(proto, ins.U)
			if err != nil {
				return nil, err
			}
			v, err := f.pop()
			if err != nil {
				return nil, err
			}
			m.Globals[name] = v

		case OpJmpEQ, OpJmpNE, OpJmpLT, OpJmpLE, OpJmpGT, OpJmpGE:
			// Top of stack is the right-hand operand.
			right, err := f.pop()
			if err != nil {
				return nil, err
			}
			left, err := f.pop()
			if err != nil {
				return nil, err
			}
			if compareJump(ins.Op, left, right) {
				pc += int(ins.S)
			}

		case OpJmpT:
			v, err := f.pop()
			if err != nil {
				return nil, err
			}
			if !v.IsNil() {
				pc += int(ins.S)
			}

		case OpJmpF:
			v, err := f.pop()
			if err != nil {
				return nil, err
			}
			if v.IsNil() {
				pc += int(ins.S)
			}

		case OpJmpOnT:
			// Peek: a truthy operand stays on the stack for the caller.
			if len(f.stack) == 0 {
				return nil, errMissingStack("JMPONT on empty stack")
			}
			if !f.stack[len(f.stack)-1].IsNil() {
				pc += int(ins.S)
			} else {
				f.stack = f.stack[:len(f.stack)-1]
			}

		case OpJmpOnF:
			if len(f.stack) == 0 {
				return nil, errMissingStack("JMPONF on empty stack")
			}
			if f.stack[len(f.stack)-1].IsNil() {
				f.stack = f.stack[:len(f.stack)-1]
				pc += int(ins.S)
			}

		case OpJmp:
			pc += int(ins.S)

		case OpPushNilJmp:
			f.push(Nil)
			pc++

		case OpClosure:
			if int(ins.A) >= len(proto.Protos) {
				return nil, errInvalidOperand("nested prototype %d of %d", ins.A, len(proto.Protos))
			}
			// Capture upvalues by value, in push order.
			upvalues, err := f.popN(int(ins.B))
			if err != nil {
				return nil, err
			}
			f.push(FromClosure(&Closure{Proto: proto.Protos[ins.A], Upvalues: upvalues}))

		default:
			// Decoded fine, but this VM does not execute it (tables,
			// arithmetic, for loops, tail calls, upvalue push).
			return nil, errUnimplemented(ins.Op)
		}
	}
}

// call executes CALL(argBase, _): the value at argBase is the callee and
// everything above it is the argument list. Results come back unadjusted;
// the CALL case pads or truncates them.
func (m *VM) call(f *frame, argBase int, host Dispatcher) ([]Value, error) {
	if argBase >= len(f.stack) {
		return nil, errMissingStack("CALL base past top of stack")
	}
	callee := f.stack[argBase]
	args := make([]Value, len(f.stack)-argBase-1)
	copy(args, f.stack[argBase+1:])
	f.stack = f.stack[:argBase]

	switch callee.Kind() {
	case KindClosure:
		return m.run(callee.Closure().Proto, args, host)
	case KindNativeClosure:
		name, _ := callee.NativeName()
		if host == nil {
			return nil, errNotClosure(fmt.Sprintf("native %q called without a dispatcher", name))
		}
		return host.CallNative(name, args)
	default:
		return nil, errNotClosure("callee is a " + callee.Kind().String())
	}
}

// compareJump evaluates a comparison-jump condition. Equality holds only
// between two Numbers or two Strings with matching content; ordering is
// likewise defined only within those pairings, and an undefined ordering
// never takes the branch.
func compareJump(op Opcode, left, right Value) bool {
	switch op {
	case OpJmpEQ:
		return left.Equal(right)
	case OpJmpNE:
		return !left.Equal(right)
	case OpJmpLT:
		r, ok := left.lessThan(right)
		return ok && r
	case OpJmpLE:
		r, ok := left.lessEqual(right)
		return ok && r
	case OpJmpGT:
		r, ok := right.lessThan(left)
		return ok && r
	case OpJmpGE:
		r, ok := right.lessEqual(left)
		return ok && r
	}
	return false
}

func constString(proto *FuncProto, idx uint32) (string, error) {
	if int(idx) >= len(proto.Strings) {
		return "", errInvalidOperand("string constant %d of %d", idx, len(proto.Strings))
	}
	return proto.Strings[idx], nil
}

func constNumber(proto *FuncProto, idx uint32) (float64, error) {
	if int(idx) >= len(proto.Numbers) {
		return 0, errInvalidOperand("number constant %d of %d", idx, len(proto.Numbers))
	}
	return proto.Numbers[idx], nil
}
