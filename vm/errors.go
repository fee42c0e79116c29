package vm

import "fmt"

// ---------------------------------------------------------------------------
// Load-time errors
// ---------------------------------------------------------------------------

// FormatError reports a malformed precompiled chunk: a bad header field, a
// truncated structure, or a function block that does not end with END.
// Loading stops at the first structural problem; no partial prototype is
// ever returned.
type FormatError struct {
	Field  string // the header field or structure that failed validation
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bad chunk: %s", e.Field)
	}
	return fmt.Sprintf("bad chunk: %s: %s", e.Field, e.Detail)
}

func formatErrorf(field, format string, args ...interface{}) *FormatError {
	return &FormatError{Field: field, Detail: fmt.Sprintf(format, args...)}
}

// truncated reports that the chunk ended in the middle of the named field.
func truncated(field string) *FormatError {
	return &FormatError{Field: field, Detail: "unexpected end of chunk"}
}

// DecodeError reports an instruction word whose opcode field is outside the
// recognized 0..48 range.
type DecodeError struct {
	Opcode uint32 // the raw opcode bits
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unknown opcode %d", e.Opcode)
}

// ---------------------------------------------------------------------------
// Run-time errors
// ---------------------------------------------------------------------------

// VMErrorCode classifies a run-time execution failure.
type VMErrorCode int

const (
	// MissingStackValue: an instruction popped or indexed past the bottom
	// of the current frame's window.
	MissingStackValue VMErrorCode = iota

	// GlobalNotFound: GETGLOBAL on a name absent from the global
	// environment.
	GlobalNotFound

	// NotClosure: CALL on a value that is neither a Closure nor a
	// NativeClosure.
	NotClosure

	// UnimplementedInstruction: the opcode decoded fine but this VM has no
	// executor for it.
	UnimplementedInstruction

	// InvalidOperand: a constant-pool index, nested-prototype index, or
	// jump target was out of range for the running prototype.
	InvalidOperand
)

func (c VMErrorCode) String() string {
	switch c {
	case MissingStackValue:
		return "MissingStackValue"
	case GlobalNotFound:
		return "GlobalNotFound"
	case NotClosure:
		return "NotClosure"
	case UnimplementedInstruction:
		return "UnimplementedInstruction"
	case InvalidOperand:
		return "InvalidOperand"
	}
	return fmt.Sprintf("VMErrorCode(%d)", int(c))
}

// VMError aborts the current invocation. Global-environment writes made by
// SETGLOBAL before the failing instruction are not rolled back.
type VMError struct {
	Code   VMErrorCode
	Global string // name, for GlobalNotFound
	Op     Opcode // opcode, for UnimplementedInstruction
	Detail string
}

func (e *VMError) Error() string {
	switch e.Code {
	case MissingStackValue:
		if e.Detail != "" {
			return fmt.Sprintf("missing stack value: %s", e.Detail)
		}
		return "missing stack value"
	case GlobalNotFound:
		return fmt.Sprintf("global %q not found", e.Global)
	case NotClosure:
		if e.Detail != "" {
			return fmt.Sprintf("called value is not a closure: %s", e.Detail)
		}
		return "called value is not a closure"
	case UnimplementedInstruction:
		return fmt.Sprintf("instruction %s has no executor", e.Op)
	case InvalidOperand:
		return fmt.Sprintf("invalid operand: %s", e.Detail)
	}
	return "vm error"
}

func errMissingStack(detail string) *VMError {
	return &VMError{Code: MissingStackValue, Detail: detail}
}

func errGlobalNotFound(name string) *VMError {
	return &VMError{Code: GlobalNotFound, Global: name}
}

func errNotClosure(detail string) *VMError {
	return &VMError{Code: NotClosure, Detail: detail}
}

func errUnimplemented(op Opcode) *VMError {
	return &VMError{Code: UnimplementedInstruction, Op: op}
}

func errInvalidOperand(format string, args ...interface{}) *VMError {
	return &VMError{Code: InvalidOperand, Detail: fmt.Sprintf(format, args...)}
}
