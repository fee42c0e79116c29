// Package vm implements the Lua 4.0 bytecode engine used to drive game
// scripts (quest conditions, NPC behaviors).
//
// This package contains:
//   - Tagged-union value representation
//   - Binary chunk reader and writer
//   - 32-bit instruction decoder
//   - Function prototype loader
//   - Stack-based bytecode interpreter
//
// Only the instruction subset emitted by the game's script compiler is
// executed; the remaining Lua 4.0 opcodes decode successfully but fail at
// run time with UnimplementedInstruction.
package vm
