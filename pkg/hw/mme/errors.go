package mme

import "errors"

// The engine distinguishes two failure categories: operations the emulation
// does not implement (missing feature, surfaced so callers can report the
// offending opcode), and contract violations of the macro program or its
// caller (logic defects, not missing features).
var (
	// ErrUnimplemented reports a code word selecting an operation, ALU
	// sub-operation or result operation that has no defined emulation.
	ErrUnimplemented = errors.New("unimplemented macro operation")

	// ErrMacro reports a precondition violation: register index out of
	// range, parameter list over- or under-consumed, branch inside a delay
	// slot, branch target outside the program, invocation of a method with
	// no uploaded code, or an empty parameter list.
	ErrMacro = errors.New("macro contract violation")
)
