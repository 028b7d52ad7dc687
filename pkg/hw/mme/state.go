package mme

import (
	"github.com/gpuemu/mme/pkg/utils"
)

// macroState is the mutable state of one macro invocation: the general
// purpose registers, the parameter cursor and the method address register.
// It is created fresh for every execution and discarded at completion. Both
// backends run against this state; the engine register file is external.
type macroState struct {
	registers     [NumRegisters]uint32
	methodAddress MethodAddress
	parameters    []uint32
	// nextParameter starts at 1: parameter 0 is preloaded into register 1
	// before execution begins.
	nextParameter int
	regs          Registers
}

// newMacroState initializes the invocation state per the hardware contract:
// all registers zeroed, register 1 preloaded with the first parameter, and
// the parameter cursor placed after it.
func newMacroState(regs Registers, parameters []uint32) (*macroState, error) {
	if len(parameters) == 0 {
		return nil, utils.MakeError(ErrMacro, "macro invoked with an empty parameter list")
	}

	st := &macroState{
		parameters:    parameters,
		nextParameter: 1,
		regs:          regs,
	}
	st.registers[1] = parameters[0]

	return st, nil
}

// getRegister returns the value of a general purpose register. Register 0
// always reads as zero. Indices come from 3-bit opcode fields, so they are
// always in range once decoded.
func (st *macroState) getRegister(index uint32) uint32 {
	if index == 0 {
		return 0
	}
	return st.registers[index]
}

// setRegister stores a value into a general purpose register. Stores to
// register 0 are discarded; the hardware implements NOP as a store to the
// zero register.
func (st *macroState) setRegister(index uint32, value uint32) {
	if index == 0 {
		return
	}
	st.registers[index] = value
}

// fetchParameter consumes the next caller-supplied parameter.
func (st *macroState) fetchParameter() (uint32, error) {
	if st.nextParameter >= len(st.parameters) {
		return 0, utils.MakeError(ErrMacro,
			"macro fetched parameter %v but only %v were supplied",
			st.nextParameter, len(st.parameters))
	}

	value := st.parameters[st.nextParameter]
	st.nextParameter++
	return value, nil
}

// setMethodAddress loads the method address register from a computed result.
func (st *macroState) setMethodAddress(value uint32) {
	st.methodAddress = MethodAddress(value)
}

// send writes a value to the engine register addressed by the method address
// register, then advances the address field by the increment field.
func (st *macroState) send(value uint32) {
	st.regs.WriteRegister(st.methodAddress.Address(), value)
	st.methodAddress = st.methodAddress.Advance()
}

// read returns the value of an engine register.
func (st *macroState) read(address uint32) uint32 {
	return st.regs.ReadRegisterValue(address)
}

// finish checks the parameter consumption postcondition: a well formed macro
// consumes exactly the parameters its caller supplied.
func (st *macroState) finish() error {
	if st.nextParameter != len(st.parameters) {
		return utils.MakeError(ErrMacro,
			"macro halted having consumed %v of %v parameters",
			st.nextParameter, len(st.parameters))
	}
	return nil
}
