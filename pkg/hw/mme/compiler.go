package mme

import (
	"github.com/gpuemu/mme/pkg/utils"
)

// The compiled backend translates a macro once, at upload-compile time, into
// a sequence of pre-bound instruction thunks. All decoding, operation
// selection and branch target resolution happens during compilation; an
// invocation only runs the thunks against a fresh invocation state, so
// repeated invocations never pay for decoding again. Code words selecting
// operations without a defined emulation are rejected during compilation and
// never reach the cache.

// computeFunc produces the result value of one compiled instruction.
type computeFunc func(st *macroState) uint32

// applyFunc performs the register writeback and side effects of a result
// operation. Parameter fetches can fail at run time.
type applyFunc func(st *macroState, result uint32) error

// takenFunc evaluates a pre-bound branch condition.
type takenFunc func(st *macroState) bool

// compiledStep is one translated code word. Exactly one of compute/taken is
// set: compute instructions carry an apply thunk, branches carry a resolved
// target instruction index.
type compiledStep struct {
	compute computeFunc
	apply   applyFunc
	isExit  bool

	taken  takenFunc
	annul  bool
	target int
}

// compilerContext threads the state a compilation needs through the
// per-operation emission routines: the source words, the index of the word
// being emitted, and the translated steps. It carries no global state, so
// independent compilations never interfere.
type compilerContext struct {
	code  []uint32
	index int
	steps []compiledStep
}

// emitFunc is an emission routine for one operation kind.
type emitFunc func(cx *compilerContext, op Opcode) error

// emitTable maps each operation to its emission routine. Built once, read
// only afterwards. OpUnused has no valid emission.
var emitTable = [8]emitFunc{
	OpALU:                       (*compilerContext).emitALU,
	OpAddImmediate:              (*compilerContext).emitAddImmediate,
	OpExtractInsert:             (*compilerContext).emitExtractInsert,
	OpExtractShiftLeftImmediate: (*compilerContext).emitExtractShiftLeftImmediate,
	OpExtractShiftLeftRegister:  (*compilerContext).emitExtractShiftLeftRegister,
	OpRead:                      (*compilerContext).emitRead,
	OpUnused:                    nil,
	OpBranch:                    (*compilerContext).emitBranch,
}

// aluFuncs holds the implemented binary ALU operations. The carry and borrow
// variants are deliberately absent; selecting them fails compilation.
var aluFuncs = map[ALUOperation]func(a, b uint32) uint32{
	AluAdd:      func(a, b uint32) uint32 { return a + b },
	AluSubtract: func(a, b uint32) uint32 { return a - b },
	AluXor:      func(a, b uint32) uint32 { return a ^ b },
	AluOr:       func(a, b uint32) uint32 { return a | b },
	AluAnd:      func(a, b uint32) uint32 { return a & b },
	AluAndNot:   func(a, b uint32) uint32 { return a &^ b },
	AluNand:     func(a, b uint32) uint32 { return ^(a & b) },
}

// compiledMacro is the compiled backend's cache artifact.
type compiledMacro struct {
	steps []compiledStep
	regs  Registers
}

// compileMacro translates a full macro program. A failed compilation leaves
// no artifact behind.
func compileMacro(code []uint32, regs Registers) (*compiledMacro, error) {
	if len(code) == 0 {
		return nil, utils.MakeError(ErrMacro, "macro has no code")
	}

	cx := &compilerContext{
		code:  code,
		steps: make([]compiledStep, len(code)),
	}

	for i, word := range code {
		cx.index = i
		op := DecodeOpcode(word)

		emit := emitTable[op.Operation]
		if emit == nil {
			return nil, utils.MakeError(ErrUnimplemented,
				"operation %v (word 0x%08X) at 0x%X", op.Operation, word, i*InstructionSize)
		}
		if err := emit(cx, op); err != nil {
			return nil, err
		}
	}

	return &compiledMacro{steps: cx.steps, regs: regs}, nil
}

func (cx *compilerContext) step() *compiledStep {
	return &cx.steps[cx.index]
}

func (cx *compilerContext) emitALU(op Opcode) error {
	alu, ok := aluFuncs[op.ALUOperation]
	if !ok {
		return utils.MakeError(ErrUnimplemented,
			"ALU operation %v (word 0x%08X) at 0x%X",
			op.ALUOperation, op.Raw, cx.index*InstructionSize)
	}

	srcA, srcB := op.SrcA, op.SrcB
	cx.step().compute = func(st *macroState) uint32 {
		return alu(st.getRegister(srcA), st.getRegister(srcB))
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitAddImmediate(op Opcode) error {
	srcA, immediate := op.SrcA, uint32(op.Immediate)
	cx.step().compute = func(st *macroState) uint32 {
		return st.getRegister(srcA) + immediate
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitExtractInsert(op Opcode) error {
	srcA, srcB := op.SrcA, op.SrcB
	srcBit, dstBit := op.BfSrcBit, op.BfDstBit
	mask := op.BitfieldMask()
	cx.step().compute = func(st *macroState) uint32 {
		src := (st.getRegister(srcB) >> srcBit) & mask
		dst := st.getRegister(srcA) &^ (mask << dstBit)
		return dst | src<<dstBit
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitExtractShiftLeftImmediate(op Opcode) error {
	srcA, srcB := op.SrcA, op.SrcB
	dstBit := op.BfDstBit
	mask := op.BitfieldMask()
	cx.step().compute = func(st *macroState) uint32 {
		return ((st.getRegister(srcB) >> st.getRegister(srcA)) & mask) << dstBit
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitExtractShiftLeftRegister(op Opcode) error {
	srcA, srcB := op.SrcA, op.SrcB
	srcBit := op.BfSrcBit
	mask := op.BitfieldMask()
	cx.step().compute = func(st *macroState) uint32 {
		return ((st.getRegister(srcB) >> srcBit) & mask) << st.getRegister(srcA)
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitRead(op Opcode) error {
	srcA, immediate := op.SrcA, uint32(op.Immediate)
	cx.step().compute = func(st *macroState) uint32 {
		return st.read(st.getRegister(srcA) + immediate)
	}
	return cx.emitResult(op)
}

func (cx *compilerContext) emitBranch(op Opcode) error {
	// Branch displacements are known at compile time, so the target resolves
	// to an instruction index here instead of program counter arithmetic at
	// run time.
	target := cx.index + int(op.Immediate)
	if target < 0 || target >= len(cx.code) {
		return utils.MakeError(ErrMacro,
			"branch at 0x%X targets 0x%X, outside macro code (%v words)",
			cx.index*InstructionSize, cx.index*InstructionSize+int(op.BranchTarget()), len(cx.code))
	}

	srcB := op.SrcB
	step := cx.step()
	if op.BranchCondition == BranchIfZero {
		step.taken = func(st *macroState) bool { return st.getRegister(srcB) == 0 }
	} else {
		step.taken = func(st *macroState) bool { return st.getRegister(srcB) != 0 }
	}
	step.annul = op.BranchAnnul
	step.target = target
	step.isExit = op.IsExit
	return nil
}

// emitResult binds the result operation of a compute instruction. The
// selection happens once, at compile time.
func (cx *compilerContext) emitResult(op Opcode) error {
	dst := op.Dst
	step := cx.step()
	step.isExit = op.IsExit

	fetchInto := func(st *macroState) error {
		value, err := st.fetchParameter()
		if err != nil {
			return err
		}
		st.setRegister(dst, value)
		return nil
	}

	switch op.ResultOperation {
	case ResultIgnoreAndFetch:
		step.apply = func(st *macroState, _ uint32) error {
			return fetchInto(st)
		}

	case ResultMove:
		step.apply = func(st *macroState, result uint32) error {
			st.setRegister(dst, result)
			return nil
		}

	case ResultMoveAndSetMethod:
		step.apply = func(st *macroState, result uint32) error {
			st.setRegister(dst, result)
			st.setMethodAddress(result)
			return nil
		}

	case ResultFetchAndSend:
		step.apply = func(st *macroState, result uint32) error {
			if err := fetchInto(st); err != nil {
				return err
			}
			st.send(result)
			return nil
		}

	case ResultMoveAndSend:
		step.apply = func(st *macroState, result uint32) error {
			st.setRegister(dst, result)
			st.send(result)
			return nil
		}

	case ResultFetchAndSetMethod:
		step.apply = func(st *macroState, result uint32) error {
			if err := fetchInto(st); err != nil {
				return err
			}
			st.setMethodAddress(result)
			return nil
		}

	case ResultMoveAndSetMethodFetchAndSend:
		step.apply = func(st *macroState, result uint32) error {
			st.setRegister(dst, result)
			st.setMethodAddress(result)
			value, err := st.fetchParameter()
			if err != nil {
				return err
			}
			st.send(value)
			return nil
		}

	case ResultMoveAndSetMethodSend:
		step.apply = func(st *macroState, result uint32) error {
			st.setRegister(dst, result)
			st.setMethodAddress(result)
			st.send((result >> 12) & 0b111111)
			return nil
		}

	default:
		return utils.MakeError(ErrUnimplemented,
			"result operation %v (word 0x%08X) at 0x%X",
			op.ResultOperation, op.Raw, cx.index*InstructionSize)
	}

	return nil
}

// Execute runs the compiled steps to completion against a fresh invocation
// state. Control flow mirrors the reference stepper: taken branches execute
// one delay slot instruction unless annulled, and an exit executes one final
// delay slot instruction before halting.
func (m *compiledMacro) Execute(parameters []uint32) error {
	_, err := m.run(parameters)
	return err
}

func (m *compiledMacro) run(parameters []uint32) (*macroState, error) {
	st, err := newMacroState(m.regs, parameters)
	if err != nil {
		return nil, err
	}

	index := 0
	pending := -1
	isDelaySlot := false
	exiting := false

	for {
		if index >= len(m.steps) {
			return nil, utils.MakeError(ErrMacro,
				"program counter 0x%X outside macro code (%v words)",
				index*InstructionSize, len(m.steps))
		}
		step := &m.steps[index]

		inDelaySlot := isDelaySlot
		isDelaySlot = false

		next := index + 1
		if pending >= 0 {
			next = pending
			pending = -1
		}

		if step.taken != nil {
			if inDelaySlot {
				return nil, utils.MakeError(ErrMacro,
					"branch at 0x%X inside a delay slot", index*InstructionSize)
			}
			if step.taken(st) {
				if step.annul {
					index = step.target
					continue
				}
				pending = step.target
				isDelaySlot = true
				index = next
				continue
			}
		} else {
			if err := step.apply(st, step.compute(st)); err != nil {
				return nil, err
			}
		}

		if step.isExit {
			exiting = true
			isDelaySlot = true
			index = next
			continue
		}
		if exiting {
			break
		}
		index = next
	}

	return st, st.finish()
}
