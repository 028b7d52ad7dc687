package mme

import (
	"github.com/gpuemu/mme/pkg/utils"
)

// Stepper executes a macro program one instruction at a time against a fresh
// invocation state. It is the reference implementation of the execution
// semantics: the compiled backend must reproduce its observable behavior
// exactly. The debug CLI drives it directly.
type Stepper struct {
	code []uint32
	st   *macroState

	pc uint32
	// pendingPC holds the target of a taken, non-annulled branch; it
	// replaces the program counter after the delay slot instruction has
	// been fetched.
	pendingPC   *uint32
	nextIsDelay bool
	exiting     bool
	done        bool
	steps       int
}

// NewStepper creates a stepper for one invocation of the given code with the
// given parameter list. The parameter list must be non-empty; its first
// entry is preloaded into register 1.
func NewStepper(code []uint32, regs Registers, parameters []uint32) (*Stepper, error) {
	if len(code) == 0 {
		return nil, utils.MakeError(ErrMacro, "macro has no code")
	}

	st, err := newMacroState(regs, parameters)
	if err != nil {
		return nil, err
	}

	return &Stepper{code: code, st: st}, nil
}

// Done reports whether the invocation has halted.
func (s *Stepper) Done() bool {
	return s.done
}

// PC returns the current program counter, in bytes.
func (s *Stepper) PC() uint32 {
	return s.pc
}

// Steps returns the number of instructions executed so far.
func (s *Stepper) Steps() int {
	return s.steps
}

// Register returns the current value of a general purpose register.
func (s *Stepper) Register(index uint32) uint32 {
	return s.st.getRegister(index)
}

// MethodAddress returns the current method address register.
func (s *Stepper) MethodAddress() MethodAddress {
	return s.st.methodAddress
}

// ParametersConsumed returns how many caller parameters have been consumed,
// including the one preloaded into register 1.
func (s *Stepper) ParametersConsumed() int {
	return s.st.nextParameter
}

// Current decodes the instruction the next Step call will execute.
func (s *Stepper) Current() (Opcode, error) {
	word, err := s.fetch(s.pc)
	if err != nil {
		return Opcode{}, err
	}
	return DecodeOpcode(word), nil
}

func (s *Stepper) fetch(pc uint32) (uint32, error) {
	if pc%InstructionSize != 0 {
		return 0, utils.MakeError(ErrMacro, "misaligned program counter 0x%X", pc)
	}
	index := pc / InstructionSize
	if index >= uint32(len(s.code)) {
		return 0, utils.MakeError(ErrMacro,
			"program counter 0x%X outside macro code (%v words)", pc, len(s.code))
	}
	return s.code[index], nil
}

// Step executes one instruction. It returns true once the invocation has
// halted, after verifying the parameter consumption postcondition. Any error
// aborts the invocation.
func (s *Stepper) Step() (bool, error) {
	if s.done {
		return true, utils.MakeError(ErrMacro, "macro invocation already halted")
	}

	isDelaySlot := s.nextIsDelay
	s.nextIsDelay = false

	base := s.pc
	word, err := s.fetch(base)
	if err != nil {
		return false, err
	}
	op := DecodeOpcode(word)
	s.pc += InstructionSize
	s.steps++

	// A taken branch lands here one instruction later: the delay slot has
	// been fetched, so the branch target takes over.
	if s.pendingPC != nil {
		s.pc = *s.pendingPC
		s.pendingPC = nil
	}

	var result uint32

	switch op.Operation {
	case OpALU:
		result, err = evalALU(op.ALUOperation, s.st.getRegister(op.SrcA), s.st.getRegister(op.SrcB))
		if err != nil {
			return false, err
		}

	case OpAddImmediate:
		result = s.st.getRegister(op.SrcA) + uint32(op.Immediate)

	case OpExtractInsert:
		dst := s.st.getRegister(op.SrcA)
		src := (s.st.getRegister(op.SrcB) >> op.BfSrcBit) & op.BitfieldMask()
		dst &^= op.BitfieldMask() << op.BfDstBit
		result = dst | src<<op.BfDstBit

	case OpExtractShiftLeftImmediate:
		shift := s.st.getRegister(op.SrcA)
		src := s.st.getRegister(op.SrcB)
		result = ((src >> shift) & op.BitfieldMask()) << op.BfDstBit

	case OpExtractShiftLeftRegister:
		shift := s.st.getRegister(op.SrcA)
		src := s.st.getRegister(op.SrcB)
		result = ((src >> op.BfSrcBit) & op.BitfieldMask()) << shift

	case OpRead:
		result = s.st.read(s.st.getRegister(op.SrcA) + uint32(op.Immediate))

	case OpBranch:
		if isDelaySlot {
			return false, utils.MakeError(ErrMacro,
				"branch at 0x%X inside a delay slot", base)
		}
		if evalBranchCondition(op.BranchCondition, s.st.getRegister(op.SrcB)) {
			target := base + uint32(op.BranchTarget())
			if op.BranchAnnul {
				// Annulled branch: jump immediately, no delay slot.
				s.pc = target
				return false, nil
			}
			s.pendingPC = &target
			s.nextIsDelay = true
			return false, nil
		}
		// Fall through to the exit check on a branch not taken.
		return s.checkExit(op), nil

	default:
		return false, utils.MakeError(ErrUnimplemented,
			"operation %v (word 0x%08X) at 0x%X", op.Operation, word, base)
	}

	if err := s.processResult(op, result); err != nil {
		return false, err
	}

	return s.checkExit(op), nil
}

// checkExit handles the exit flag: an exit instruction has a delay slot, so
// exactly one more instruction executes before the invocation halts. An exit
// flagged during that final step extends execution by one more step, which
// realizes the exit-inside-a-branch-delay-slot edge case.
func (s *Stepper) checkExit(op Opcode) bool {
	if op.IsExit {
		s.exiting = true
		s.nextIsDelay = true
		return false
	}
	if s.exiting {
		s.done = true
	}
	return s.done
}

// processResult applies the result operation of an executed instruction.
func (s *Stepper) processResult(op Opcode, result uint32) error {
	fetchInto := func(reg uint32) error {
		value, err := s.st.fetchParameter()
		if err != nil {
			return err
		}
		s.st.setRegister(reg, value)
		return nil
	}

	switch op.ResultOperation {
	case ResultIgnoreAndFetch:
		return fetchInto(op.Dst)

	case ResultMove:
		s.st.setRegister(op.Dst, result)

	case ResultMoveAndSetMethod:
		s.st.setRegister(op.Dst, result)
		s.st.setMethodAddress(result)

	case ResultFetchAndSend:
		if err := fetchInto(op.Dst); err != nil {
			return err
		}
		s.st.send(result)

	case ResultMoveAndSend:
		s.st.setRegister(op.Dst, result)
		s.st.send(result)

	case ResultFetchAndSetMethod:
		if err := fetchInto(op.Dst); err != nil {
			return err
		}
		s.st.setMethodAddress(result)

	case ResultMoveAndSetMethodFetchAndSend:
		s.st.setRegister(op.Dst, result)
		s.st.setMethodAddress(result)
		value, err := s.st.fetchParameter()
		if err != nil {
			return err
		}
		s.st.send(value)

	case ResultMoveAndSetMethodSend:
		s.st.setRegister(op.Dst, result)
		s.st.setMethodAddress(result)
		s.st.send((result >> 12) & 0b111111)

	default:
		return utils.MakeError(ErrUnimplemented, "result operation %v", op.ResultOperation)
	}

	return nil
}

// Finish verifies the end-of-invocation postconditions. It must be called
// once Step has reported completion.
func (s *Stepper) Finish() error {
	return s.st.finish()
}

// evalALU computes a binary ALU operation. The carry and borrow variants are
// acknowledged but unimplemented: their hardware semantics are not known
// well enough to emulate, so selecting them is an error rather than a guess.
func evalALU(operation ALUOperation, srcA, srcB uint32) (uint32, error) {
	switch operation {
	case AluAdd:
		return srcA + srcB, nil
	case AluSubtract:
		return srcA - srcB, nil
	case AluXor:
		return srcA ^ srcB, nil
	case AluOr:
		return srcA | srcB, nil
	case AluAnd:
		return srcA & srcB, nil
	case AluAndNot:
		return srcA &^ srcB, nil
	case AluNand:
		return ^(srcA & srcB), nil
	default:
		return 0, utils.MakeError(ErrUnimplemented, "ALU operation %v", operation)
	}
}

func evalBranchCondition(condition BranchCondition, value uint32) bool {
	if condition == BranchIfZero {
		return value == 0
	}
	return value != 0
}

// interpretedMacro is the interpreter backend's compiled artifact: it simply
// closes over the uploaded code and walks it on every invocation.
type interpretedMacro struct {
	code []uint32
	regs Registers
}

func newInterpretedMacro(code []uint32, regs Registers) (*interpretedMacro, error) {
	if len(code) == 0 {
		return nil, utils.MakeError(ErrMacro, "macro has no code")
	}
	return &interpretedMacro{code: code, regs: regs}, nil
}

// Execute runs the macro to completion with a fresh invocation state.
func (m *interpretedMacro) Execute(parameters []uint32) error {
	stepper, err := NewStepper(m.code, m.regs, parameters)
	if err != nil {
		return err
	}

	for {
		done, err := stepper.Step()
		if err != nil {
			return err
		}
		if done {
			return stepper.Finish()
		}
	}
}
