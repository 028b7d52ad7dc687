package mme

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name     string
		code     []uint32
		expected error
	}{
		{
			name:     "empty code",
			code:     nil,
			expected: ErrMacro,
		},
		{
			name:     "unused operation",
			code:     []uint32{uint32(OpUnused), Nop()},
			expected: ErrUnimplemented,
		},
		{
			name:     "add with carry",
			code:     []uint32{EncodeALU(AluAddWithCarry, ResultMove, 3, 1, 2), Nop()},
			expected: ErrUnimplemented,
		},
		{
			name:     "subtract with borrow",
			code:     []uint32{EncodeALU(AluSubtractWithBorrow, ResultMove, 3, 1, 2), Nop()},
			expected: ErrUnimplemented,
		},
		{
			name:     "reserved alu encoding",
			code:     []uint32{EncodeALU(ALUOperation(7), ResultMove, 3, 1, 2), Nop()},
			expected: ErrUnimplemented,
		},
		{
			name:     "branch past the end",
			code:     []uint32{EncodeBranch(BranchIfZero, false, 7, 7), Nop()},
			expected: ErrMacro,
		},
		{
			name:     "branch before the start",
			code:     []uint32{Nop(), EncodeBranch(BranchIfZero, false, 6, -2), Nop()},
			expected: ErrMacro,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			macro, err := compileMacro(test.code, NewRecordingRegisters())

			assert.ErrorIs(t, err, test.expected)
			assert.Nil(t, macro)
		})
	}
}

// equivalenceCase is one program of the backend equivalence corpus. Both
// backends must produce the same register writes, the same final register
// state and errors of the same kind.
type equivalenceCase struct {
	name   string
	code   []uint32
	params []uint32
	seed   map[uint32]uint32
}

func equivalenceCorpus() []equivalenceCase {
	return []equivalenceCase{
		{
			name: "straight line arithmetic",
			code: sendProgram(
				EncodeALU(AluAdd, ResultIgnoreAndFetch, 2, 0, 0),
				EncodeALU(AluAdd, ResultMove, 3, 1, 2),
			),
			params: []uint32{7, 35},
		},
		{
			name: "bitfield pipeline",
			code: sendProgram(
				EncodeALU(AluAdd, ResultIgnoreAndFetch, 2, 0, 0),
				EncodeExtractInsert(ResultMove, 3, 1, 2, 4, 4, 8),
				EncodeExtractShiftLeftImmediate(ResultMove, 3, 0, 3, 8, 4),
			),
			params: []uint32{0xFFFFFFFF, 0x50},
		},
		{
			name: "auto incremented sends",
			code: []uint32{
				EncodeALU(AluAdd, ResultMoveAndSetMethod, 0, 1, 0),
				EncodeAddImmediate(ResultMoveAndSend, 2, 0, 0x11),
				EncodeAddImmediate(ResultMoveAndSend, 3, 0, 0x22),
				WithExit(EncodeAddImmediate(ResultMoveAndSend, 4, 0, 0x33)),
				Nop(),
			},
			params: []uint32{2<<12 | 0x700},
		},
		{
			name: "engine register read",
			code: sendProgram(EncodeRead(ResultMove, 3, 1, 4)),
			params: []uint32{0x80},
			seed:   map[uint32]uint32{0x84: 0xF00D},
		},
		{
			name: "countdown loop",
			code: []uint32{
				EncodeAddImmediate(ResultMove, 6, 1, 0),
				EncodeAddImmediate(ResultMove, 3, 3, 1),
				EncodeAddImmediate(ResultMove, 6, 6, -1),
				EncodeBranch(BranchIfNotZero, false, 6, -2),
				Nop(),
				EncodeAddImmediate(ResultMoveAndSetMethod, 0, 0, 0x123),
				WithExit(EncodeALU(AluAdd, ResultMoveAndSend, 4, 3, 0)),
				Nop(),
			},
			params: []uint32{17},
		},
		{
			name: "annulled branch",
			code: []uint32{
				EncodeBranch(BranchIfZero, true, 2, 2),
				EncodeAddImmediate(ResultMove, 3, 0, 0xBAD),
				EncodeAddImmediate(ResultMoveAndSetMethod, 0, 0, 0x10),
				WithExit(EncodeAddImmediate(ResultMoveAndSend, 4, 0, 7)),
				Nop(),
			},
			params: []uint32{0},
		},
		{
			name: "exit in branch delay slot",
			code: []uint32{
				EncodeBranch(BranchIfZero, false, 3, 3),
				WithExit(EncodeAddImmediate(ResultMove, 4, 0, 1)),
				EncodeAddImmediate(ResultMove, 5, 0, 0xBAD),
				EncodeAddImmediate(ResultMove, 6, 0, 2),
			},
			params: []uint32{0},
		},
		{
			name: "exit on taken branch ignored",
			code: []uint32{
				WithExit(EncodeBranch(BranchIfZero, false, 3, 3)),
				Nop(),
				Nop(),
				WithExit(EncodeAddImmediate(ResultMove, 4, 0, 7)),
				Nop(),
			},
			params: []uint32{0},
		},
		{
			name: "method send from result bits",
			code: []uint32{
				WithExit(EncodeALU(AluAdd, ResultMoveAndSetMethodSend, 2, 1, 0)),
				Nop(),
			},
			params: []uint32{0x2345},
		},
		{
			name: "parameter overrun",
			code: []uint32{
				WithExit(EncodeALU(AluAdd, ResultIgnoreAndFetch, 2, 0, 0)),
				Nop(),
			},
			params: []uint32{1},
		},
		{
			name:   "unconsumed parameters",
			code:   []uint32{WithExit(Nop()), Nop()},
			params: []uint32{1, 2},
		},
		{
			name: "branch in delay slot",
			code: []uint32{
				EncodeBranch(BranchIfZero, false, 2, 2),
				EncodeBranch(BranchIfZero, false, 2, 2),
				Nop(),
				Nop(),
			},
			params: []uint32{0},
		},
		{
			name:   "no exit runs off the end",
			code:   []uint32{Nop(), Nop()},
			params: []uint32{1},
		},
	}
}

// TestBackendEquivalence runs every corpus program through the interpreter
// and the compiled backend and requires identical observable behavior.
func TestBackendEquivalence(t *testing.T) {
	for _, test := range equivalenceCorpus() {
		t.Run(test.name, func(t *testing.T) {
			refRegs := NewRecordingRegisters()
			cmpRegs := NewRecordingRegisters()
			for address, value := range test.seed {
				refRegs.Seed(address, value)
				cmpRegs.Seed(address, value)
			}

			var refState [NumRegisters]uint32
			var refMethod MethodAddress
			stepper, refErr := NewStepper(test.code, refRegs, test.params)
			if refErr == nil {
				for i := 0; refErr == nil; i++ {
					require.Less(t, i, 10000, "interpreter did not halt")
					var done bool
					done, refErr = stepper.Step()
					if done {
						break
					}
				}
				if refErr == nil {
					refErr = stepper.Finish()
				}
				for i := uint32(0); i < NumRegisters; i++ {
					refState[i] = stepper.Register(i)
				}
				refMethod = stepper.MethodAddress()
			}

			macro, err := compileMacro(test.code, cmpRegs)
			require.NoError(t, err, "corpus programs must compile")
			cmpState, cmpErr := macro.run(test.params)

			if refErr != nil {
				require.Error(t, cmpErr)
				sentinel := ErrMacro
				if errors.Is(refErr, ErrUnimplemented) {
					sentinel = ErrUnimplemented
				}
				assert.ErrorIs(t, cmpErr, sentinel, "both backends must fail the same way")
			} else {
				require.NoError(t, cmpErr)
				assert.Equal(t, refState, cmpState.registers)
				assert.Equal(t, refMethod, cmpState.methodAddress)
			}

			assert.Equal(t, refRegs.Writes, cmpRegs.Writes)
			assert.Equal(t, refRegs.Values, cmpRegs.Values)
		})
	}
}

func TestCompiledMacroExecute(t *testing.T) {
	regs := NewRecordingRegisters()
	macro, err := compileMacro(sendProgram(EncodeAddImmediate(ResultMove, 3, 1, 1)), regs)
	require.NoError(t, err)

	require.NoError(t, macro.Execute([]uint32{41}))
	require.Len(t, regs.Writes, 1)
	assert.Equal(t, RegisterWrite{Address: 0x100, Value: 42}, regs.Writes[0])

	t.Run("invocations do not share state", func(t *testing.T) {
		regs.Reset()
		require.NoError(t, macro.Execute([]uint32{9}))
		require.Len(t, regs.Writes, 1)
		assert.Equal(t, uint32(10), regs.Writes[0].Value)
	})

	t.Run("empty parameter list fails", func(t *testing.T) {
		assert.ErrorIs(t, macro.Execute(nil), ErrMacro)
	})
}
