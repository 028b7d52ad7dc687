package mme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeOpcode(t *testing.T) {
	tests := []struct {
		name     string
		word     uint32
		expected Opcode
	}{
		{
			name: "alu add with move",
			word: EncodeALU(AluAdd, ResultMove, 3, 1, 2),
			expected: Opcode{
				Operation:       OpALU,
				ResultOperation: ResultMove,
				ALUOperation:    AluAdd,
				Dst:             3,
				SrcA:            1,
				SrcB:            2,
			},
		},
		{
			name: "alu nand with move and send",
			word: EncodeALU(AluNand, ResultMoveAndSend, 7, 6, 5),
			expected: Opcode{
				Operation:       OpALU,
				ResultOperation: ResultMoveAndSend,
				ALUOperation:    AluNand,
				Dst:             7,
				SrcA:            6,
				SrcB:            5,
			},
		},
		{
			name: "add immediate",
			word: EncodeAddImmediate(ResultMoveAndSetMethod, 2, 1, 0x1234),
			expected: Opcode{
				Operation:       OpAddImmediate,
				ResultOperation: ResultMoveAndSetMethod,
				Dst:             2,
				SrcA:            1,
				Immediate:       0x1234,
			},
		},
		{
			name: "extract insert",
			word: EncodeExtractInsert(ResultMove, 4, 1, 2, 3, 5, 7),
			expected: Opcode{
				Operation:       OpExtractInsert,
				ResultOperation: ResultMove,
				Dst:             4,
				SrcA:            1,
				SrcB:            2,
				BfSrcBit:        3,
				BfSize:          5,
				BfDstBit:        7,
			},
		},
		{
			name: "read",
			word: EncodeRead(ResultMove, 2, 1, 0x40),
			expected: Opcode{
				Operation:       OpRead,
				ResultOperation: ResultMove,
				Dst:             2,
				SrcA:            1,
				Immediate:       0x40,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			op := DecodeOpcode(test.word)

			assert.Equal(t, test.expected.Operation, op.Operation)
			assert.Equal(t, test.expected.ResultOperation, op.ResultOperation)
			assert.Equal(t, test.expected.Dst, op.Dst)
			assert.Equal(t, test.expected.SrcA, op.SrcA)
			assert.Equal(t, test.word, op.Raw)

			switch test.expected.Operation {
			case OpALU:
				assert.Equal(t, test.expected.ALUOperation, op.ALUOperation)
				assert.Equal(t, test.expected.SrcB, op.SrcB)
			case OpAddImmediate, OpRead:
				assert.Equal(t, test.expected.Immediate, op.Immediate)
			case OpExtractInsert:
				assert.Equal(t, test.expected.SrcB, op.SrcB)
				assert.Equal(t, test.expected.BfSrcBit, op.BfSrcBit)
				assert.Equal(t, test.expected.BfSize, op.BfSize)
				assert.Equal(t, test.expected.BfDstBit, op.BfDstBit)
			}
		})
	}
}

func TestDecodeImmediateSignExtension(t *testing.T) {
	tests := []struct {
		name     string
		word     uint32
		expected int32
	}{
		{"minus one", EncodeAddImmediate(ResultMove, 2, 1, -1), -1},
		{"minus two", EncodeAddImmediate(ResultMove, 2, 1, -2), -2},
		{"most negative", EncodeAddImmediate(ResultMove, 2, 1, -(1 << 17)), -(1 << 17)},
		{"most positive", EncodeAddImmediate(ResultMove, 2, 1, 1<<17-1), 1<<17 - 1},
		{"zero", EncodeAddImmediate(ResultMove, 2, 1, 0), 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, DecodeOpcode(test.word).Immediate)
		})
	}
}

// The branch condition register index shares its bits with the low end of
// the branch displacement, so the two decode from the same storage.
func TestDecodeBranchSharedFields(t *testing.T) {
	op := DecodeOpcode(EncodeBranch(BranchIfNotZero, false, 6, -2))

	assert.Equal(t, OpBranch, op.Operation)
	assert.Equal(t, BranchIfNotZero, op.BranchCondition)
	assert.False(t, op.BranchAnnul)
	assert.Equal(t, uint32(6), op.SrcB)
	assert.Equal(t, int32(-2), op.Immediate)
	assert.Equal(t, int32(-2*InstructionSize), op.BranchTarget())

	annulled := DecodeOpcode(EncodeBranch(BranchIfZero, true, 2, 2))
	assert.Equal(t, BranchIfZero, annulled.BranchCondition)
	assert.True(t, annulled.BranchAnnul)
	assert.Equal(t, uint32(2), annulled.SrcB)
	assert.Equal(t, int32(2), annulled.Immediate)
}

func TestDecodeExitFlag(t *testing.T) {
	assert.False(t, DecodeOpcode(Nop()).IsExit)
	assert.True(t, DecodeOpcode(WithExit(Nop())).IsExit)
}

func TestMethodAddress(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		m := MethodAddress(0x2345)

		assert.Equal(t, uint32(0x345), m.Address())
		assert.Equal(t, uint32(0x2), m.Increment())
	})

	t.Run("advance adds the increment to the address", func(t *testing.T) {
		m := MethodAddress(4<<12 | 0x100)
		m = m.Advance()

		assert.Equal(t, uint32(0x104), m.Address())
		assert.Equal(t, uint32(4), m.Increment())

		m = m.Advance()
		assert.Equal(t, uint32(0x108), m.Address())
	})

	t.Run("advance with zero increment is a fixed point", func(t *testing.T) {
		m := MethodAddress(0x6C0)

		assert.Equal(t, m, m.Advance())
	})

	t.Run("advance wraps within the address field", func(t *testing.T) {
		m := MethodAddress(1<<12 | 0xFFF)
		m = m.Advance()

		assert.Equal(t, uint32(0), m.Address())
		assert.Equal(t, uint32(1), m.Increment(), "the increment field must survive the wrap")
	})
}
