package mme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassembleWord(t *testing.T) {
	tests := []struct {
		name     string
		address  uint32
		word     uint32
		mnemonic string
		operands string
	}{
		{
			name:     "alu add",
			word:     EncodeALU(AluAdd, ResultMove, 3, 1, 2),
			mnemonic: "alu.add",
			operands: "r1, r2",
		},
		{
			name:     "add immediate",
			word:     EncodeAddImmediate(ResultMoveAndSend, 2, 1, -3),
			mnemonic: "addi",
			operands: "r1, #-3",
		},
		{
			name:     "read",
			word:     EncodeRead(ResultMove, 2, 1, 0x10),
			mnemonic: "read",
			operands: "[r1 + #16]",
		},
		{
			name:     "backward branch",
			address:  0x0C,
			word:     EncodeBranch(BranchIfNotZero, false, 6, -2),
			mnemonic: "bnz",
			operands: "r6, 0x0004",
		},
		{
			name:     "annulled branch",
			word:     EncodeBranch(BranchIfZero, true, 2, 2),
			mnemonic: "bz.a",
			operands: "r2, 0x0008",
		},
		{
			name:     "unused encoding",
			word:     uint32(OpUnused),
			mnemonic: "unused",
			operands: "0x00000006",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := DisassembleWord(test.address, test.word)

			assert.Equal(t, test.mnemonic, d.Mnemonic)
			assert.Equal(t, test.operands, d.Operands)
			assert.Equal(t, test.address, d.Address)
			assert.Equal(t, test.word, d.Word)
		})
	}
}

func TestDisassemblyString(t *testing.T) {
	d := DisassembleWord(4, WithExit(EncodeALU(AluXor, ResultMove, 3, 1, 2)))

	s := d.String()
	assert.Contains(t, s, "0004:")
	assert.Contains(t, s, "alu.xor r1, r2")
	assert.Contains(t, s, "-> mov r3")
	assert.Contains(t, s, "!exit")
}

func TestDisassembleProgram(t *testing.T) {
	listing := DisassembleProgram([]uint32{Nop(), WithExit(Nop()), Nop()})

	require.Len(t, listing, 3)
	assert.Equal(t, uint32(0), listing[0].Address)
	assert.Equal(t, uint32(4), listing[1].Address)
	assert.Equal(t, uint32(8), listing[2].Address)
	assert.False(t, listing[0].Exit)
	assert.True(t, listing[1].Exit)
}
