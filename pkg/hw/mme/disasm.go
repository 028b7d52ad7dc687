package mme

import (
	"fmt"
	"strings"
)

// Disassembly is the rendered form of one macro code word, split into parts
// so frontends can style them independently.
type Disassembly struct {
	Address  uint32
	Word     uint32
	Mnemonic string
	Operands string
	// Result describes the writeback/side effect of compute instructions.
	Result string
	Exit   bool
}

func (d Disassembly) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04X: %08X  %s", d.Address, d.Word, d.Mnemonic)
	if d.Operands != "" {
		sb.WriteString(" " + d.Operands)
	}
	if d.Result != "" {
		sb.WriteString(" -> " + d.Result)
	}
	if d.Exit {
		sb.WriteString(" !exit")
	}
	return sb.String()
}

// DisassembleWord renders the code word at the given byte address.
func DisassembleWord(address uint32, word uint32) Disassembly {
	op := DecodeOpcode(word)

	d := Disassembly{
		Address: address,
		Word:    word,
		Exit:    op.IsExit,
	}

	switch op.Operation {
	case OpALU:
		d.Mnemonic = fmt.Sprintf("alu.%v", op.ALUOperation)
		d.Operands = fmt.Sprintf("r%d, r%d", op.SrcA, op.SrcB)
		d.Result = resultString(op)

	case OpAddImmediate:
		d.Mnemonic = "addi"
		d.Operands = fmt.Sprintf("r%d, #%d", op.SrcA, op.Immediate)
		d.Result = resultString(op)

	case OpExtractInsert:
		d.Mnemonic = "extrinsrt"
		d.Operands = fmt.Sprintf("r%d, r%d, src=%d size=%d dst=%d",
			op.SrcA, op.SrcB, op.BfSrcBit, op.BfSize, op.BfDstBit)
		d.Result = resultString(op)

	case OpExtractShiftLeftImmediate:
		d.Mnemonic = "extrshli"
		d.Operands = fmt.Sprintf("r%d, r%d, size=%d dst=%d",
			op.SrcA, op.SrcB, op.BfSize, op.BfDstBit)
		d.Result = resultString(op)

	case OpExtractShiftLeftRegister:
		d.Mnemonic = "extrshlr"
		d.Operands = fmt.Sprintf("r%d, r%d, src=%d size=%d",
			op.SrcA, op.SrcB, op.BfSrcBit, op.BfSize)
		d.Result = resultString(op)

	case OpRead:
		d.Mnemonic = "read"
		d.Operands = fmt.Sprintf("[r%d + #%d]", op.SrcA, op.Immediate)
		d.Result = resultString(op)

	case OpBranch:
		d.Mnemonic = op.BranchCondition.String()
		if op.BranchAnnul {
			d.Mnemonic += ".a"
		}
		target := int64(address) + int64(op.BranchTarget())
		d.Operands = fmt.Sprintf("r%d, 0x%04X", op.SrcB, target)

	default:
		d.Mnemonic = "unused"
		d.Operands = fmt.Sprintf("0x%08X", word)
	}

	return d
}

func resultString(op Opcode) string {
	return fmt.Sprintf("%v r%d", op.ResultOperation, op.Dst)
}

// DisassembleProgram renders a full macro program, one entry per word.
func DisassembleProgram(code []uint32) []Disassembly {
	listing := make([]Disassembly, len(code))
	for i, word := range code {
		listing[i] = DisassembleWord(uint32(i*InstructionSize), word)
	}
	return listing
}
