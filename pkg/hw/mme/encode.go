package mme

import (
	"github.com/gpuemu/mme/pkg/utils"
)

// Code word constructors for building macro programs in tests, fixtures and
// documentation. Each constructor packs the fixed bit layout DecodeOpcode
// reads back.

func encodeCommon(operation Operation, result ResultOperation, dst, srcA uint32) uint32 {
	word := utils.WriteBits(uint32(0), uint32(operation), 0, 3)
	word = utils.WriteBits(word, uint32(result), 4, 3)
	word = utils.WriteBits(word, dst, 8, 3)
	return utils.WriteBits(word, srcA, 11, 3)
}

// EncodeALU builds an ALU code word computing alu(reg[srcA], reg[srcB]).
func EncodeALU(alu ALUOperation, result ResultOperation, dst, srcA, srcB uint32) uint32 {
	word := encodeCommon(OpALU, result, dst, srcA)
	word = utils.WriteBits(word, srcB, 14, 3)
	return utils.WriteBits(word, uint32(alu), 17, 5)
}

// EncodeAddImmediate builds a code word computing reg[srcA] + immediate.
func EncodeAddImmediate(result ResultOperation, dst, srcA uint32, immediate int32) uint32 {
	word := encodeCommon(OpAddImmediate, result, dst, srcA)
	return utils.WriteBits(word, uint32(immediate), 14, 18)
}

// EncodeExtractInsert builds a code word extracting a size-bit field of
// reg[srcB] at srcBit and inserting it into reg[srcA] at dstBit.
func EncodeExtractInsert(result ResultOperation, dst, srcA, srcB, srcBit, size, dstBit uint32) uint32 {
	word := encodeCommon(OpExtractInsert, result, dst, srcA)
	word = utils.WriteBits(word, srcB, 14, 3)
	word = utils.WriteBits(word, srcBit, 17, 5)
	word = utils.WriteBits(word, size, 22, 5)
	return utils.WriteBits(word, dstBit, 27, 5)
}

// EncodeExtractShiftLeftImmediate builds a code word computing
// ((reg[srcB] >> reg[srcA]) & mask) << dstBit.
func EncodeExtractShiftLeftImmediate(result ResultOperation, dst, srcA, srcB, size, dstBit uint32) uint32 {
	word := encodeCommon(OpExtractShiftLeftImmediate, result, dst, srcA)
	word = utils.WriteBits(word, srcB, 14, 3)
	word = utils.WriteBits(word, size, 22, 5)
	return utils.WriteBits(word, dstBit, 27, 5)
}

// EncodeExtractShiftLeftRegister builds a code word computing
// ((reg[srcB] >> srcBit) & mask) << reg[srcA].
func EncodeExtractShiftLeftRegister(result ResultOperation, dst, srcA, srcB, srcBit, size uint32) uint32 {
	word := encodeCommon(OpExtractShiftLeftRegister, result, dst, srcA)
	word = utils.WriteBits(word, srcB, 14, 3)
	word = utils.WriteBits(word, srcBit, 17, 5)
	return utils.WriteBits(word, size, 22, 5)
}

// EncodeRead builds a code word reading engine register reg[srcA]+immediate.
func EncodeRead(result ResultOperation, dst, srcA uint32, immediate int32) uint32 {
	word := encodeCommon(OpRead, result, dst, srcA)
	return utils.WriteBits(word, uint32(immediate), 14, 18)
}

// EncodeBranch builds a branch code word. The offset is a signed instruction
// count relative to the branch itself. The condition register index occupies
// the low three bits of the displacement field, so the two must agree:
// srcB == offset & 7. Incompatible pairs produce a displacement with its low
// bits replaced by srcB.
func EncodeBranch(condition BranchCondition, annul bool, srcB uint32, offset int32) uint32 {
	word := utils.WriteBits(uint32(0), uint32(OpBranch), 0, 3)
	word = utils.WriteBits(word, uint32(condition), 4, 1)
	if annul {
		word = utils.WriteBits(word, 1, 5, 1)
	}
	word = utils.WriteBits(word, uint32(offset), 14, 18)
	return utils.WriteBits(word, srcB, 14, 3)
}

// WithExit marks a code word as an exit instruction. One more instruction
// executes after it, in its delay slot, before the invocation halts.
func WithExit(word uint32) uint32 {
	return utils.WriteBits(word, 1, 7, 1)
}

// Nop builds a code word with no observable effect: an ALU add of the zero
// register with itself, stored back to the zero register.
func Nop() uint32 {
	return EncodeALU(AluAdd, ResultMove, 0, 0, 0)
}
