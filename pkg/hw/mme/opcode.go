// Package mme emulates the macro method expander of a fixed-function GPU
// command processor: a small register machine whose programs translate a
// short parameter list into a sequence of engine register writes.
//
// The package provides two interchangeable execution backends (a reference
// bytecode interpreter and an ahead-of-time macro compiler) behind a single
// engine façade that owns the per-method upload buffers and the compiled
// macro cache.
package mme

import (
	"fmt"

	"github.com/gpuemu/mme/pkg/utils"
)

// NumRegisters is the number of general purpose registers of the macro
// register machine. Register 0 is hardwired to zero.
const NumRegisters = 8

// InstructionSize is the size in bytes of one macro code word.
const InstructionSize = 4

// Operation is the primary operation field of a macro code word.
type Operation uint32

const (
	OpALU                       Operation = 0
	OpAddImmediate              Operation = 1
	OpExtractInsert             Operation = 2
	OpExtractShiftLeftImmediate Operation = 3
	OpExtractShiftLeftRegister  Operation = 4
	OpRead                      Operation = 5
	// OpUnused does not seem to be a valid encoding on real hardware.
	OpUnused Operation = 6
	OpBranch Operation = 7
)

var operationNames = [8]string{
	OpALU:                       "alu",
	OpAddImmediate:              "addi",
	OpExtractInsert:             "extrinsrt",
	OpExtractShiftLeftImmediate: "extrshli",
	OpExtractShiftLeftRegister:  "extrshlr",
	OpRead:                      "read",
	OpUnused:                    "unused",
	OpBranch:                    "branch",
}

func (op Operation) String() string {
	if int(op) < len(operationNames) {
		return operationNames[op]
	}
	return fmt.Sprintf("operation(%d)", uint32(op))
}

// ALUOperation is the ALU sub-operation of an OpALU code word.
type ALUOperation uint32

const (
	AluAdd                ALUOperation = 0
	AluAddWithCarry       ALUOperation = 1
	AluSubtract           ALUOperation = 2
	AluSubtractWithBorrow ALUOperation = 3
	// Encodings 4-7 do not seem to be valid.
	AluXor    ALUOperation = 8
	AluOr     ALUOperation = 9
	AluAnd    ALUOperation = 10
	AluAndNot ALUOperation = 11
	AluNand   ALUOperation = 12
)

var aluOperationNames = map[ALUOperation]string{
	AluAdd:                "add",
	AluAddWithCarry:       "adc",
	AluSubtract:           "sub",
	AluSubtractWithBorrow: "sbb",
	AluXor:                "xor",
	AluOr:                 "or",
	AluAnd:                "and",
	AluAndNot:             "andn",
	AluNand:               "nand",
}

func (op ALUOperation) String() string {
	if name, ok := aluOperationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("alu(%d)", uint32(op))
}

// ResultOperation selects how the computed result of a code word is written
// back and which side effects it triggers.
type ResultOperation uint32

const (
	ResultIgnoreAndFetch               ResultOperation = 0
	ResultMove                         ResultOperation = 1
	ResultMoveAndSetMethod             ResultOperation = 2
	ResultFetchAndSend                 ResultOperation = 3
	ResultMoveAndSend                  ResultOperation = 4
	ResultFetchAndSetMethod            ResultOperation = 5
	ResultMoveAndSetMethodFetchAndSend ResultOperation = 6
	ResultMoveAndSetMethodSend         ResultOperation = 7
)

var resultOperationNames = [8]string{
	ResultIgnoreAndFetch:               "fetch",
	ResultMove:                         "mov",
	ResultMoveAndSetMethod:             "movm",
	ResultFetchAndSend:                 "fetchsend",
	ResultMoveAndSend:                  "movsend",
	ResultFetchAndSetMethod:            "fetchm",
	ResultMoveAndSetMethodFetchAndSend: "movmfetchsend",
	ResultMoveAndSetMethodSend:         "movmsend",
}

func (op ResultOperation) String() string {
	if int(op) < len(resultOperationNames) {
		return resultOperationNames[op]
	}
	return fmt.Sprintf("result(%d)", uint32(op))
}

// BranchCondition is the condition field of an OpBranch code word, evaluated
// against the value of the src_b register.
type BranchCondition uint32

const (
	BranchIfZero    BranchCondition = 0
	BranchIfNotZero BranchCondition = 1
)

func (c BranchCondition) String() string {
	if c == BranchIfZero {
		return "bz"
	}
	return "bnz"
}

// Opcode is the decoded view of one 32-bit macro code word. All fields are
// derived from fixed bit positions of the raw word; decoding never fails.
type Opcode struct {
	Raw             uint32
	Operation       Operation
	ResultOperation ResultOperation
	BranchCondition BranchCondition
	// BranchAnnul set on a taken branch suppresses the delay slot.
	BranchAnnul bool
	IsExit      bool
	Dst         uint32
	SrcA        uint32
	SrcB        uint32
	// Immediate is an 18-bit signed field overlapping SrcB and ALUOperation.
	Immediate    int32
	ALUOperation ALUOperation

	BfSrcBit uint32
	BfSize   uint32
	BfDstBit uint32
}

// DecodeOpcode decodes a 32-bit macro code word. It is a total, pure
// function: any word decodes to some Opcode, including operations the
// executors reject as unimplemented.
func DecodeOpcode(word uint32) Opcode {
	return Opcode{
		Raw:             word,
		Operation:       Operation(utils.ReadBits(word, 0, 3)),
		ResultOperation: ResultOperation(utils.ReadBits(word, 4, 3)),
		BranchCondition: BranchCondition(utils.ReadBits(word, 4, 1)),
		BranchAnnul:     utils.ReadBits(word, 5, 1) != 0,
		IsExit:          utils.ReadBits(word, 7, 1) != 0,
		Dst:             utils.ReadBits(word, 8, 3),
		SrcA:            utils.ReadBits(word, 11, 3),
		SrcB:            utils.ReadBits(word, 14, 3),
		Immediate:       int32(utils.ReadBitsSigned(word, 14, 18)),
		ALUOperation:    ALUOperation(utils.ReadBits(word, 17, 5)),
		BfSrcBit:        utils.ReadBits(word, 17, 5),
		BfSize:          utils.ReadBits(word, 22, 5),
		BfDstBit:        utils.ReadBits(word, 27, 5),
	}
}

// BitfieldMask returns the extraction mask of the bitfield instructions,
// (1 << BfSize) - 1.
func (op Opcode) BitfieldMask() uint32 {
	return utils.AllOnes[uint32](int(op.BfSize))
}

// BranchTarget returns the branch displacement in bytes, relative to the
// address of the branch instruction itself.
func (op Opcode) BranchTarget() int32 {
	return op.Immediate * InstructionSize
}

// MethodAddress is the method address register of the macro state: a 12-bit
// engine register address plus a 6-bit auto-increment step.
type MethodAddress uint32

const (
	methodAddressBits   = 12
	methodIncrementBits = 6
)

// Address returns the 12-bit engine register address field.
func (m MethodAddress) Address() uint32 {
	return utils.ReadBits(uint32(m), 0, methodAddressBits)
}

// Increment returns the 6-bit auto-increment field.
func (m MethodAddress) Increment() uint32 {
	return utils.ReadBits(uint32(m), methodAddressBits, methodIncrementBits)
}

// Advance adds the increment field to the address field, wrapping within the
// 12 address bits. The increment field is unchanged.
func (m MethodAddress) Advance() MethodAddress {
	next := utils.WriteBits(uint32(m), m.Address()+m.Increment(), 0, methodAddressBits)
	return MethodAddress(next)
}
