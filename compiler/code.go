package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Bytecode is the compiled form of an entire source file (after any
// `include`s have been spliced in by the parser): the top-level
// instructions that run when the module is loaded, the constant pool
// referenced by OP_CONSTANT, the name table used to address globals by
// index, and every compiled function, keyed by name.
type Bytecode struct {
	Instructions  Instructions
	ConstantsPool []any
	NameConstants []string
	Functions     map[string]*FunctionProto
}

// FunctionProto is a compiled function: its own instruction stream and the
// number of local variable slots its frame needs to allocate (always at
// least its arity, since parameters occupy the first slots).
type FunctionProto struct {
	Name      string
	Arity     int
	NumLocals int
	Code      Instructions
}

type Opcode byte

type Instructions []byte

// DynamicCallSentinel is interned as a constant whenever a Call's callee is
// not a plain identifier. The emitter pushes the callee's runtime value
// beneath its arguments instead of referencing a name constant; the VM
// recognizes this sentinel and resolves the real name off the stack.
const DynamicCallSentinel = "__call_dynamic"

// opcodes. iota generates a distinct byte for each bytecode.
const (
	// OP_CONSTANT pushes ConstantsPool[operand] onto the stack.
	OP_CONSTANT Opcode = iota

	// OP_GET_GLOBAL / OP_SET_GLOBAL access a global by its index into
	// NameConstants. OP_SET_GLOBAL leaves the assigned value on the stack.
	OP_GET_GLOBAL
	OP_SET_GLOBAL

	// OP_GET_LOCAL / OP_SET_LOCAL access a value in the current frame's
	// local slots. OP_SET_LOCAL leaves the assigned value on the stack.
	OP_GET_LOCAL
	OP_SET_LOCAL

	// OP_POP discards the top of the stack.
	OP_POP

	// Arithmetic. All binary: pop right, pop left, push result.
	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_MODULO

	// Unary.
	OP_NEGATE
	OP_NOT

	// Comparisons. All binary: pop right, pop left, push bool.
	OP_EQUALITY
	OP_NOT_EQUAL
	OP_LESS
	OP_LESS_EQUAL
	OP_LARGER
	OP_LARGER_EQUAL

	// Control flow. Operand is an absolute byte offset into Instructions.
	// OP_JUMP_IF_FALSE does not pop its operand off the stack; this is
	// deliberate, so the same instruction can serve as the short-circuit
	// result of "&&"/"||" without a matching pop on the fast path.
	OP_JUMP
	OP_JUMP_IF_FALSE

	// OP_CALL_NAME calls a function. Its first operand is an index into
	// ConstantsPool holding either the callee's name (a string constant
	// interned at compile time) or the sentinel "__call_dynamic", meaning
	// the real callee name is a runtime string value already on the stack,
	// directly beneath the argc arguments. Its second operand is argc.
	OP_CALL_NAME

	// OP_RETURN pops the current frame, pushing its top-of-stack value
	// (or null, for a bare "return;") into the caller.
	OP_RETURN

	// OP_HALT stops the VM.
	OP_HALT

	// OP_ARRAY_NEW pops its operand's worth of values off the stack (in
	// source order) and pushes a new array built from them.
	OP_ARRAY_NEW

	// OP_ARRAY_GET: pop index, pop array, push element (or null if out of range).
	OP_ARRAY_GET

	// OP_ARRAY_SET: pop value, pop index, pop array, push the value and
	// then the updated array (stack effect documented as "arr idx v -> v arr").
	OP_ARRAY_SET

	// OP_PRINT pops and prints the top of the stack, pushing null.
	OP_PRINT
)

// OpCodeDefinition describes an opcode: its human-readable name and the
// byte width of each of its operands, in order.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OP_CONSTANT:      {Name: "OP_CONSTANT", OperandWidths: []int{2}},
	OP_GET_GLOBAL:    {Name: "OP_GET_GLOBAL", OperandWidths: []int{2}},
	OP_SET_GLOBAL:    {Name: "OP_SET_GLOBAL", OperandWidths: []int{2}},
	OP_GET_LOCAL:     {Name: "OP_GET_LOCAL", OperandWidths: []int{2}},
	OP_SET_LOCAL:     {Name: "OP_SET_LOCAL", OperandWidths: []int{2}},
	OP_POP:           {Name: "OP_POP", OperandWidths: []int{}},
	OP_ADD:           {Name: "OP_ADD", OperandWidths: []int{}},
	OP_SUBTRACT:      {Name: "OP_SUBTRACT", OperandWidths: []int{}},
	OP_MULTIPLY:      {Name: "OP_MULTIPLY", OperandWidths: []int{}},
	OP_DIVIDE:        {Name: "OP_DIVIDE", OperandWidths: []int{}},
	OP_MODULO:        {Name: "OP_MODULO", OperandWidths: []int{}},
	OP_NEGATE:        {Name: "OP_NEGATE", OperandWidths: []int{}},
	OP_NOT:           {Name: "OP_NOT", OperandWidths: []int{}},
	OP_EQUALITY:      {Name: "OP_EQUALITY", OperandWidths: []int{}},
	OP_NOT_EQUAL:     {Name: "OP_NOT_EQUAL", OperandWidths: []int{}},
	OP_LESS:          {Name: "OP_LESS", OperandWidths: []int{}},
	OP_LESS_EQUAL:    {Name: "OP_LESS_EQUAL", OperandWidths: []int{}},
	OP_LARGER:        {Name: "OP_LARGER", OperandWidths: []int{}},
	OP_LARGER_EQUAL:  {Name: "OP_LARGER_EQUAL", OperandWidths: []int{}},
	OP_JUMP:          {Name: "OP_JUMP", OperandWidths: []int{2}},
	OP_JUMP_IF_FALSE: {Name: "OP_JUMP_IF_FALSE", OperandWidths: []int{2}},
	OP_CALL_NAME:     {Name: "OP_CALL_NAME", OperandWidths: []int{2, 2}},
	OP_RETURN:        {Name: "OP_RETURN", OperandWidths: []int{}},
	OP_HALT:          {Name: "OP_HALT", OperandWidths: []int{}},
	OP_ARRAY_NEW:     {Name: "OP_ARRAY_NEW", OperandWidths: []int{2}},
	OP_ARRAY_GET:     {Name: "OP_ARRAY_GET", OperandWidths: []int{}},
	OP_ARRAY_SET:     {Name: "OP_ARRAY_SET", OperandWidths: []int{}},
	OP_PRINT:         {Name: "OP_PRINT", OperandWidths: []int{}},
}

func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode: '%d' undefined", op)
	}
	return def, nil
}

// AssembleInstruction constructs a bytecode instruction from an opcode and
// its operands. Operands are encoded in big-endian order; each 2-byte
// operand is stored with its most significant byte first.
//
// Example:
//
//	instr, _ := AssembleInstruction(OP_CONSTANT, 42)
//	// instr == []byte{byte(OP_CONSTANT), 0x00, 0x2A}
func AssembleInstruction(op Opcode, operands ...int) ([]byte, error) {
	def, err := Get(op)
	if err != nil {
		return nil, err
	}

	instructionLength := 1
	for _, width := range def.OperandWidths {
		instructionLength += width
	}

	instruction := make([]byte, instructionLength)
	instruction[0] = byte(op)

	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += width
	}
	return instruction, nil
}

// ReadOperands decodes the operands of a single instruction (not including
// its opcode byte) according to its definition, returning the decoded
// operands and the number of bytes read.
func ReadOperands(def *OpCodeDefinition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 2:
			operands[i] = int(binary.BigEndian.Uint16(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// InstructionLength returns the total byte length (opcode plus operands) of
// the instruction that starts with op.
func InstructionLength(op Opcode) int {
	def, err := Get(op)
	if err != nil {
		return 1
	}
	length := 1
	for _, width := range def.OperandWidths {
		length += width
	}
	return length
}

// DisassembleInstruction renders the single instruction at the start of ins
// as a human-readable line, e.g. "OP_CONSTANT 2".
func DisassembleInstruction(ins Instructions) (string, error) {
	op := Opcode(ins[0])
	def, err := Get(op)
	if err != nil {
		return "", err
	}

	operands, _ := ReadOperands(def, ins[1:])
	if len(operands) == 0 {
		return def.Name, nil
	}

	parts := make([]string, len(operands))
	for i, operand := range operands {
		parts[i] = fmt.Sprintf("%d", operand)
	}
	return fmt.Sprintf("%s %s", def.Name, strings.Join(parts, " ")), nil
}

// Disassemble renders an entire instruction stream, one line per
// instruction, prefixed with its byte offset.
func Disassemble(ins Instructions) string {
	var out strings.Builder
	ip := 0
	for ip < len(ins) {
		line, err := DisassembleInstruction(ins[ip:])
		if err != nil {
			fmt.Fprintf(&out, "%04d ERROR: %s\n", ip, err)
			ip++
			continue
		}
		fmt.Fprintf(&out, "%04d %s\n", ip, line)
		ip += InstructionLength(Opcode(ins[ip]))
	}
	return out.String()
}
