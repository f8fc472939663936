package vm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lumen/compiler"
)

// frame is a runtime activation record: the instruction stream it is
// executing, an instruction pointer into that stream, and its own local
// slots. The value stack is shared across every frame; only code, ip and
// locals belong to the frame itself. Created on OP_CALL_NAME, destroyed on
// OP_RETURN.
type frame struct {
	code   compiler.Instructions
	ip     int
	locals []any
}

// VM is a switch-dispatched stack machine: one shared operand stack, a
// call-frame stack whose base entry is the module's top-level code, and a
// dense globals table sized to the compiled module's NameConstants.
type VM struct {
	stack   Stack
	frames  []*frame
	globals []any
	out     io.Writer
}

// New creates a VM that prints to stdout.
func New() *VM {
	return &VM{out: os.Stdout}
}

// NewWithOutput creates a VM that writes anything printed by the `print`
// builtin to w, for tests that want to capture it.
func NewWithOutput(w io.Writer) *VM {
	return &VM{out: w}
}

// Run executes bytecode to completion, returning any RuntimeError raised
// along the way.
func (vm *VM) Run(bytecode compiler.Bytecode) error {
	vm.globals = make([]any, len(bytecode.NameConstants))
	vm.frames = []*frame{{code: bytecode.Instructions, ip: 0, locals: nil}}

	for len(vm.frames) > 0 {
		current := vm.frames[len(vm.frames)-1]

		if current.ip >= len(current.code) {
			return RuntimeError{Message: "instruction pointer ran past the end of its code"}
		}

		op := compiler.Opcode(current.code[current.ip])
		def, err := compiler.Get(op)
		if err != nil {
			return RuntimeError{Message: err.Error()}
		}
		operands, _ := compiler.ReadOperands(def, current.code[current.ip+1:])
		current.ip += compiler.InstructionLength(op)

		halt, err := vm.execute(bytecode, current, op, operands)
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
	}
	return nil
}

// execute runs a single decoded instruction against the current frame. It
// returns true when the VM should stop altogether (OP_HALT, or an OP_RETURN
// that unwound the last frame).
func (vm *VM) execute(bytecode compiler.Bytecode, current *frame, op compiler.Opcode, operands []int) (bool, error) {
	switch op {
	case compiler.OP_CONSTANT:
		vm.stack.Push(bytecode.ConstantsPool[operands[0]])

	case compiler.OP_GET_GLOBAL:
		vm.stack.Push(vm.globals[operands[0]])

	case compiler.OP_SET_GLOBAL:
		value, _ := vm.stack.Peek()
		vm.globals[operands[0]] = value

	case compiler.OP_GET_LOCAL:
		vm.stack.Push(current.locals[operands[0]])

	case compiler.OP_SET_LOCAL:
		value, _ := vm.stack.Peek()
		current.locals[operands[0]] = value

	case compiler.OP_POP:
		vm.stack.Pop()

	case compiler.OP_ADD, compiler.OP_SUBTRACT, compiler.OP_MULTIPLY, compiler.OP_DIVIDE, compiler.OP_MODULO,
		compiler.OP_EQUALITY, compiler.OP_NOT_EQUAL,
		compiler.OP_LESS, compiler.OP_LESS_EQUAL, compiler.OP_LARGER, compiler.OP_LARGER_EQUAL:
		if err := vm.binaryOp(op); err != nil {
			return false, err
		}

	case compiler.OP_NEGATE:
		value, _ := vm.stack.Pop()
		switch n := value.(type) {
		case int64:
			vm.stack.Push(-n)
		case float64:
			vm.stack.Push(-n)
		default:
			return false, RuntimeError{Message: fmt.Sprintf("cannot negate %s", describe(value))}
		}

	case compiler.OP_NOT:
		value, _ := vm.stack.Pop()
		vm.stack.Push(!truthy(value))

	case compiler.OP_JUMP:
		current.ip = operands[0]

	case compiler.OP_JUMP_IF_FALSE:
		top, _ := vm.stack.Peek()
		if !truthy(top) {
			current.ip = operands[0]
		}

	case compiler.OP_CALL_NAME:
		if err := vm.call(bytecode, operands[0], operands[1]); err != nil {
			return false, err
		}

	case compiler.OP_RETURN:
		value, _ := vm.stack.Pop()
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.stack.Push(value)
		return len(vm.frames) == 0, nil

	case compiler.OP_HALT:
		return true, nil

	case compiler.OP_ARRAY_NEW:
		n := operands[0]
		elements := make([]any, n)
		for i := n - 1; i >= 0; i-- {
			elements[i], _ = vm.stack.Pop()
		}
		vm.stack.Push(elements)

	case compiler.OP_ARRAY_GET:
		index, _ := vm.stack.Pop()
		array, _ := vm.stack.Pop()
		value, err := arrayGet(array, index)
		if err != nil {
			return false, err
		}
		vm.stack.Push(value)

	case compiler.OP_ARRAY_SET:
		value, _ := vm.stack.Pop()
		index, _ := vm.stack.Pop()
		array, _ := vm.stack.Pop()
		updated, err := arraySet(array, index, value)
		if err != nil {
			return false, err
		}
		vm.stack.Push(value)
		vm.stack.Push(updated)

	case compiler.OP_PRINT:
		value, _ := vm.stack.Pop()
		fmt.Fprintln(vm.out, render(value))
		vm.stack.Push(nil)

	default:
		return false, RuntimeError{Message: fmt.Sprintf("unknown opcode %d", op)}
	}
	return false, nil
}

// call implements the OP_CALL_NAME protocol: resolving the callee (possibly
// off the stack, for a dynamic callee), dispatching the `print` builtin, and
// otherwise pushing a new frame for a user-defined function.
func (vm *VM) call(bytecode compiler.Bytecode, nameIndex, argc int) error {
	name, ok := bytecode.ConstantsPool[nameIndex].(string)
	if !ok {
		return RuntimeError{Message: "call target is not a name"}
	}

	if name == compiler.DynamicCallSentinel {
		calleeSlot := len(vm.stack) - 1 - argc
		if calleeSlot < 0 {
			return RuntimeError{Message: "call stack underflow resolving dynamic callee"}
		}
		callee := vm.stack[calleeSlot]
		resolved, ok := callee.(string)
		if !ok {
			return RuntimeError{Message: fmt.Sprintf("cannot call %s as a function", describe(callee))}
		}
		vm.stack = append(vm.stack[:calleeSlot], vm.stack[calleeSlot+1:]...)
		name = resolved
	}

	if name == "print" {
		args := make([]any, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i], _ = vm.stack.Pop()
		}
		lines := make([]string, len(args))
		for i, a := range args {
			lines[i] = render(a)
		}
		for _, line := range lines {
			fmt.Fprintln(vm.out, line)
		}
		vm.stack.Push(nil)
		return nil
	}

	proto, ok := bytecode.Functions[name]
	if !ok {
		return RuntimeError{Message: fmt.Sprintf("undefined function '%s'", name)}
	}

	args := make([]any, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i], _ = vm.stack.Pop()
	}

	numLocals := proto.NumLocals
	if argc > numLocals {
		numLocals = argc
	}
	locals := make([]any, numLocals)
	copy(locals, args)

	vm.frames = append(vm.frames, &frame{code: proto.Code, ip: 0, locals: locals})
	return nil
}

// binaryOp pops right then left off the stack, applies op and pushes the
// result.
func (vm *VM) binaryOp(op compiler.Opcode) error {
	right, _ := vm.stack.Pop()
	left, _ := vm.stack.Pop()

	switch op {
	case compiler.OP_EQUALITY:
		vm.stack.Push(valuesEqual(left, right))
		return nil
	case compiler.OP_NOT_EQUAL:
		vm.stack.Push(!valuesEqual(left, right))
		return nil
	case compiler.OP_LESS, compiler.OP_LESS_EQUAL, compiler.OP_LARGER, compiler.OP_LARGER_EQUAL:
		return vm.compare(op, left, right)
	}

	if op == compiler.OP_ADD {
		if ls, ok := left.(string); ok {
			rs, ok := right.(string)
			if !ok {
				return RuntimeError{Message: fmt.Sprintf("cannot add %s and %s", describe(left), describe(right))}
			}
			vm.stack.Push(ls + rs)
			return nil
		}
	}
	return vm.arithmetic(op, left, right)
}

func (vm *VM) arithmetic(op compiler.Opcode, left, right any) error {
	li, lIsInt := left.(int64)
	ri, rIsInt := right.(int64)

	if op == compiler.OP_MODULO {
		if !lIsInt || !rIsInt {
			return RuntimeError{Message: "'%' requires integer operands"}
		}
		if ri == 0 {
			return RuntimeError{Message: "modulo by zero"}
		}
		vm.stack.Push(li % ri)
		return nil
	}

	if lIsInt && rIsInt {
		switch op {
		case compiler.OP_ADD:
			vm.stack.Push(li + ri)
		case compiler.OP_SUBTRACT:
			vm.stack.Push(li - ri)
		case compiler.OP_MULTIPLY:
			vm.stack.Push(li * ri)
		case compiler.OP_DIVIDE:
			if ri == 0 {
				return RuntimeError{Message: "division by zero"}
			}
			vm.stack.Push(li / ri)
		}
		return nil
	}

	lf, lOk := toFloat(left)
	rf, rOk := toFloat(right)
	if !lOk || !rOk {
		return RuntimeError{Message: fmt.Sprintf("arithmetic on non-numeric value: %s, %s", describe(left), describe(right))}
	}
	switch op {
	case compiler.OP_ADD:
		vm.stack.Push(lf + rf)
	case compiler.OP_SUBTRACT:
		vm.stack.Push(lf - rf)
	case compiler.OP_MULTIPLY:
		vm.stack.Push(lf * rf)
	case compiler.OP_DIVIDE:
		if rf == 0 {
			return RuntimeError{Message: "division by zero"}
		}
		vm.stack.Push(lf / rf)
	}
	return nil
}

func (vm *VM) compare(op compiler.Opcode, left, right any) error {
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return RuntimeError{Message: fmt.Sprintf("cannot compare %s and %s", describe(left), describe(right))}
		}
		vm.stack.Push(stringCompare(op, ls, rs))
		return nil
	}

	lf, lOk := toFloat(left)
	rf, rOk := toFloat(right)
	if !lOk || !rOk {
		return RuntimeError{Message: fmt.Sprintf("cannot compare %s and %s", describe(left), describe(right))}
	}
	var result bool
	switch op {
	case compiler.OP_LESS:
		result = lf < rf
	case compiler.OP_LESS_EQUAL:
		result = lf <= rf
	case compiler.OP_LARGER:
		result = lf > rf
	case compiler.OP_LARGER_EQUAL:
		result = lf >= rf
	}
	vm.stack.Push(result)
	return nil
}

func stringCompare(op compiler.Opcode, l, r string) bool {
	switch op {
	case compiler.OP_LESS:
		return l < r
	case compiler.OP_LESS_EQUAL:
		return l <= r
	case compiler.OP_LARGER:
		return l > r
	case compiler.OP_LARGER_EQUAL:
		return l >= r
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// valuesEqual implements == across the value types Lumen knows about,
// treating an int64 and a float64 with the same magnitude as equal.
func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// truthy implements the language's single truthiness rule: empty string,
// zero, null and the empty array are falsy, everything else is truthy.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	}
	return true
}

// arrayGet reads array[index]. An out-of-range read yields null rather than
// faulting.
func arrayGet(array, index any) (any, error) {
	elements, ok := array.([]any)
	if !ok {
		return nil, RuntimeError{Message: fmt.Sprintf("cannot index %s", describe(array))}
	}
	i, ok := index.(int64)
	if !ok {
		return nil, RuntimeError{Message: fmt.Sprintf("array index must be an integer, got %s", describe(index))}
	}
	if i < 0 || int(i) >= len(elements) {
		return nil, nil
	}
	return elements[i], nil
}

// arraySet returns a copy of array with index set to value. A negative
// index faults; an index at or beyond the current length extends the array,
// padding any gap with null, so the write never mutates the original slice.
func arraySet(array, index, value any) ([]any, error) {
	elements, ok := array.([]any)
	if !ok {
		return nil, RuntimeError{Message: fmt.Sprintf("cannot index %s", describe(array))}
	}
	i, ok := index.(int64)
	if !ok {
		return nil, RuntimeError{Message: fmt.Sprintf("array index must be an integer, got %s", describe(index))}
	}
	if i < 0 {
		return nil, RuntimeError{Message: fmt.Sprintf("array index %d is negative", i)}
	}

	updated := make([]any, len(elements))
	copy(updated, elements)
	if int(i) >= len(updated) {
		grown := make([]any, i+1)
		copy(grown, updated)
		updated = grown
	}
	updated[i] = value
	return updated, nil
}

// render formats a value the way `print` writes it: null and booleans use
// their literal spelling, arrays are JSON-encoded, numbers and strings use
// their lexical form.
func render(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case string:
		return val
	case []any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "[]"
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
