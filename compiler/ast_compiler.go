package compiler

import (
	"fmt"
	"os"
	"strings"

	"lumen/ast"
	"lumen/token"
)

// globalSymbol records where a top-level name lives in the global table and
// whether reassigning it is a compile-time error.
type globalSymbol struct {
	index   int
	isConst bool
}

// localSymbol records a name's slot within the function currently being
// compiled.
type localSymbol struct {
	slot    int
	isConst bool
}

// funcScope is the compilation context for a single function body: spec.md
// §3 gives every function exactly one flat local scope (no nested
// block-scoped shadowing), so a plain name->slot map is enough — a name
// re-declared inside a nested block simply claims a new, later slot.
type funcScope struct {
	name      string
	locals    map[string]localSymbol
	numLocals int
	code      Instructions
}

// ASTCompiler lowers a parsed program into a Bytecode module. It walks the
// statement list three times, per spec.md §4.3: pre-register every function
// name as a global, emit every function body, then emit the entry stream.
// Visitor methods signal failure by panicking with a SemanticError or
// DeveloperError; CompileAST recovers once at the top so the rest of the
// compiler can be written as plain, error-free-looking traversal code.
type ASTCompiler struct {
	bytecode      Bytecode
	globals       map[string]globalSymbol
	functionNames map[string]bool
	fn            *funcScope // nil while compiling the entry stream
}

func NewASTCompiler() *ASTCompiler {
	return &ASTCompiler{
		bytecode: Bytecode{
			Instructions:  Instructions{},
			ConstantsPool: []any{},
			NameConstants: []string{},
			Functions:     map[string]*FunctionProto{},
		},
		globals:       map[string]globalSymbol{},
		functionNames: map[string]bool{},
	}
}

// CompileAST compiles a full program (the parser's output, include
// directives already spliced in) into a Bytecode module.
func (ac *ASTCompiler) CompileAST(statements []ast.Stmt) (b Bytecode, err error) {
	defer func() {
		if r := recover(); r != nil {
			if asErr, ok := r.(error); ok {
				err = asErr
				return
			}
			err = DeveloperError{Message: fmt.Sprintf("%v", r)}
		}
	}()

	var funDecls []ast.FunDecl
	collectFunDecls(statements, &funDecls)
	for _, funDecl := range funDecls {
		ac.registerFunctionGlobal(funDecl.Name.Lexeme)
	}
	for _, funDecl := range funDecls {
		ac.compileFunction(funDecl)
	}

	for _, stmt := range statements {
		stmt.Accept(ac)
	}
	ac.emit(OP_HALT)

	return ac.bytecode, nil
}

// collectFunDecls recursively finds every FunDecl reachable from stmts,
// descending into Block, If, While, and For bodies (spec.md §9: the
// pre-registration walk must reach into Blocks produced by include
// splicing) but not into FunDecl bodies themselves.
func collectFunDecls(stmts []ast.Stmt, out *[]ast.FunDecl) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case ast.FunDecl:
			*out = append(*out, s)
		case ast.Block:
			collectFunDecls(s.Statements, out)
		case ast.If:
			collectFunDecls([]ast.Stmt{s.Then}, out)
			if s.Else != nil {
				collectFunDecls([]ast.Stmt{s.Else}, out)
			}
		case ast.While:
			collectFunDecls([]ast.Stmt{s.Body}, out)
		case ast.For:
			collectFunDecls([]ast.Stmt{s.Body}, out)
		}
	}
}

func (ac *ASTCompiler) compileFunction(funDecl ast.FunDecl) {
	scope := &funcScope{
		name:   funDecl.Name.Lexeme,
		locals: map[string]localSymbol{},
		code:   Instructions{},
	}

	outer := ac.fn
	ac.fn = scope
	for _, param := range funDecl.Params {
		ac.declareLocal(param.Lexeme, false)
	}
	for _, stmt := range funDecl.Body.Statements {
		stmt.Accept(ac)
	}
	// Every function returns even without an explicit "return" (spec.md §4.3 pass 2).
	ac.emit(OP_CONSTANT, ac.addConstant(nil))
	ac.emit(OP_RETURN)
	ac.fn = outer

	ac.bytecode.Functions[funDecl.Name.Lexeme] = &FunctionProto{
		Name:      funDecl.Name.Lexeme,
		Arity:     len(funDecl.Params),
		NumLocals: scope.numLocals,
		Code:      scope.code,
	}
}

// --- symbol table -----------------------------------------------------

func (ac *ASTCompiler) registerFunctionGlobal(name string) {
	if ac.functionNames[name] {
		panic(SemanticError{Message: fmt.Sprintf("function '%s' is already declared", name)})
	}
	ac.functionNames[name] = true
	index := len(ac.bytecode.NameConstants)
	ac.bytecode.NameConstants = append(ac.bytecode.NameConstants, name)
	ac.globals[name] = globalSymbol{index: index, isConst: true}
}

// declareGlobal registers a let/const binding. Per spec.md §4.3 the only
// rejected global collision is with a function name; a name already used by
// an earlier let/const is shadowed by a fresh, later-declared index.
func (ac *ASTCompiler) declareGlobal(name string, isConst bool) int {
	if ac.functionNames[name] {
		panic(SemanticError{Message: fmt.Sprintf("duplicate global '%s' collides with a function name", name)})
	}
	index := len(ac.bytecode.NameConstants)
	ac.bytecode.NameConstants = append(ac.bytecode.NameConstants, name)
	ac.globals[name] = globalSymbol{index: index, isConst: isConst}
	return index
}

func (ac *ASTCompiler) declareLocal(name string, isConst bool) int {
	slot := ac.fn.numLocals
	ac.fn.numLocals++
	ac.fn.locals[name] = localSymbol{slot: slot, isConst: isConst}
	return slot
}

// declareAndStore declares name as a new binding (local if inside a
// function, global otherwise), stores the value already sitting on top of
// the stack into it, and discards it — the shared tail of VisitLet and
// VisitConst, which differ only in isConst.
func (ac *ASTCompiler) declareAndStore(name string, isConst bool) {
	if ac.fn != nil {
		slot := ac.declareLocal(name, isConst)
		ac.emit(OP_SET_LOCAL, slot)
	} else {
		index := ac.declareGlobal(name, isConst)
		ac.emit(OP_SET_GLOBAL, index)
	}
	ac.emit(OP_POP)
}

type resolvedVar struct {
	isLocal bool
	index   int
	isConst bool
}

// resolve looks a name up first in the current function's locals, then in
// the global table. Spec.md §1 excludes closures over enclosing locals, so
// a function body never sees an outer function's locals — only its own and
// the globals.
func (ac *ASTCompiler) resolve(name string) (resolvedVar, bool) {
	if ac.fn != nil {
		if sym, ok := ac.fn.locals[name]; ok {
			return resolvedVar{isLocal: true, index: sym.slot, isConst: sym.isConst}, true
		}
	}
	if sym, ok := ac.globals[name]; ok {
		return resolvedVar{isLocal: false, index: sym.index, isConst: sym.isConst}, true
	}
	return resolvedVar{}, false
}

func (ac *ASTCompiler) emitLoad(v resolvedVar) {
	if v.isLocal {
		ac.emit(OP_GET_LOCAL, v.index)
	} else {
		ac.emit(OP_GET_GLOBAL, v.index)
	}
}

func (ac *ASTCompiler) emitStore(v resolvedVar) {
	if v.isLocal {
		ac.emit(OP_SET_LOCAL, v.index)
	} else {
		ac.emit(OP_SET_GLOBAL, v.index)
	}
}

// --- constants ----------------------------------------------------------

// constantKey produces a structural dedup key for a scalar value, per
// spec.md §4.3's interning rule (typeTag + lexical text; null/true/false are
// singletons).
func constantKey(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("bool:%t", v)
	case int64:
		return fmt.Sprintf("int:%d", v)
	case float64:
		return fmt.Sprintf("float:%v", v)
	case string:
		return fmt.Sprintf("string:%q", v)
	default:
		return fmt.Sprintf("other:%v", v)
	}
}

func (ac *ASTCompiler) addConstant(value any) int {
	key := constantKey(value)
	for i, existing := range ac.bytecode.ConstantsPool {
		if constantKey(existing) == key {
			return i
		}
	}
	ac.bytecode.ConstantsPool = append(ac.bytecode.ConstantsPool, value)
	return len(ac.bytecode.ConstantsPool) - 1
}

// --- instruction emission -------------------------------------------------

func (ac *ASTCompiler) code() Instructions {
	if ac.fn != nil {
		return ac.fn.code
	}
	return ac.bytecode.Instructions
}

func (ac *ASTCompiler) setCode(code Instructions) {
	if ac.fn != nil {
		ac.fn.code = code
	} else {
		ac.bytecode.Instructions = code
	}
}

func (ac *ASTCompiler) emit(op Opcode, operands ...int) int {
	instruction, err := AssembleInstruction(op, operands...)
	if err != nil {
		panic(DeveloperError{Message: err.Error()})
	}
	pos := len(ac.code())
	ac.setCode(append(ac.code(), instruction...))
	return pos
}

// emitPlaceholderJump emits op with a zero operand, returning the byte
// offset of that operand so patchJump can later overwrite it once the
// target address is known.
func (ac *ASTCompiler) emitPlaceholderJump(op Opcode) int {
	pos := ac.emit(op, 0)
	return pos + 1
}

func (ac *ASTCompiler) patchJump(operandOffset int) {
	target := len(ac.code())
	code := ac.code()
	code[operandOffset] = byte(target >> 8)
	code[operandOffset+1] = byte(target)
	ac.setCode(code)
}

// --- expressions ----------------------------------------------------------

var binaryOpcodes = map[token.TokenType]Opcode{
	token.ADD:          OP_ADD,
	token.SUB:          OP_SUBTRACT,
	token.MULT:         OP_MULTIPLY,
	token.DIV:          OP_DIVIDE,
	token.MOD:          OP_MODULO,
	token.EQUAL_EQUAL:  OP_EQUALITY,
	token.NOT_EQUAL:    OP_NOT_EQUAL,
	token.LESS:         OP_LESS,
	token.LESS_EQUAL:   OP_LESS_EQUAL,
	token.LARGER:       OP_LARGER,
	token.LARGER_EQUAL: OP_LARGER_EQUAL,
}

func (ac *ASTCompiler) VisitBinary(b ast.Binary) any {
	b.Left.Accept(ac)
	b.Right.Accept(ac)
	op, ok := binaryOpcodes[b.Operator.TokenType]
	if !ok {
		panic(SemanticError{Message: fmt.Sprintf("unknown operator '%s'", b.Operator.Lexeme)})
	}
	ac.emit(op)
	return nil
}

func (ac *ASTCompiler) VisitLogical(l ast.Logical) any {
	l.Left.Accept(ac)
	switch l.Operator.TokenType {
	case token.LOGICAL_AND:
		// If left is falsy, JMP_IF_FALSE leaves it on the stack as the
		// short-circuit result and skips straight past the right operand.
		endJump := ac.emitPlaceholderJump(OP_JUMP_IF_FALSE)
		ac.emit(OP_POP)
		l.Right.Accept(ac)
		ac.patchJump(endJump)
	case token.LOGICAL_OR:
		falsyJump := ac.emitPlaceholderJump(OP_JUMP_IF_FALSE)
		endJump := ac.emitPlaceholderJump(OP_JUMP)
		ac.patchJump(falsyJump)
		ac.emit(OP_POP)
		l.Right.Accept(ac)
		ac.patchJump(endJump)
	default:
		panic(SemanticError{Message: fmt.Sprintf("unknown logical operator '%s'", l.Operator.Lexeme)})
	}
	return nil
}

func (ac *ASTCompiler) VisitUnary(u ast.Unary) any {
	u.Right.Accept(ac)
	switch u.Operator.TokenType {
	case token.SUB:
		ac.emit(OP_NEGATE)
	case token.BANG:
		ac.emit(OP_NOT)
	default:
		panic(SemanticError{Message: fmt.Sprintf("unknown operator '%s'", u.Operator.Lexeme)})
	}
	return nil
}

func (ac *ASTCompiler) VisitNumber(n ast.Number) any {
	ac.emit(OP_CONSTANT, ac.addConstant(n.Value))
	return nil
}

func (ac *ASTCompiler) VisitString(s ast.String) any {
	ac.emit(OP_CONSTANT, ac.addConstant(s.Value))
	return nil
}

func (ac *ASTCompiler) VisitBool(b ast.Bool) any {
	ac.emit(OP_CONSTANT, ac.addConstant(b.Value))
	return nil
}

func (ac *ASTCompiler) VisitNull(n ast.Null) any {
	ac.emit(OP_CONSTANT, ac.addConstant(nil))
	return nil
}

func (ac *ASTCompiler) VisitArray(a ast.Array) any {
	for _, element := range a.Elements {
		element.Accept(ac)
	}
	ac.emit(OP_ARRAY_NEW, len(a.Elements))
	return nil
}

func (ac *ASTCompiler) VisitIndex(i ast.Index) any {
	i.Array.Accept(ac)
	i.Index.Accept(ac)
	ac.emit(OP_ARRAY_GET)
	return nil
}

func (ac *ASTCompiler) VisitIdent(ident ast.Ident) any {
	resolved, ok := ac.resolve(ident.Name.Lexeme)
	if !ok {
		panic(SemanticError{Message: fmt.Sprintf("undefined variable '%s'", ident.Name.Lexeme)})
	}
	ac.emitLoad(resolved)
	return nil
}

// VisitAssign lowers both plain and indexed assignment targets, per
// spec.md §4.3's "Assignment lowering".
func (ac *ASTCompiler) VisitAssign(assign ast.Assign) any {
	switch target := assign.Target.(type) {
	case ast.Ident:
		resolved, ok := ac.resolve(target.Name.Lexeme)
		if !ok {
			panic(SemanticError{Message: fmt.Sprintf("assignment to undefined variable '%s'", target.Name.Lexeme)})
		}
		if resolved.isConst {
			panic(SemanticError{Message: fmt.Sprintf("cannot assign to const '%s'", target.Name.Lexeme)})
		}
		assign.Value.Accept(ac)
		ac.emitStore(resolved)

	case ast.Index:
		ident, ok := target.Array.(ast.Ident)
		if !ok {
			panic(SemanticError{Message: "assignment target must index a plain variable"})
		}
		resolved, ok := ac.resolve(ident.Name.Lexeme)
		if !ok {
			panic(SemanticError{Message: fmt.Sprintf("assignment to undefined variable '%s'", ident.Name.Lexeme)})
		}
		if resolved.isConst {
			panic(SemanticError{Message: fmt.Sprintf("cannot assign to const '%s'", ident.Name.Lexeme)})
		}
		ac.emitLoad(resolved)
		target.Index.Accept(ac)
		assign.Value.Accept(ac)
		ac.emit(OP_ARRAY_SET) // ..., arr, idx, rhs -> ..., rhs, updatedArr
		ac.emitStore(resolved)
		ac.emit(OP_POP) // discard updatedArr; rhs remains as the expression's value

	default:
		panic(SemanticError{Message: "invalid assignment target"})
	}
	return nil
}

func (ac *ASTCompiler) VisitCall(c ast.Call) any {
	if ident, ok := c.Callee.(ast.Ident); ok {
		nameIndex := ac.addConstant(ident.Name.Lexeme)
		for _, arg := range c.Arguments {
			arg.Accept(ac)
		}
		ac.emit(OP_CALL_NAME, nameIndex, len(c.Arguments))
		return nil
	}

	// Dynamic callee: its value ends up on the stack beneath the arguments.
	c.Callee.Accept(ac)
	for _, arg := range c.Arguments {
		arg.Accept(ac)
	}
	sentinelIndex := ac.addConstant(DynamicCallSentinel)
	ac.emit(OP_CALL_NAME, sentinelIndex, len(c.Arguments))
	return nil
}

// --- statements -------------------------------------------------------

func (ac *ASTCompiler) VisitExprStmt(stmt ast.ExprStmt) any {
	stmt.Expression.Accept(ac)
	ac.emit(OP_POP)
	return nil
}

func (ac *ASTCompiler) VisitLet(let ast.Let) any {
	if let.Initializer != nil {
		let.Initializer.Accept(ac)
	} else {
		ac.emit(OP_CONSTANT, ac.addConstant(nil))
	}
	ac.declareAndStore(let.Name.Lexeme, false)
	return nil
}

func (ac *ASTCompiler) VisitConst(constStmt ast.Const) any {
	constStmt.Initializer.Accept(ac)
	ac.declareAndStore(constStmt.Name.Lexeme, true)
	return nil
}

// VisitBlock compiles each statement in sequence. Spec.md §3 gives every
// function exactly one flat local scope, so entering a block introduces no
// new scope to push or pop here.
func (ac *ASTCompiler) VisitBlock(block ast.Block) any {
	for _, stmt := range block.Statements {
		stmt.Accept(ac)
	}
	return nil
}

// VisitIf follows spec.md §4.3's control-flow pattern exactly: the
// condition is left on the stack by JMP_IF_FALSE, so both the fall-through
// and the jump target must POP it themselves.
func (ac *ASTCompiler) VisitIf(stmt ast.If) any {
	stmt.Condition.Accept(ac)
	thenJump := ac.emitPlaceholderJump(OP_JUMP_IF_FALSE)
	ac.emit(OP_POP)
	stmt.Then.Accept(ac)
	elseJump := ac.emitPlaceholderJump(OP_JUMP)
	ac.patchJump(thenJump)
	ac.emit(OP_POP)
	if stmt.Else != nil {
		stmt.Else.Accept(ac)
	}
	ac.patchJump(elseJump)
	return nil
}

func (ac *ASTCompiler) VisitWhile(stmt ast.While) any {
	loopStart := len(ac.code())
	stmt.Condition.Accept(ac)
	exitJump := ac.emitPlaceholderJump(OP_JUMP_IF_FALSE)
	ac.emit(OP_POP)
	stmt.Body.Accept(ac)
	ac.emit(OP_JUMP, loopStart)
	ac.patchJump(exitJump)
	ac.emit(OP_POP)
	return nil
}

// VisitFor lowers the C-style for loop as a while loop with init emitted
// once up front and step spliced in between the body and the back-edge
// (spec.md §4.3). An absent condition is equivalent to "true".
func (ac *ASTCompiler) VisitFor(stmt ast.For) any {
	if stmt.Init != nil {
		stmt.Init.Accept(ac)
	}

	loopStart := len(ac.code())
	if stmt.Condition != nil {
		stmt.Condition.Accept(ac)
	} else {
		ac.emit(OP_CONSTANT, ac.addConstant(true))
	}
	exitJump := ac.emitPlaceholderJump(OP_JUMP_IF_FALSE)
	ac.emit(OP_POP)
	stmt.Body.Accept(ac)
	if stmt.Post != nil {
		stmt.Post.Accept(ac)
	}
	ac.emit(OP_JUMP, loopStart)
	ac.patchJump(exitJump)
	ac.emit(OP_POP)
	return nil
}

func (ac *ASTCompiler) VisitReturn(stmt ast.Return) any {
	if stmt.Value != nil {
		stmt.Value.Accept(ac)
	} else {
		ac.emit(OP_CONSTANT, ac.addConstant(nil))
	}
	ac.emit(OP_RETURN)
	return nil
}

// VisitFunDecl is a no-op when encountered during ordinary statement
// traversal: the function was already fully compiled by the dedicated
// pre-registration/emission passes in CompileAST.
func (ac *ASTCompiler) VisitFunDecl(funDecl ast.FunDecl) any {
	return nil
}

// --- disassembly --------------------------------------------------------

// DumpBytecode writes the entry instruction stream's raw bytes to filePath.
func (ac *ASTCompiler) DumpBytecode(filePath string) error {
	return os.WriteFile(filePath, ac.bytecode.Instructions, 0644)
}

// DisassembleBytecode renders the entry stream and every compiled function
// as human-readable text, optionally saving it to filePath.
func (ac *ASTCompiler) DisassembleBytecode(saveToDisk bool, filePath string) (string, error) {
	var out strings.Builder
	out.WriteString("== entry ==\n")
	out.WriteString(Disassemble(ac.bytecode.Instructions))

	for name, fn := range ac.bytecode.Functions {
		fmt.Fprintf(&out, "== fun %s ==\n", name)
		out.WriteString(Disassemble(fn.Code))
	}

	result := out.String()
	if saveToDisk {
		if err := os.WriteFile(filePath, []byte(result), 0644); err != nil {
			return "", err
		}
	}
	return result, nil
}
