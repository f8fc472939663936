// interfaces.go contains all visitor interfaces that any code traversing expression and statement AST nodes must implement.
// It also contains the interfaces that all statement and expression AST nodes must implement which also follows the
// visitor design pattern

package ast

// ExpressionVisitor is the interface for operating on all Expression AST nodes.
// Any type that wants to perform an operation on expressions (e.g., a
// compiler, ast-printer, or type checker) must implement this interface.
//
// Each Visit method corresponds to a distinct Expression type.
type ExpressionVisitor interface {
	VisitBinary(binary Binary) any
	VisitLogical(logical Logical) any
	VisitUnary(unary Unary) any
	VisitNumber(number Number) any
	VisitString(str String) any
	VisitBool(b Bool) any
	VisitNull(null Null) any
	VisitArray(array Array) any
	VisitIndex(index Index) any
	VisitIdent(ident Ident) any
	VisitAssign(assign Assign) any
	VisitCall(call Call) any
}

// StmtVisitor is the interface for operating on all Statement AST nodes.
// Like ExpressionVisitor, it defines one Visit method per statement type.
// This separation between expressions and statements mirrors the grammar structure.
type StmtVisitor interface {
	VisitExprStmt(exprStmt ExprStmt) any
	VisitLet(let Let) any
	VisitConst(constStmt Const) any
	VisitBlock(block Block) any
	VisitIf(ifStmt If) any
	VisitWhile(whileStmt While) any
	VisitFor(forStmt For) any
	VisitReturn(returnStmt Return) any
	VisitFunDecl(funDecl FunDecl) any
}

// Stmt is the base interface for all statement nodes in the AST.
// Like Expression, it follows the Visitor design pattern where each
// statement type implements Accept, calling back into the correct
// Visit method on a StmtVisitor.
//
// A statement represents an action in a program. Unlike expressions,
// statements do not produce a value.
type Stmt interface {
	// Accept dispatches this statement to the appropriate Visit method
	// of the provided StmtVisitor implementation.
	Accept(v StmtVisitor) any
}

// Expression is the core interface for all expression nodes in the Abstract Syntax Tree (AST).
// Any expression type (e.g., binary operation, literal, index, etc.) must implement this interface.
// The Accept method enables the Visitor design pattern so that operations can be performed on
// expressions without the expression types needing to know the details of those operations.
type Expression interface {
	// Accept dispatches the current expression node to the appropriate method on a Visitor.
	Accept(v ExpressionVisitor) any
}
