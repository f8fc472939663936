// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser

//	A Recursive descent parser is a top-down parser because it starts from the top
//
// grammar rule and works its way down in to the nested sub-expressions before reaching
// the leaves of the syntax tree (terminal rules)
package parser

import (
	"fmt"
	"os"
	"path/filepath"

	"lumen/ast"
	"lumen/lexer"
	"lumen/token"
)

var comparisonTokenTypes = []token.TokenType{
	token.LARGER,
	token.LARGER_EQUAL,
	token.LESS,
	token.LESS_EQUAL,
}

var equalityTokenTypes = []token.TokenType{
	token.NOT_EQUAL,
	token.EQUAL_EQUAL,
}

var termTokenTypes = []token.TokenType{
	token.SUB,
	token.ADD,
}

var factorExpressionTypes = []token.TokenType{
	token.MULT,
	token.DIV,
	token.MOD,
}

var unaryExpressionTypes = []token.TokenType{
	token.BANG,
	token.SUB,
}

type Parser struct {
	tokens   []token.Token
	position int

	// path identifies the source this token stream was scanned from; used
	// both for error reporting and for resolving relative `include` paths.
	path string

	// included is the set of canonical include paths already expanded,
	// shared by pointer across every Parser spun up to expand a nested
	// `include`, so a diamond or cyclic include graph only expands each
	// file once (spec.md §4.2).
	included *map[string]bool
}

// NOTE: The parsers position is always one unit ahead of the
// current token

// Make initializes and returns a new top-level Parser instance for the
// given token stream and its source path.
func Make(tokens []token.Token, path string) *Parser {
	included := map[string]bool{}
	if abs, err := filepath.Abs(path); err == nil {
		included[abs] = true
	}
	return &Parser{
		tokens:   tokens,
		position: 0,
		path:     path,
		included: &included,
	}
}

// Print prints the AST as prettified JSON to standard output.
func (parser *Parser) Print(statements []ast.Stmt) {
	_, err := PrintASTJSON(statements)
	if err != nil {
		fmt.Println("error producing AST JSON:", err)
	}
}

// PrintToFile writes the AST for the provided statements to a .json file at the given path.
func (parser *Parser) PrintToFile(statements []ast.Stmt, path string) error {
	return WriteASTJSONToFile(statements, path)
}

// Peeks the token at the parser's current position,
// without advancing the parser's position.
func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

// Retrieves the token at the parser's previous position
// (position -1)
func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

// Increments the parser's position by one unit and
// consumes the current token
func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

// Determines of the parser has finished scanning all the tokens.
func (parser *Parser) isFinished() bool {
	tok := parser.peek()
	return tok.TokenType == token.EOF
}

// Determines if the provided tokenType matches the TokenType
// at the parser's current position
func (parser *Parser) checkType(tokeType token.TokenType) bool {
	if parser.isFinished() {
		return false
	}
	tok := parser.peek()
	return tok.TokenType == tokeType
}

// Determines if the TokenType at the current
// position matches any of the provided tokenTypes. If a match is
// found the parser increments its position and consumes the
// current token
func (parser *Parser) isMatch(tokenTypes []token.TokenType) bool {
	for i := range tokenTypes {
		tokenType := tokenTypes[i]

		if parser.checkType(tokenType) {
			parser.advance()
			return true
		}
	}
	return false
}

// Parse parses the entire token stream into a slice of Stmt (statement) nodes,
// continuing until the end of input. Errors during parsing are collected
// but parsing continues to find additional errors where possible.
//
// Returns:
//   - []Stmt: the successfully parsed statements.
//   - []error: all errors that occurred during parsing.
func (parser *Parser) Parse() ([]ast.Stmt, []error) {
	statements := []ast.Stmt{}
	errors := []error{}

	for {
		if parser.isFinished() {
			break
		}

		if parser.checkType(token.INCLUDE) {
			included, err := parser.include()
			if err != nil {
				errors = append(errors, err)
				if !parser.isFinished() {
					parser.position++
				}
				continue
			}
			statements = append(statements, included...)
			continue
		}

		statement, err := parser.declaration()
		if err != nil {
			errors = append(errors, err)
			if !parser.isFinished() {
				parser.position++
			}
			continue
		}
		statements = append(statements, statement)
	}

	return statements, errors
}

// include parses and expands an `include "path";` directive, consuming the
// `include` keyword and reading the referenced file relative to the
// including file's own directory. A path already present in the shared
// dedup set (an earlier include of the same file, however deep) expands to
// a single empty Block, rather than an error, breaking both repeated
// includes and cycles (spec.md §4.2).
func (parser *Parser) include() ([]ast.Stmt, error) {
	parser.advance() // consume 'include'

	pathTok, err := parser.consume(token.STRING, "Expected a string path after 'include'")
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(token.SEMICOLON, "Expected ';' after include path")
	if err != nil {
		return nil, err
	}

	rawPath, _ := pathTok.Literal.(string)
	resolved := rawPath
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(parser.path), rawPath)
	}
	canonical, err := filepath.Abs(resolved)
	if err != nil {
		return nil, CreateSyntaxError(parser.path, pathTok.Line, pathTok.Column, "cannot resolve include path: "+rawPath)
	}

	if (*parser.included)[canonical] {
		return []ast.Stmt{ast.Block{Statements: []ast.Stmt{}}}, nil
	}
	(*parser.included)[canonical] = true

	source, err := os.ReadFile(canonical)
	if err != nil {
		return nil, CreateSyntaxError(parser.path, pathTok.Line, pathTok.Column, "cannot read included file: "+rawPath)
	}

	tokens := lexer.New(canonical, string(source)).Scan()
	child := &Parser{tokens: tokens, path: canonical, included: parser.included}
	statements, errs := child.Parse()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	// Spliced in as a single Block so a function pre-registration walk that
	// descends into Block still finds FunDecls contributed by the include,
	// without the caller's statement list needing to know anything changed.
	return []ast.Stmt{ast.Block{Statements: statements}}, nil
}

// declaration parses a top-level declaration: a variable binding
// (`let`/`const`), a function declaration, or a general statement.
func (parser *Parser) declaration() (ast.Stmt, error) {
	if parser.isMatch([]token.TokenType{token.VAR}) {
		return parser.letDeclaration()
	}
	if parser.isMatch([]token.TokenType{token.CONST}) {
		return parser.constDeclaration()
	}
	if parser.isMatch([]token.TokenType{token.FUNC}) {
		return parser.funDeclaration()
	}
	return parser.statement()
}

// letDeclaration parses a mutable variable declaration statement.
func (parser *Parser) letDeclaration() (ast.Stmt, error) {
	tok, err := parser.consume(token.IDENTIFIER, "Expected variable name")
	if err != nil {
		return nil, err
	}

	var initialiser ast.Expression
	if parser.isMatch([]token.TokenType{token.ASSIGN}) {
		initialiser, err = parser.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := parser.consume(token.SEMICOLON, "Expected ';' after variable declaration"); err != nil {
		return nil, err
	}

	return ast.Let{Name: tok, Initializer: initialiser}, nil
}

// constDeclaration parses an immutable binding declaration. Unlike `let`,
// an initializer is required: there is no sensible uninitialized constant.
func (parser *Parser) constDeclaration() (ast.Stmt, error) {
	tok, err := parser.consume(token.IDENTIFIER, "Expected constant name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.ASSIGN, "Const declarations require an initializer"); err != nil {
		return nil, err
	}
	initialiser, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.SEMICOLON, "Expected ';' after const declaration"); err != nil {
		return nil, err
	}

	return ast.Const{Name: tok, Initializer: initialiser}, nil
}

// funDeclaration parses a function declaration: a name, a parenthesized,
// comma-separated parameter list, and a block body.
func (parser *Parser) funDeclaration() (ast.Stmt, error) {
	name, err := parser.consume(token.IDENTIFIER, "Expected function name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.LPA, "Expected '(' after function name"); err != nil {
		return nil, err
	}

	params := []token.Token{}
	if !parser.checkType(token.RPA) {
		for {
			param, err := parser.consume(token.IDENTIFIER, "Expected parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RPA, "Expected ')' after parameters"); err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.LCUR, "Expected '{' before function body"); err != nil {
		return nil, err
	}

	statements, err := parser.block()
	if err != nil {
		return nil, err
	}

	return ast.FunDecl{Name: name, Params: params, Body: ast.Block{Statements: statements}}, nil
}

// statement parses a single statement: a block, a conditional, a loop, a
// return, or an expression statement.
func (parser *Parser) statement() (ast.Stmt, error) {
	if parser.isMatch([]token.TokenType{token.LCUR}) {
		statements, err := parser.block()
		if err != nil {
			return nil, err
		}
		return ast.Block{Statements: statements}, nil
	}

	if parser.isMatch([]token.TokenType{token.IF}) {
		return parser.ifStatement()
	}

	if parser.isMatch([]token.TokenType{token.WHILE}) {
		return parser.whileStatement()
	}

	if parser.isMatch([]token.TokenType{token.FOR}) {
		return parser.forStatement()
	}

	if parser.isMatch([]token.TokenType{token.RETURN}) {
		return parser.returnStatement()
	}

	return parser.expressionStatement()
}

// whileStatement parses a while loop: a parenthesized condition followed by
// a statement representing the loop body.
func (parser *Parser) whileStatement() (ast.Stmt, error) {
	if _, err := parser.consume(token.LPA, "Expected '(' after 'while'"); err != nil {
		return nil, err
	}
	condition, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.RPA, "Expected ')' after while condition"); err != nil {
		return nil, err
	}

	body, err := parser.statement()
	if err != nil {
		return nil, err
	}

	return ast.While{Condition: condition, Body: body}, nil
}

// forStatement parses a C-style for loop with three optional,
// semicolon-separated header clauses: `for (init; condition; post) body`.
func (parser *Parser) forStatement() (ast.Stmt, error) {
	if _, err := parser.consume(token.LPA, "Expected '(' after 'for'"); err != nil {
		return nil, err
	}

	var init ast.Stmt
	var err error
	if parser.isMatch([]token.TokenType{token.SEMICOLON}) {
		init = nil
	} else if parser.isMatch([]token.TokenType{token.VAR}) {
		init, err = parser.letDeclaration()
		if err != nil {
			return nil, err
		}
	} else {
		init, err = parser.expressionStatement()
		if err != nil {
			return nil, err
		}
	}

	var condition ast.Expression
	if !parser.checkType(token.SEMICOLON) {
		condition, err = parser.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := parser.consume(token.SEMICOLON, "Expected ';' after for condition"); err != nil {
		return nil, err
	}

	var post ast.Stmt
	if !parser.checkType(token.RPA) {
		postExpr, err := parser.expression()
		if err != nil {
			return nil, err
		}
		post = ast.ExprStmt{Expression: postExpr}
	}
	if _, err := parser.consume(token.RPA, "Expected ')' after for clauses"); err != nil {
		return nil, err
	}

	body, err := parser.statement()
	if err != nil {
		return nil, err
	}

	return ast.For{Init: init, Condition: condition, Post: post, Body: body}, nil
}

// returnStatement parses a `return` statement. The returned expression is
// optional: a bare `return;` returns null.
func (parser *Parser) returnStatement() (ast.Stmt, error) {
	keyword := parser.previous()

	var value ast.Expression
	if !parser.checkType(token.SEMICOLON) {
		var err error
		value, err = parser.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := parser.consume(token.SEMICOLON, "Expected ';' after return value"); err != nil {
		return nil, err
	}

	return ast.Return{Keyword: keyword, Value: value}, nil
}

// ifStatement parses an if-statement, with an optional `else` branch.
func (parser *Parser) ifStatement() (ast.Stmt, error) {
	if _, err := parser.consume(token.LPA, "Expected '(' after 'if'"); err != nil {
		return nil, err
	}
	condition, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.RPA, "Expected ')' after if condition"); err != nil {
		return nil, err
	}

	thenStmt, err := parser.statement()
	if err != nil {
		return nil, err
	}

	var elseStmt ast.Stmt
	if parser.isMatch([]token.TokenType{token.ELSE}) {
		elseStmt, err = parser.statement()
		if err != nil {
			return nil, err
		}
	}

	return ast.If{Condition: condition, Then: thenStmt, Else: elseStmt}, nil
}

// expressionStatement parses a statement consisting of a single expression
// followed by a terminating semicolon.
func (parser *Parser) expressionStatement() (ast.Stmt, error) {
	expression, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.SEMICOLON, "Expected ';' after expression"); err != nil {
		return nil, err
	}
	return ast.ExprStmt{Expression: expression}, nil
}

// block parses a block statement consisting of a list of declarations,
// expanding any `include` directives found at block scope exactly as Parse
// does at the top level.
func (parser *Parser) block() ([]ast.Stmt, error) {
	statements := []ast.Stmt{}

	for !parser.checkType(token.RCUR) && !parser.isFinished() {
		if parser.checkType(token.INCLUDE) {
			included, err := parser.include()
			if err != nil {
				return nil, err
			}
			statements = append(statements, included...)
			continue
		}

		stmt, err := parser.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	if _, err := parser.consume(token.RCUR, "Expected '}' after block"); err != nil {
		return nil, err
	}
	return statements, nil
}

// expression is the entry point for parsing expressions. It begins at
// the assignment rule, which encompasses all lower-precedence rules.
func (parser *Parser) expression() (ast.Expression, error) {
	return parser.assignment()
}

// assignment parses an assignment expression from the token stream.
//
// Steps:
//  1. First, parse the left-hand side (LHS) as an 'or' expression, so
//     assignment binds looser than every other operator.
//  2. If the next token is '=' (ASSIGN), recursively parse the
//     right-hand side, then check the LHS is a valid assignment target
//     (an Ident or an Index expression); any other LHS is a SyntaxError.
//  3. If no '=' follows, return the previously parsed expression as-is.
func (parser *Parser) assignment() (ast.Expression, error) {
	expression, err := parser.or()
	if err != nil {
		return nil, err
	}
	if parser.isMatch([]token.TokenType{token.ASSIGN}) {
		equalsToken := parser.previous()
		value, err := parser.assignment()
		if err != nil {
			return nil, err
		}
		switch expression.(type) {
		case ast.Ident, ast.Index:
			return ast.Assign{Target: expression, Value: value}, nil
		default:
			return nil, CreateSyntaxError(parser.path, equalsToken.Line, equalsToken.Column, "Invalid assignment target")
		}
	}

	return expression, nil
}

// or parses a logical OR expression ("||"), left-associative.
func (parser *Parser) or() (ast.Expression, error) {
	expr, err := parser.and()
	if err != nil {
		return nil, err
	}

	for parser.isMatch([]token.TokenType{token.LOGICAL_OR}) {
		op := parser.previous()
		right, err := parser.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}

	return expr, nil
}

// and parses a logical AND expression ("&&"), left-associative.
func (parser *Parser) and() (ast.Expression, error) {
	expr, err := parser.equality()
	if err != nil {
		return nil, err
	}

	for parser.isMatch([]token.TokenType{token.LOGICAL_AND}) {
		op := parser.previous()
		right, err := parser.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// equality parses equality expressions using operators "==" and "!=".
func (parser *Parser) equality() (ast.Expression, error) {
	exp, err := parser.comparison()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(equalityTokenTypes) {
		operator := parser.previous()
		right, err := parser.comparison()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// comparison parses comparison expressions using operators "<", "<=", ">", ">=".
func (parser *Parser) comparison() (ast.Expression, error) {
	exp, err := parser.term()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(comparisonTokenTypes) {
		operator := parser.previous()
		right, err := parser.term()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// term parses addition and subtraction expressions using operators "+" and "-".
func (parser *Parser) term() (ast.Expression, error) {
	exp, err := parser.factor()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(termTokenTypes) {
		operator := parser.previous()
		right, err := parser.factor()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// factor parses multiplication, division, and modulo expressions using
// operators "*", "/", and "%".
func (parser *Parser) factor() (ast.Expression, error) {
	exp, err := parser.unary()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(factorExpressionTypes) {
		operator := parser.previous()
		right, err := parser.unary()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// unary parses unary prefix expressions using operators "!" or "-".
// Examples: "!true", "-x".
func (parser *Parser) unary() (ast.Expression, error) {
	if parser.isMatch(unaryExpressionTypes) {
		operator := parser.previous()
		right, err := parser.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: operator, Right: right}, nil
	}
	return parser.call()
}

// call parses postfix call and index expressions, e.g. "f(1)(2)[0]", by
// repeatedly wrapping the expression parsed so far in a Call or Index node
// for every trailing "(...)" or "[...]" it finds.
func (parser *Parser) call() (ast.Expression, error) {
	expr, err := parser.primary()
	if err != nil {
		return nil, err
	}

	for {
		if parser.isMatch([]token.TokenType{token.LPA}) {
			expr, err = parser.finishCall(expr)
			if err != nil {
				return nil, err
			}
		} else if parser.isMatch([]token.TokenType{token.LARR}) {
			openBracket := parser.previous()
			idx, err := parser.expression()
			if err != nil {
				return nil, err
			}
			if _, err := parser.consume(token.RARR, "Expected ']' after index expression"); err != nil {
				return nil, err
			}
			expr = ast.Index{Token: openBracket, Array: expr, Index: idx}
		} else {
			break
		}
	}

	return expr, nil
}

// finishCall parses the comma-separated argument list of a call expression,
// given that the callee has already been parsed and the opening '(' consumed.
func (parser *Parser) finishCall(callee ast.Expression) (ast.Expression, error) {
	arguments := []ast.Expression{}
	if !parser.checkType(token.RPA) {
		for {
			arg, err := parser.expression()
			if err != nil {
				return nil, err
			}
			arguments = append(arguments, arg)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	paren, err := parser.consume(token.RPA, "Expected ')' after arguments")
	if err != nil {
		return nil, err
	}

	return ast.Call{Callee: callee, Paren: paren, Arguments: arguments}, nil
}

// primary parses the most basic forms of expressions: literals, array
// literals, identifiers, and parenthesized expressions.
func (parser *Parser) primary() (ast.Expression, error) {
	if parser.isMatch([]token.TokenType{token.FALSE}) {
		return ast.Bool{Token: parser.previous(), Value: false}, nil
	}
	if parser.isMatch([]token.TokenType{token.TRUE}) {
		return ast.Bool{Token: parser.previous(), Value: true}, nil
	}
	if parser.isMatch([]token.TokenType{token.NULL}) {
		return ast.Null{Token: parser.previous()}, nil
	}

	if parser.isMatch([]token.TokenType{token.FLOAT, token.INT}) {
		return ast.Number{Token: parser.previous(), Value: parser.previous().Literal}, nil
	}

	if parser.isMatch([]token.TokenType{token.STRING}) {
		tok := parser.previous()
		value, _ := tok.Literal.(string)
		return ast.String{Token: tok, Value: value}, nil
	}

	if parser.isMatch([]token.TokenType{token.IDENTIFIER}) {
		return ast.Ident{Name: parser.previous()}, nil
	}

	if parser.isMatch([]token.TokenType{token.LARR}) {
		return parser.arrayLiteral()
	}

	if parser.isMatch([]token.TokenType{token.LPA}) {
		expr, err := parser.expression()
		if err != nil {
			return nil, err
		}
		if _, err := parser.consume(token.RPA, "Expected ')' after expression"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	currentToken := parser.peek()
	return nil, CreateSyntaxError(parser.path, currentToken.Line, currentToken.Column, "Unrecognised expression.")
}

// arrayLiteral parses an array literal, having already consumed the
// opening '['.
func (parser *Parser) arrayLiteral() (ast.Expression, error) {
	openBracket := parser.previous()
	elements := []ast.Expression{}

	if !parser.checkType(token.RARR) {
		for {
			el, err := parser.expression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RARR, "Expected ']' after array elements"); err != nil {
		return nil, err
	}

	return ast.Array{Token: openBracket, Elements: elements}, nil
}

// Consumes the current token by advancing the parsers current position by
// one unit if the `tokenType` matches the token type of the parsers current
// position.
//
//	Returns:
//	- A SyntaxError if the provided `tokenType` does not match the `TokenType`
//		at the parsers current position, or if the current token is ILLEGAL
//		(the lexer's way of reporting an unrecognized character or an
//		unterminated string).
func (parser *Parser) consume(tokenType token.TokenType, errorMessage string) (token.Token, error) {
	if parser.checkType(token.ILLEGAL) {
		illegal := parser.peek()
		return token.Token{}, CreateSyntaxError(parser.path, illegal.Line, illegal.Column, "Unexpected character: '"+illegal.Lexeme+"'")
	}
	if parser.checkType(tokenType) {
		return parser.advance(), nil
	}
	currentToken := parser.peek()
	return token.Token{}, CreateSyntaxError(parser.path, currentToken.Line, currentToken.Column, errorMessage)
}
