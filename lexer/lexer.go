package lexer

import (
	"strconv"

	"lumen/token"
)

func isLetter(char rune) bool {
	return rune('a') <= char && char <= rune('z') || rune('A') <= char && char <= rune('Z') || char == rune('_')
}

func isNumber(char rune) bool {
	return rune('0') <= char && char <= rune('9')
}

// Lexer represents a lexical scanner for processing input text into tokens.
// It maintains the current scanning state, including the position within the
// input, the current character, and metadata for line/column tracking.
// The Lexer also records the tokens produced during scanning.
//
// Unlike a lexer that returns a Go error the moment it sees something it
// doesn't recognize, this one never stops scanning: each unrecognized
// character becomes its own ILLEGAL token carrying that character as its
// lexeme, and scanning continues. The parser is the one that turns the
// first ILLEGAL token it consumes into a SyntaxError — see spec.md §4.1/§7.
type Lexer struct {
	// path of the source file being scanned; stamped onto every token
	// produced, including tokens produced while expanding an include.
	path string

	// rune slice of the input string being scanned.
	characters []rune

	// Total number of runes in the input.
	totalChars int

	// Stores the sequence of tokens produced during lexing.
	tokens []token.Token

	// The index of the character that was previously read
	position int

	// The current character being examined.
	currentChar rune

	// The index of the next position where the next character
	// will be read
	readPosition int

	// Tracks the number of lines processed (incremented on newline).
	lineCount int32

	// Tracks the character's position within the current line.
	// Gets reset on every new line back to 0
	column int
}

// New initializes and returns a new Lexer instance for the given source text.
//
// path identifies the source of input (a file path, or a synthetic name such
// as "<repl>") and is stamped on every token the lexer produces, so later
// stages can report errors against the file they actually came from even
// after an `include` has spliced tokens from several files together.
func New(path string, input string) *Lexer {
	lexer := &Lexer{
		path:       path,
		characters: []rune(input),
		lineCount:  1,
		column:     0,
	}
	lexer.totalChars = len(lexer.characters)
	lexer.readChar()
	return lexer
}

// Updates the `Lexer`'s reading position forward by one character.
func (lexer *Lexer) advance() {
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

// Determines of the lexer has finished scanning all the source code.
func (lexer *Lexer) isFinished() bool {
	return lexer.readPosition >= lexer.totalChars
}

// Reads the character at the `Lexer`'s `readPosition`, advancing line/column
// bookkeeping based on the character being left behind. If there are no more
// characters to parse, it sets the `Lexer`'s current character to null.
func (lexer *Lexer) readChar() {
	if lexer.currentChar == '\n' {
		lexer.lineCount++
		lexer.column = 0
	}
	if lexer.isFinished() {
		lexer.currentChar = rune(0)
	} else {
		lexer.currentChar = lexer.characters[lexer.readPosition]
	}
	lexer.advance()
	lexer.column++
}

// Returns the character at the `Lexer`'s `readPosition` without consuming it.
func (lexer *Lexer) peek() rune {
	if lexer.isFinished() {
		return rune(0)
	}
	return lexer.characters[lexer.readPosition]
}

// Returns the character one past `readPosition` without consuming it.
func (lexer *Lexer) peekNext() rune {
	nextReadPos := lexer.readPosition + 1
	if nextReadPos >= lexer.totalChars {
		return rune(0)
	}
	return lexer.characters[nextReadPos]
}

// Determines if the next character in the source code matches `expected`,
// consuming it if so.
func (lexer *Lexer) isMatch(expected rune) bool {
	if lexer.currentChar != expected {
		return false
	}
	lexer.readChar()
	return true
}

// isWhiteSpace determines whether a given rune is whitespace: space, tab,
// carriage return or newline.
func isWhiteSpace(char rune) bool {
	return char == ' ' || char == '\r' || char == '\t' || char == '\n'
}

// Skips all whitespace in the input while advancing the `Lexer`'s position.
func (lexer *Lexer) skipWhiteSpace() {
	for isWhiteSpace(lexer.currentChar) {
		lexer.readChar()
	}
}

// handleLineComment consumes a `//` comment up to but not including the
// terminating newline.
func (lexer *Lexer) handleLineComment() {
	for lexer.currentChar != '\n' && !(lexer.isFinished() && lexer.currentChar == rune(0)) {
		lexer.readChar()
	}
}

// handleBlockComment consumes a `/* ... */` comment, including nested
// newlines (which still advance the line counter via readChar). An
// unterminated block comment simply runs to end of input; no error is
// raised for it, matching the lexer's never-stop-scanning design.
func (lexer *Lexer) handleBlockComment() {
	// consume the '*' of the opening "/*"
	lexer.readChar()
	for {
		if lexer.isFinished() && lexer.currentChar == rune(0) {
			return
		}
		if lexer.currentChar == '*' && lexer.peek() == '/' {
			lexer.readChar()
			lexer.readChar()
			return
		}
		lexer.readChar()
	}
}

// handleNumber scans a sequence of digits (and at most one decimal point)
// from the input and creates an integer or floating-point literal token.
func (lexer *Lexer) handleNumber() {
	initPos := lexer.position
	line, column := lexer.lineCount, lexer.column
	sawDot := false

	for {
		if lexer.currentChar == '.' && !sawDot && isNumber(lexer.peek()) {
			sawDot = true
			lexer.readChar()
			continue
		}
		if !isNumber(lexer.currentChar) {
			break
		}
		lexer.readChar()
	}

	lexeme := string(lexer.characters[initPos:lexer.position])
	var tok token.Token
	if sawDot {
		value, _ := strconv.ParseFloat(lexeme, 64)
		tok = token.CreateLiteralToken(token.FLOAT, value, lexeme, lexer.path, line, column)
	} else {
		value, _ := strconv.ParseInt(lexeme, 10, 64)
		tok = token.CreateLiteralToken(token.INT, value, lexeme, lexer.path, line, column)
	}
	lexer.tokens = append(lexer.tokens, tok)
}

// handleIdentifier processes a user identifier or a language keyword.
func (lexer *Lexer) handleIdentifier() {
	initPos := lexer.position
	line, column := lexer.lineCount, lexer.column

	for isLetter(lexer.currentChar) || isNumber(lexer.currentChar) {
		lexer.readChar()
	}

	lexeme := string(lexer.characters[initPos:lexer.position])
	var tokenType token.TokenType = token.IDENTIFIER
	if keywordType, exists := token.KeyWords[lexeme]; exists {
		tokenType = keywordType
	}
	lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(tokenType, nil, lexeme, lexer.path, line, column))
}

// escapeFor maps an escape character following a backslash to its literal
// value. An escape the language doesn't recognize passes through as the
// character itself, per spec.md §4.1 ("\q" -> "q").
func escapeFor(char rune) rune {
	switch char {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '"':
		return '"'
	case '\'':
		return '\''
	case '\\':
		return '\\'
	default:
		return char
	}
}

// handleStringLiteral processes a string literal delimited by either `'` or
// `"`, processing backslash escapes along the way. An unterminated string
// literal (EOF reached before the closing delimiter) produces an ILLEGAL
// token rather than halting the scan.
func (lexer *Lexer) handleStringLiteral() {
	delimiter := lexer.currentChar
	line, column := lexer.lineCount, lexer.column
	initPos := lexer.position
	var value []rune

	lexer.readChar()
	for lexer.currentChar != delimiter {
		if lexer.isFinished() && lexer.currentChar == rune(0) {
			lexeme := string(lexer.characters[initPos:lexer.position])
			lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.ILLEGAL, nil, lexeme, lexer.path, line, column))
			return
		}
		if lexer.currentChar == '\\' {
			lexer.readChar()
			value = append(value, escapeFor(lexer.currentChar))
			lexer.readChar()
			continue
		}
		value = append(value, lexer.currentChar)
		lexer.readChar()
	}
	// consume closing delimiter
	lexer.readChar()

	lexeme := string(lexer.characters[initPos:lexer.position])
	lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.STRING, string(value), lexeme, lexer.path, line, column))
}

// createToken processes the current character and appends a token if
// applicable, advancing the lexer past whatever it consumed.
func (lexer *Lexer) createToken() {
	lexer.skipWhiteSpace()
	if lexer.isFinished() && lexer.currentChar == rune(0) {
		return
	}

	line, column := lexer.lineCount, lexer.column

	simple := func(tokenType token.TokenType) {
		lexer.tokens = append(lexer.tokens, token.CreateToken(tokenType, lexer.path, line, column))
		lexer.readChar()
	}

	switch lexer.currentChar {
	case '(':
		simple(token.LPA)
	case ')':
		simple(token.RPA)
	case '{':
		simple(token.LCUR)
	case '}':
		simple(token.RCUR)
	case '[':
		simple(token.LARR)
	case ']':
		simple(token.RARR)
	case ';':
		simple(token.SEMICOLON)
	case ',':
		simple(token.COMMA)
	case ':':
		simple(token.COLON)
	case '*':
		simple(token.MULT)
	case '+':
		simple(token.ADD)
	case '-':
		simple(token.SUB)
	case '%':
		simple(token.MOD)
	case '/':
		if lexer.peek() == '/' {
			lexer.handleLineComment()
			return
		}
		if lexer.peek() == '*' {
			lexer.handleBlockComment()
			return
		}
		simple(token.DIV)
	case '=':
		lexer.readChar()
		if lexer.isMatch('=') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.EQUAL_EQUAL, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.ASSIGN, lexer.path, line, column))
		}
	case '!':
		lexer.readChar()
		if lexer.isMatch('=') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.NOT_EQUAL, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.BANG, lexer.path, line, column))
		}
	case '<':
		lexer.readChar()
		if lexer.isMatch('=') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LESS_EQUAL, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LESS, lexer.path, line, column))
		}
	case '>':
		lexer.readChar()
		if lexer.isMatch('=') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LARGER_EQUAL, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LARGER, lexer.path, line, column))
		}
	case '&':
		lexer.readChar()
		if lexer.isMatch('&') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LOGICAL_AND, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.ILLEGAL, nil, "&", lexer.path, line, column))
		}
	case '|':
		lexer.readChar()
		if lexer.isMatch('|') {
			lexer.tokens = append(lexer.tokens, token.CreateToken(token.LOGICAL_OR, lexer.path, line, column))
		} else {
			lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.ILLEGAL, nil, "|", lexer.path, line, column))
		}
	case '"', '\'':
		lexer.handleStringLiteral()
	default:
		if isLetter(lexer.currentChar) {
			lexer.handleIdentifier()
		} else if isNumber(lexer.currentChar) {
			lexer.handleNumber()
		} else {
			illegal := string(lexer.currentChar)
			lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.ILLEGAL, nil, illegal, lexer.path, line, column))
			lexer.readChar()
		}
	}
}

// Scan performs lexical analysis on the input and returns the full token
// stream, terminated by an EOF token. Scan never returns an error: any
// unrecognized input surfaces as an ILLEGAL token in the stream, for the
// parser to report.
func (lexer *Lexer) Scan() []token.Token {
	for !(lexer.isFinished() && lexer.currentChar == rune(0)) {
		lexer.createToken()
	}
	lexer.tokens = append(lexer.tokens, token.CreateToken(token.EOF, lexer.path, lexer.lineCount, lexer.column))
	return lexer.tokens
}
