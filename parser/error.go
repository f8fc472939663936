package parser

import "fmt"

// SyntaxError describes a lexical or syntactic error encountered while
// parsing a source file, including the file it came from so diagnostics
// remain accurate across `include`-spliced token streams.
type SyntaxError struct {
	Path    string
	Line    int32
	Column  int
	Message string
}

func CreateSyntaxError(path string, line int32, column int, message string) SyntaxError {
	return SyntaxError{
		Path:    path,
		Line:    line,
		Column:  column,
		Message: message,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 Lumen syntax error:\n%s:%d:%d - %s", e.Path, e.Line, e.Column, e.Message)
}
