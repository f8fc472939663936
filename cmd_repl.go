package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/parser"
	"lumen/token"
	"lumen/vm"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
)

// replCmd runs an interactive read-eval-print loop: every line typed is
// appended to a growing source buffer, compiled from scratch and executed
// once the buffer holds a complete statement.
type replCmd struct {
	disassemble  bool
	dumpBytecode bool
	dumpAST      bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive Lumen session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive Lumen session.
`
}

func (cmd *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", false, "print the disassembled bytecode for each evaluated line")
	f.BoolVar(&cmd.dumpBytecode, "dump-bytecode", false, "write the encoded bytecode for each evaluated line to a .lnc file")
	f.BoolVar(&cmd.dumpAST, "dump-ast", false, "write the AST for each evaluated line to ast.json")
}

func (cmd *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to Lumen!")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err.Error())
		return subcommands.ExitFailure
	}
	defer rl.Close()

	machine := vm.New()
	var buffer strings.Builder

	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				buffer.Reset()
				continue
			}
			if errors.Is(err, io.EOF) {
				return subcommands.ExitSuccess
			}
			fmt.Fprintf(os.Stderr, "💥 %s\n", err.Error())
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		tokens := lexer.New("<repl>", source).Scan()
		if !isInputReady(tokens) {
			continue
		}

		p := parser.Make(tokens, "<repl>")
		statements, parseErrs := p.Parse()
		if len(parseErrs) > 0 {
			// If every parse error sits at the EOF token, the user hasn't
			// finished typing yet; keep accumulating lines.
			if allParseErrorsAtEOF(parseErrs, tokens[len(tokens)-1]) {
				continue
			}
			for _, parseErr := range parseErrs {
				fmt.Fprintln(os.Stdout, parseErr)
			}
			buffer.Reset()
			continue
		}

		astCompiler := compiler.NewASTCompiler()
		bytecode, err := astCompiler.CompileAST(statements)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			buffer.Reset()
			continue
		}

		if cmd.disassemble {
			disassembled, err := astCompiler.DisassembleBytecode(false, "")
			if err != nil {
				fmt.Fprintf(os.Stderr, "💥 disassemble error: %s\n", err.Error())
			} else {
				fmt.Println(disassembled)
			}
		}
		if cmd.dumpBytecode {
			if err := astCompiler.DumpBytecode("repl.lnc"); err != nil {
				fmt.Fprintf(os.Stderr, "💥 dump bytecode error: %s\n", err.Error())
			}
		}
		if cmd.dumpAST {
			if err := p.PrintToFile(statements, "ast.json"); err != nil {
				fmt.Fprintf(os.Stderr, "💥 dump AST error: %s\n", err.Error())
			}
		}

		if err := machine.Run(bytecode); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		buffer.Reset()
	}
}

// historyFilePath returns where the REPL's line history is persisted. If
// the user's home directory can't be resolved, history is simply not
// persisted across sessions.
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.lumen_history"
}

// isInputReady reports whether tokens form a complete statement: braces
// must balance, and the last non-EOF token must not be one that obviously
// expects more input to follow.
func isInputReady(tokens []token.Token) bool {
	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.MOD,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.LOGICAL_AND,
		token.LOGICAL_OR,
		token.COMMA,
		token.LPA,
		token.LCUR,
		token.IF,
		token.ELSE,
		token.WHILE,
		token.FOR,
		token.FUNC,
		token.RETURN,
		token.VAR,
		token.CONST:
		return false
	}
	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}

// allParseErrorsAtEOF reports whether every parse error is a syntax error
// positioned at the EOF token, meaning the buffer is an incomplete
// statement rather than a genuinely malformed one.
func allParseErrorsAtEOF(parseErrs []error, eof token.Token) bool {
	if len(parseErrs) == 0 {
		return false
	}
	for _, parseErr := range parseErrs {
		syntaxErr, ok := parseErr.(parser.SyntaxError)
		if !ok {
			return false
		}
		if syntaxErr.Line != eof.Line || syntaxErr.Column != eof.Column {
			return false
		}
	}
	return true
}
