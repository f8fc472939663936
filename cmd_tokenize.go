package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lumen/lexer"

	"github.com/google/subcommands"
)

// tokenizeCmd scans a source file and prints its token stream, one token
// per line. Useful for inspecting how the lexer handles a tricky input
// without running the rest of the pipeline.
type tokenizeCmd struct{}

func (*tokenizeCmd) Name() string     { return "tokenize" }
func (*tokenizeCmd) Synopsis() string { return "Print the token stream for a source file" }
func (*tokenizeCmd) Usage() string {
	return `tokenize <file.lumen>:
  Scan a file and print its tokens.
`
}
func (*tokenizeCmd) SetFlags(f *flag.FlagSet) {}

func (*tokenizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	sourceFile := args[0]

	data, err := os.ReadFile(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	tokens := lexer.New(sourceFile, string(data)).Scan()
	for _, tok := range tokens {
		fmt.Printf("%4d:%-3d %-12s %q\n", tok.Line, tok.Column, tok.TokenType, tok.Lexeme)
	}

	return subcommands.ExitSuccess
}
