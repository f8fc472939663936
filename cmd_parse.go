package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lumen/lexer"
	"lumen/parser"

	"github.com/google/subcommands"
)

// parseCmd scans and parses a source file, printing its AST as JSON.
// Include directives are resolved, so the printed AST reflects exactly
// what the compiler would see.
type parseCmd struct{}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "Print the parsed AST for a source file, as JSON" }
func (*parseCmd) Usage() string {
	return `parse <file.lumen>:
  Scan and parse a file, printing its AST.
`
}
func (*parseCmd) SetFlags(f *flag.FlagSet) {}

func (*parseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	p := parser.Make(tokens, sourceFile)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		for _, parseErr := range parseErrs {
			fmt.Fprintln(os.Stderr, parseErr)
		}
		return subcommands.ExitUsageError
	}

	p.Print(statements)
	return subcommands.ExitSuccess
}
