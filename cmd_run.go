package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/parser"
	"lumen/vm"

	"github.com/google/subcommands"
)

// runCmd tokenizes, parses, compiles and executes a source file in one
// shot.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute a Lumen source file" }
func (*runCmd) Usage() string {
	return `run <file.lumen>:
  Execute Lumen code.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	tokens := lexer.New(filename, string(data)).Scan()

	p := parser.Make(tokens, filename)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		for _, parseErr := range parseErrs {
			fmt.Fprintln(os.Stderr, parseErr)
		}
		return subcommands.ExitUsageError
	}

	astCompiler := compiler.NewASTCompiler()
	bytecode, err := astCompiler.CompileAST(statements)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitUsageError
	}

	machine := vm.New()
	if err := machine.Run(bytecode); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitUsageError
	}

	return subcommands.ExitSuccess
}
