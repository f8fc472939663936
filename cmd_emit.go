package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/parser"

	"github.com/google/subcommands"
)

// emitCmd compiles a source file and writes out its bytecode, without
// executing it.
type emitCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*emitCmd) Name() string { return "emit" }
func (*emitCmd) Synopsis() string {
	return "Emit the compiled bytecode for a source file"
}
func (*emitCmd) Usage() string {
	return `emit <file.lumen>:
  Compile a file without executing it, writing its bytecode to disk.
`
}

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", true, "write a human-readable disassembly to a .lnd file")
	f.BoolVar(&cmd.dumpBytecode, "dump-bytecode", true, "write the encoded bytecode to a .lnc file")
}

func (cmd *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	sourceFile := args[0]

	data, err := os.ReadFile(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	tokens := lexer.New(sourceFile, string(data)).Scan()

	p := parser.Make(tokens, sourceFile)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 parsing error:\n")
		for _, parseErr := range parseErrs {
			fmt.Fprintf(os.Stderr, "\t%v\n", parseErr)
		}
		return subcommands.ExitUsageError
	}

	astCompiler := compiler.NewASTCompiler()
	if _, err := astCompiler.CompileAST(statements); err != nil {
		fmt.Fprintf(os.Stderr, "💥 compilation error:\n\t%v\n", err)
		return subcommands.ExitUsageError
	}

	stem := strings.TrimSuffix(sourceFile, ".lumen")

	if cmd.dumpBytecode {
		if err := astCompiler.DumpBytecode(stem + ".lnc"); err != nil {
			fmt.Fprintf(os.Stderr, "💥 dump bytecode error:\n\t%s\n", err.Error())
			return subcommands.ExitUsageError
		}
	}

	if cmd.disassemble {
		if _, err := astCompiler.DisassembleBytecode(true, stem+".lnd"); err != nil {
			fmt.Fprintf(os.Stderr, "💥 disassemble error:\n\t%s\n", err.Error())
			return subcommands.ExitUsageError
		}
	}

	return subcommands.ExitSuccess
}
