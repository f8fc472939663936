package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lumen/lexer"
	"lumen/parser"
)

// compileSource runs the full tokenize -> parse -> compile pipeline and
// fails the test on any error along the way.
func compileSource(t *testing.T, source string) Bytecode {
	t.Helper()

	tokens := lexer.New("test.lumen", source).Scan()

	p := parser.Make(tokens, "test.lumen")
	statements, parseErrors := p.Parse()
	require.Empty(t, parseErrors)

	bytecode, err := NewASTCompiler().CompileAST(statements)
	require.NoError(t, err)
	return bytecode
}

// TestFullPipelineArithmetic demonstrates the complete pipeline from source
// text to bytecode for a handful of arithmetic expressions.
func TestFullPipelineArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"addition", "5 + 1;", []string{"OP_CONSTANT", "OP_CONSTANT", "OP_ADD", "OP_POP"}},
		{"multiplication", "5 * 3;", []string{"OP_CONSTANT", "OP_CONSTANT", "OP_MULTIPLY", "OP_POP"}},
		{"negation", "-5;", []string{"OP_CONSTANT", "OP_NEGATE", "OP_POP"}},
		{"precedence", "5 * 3 + 2;", []string{"OP_CONSTANT", "OP_CONSTANT", "OP_MULTIPLY", "OP_CONSTANT", "OP_ADD", "OP_POP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bytecode := compileSource(t, tt.source)
			disassembled := Disassemble(bytecode.Instructions)
			for _, op := range tt.want {
				require.Contains(t, disassembled, op)
			}
		})
	}
}

// TestFullPipelineFunctionDeclaration exercises the three-pass compilation
// algorithm end to end: a function declared after its first call site still
// compiles, and lands in Bytecode.Functions under its own name.
func TestFullPipelineFunctionDeclaration(t *testing.T) {
	bytecode := compileSource(t, `
		print(square(4));
		fun square(n) {
			return n * n;
		}
	`)

	proto, ok := bytecode.Functions["square"]
	require.True(t, ok)
	require.Equal(t, 1, proto.Arity)

	disassembled := Disassemble(bytecode.Instructions)
	require.Contains(t, disassembled, "OP_CALL_NAME")
}

// TestFullPipelineControlFlow exercises if/else and while lowering.
func TestFullPipelineControlFlow(t *testing.T) {
	bytecode := compileSource(t, `
		let i = 0;
		while (i < 3) {
			if (i == 1) {
				print("one");
			} else {
				print("other");
			}
			i = i + 1;
		}
	`)

	disassembled := Disassemble(bytecode.Instructions)
	require.Contains(t, disassembled, "OP_JUMP_IF_FALSE")
	require.Contains(t, disassembled, "OP_JUMP")
}
