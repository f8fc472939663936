package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lumen/ast"
	"lumen/lexer"
)

// countLetsNamed walks a statement tree, descending into Block, and counts
// Let declarations carrying the given name. Used to confirm an include
// expanded exactly once rather than merely "parsed without error".
func countLetsNamed(statements []ast.Stmt, name string) int {
	count := 0
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case ast.Block:
			count += countLetsNamed(s.Statements, name)
		case ast.Let:
			if s.Name.Lexeme == name {
				count++
			}
		}
	}
	return count
}

func parseMain(t *testing.T, dir string, source string) ([]ast.Stmt, []error) {
	t.Helper()
	mainPath := filepath.Join(dir, "main.lumen")
	tokens := lexer.New(mainPath, source).Scan()
	p := Make(tokens, mainPath)
	return p.Parse()
}

func writeSource(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestIncludeDedupProducesOneExpansion(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.lumen", `let shared = 1;`)

	statements, errs := parseMain(t, dir, `
		include "lib.lumen";
		include "lib.lumen";
	`)
	require.Empty(t, errs)
	require.Len(t, statements, 2)

	require.Equal(t, 1, countLetsNamed(statements, "shared"))

	first, ok := statements[0].(ast.Block)
	require.True(t, ok)
	require.Len(t, first.Statements, 1)

	second, ok := statements[1].(ast.Block)
	require.True(t, ok)
	require.Empty(t, second.Statements)
}

func TestCyclicIncludeTerminatesWithEmptySecondExpansion(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.lumen", `
		include "b.lumen";
		let x = 1;
	`)
	writeSource(t, dir, "b.lumen", `
		include "a.lumen";
		let y = 2;
	`)

	statements, errs := parseMain(t, dir, `include "a.lumen";`)
	require.Empty(t, errs)
	require.Len(t, statements, 1)

	// The cycle terminates rather than recursing forever, and both
	// declarations reachable before the cycle closes are still expanded.
	require.Equal(t, 1, countLetsNamed(statements, "x"))
	require.Equal(t, 1, countLetsNamed(statements, "y"))

	aBlock, ok := statements[0].(ast.Block)
	require.True(t, ok)
	require.Len(t, aBlock.Statements, 2)

	bBlock, ok := aBlock.Statements[0].(ast.Block)
	require.True(t, ok)
	require.Len(t, bBlock.Statements, 2)

	// b's own include of a resolves to an empty expansion: a was already
	// marked included when the top-level include of "a.lumen" began.
	reentrantABlock, ok := bBlock.Statements[0].(ast.Block)
	require.True(t, ok)
	require.Empty(t, reentrantABlock.Statements)
}

func TestMissingIncludeFileIsParseError(t *testing.T) {
	dir := t.TempDir()

	_, errs := parseMain(t, dir, `include "nope.lumen";`)
	require.Len(t, errs, 1)

	syntaxErr, ok := errs[0].(SyntaxError)
	require.True(t, ok)
	require.Contains(t, syntaxErr.Message, "cannot read included file")
}
