package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lumen/ast"
	"lumen/token"
)

func printerIdent(name string) ast.Ident {
	return ast.Ident{Name: token.CreateLiteralToken(token.IDENTIFIER, nil, name, "t.lumen", 1, 1)}
}

func TestPrintASTJSONExprStmtCall(t *testing.T) {
	stmts := []ast.Stmt{
		ast.ExprStmt{Expression: ast.Call{
			Callee:    printerIdent("print"),
			Arguments: []ast.Expression{ast.Number{Value: 42}},
		}},
	}

	jsonString, err := PrintASTJSON(stmts)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonString), &out))
	require.Len(t, out, 1)

	node := out[0]
	require.Equal(t, "ExprStmt", node["type"])

	call := node["expression"].(map[string]any)
	require.Equal(t, "Call", call["type"])
	require.Equal(t, []any{float64(42)}, call["arguments"])
}

func TestPrintASTJSONLetWithNilInitializer(t *testing.T) {
	name := token.CreateLiteralToken(token.IDENTIFIER, nil, "x", "t.lumen", 1, 1)
	stmts := []ast.Stmt{
		ast.Let{Name: name, Initializer: nil},
	}

	jsonStr, err := PrintASTJSON(stmts)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonStr), &out))
	require.Len(t, out, 1)

	node := out[0]
	require.Equal(t, "Let", node["type"])
	require.Equal(t, "x", node["name"])

	initVal, exists := node["initializer"]
	require.True(t, exists)
	require.Nil(t, initVal)
}

func TestPrintASTJSONBinaryExpression(t *testing.T) {
	stmts := []ast.Stmt{
		ast.ExprStmt{Expression: ast.Binary{
			Left:     ast.Number{Value: 1},
			Operator: token.CreateToken(token.ADD, "t.lumen", 1, 1),
			Right:    ast.Number{Value: 2},
		}},
	}

	jsonStr, err := PrintASTJSON(stmts)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonStr), &out))
	require.Len(t, out, 1)

	node := out[0]
	require.Equal(t, "ExprStmt", node["type"])

	expr := node["expression"].(map[string]any)
	require.Equal(t, "Binary", expr["type"])
	require.Equal(t, "+", expr["operator"])
	require.Equal(t, float64(1), expr["left"])
	require.Equal(t, float64(2), expr["right"])
}

func TestWriteASTJSONToFile(t *testing.T) {
	stmts := []ast.Stmt{
		ast.ExprStmt{Expression: ast.String{Value: "hello lumen!"}},
	}

	filePath := filepath.Join(t.TempDir(), "lumen_ast_printer_test.json")

	require.NoError(t, WriteASTJSONToFile(stmts, filePath))

	bytes, err := os.ReadFile(filePath)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(bytes, &out))
	require.Len(t, out, 1)

	node := out[0]
	require.Equal(t, "ExprStmt", node["type"])
	require.Equal(t, "hello lumen!", node["expression"])
}
