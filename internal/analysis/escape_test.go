package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"breadc/internal/ast"
)

func TestEscapeLiteralIsNoneAndStackAllocatable(t *testing.T) {
	lit := ast.Int(1)
	prog := ast.Program(ast.PrintStmt(lit))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscNone, info[lit].Kind)
	require.True(t, info[lit].CanStackAllocate)
}

func TestEscapeArithmeticIsNone(t *testing.T) {
	bin := ast.Bin("+", ast.Int(1), ast.Int(2))
	prog := ast.Program(ast.PrintStmt(bin))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscNone, info[bin].Kind)
}

func TestEscapeContainerLiteralIsHeap(t *testing.T) {
	lit := ast.ArrayLitExpr(ast.Int(1), ast.Int(2))
	prog := ast.Program(ast.PrintStmt(lit))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscHeap, info[lit].Kind)
	require.False(t, info[lit].CanStackAllocate)
}

func TestEscapeCallArgumentIsParameter(t *testing.T) {
	arg := ast.Int(1)
	call := ast.CallExpr("f", arg)
	prog := ast.Program(ast.PrintStmt(call))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscParameter, info[arg].Kind)
	require.Equal(t, EscReturn, info[call].Kind)
}

func TestEscapeReturnPromotesExpression(t *testing.T) {
	ref := ast.Ident("x")
	ret := ast.ReturnStmt(ref)
	prog := ast.Program(ast.FunctionDeclStmt("f", nil, nil, ast.Blk(ret)))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscReturn, info[ref].Kind)
}

func TestEscapeIndexOfHeapBaseIsHeap(t *testing.T) {
	arr := ast.ArrayLitExpr(ast.Int(1))
	idx := ast.IndexExpr(arr, ast.Int(0), false)
	prog := ast.Program(ast.PrintStmt(idx))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscHeap, info[arr].Kind)
	require.Equal(t, EscHeap, info[idx].Kind)
}

func TestEscapeIndexOfPlainVarIsNone(t *testing.T) {
	ref := ast.Ident("x")
	idx := ast.IndexExpr(ref, ast.Int(0), false)
	prog := ast.Program(ast.PrintStmt(idx))
	info := AnalyzeEscape(prog)
	require.Equal(t, EscNone, info[idx].Kind)
}
