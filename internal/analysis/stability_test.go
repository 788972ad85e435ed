package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"breadc/internal/ast"
	"breadc/internal/types"
)

func TestStabilityLiteralsAreStableConstants(t *testing.T) {
	lit := ast.Int(42)
	prog := ast.Program(ast.PrintStmt(lit))
	info := Analyze(prog)
	got := info[lit]
	require.NotNil(t, got)
	require.Equal(t, Stable, got.Stability)
	require.True(t, got.IsConstant)
	require.Equal(t, types.TypeInt, got.Type.Base)
}

func TestStabilityUnmutatedLocalIsStable(t *testing.T) {
	decl := ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(1))
	ref := ast.Ident("x")
	prog := ast.Program(ast.FunctionDeclStmt("f", nil, nil, ast.Blk(decl, ast.PrintStmt(ref))))
	info := Analyze(prog)
	got := info[ref]
	require.NotNil(t, got)
	require.Equal(t, Stable, got.Stability)
	require.Equal(t, 0, got.MutationCount)
}

func TestStabilitySingleMutationOutsideLoopIsConditional(t *testing.T) {
	decl := ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(1))
	ref := ast.Ident("x")
	assign := ast.AssignStmt("x", "", ast.Int(2))
	prog := ast.Program(ast.FunctionDeclStmt("f", nil, nil,
		ast.Blk(decl, ast.PrintStmt(ref), assign)))
	info := Analyze(prog)
	got := info[ref]
	require.Equal(t, Conditional, got.Stability)
	require.Equal(t, 1, got.MutationCount)
}

func TestStabilityMutatedInLoopIsUnstable(t *testing.T) {
	decl := ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(0))
	ref := ast.Ident("x")
	body := ast.Blk(ast.PrintStmt(ref), ast.AssignStmt("x", "+", ast.Int(1)))
	loop := ast.WhileStmt(ast.Bool(true), body)
	prog := ast.Program(ast.FunctionDeclStmt("f", nil, nil, ast.Blk(decl, loop)))
	info := Analyze(prog)
	got := info[ref]
	require.Equal(t, Unstable, got.Stability)
}

func TestStabilityConstIsAlwaysStable(t *testing.T) {
	decl := ast.VarDeclStmt("x", types.Scalar(types.TypeInt), true, ast.Int(1))
	ref := ast.Ident("x")
	body := ast.Blk(ast.PrintStmt(ref), ast.AssignStmt("x", "", ast.Int(2)))
	loop := ast.WhileStmt(ast.Bool(true), body)
	prog := ast.Program(ast.FunctionDeclStmt("f", nil, nil, ast.Blk(decl, loop)))
	info := Analyze(prog)
	got := info[ref]
	require.Equal(t, Stable, got.Stability)
	require.True(t, got.IsConstant)
}

func TestStabilityUnknownVarIsUnstable(t *testing.T) {
	ref := ast.Ident("nope")
	prog := ast.Program(ast.PrintStmt(ref))
	info := Analyze(prog)
	require.Equal(t, Unstable, info[ref].Stability)
}

func TestStabilityBinaryBothStableIsStable(t *testing.T) {
	bin := ast.Bin("+", ast.Int(1), ast.Int(2))
	prog := ast.Program(ast.PrintStmt(bin))
	info := Analyze(prog)
	got := info[bin]
	require.Equal(t, Stable, got.Stability)
	require.True(t, got.IsConstant)
	require.Equal(t, types.TypeInt, got.Type.Base)
}

func TestStabilityCallIsUnstable(t *testing.T) {
	call := ast.CallExpr("foo")
	prog := ast.Program(ast.PrintStmt(call))
	info := Analyze(prog)
	require.Equal(t, Unstable, info[call].Stability)
}
