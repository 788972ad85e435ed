package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"breadc/internal/ast"
	"breadc/internal/types"
	"breadc/internal/util"
)

// simpleProgram is a bare top-level statement list (shaped like spec.md §8
// scenario 1: "let x: Int = 1; print(x)" with no enclosing function) — Build must
// synthesize its own main around it rather than require one from source.
func simpleProgram() *ast.Node {
	return ast.Program(
		ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(1)),
		ast.PrintStmt(ast.Ident("x")),
	)
}

func buildOpts(t *testing.T, emit util.EmitMode) util.Options {
	t.Helper()
	dir := t.TempDir()
	return util.Options{
		Src:     "sample.bread",
		Out:     filepath.Join(dir, "out"),
		Threads: 1,
		Emit:    emit,
	}
}

func TestBuildEmitLLProducesModuleText(t *testing.T) {
	opt := buildOpts(t, util.EmitLL)
	opt.Out += ".ll"
	err := Build(opt, simpleProgram())
	require.NoError(t, err)

	data, err := os.ReadFile(opt.Out)
	require.NoError(t, err)
	require.Contains(t, string(data), "define i32 @main")
	require.Contains(t, string(data), "call void @runtime_init_classes")
	require.Contains(t, string(data), "call void @memory_init")
	require.Contains(t, string(data), "call void @error_cleanup")
	require.Contains(t, string(data), "ret i32 0")
}

func TestBuildRejectsNonProgramRoot(t *testing.T) {
	opt := buildOpts(t, util.EmitLL)
	err := Build(opt, ast.Blk())
	require.Error(t, err)
	require.True(t, IsErrorKind(err, CompileError))
}

func TestBuildRejectsMethodAtTopLevel(t *testing.T) {
	opt := buildOpts(t, util.EmitLL)
	method := ast.MethodDeclStmt("Foo", "bar", nil, nil, ast.Blk(ast.ReturnStmt(nil)))
	err := Build(opt, ast.Program(method))
	require.Error(t, err)
	require.True(t, IsErrorKind(err, CodegenInternalError))
}

func TestBuildWithClassLowersMethods(t *testing.T) {
	opt := buildOpts(t, util.EmitLL)
	opt.Out += ".ll"

	init := ast.FunctionDeclStmt("init", nil, nil, ast.Blk(ast.ReturnStmt(nil)))
	cls := ast.ClassDeclStmt(ast.ClassDeclData{
		Name:        "Counter",
		FieldNames:  []string{"n"},
		Constructor: init,
	})
	helper := ast.FunctionDeclStmt("helper", nil, nil, ast.Blk(ast.ReturnStmt(nil)))

	err := Build(opt, ast.Program(cls, helper))
	require.NoError(t, err)

	data, err := os.ReadFile(opt.Out)
	require.NoError(t, err)
	require.Contains(t, string(data), "Counter.init")
}

func TestErrorKindStringIsHumanReadable(t *testing.T) {
	require.Equal(t, "VerificationError", VerificationError.String())
	require.Equal(t, "JITError", JITError.String())
}
