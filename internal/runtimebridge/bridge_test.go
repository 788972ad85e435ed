package runtimebridge

import (
	"testing"

	"github.com/stretchr/testify/require"
	"tinygo.org/x/go-llvm"

	"breadc/internal/analysis"
	"breadc/internal/ast"
	"breadc/internal/codegen"
	"breadc/internal/types"
	"breadc/internal/util"
)

func TestMethodKeyJoinsClassAndMethod(t *testing.T) {
	require.Equal(t, "Animal.speak", methodKey("Animal", "speak"))
	require.Equal(t, "Animal.init", methodKey("Animal", "init"))
}

func TestMethodKeyDistinguishesClasses(t *testing.T) {
	require.NotEqual(t, methodKey("Cat", "speak"), methodKey("Dog", "speak"))
}

func TestBridgeIsAvailableNilSafe(t *testing.T) {
	var b *Bridge
	require.False(t, b.IsAvailable())
}

// stubRuntime gives a trivial, test-only body to every runtime ABI
// function codegen.BuildMain's synthesized program below actually calls.
// The real runtime (breadrt) is an external C archive linked in by the
// system linker at emitExe time (spec.md §1); a JIT test run out of this
// package has no such linkage, so MCJIT can't resolve those symbols
// against the host process. Defining the bodies directly in the module
// keeps the test hermetic: a Value is stood in for here as one i64 slot,
// just enough to round-trip an int literal through var_decl/print.
func stubRuntime(t *testing.T, cg *codegen.Cg) {
	t.Helper()

	noop := func(name string) {
		fn := cg.RT(name)
		bb := llvm.AddBasicBlock(fn, "entry")
		cg.Builder.SetInsertPointAtEnd(bb)
		cg.Builder.CreateRetVoid()
	}
	for _, name := range []string{
		"memory_init", "memory_cleanup",
		"string_intern_init", "string_intern_cleanup",
		"builtin_init", "builtin_cleanup",
		"error_init", "error_cleanup",
		"push_scope", "class_resolve_inheritance",
	} {
		noop(name)
	}

	i64ptr := llvm.PointerType(cg.Int64Ty, 0)

	sizeFn := cg.RT("value_size")
	bb := llvm.AddBasicBlock(sizeFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	cg.Builder.CreateRet(llvm.ConstInt(cg.Int64Ty, 8, false))

	scopeDepthFn := cg.RT("scope_depth")
	bb = llvm.AddBasicBlock(scopeDepthFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	cg.Builder.CreateRet(llvm.ConstInt(cg.Int32Ty, 0, false))

	popFn := cg.RT("pop_to_scope_depth")
	bb = llvm.AddBasicBlock(popFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	cg.Builder.CreateRetVoid()

	nilFn := cg.RT("value_set_nil")
	bb = llvm.AddBasicBlock(nilFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	slot := cg.Builder.CreateBitCast(nilFn.Param(0), i64ptr, "")
	cg.Builder.CreateStore(llvm.ConstInt(cg.Int64Ty, 0, false), slot)
	cg.Builder.CreateRetVoid()

	setIntFn := cg.RT("value_set_int")
	bb = llvm.AddBasicBlock(setIntFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	slot = cg.Builder.CreateBitCast(setIntFn.Param(0), i64ptr, "")
	cg.Builder.CreateStore(setIntFn.Param(1), slot)
	cg.Builder.CreateRetVoid()

	getIntFn := cg.RT("value_get_int")
	bb = llvm.AddBasicBlock(getIntFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	slot = cg.Builder.CreateBitCast(getIntFn.Param(0), i64ptr, "")
	cg.Builder.CreateRet(cg.Builder.CreateLoad(slot, ""))

	copyFn := cg.RT("value_copy")
	bb = llvm.AddBasicBlock(copyFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	src := cg.Builder.CreateBitCast(copyFn.Param(0), i64ptr, "")
	dst := cg.Builder.CreateBitCast(copyFn.Param(1), i64ptr, "")
	cg.Builder.CreateStore(cg.Builder.CreateLoad(src, ""), dst)
	cg.Builder.CreateRetVoid()

	varDeclFn := cg.RT("var_decl")
	bb = llvm.AddBasicBlock(varDeclFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	cg.Builder.CreateRet(llvm.ConstInt(cg.Int32Ty, 0, false))

	captured := llvm.AddGlobal(cg.Module, cg.Int64Ty, "__test_captured")
	captured.SetInitializer(llvm.ConstInt(cg.Int64Ty, 0, false))

	printFn := cg.RT("print")
	bb = llvm.AddBasicBlock(printFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	arg := cg.Builder.CreateBitCast(printFn.Param(0), i64ptr, "")
	cg.Builder.CreateStore(cg.Builder.CreateLoad(arg, ""), captured)
	cg.Builder.CreateRetVoid()
}

// TestBridgeExecuteMainRunsSynthesizedProgram builds "let x: Int = 40;
// print(x)" through codegen.BuildMain exactly as driver.Build does, JITs
// the module through Bridge, and asserts the synthesized main actually ran:
// it returns 0, and the printed value made it through var_decl/print.
func TestBridgeExecuteMainRunsSynthesizedProgram(t *testing.T) {
	root := ast.Program(
		ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(40)),
		ast.PrintStmt(ast.Ident("x")),
	)
	cg := codegen.New("jit_test", util.NewDiag(false))
	cg.Stability = analysis.Analyze(root)
	cg.Escape = analysis.AnalyzeEscape(root)
	defer cg.Dispose()

	initFn := codegen.BuildRuntimeInitClasses(cg)
	_, err := codegen.BuildMain(cg, initFn, root.Children)
	require.NoError(t, err)

	stubRuntime(t, cg)

	resultTy := llvm.FunctionType(cg.Int64Ty, nil, false)
	resultFn := llvm.AddFunction(cg.Module, "__test_result", resultTy)
	bb := llvm.AddBasicBlock(resultFn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)
	cg.Builder.CreateRet(cg.Builder.CreateLoad(cg.Module.NamedGlobal("__test_captured"), ""))

	require.NoError(t, llvm.VerifyModule(cg.Module, llvm.ReturnStatusAction))

	bridge, err := New(cg)
	require.NoError(t, err)
	defer bridge.Dispose()

	ret, err := bridge.ExecuteMain()
	require.NoError(t, err)
	require.EqualValues(t, 0, ret)

	gv := bridge.engine.RunFunction(resultFn, nil)
	require.EqualValues(t, 40, gv.Int(true))
}
