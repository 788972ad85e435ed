package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"breadc/internal/ast"
	"breadc/internal/util"
)

// runtimeInitOrder and runtimeCleanupOrder are the exact init/teardown
// call sequence spec.md §4.I steps 4/6 name. Cleanup runs in reverse of
// init, mirroring llvm_backend_codegen.c's main-build sequence exactly.
var runtimeInitOrder = []string{"memory_init", "string_intern_init", "builtin_init", "error_init"}
var runtimeCleanupOrder = []string{"error_cleanup", "builtin_cleanup", "string_intern_cleanup", "memory_cleanup"}

// BuildMain synthesizes the process entry point: an i32-returning main
// that runs runtime_init_classes first (so every class is registered
// before any user code, spec.md §4.G), then the runtime subsystem init
// calls, then the program's top-level statement list, then the
// subsystem cleanup calls in reverse order and `ret i32 0` if the
// statement list didn't already terminate with one.
//
// Ground: llvm_backend_codegen.c's main-build sequence — main_ty =
// i32(), no params; init_classes/memory_init/string_intern_init/
// builtin_init/error_init in that order; cg_build_stmt_list over the
// top-level program; cleanup calls in exact reverse order; a guarded
// `ret i32 0` only when the final block has no terminator yet.
func BuildMain(cg *Cg, initClassesFn llvm.Value, stmts []*ast.Node) (llvm.Value, error) {
	ft := llvm.FunctionType(cg.Int32Ty, nil, false)
	fn := llvm.AddFunction(cg.Module, "main", ft)
	bb := llvm.AddBasicBlock(fn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)

	cg.Builder.CreateCall(initClassesFn, nil, "")
	for _, name := range runtimeInitOrder {
		cg.Builder.CreateCall(cg.RT(name), nil, "")
	}

	fc := &FuncCtx{Cg: cg, Fn: fn, Scopes: &util.Stack{}, Loops: &util.Stack{}}
	fc.PushScope()
	depth := cg.Builder.CreateCall(cg.RT("scope_depth"), nil, "")
	baseSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "base_depth")
	cg.Builder.CreateStore(depth, baseSlot)
	fc.BaseDepthSlot = baseSlot
	cg.Builder.CreateCall(cg.RT("push_scope"), nil, "")

	terminated := false
	for _, s := range stmts {
		if s.Kind == ast.Return {
			return llvm.Value{}, fmt.Errorf("codegen: return is not valid as a top-level program statement")
		}
		done, err := fc.genStmt(s)
		if err != nil {
			return llvm.Value{}, err
		}
		if done {
			terminated = true
			break
		}
	}

	if !terminated {
		cg.PopToScopeDepth(fc.BaseDepthSlot, true)
	}
	for _, name := range runtimeCleanupOrder {
		cg.Builder.CreateCall(cg.RT(name), nil, "")
	}
	if !terminated {
		cg.Builder.CreateRet(llvm.ConstInt(cg.Int32Ty, 0, false))
	}
	return fn, nil
}
