// Package runtimebridge drives a JIT-compiled module: it stands up the
// execution engine, runs runtime_init_classes to wire every class into
// the boxed-value runtime, and invokes compiled functions and methods by
// name (spec.md §4.H). It is the Go counterpart of
// codegen_runtime_bridge.c's execution-engine glue, expressed with
// go-llvm's ExecutionEngine.RunFunction rather than raw function-pointer
// casts, since Go has no portable way to call an arbitrary C ABI through
// a bare uintptr without one.
package runtimebridge

import (
	"fmt"
	"sync"
	"unsafe"

	"tinygo.org/x/go-llvm"

	"breadc/internal/codegen"
)

// CompiledMethod is a JIT-resident method/constructor, keyed by class and
// method name, ready to invoke through the execution engine.
//
// Ground: codegen_runtime_bridge.c's CompiledMethodInfo (class_name,
// method_name, llvm_function_name, compiled_fn); Fn replaces the raw
// function pointer since invocation goes through RunFunction instead.
type CompiledMethod struct {
	ClassName string
	Method    string
	Fn        llvm.Value
}

// Bridge owns one execution engine and the compiled-method registry built
// from it. Like Cg, it is built fresh per JIT run and carries no
// package-level state (spec.md §9).
//
// Unlike the C bridge, Bridge holds no separate class registry: class
// registration, field/method wiring, and inheritance resolution are
// already compiled into runtime_init_classes (class.go's
// BuildRuntimeInitClasses) and run once as IR via RunInit, rather than
// re-implemented against a parallel Go-side registry.
type Bridge struct {
	cg     *codegen.Cg
	engine llvm.ExecutionEngine

	mx      sync.Mutex
	methods map[string]*CompiledMethod // "Class.method" -> CompiledMethod
}

// New creates an MCJIT execution engine over cg's module and readies the
// bridge's registries. The module must already be verified (spec.md
// §4.I's verify step runs before this).
//
// Ground: codegen_runtime_bridge.c's cg_set_jit_module, which hands the
// module to the one global execution engine; here each Bridge owns its
// own engine instead of a process-wide singleton.
func New(cg *codegen.Cg) (*Bridge, error) {
	llvm.LinkInMCJIT()
	if err := llvm.InitializeNativeTarget(); err != nil {
		return nil, fmt.Errorf("runtimebridge: init native target: %w", err)
	}
	if err := llvm.InitializeNativeAsmPrinter(); err != nil {
		return nil, fmt.Errorf("runtimebridge: init native asm printer: %w", err)
	}

	opts := llvm.NewMCJITCompilerOptions()
	engine, err := llvm.NewMCJITCompiler(cg.Module, opts)
	if err != nil {
		return nil, fmt.Errorf("runtimebridge: create MCJIT compiler: %w", err)
	}

	return &Bridge{
		cg:      cg,
		engine:  engine,
		methods: make(map[string]*CompiledMethod),
	}, nil
}

// Dispose releases the execution engine. Must be called exactly once,
// after every ExecuteCompiledMethod call this run needs has returned.
//
// Ground: codegen_runtime_bridge.c's cg_cleanup_jit_engine/
// cg_cleanup_class_registry, collapsed into one call since Go's map
// values don't need the C version's manual linked-list frees.
func (b *Bridge) Dispose() {
	b.engine.Dispose()
}

func methodKey(className, method string) string {
	return className + "." + method
}

// runVoid invokes fn through the execution engine with ptrArgs as i8*
// generic-value arguments, matching the boxed ABI's "every parameter is a
// Value* or self-pointer, return is void" shape (spec.md §4.A). The C
// bridge needs a 0-3 arity switch to cast a raw function pointer to the
// matching C signature; RunFunction takes an arbitrary-length slice
// instead, so no arity specialization is needed here.
func (b *Bridge) runVoid(fn llvm.Value, ptrArgs []unsafe.Pointer) {
	args := make([]llvm.GenericValue, len(ptrArgs))
	for i1, p := range ptrArgs {
		args[i1] = llvm.NewGenericValueFromPointer(p)
	}
	b.engine.RunFunction(fn, args)
}

// RunInit invokes the module's runtime_init_classes function, the IR
// BuildRuntimeInitClasses synthesized (class.go): it registers every
// class's runtime definition, installs its compiled methods and
// constructor, and resolves inheritance, all in one pass. It must run
// before any ExecuteCompiledMethod call that touches a class.
//
// Ground: codegen_runtime_bridge.c's cg_connect_all_classes_to_runtime
// does this same sequence (register, connect methods, resolve
// inheritance) by calling the C runtime API directly from the bridge;
// here the sequence is already compiled IR, so the bridge just runs it
// once through the execution engine instead of re-deriving it in Go.
func (b *Bridge) RunInit() error {
	fn := b.cg.Module.NamedFunction("runtime_init_classes")
	if fn.IsNil() {
		return fmt.Errorf("runtimebridge: runtime_init_classes not found in module")
	}
	b.runVoid(fn, nil)
	return b.indexCompiledMethods()
}

// indexCompiledMethods populates the method registry from cg's class
// table so ExecuteCompiledMethod can look functions up by name without
// rescanning cg.Classes on every call.
//
// Ground: codegen_runtime_bridge.c's CompiledMethodInfo list, built by
// cg_connect_class_to_runtime's walk over method_functions/
// constructor_function — same population, just keyed into a map instead
// of a linked list.
func (b *Bridge) indexCompiledMethods() error {
	b.mx.Lock()
	defer b.mx.Unlock()

	for _, name := range b.cg.ClassOrder {
		cls := b.cg.Classes[name]
		if !cls.ConstructorFunc.IsNil() {
			b.methods[methodKey(cls.Name, "init")] = &CompiledMethod{
				ClassName: cls.Name, Method: "init", Fn: cls.ConstructorFunc,
			}
		}
		for i1, fn := range cls.MethodFuncs {
			if fn.IsNil() || i1 >= len(cls.MethodNames) {
				continue
			}
			b.methods[methodKey(cls.Name, cls.MethodNames[i1])] = &CompiledMethod{
				ClassName: cls.Name, Method: cls.MethodNames[i1], Fn: fn,
			}
		}
	}
	return nil
}

// IsAvailable reports whether the bridge has a live execution engine,
// mirroring cg_is_jit_available's nil-check on the global engine.
func (b *Bridge) IsAvailable() bool { return b != nil }

// ExecuteCompiledMethod looks up className.method and invokes it with out
// as the return-by-pointer slot, self (nil for a free function or a
// constructor's own fresh instance), and args in declaration order —
// spec.md §4.H's entry point for driving a compiled method from outside
// the module (e.g. a REPL or a host embedding the JIT).
//
// Ground: codegen_runtime_bridge.c's cg_execute_compiled_method, whose
// 0-3 arity switch exists only to satisfy C's static function-pointer
// typing; RunFunction's slice argument makes that switch unnecessary.
func (b *Bridge) ExecuteCompiledMethod(className, method string, out, self unsafe.Pointer, args []unsafe.Pointer) error {
	b.mx.Lock()
	cm, ok := b.methods[methodKey(className, method)]
	b.mx.Unlock()
	if !ok {
		return fmt.Errorf("runtimebridge: %s.%s has no compiled method", className, method)
	}

	ptrArgs := make([]unsafe.Pointer, 0, len(args)+2)
	ptrArgs = append(ptrArgs, out, self)
	ptrArgs = append(ptrArgs, args...)
	b.runVoid(cm.Fn, ptrArgs)
	return nil
}

// ValueSize returns the runtime's reported Value slot size by calling
// value_size() through the execution engine, so a host driving the JIT
// can allocate a correctly sized out-parameter buffer without hardcoding
// the opaque Value layout (spec.md §3 treats Value as runtime-sized).
func (b *Bridge) ValueSize() (uint64, error) {
	fn := b.cg.RT("value_size")
	if fn.IsNil() {
		return 0, fmt.Errorf("runtimebridge: value_size not declared")
	}
	gv := b.engine.RunFunction(fn, nil)
	return gv.Int(false), nil
}

// ExecuteFunction invokes a free (non-method) compiled function by its
// declared name with out as the return-by-pointer slot and args in
// declaration order. Used by a host embedding the JIT to drive an
// individual compiled function directly (the program's own entry point
// runs through ExecuteMain instead, since main has no out-parameter).
func (b *Bridge) ExecuteFunction(name string, out unsafe.Pointer, args []unsafe.Pointer) error {
	fn := b.cg.Module.NamedFunction(name)
	if fn.IsNil() {
		return fmt.Errorf("runtimebridge: function %q not found in module", name)
	}
	ptrArgs := make([]unsafe.Pointer, 0, len(args)+1)
	ptrArgs = append(ptrArgs, out)
	ptrArgs = append(ptrArgs, args...)
	b.runVoid(fn, ptrArgs)
	return nil
}

// ExecuteMain runs the module's synthesized entry point (codegen.BuildMain,
// spec.md §4.I steps 4-6): an i32(void) function, the opposite calling
// convention from every other compiled function — no out-parameter, no
// boxed arguments, a plain C-ABI integer return. main already carries its
// own runtime init/cleanup calls, so unlike ExecuteCompiledMethod callers
// this needs no separate RunInit beforehand.
func (b *Bridge) ExecuteMain() (int32, error) {
	fn := b.cg.Module.NamedFunction("main")
	if fn.IsNil() {
		return 0, fmt.Errorf("runtimebridge: module has no main function")
	}
	gv := b.engine.RunFunction(fn, nil)
	return int32(gv.Int(true)), nil
}
