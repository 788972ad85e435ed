// Package codegen lowers an analyzed ast.Node tree into LLVM IR against
// the boxed-value runtime ABI described in spec.md §6.
//
// Ground: ir/llvm/transform.go end to end for API usage (llvm.NewContext,
// ctx.NewBuilder/NewModule, llvm.AddFunction/AddBasicBlock,
// b.CreateAlloca/CreateCall/CreateCondBr, m.NamedFunction/NamedGlobal).
// The single package-level `globals symTab` the teacher uses for its
// string/function cache is retired in favor of fields on Cg per spec.md
// §9: "resources owned by the driver", not hidden singletons — a fresh
// Cg is built per compilation and nothing survives between runs.
package codegen

import (
	"fmt"
	"sync"

	"tinygo.org/x/go-llvm"

	"breadc/internal/analysis"
	"breadc/internal/ast"
	"breadc/internal/util"
)

// Class is the compile-time class record of spec.md §3's CgClass.
type Class struct {
	Name        string
	ParentName  string
	FieldNames    []string
	FieldDefaults []*ast.Node // Parallel to FieldNames; nil entry if no default.
	MethodNames   []string
	Methods       []*ast.Node // FunctionDecl nodes, parallel to MethodNames.
	Constructor   *ast.Node

	MethodFuncs     []llvm.Value // Filled in once methods are lowered.
	ConstructorFunc llvm.Value
	SyntheticCtor   bool // ConstructorFunc was synthesized from field defaults, no explicit init.
}

// CgFunction is the compile-time function record of spec.md §3.
type CgFunction struct {
	Name             string
	IR               llvm.Value
	Body             *ast.Node
	Params           []ast.ParamInfo
	RequiredParams   int
	IsMethod         bool
	ClassName        string
	BaseDepthSlot    llvm.Value // alloca'd i32 holding the runtime scope depth at entry.
}

// Cg bundles every resource one compilation needs: the LLVM context,
// module and builder, the runtime function table, and the registries
// spec.md §5 calls out as module-scoped caches (string interning, class
// records, deferred function bodies). All of it lives for exactly one
// driver.Build call.
type Cg struct {
	Ctx     llvm.Context
	Builder llvm.Builder
	Module  llvm.Module
	Diag    *util.Diag
	Labels  *util.Labeler

	VoidTy     llvm.Type
	Int1Ty     llvm.Type
	Int8Ty     llvm.Type
	Int32Ty    llvm.Type
	Int64Ty    llvm.Type
	DoubleTy   llvm.Type
	ValuePtrTy llvm.Type // i8*, the opaque boxed Value slot pointer.
	StrPtrTy   llvm.Type // i8*, an interned C string pointer.

	rt      map[string]llvm.Value
	rtMx    sync.Mutex

	stringGlobals map[string]llvm.Value // InternKey(s) -> global i8* constant.
	stringMx      sync.Mutex

	Funcs       []*CgFunction // Registered during the statement pass, lowered in the second pass.
	FuncsByName map[string]*CgFunction
	funcMx      sync.Mutex

	Classes    map[string]*Class
	ClassOrder []string // Declaration order, for the deterministic runtime-init pass.
	classMx    sync.Mutex

	Stability map[*ast.Node]*analysis.StabilityInfo
	Escape    map[*ast.Node]*analysis.EscapeInfo
}

// New constructs a Cg for module name, declares the runtime ABI functions,
// and returns it ready for statement lowering.
func New(moduleName string, diag *util.Diag) *Cg {
	ctx := llvm.NewContext()
	cg := &Cg{
		Ctx:           ctx,
		Builder:       ctx.NewBuilder(),
		Module:        ctx.NewModule(moduleName),
		Diag:          diag,
		Labels:        util.NewLabeler(),
		VoidTy:        ctx.VoidType(),
		Int1Ty:        ctx.Int1Type(),
		Int8Ty:        ctx.Int8Type(),
		Int32Ty:       ctx.Int32Type(),
		Int64Ty:       ctx.Int64Type(),
		DoubleTy:      ctx.DoubleType(),
		rt:            make(map[string]llvm.Value, 64),
		stringGlobals: make(map[string]llvm.Value, 64),
		Classes:       make(map[string]*Class),
	}
	cg.ValuePtrTy = llvm.PointerType(cg.Int8Ty, 0)
	cg.StrPtrTy = cg.ValuePtrTy
	cg.declareRuntime()
	return cg
}

// Dispose releases the builder and context. Must be called exactly once,
// after the module has been emitted (or JITed) and is no longer needed.
func (cg *Cg) Dispose() {
	cg.Builder.Dispose()
	cg.Ctx.Dispose()
}

// rtFunc is the shape of one runtime ABI entry from spec.md §6's table.
type rtFunc struct {
	name     string
	ret      func(cg *Cg) llvm.Type
	params   func(cg *Cg) []llvm.Type
	variadic bool
}

func (cg *Cg) declareRuntime() {
	specs := []rtFunc{
		{"value_size", func(cg *Cg) llvm.Type { return cg.Int64Ty }, nil, false},
		{"value_set_nil", voidRet, ptrParams(1), false},
		{"value_set_bool", voidRet, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.ValuePtrTy, cg.Int32Ty} }, false},
		{"value_set_int", voidRet, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.ValuePtrTy, cg.Int64Ty} }, false},
		{"value_set_float", voidRet, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.ValuePtrTy, cg.DoubleTy} }, false},
		{"value_set_double", voidRet, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.ValuePtrTy, cg.DoubleTy} }, false},
		{"value_set_string", voidRet, ptrParams(2), false},
		{"value_set_array", voidRet, ptrParams(2), false},
		{"value_set_dict", voidRet, ptrParams(2), false},
		{"value_set_class", voidRet, ptrParams(2), false},
		{"value_set_struct", voidRet, ptrParams(2), false},
		{"value_set_optional", voidRet, ptrParams(2), false},
		{"value_get_int", func(cg *Cg) llvm.Type { return cg.Int64Ty }, ptrParams(1), false},
		{"value_get_double", func(cg *Cg) llvm.Type { return cg.DoubleTy }, ptrParams(1), false},
		{"value_get_bool", i32Ret, ptrParams(1), false},
		{"value_get_type", i32Ret, ptrParams(1), false},
		{"value_copy", voidRet, ptrParams(2), false},
		{"value_release_value", voidRet, ptrParams(1), false},
		{"print", voidRet, ptrParams(1), false},
		{"is_truthy", i32Ret, ptrParams(1), false},
		{"unary_not", i32Ret, ptrParams(2), false},
		{"binary_op", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.Int8Ty, cg.ValuePtrTy, cg.ValuePtrTy, cg.ValuePtrTy}
		}, false},
		{"index_op", i32Ret, ptrParams(3), false},
		{"index_set_op", i32Ret, ptrParams(4), false},
		{"member_op", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.StrPtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"member_set_op", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.StrPtrTy, cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"struct_new", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy}
		}, false},
		{"struct_set_field_value_ptr", i32Ret, ptrParams(3), false},
		{"method_call_op", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.StrPtrTy, cg.Int32Ty, cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"var_decl", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy, cg.Int32Ty, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"var_decl_if_missing", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy, cg.Int32Ty, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"declare_loop_variable", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy, cg.Int32Ty, cg.Int64Ty}
		}, false},
		{"var_assign", i32Ret, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.StrPtrTy, cg.ValuePtrTy} }, false},
		{"var_load", i32Ret, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.StrPtrTy, cg.ValuePtrTy} }, false},
		{"push_scope", voidRet, nil, false},
		{"pop_scope", voidRet, nil, false},
		{"pop_to_scope_depth", voidRet, func(cg *Cg) []llvm.Type { return []llvm.Type{cg.Int32Ty} }, false},
		{"scope_depth", i32Ret, nil, false},
		{"array_new", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, nil, false},
		{"array_append_value", i32Ret, ptrParams(2), false},
		{"array_length", i32Ret, ptrParams(1), false},
		{"array_get", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"dict_new", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, nil, false},
		{"dict_set_value", i32Ret, ptrParams(3), false},
		{"dict_keys", i32Ret, ptrParams(2), false},
		{"range_simple", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.Int64Ty}
		}, false},
		{"range_create", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.Int64Ty, cg.Int64Ty, cg.Int64Ty}
		}, false},
		{"class_create_instance", func(cg *Cg) llvm.Type { return cg.ValuePtrTy }, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy, cg.StrPtrTy, cg.Int32Ty, cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"class_register_definition", voidRet, ptrParams(1), false},
		{"class_set_compiled_method", voidRet, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"class_set_compiled_method_by_name", voidRet, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.StrPtrTy, cg.ValuePtrTy}
		}, false},
		{"class_set_compiled_constructor", voidRet, ptrParams(2), false},
		{"class_resolve_inheritance", voidRet, nil, false},
		{"builtin_call_out", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.StrPtrTy, cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"super_init_simple", i32Ret, func(cg *Cg) []llvm.Type {
			return []llvm.Type{cg.ValuePtrTy, cg.Int32Ty, cg.ValuePtrTy}
		}, false},
		{"memory_init", voidRet, nil, false},
		{"memory_cleanup", voidRet, nil, false},
		{"string_intern_init", voidRet, nil, false},
		{"string_intern_cleanup", voidRet, nil, false},
		{"builtin_init", voidRet, nil, false},
		{"builtin_cleanup", voidRet, nil, false},
		{"error_init", voidRet, nil, false},
		{"error_cleanup", voidRet, nil, false},
	}
	for i1 := 0; i1 <= 3; i1++ {
		n := i1
		specs = append(specs, rtFunc{
			name: fmt.Sprintf("super_init_%d", n),
			ret:  i32Ret,
			params: func(cg *Cg) []llvm.Type {
				p := make([]llvm.Type, n+1)
				for j := range p {
					p[j] = cg.ValuePtrTy
				}
				return p
			},
		})
	}

	for _, s := range specs {
		var params []llvm.Type
		if s.params != nil {
			params = s.params(cg)
		}
		ft := llvm.FunctionType(s.ret(cg), params, s.variadic)
		cg.rt[s.name] = llvm.AddFunction(cg.Module, s.name, ft)
	}
}

func voidRet(cg *Cg) llvm.Type { return cg.VoidTy }
func i32Ret(cg *Cg) llvm.Type  { return cg.Int32Ty }

func ptrParams(n int) func(cg *Cg) []llvm.Type {
	return func(cg *Cg) []llvm.Type {
		p := make([]llvm.Type, n)
		for i1 := range p {
			p[i1] = cg.ValuePtrTy
		}
		return p
	}
}

// RT returns the declared runtime function named name. It panics if name
// isn't in the ABI table, since that's always a codegen bug, never a
// user-facing error.
func (cg *Cg) RT(name string) llvm.Value {
	cg.rtMx.Lock()
	defer cg.rtMx.Unlock()
	fn, ok := cg.rt[name]
	if !ok {
		panic(fmt.Sprintf("codegen: no runtime function declared for %q", name))
	}
	return fn
}

// RegisterFunc records fn for the deferred body pass (spec.md §4.I step 7).
func (cg *Cg) RegisterFunc(fn *CgFunction) {
	cg.funcMx.Lock()
	defer cg.funcMx.Unlock()
	cg.Funcs = append(cg.Funcs, fn)
	if cg.FuncsByName == nil {
		cg.FuncsByName = make(map[string]*CgFunction, 8)
	}
	cg.FuncsByName[fn.Name] = fn
}

// LookupFunc returns the registered function named name, if any.
func (cg *Cg) LookupFunc(name string) (*CgFunction, bool) {
	cg.funcMx.Lock()
	defer cg.funcMx.Unlock()
	fn, ok := cg.FuncsByName[name]
	return fn, ok
}

// DeclareFunction declares a free function's IR signature under the
// return-by-pointer ABI of spec.md §4.A: param 0 is the output Value*,
// followed by paramCount boxed arguments. The driver calls this for every
// top-level FunctionDecl before any body is lowered, the free-function
// counterpart of class.go's declareMethodFunc.
func (cg *Cg) DeclareFunction(name string, paramCount int) llvm.Value {
	params := make([]llvm.Type, paramCount+1)
	for i1 := range params {
		params[i1] = cg.ValuePtrTy
	}
	ft := llvm.FunctionType(cg.VoidTy, params, false)
	return llvm.AddFunction(cg.Module, name, ft)
}

// RegisterClass records c for the deferred method/constructor pass and the
// runtime-init pass (spec.md §4.G), preserving declaration order.
func (cg *Cg) RegisterClass(c *Class) {
	cg.classMx.Lock()
	defer cg.classMx.Unlock()
	cg.Classes[c.Name] = c
	cg.ClassOrder = append(cg.ClassOrder, c.Name)
}
