package codegen

import (
	"tinygo.org/x/go-llvm"

	"breadc/internal/ast"
	"breadc/internal/types"
	"breadc/internal/util"
)

// Var is the compile-time Var record of spec.md §3. Slot holds either a
// native-width alloca (when Rep != RepBoxed) or a boxed Value* alloca.
// BoxedSlot is the parallel boxed slot spec.md §3's invariant (iii)
// requires for every unboxed variable, so reflective var_load-by-name
// calls keep working; it's nil when Rep == RepBoxed (Slot already is it).
type Var struct {
	Name      string
	Slot      llvm.Value
	BoxedSlot llvm.Value
	Type      *types.TypeDescriptor
	Rep       Rep
	IsConst   bool
}

// loopCtx is one entry on a FuncCtx's loop stack, letting break/continue
// find the right target blocks and scope-base slot (spec.md §4.F).
type loopCtx struct {
	ContinueBlock llvm.BasicBlock
	EndBlock      llvm.BasicBlock
	BaseDepthSlot llvm.Value
}

// FuncCtx is the per-function lowering context: the compile-time scope
// stack bridging to the runtime scope stack (spec.md §4.B), the loop
// stack, and the function's ABI slots.
//
// Ground: ir/llvm/transform.go's genFuncBody/gen pass a bare *util.Stack
// scope stack plus a separate loop-label stack (ls) through every
// function by parameter; bundling them into one struct here keeps
// expr.go/stmt.go/class.go's signatures from growing a parameter every
// time a new piece of function-scoped state is needed.
type FuncCtx struct {
	Cg            *Cg
	Fn            llvm.Value
	Scopes        *util.Stack
	Loops         *util.Stack
	BaseDepthSlot llvm.Value
	RetSlot       llvm.Value
	Self          llvm.Value
	Class         *Class
	IsConstructor bool
	IsMethod      bool
}

// EnterFunction creates fn's entry block and runs the scope-entry
// scaffold of spec.md §4.B: record the runtime's current depth, push a
// runtime scope, then bind parameters into fresh local slots registered
// with the runtime so reflective lookups by name work.
func EnterFunction(cg *Cg, fn llvm.Value, isMethod bool, class *Class, params []ast.ParamInfo) *FuncCtx {
	bb := llvm.AddBasicBlock(fn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)

	fc := &FuncCtx{Cg: cg, Fn: fn, Scopes: &util.Stack{}, Loops: &util.Stack{}, Class: class, IsMethod: isMethod}
	fc.PushScope()

	depth := cg.Builder.CreateCall(cg.RT("scope_depth"), nil, "")
	baseSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "base_depth")
	cg.Builder.CreateStore(depth, baseSlot)
	fc.BaseDepthSlot = baseSlot
	cg.Builder.CreateCall(cg.RT("push_scope"), nil, "")

	llParams := fn.Params()
	fc.RetSlot = llParams[0]
	idx := 1
	if isMethod {
		fc.Self = llParams[1]
		fc.Declare(&Var{Name: "self", Slot: fc.Self, Rep: RepBoxed})
		idx = 2
	}
	for i1, p := range params {
		src := llParams[idx+i1]
		slot := cg.AllocValue(p.Name)
		cg.CopyValueInto(slot, src)
		cg.Builder.CreateCall(cg.RT("var_decl_if_missing"), []llvm.Value{
			cg.InternString(p.Name), cg.TypeTag(p.Type), llvm.ConstInt(cg.Int32Ty, 0, false), slot,
		}, "")
		fc.Declare(&Var{Name: p.Name, Slot: slot, Rep: RepBoxed, Type: p.Type})
	}
	return fc
}

// TypeTag returns the i32 runtime type tag for t, defaulting to the nil
// tag when t is nil (an expression whose static type analysis couldn't
// pin down).
func (cg *Cg) TypeTag(t *types.TypeDescriptor) llvm.Value {
	base := types.TypeNil
	if t != nil {
		base = t.Base
	}
	return llvm.ConstInt(cg.Int32Ty, uint64(base), false)
}

func (fc *FuncCtx) PushScope() { fc.Scopes.Push(make(map[string]*Var)) }
func (fc *FuncCtx) PopScope()  { fc.Scopes.Pop() }

// Declare binds v in the innermost scope.
func (fc *FuncCtx) Declare(v *Var) {
	top := fc.Scopes.Peek().(map[string]*Var)
	top[v.Name] = v
}

// Resolve walks the scope stack from innermost to outermost looking for
// name, mirroring ir/llvm/transform.go's genLoad/genStore walk.
func (fc *FuncCtx) Resolve(name string) (*Var, bool) {
	for i1 := 1; i1 <= fc.Scopes.Size(); i1++ {
		scope := fc.Scopes.Get(i1).(map[string]*Var)
		if v, ok := scope[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (fc *FuncCtx) PushLoop(l *loopCtx) { fc.Loops.Push(l) }
func (fc *FuncCtx) PopLoop()            { fc.Loops.Pop() }

func (fc *FuncCtx) CurrentLoop() *loopCtx {
	if l := fc.Loops.Peek(); l != nil {
		return l.(*loopCtx)
	}
	return nil
}

// PopToScopeDepth loads the depth held in slot and emits
// pop_to_scope_depth against it. clampMin1 implements spec.md §4.B's
// "for return, load a min of 1 to avoid popping the global scope".
func (cg *Cg) PopToScopeDepth(slot llvm.Value, clampMin1 bool) {
	depth := cg.Builder.CreateLoad(slot, "")
	if clampMin1 {
		one := llvm.ConstInt(cg.Int32Ty, 1, false)
		tooSmall := cg.Builder.CreateICmp(llvm.IntSLT, depth, one, "")
		depth = cg.Builder.CreateSelect(tooSmall, one, depth, "")
	}
	cg.Builder.CreateCall(cg.RT("pop_to_scope_depth"), []llvm.Value{depth}, "")
}
