package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"breadc/internal/ast"
	"breadc/internal/types"
	"breadc/internal/util"
)

// genBlock lowers a Block node's statements in a fresh scope, stopping
// early (without lowering dead code after it) the moment a statement
// reports it unconditionally terminates control flow. The bool result
// mirrors ir/llvm/transform.go's gen's "ret" — true means the caller must
// not emit a fallthrough branch out of the current block, since one of
// return/break/continue already did.
func (fc *FuncCtx) genBlock(n *ast.Node) (bool, error) {
	fc.PushScope()
	defer fc.PopScope()
	for _, s := range n.Children {
		terminated, err := fc.genStmt(s)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	return false, nil
}

func (fc *FuncCtx) genStmt(n *ast.Node) (bool, error) {
	switch n.Kind {
	case ast.Block:
		return fc.genBlock(n)
	case ast.VarDecl:
		return false, fc.genVarDecl(n)
	case ast.Assign:
		return false, fc.genAssign(n)
	case ast.IndexAssign:
		return false, fc.genIndexAssign(n)
	case ast.MemberAssign:
		return false, fc.genMemberAssign(n)
	case ast.Print:
		return false, fc.genPrint(n)
	case ast.If:
		return fc.genIf(n)
	case ast.While:
		return fc.genWhile(n)
	case ast.ForRange:
		return fc.genForRange(n)
	case ast.ForIn:
		return fc.genForIn(n)
	case ast.Return:
		return true, fc.genReturn(n)
	case ast.Break:
		return true, fc.genBreak()
	case ast.Continue:
		return true, fc.genContinue()
	default:
		// Any remaining node is an expression evaluated for its side
		// effect (e.g. a bare top-level `b.hi()` call, spec.md §8
		// scenario 4); its boxed result slot is simply discarded.
		_, err := fc.BuildExpr(n)
		return false, err
	}
}

func repForVarType(t types.VarType) Rep {
	switch t {
	case types.TypeInt:
		return RepInt64
	case types.TypeDouble:
		return RepDouble
	case types.TypeBool:
		return RepBool1
	default:
		return RepBoxed
	}
}

// genVarDecl lowers a local declaration. When the declared type is an
// unboxable scalar, it allocates the dual native-plus-boxed slot pair
// spec.md §3's invariant (iii) requires, so a reflective var_load by name
// still sees a correct boxed value even though arithmetic on the variable
// stays in the native slot.
func (fc *FuncCtx) genVarDecl(n *ast.Node) error {
	cg := fc.Cg
	d := n.Data.(ast.VarDeclData)

	var initVal llvm.Value
	if len(n.Children) > 0 && n.Children[0] != nil {
		v, err := fc.BuildExpr(n.Children[0])
		if err != nil {
			return err
		}
		initVal = v
	} else {
		initVal = cg.AllocValue("")
	}

	rep := RepBoxed
	if !d.IsConst && d.Type != nil && types.CanUnbox(d.Type.Base) {
		rep = repForVarType(d.Type.Base)
	}

	v := &Var{Name: d.Name, Type: d.Type, IsConst: d.IsConst, Rep: rep}
	reflectiveSlot := initVal
	if rep == RepBoxed {
		slot := cg.AllocValue(d.Name)
		cg.CopyValueInto(slot, initVal)
		v.Slot = slot
		reflectiveSlot = slot
	} else {
		unboxed, ok := cg.UnboxValue(initVal, d.Type.Base)
		if !ok {
			v.Rep = RepBoxed
			slot := cg.AllocValue(d.Name)
			cg.CopyValueInto(slot, initVal)
			v.Slot = slot
			reflectiveSlot = slot
		} else {
			native := cg.Builder.CreateAlloca(unboxed.Ty, d.Name)
			cg.Builder.CreateStore(unboxed.IR, native)
			v.Slot = native
			v.BoxedSlot = cg.AllocValue(d.Name + ".boxed")
			cg.CopyValueInto(v.BoxedSlot, initVal)
			reflectiveSlot = v.BoxedSlot
		}
	}
	fc.Declare(v)

	isConstI := int64(0)
	if d.IsConst {
		isConstI = 1
	}
	cg.Builder.CreateCall(cg.RT("var_decl"), []llvm.Value{
		cg.InternString(d.Name), cg.TypeTag(d.Type), llvm.ConstInt(cg.Int32Ty, uint64(isConstI), false), reflectiveSlot,
	}, "")
	return nil
}

// applyCompound reads v's current value, boxing it if it's natively held,
// and combines it with rhs through binary_op. There's no native fast path
// here: compound assignment is rare enough on the hot path that routing
// it through the boxed runtime operator keeps this one code path instead
// of duplicating nativeArith's dispatch for the read-combine-store shape.
func (fc *FuncCtx) applyCompound(v *Var, op string, rhs llvm.Value) llvm.Value {
	cg := fc.Cg
	var current llvm.Value
	if v.Rep == RepBoxed {
		current = cg.AllocValue("")
		cg.CopyValueInto(current, v.Slot)
	} else {
		native := cg.Builder.CreateLoad(v.Slot, "")
		current = cg.BoxValue(Unboxed{Rep: v.Rep, IR: native, Ty: nativeType(cg, v.Rep)})
	}
	out := cg.AllocValue("")
	opChar := llvm.ConstInt(cg.Int8Ty, uint64(op[0]), false)
	cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, current, rhs, out}, "")
	return out
}

func (fc *FuncCtx) genAssign(n *ast.Node) error {
	cg := fc.Cg
	d := n.Data.(ast.AssignData)
	rhs, err := fc.BuildExpr(n.Children[0])
	if err != nil {
		return err
	}

	v, ok := fc.Resolve(d.Name)
	if !ok {
		if d.CompoundOp != "" {
			current := cg.AllocValue("")
			cg.Builder.CreateCall(cg.RT("var_load"), []llvm.Value{cg.InternString(d.Name), current}, "")
			out := cg.AllocValue("")
			opChar := llvm.ConstInt(cg.Int8Ty, uint64(d.CompoundOp[0]), false)
			cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, current, rhs, out}, "")
			rhs = out
		}
		cg.Builder.CreateCall(cg.RT("var_assign"), []llvm.Value{cg.InternString(d.Name), rhs}, "")
		return nil
	}

	if d.CompoundOp != "" {
		rhs = fc.applyCompound(v, d.CompoundOp, rhs)
	}

	reflectiveSlot := rhs
	if v.Rep == RepBoxed {
		cg.CopyValueInto(v.Slot, rhs)
		reflectiveSlot = v.Slot
	} else {
		if unboxed, ok := cg.UnboxValue(rhs, v.Type.Base); ok {
			cg.Builder.CreateStore(unboxed.IR, v.Slot)
		}
		cg.CopyValueInto(v.BoxedSlot, rhs)
		reflectiveSlot = v.BoxedSlot
	}
	cg.Builder.CreateCall(cg.RT("var_assign"), []llvm.Value{cg.InternString(d.Name), reflectiveSlot}, "")
	return nil
}

func (fc *FuncCtx) genIndexAssign(n *ast.Node) error {
	cg := fc.Cg
	d := n.Data.(ast.IndexAssignData)
	target, err := fc.BuildExpr(n.Children[0])
	if err != nil {
		return err
	}
	idx, err := fc.BuildExpr(n.Children[1])
	if err != nil {
		return err
	}
	val, err := fc.BuildExpr(n.Children[2])
	if err != nil {
		return err
	}
	if d.CompoundOp != "" {
		current := cg.AllocValue("")
		cg.Builder.CreateCall(cg.RT("index_op"), []llvm.Value{target, idx, current}, "")
		out := cg.AllocValue("")
		opChar := llvm.ConstInt(cg.Int8Ty, uint64(d.CompoundOp[0]), false)
		cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, current, val, out}, "")
		val = out
	}
	status := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("index_set_op"), []llvm.Value{target, idx, val, status}, "")
	return nil
}

func (fc *FuncCtx) genMemberAssign(n *ast.Node) error {
	cg := fc.Cg
	d := n.Data.(ast.MemberAssignData)
	target, err := fc.BuildExpr(n.Children[0])
	if err != nil {
		return err
	}
	val, err := fc.BuildExpr(n.Children[1])
	if err != nil {
		return err
	}
	isOpt := int64(0)
	if d.IsOptional {
		isOpt = 1
	}
	if d.CompoundOp != "" {
		current := cg.AllocValue("")
		cg.Builder.CreateCall(cg.RT("member_op"), []llvm.Value{
			target, cg.InternString(d.Name), llvm.ConstInt(cg.Int32Ty, uint64(isOpt), false), current,
		}, "")
		out := cg.AllocValue("")
		opChar := llvm.ConstInt(cg.Int8Ty, uint64(d.CompoundOp[0]), false)
		cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, current, val, out}, "")
		val = out
	}
	status := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("member_set_op"), []llvm.Value{
		target, cg.InternString(d.Name), val, llvm.ConstInt(cg.Int32Ty, uint64(isOpt), false), status,
	}, "")
	return nil
}

func (fc *FuncCtx) genPrint(n *ast.Node) error {
	cg := fc.Cg
	for _, c := range n.Children {
		v, err := fc.BuildExpr(c)
		if err != nil {
			return err
		}
		cg.Builder.CreateCall(cg.RT("print"), []llvm.Value{v}, "")
	}
	return nil
}

// buildCond evaluates n and reduces it to a native i1 via the runtime's
// is_truthy, the single gate every conditional statement funnels through.
func (fc *FuncCtx) buildCond(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	v, err := fc.BuildExpr(n)
	if err != nil {
		return llvm.Value{}, err
	}
	truthy := cg.Builder.CreateCall(cg.RT("is_truthy"), []llvm.Value{v}, "")
	return cg.Builder.CreateICmp(llvm.IntNE, truthy, llvm.ConstInt(cg.Int32Ty, 0, false), ""), nil
}

// genIf follows ir/llvm/transform.go's genIf block-wiring and
// both-branches-terminate convergence tracking, against a boxed-value
// condition instead of a native relational comparison.
func (fc *FuncCtx) genIf(n *ast.Node) (bool, error) {
	cg := fc.Cg
	cond, err := fc.buildCond(n.Children[0])
	if err != nil {
		return false, err
	}

	thenBB := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelIfThen))

	if len(n.Children) == 2 {
		mergeBB := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelIfEnd))
		cg.Builder.CreateCondBr(cond, thenBB, mergeBB)

		cg.Builder.SetInsertPointAtEnd(thenBB)
		terminated, err := fc.genBlock(n.Children[1])
		if err != nil {
			return false, err
		}
		if !terminated {
			cg.Builder.CreateBr(mergeBB)
		}
		cg.Builder.SetInsertPointAtEnd(mergeBB)
		return false, nil
	}

	elseBB := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelIfElse))
	cg.Builder.CreateCondBr(cond, thenBB, elseBB)

	cg.Builder.SetInsertPointAtEnd(thenBB)
	retA, err := fc.genBlock(n.Children[1])
	if err != nil {
		return false, err
	}
	var mergeBB llvm.BasicBlock
	if !retA {
		mergeBB = llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelIfEnd))
		cg.Builder.CreateBr(mergeBB)
	}

	cg.Builder.SetInsertPointAtEnd(elseBB)
	retB, err := fc.genBlock(n.Children[2])
	if err != nil {
		return false, err
	}
	if !retB {
		if mergeBB.IsNil() {
			mergeBB = llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelIfEnd))
		}
		cg.Builder.CreateBr(mergeBB)
	}

	if !mergeBB.IsNil() {
		cg.Builder.SetInsertPointAtEnd(mergeBB)
		return false, nil
	}
	return true, nil
}

func (fc *FuncCtx) genWhile(n *ast.Node) (bool, error) {
	cg := fc.Cg
	head := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelWhileHead))
	body := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelLoopBody))
	end := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelWhileEnd))

	baseSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "")
	cg.Builder.CreateStore(cg.Builder.CreateCall(cg.RT("scope_depth"), nil, ""), baseSlot)
	fc.PushLoop(&loopCtx{ContinueBlock: head, EndBlock: end, BaseDepthSlot: baseSlot})

	cg.Builder.CreateBr(head)
	cg.Builder.SetInsertPointAtEnd(head)
	cond, err := fc.buildCond(n.Children[0])
	if err != nil {
		return false, err
	}
	cg.Builder.CreateCondBr(cond, body, end)

	cg.Builder.SetInsertPointAtEnd(body)
	terminated, err := fc.genBlock(n.Children[1])
	if err != nil {
		return false, err
	}
	if !terminated {
		cg.Builder.CreateBr(head)
	}

	cg.Builder.SetInsertPointAtEnd(end)
	fc.PopLoop()
	return false, nil
}

// genForRange desugars a range loop into an explicit i64 counter, stepping
// before branching back to head through a dedicated increment block so
// that continue (which jumps there, not to head) still advances the
// counter (spec.md §4.F).
func (fc *FuncCtx) genForRange(n *ast.Node) (bool, error) {
	cg := fc.Cg
	d := n.Data.(ast.ForRangeData)

	counterSlot := cg.Builder.CreateAlloca(cg.Int64Ty, d.VarName)
	cg.Builder.CreateStore(llvm.ConstInt(cg.Int64Ty, uint64(d.Start), true), counterSlot)

	head := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForHead))
	body := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelLoopBody))
	incr := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForHead))
	end := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForEnd))

	baseSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "")
	cg.Builder.CreateStore(cg.Builder.CreateCall(cg.RT("scope_depth"), nil, ""), baseSlot)
	fc.PushLoop(&loopCtx{ContinueBlock: incr, EndBlock: end, BaseDepthSlot: baseSlot})

	cg.Builder.CreateBr(head)
	cg.Builder.SetInsertPointAtEnd(head)
	cur := cg.Builder.CreateLoad(counterSlot, "")
	stop := llvm.ConstInt(cg.Int64Ty, uint64(d.Stop), true)
	var cond llvm.Value
	if d.Step >= 0 {
		cond = cg.Builder.CreateICmp(llvm.IntSLT, cur, stop, "")
	} else {
		cond = cg.Builder.CreateICmp(llvm.IntSGT, cur, stop, "")
	}
	cg.Builder.CreateCondBr(cond, body, end)

	cg.Builder.SetInsertPointAtEnd(body)
	cg.Builder.CreateCall(cg.RT("declare_loop_variable"), []llvm.Value{
		cg.InternString(d.VarName), llvm.ConstInt(cg.Int32Ty, uint64(types.TypeInt), false), cur,
	}, "")

	fc.PushScope()
	fc.Declare(&Var{Name: d.VarName, Slot: counterSlot, Rep: RepInt64, Type: types.Scalar(types.TypeInt)})
	terminated, err := fc.genBlock(n.Children[0])
	fc.PopScope()
	if err != nil {
		return false, err
	}
	if !terminated {
		cg.Builder.CreateBr(incr)
	}

	cg.Builder.SetInsertPointAtEnd(incr)
	step := llvm.ConstInt(cg.Int64Ty, uint64(d.Step), true)
	next := cg.Builder.CreateAdd(cg.Builder.CreateLoad(counterSlot, ""), step, "")
	cg.Builder.CreateStore(next, counterSlot)
	cg.Builder.CreateBr(head)

	cg.Builder.SetInsertPointAtEnd(end)
	fc.PopLoop()
	return false, nil
}

// genForIn iterates a dict's keys (via dict_keys) or an array directly,
// walking it with an explicit index counter rather than a PHI node —
// ir/llvm/transform.go never uses block arguments/PHIs either, preferring
// alloca'd locals throughout, so this keeps that texture.
func (fc *FuncCtx) genForIn(n *ast.Node) (bool, error) {
	cg := fc.Cg
	d := n.Data.(ast.ForInData)
	iterableNode, bodyNode := n.Children[0], n.Children[1]

	iterable, err := fc.BuildExpr(iterableNode)
	if err != nil {
		return false, err
	}

	iterType := cg.Builder.CreateCall(cg.RT("value_get_type"), []llvm.Value{iterable}, "")
	isDict := cg.Builder.CreateICmp(llvm.IntEQ, iterType, llvm.ConstInt(cg.Int32Ty, uint64(types.TypeDict), false), "")

	dictKeysBB := llvm.AddBasicBlock(fc.Fn, "")
	arrayBB := llvm.AddBasicBlock(fc.Fn, "")
	setupBB := llvm.AddBasicBlock(fc.Fn, "")
	cg.Builder.CreateCondBr(isDict, dictKeysBB, arrayBB)

	arraySlot := cg.Builder.CreateAlloca(cg.ValuePtrTy, "")

	cg.Builder.SetInsertPointAtEnd(dictKeysBB)
	keys := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("dict_keys"), []llvm.Value{iterable, keys}, "")
	cg.Builder.CreateStore(keys, arraySlot)
	cg.Builder.CreateBr(setupBB)

	cg.Builder.SetInsertPointAtEnd(arrayBB)
	cg.Builder.CreateStore(iterable, arraySlot)
	cg.Builder.CreateBr(setupBB)

	cg.Builder.SetInsertPointAtEnd(setupBB)
	arr := cg.Builder.CreateLoad(arraySlot, "")
	length := cg.Builder.CreateCall(cg.RT("array_length"), []llvm.Value{arr}, "")
	idxSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "")
	cg.Builder.CreateStore(llvm.ConstInt(cg.Int32Ty, 0, false), idxSlot)

	head := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForHead))
	body := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelLoopBody))
	incr := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForHead))
	end := llvm.AddBasicBlock(fc.Fn, cg.Labels.Block(util.LabelForEnd))

	baseSlot := cg.Builder.CreateAlloca(cg.Int32Ty, "")
	cg.Builder.CreateStore(cg.Builder.CreateCall(cg.RT("scope_depth"), nil, ""), baseSlot)
	fc.PushLoop(&loopCtx{ContinueBlock: incr, EndBlock: end, BaseDepthSlot: baseSlot})

	cg.Builder.CreateBr(head)
	cg.Builder.SetInsertPointAtEnd(head)
	idx := cg.Builder.CreateLoad(idxSlot, "")
	cond := cg.Builder.CreateICmp(llvm.IntSLT, idx, length, "")
	cg.Builder.CreateCondBr(cond, body, end)

	cg.Builder.SetInsertPointAtEnd(body)
	elem := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("array_get"), []llvm.Value{arr, idx, elem}, "")

	fc.PushScope()
	fc.Declare(&Var{Name: d.VarName, Slot: elem, Rep: RepBoxed})
	terminated, err := fc.genBlock(bodyNode)
	fc.PopScope()
	if err != nil {
		return false, err
	}
	if !terminated {
		cg.Builder.CreateBr(incr)
	}

	cg.Builder.SetInsertPointAtEnd(incr)
	next := cg.Builder.CreateAdd(cg.Builder.CreateLoad(idxSlot, ""), llvm.ConstInt(cg.Int32Ty, 1, false), "")
	cg.Builder.CreateStore(next, idxSlot)
	cg.Builder.CreateBr(head)

	cg.Builder.SetInsertPointAtEnd(end)
	fc.PopLoop()
	return false, nil
}

func (fc *FuncCtx) genReturn(n *ast.Node) error {
	cg := fc.Cg
	if len(n.Children) > 0 {
		v, err := fc.BuildExpr(n.Children[0])
		if err != nil {
			return err
		}
		cg.CopyValueInto(fc.RetSlot, v)
	}
	cg.PopToScopeDepth(fc.BaseDepthSlot, true)
	cg.Builder.CreateRetVoid()
	return nil
}

func (fc *FuncCtx) genBreak() error {
	loop := fc.CurrentLoop()
	if loop == nil {
		return fmt.Errorf("codegen: break outside a loop")
	}
	fc.Cg.PopToScopeDepth(loop.BaseDepthSlot, false)
	fc.Cg.Builder.CreateBr(loop.EndBlock)
	return nil
}

func (fc *FuncCtx) genContinue() error {
	loop := fc.CurrentLoop()
	if loop == nil {
		return fmt.Errorf("codegen: continue outside a loop")
	}
	fc.Cg.PopToScopeDepth(loop.BaseDepthSlot, false)
	fc.Cg.Builder.CreateBr(loop.ContinueBlock)
	return nil
}

// LowerFunctionBody runs the scope-entry scaffold for fn and lowers its
// body, synthesizing a trailing void return when control can fall off
// the end (spec.md §4.I's deferred second pass over registered
// functions).
func LowerFunctionBody(cg *Cg, fn *CgFunction) error {
	var class *Class
	if fn.IsMethod {
		class = cg.Classes[fn.ClassName]
	}
	fc := EnterFunction(cg, fn.IR, fn.IsMethod, class, fn.Params)
	fc.IsConstructor = fn.Name == "init" && fn.IsMethod
	terminated, err := fc.genBlock(fn.Body)
	if err != nil {
		return err
	}
	if !terminated {
		cg.PopToScopeDepth(fc.BaseDepthSlot, true)
		cg.Builder.CreateRetVoid()
	}
	return nil
}
