package codegen

import (
	"fmt"
	"strings"

	"tinygo.org/x/go-llvm"

	"breadc/internal/analysis"
	"breadc/internal/ast"
	"breadc/internal/types"
)

// BuildExpr lowers n, always returning a boxed Value* slot the caller owns
// (spec.md §4.E: "expression lowering always yields a boxed slot at its
// outer boundary, even when the inner computation took the unboxed fast
// path"). Internally, arithmetic and comparisons try the unboxed path
// first via tryUnbox and only box at the end.
//
// Ground: ir/llvm/transform.go's genExpression dispatches on the same
// shape of node (literal / identifier / nested expression / call);
// this mirrors that dispatch against the boxed-value ABI instead of
// native LLVM values throughout.
func (fc *FuncCtx) BuildExpr(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	switch n.Kind {
	case ast.NilLit:
		return cg.AllocValue(""), nil
	case ast.BoolLit:
		return cg.BoxValue(Unboxed{Rep: RepBool1, IR: boolConst(cg, n.Data.(bool)), Ty: cg.Int1Ty}), nil
	case ast.IntLit:
		return cg.BoxValue(Unboxed{Rep: RepInt64, IR: llvm.ConstInt(cg.Int64Ty, uint64(n.Data.(int64)), true), Ty: cg.Int64Ty}), nil
	case ast.FloatLit:
		return cg.BoxValue(Unboxed{Rep: RepDouble, IR: llvm.ConstFloat(cg.DoubleTy, n.Data.(float64)), Ty: cg.DoubleTy}), nil
	case ast.StringLit:
		return cg.BoxString(n.Data.(string)), nil
	case ast.Identifier:
		return fc.buildIdentifier(n)
	case ast.Unary:
		return fc.buildUnary(n)
	case ast.Binary:
		return fc.buildBinary(n)
	case ast.Call:
		return fc.buildCall(n)
	case ast.MethodCall, ast.SuperCall:
		return fc.buildMethodCall(n)
	case ast.Index:
		return fc.buildIndex(n)
	case ast.Member:
		return fc.buildMember(n)
	case ast.ArrayLit:
		return fc.buildArrayLit(n)
	case ast.DictLit:
		return fc.buildDictLit(n)
	case ast.StructLit:
		return fc.buildStructLit(n)
	default:
		return llvm.Value{}, fmt.Errorf("codegen: no expression lowering for %s", n.Kind)
	}
}

func boolConst(cg *Cg, v bool) llvm.Value {
	if v {
		return llvm.ConstInt(cg.Int1Ty, 1, false)
	}
	return llvm.ConstInt(cg.Int1Ty, 0, false)
}

func nativeType(cg *Cg, rep Rep) llvm.Type {
	switch rep {
	case RepInt64:
		return cg.Int64Ty
	case RepDouble:
		return cg.DoubleTy
	case RepBool1:
		return cg.Int1Ty
	default:
		return cg.ValuePtrTy
	}
}

func sameNumericRep(a, b Rep) bool { return a == b && a != RepBoxed }

func isRelational(op string) bool {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}

// tryUnbox attempts to evaluate n entirely in native registers, without
// ever materializing a boxed slot. It only does so when the stability
// analysis has already classified n as at least Conditional with a known
// scalar type (spec.md §4.C/§4.E) — an Unstable or Unknown node always
// falls back to the boxed path, since the fast path isn't safe to take
// without that guarantee.
func (fc *FuncCtx) tryUnbox(n *ast.Node) (Unboxed, bool) {
	cg := fc.Cg
	info := cg.Stability[n]
	if info == nil || info.Stability < analysis.Conditional || info.Type == nil {
		return Unboxed{}, false
	}
	switch n.Kind {
	case ast.IntLit:
		return Unboxed{Rep: RepInt64, IR: llvm.ConstInt(cg.Int64Ty, uint64(n.Data.(int64)), true), Ty: cg.Int64Ty}, true
	case ast.FloatLit:
		return Unboxed{Rep: RepDouble, IR: llvm.ConstFloat(cg.DoubleTy, n.Data.(float64)), Ty: cg.DoubleTy}, true
	case ast.BoolLit:
		return Unboxed{Rep: RepBool1, IR: boolConst(cg, n.Data.(bool)), Ty: cg.Int1Ty}, true
	case ast.Identifier:
		v, ok := fc.Resolve(n.Data.(string))
		if !ok {
			return Unboxed{}, false
		}
		if v.Rep != RepBoxed {
			return Unboxed{Rep: v.Rep, IR: cg.Builder.CreateLoad(v.Slot, ""), Ty: nativeType(cg, v.Rep)}, true
		}
		return cg.UnboxValue(v.Slot, info.Type.Base)
	case ast.Unary:
		operand, ok := fc.tryUnbox(n.Children[0])
		if !ok {
			return Unboxed{}, false
		}
		return cg.nativeUnary(n.Data.(ast.UnaryData).Op, operand)
	case ast.Binary:
		d := n.Data.(ast.BinaryData)
		if isRelational(d.Op) {
			return Unboxed{}, false
		}
		lu, lok := fc.tryUnbox(n.Children[0])
		ru, rok := fc.tryUnbox(n.Children[1])
		if !lok || !rok || !sameNumericRep(lu.Rep, ru.Rep) {
			return Unboxed{}, false
		}
		return cg.nativeArith(d.Op, lu, ru)
	default:
		return Unboxed{}, false
	}
}

// nativeArith lowers a binary arithmetic op directly to a native LLVM
// instruction. ok is false when the operator/representation pair isn't
// one the core handles natively, in which case the caller must fall back
// to the runtime's binary_op.
func (cg *Cg) nativeArith(op string, lu, ru Unboxed) (Unboxed, bool) {
	b := cg.Builder
	switch lu.Rep {
	case RepInt64:
		switch op {
		case "+":
			return Unboxed{RepInt64, b.CreateAdd(lu.IR, ru.IR, ""), cg.Int64Ty}, true
		case "-":
			return Unboxed{RepInt64, b.CreateSub(lu.IR, ru.IR, ""), cg.Int64Ty}, true
		case "*":
			return Unboxed{RepInt64, b.CreateMul(lu.IR, ru.IR, ""), cg.Int64Ty}, true
		case "/":
			return Unboxed{RepInt64, b.CreateSDiv(lu.IR, ru.IR, ""), cg.Int64Ty}, true
		case "%":
			return Unboxed{RepInt64, b.CreateSRem(lu.IR, ru.IR, ""), cg.Int64Ty}, true
		}
	case RepDouble:
		switch op {
		case "+":
			return Unboxed{RepDouble, b.CreateFAdd(lu.IR, ru.IR, ""), cg.DoubleTy}, true
		case "-":
			return Unboxed{RepDouble, b.CreateFSub(lu.IR, ru.IR, ""), cg.DoubleTy}, true
		case "*":
			return Unboxed{RepDouble, b.CreateFMul(lu.IR, ru.IR, ""), cg.DoubleTy}, true
		case "/":
			return Unboxed{RepDouble, b.CreateFDiv(lu.IR, ru.IR, ""), cg.DoubleTy}, true
		case "%":
			return Unboxed{RepDouble, b.CreateFRem(lu.IR, ru.IR, ""), cg.DoubleTy}, true
		}
	case RepBool1:
		switch op {
		case "&&":
			return Unboxed{RepBool1, b.CreateAnd(lu.IR, ru.IR, ""), cg.Int1Ty}, true
		case "||":
			return Unboxed{RepBool1, b.CreateOr(lu.IR, ru.IR, ""), cg.Int1Ty}, true
		}
	}
	return Unboxed{}, false
}

func (cg *Cg) nativeCompare(op string, lu, ru Unboxed) (llvm.Value, bool) {
	b := cg.Builder
	if lu.Rep == RepInt64 {
		switch op {
		case "<":
			return b.CreateICmp(llvm.IntSLT, lu.IR, ru.IR, ""), true
		case ">":
			return b.CreateICmp(llvm.IntSGT, lu.IR, ru.IR, ""), true
		case "<=":
			return b.CreateICmp(llvm.IntSLE, lu.IR, ru.IR, ""), true
		case ">=":
			return b.CreateICmp(llvm.IntSGE, lu.IR, ru.IR, ""), true
		case "==":
			return b.CreateICmp(llvm.IntEQ, lu.IR, ru.IR, ""), true
		case "!=":
			return b.CreateICmp(llvm.IntNE, lu.IR, ru.IR, ""), true
		}
	}
	if lu.Rep == RepDouble {
		switch op {
		case "<":
			return b.CreateFCmp(llvm.FloatOLT, lu.IR, ru.IR, ""), true
		case ">":
			return b.CreateFCmp(llvm.FloatOGT, lu.IR, ru.IR, ""), true
		case "<=":
			return b.CreateFCmp(llvm.FloatOLE, lu.IR, ru.IR, ""), true
		case ">=":
			return b.CreateFCmp(llvm.FloatOGE, lu.IR, ru.IR, ""), true
		case "==":
			return b.CreateFCmp(llvm.FloatOEQ, lu.IR, ru.IR, ""), true
		case "!=":
			return b.CreateFCmp(llvm.FloatONE, lu.IR, ru.IR, ""), true
		}
	}
	return llvm.Value{}, false
}

func (cg *Cg) nativeUnary(op string, operand Unboxed) (Unboxed, bool) {
	b := cg.Builder
	switch operand.Rep {
	case RepInt64:
		if op == "-" {
			return Unboxed{RepInt64, b.CreateNeg(operand.IR, ""), cg.Int64Ty}, true
		}
	case RepDouble:
		if op == "-" {
			return Unboxed{RepDouble, b.CreateFNeg(operand.IR, ""), cg.DoubleTy}, true
		}
	case RepBool1:
		if op == "!" {
			return Unboxed{RepBool1, b.CreateNot(operand.IR, ""), cg.Int1Ty}, true
		}
	}
	return Unboxed{}, false
}

func (fc *FuncCtx) buildUnary(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	d := n.Data.(ast.UnaryData)
	if u, ok := fc.tryUnbox(n); ok {
		return cg.BoxValue(u), nil
	}
	switch d.Op {
	case "!":
		v, err := fc.BuildExpr(n.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		out := cg.AllocValue("")
		cg.Builder.CreateCall(cg.RT("unary_not"), []llvm.Value{v, out}, "")
		return out, nil
	case "-":
		// No boxed unary-negate primitive is declared in the runtime ABI;
		// express it as 0 - v through binary_op instead.
		v, err := fc.BuildExpr(n.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		zero := cg.BoxValue(Unboxed{Rep: RepInt64, IR: llvm.ConstInt(cg.Int64Ty, 0, true), Ty: cg.Int64Ty})
		out := cg.AllocValue("")
		opChar := llvm.ConstInt(cg.Int8Ty, uint64('-'), false)
		cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, zero, v, out}, "")
		return out, nil
	default:
		return llvm.Value{}, fmt.Errorf("codegen: unsupported unary operator %q", d.Op)
	}
}

// isBuiltinCallOperand reports whether n is a call — used to special-case
// string concatenation with a builtin operand straight to the boxed path
// (spec.md §4.E), skipping the unboxed attempt that would fail anyway.
func isBuiltinCallOperand(n *ast.Node) bool { return n.Kind == ast.Call }

func (fc *FuncCtx) buildBinary(n *ast.Node) (llvm.Value, error) {
	d := n.Data.(ast.BinaryData)
	lhsNode, rhsNode := n.Children[0], n.Children[1]

	if isRelational(d.Op) {
		return fc.buildRelation(d.Op, lhsNode, rhsNode)
	}

	if d.Op == "+" && (isBuiltinCallOperand(lhsNode) || isBuiltinCallOperand(rhsNode)) {
		return fc.buildBoxedBinary(d.Op, lhsNode, rhsNode)
	}

	cg := fc.Cg
	lu, lok := fc.tryUnbox(lhsNode)
	ru, rok := fc.tryUnbox(rhsNode)
	if lok && rok && sameNumericRep(lu.Rep, ru.Rep) {
		if res, ok := cg.nativeArith(d.Op, lu, ru); ok {
			return cg.BoxValue(res), nil
		}
	}
	return fc.buildBoxedBinary(d.Op, lhsNode, rhsNode)
}

func (fc *FuncCtx) buildRelation(op string, lhsNode, rhsNode *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	lu, lok := fc.tryUnbox(lhsNode)
	ru, rok := fc.tryUnbox(rhsNode)
	if lok && rok && sameNumericRep(lu.Rep, ru.Rep) && lu.Rep != RepBool1 {
		if cmp, ok := cg.nativeCompare(op, lu, ru); ok {
			return cg.BoxValue(Unboxed{Rep: RepBool1, IR: cmp, Ty: cg.Int1Ty}), nil
		}
	}
	return fc.buildBoxedBinary(op, lhsNode, rhsNode)
}

func (fc *FuncCtx) buildBoxedBinary(op string, lhsNode, rhsNode *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	lhs, err := fc.BuildExpr(lhsNode)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := fc.BuildExpr(rhsNode)
	if err != nil {
		return llvm.Value{}, err
	}
	out := cg.AllocValue("")
	opChar := llvm.ConstInt(cg.Int8Ty, uint64(op[0]), false)
	cg.Builder.CreateCall(cg.RT("binary_op"), []llvm.Value{opChar, lhs, rhs, out}, "")
	return out, nil
}

// buildIdentifier lowers a variable read. Resolution order: the compile-
// time scope stack, then (inside a method) the enclosing class's field
// set walked up the inheritance chain, then a reflective runtime lookup
// by name as a last resort — mirroring ir/llvm/transform.go's genLoad
// walk-then-fall-back-to-global shape.
func (fc *FuncCtx) buildIdentifier(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	name := n.Data.(string)
	if v, ok := fc.Resolve(name); ok {
		if v.Rep != RepBoxed {
			u := Unboxed{Rep: v.Rep, IR: cg.Builder.CreateLoad(v.Slot, ""), Ty: nativeType(cg, v.Rep)}
			return cg.BoxValue(u), nil
		}
		dst := cg.AllocValue("")
		cg.CopyValueInto(dst, v.Slot)
		return dst, nil
	}
	if fc.IsMethod && fc.Class != nil && cg.classHasField(fc.Class.Name, name, 32) {
		out := cg.AllocValue("")
		cg.Builder.CreateCall(cg.RT("member_op"), []llvm.Value{fc.Self, cg.InternString(name), llvm.ConstInt(cg.Int32Ty, 0, false), out}, "")
		return out, nil
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("var_load"), []llvm.Value{cg.InternString(name), out}, "")
	return out, nil
}

// classHasField walks className's inheritance chain, stopping after
// depthCap hops as a defense against a cyclic ParentName chain slipping
// past earlier validation.
func (cg *Cg) classHasField(className, field string, depthCap int) bool {
	cg.classMx.Lock()
	defer cg.classMx.Unlock()
	name := className
	for d := 0; d < depthCap && name != ""; d++ {
		cls, ok := cg.Classes[name]
		if !ok {
			return false
		}
		for _, f := range cls.FieldNames {
			if f == field {
				return true
			}
		}
		name = cls.ParentName
	}
	return false
}

func (fc *FuncCtx) buildArgs(argNodes []*ast.Node) ([]llvm.Value, error) {
	vals := make([]llvm.Value, len(argNodes))
	for i1, a := range argNodes {
		v, err := fc.BuildExpr(a)
		if err != nil {
			return nil, err
		}
		vals[i1] = v
	}
	return vals, nil
}

// buildPtrArray materializes vals into a stack array and decays it to a
// single i8* for the ABI slots that take an argc/argv-style pair
// (spec.md §6). Every entry in vals must already be a ValuePtrTy (either
// a Value* or an interned string pointer — both are i8* in this ABI).
func (cg *Cg) buildPtrArray(vals []llvm.Value) llvm.Value {
	if len(vals) == 0 {
		return llvm.ConstNull(cg.ValuePtrTy)
	}
	arrTy := llvm.ArrayType(cg.ValuePtrTy, len(vals))
	arr := cg.Builder.CreateAlloca(arrTy, "")
	for i1, v := range vals {
		idx := []llvm.Value{llvm.ConstInt(cg.Int32Ty, 0, false), llvm.ConstInt(cg.Int32Ty, uint64(i1), false)}
		gep := cg.Builder.CreateGEP(arr, idx, "")
		cg.Builder.CreateStore(v, gep)
	}
	return cg.Builder.CreateBitCast(arr, cg.ValuePtrTy, "")
}

func (cg *Cg) buildStringArray(names []string) llvm.Value {
	vals := make([]llvm.Value, len(names))
	for i1, name := range names {
		vals[i1] = cg.InternString(name)
	}
	return cg.buildPtrArray(vals)
}

func (fc *FuncCtx) buildCall(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	name := n.Data.(ast.CallData).Name
	args := n.Children

	if name == "range" {
		return fc.buildRangeCall(args)
	}
	if cls, ok := cg.Classes[name]; ok {
		return fc.buildConstructorCall(cls, args)
	}
	if fn, ok := cg.LookupFunc(name); ok {
		return fc.buildUserCall(fn, args)
	}
	return fc.buildBuiltinCall(name, args)
}

func (fc *FuncCtx) buildRangeCall(args []*ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	if len(args) < 1 || len(args) > 3 {
		return llvm.Value{}, fmt.Errorf("codegen: range() takes 1 to 3 arguments, got %d", len(args))
	}
	vals := make([]llvm.Value, len(args))
	for i1, a := range args {
		u, ok := fc.tryUnbox(a)
		if !ok || u.Rep != RepInt64 {
			boxed, err := fc.BuildExpr(a)
			if err != nil {
				return llvm.Value{}, err
			}
			unboxed, unboxOk := cg.UnboxValue(boxed, types.TypeInt)
			if !unboxOk {
				return llvm.Value{}, fmt.Errorf("codegen: range() argument must be an integer")
			}
			u = unboxed
		}
		vals[i1] = u.IR
	}
	var arr llvm.Value
	switch len(vals) {
	case 1:
		arr = cg.Builder.CreateCall(cg.RT("range_simple"), vals, "")
	case 2:
		step := llvm.ConstInt(cg.Int64Ty, 1, true)
		arr = cg.Builder.CreateCall(cg.RT("range_create"), []llvm.Value{vals[0], vals[1], step}, "")
	case 3:
		arr = cg.Builder.CreateCall(cg.RT("range_create"), vals, "")
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_array"), []llvm.Value{out, arr}, "")
	return out, nil
}

func (fc *FuncCtx) buildBuiltinCall(name string, argNodes []*ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	vals, err := fc.buildArgs(argNodes)
	if err != nil {
		return llvm.Value{}, err
	}
	argsArr := cg.buildPtrArray(vals)
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("builtin_call_out"), []llvm.Value{
		cg.InternString(name), argsArr, llvm.ConstInt(cg.Int32Ty, uint64(len(vals)), false), out,
	}, "")
	return out, nil
}

// buildUserCall lowers a direct call to a statically known function,
// filling trailing omitted arguments from their default-value
// expressions (spec.md §4.E).
func (fc *FuncCtx) buildUserCall(fn *CgFunction, argNodes []*ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	if len(argNodes) < fn.RequiredParams {
		return llvm.Value{}, fmt.Errorf("codegen: call to %q missing required argument %d", fn.Name, len(argNodes)+1)
	}
	if len(argNodes) > len(fn.Params) {
		return llvm.Value{}, fmt.Errorf("codegen: call to %q: too many arguments", fn.Name)
	}
	out := cg.AllocValue("")
	callArgs := make([]llvm.Value, 0, len(fn.Params)+1)
	callArgs = append(callArgs, out)
	for i1, p := range fn.Params {
		if i1 < len(argNodes) {
			v, err := fc.BuildExpr(argNodes[i1])
			if err != nil {
				return llvm.Value{}, err
			}
			callArgs = append(callArgs, v)
			continue
		}
		if p.Default == nil {
			return llvm.Value{}, fmt.Errorf("codegen: call to %q missing required argument %q", fn.Name, p.Name)
		}
		v, err := fc.BuildExpr(p.Default)
		if err != nil {
			return llvm.Value{}, err
		}
		callArgs = append(callArgs, v)
	}
	cg.Builder.CreateCall(fn.IR, callArgs, "")
	return out, nil
}

// buildConstructorCall builds the class's runtime instance and routes to
// its "init" method through the dynamic dispatch path (method_call_op)
// rather than a direct call, since the constructor may itself be
// inherited from a parent class not known until runtime resolution
// (spec.md §4.G). Omitted trailing constructor arguments are filled from
// the explicit init's stored default expressions, lowered at this call
// site, up to the first parameter that has no default.
func (fc *FuncCtx) buildConstructorCall(cls *Class, argNodes []*ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	fieldsArr := cg.buildStringArray(cls.FieldNames)
	methodsArr := cg.buildStringArray(cls.MethodNames)
	parentName := llvm.ConstNull(cg.StrPtrTy)
	if cls.ParentName != "" {
		parentName = cg.InternString(cls.ParentName)
	}
	runtimeCls := cg.Builder.CreateCall(cg.RT("class_create_instance"), []llvm.Value{
		cg.InternString(cls.Name), parentName,
		llvm.ConstInt(cg.Int32Ty, uint64(len(cls.FieldNames)), false), fieldsArr,
		llvm.ConstInt(cg.Int32Ty, uint64(len(cls.MethodNames)), false), methodsArr,
	}, "")
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_class"), []llvm.Value{out, runtimeCls}, "")

	if cls.Constructor != nil {
		params := cls.Constructor.Data.(ast.FunctionDeclData).Params
		filled := append([]*ast.Node(nil), argNodes...)
		for i1 := len(filled); i1 < len(params) && params[i1].Default != nil; i1++ {
			filled = append(filled, params[i1].Default)
		}
		argNodes = filled
	}
	argVals, err := fc.buildArgs(argNodes)
	if err != nil {
		return llvm.Value{}, err
	}
	argsArr := cg.buildPtrArray(argVals)
	tmp := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("method_call_op"), []llvm.Value{
		out, cg.InternString("init"), llvm.ConstInt(cg.Int32Ty, uint64(len(argVals)), false), argsArr,
		llvm.ConstInt(cg.Int32Ty, 0, false), tmp,
	}, "")
	return out, nil
}

// classForVarHeuristic implements spec.md §4.E's direct-call optimization:
// a variable whose name contains a known class name is assumed (without
// static proof) to hold an instance of it, letting the call bypass
// method_call_op's dynamic dispatch.
func (fc *FuncCtx) classForVarHeuristic(varName string) *Class {
	cg := fc.Cg
	for _, className := range cg.ClassOrder {
		if strings.Contains(varName, className) {
			return cg.Classes[className]
		}
	}
	return nil
}

func methodIndex(cls *Class, name string) (int, bool) {
	for i1, m := range cls.MethodNames {
		if m == name {
			return i1, true
		}
	}
	return 0, false
}

func (fc *FuncCtx) buildMethodCall(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	if n.Kind == ast.SuperCall {
		return fc.buildSuperCall(n)
	}
	d := n.Data.(ast.MethodCallData)
	targetNode := n.Children[0]
	argNodes := n.Children[1:]

	if targetNode.Kind == ast.Identifier {
		if cls := fc.classForVarHeuristic(targetNode.Data.(string)); cls != nil {
			if idx, ok := methodIndex(cls, d.Name); ok && idx < len(cls.MethodFuncs) && !cls.MethodFuncs[idx].IsNil() {
				target, err := fc.BuildExpr(targetNode)
				if err != nil {
					return llvm.Value{}, err
				}
				argVals, err := fc.buildArgs(argNodes)
				if err != nil {
					return llvm.Value{}, err
				}
				out := cg.AllocValue("")
				callArgs := append([]llvm.Value{out, target}, argVals...)
				cg.Builder.CreateCall(cls.MethodFuncs[idx], callArgs, "")
				return out, nil
			}
		}
	}

	target, err := fc.BuildExpr(targetNode)
	if err != nil {
		return llvm.Value{}, err
	}
	argVals, err := fc.buildArgs(argNodes)
	if err != nil {
		return llvm.Value{}, err
	}
	argsArr := cg.buildPtrArray(argVals)
	out := cg.AllocValue("")
	isOpt := int64(0)
	if d.IsOptional {
		isOpt = 1
	}
	cg.Builder.CreateCall(cg.RT("method_call_op"), []llvm.Value{
		target, cg.InternString(d.Name), llvm.ConstInt(cg.Int32Ty, uint64(len(argVals)), false), argsArr,
		llvm.ConstInt(cg.Int32Ty, uint64(isOpt), false), out,
	}, "")
	return out, nil
}

// buildSuperCall emits a typed super_init_k call for 0-3 arguments, the
// arity the runtime specializes (spec.md §6), else falls back to the
// args-array form. The i32 success status is widened back into a boxed
// bool, since every expression lowers to a boxed slot at its boundary.
func (fc *FuncCtx) buildSuperCall(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	if fc.Class == nil || fc.Class.ParentName == "" {
		return llvm.Value{}, fmt.Errorf("codegen: super() used outside a method of a class with a parent")
	}
	argVals, err := fc.buildArgs(n.Children)
	if err != nil {
		return llvm.Value{}, err
	}
	var status llvm.Value
	if len(argVals) <= 3 {
		fn := cg.RT(fmt.Sprintf("super_init_%d", len(argVals)))
		callArgs := append([]llvm.Value{fc.Self}, argVals...)
		status = cg.Builder.CreateCall(fn, callArgs, "")
	} else {
		argsArr := cg.buildPtrArray(argVals)
		status = cg.Builder.CreateCall(cg.RT("super_init_simple"), []llvm.Value{
			fc.Self, llvm.ConstInt(cg.Int32Ty, uint64(len(argVals)), false), argsArr,
		}, "")
	}
	truthy := cg.Builder.CreateICmp(llvm.IntNE, status, llvm.ConstInt(cg.Int32Ty, 0, false), "")
	return cg.BoxValue(Unboxed{Rep: RepBool1, IR: truthy, Ty: cg.Int1Ty}), nil
}

func (fc *FuncCtx) buildIndex(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	target, err := fc.BuildExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, err
	}
	idx, err := fc.BuildExpr(n.Children[1])
	if err != nil {
		return llvm.Value{}, err
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("index_op"), []llvm.Value{target, idx, out}, "")
	return out, nil
}

func (fc *FuncCtx) buildMember(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	d := n.Data.(ast.MemberData)
	target, err := fc.BuildExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, err
	}
	isOpt := int64(0)
	if d.IsOptional {
		isOpt = 1
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("member_op"), []llvm.Value{
		target, cg.InternString(d.Name), llvm.ConstInt(cg.Int32Ty, uint64(isOpt), false), out,
	}, "")
	return out, nil
}

func (fc *FuncCtx) buildArrayLit(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	arr := cg.Builder.CreateCall(cg.RT("array_new"), nil, "")
	for _, c := range n.Children {
		v, err := fc.BuildExpr(c)
		if err != nil {
			return llvm.Value{}, err
		}
		cg.Builder.CreateCall(cg.RT("array_append_value"), []llvm.Value{arr, v}, "")
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_array"), []llvm.Value{out, arr}, "")
	return out, nil
}

func (fc *FuncCtx) buildDictLit(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	dict := cg.Builder.CreateCall(cg.RT("dict_new"), nil, "")
	for _, entry := range n.Children {
		key, err := fc.BuildExpr(entry.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		val, err := fc.BuildExpr(entry.Children[1])
		if err != nil {
			return llvm.Value{}, err
		}
		cg.Builder.CreateCall(cg.RT("dict_set_value"), []llvm.Value{dict, key, val}, "")
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_dict"), []llvm.Value{out, dict}, "")
	return out, nil
}

func (fc *FuncCtx) buildStructLit(n *ast.Node) (llvm.Value, error) {
	cg := fc.Cg
	d := n.Data.(ast.StructLitData)
	st := cg.Builder.CreateCall(cg.RT("struct_new"), []llvm.Value{cg.InternString(d.StructName)}, "")
	for _, f := range n.Children {
		fieldName := f.Data.(string)
		val, err := fc.BuildExpr(f.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		cg.Builder.CreateCall(cg.RT("struct_set_field_value_ptr"), []llvm.Value{st, cg.InternString(fieldName), val}, "")
	}
	out := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_struct"), []llvm.Value{out, st}, "")
	return out, nil
}
