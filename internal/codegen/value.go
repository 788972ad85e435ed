package codegen

import (
	"tinygo.org/x/go-llvm"

	"breadc/internal/types"
	"breadc/internal/util"
)

// Rep mirrors types.UnboxedRep plus a RepBoxed case meaning "this
// Unboxed's IR value already is the boxed Value* pointer" (spec.md §3's
// "Boxed means fall back to the boxed slot pointer").
type Rep int

const (
	RepBoxed Rep = iota
	RepInt64
	RepDouble
	RepBool1
)

// Unboxed is the tagged pair spec.md §3 describes: a representation plus
// the IR value/type that carries it.
type Unboxed struct {
	Rep Rep
	IR  llvm.Value
	Ty  llvm.Type
}

// AllocValue stack-allocates a boxed Value slot and initializes it to nil,
// per spec.md §4.A's alloc_value contract. Size is queried from the
// runtime rather than baked in, since the core treats Value as an opaque
// byte array (spec.md §3).
func (cg *Cg) AllocValue(name string) llvm.Value {
	sz := cg.Builder.CreateCall(cg.RT("value_size"), nil, "")
	slot := cg.Builder.CreateArrayAlloca(cg.Int8Ty, sz, name)
	cg.Builder.CreateCall(cg.RT("value_set_nil"), []llvm.Value{slot}, "")
	return slot
}

// BoxValue allocates a fresh slot and stores u into it via the matching
// runtime setter, widening bools to 32 bits at the ABI boundary (spec.md
// §4.A). An already-boxed Unboxed is copied through value_copy rather than
// aliased, so callers always get a slot they own.
func (cg *Cg) BoxValue(u Unboxed) llvm.Value {
	slot := cg.AllocValue("")
	switch u.Rep {
	case RepInt64:
		cg.Builder.CreateCall(cg.RT("value_set_int"), []llvm.Value{slot, u.IR}, "")
	case RepDouble:
		cg.Builder.CreateCall(cg.RT("value_set_double"), []llvm.Value{slot, u.IR}, "")
	case RepBool1:
		wide := cg.Builder.CreateZExt(u.IR, cg.Int32Ty, "")
		cg.Builder.CreateCall(cg.RT("value_set_bool"), []llvm.Value{slot, wide}, "")
	default:
		cg.CopyValueInto(slot, u.IR)
	}
	return slot
}

// BoxString allocates a fresh slot holding the interned string s.
func (cg *Cg) BoxString(s string) llvm.Value {
	slot := cg.AllocValue("")
	cg.Builder.CreateCall(cg.RT("value_set_string"), []llvm.Value{slot, cg.InternString(s)}, "")
	return slot
}

// UnboxValue reads slot as the primitive want, narrowing a widened bool
// back to 1 bit. ok is false when want isn't a primitive the runtime can
// unbox (spec.md §4.A: "falls back to returning the boxed pointer
// unchanged" on an unsupported request); in that case the returned
// Unboxed just re-wraps slot as RepBoxed.
//
// Per spec.md §4.A, the caller now owns a fresh value and must not alias
// the slot it came from.
func (cg *Cg) UnboxValue(slot llvm.Value, want types.VarType) (Unboxed, bool) {
	switch want {
	case types.TypeInt:
		v := cg.Builder.CreateCall(cg.RT("value_get_int"), []llvm.Value{slot}, "")
		return Unboxed{Rep: RepInt64, IR: v, Ty: cg.Int64Ty}, true
	case types.TypeDouble:
		v := cg.Builder.CreateCall(cg.RT("value_get_double"), []llvm.Value{slot}, "")
		return Unboxed{Rep: RepDouble, IR: v, Ty: cg.DoubleTy}, true
	case types.TypeBool:
		wide := cg.Builder.CreateCall(cg.RT("value_get_bool"), []llvm.Value{slot}, "")
		narrow := cg.Builder.CreateTrunc(wide, cg.Int1Ty, "")
		return Unboxed{Rep: RepBool1, IR: narrow, Ty: cg.Int1Ty}, true
	default:
		return Unboxed{Rep: RepBoxed, IR: slot, Ty: cg.ValuePtrTy}, false
	}
}

// CopyValueInto runs the runtime-mediated copy of src into the
// already-allocated slot dst, preserving refcount invariants on
// heap-owning variants (spec.md §3's copy contract).
func (cg *Cg) CopyValueInto(dst, src llvm.Value) {
	cg.Builder.CreateCall(cg.RT("value_copy"), []llvm.Value{src, dst}, "")
}

// InternString returns the (deduplicated) global i8* backing string
// literal s. Two calls with equal s, even from different codegen workers,
// return the same llvm.Value — this is what makes testable property #3
// ("string interning") hold, since the teacher's own
// b.CreateGlobalStringPtr call (ir/llvm/transform.go's genPrint) doesn't
// dedupe by content, only by the caller-supplied name prefix.
func (cg *Cg) InternString(s string) llvm.Value {
	key := util.InternKey(s)
	cg.stringMx.Lock()
	defer cg.stringMx.Unlock()
	if g, ok := cg.stringGlobals[key]; ok {
		return g
	}
	g := cg.Builder.CreateGlobalStringPtr(s, key)
	cg.stringGlobals[key] = g
	return g
}
