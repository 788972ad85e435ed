// Package analysis implements the two independent AST-annotation passes
// that feed codegen's unboxing and stack-allocation decisions: type
// stability (this file) and escape analysis (escape.go).
//
// Ground: ir/optimise.go's recursive-descent shape (enter/leave bookkeeping
// around if/while/for/function bodies, a per-node switch dispatch) —
// restructured into two passes instead of one, since optimise.go folds
// constants in the same walk that classifies them and this spec keeps
// stability classification and constant folding as separate concerns.
// Annotation storage follows the side-table style of
// other_examples/…Orizon__internal-runtime-lifetime_analyzer.go (a map
// keyed by AST node pointer, not fields embedded on Node) per spec.md §9's
// note that analysis state lives beside the tree, not inside it.
package analysis

import (
	"breadc/internal/ast"
	"breadc/internal/types"
)

// Stability classifies how much an expression's value can be trusted to
// stay put across its lifetime. Order matters: Stable > Conditional >
// Unstable > Unknown, so that "both operands at least Conditional" can be
// expressed as a >= comparison (spec.md §4.C).
type Stability int

const (
	Unknown Stability = iota
	Unstable
	Conditional
	Stable
)

func (s Stability) String() string {
	switch s {
	case Stable:
		return "Stable"
	case Conditional:
		return "Conditional"
	case Unstable:
		return "Unstable"
	default:
		return "Unknown"
	}
}

// StabilityInfo is the per-expression annotation spec.md §3 describes.
type StabilityInfo struct {
	Type          *types.TypeDescriptor
	Stability     Stability
	IsConstant    bool
	IsLocal       bool
	MutationCount int
	UsageCount    int
}

// declState tracks one in-scope variable's lifetime statistics across the
// whole walk, shared by every var-ref node that resolves to it.
type declState struct {
	typ            *types.TypeDescriptor
	isConst        bool
	isLocal        bool
	declaredInLoop bool
	mutationCount  int
	usageCount     int
}

type deferredRef struct {
	node      *ast.Node
	decl      *declState
	useInLoop bool
}

// StabilityAnalyzer runs the single annotation pass of spec.md §4.C.
type StabilityAnalyzer struct {
	info      map[*ast.Node]*StabilityInfo
	deferred  []deferredRef
	scopes    []map[string]*declState
	loopDepth int
}

// NewStabilityAnalyzer returns a ready-to-run analyzer.
func NewStabilityAnalyzer() *StabilityAnalyzer {
	return &StabilityAnalyzer{info: make(map[*ast.Node]*StabilityInfo)}
}

// Analyze walks root (a Program node) and returns the per-node annotation
// table. Var-ref classification is deferred until the whole tree has been
// walked, because a variable's final mutation count isn't known until
// every assignment to it has been seen (spec.md §3's mutation_count is a
// lifetime total, not a running count at the point of use).
func Analyze(root *ast.Node) map[*ast.Node]*StabilityInfo {
	a := NewStabilityAnalyzer()
	a.pushScope()
	a.walkStmt(root)
	a.popScope()
	a.finalize()
	return a.info
}

func (a *StabilityAnalyzer) pushScope() {
	a.scopes = append(a.scopes, make(map[string]*declState))
}

func (a *StabilityAnalyzer) popScope() {
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *StabilityAnalyzer) declare(name string, d *declState) {
	a.scopes[len(a.scopes)-1][name] = d
}

func (a *StabilityAnalyzer) resolve(name string) *declState {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if d, ok := a.scopes[i][name]; ok {
			return d
		}
	}
	return nil
}

// atGlobalScope reports whether declarations land in the program's top
// level: Analyze's outer scope plus the scope the Program node pushes.
func (a *StabilityAnalyzer) atGlobalScope() bool {
	return len(a.scopes) <= 2
}

// walkStmt recurses over statement-shaped nodes, feeding every nested
// expression through exprInfo so var refs and mutations inside them are
// recorded, without itself producing a StabilityInfo (statements have no
// value).
func (a *StabilityAnalyzer) walkStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.Program, ast.Block:
		a.pushScope()
		for _, c := range n.Children {
			a.walkStmt(c)
		}
		a.popScope()

	case ast.VarDecl:
		d := n.Data.(ast.VarDeclData)
		if len(n.Children) > 0 {
			a.exprInfo(n.Children[0])
		}
		a.declare(d.Name, &declState{
			typ:            d.Type,
			isConst:        d.IsConst,
			isLocal:        !a.atGlobalScope(),
			declaredInLoop: a.loopDepth > 0,
		})

	case ast.Assign:
		d := n.Data.(ast.AssignData)
		if len(n.Children) > 0 {
			a.exprInfo(n.Children[0])
		}
		if decl := a.resolve(d.Name); decl != nil {
			decl.mutationCount++
		}

	case ast.IndexAssign:
		for _, c := range n.Children {
			a.exprInfo(c)
		}

	case ast.MemberAssign:
		for _, c := range n.Children {
			a.exprInfo(c)
		}

	case ast.If:
		a.exprInfo(n.Children[0])
		a.walkStmt(n.Children[1])
		if len(n.Children) > 2 {
			a.walkStmt(n.Children[2])
		}

	case ast.While:
		a.exprInfo(n.Children[0])
		a.loopDepth++
		a.walkStmt(n.Children[1])
		a.loopDepth--

	case ast.ForRange:
		d := n.Data.(ast.ForRangeData)
		a.loopDepth++
		a.pushScope()
		a.declare(d.VarName, &declState{typ: types.Scalar(types.TypeInt), isLocal: true, declaredInLoop: true})
		a.walkStmt(n.Children[0])
		a.popScope()
		a.loopDepth--

	case ast.ForIn:
		d := n.Data.(ast.ForInData)
		a.exprInfo(n.Children[0])
		a.loopDepth++
		a.pushScope()
		a.declare(d.VarName, &declState{isLocal: true, declaredInLoop: true})
		a.walkStmt(n.Children[1])
		a.popScope()
		a.loopDepth--

	case ast.Return:
		if len(n.Children) > 0 {
			a.exprInfo(n.Children[0])
		}

	case ast.Print:
		for _, c := range n.Children {
			a.exprInfo(c)
		}

	case ast.Break, ast.Continue:
		// No sub-expressions.

	case ast.FunctionDecl:
		d := n.Data.(ast.FunctionDeclData)
		for _, p := range d.Params {
			if p.Default != nil {
				a.exprInfo(p.Default)
			}
		}
		a.pushScope()
		if d.IsMethod {
			a.declare("self", &declState{isLocal: true})
		}
		for _, p := range d.Params {
			a.declare(p.Name, &declState{typ: p.Type, isLocal: true})
		}
		if len(n.Children) > 0 {
			a.walkStmt(n.Children[0])
		}
		a.popScope()

	case ast.ClassDecl:
		d := n.Data.(ast.ClassDeclData)
		for _, def := range d.FieldDefaults {
			if def != nil {
				a.exprInfo(def)
			}
		}
		for _, m := range d.Methods {
			a.walkStmt(m)
		}
		if d.Constructor != nil {
			a.walkStmt(d.Constructor)
		}

	default:
		// Expression reached in statement position (shouldn't happen with
		// a well-formed tree, but stay safe for hand-built test trees).
		a.exprInfo(n)
	}
}

// exprInfo classifies n per the table in spec.md §4.C and records n's
// annotation in a.info. Var-ref nodes get a placeholder entry now and are
// finalized once the whole tree has been walked (see finalize).
func (a *StabilityAnalyzer) exprInfo(n *ast.Node) *StabilityInfo {
	if n == nil {
		info := &StabilityInfo{Stability: Unknown}
		return info
	}
	switch n.Kind {
	case ast.NilLit:
		info := &StabilityInfo{Stability: Stable, IsConstant: true, Type: types.Scalar(types.TypeNil)}
		a.info[n] = info
		return info
	case ast.BoolLit:
		info := &StabilityInfo{Stability: Stable, IsConstant: true, Type: types.Scalar(types.TypeBool)}
		a.info[n] = info
		return info
	case ast.IntLit:
		info := &StabilityInfo{Stability: Stable, IsConstant: true, Type: types.Scalar(types.TypeInt)}
		a.info[n] = info
		return info
	case ast.FloatLit:
		info := &StabilityInfo{Stability: Stable, IsConstant: true, Type: types.Scalar(types.TypeDouble)}
		a.info[n] = info
		return info
	case ast.StringLit:
		info := &StabilityInfo{Stability: Stable, IsConstant: true, Type: types.Scalar(types.TypeString)}
		a.info[n] = info
		return info

	case ast.Identifier:
		name := n.Data.(string)
		info := &StabilityInfo{}
		a.info[n] = info
		decl := a.resolve(name)
		if decl == nil {
			info.Stability = Unstable
			return info
		}
		decl.usageCount++
		info.Type = decl.typ
		info.IsLocal = decl.isLocal
		a.deferred = append(a.deferred, deferredRef{node: n, decl: decl, useInLoop: a.loopDepth > 0})
		return info

	case ast.Unary:
		operand := a.exprInfo(n.Children[0])
		info := &StabilityInfo{Stability: operand.Stability, Type: operand.Type, IsConstant: operand.IsConstant}
		a.info[n] = info
		return info

	case ast.Binary:
		lhs := a.exprInfo(n.Children[0])
		rhs := a.exprInfo(n.Children[1])
		info := &StabilityInfo{}
		a.info[n] = info
		switch {
		case lhs.Stability == Stable && rhs.Stability == Stable:
			info.Stability = Stable
			info.IsConstant = lhs.IsConstant && rhs.IsConstant
			info.Type = combineArithType(n.Data.(ast.BinaryData).Op, lhs.Type, rhs.Type)
		case lhs.Stability >= Conditional && rhs.Stability >= Conditional:
			info.Stability = Conditional
			info.Type = combineArithType(n.Data.(ast.BinaryData).Op, lhs.Type, rhs.Type)
		default:
			info.Stability = Unstable
		}
		return info

	case ast.Call, ast.MethodCall, ast.SuperCall, ast.Index, ast.Member:
		for _, c := range n.Children {
			a.exprInfo(c)
		}
		info := &StabilityInfo{Stability: Unstable}
		a.info[n] = info
		return info

	case ast.ArrayLit:
		for _, c := range n.Children {
			a.exprInfo(c)
		}
		info := &StabilityInfo{Stability: Unstable, Type: &types.TypeDescriptor{Base: types.TypeArray}}
		a.info[n] = info
		return info

	case ast.DictLit, ast.DictEntry:
		for _, c := range n.Children {
			a.exprInfo(c)
		}
		info := &StabilityInfo{Stability: Unstable, Type: &types.TypeDescriptor{Base: types.TypeDict}}
		a.info[n] = info
		return info

	case ast.StructLit, ast.StructFieldInit:
		for _, c := range n.Children {
			a.exprInfo(c)
		}
		info := &StabilityInfo{Stability: Unstable, Type: &types.TypeDescriptor{Base: types.TypeStruct}}
		a.info[n] = info
		return info

	default:
		info := &StabilityInfo{Stability: Unknown}
		a.info[n] = info
		return info
	}
}

// finalize resolves every deferred var-ref's stability now that mutation
// counts across the whole tree are final.
func (a *StabilityAnalyzer) finalize() {
	for _, d := range a.deferred {
		info := a.info[d.node]
		info.MutationCount = d.decl.mutationCount
		info.UsageCount = d.decl.usageCount
		switch {
		case d.decl.isConst:
			info.Stability = Stable
			info.IsConstant = true
		case d.decl.mutationCount == 0:
			info.Stability = Stable
		case d.decl.mutationCount <= 1 && !d.decl.declaredInLoop && !d.useInLoop:
			info.Stability = Conditional
		default:
			info.Stability = Unstable
		}
	}
}

// combineArithType approximates spec.md §4.C's "int⊕int→int;
// float/double⊕float/double→double" rule. Relational/logical operators
// yield bool regardless of operand type and skip the int/double promotion;
// any other mix of operand types yields nil. This only needs to be a
// best-effort hint.
func combineArithType(op string, lhs, rhs *types.TypeDescriptor) *types.TypeDescriptor {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=", "&&", "||":
		return types.Scalar(types.TypeBool)
	}
	if lhs == nil || rhs == nil {
		return nil
	}
	if lhs.Base == types.TypeDouble || rhs.Base == types.TypeDouble {
		return types.Scalar(types.TypeDouble)
	}
	if lhs.Base == types.TypeInt && rhs.Base == types.TypeInt {
		return types.Scalar(types.TypeInt)
	}
	return nil
}
