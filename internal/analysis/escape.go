package analysis

import "breadc/internal/ast"

// EscapeKind classifies why a value might outlive the stack frame that
// produced it (spec.md §4.D). Severity increases down the list so two
// candidate kinds for the same node can be merged by taking the larger.
type EscapeKind int

const (
	EscUnknown EscapeKind = iota
	EscNone
	EscReturn
	EscParameter
	EscGlobal
	EscHeap
)

func (k EscapeKind) String() string {
	switch k {
	case EscNone:
		return "None"
	case EscReturn:
		return "Return"
	case EscParameter:
		return "Parameter"
	case EscGlobal:
		return "Global"
	case EscHeap:
		return "Heap"
	default:
		return "Unknown"
	}
}

// EscapeInfo is the per-expression annotation spec.md §3 describes.
type EscapeInfo struct {
	Kind             EscapeKind
	CanStackAllocate bool
}

// EscapeAnalyzer runs the single pass of spec.md §4.D. It shares
// stability.go's recursive-descent shape (ground: ir/optimise.go) but
// needs no variable environment: escape kind is structural, determined by
// where a node sits (call argument, return expression, container
// literal), not by how many times a variable is mutated.
type EscapeAnalyzer struct {
	info map[*ast.Node]*EscapeInfo
}

// NewEscapeAnalyzer returns a ready-to-run analyzer.
func NewEscapeAnalyzer() *EscapeAnalyzer {
	return &EscapeAnalyzer{info: make(map[*ast.Node]*EscapeInfo)}
}

// AnalyzeEscape walks root (a Program node) and returns the per-node
// escape annotation table.
func AnalyzeEscape(root *ast.Node) map[*ast.Node]*EscapeInfo {
	a := NewEscapeAnalyzer()
	a.walkStmt(root)
	return a.info
}

func (a *EscapeAnalyzer) set(n *ast.Node, k EscapeKind) *EscapeInfo {
	info := &EscapeInfo{Kind: k, CanStackAllocate: k == EscNone}
	a.info[n] = info
	return info
}

// escalate raises n's recorded kind to at least min, if min is more
// severe than what's already there.
func (a *EscapeAnalyzer) escalate(n *ast.Node, min EscapeKind) {
	info, ok := a.info[n]
	if !ok {
		a.set(n, min)
		return
	}
	if min > info.Kind {
		info.Kind = min
	}
	info.CanStackAllocate = info.Kind == EscNone
}

func (a *EscapeAnalyzer) walkStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.Program, ast.Block:
		for _, c := range n.Children {
			a.walkStmt(c)
		}

	case ast.VarDecl:
		if len(n.Children) > 0 {
			a.expr(n.Children[0])
		}

	case ast.Assign:
		if len(n.Children) > 0 {
			a.expr(n.Children[0])
		}

	case ast.IndexAssign, ast.MemberAssign:
		for _, c := range n.Children {
			a.expr(c)
		}

	case ast.If:
		a.expr(n.Children[0])
		a.walkStmt(n.Children[1])
		if len(n.Children) > 2 {
			a.walkStmt(n.Children[2])
		}

	case ast.While:
		a.expr(n.Children[0])
		a.walkStmt(n.Children[1])

	case ast.ForRange:
		a.walkStmt(n.Children[0])

	case ast.ForIn:
		a.expr(n.Children[0])
		a.walkStmt(n.Children[1])

	case ast.Return:
		if len(n.Children) > 0 {
			a.expr(n.Children[0])
			a.escalate(n.Children[0], EscReturn)
		}

	case ast.Print:
		for _, c := range n.Children {
			a.expr(c)
		}

	case ast.Break, ast.Continue:
		// No sub-expressions.

	case ast.FunctionDecl:
		d := n.Data.(ast.FunctionDeclData)
		for _, p := range d.Params {
			if p.Default != nil {
				a.expr(p.Default)
			}
		}
		if len(n.Children) > 0 {
			a.walkStmt(n.Children[0])
		}

	case ast.ClassDecl:
		d := n.Data.(ast.ClassDeclData)
		for _, def := range d.FieldDefaults {
			if def != nil {
				a.expr(def)
			}
		}
		for _, m := range d.Methods {
			a.walkStmt(m)
		}
		if d.Constructor != nil {
			a.walkStmt(d.Constructor)
		}

	default:
		a.expr(n)
	}
}

// expr classifies n per the rules in spec.md §4.D and records the
// annotation. Call/method-call arguments are escalated to EscParameter
// after being classified structurally, since a value handed to a callee
// may be retained by it regardless of how it was produced.
func (a *EscapeAnalyzer) expr(n *ast.Node) *EscapeInfo {
	if n == nil {
		return &EscapeInfo{Kind: EscUnknown}
	}
	switch n.Kind {
	case ast.NilLit, ast.BoolLit, ast.IntLit, ast.FloatLit, ast.StringLit, ast.Identifier:
		return a.set(n, EscNone)

	case ast.Unary:
		a.expr(n.Children[0])
		return a.set(n, EscNone)

	case ast.Binary:
		a.expr(n.Children[0])
		a.expr(n.Children[1])
		return a.set(n, EscNone)

	case ast.Call, ast.SuperCall:
		args := n.Children
		for _, arg := range args {
			a.expr(arg)
			a.escalate(arg, EscParameter)
		}
		return a.set(n, EscReturn)

	case ast.MethodCall:
		if len(n.Children) > 0 {
			a.expr(n.Children[0])
		}
		for _, arg := range n.Children[1:] {
			a.expr(arg)
			a.escalate(arg, EscParameter)
		}
		return a.set(n, EscReturn)

	case ast.Index:
		target := a.expr(n.Children[0])
		a.expr(n.Children[1])
		if target.Kind == EscHeap {
			return a.set(n, EscHeap)
		}
		return a.set(n, EscNone)

	case ast.Member:
		target := a.expr(n.Children[0])
		if target.Kind == EscHeap {
			return a.set(n, EscHeap)
		}
		return a.set(n, EscNone)

	case ast.ArrayLit, ast.DictLit, ast.DictEntry, ast.StructLit, ast.StructFieldInit:
		for _, c := range n.Children {
			a.expr(c)
		}
		return a.set(n, EscHeap)

	default:
		return a.set(n, EscUnknown)
	}
}
