package ast

import "breadc/internal/types"

// This file provides small tree-construction helpers used by the test
// suites in internal/analysis and internal/codegen to build sample
// programs without a real parser (lexing/parsing is an external
// collaborator, out of scope here — ground: frontend/tree.go's nodeInit,
// adapted from a goyacc action helper into plain constructor functions).

func Int(v int64) *Node       { return &Node{Kind: IntLit, Data: v} }
func Float(v float64) *Node   { return &Node{Kind: FloatLit, Data: v} }
func Bool(v bool) *Node       { return &Node{Kind: BoolLit, Data: v} }
func Str(v string) *Node      { return &Node{Kind: StringLit, Data: v} }
func Nil() *Node              { return &Node{Kind: NilLit} }
func Ident(name string) *Node { return &Node{Kind: Identifier, Data: name} }

func Bin(op string, lhs, rhs *Node) *Node {
	return &Node{Kind: Binary, Data: BinaryData{Op: op}, Children: []*Node{lhs, rhs}}
}

func Un(op string, operand *Node) *Node {
	return &Node{Kind: Unary, Data: UnaryData{Op: op}, Children: []*Node{operand}}
}

func CallExpr(name string, args ...*Node) *Node {
	return &Node{Kind: Call, Data: CallData{Name: name}, Children: args}
}

func MethodCallExpr(target *Node, name string, optional bool, args ...*Node) *Node {
	children := append([]*Node{target}, args...)
	return &Node{Kind: MethodCall, Data: MethodCallData{Name: name, IsOptional: optional}, Children: children}
}

func IndexExpr(target, idx *Node, optional bool) *Node {
	return &Node{Kind: Index, Data: IndexData{IsOptional: optional}, Children: []*Node{target, idx}}
}

func MemberExpr(target *Node, name string, optional bool) *Node {
	return &Node{Kind: Member, Data: MemberData{Name: name, IsOptional: optional}, Children: []*Node{target}}
}

func ArrayLitExpr(elems ...*Node) *Node {
	return &Node{Kind: ArrayLit, Children: elems}
}

func DictLitExpr(entries ...*Node) *Node {
	return &Node{Kind: DictLit, Children: entries}
}

func DictEntryExpr(key, value *Node) *Node {
	return &Node{Kind: DictEntry, Data: DictEntryData{}, Children: []*Node{key, value}}
}

func Blk(stmts ...*Node) *Node {
	return &Node{Kind: Block, Children: stmts}
}

func VarDeclStmt(name string, t *types.TypeDescriptor, isConst bool, init *Node) *Node {
	return &Node{Kind: VarDecl, Data: VarDeclData{Name: name, Type: t, IsConst: isConst}, Children: []*Node{init}}
}

func AssignStmt(name, compoundOp string, value *Node) *Node {
	return &Node{Kind: Assign, Data: AssignData{Name: name, CompoundOp: compoundOp}, Children: []*Node{value}}
}

func ReturnStmt(value *Node) *Node {
	var children []*Node
	if value != nil {
		children = []*Node{value}
	}
	return &Node{Kind: Return, Children: children}
}

func PrintStmt(items ...*Node) *Node {
	return &Node{Kind: Print, Children: items}
}

func IfStmt(cond, then, els *Node) *Node {
	children := []*Node{cond, then}
	if els != nil {
		children = append(children, els)
	}
	return &Node{Kind: If, Children: children}
}

func WhileStmt(cond, body *Node) *Node {
	return &Node{Kind: While, Children: []*Node{cond, body}}
}

func ForRangeStmt(varName string, start, stop, step int64, body *Node) *Node {
	return &Node{Kind: ForRange, Data: ForRangeData{VarName: varName, Start: start, Stop: stop, Step: step}, Children: []*Node{body}}
}

func ForInStmt(varName string, iterable, body *Node) *Node {
	return &Node{Kind: ForIn, Data: ForInData{VarName: varName}, Children: []*Node{iterable, body}}
}

func BreakStmt() *Node    { return &Node{Kind: Break} }
func ContinueStmt() *Node { return &Node{Kind: Continue} }

func FunctionDeclStmt(name string, params []ParamInfo, ret *types.TypeDescriptor, body *Node) *Node {
	return &Node{
		Kind:     FunctionDecl,
		Data:     FunctionDeclData{Name: name, Params: params, ReturnType: ret},
		Children: []*Node{body},
	}
}

func MethodDeclStmt(class, name string, params []ParamInfo, ret *types.TypeDescriptor, body *Node) *Node {
	return &Node{
		Kind:     FunctionDecl,
		Data:     FunctionDeclData{Name: name, Params: params, ReturnType: ret, IsMethod: true, ClassName: class},
		Children: []*Node{body},
	}
}

func ClassDeclStmt(data ClassDeclData) *Node {
	return &Node{Kind: ClassDecl, Data: data}
}

func Program(globals ...*Node) *Node {
	return &Node{Kind: Program, Children: globals}
}
