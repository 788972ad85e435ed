// Package ast defines the syntax tree contract consumed by this compiler
// core. Lexing and parsing are external collaborators (see spec.md §1); this
// package only describes the shape the parser hands to analysis and
// codegen, plus a handful of constructors used to build trees in tests.
package ast

import (
	"fmt"
	"strings"

	"breadc/internal/types"
)

// Kind differentiates the node shapes in the syntax tree.
type Kind int

const (
	Program Kind = iota
	ClassDecl
	FunctionDecl
	Param
	Block
	VarDecl
	Assign
	IndexAssign
	MemberAssign
	If
	While
	ForRange
	ForIn
	Return
	Break
	Continue
	Print

	NilLit
	BoolLit
	IntLit
	FloatLit
	StringLit
	Identifier
	Binary
	Unary
	Call
	MethodCall
	SuperCall
	Index
	Member
	ArrayLit
	DictEntry
	DictLit
	StructFieldInit
	StructLit
)

var kindNames = [...]string{
	"Program", "ClassDecl", "FunctionDecl", "Param", "Block", "VarDecl",
	"Assign", "IndexAssign", "MemberAssign", "If", "While", "ForRange",
	"ForIn", "Return", "Break", "Continue", "Print",
	"NilLit", "BoolLit", "IntLit", "FloatLit", "StringLit", "Identifier",
	"Binary", "Unary", "Call", "MethodCall", "SuperCall", "Index", "Member",
	"ArrayLit", "DictEntry", "DictLit", "StructFieldInit", "StructLit",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Node is a single syntax tree node. Data carries kind-specific payload (an
// identifier name, a literal value, an operator string); Children carry
// sub-trees. Which children mean what is documented per Kind below.
type Node struct {
	Kind     Kind
	Line     int
	Pos      int
	Data     interface{}
	Children []*Node

	// Type is filled in by the parser/semantic-analysis collaborator for
	// nodes that carry an explicit type annotation (VarDecl, Param,
	// FunctionDecl's return type, StructLit). It is nil where the dynamic
	// type is only known after stability/escape analysis.
	Type *types.TypeDescriptor
}

// ClassDeclData is the Data payload of a ClassDecl node.
//
// Children: field declarations are listed in FieldNames/FieldTypes
// (declaration order, own fields only — inheritance is resolved by the
// runtime bridge, not here); Methods holds FunctionDecl nodes (excluding
// "init"); Constructor holds the FunctionDecl node for "init", or nil.
type ClassDeclData struct {
	Name        string
	ParentName  string // Empty if no parent.
	FieldNames  []string
	FieldTypes  []*types.TypeDescriptor
	FieldDefaults []*Node // Parallel to FieldNames; nil entry if no default.
	Methods     []*Node
	Constructor *Node
}

// FunctionDeclData is the Data payload of a FunctionDecl node.
//
// Children[0] is the Body Block.
type FunctionDeclData struct {
	Name       string
	Params     []ParamInfo
	ReturnType *types.TypeDescriptor
	IsMethod   bool
	ClassName  string // Set when IsMethod.
}

// ParamInfo describes one function or method parameter.
type ParamInfo struct {
	Name    string
	Type    *types.TypeDescriptor
	Default *Node // nil if required.
}

// RequiredCount returns the number of leading parameters with no default.
func (f FunctionDeclData) RequiredCount() int {
	n := 0
	for _, p := range f.Params {
		if p.Default != nil {
			break
		}
		n++
	}
	return n
}

// VarDeclData is the Data payload of a VarDecl node. Children[0] is the
// initializer expression, or nil if the declaration has none.
type VarDeclData struct {
	Name    string
	Type    *types.TypeDescriptor
	IsConst bool
}

// AssignData is the Data payload of an Assign node. Children[0] is the
// value expression. CompoundOp is "" for a plain assignment, otherwise one
// of "+","-","*","/","%".
type AssignData struct {
	Name       string
	CompoundOp string
}

// IndexAssignData is the Data payload of an IndexAssign node.
// Children: [0]=target expr, [1]=index expr, [2]=value expr.
type IndexAssignData struct {
	CompoundOp string
}

// MemberAssignData is the Data payload of a MemberAssign node.
// Children: [0]=target expr, [1]=value expr.
type MemberAssignData struct {
	Name       string
	CompoundOp string
	IsOptional bool
}

// ForRangeData is the Data payload of a ForRange node. Children[0] is the
// loop body Block. Start/Stop/Step must be literal integers (spec.md
// §4.F "For over range(a,b,s): require integer literal bounds").
type ForRangeData struct {
	VarName string
	Start   int64
	Stop    int64
	Step    int64
}

// ForInData is the Data payload of a ForIn node.
// Children: [0]=iterable expr, [1]=body Block.
type ForInData struct {
	VarName string
}

// BinaryData/UnaryData carry the operator string for Binary/Unary nodes.
// Children: Binary=[lhs,rhs], Unary=[operand].
type BinaryData struct{ Op string }
type UnaryData struct{ Op string }

// CallData is the Data payload of a Call node. Children are the
// (possibly empty) argument expressions, in order. Name is the callee's name;
// resolution to a builtin, a user function, or a class constructor happens
// during lowering (spec.md §4.E).
type CallData struct {
	Name string
}

// MethodCallData is the Data payload of a MethodCall node.
// Children: [0]=target expr, [1:]=arguments.
type MethodCallData struct {
	Name       string
	IsOptional bool
}

// SuperCallData is the Data payload of a SuperCall node (only legal inside
// a method of a class that has a parent). Children are the argument
// expressions.
type SuperCallData struct{}

// IndexData is the Data payload of an Index node.
// Children: [0]=target, [1]=index expr.
type IndexData struct {
	IsOptional bool
}

// MemberData is the Data payload of a Member node. Children: [0]=target.
type MemberData struct {
	Name       string
	IsOptional bool
}

// DictEntryData marks a DictEntry node; Children: [0]=key, [1]=value.
type DictEntryData struct{}

// StructLitData is the Data payload of a StructLit node. Children are
// StructFieldInit nodes (Data=field name string, Children[0]=value expr).
type StructLitData struct {
	StructName string
}

// String renders n (and its Data payload, if any) in a debug-friendly form.
func (n *Node) String() string {
	if n == nil {
		return "<nil Node>"
	}
	if n.Data == nil {
		return n.Kind.String()
	}
	return fmt.Sprintf("%s[%v]", n.Kind, n.Data)
}

// Dump writes an indented tree representation of n to sb, recursively.
func (n *Node) Dump(sb *strings.Builder, depth int) {
	if n == nil {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("<nil>\n")
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.String())
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.Dump(sb, depth+1)
	}
}
