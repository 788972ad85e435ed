// Package types defines the BreadLang value type lattice shared by the
// analysis and codegen packages: the dynamic VarType enumeration, the
// TypeDescriptor tree for compound types, and the unboxed representation
// tags used to decide when a value can skip the boxed Value slot.
package types

import "fmt"

// VarType enumerates the dynamic types a BreadLang value can carry at
// runtime. Order and members mirror the runtime's own tag space.
type VarType int

const (
	TypeNil VarType = iota
	TypeInt
	TypeFloat // 32-bit float, rarely surfaced to source.
	TypeDouble
	TypeBool
	TypeString
	TypeArray
	TypeDict
	TypeOptional
	TypeStruct
	TypeClass
)

var varTypeNames = [...]string{
	"nil", "int", "float", "double", "bool", "string",
	"array", "dict", "optional", "struct", "class",
}

func (t VarType) String() string {
	if int(t) < 0 || int(t) >= len(varTypeNames) {
		return fmt.Sprintf("VarType(%d)", int(t))
	}
	return varTypeNames[t]
}

// CanUnbox reports whether values of type t are eligible to travel in a
// native machine register instead of a boxed Value slot.
func CanUnbox(t VarType) bool {
	return t == TypeInt || t == TypeDouble || t == TypeBool
}

// UnboxedRep is the native representation a variable or temporary may hold
// in place of a boxed slot.
type UnboxedRep int

const (
	RepNone UnboxedRep = iota // Always boxed.
	RepInt64
	RepDouble
	RepBool1
)

// RepFor returns the UnboxedRep a value of dynamic type t would use, or
// RepNone if t cannot be unboxed.
func RepFor(t VarType) UnboxedRep {
	switch t {
	case TypeInt:
		return RepInt64
	case TypeDouble:
		return RepDouble
	case TypeBool:
		return RepBool1
	default:
		return RepNone
	}
}

// TypeDescriptor describes a (possibly compound) BreadLang type: a scalar,
// or an array/dict/optional/struct composed of other descriptors.
type TypeDescriptor struct {
	Base VarType

	Element *TypeDescriptor // Array element type, or optional's wrapped type.

	Key   *TypeDescriptor // Dict key type.
	Value *TypeDescriptor // Dict value type.

	StructName  string
	FieldNames  []string
	FieldTypes  []*TypeDescriptor
}

// Scalar returns a TypeDescriptor for a non-compound base type.
func Scalar(base VarType) *TypeDescriptor {
	return &TypeDescriptor{Base: base}
}

func (d *TypeDescriptor) String() string {
	if d == nil {
		return "<unknown>"
	}
	switch d.Base {
	case TypeArray:
		return fmt.Sprintf("[%s]", d.Element)
	case TypeDict:
		return fmt.Sprintf("[%s:%s]", d.Key, d.Value)
	case TypeOptional:
		return fmt.Sprintf("%s?", d.Element)
	case TypeStruct:
		return d.StructName
	default:
		return d.Base.String()
	}
}
